package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"gitlab.com/gfxd/gpu-mode-service/daemon"
	"gitlab.com/gfxd/gpu-mode-service/internal"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the GPU mode daemon",
	Long:  `Applies the saved GPU mode and serves the REST API until SIGINT or SIGTERM.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := internal.SignalContext(context.Background())
		defer cancel()
		return daemon.Run(ctx)
	},
}
