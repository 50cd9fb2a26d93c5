//go:build !linux

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gitlab.com/gfxd/gpu-mode-service/cmd/backend"
)

func NewLogCmd(net backend.NetworkManager, fs backend.FileSystem, openJournal func() (backend.Logger, error)) *cobra.Command {
	return &cobra.Command{
		Use:     "log",
		Short:   "Gather all daemon logs into a tarball",
		PreRunE: isDaemonRunning(net),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Log collection is only supported on Linux.")
		},
	}
}
