package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"gitlab.com/gfxd/gpu-mode-service/utils"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the gfxd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "gfxd version: %s\n", utils.Version)
	},
}
