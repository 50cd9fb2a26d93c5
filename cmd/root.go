package cmd

import (
	"github.com/spf13/cobra"

	"gitlab.com/gfxd/gpu-mode-service/utils"
)

var rootCmd = &cobra.Command{
	Use:     "gfxd",
	Short:   "GPU mode switching service",
	Long:    `gfxd switches hybrid graphics laptops between GPU modes and runs the daemon that applies them.`,
	Version: utils.Version,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceErrors: true,
	SilenceUsage:  true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func Execute() {
	// CheckErr prints formatted error message, if there is any, and exits
	cobra.CheckErr(rootCmd.Execute())
}
