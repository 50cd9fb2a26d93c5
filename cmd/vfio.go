package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"gitlab.com/gfxd/gpu-mode-service/cmd/backend"
)

func NewVfioCmd(net backend.NetworkManager, utilsService backend.Utility) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "vfio",
		Short:             "Allow or forbid vfio mode",
		PersistentPreRunE: isDaemonRunning(net),
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	cmd.AddCommand(newVfioToggleCmd(utilsService, "enable", true))
	cmd.AddCommand(newVfioToggleCmd(utilsService, "disable", false))
	return cmd
}

func newVfioToggleCmd(utilsService backend.Utility, use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("%s switching to vfio mode", use),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := []byte(fmt.Sprintf(`{"enabled":%v}`, enabled))
			if _, err := utilsService.ResponseBody(http.MethodPost, "/api/v1/gfx/vfio", "", body); err != nil {
				return apiError("could not change vfio setting", err)
			}

			if enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "vfio mode enabled")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "vfio mode disabled")
			}
			return nil
		},
	}
}
