package cmd

import (
	"fmt"
	"net/http"

	"github.com/buger/jsonparser"
	"github.com/spf13/cobra"

	"gitlab.com/gfxd/gpu-mode-service/cmd/backend"
)

func NewPowerCmd(net backend.NetworkManager, utilsService backend.Utility) *cobra.Command {
	return &cobra.Command{
		Use:     "power",
		Short:   "Display the dedicated GPU power state",
		Args:    cobra.NoArgs,
		PreRunE: isDaemonRunning(net),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := utilsService.ResponseBody(http.MethodGet, "/api/v1/gfx/power", "", nil)
			if err != nil {
				return apiError("could not get power state", err)
			}

			power, err := jsonparser.GetString(body, "power")
			if err != nil {
				return fmt.Errorf("failed to get power state from response: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "dGPU power: %s\n", power)
			return nil
		},
	}
}
