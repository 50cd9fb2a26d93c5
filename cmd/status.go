package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"gitlab.com/gfxd/gpu-mode-service/cmd/backend"
	"gitlab.com/gfxd/gpu-mode-service/models"
)

func NewStatusCmd(net backend.NetworkManager, utilsService backend.Utility) *cobra.Command {
	var flagJSON bool

	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Display mode configuration and pending changes",
		Args:    cobra.NoArgs,
		PreRunE: isDaemonRunning(net),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := utilsService.ResponseBody(http.MethodGet, "/api/v1/gfx/status", "", nil)
			if err != nil {
				return apiError("could not get status", err)
			}

			if flagJSON {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}

			var status models.GfxStatus
			if err := json.Unmarshal(body, &status); err != nil {
				return fmt.Errorf("unable to unmarshal response body: %w", err)
			}

			printStatus(cmd.OutOrStdout(), &status)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&flagJSON, "json", "j", false, "print the raw JSON status")
	return cmd
}
