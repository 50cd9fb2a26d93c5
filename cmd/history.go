package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"gitlab.com/gfxd/gpu-mode-service/cmd/backend"
	"gitlab.com/gfxd/gpu-mode-service/models"
)

func NewHistoryCmd(net backend.NetworkManager, utilsService backend.Utility) *cobra.Command {
	var flagLimit int

	cmd := &cobra.Command{
		Use:     "history",
		Short:   "List recent mode changes",
		Args:    cobra.NoArgs,
		PreRunE: isDaemonRunning(net),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagLimit <= 0 {
				return fmt.Errorf("limit must be positive")
			}

			query := fmt.Sprintf("limit=%d", flagLimit)
			body, err := utilsService.ResponseBody(http.MethodGet, "/api/v1/gfx/transitions", query, nil)
			if err != nil {
				return apiError("could not get history", err)
			}

			var transitions []models.Transition
			if err := json.Unmarshal(body, &transitions); err != nil {
				return fmt.Errorf("unable to unmarshal response body: %w", err)
			}

			if len(transitions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No mode changes recorded")
				return nil
			}

			now := time.Now()
			table := setupHistoryTable(cmd.OutOrStdout())
			for _, t := range transitions {
				table.Append(historyRow(t, now))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&flagLimit, "limit", "n", 10, "number of records to show")
	return cmd
}
