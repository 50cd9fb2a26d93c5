package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/buger/jsonparser"
	"github.com/spf13/cobra"

	"gitlab.com/gfxd/gpu-mode-service/cmd/backend"
	"gitlab.com/gfxd/gpu-mode-service/models"
)

func NewModeCmd(net backend.NetworkManager, utilsService backend.Utility) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "mode",
		Short:             "Display the current GPU mode",
		Long:              `Display the GPU mode in effect, or change it with "mode set".`,
		Args:              cobra.NoArgs,
		PersistentPreRunE: isDaemonRunning(net),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := utilsService.ResponseBody(http.MethodGet, "/api/v1/gfx/mode", "", nil)
			if err != nil {
				return apiError("could not get mode", err)
			}

			mode, err := jsonparser.GetString(body, "mode")
			if err != nil {
				return fmt.Errorf("failed to get mode from response: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), mode)
			return nil
		},
	}

	cmd.AddCommand(NewModeSetCmd(utilsService))
	return cmd
}

func NewModeSetCmd(utilsService backend.Utility) *cobra.Command {
	validArgs := make([]string, 0, len(models.GpuModes))
	for _, m := range models.GpuModes {
		validArgs = append(validArgs, m.String())
	}

	return &cobra.Command{
		Use:       "set <mode>",
		Short:     "Change the GPU mode",
		Long:      `Request a GPU mode change. Some changes only complete after you log out.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: validArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := models.ParseGpuMode(args[0])
			if err != nil {
				return fmt.Errorf("%w (valid modes: %v)", err, validArgs)
			}

			reqBody, err := json.Marshal(models.ModeRequest{Mode: mode.String()})
			if err != nil {
				return fmt.Errorf("unable to marshal request: %w", err)
			}

			body, err := utilsService.ResponseBody(http.MethodPost, "/api/v1/gfx/mode", "", reqBody)
			if err != nil {
				return apiError("could not change mode", err)
			}

			var resp models.ModeResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("unable to unmarshal response body: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Mode: %s\n", resp.Mode)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", resp.RequiredAction.Description())
			return nil
		},
	}
}
