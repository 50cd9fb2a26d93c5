package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"gitlab.com/gfxd/gpu-mode-service/cmd/backend"
	"gitlab.com/gfxd/gpu-mode-service/models"
)

func NewDevicesCmd(net backend.NetworkManager, utilsService backend.Utility) *cobra.Command {
	return &cobra.Command{
		Use:     "devices",
		Short:   "List graphics devices and their PCI functions",
		Args:    cobra.NoArgs,
		PreRunE: isDaemonRunning(net),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := utilsService.ResponseBody(http.MethodGet, "/api/v1/gfx/devices", "", nil)
			if err != nil {
				return apiError("could not list devices", err)
			}

			var devices []models.GraphicsDeviceInfo
			if err := json.Unmarshal(body, &devices); err != nil {
				return fmt.Errorf("unable to unmarshal response body: %w", err)
			}

			if len(devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No graphics devices found")
				return nil
			}

			table := setupDevicesTable(cmd.OutOrStdout())
			for _, dev := range devices {
				for _, fn := range dev.Functions {
					name := fn.Product
					if fn.Vendor != "" {
						name = fn.Vendor + " " + fn.Product
					}
					table.Append([]string{
						dev.Vendor + " " + dev.ID,
						fn.Address,
						fn.VendorID + ":" + fn.DeviceID,
						fn.Class,
						fn.Driver,
						name,
					})
				}
			}
			table.Render()
			return nil
		},
	}
}
