package cmd

import (
	"gitlab.com/gfxd/gpu-mode-service/cmd/backend"
)

var (
	networkService    = &backend.Network{}
	fileSystemService = backend.NewOS()
	utilsService      = &backend.Utils{}
)

func init() {
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(NewModeCmd(networkService, utilsService))
	rootCmd.AddCommand(NewPowerCmd(networkService, utilsService))
	rootCmd.AddCommand(NewStatusCmd(networkService, utilsService))
	rootCmd.AddCommand(NewDevicesCmd(networkService, utilsService))
	rootCmd.AddCommand(NewHistoryCmd(networkService, utilsService))
	rootCmd.AddCommand(NewVfioCmd(networkService, utilsService))
	rootCmd.AddCommand(NewLogCmd(networkService, fileSystemService, backend.OpenJournal))
	rootCmd.AddCommand(versionCmd)
}
