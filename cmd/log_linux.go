//go:build linux

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"gitlab.com/gfxd/gpu-mode-service/cmd/backend"
)

const (
	logDir     = "/tmp/gfxd-log"
	tarGzName  = "gfxd-log.tar.gz"
	daemonLogs = "daemon-log"
)

func NewLogCmd(net backend.NetworkManager, fs backend.FileSystem, openJournal func() (backend.Logger, error)) *cobra.Command {
	return &cobra.Command{
		Use:     "log",
		Short:   "Gather all daemon logs into a tarball",
		Args:    cobra.NoArgs,
		PreRunE: isDaemonRunning(net),
		RunE: func(cmd *cobra.Command, args []string) error {
			daemonLogDir := filepath.Join(logDir, daemonLogs)

			fmt.Fprintln(cmd.OutOrStdout(), "Collecting logs...")

			if err := fs.MkdirAll(daemonLogDir, 0777); err != nil {
				return fmt.Errorf("cannot create directory: %w", err)
			}

			j, err := openJournal()
			if err != nil {
				return fmt.Errorf("cannot open journal: %w", err)
			}
			defer j.Close()

			if err := j.AddMatch(fmt.Sprintf("_SYSTEMD_UNIT=%s", daemonUnit)); err != nil {
				return fmt.Errorf("cannot add journal match: %w", err)
			}

			bootIDs := map[string]int{}
			entries := 0

			for {
				c, err := j.Next()
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error reading next journal entry: %v\n", err)
					break
				}
				if c == 0 {
					break
				}

				entry, err := j.GetEntry()
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error getting journal entry: %v\n", err)
					continue
				}

				bootID := entry.Fields["_BOOT_ID"]
				if _, ok := bootIDs[bootID]; !ok {
					bootIDs[bootID] = len(bootIDs) + 1
				}

				logData := fmt.Sprintf("%d: %s\n", entry.RealtimeTimestamp, entry.Fields["MESSAGE"])
				logFile := filepath.Join(daemonLogDir, fmt.Sprintf("daemon_log.%d", bootIDs[bootID]))
				if err := appendToFile(fs, logFile, logData); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error writing log file for boot %d: %v\n", bootIDs[bootID], err)
					continue
				}
				entries++
			}

			if entries == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No log entries")
				return fs.RemoveAll(daemonLogDir)
			}

			tarGzFile := filepath.Join(logDir, tarGzName)
			if err := createTar(fs, tarGzFile, daemonLogDir); err != nil {
				return fmt.Errorf("cannot create tar archive: %w", err)
			}

			if err := fs.RemoveAll(daemonLogDir); err != nil {
				return fmt.Errorf("cannot remove %s: %w", daemonLogDir, err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), tarGzFile)
			return nil
		},
	}
}
