package cmd

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"gitlab.com/gfxd/gpu-mode-service/cmd/backend"
	"gitlab.com/gfxd/gpu-mode-service/internal/config"
	"gitlab.com/gfxd/gpu-mode-service/models"
	"gitlab.com/gfxd/gpu-mode-service/utils"
)

const daemonUnit = "gfxd.service"

func listenDaemonPort(net backend.NetworkManager) (bool, error) {
	port := config.GetConfig().Rest.Port

	conns, err := net.GetConnections("tcp")
	if err != nil {
		return false, err
	}

	for _, conn := range conns {
		if conn.Status == "LISTEN" && uint32(port) == conn.Laddr.Port {
			return true, nil
		}
	}

	return false, nil
}

// isDaemonRunning is intended to be used as a PreRun hook and ensure that the daemon
// is running before command execution
func isDaemonRunning(net backend.NetworkManager) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		open, err := listenDaemonPort(net)
		if err != nil {
			return fmt.Errorf("unable to check daemon port: %w", err)
		}

		if !open {
			return fmt.Errorf("looks like gfxd is not running... \n\nSee: systemctl status %s", daemonUnit)
		}

		return nil
	}
}

// apiError turns a daemon answer into a CLI error, keeping the required action visible.
func apiError(what string, err error) error {
	var apiErr *utils.APIError
	if errors.As(err, &apiErr) {
		if apiErr.RequiredAction != "" && apiErr.RequiredAction != string(models.ActionNone) {
			action := models.RequiredAction(apiErr.RequiredAction)
			return fmt.Errorf("%s: %s (%s)", what, apiErr.Detail, action.Description())
		}
		return fmt.Errorf("%s: %s", what, apiErr)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// printStatus displays models.GfxStatus in a YAML-like format for better readability
func printStatus(w io.Writer, status *models.GfxStatus) {
	fmt.Fprintf(w, "mode: %s\n", status.Mode)
	fmt.Fprintf(w, "saved_mode: %s\n", status.SavedMode)
	if status.SessionOverride != "" {
		fmt.Fprintf(w, "session_override: %s\n", status.SessionOverride)
	}
	fmt.Fprintf(w, "vfio_enabled: %v\n", status.VfioEnabled)

	if status.Pending != nil {
		fmt.Fprintln(w, "pending:")
		fmt.Fprintf(w, "  target: %s\n", status.Pending.Target)
		fmt.Fprintf(w, "  required_action: %s\n", status.Pending.Action)
		fmt.Fprintf(w, "  since: %s\n", humanize.Time(status.Pending.CreatedAt))
	}

	if status.Last != nil {
		fmt.Fprintln(w, "last:")
		fmt.Fprintf(w, "  target: %s\n", status.Last.Target)
		fmt.Fprintf(w, "  status: %s\n", status.Last.Status)
		if status.Last.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", status.Last.Error)
		}
	}
}

func setupHistoryTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Requested", "From", "Target", "Applied", "Action", "Status", "Took"})
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	return table
}

func historyRow(t models.Transition, now time.Time) []string {
	took := ""
	if t.FinishedAt != nil {
		took = t.FinishedAt.Sub(t.CreatedAt).Round(time.Millisecond).String()
	}
	return []string{
		humanize.RelTime(t.CreatedAt, now, "ago", "from now"),
		string(t.From),
		string(t.Target),
		string(t.Applied),
		string(t.Action),
		string(t.Status),
		took,
	}
}

func setupDevicesTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Device", "Address", "ID", "Class", "Driver", "Name"})
	table.SetAutoMergeCellsByColumnIndex([]int{0})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// appendToFile opens filename and write string data to it
func appendToFile(fs backend.FileSystem, filename, data string) error {
	f, err := fs.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open %s file failed: %w", filename, err)
	}
	defer f.Close()

	_, err = f.WriteString(data)
	if err != nil {
		return fmt.Errorf("write string data to file %s failed: %w", filename, err)
	}

	return nil
}

func createTar(fs backend.FileSystem, tarGzPath string, sourceDir string) error {
	tarGzFile, err := fs.Create(tarGzPath)
	if err != nil {
		return fmt.Errorf("create %s file failed: %w", tarGzPath, err)
	}
	defer tarGzFile.Close()

	gzWriter := gzip.NewWriter(tarGzFile)
	defer gzWriter.Close()

	tarWriter := tar.NewWriter(gzWriter)
	defer tarWriter.Close()

	return fs.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if path == tarGzPath {
			return nil
		}

		header, err := tar.FileInfoHeader(info, info.Name())
		if err != nil {
			return err
		}

		header.Name = strings.TrimPrefix(strings.TrimPrefix(path, sourceDir), "/")
		if header.Name == "" {
			return nil
		}

		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}

		if info.Mode().IsRegular() {
			data, err := fs.ReadFile(path)
			if err != nil {
				return err
			}
			if _, err := tarWriter.Write(data); err != nil {
				return err
			}
		}
		return nil
	})
}
