//go:build linux

package cmd

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"path/filepath"
	"testing"

	"github.com/coreos/go-systemd/v22/sdjournal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/gfxd/gpu-mode-service/cmd/backend"
)

func journalOf(ml *MockLogger) func() (backend.Logger, error) {
	return func() (backend.Logger, error) { return ml, nil }
}

func Test_LogLinuxCmdSuccess(t *testing.T) {
	mockConn := &MockConnection{conns: GetMockConn(true)}
	fs := afero.NewMemMapFs()
	mockOS := &MockOS{Fs: fs}

	// two entries share a boot, the third is unreadable
	mockJournal := &MockLogger{
		entries: []sdjournal.JournalEntry{
			{Fields: map[string]string{"_BOOT_ID": "a", "MESSAGE": "mode hybrid applied"}, RealtimeTimestamp: 1},
			{Fields: map[string]string{"_BOOT_ID": "a", "MESSAGE": "logout requested"}, RealtimeTimestamp: 2},
			{Fields: map[string]string{"_BOOT_ID": "b", "MESSAGE": "corrupt"}, RealtimeTimestamp: 3},
			{Fields: map[string]string{"_BOOT_ID": "c", "MESSAGE": "mode integrated applied"}, RealtimeTimestamp: 4},
		},
		badRead: 3,
	}

	buf := new(bytes.Buffer)
	cmd := NewLogCmd(mockConn, mockOS, journalOf(mockJournal))
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	assert := assert.New(t)
	require.NoError(t, cmd.Execute())

	expected := filepath.Join(logDir, tarGzName)
	assert.Contains(buf.String(), expected)
	assert.Contains(buf.String(), "entry corrupted")
	assert.Equal("_SYSTEMD_UNIT=gfxd.service", mockJournal.match)

	exists, err := afero.DirExists(fs, filepath.Join(logDir, daemonLogs))
	require.NoError(t, err)
	assert.False(exists)

	f, err := fs.Open(expected)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = string(data)
	}

	assert.Equal(map[string]string{
		"daemon_log.1": "1: mode hybrid applied\n2: logout requested\n",
		"daemon_log.2": "4: mode integrated applied\n",
	}, files)
}

func Test_LogLinuxCmdNoEntries(t *testing.T) {
	mockConn := &MockConnection{conns: GetMockConn(true)}
	fs := afero.NewMemMapFs()

	buf := new(bytes.Buffer)
	cmd := NewLogCmd(mockConn, &MockOS{Fs: fs}, journalOf(&MockLogger{}))
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	assert.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No log entries")

	exists, err := afero.Exists(fs, filepath.Join(logDir, tarGzName))
	assert.NoError(t, err)
	assert.False(t, exists)
}
