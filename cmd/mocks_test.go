package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/coreos/go-systemd/v22/sdjournal"
	gonet "github.com/shirou/gopsutil/net"
	"github.com/spf13/afero"

	"gitlab.com/gfxd/gpu-mode-service/cmd/backend"
	"gitlab.com/gfxd/gpu-mode-service/internal/config"
)

// ========= MOCK IMPLEMENTATIONS ==========

type MockUtilsService struct {
	responses map[string][]byte
	errors    map[string]error
	calls     []mockCall
}

type mockCall struct {
	method, endpoint, query string
	body                    []byte
}

// SetResponseFor is a helper method. It sets a mock response for a specific method and endpoint
func (mu *MockUtilsService) SetResponseFor(method, endpoint string, resp []byte) {
	if mu.responses == nil {
		mu.responses = make(map[string][]byte)
	}
	mu.responses[method+":"+endpoint] = resp
}

// SetErrorFor makes a method and endpoint fail with err
func (mu *MockUtilsService) SetErrorFor(method, endpoint string, err error) {
	if mu.errors == nil {
		mu.errors = make(map[string]error)
	}
	mu.errors[method+":"+endpoint] = err
}

func (mu *MockUtilsService) ResponseBody(method, endpoint, query string, body []byte) ([]byte, error) {
	mu.calls = append(mu.calls, mockCall{method: method, endpoint: endpoint, query: query, body: body})

	key := method + ":" + endpoint
	if err, ok := mu.errors[key]; ok {
		return nil, err
	}

	response, ok := mu.responses[key]
	if !ok {
		return nil, fmt.Errorf("no mock set for method: %s, endpoint: %s", method, endpoint)
	}
	return response, nil
}

func (mu *MockUtilsService) lastCall() mockCall {
	if len(mu.calls) == 0 {
		return mockCall{}
	}
	return mu.calls[len(mu.calls)-1]
}

type MockConnection struct {
	conns []gonet.ConnectionStat
}

func (mc *MockConnection) GetConnections(kind string) ([]gonet.ConnectionStat, error) {
	return mc.conns, nil
}

type MockOS struct {
	Fs afero.Fs
}

func (mo *MockOS) Create(name string) (backend.FileHandler, error) {
	return mo.Fs.Create(name)
}

func (mo *MockOS) MkdirAll(path string, perm os.FileMode) error {
	return mo.Fs.MkdirAll(path, perm)
}

func (mo *MockOS) OpenFile(name string, flag int, perm os.FileMode) (backend.FileHandler, error) {
	return mo.Fs.OpenFile(name, flag, perm)
}

func (mo *MockOS) ReadFile(filename string) ([]byte, error) {
	return afero.ReadFile(mo.Fs, filename)
}

func (mo *MockOS) RemoveAll(path string) error {
	return mo.Fs.RemoveAll(path)
}

func (mo *MockOS) Walk(root string, walkFn filepath.WalkFunc) error {
	return afero.Walk(mo.Fs, root, walkFn)
}

type MockLogger struct {
	entries []sdjournal.JournalEntry
	next    int
	badRead int // 1-based index of an unreadable entry, 0 for none
	match   string
}

func (ml *MockLogger) AddMatch(match string) error {
	ml.match = match
	if match != fmt.Sprintf("_SYSTEMD_UNIT=%s", daemonUnit) {
		return fmt.Errorf("invalid match for systemd unit")
	}
	return nil
}

func (ml *MockLogger) Close() error {
	return nil
}

func (ml *MockLogger) GetEntry() (*sdjournal.JournalEntry, error) {
	if ml.next == ml.badRead {
		return nil, fmt.Errorf("entry corrupted: unable to read")
	}
	return &ml.entries[ml.next-1], nil
}

func (ml *MockLogger) Next() (uint64, error) {
	if ml.next >= len(ml.entries) {
		return 0, nil
	}
	ml.next++
	return 1, nil
}

// ========= HELPERS ==========

func GetMockConn(open bool) []gonet.ConnectionStat {
	port := config.GetConfig().Rest.Port

	conns := []gonet.ConnectionStat{
		{
			Laddr:  gonet.Addr{Port: uint32(port)},
			Status: "CLOSE",
		},
	}
	if open {
		conns[0].Status = "LISTEN"
	}
	return conns
}
