package backend

import (
	"io"
	"os"
	"path/filepath"

	"github.com/coreos/go-systemd/v22/sdjournal"
	gonet "github.com/shirou/gopsutil/net"
)

// NetworkManager abstracts connections on local ports
type NetworkManager interface {
	GetConnections(kind string) ([]gonet.ConnectionStat, error)
}

// Utility abstracts calls to the daemon REST API
type Utility interface {
	ResponseBody(method, endpoint, query string, body []byte) ([]byte, error)
}

// Logger abstracts systemd journal entries
type Logger interface {
	AddMatch(match string) error
	Close() error
	GetEntry() (*sdjournal.JournalEntry, error)
	Next() (uint64, error)
}

// FileSystem abstracts Afero/os calls
type FileSystem interface {
	Create(name string) (FileHandler, error)
	MkdirAll(path string, perm os.FileMode) error
	OpenFile(name string, flag int, perm os.FileMode) (FileHandler, error)
	ReadFile(filename string) ([]byte, error)
	RemoveAll(path string) error
	Walk(root string, walkFn filepath.WalkFunc) error
}

// FileHandler abstracts file interfaces shared between "os" and "afero" so that both can be used interchangeably
type FileHandler interface {
	io.Closer
	io.Reader
	io.Writer
	Stat() (os.FileInfo, error)
	WriteString(s string) (int, error)
}
