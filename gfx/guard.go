package gfx

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/spf13/afero"
)

// HardwareGuard reports whether a firmware-level GPU switch makes software switching unsafe.
type HardwareGuard interface {
	Engaged() (bool, error)
}

// MuxSwitch reads the dedicated-GPU mux attribute exposed by the platform driver.
// A missing attribute means the machine has no such switch.
type MuxSwitch struct {
	Fs   afero.Fs
	Path string
}

func (m MuxSwitch) Engaged() (bool, error) {
	data, err := afero.ReadFile(m.Fs, m.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(data)) == "1", nil
}
