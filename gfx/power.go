package gfx

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/afero"

	"gitlab.com/gfxd/gpu-mode-service/models"
)

// ReadPowerStatus maps the dGPU runtime_status attribute to a PowerState. A missing
// attribute means the device is off the bus.
func ReadPowerStatus(fsys afero.Fs, path string) (models.PowerState, error) {
	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.PowerOff, nil
	}
	if err != nil {
		return models.PowerUnknown, fmt.Errorf("read %s: %w", path, err)
	}

	switch strings.TrimSpace(string(data)) {
	case "active":
		return models.PowerActive, nil
	case "suspended":
		return models.PowerSuspended, nil
	case "off":
		return models.PowerOff, nil
	default:
		return models.PowerUnknown, nil
	}
}
