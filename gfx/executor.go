package gfx

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"gitlab.com/gfxd/gpu-mode-service/models"
	"gitlab.com/gfxd/gpu-mode-service/pci"
	"gitlab.com/gfxd/gpu-mode-service/utils"
)

// Bus is the view of the PCI bus the executor works with. *pci.Bus implements it.
type Bus interface {
	Rescan() error
	Enumerate() (pci.Inventory, error)
	SetRuntimePMAuto(dev pci.GraphicsDevice) error
	Unbind(dev pci.GraphicsDevice) error
	Remove(dev pci.GraphicsDevice) error
}

// DriverLoader loads and unloads kernel modules. *kmod.Loader implements it.
type DriverLoader interface {
	Load(ctx context.Context, module string) error
	Unload(ctx context.Context, module string) error
	LoadAll(ctx context.Context, modules []string) error
	UnloadAll(ctx context.Context, modules []string) error
}

// ModeSetter applies a mode to the system.
type ModeSetter interface {
	Apply(ctx context.Context, mode models.GpuMode, vfioEnabled bool, devices []pci.GraphicsDevice) error
}

// Files are the generated configuration files.
type Files struct {
	XorgConf     string
	ModprobeConf string
}

// Executor performs the ordered system changes for a mode. Every step can be repeated
// safely, so a failed Apply is recovered by calling Apply again.
type Executor struct {
	fs      afero.Fs
	bus     Bus
	drivers DriverLoader
	files   Files
}

func NewExecutor(fs afero.Fs, bus Bus, drivers DriverLoader, files Files) *Executor {
	return &Executor{fs: fs, bus: bus, drivers: drivers, files: files}
}

// Apply sets the system up for mode. devices are the Nvidia devices to unbind, remove or
// hand to vfio-pci.
func (e *Executor) Apply(ctx context.Context, mode models.GpuMode, vfioEnabled bool, devices []pci.GraphicsDevice) error {
	if !mode.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if mode == models.GpuModeVfio && !vfioEnabled {
		return ErrVfioDisabled
	}

	zlog.Sugar().Infof("applying %s mode", mode)

	if err := e.prepareBus(); err != nil {
		return err
	}

	if mode.In(models.GpuModeNvidia, models.GpuModeHybrid, models.GpuModeIntegrated) {
		if err := e.writeFile(e.files.XorgConf, XorgConf(mode)); err != nil {
			return err
		}
	}

	if err := e.writeFile(e.files.ModprobeConf, ModprobeConf(mode, devices)); err != nil {
		return err
	}

	return e.driverActions(ctx, mode, vfioEnabled, devices)
}

// prepareBus rescans and sets runtime PM to auto on every Nvidia display device found.
func (e *Executor) prepareBus() error {
	if err := e.bus.Rescan(); err != nil {
		return err
	}

	inv, err := e.bus.Enumerate()
	if err != nil {
		return err
	}
	for _, dev := range inv.Nvidia {
		zlog.Sugar().Infof("%s: nvidia graphics, setting runtime pm to auto", dev.ID)
		if err := e.bus.SetRuntimePMAuto(dev); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) writeFile(path string, content []byte) error {
	zlog.Sugar().Infof("writing %s", path)
	if err := e.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConfigWrite, path, err)
	}
	if err := utils.WriteFileAtomic(e.fs, path, content, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConfigWrite, path, err)
	}
	return nil
}

func (e *Executor) driverActions(ctx context.Context, mode models.GpuMode, vfioEnabled bool, devices []pci.GraphicsDevice) error {
	switch mode {
	case models.GpuModeNvidia, models.GpuModeHybrid, models.GpuModeCompute:
		if vfioEnabled {
			if err := e.drivers.UnloadAll(ctx, VfioModules); err != nil {
				return err
			}
		}
		return e.drivers.LoadAll(ctx, NvidiaModules)

	case models.GpuModeVfio:
		if err := e.drivers.Unload(ctx, nouveauModule); err != nil {
			return err
		}
		if err := e.drivers.UnloadAll(ctx, NvidiaModules); err != nil {
			return err
		}
		for _, dev := range devices {
			if err := e.bus.Unbind(dev); err != nil {
				return err
			}
		}
		return e.drivers.Load(ctx, vfioPciModule)

	case models.GpuModeIntegrated:
		if err := e.drivers.Unload(ctx, nouveauModule); err != nil {
			return err
		}
		if vfioEnabled {
			if err := e.drivers.UnloadAll(ctx, VfioModules); err != nil {
				return err
			}
		}
		if err := e.drivers.UnloadAll(ctx, NvidiaModules); err != nil {
			return err
		}
		for _, dev := range devices {
			if err := e.bus.Unbind(dev); err != nil {
				return err
			}
		}
		for _, dev := range devices {
			if err := e.bus.Remove(dev); err != nil {
				return err
			}
		}
	}

	return nil
}
