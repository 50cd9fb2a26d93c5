package daemon

import (
	"gitlab.com/gfxd/gpu-mode-service/lib"
	"gitlab.com/gfxd/gpu-mode-service/models"
	"gitlab.com/gfxd/gpu-mode-service/pci"
)

// DeviceDescriber describes the graphics devices found at startup. Bound drivers are read
// on every call since mode changes rebind them.
type DeviceDescriber struct {
	devices []pci.GraphicsDevice
	drivers lib.DriverReader
	names   lib.PciNames
}

func NewDeviceDescriber(devices []pci.GraphicsDevice, drivers lib.DriverReader, names lib.PciNames) *DeviceDescriber {
	return &DeviceDescriber{devices: devices, drivers: drivers, names: names}
}

func (d *DeviceDescriber) Describe() []models.GraphicsDeviceInfo {
	return lib.Describe(d.devices, d.drivers, d.names)
}
