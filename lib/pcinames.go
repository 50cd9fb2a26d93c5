package lib

import (
	"fmt"

	"github.com/jaypipes/ghw"

	"gitlab.com/gfxd/gpu-mode-service/models"
	"gitlab.com/gfxd/gpu-mode-service/pci"
)

// Name is the vendor and product of a PCI function as found in the pci.ids database.
type Name struct {
	Vendor  string
	Product string
}

// PciNames maps PCI addresses to names.
type PciNames map[string]Name

// LoadPciNames reads names for every PCI function on the system.
func LoadPciNames() (PciNames, error) {
	info, err := ghw.PCI()
	if err != nil {
		return nil, fmt.Errorf("read pci database: %w", err)
	}

	names := make(PciNames, len(info.Devices))
	for _, dev := range info.Devices {
		var n Name
		if dev.Vendor != nil {
			n.Vendor = dev.Vendor.Name
		}
		if dev.Product != nil {
			n.Product = dev.Product.Name
		}
		names[dev.Address] = n
	}
	return names, nil
}

// DriverReader reports the kernel driver bound to a PCI function.
type DriverReader interface {
	Driver(addr string) string
}

// Describe turns devices into their API form. Missing names are left empty.
func Describe(devices []pci.GraphicsDevice, drivers DriverReader, names PciNames) []models.GraphicsDeviceInfo {
	infos := make([]models.GraphicsDeviceInfo, 0, len(devices))
	for _, dev := range devices {
		info := models.GraphicsDeviceInfo{
			ID:        dev.ID,
			Vendor:    pci.VendorName(dev.Vendor()),
			Functions: make([]models.PciFunctionInfo, 0, len(dev.Functions)),
		}
		for _, fn := range dev.Functions {
			name := names[fn.Address]
			info.Functions = append(info.Functions, models.PciFunctionInfo{
				Address:  fn.Address,
				VendorID: fmt.Sprintf("%04x", fn.VendorID),
				DeviceID: fmt.Sprintf("%04x", fn.DeviceID),
				Class:    fmt.Sprintf("%06x", fn.Class),
				Vendor:   name.Vendor,
				Product:  name.Product,
				Driver:   drivers.Driver(fn.Address),
			})
		}
		infos = append(infos, info)
	}
	return infos
}
