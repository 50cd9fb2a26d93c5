package pci

import (
	"fmt"
	"strings"
)

// PCI base class for display controllers (VGA, 3D, other display).
const DisplayClass = 0x03

const (
	VendorAMD    uint16 = 0x1002
	VendorNvidia uint16 = 0x10de
	VendorIntel  uint16 = 0x8086
)

// Function is a single PCI function as seen in sysfs.
type Function struct {
	Address  string // domain:bus:slot.func, e.g. 0000:01:00.0
	VendorID uint16
	DeviceID uint16
	Class    uint32 // 24-bit class code
}

// Slot is the address without the function number.
func (f Function) Slot() string {
	if i := strings.LastIndex(f.Address, "."); i >= 0 {
		return f.Address[:i]
	}
	return f.Address
}

func (f Function) IsDisplay() bool {
	return f.Class>>16 == DisplayClass
}

// ID is the vendor:device pair in the form vfio-pci expects.
func (f Function) ID() string {
	return fmt.Sprintf("%04x:%04x", f.VendorID, f.DeviceID)
}

// GraphicsDevice is a display function together with every function that shares its slot
// (HDMI audio, USB-C controller and so on). Functions keep enumeration order.
type GraphicsDevice struct {
	ID        string
	Functions []Function
}

// Vendor is the vendor id of the display function.
func (d GraphicsDevice) Vendor() uint16 {
	for _, f := range d.Functions {
		if f.Address == d.ID {
			return f.VendorID
		}
	}
	return 0
}

// Inventory is the result of one enumeration, grouped by vendor.
type Inventory struct {
	AMD    []GraphicsDevice
	Intel  []GraphicsDevice
	Nvidia []GraphicsDevice
	Other  []GraphicsDevice
}

// All returns every device in the inventory.
func (i Inventory) All() []GraphicsDevice {
	all := make([]GraphicsDevice, 0, len(i.AMD)+len(i.Intel)+len(i.Nvidia)+len(i.Other))
	all = append(all, i.AMD...)
	all = append(all, i.Intel...)
	all = append(all, i.Nvidia...)
	all = append(all, i.Other...)
	return all
}

// VendorName is a short lowercase vendor label.
func VendorName(id uint16) string {
	switch id {
	case VendorAMD:
		return "amd"
	case VendorIntel:
		return "intel"
	case VendorNvidia:
		return "nvidia"
	default:
		return "other"
	}
}
