// Package sysfstest builds fake /sys/bus/pci trees on an afero filesystem.
package sysfstest

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// Root is where the fake bus lives.
const Root = "/sys/bus/pci"

// Function describes one fake PCI function.
type Function struct {
	Address string
	Vendor  uint16
	Device  uint16
	Class   uint32
	Driver  string // bound driver, empty for none
}

// NewBus creates an empty bus with a rescan attribute.
func NewBus(fs afero.Fs) {
	must(fs.MkdirAll(filepath.Join(Root, "devices"), 0o755))
	must(afero.WriteFile(fs, filepath.Join(Root, "rescan"), nil, 0o200))
}

// Add writes the attributes of fn under devices/.
func Add(fs afero.Fs, fn Function) {
	dir := filepath.Join(Root, "devices", fn.Address)
	must(fs.MkdirAll(filepath.Join(dir, "power"), 0o755))
	must(afero.WriteFile(fs, filepath.Join(dir, "vendor"), []byte(fmt.Sprintf("0x%04x\n", fn.Vendor)), 0o444))
	must(afero.WriteFile(fs, filepath.Join(dir, "device"), []byte(fmt.Sprintf("0x%04x\n", fn.Device)), 0o444))
	must(afero.WriteFile(fs, filepath.Join(dir, "class"), []byte(fmt.Sprintf("0x%06x\n", fn.Class)), 0o444))
	must(afero.WriteFile(fs, filepath.Join(dir, "power", "control"), []byte("on\n"), 0o644))
	must(afero.WriteFile(fs, filepath.Join(dir, "remove"), nil, 0o200))
	if fn.Driver != "" {
		must(fs.MkdirAll(filepath.Join(dir, "driver"), 0o755))
		must(afero.WriteFile(fs, filepath.Join(dir, "driver", "unbind"), nil, 0o200))
	}
}

// HybridLaptop is an Intel iGPU plus an Nvidia dGPU with an HDMI audio function.
func HybridLaptop(fs afero.Fs) {
	NewBus(fs)
	Add(fs, Function{Address: "0000:00:02.0", Vendor: 0x8086, Device: 0x9a49, Class: 0x030000, Driver: "i915"})
	Add(fs, Function{Address: "0000:00:1f.3", Vendor: 0x8086, Device: 0xa0c8, Class: 0x040380, Driver: "snd_hda_intel"})
	Add(fs, Function{Address: "0000:01:00.0", Vendor: 0x10de, Device: 0x2520, Class: 0x030000, Driver: "nvidia"})
	Add(fs, Function{Address: "0000:01:00.1", Vendor: 0x10de, Device: 0x228e, Class: 0x040300, Driver: "snd_hda_intel"})
}

// Read returns the content of a file or "" when it is missing.
func Read(fs afero.Fs, path string) string {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return ""
	}
	return string(data)
}

// Attr returns the content of an attribute of the function at addr.
func Attr(fs afero.Fs, addr string, attr ...string) string {
	return Read(fs, filepath.Join(append([]string{Root, "devices", addr}, attr...)...))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
