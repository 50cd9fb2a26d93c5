package pci

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

var (
	// ErrEnumeration means the PCI device list could not be read.
	ErrEnumeration = errors.New("cannot read PCI device list")
	// ErrOperation covers failed rescan, unbind, remove and power policy writes.
	ErrOperation = errors.New("pci operation failed")
)

// Bus is a handle to the PCI root in sysfs, normally /sys/bus/pci.
type Bus struct {
	fs   afero.Fs
	root string
}

func NewBus(fs afero.Fs, root string) *Bus {
	return &Bus{fs: fs, root: root}
}

func (b *Bus) devicePath(addr string, attr ...string) string {
	return filepath.Join(append([]string{b.root, "devices", addr}, attr...)...)
}

// Rescan asks the kernel to probe the bus again. Removed devices reappear afterwards.
func (b *Bus) Rescan() error {
	if err := writeAttr(b.fs, filepath.Join(b.root, "rescan"), "1"); err != nil {
		return fmt.Errorf("%w: rescan: %v", ErrOperation, err)
	}
	return nil
}

// Functions lists every PCI function on the bus in address order.
func (b *Bus) Functions() ([]Function, error) {
	entries, err := afero.ReadDir(b.fs, filepath.Join(b.root, "devices"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnumeration, err)
	}

	functions := make([]Function, 0, len(entries))
	for _, entry := range entries {
		fn, err := b.readFunction(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrEnumeration, entry.Name(), err)
		}
		functions = append(functions, fn)
	}
	return functions, nil
}

func (b *Bus) readFunction(addr string) (Function, error) {
	fn := Function{Address: addr}

	vendor, err := readHex(b.fs, b.devicePath(addr, "vendor"))
	if err != nil {
		return fn, err
	}
	device, err := readHex(b.fs, b.devicePath(addr, "device"))
	if err != nil {
		return fn, err
	}
	class, err := readHex(b.fs, b.devicePath(addr, "class"))
	if err != nil {
		return fn, err
	}

	fn.VendorID = uint16(vendor)
	fn.DeviceID = uint16(device)
	fn.Class = uint32(class)
	return fn, nil
}

// Enumerate classifies every display-class function by vendor and attaches its siblings.
func (b *Bus) Enumerate() (Inventory, error) {
	var inv Inventory

	functions, err := b.Functions()
	if err != nil {
		return inv, err
	}

	for _, fn := range functions {
		if !fn.IsDisplay() {
			continue
		}

		dev := GraphicsDevice{ID: fn.Address}
		for _, sibling := range functions {
			if sibling.Slot() == fn.Slot() {
				dev.Functions = append(dev.Functions, sibling)
			}
		}

		switch fn.VendorID {
		case VendorAMD:
			inv.AMD = append(inv.AMD, dev)
		case VendorIntel:
			inv.Intel = append(inv.Intel, dev)
		case VendorNvidia:
			inv.Nvidia = append(inv.Nvidia, dev)
		default:
			inv.Other = append(inv.Other, dev)
		}
	}

	return inv, nil
}

// SetRuntimePMAuto sets power/control to "auto" on every function of dev. Unbinding or
// removing a runtime-suspended device otherwise fails or hangs.
func (b *Bus) SetRuntimePMAuto(dev GraphicsDevice) error {
	var errs error
	for _, fn := range dev.Functions {
		path := b.devicePath(fn.Address, "power", "control")
		if !exists(b.fs, path) {
			continue
		}
		if err := writeAttr(b.fs, path, "auto"); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %v", fn.Address, err))
		}
	}
	if errs != nil {
		return fmt.Errorf("%w: runtime pm: %v", ErrOperation, errs)
	}
	return nil
}

// Driver is the name of the driver bound to addr, or "" if none is bound.
func (b *Bus) Driver(addr string) string {
	path := b.devicePath(addr, "driver")
	if lr, ok := b.fs.(afero.LinkReader); ok {
		if target, err := lr.ReadlinkIfPossible(path); err == nil {
			return filepath.Base(target)
		}
	}
	if exists(b.fs, filepath.Join(path, "unbind")) {
		return "unknown"
	}
	return ""
}

// Unbind detaches every function of dev from its driver. The device stays on the bus.
func (b *Bus) Unbind(dev GraphicsDevice) error {
	var errs error
	for _, fn := range dev.Functions {
		path := b.devicePath(fn.Address, "driver", "unbind")
		if !exists(b.fs, path) {
			continue
		}
		zlog.Sugar().Debugf("unbinding %s from %s", fn.Address, b.Driver(fn.Address))
		if err := writeAttr(b.fs, path, fn.Address); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %v", fn.Address, err))
		}
	}
	if errs != nil {
		return fmt.Errorf("%w: unbind %s: %v", ErrOperation, dev.ID, errs)
	}
	return nil
}

// Remove detaches every function of dev from the bus. Only a rescan brings it back.
func (b *Bus) Remove(dev GraphicsDevice) error {
	var errs error
	for _, fn := range dev.Functions {
		path := b.devicePath(fn.Address, "remove")
		if !exists(b.fs, path) {
			continue
		}
		zlog.Sugar().Debugf("removing %s from the bus", fn.Address)
		if err := writeAttr(b.fs, path, "1"); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %v", fn.Address, err))
		}
	}
	if errs != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrOperation, dev.ID, errs)
	}
	return nil
}

// writeAttr writes to an existing sysfs attribute without creating it.
func writeAttr(fs afero.Fs, path, value string) error {
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err = f.WriteString(value); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readHex(fs afero.Fs, path string) (uint64, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimPrefix(strings.TrimSpace(string(data)), "0x")
	return strconv.ParseUint(s, 16, 32)
}

func exists(fs afero.Fs, path string) bool {
	ok, err := afero.Exists(fs, path)
	return err == nil && ok
}
