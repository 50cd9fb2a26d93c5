package gfx

import (
	"errors"
	"fmt"

	"gitlab.com/gfxd/gpu-mode-service/kmod"
	"gitlab.com/gfxd/gpu-mode-service/models"
	"gitlab.com/gfxd/gpu-mode-service/pci"
)

var (
	ErrDeviceEnumeration     = pci.ErrEnumeration
	ErrPciOperation          = pci.ErrOperation
	ErrDriverAction          = kmod.ErrDriverAction
	ErrConfigWrite           = errors.New("config write failed")
	ErrDisplayManager        = errors.New("display manager action failed")
	ErrSessionWaitTimeout    = errors.New("timed out waiting for graphical sessions to end")
	ErrHardwareGuard         = errors.New("dedicated gpu hardware switch is engaged")
	ErrVfioDisabled          = errors.New("vfio mode is not enabled")
	ErrMustBeIntegratedFirst = errors.New("switch to integrated mode first")
	ErrInvalidMode           = errors.New("invalid gpu mode")
	ErrModeChanged           = errors.New("saved mode changed while the request was waiting")
	ErrCancelled             = errors.New("mode change was cancelled")
)

// RequestError is a refused or failed mode change together with the action that applies
// to it, so the caller can correct course.
type RequestError struct {
	Target models.GpuMode
	Action models.RequiredAction
	Err    error
}

func (e *RequestError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("set mode %s: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("set mode %s (required action: %s): %v", e.Target, e.Action, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
