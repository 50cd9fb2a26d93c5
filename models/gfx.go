package models

import (
	"fmt"
	"strings"
	"time"
)

// GpuMode is the full system configuration target: driver stack, bus binding and display config.
type GpuMode string

const (
	GpuModeNvidia     GpuMode = "nvidia"
	GpuModeHybrid     GpuMode = "hybrid"
	GpuModeCompute    GpuMode = "compute"
	GpuModeVfio       GpuMode = "vfio"
	GpuModeIntegrated GpuMode = "integrated"
)

// GpuModes lists every mode in declaration order.
var GpuModes = []GpuMode{
	GpuModeNvidia,
	GpuModeHybrid,
	GpuModeCompute,
	GpuModeVfio,
	GpuModeIntegrated,
}

// ParseGpuMode accepts a mode name in any letter case.
func ParseGpuMode(s string) (GpuMode, error) {
	mode := GpuMode(strings.ToLower(strings.TrimSpace(s)))
	if !mode.IsValid() {
		return "", fmt.Errorf("unknown gpu mode %q", s)
	}
	return mode, nil
}

func (m GpuMode) IsValid() bool {
	for _, mode := range GpuModes {
		if m == mode {
			return true
		}
	}
	return false
}

// In reports whether m is one of modes.
func (m GpuMode) In(modes ...GpuMode) bool {
	for _, mode := range modes {
		if m == mode {
			return true
		}
	}
	return false
}

func (m GpuMode) String() string {
	return string(m)
}

// RequiredAction tells the caller what has to happen before a requested mode takes effect.
type RequiredAction string

const (
	ActionNone                  RequiredAction = "none"
	ActionLogout                RequiredAction = "logout"
	ActionReboot                RequiredAction = "reboot"
	ActionMustBeIntegratedFirst RequiredAction = "integrated"
)

// Description is the user facing sentence for the action.
func (a RequiredAction) Description() string {
	switch a {
	case ActionNone:
		return "Mode applied"
	case ActionLogout:
		return "Logout required to complete mode change"
	case ActionReboot:
		return "Reboot required to complete mode change"
	case ActionMustBeIntegratedFirst:
		return "You must switch to integrated mode first"
	default:
		return string(a)
	}
}

// PowerState is the runtime power state of the dedicated GPU.
type PowerState string

const (
	PowerActive    PowerState = "active"
	PowerSuspended PowerState = "suspended"
	PowerOff       PowerState = "off"
	PowerUnknown   PowerState = "unknown"
)

// TransitionStatus tracks a dispatched mode change.
type TransitionStatus string

const (
	TransitionPending   TransitionStatus = "pending"
	TransitionCompleted TransitionStatus = "completed"
	TransitionFailed    TransitionStatus = "failed"
	TransitionCancelled TransitionStatus = "cancelled"
)

// GfxConfig is the persisted part of the mode configuration. Every save adds a row and the
// latest row wins, so older rows form the change history.
type GfxConfig struct {
	Model
	SavedMode   GpuMode `json:"saved_mode"`
	VfioEnabled bool    `json:"vfio_enabled"`
}

// Transition records one dispatched mode change.
type Transition struct {
	Model
	From       GpuMode          `json:"from"`
	Target     GpuMode          `json:"target"`
	Applied    GpuMode          `json:"applied,omitempty"`
	Action     RequiredAction   `json:"required_action"`
	Status     TransitionStatus `json:"status"`
	Error      string           `json:"error,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// ModeRequest is the body of a mode change request.
type ModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// ModeResponse answers mode queries and mode change requests.
type ModeResponse struct {
	Mode           GpuMode        `json:"mode"`
	RequiredAction RequiredAction `json:"required_action,omitempty"`
	Message        string         `json:"message,omitempty"`
}

// PowerResponse answers power status queries.
type PowerResponse struct {
	Power PowerState `json:"power"`
}

// GfxStatus is a snapshot of the controller state.
type GfxStatus struct {
	Mode            GpuMode     `json:"mode"`
	SavedMode       GpuMode     `json:"saved_mode"`
	SessionOverride GpuMode     `json:"session_override,omitempty"`
	VfioEnabled     bool        `json:"vfio_enabled"`
	Pending         *Transition `json:"pending,omitempty"`
	Last            *Transition `json:"last,omitempty"`
}

// PciFunctionInfo describes one function of a graphics device.
type PciFunctionInfo struct {
	Address  string `json:"address"`
	VendorID string `json:"vendor_id"`
	DeviceID string `json:"device_id"`
	Class    string `json:"class"`
	Vendor   string `json:"vendor,omitempty"`
	Product  string `json:"product,omitempty"`
	Driver   string `json:"driver,omitempty"`
}

// GraphicsDeviceInfo describes a display controller and its sibling functions.
type GraphicsDeviceInfo struct {
	ID        string            `json:"id"`
	Vendor    string            `json:"vendor"`
	Functions []PciFunctionInfo `json:"functions"`
}

// Session is a login session as reported by the session manager.
type Session struct {
	ID    string `json:"id"`
	User  string `json:"user,omitempty"`
	Seat  string `json:"seat,omitempty"`
	Type  string `json:"type"`  // x11, wayland, mir, tty, unspecified
	Class string `json:"class"` // user, greeter, lock-screen, background
	State string `json:"state"` // online, active, closing
}

// IsGraphical reports whether s is a live graphical user session.
func (s Session) IsGraphical() bool {
	if s.Class != "user" {
		return false
	}
	switch s.Type {
	case "x11", "wayland", "mir":
	default:
		return false
	}
	return s.State == "online" || s.State == "active"
}
