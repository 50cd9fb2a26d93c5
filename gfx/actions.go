package gfx

import "gitlab.com/gfxd/gpu-mode-service/models"

var (
	// modes that can be entered and left without restarting the graphical session
	sessionSafeModes = []models.GpuMode{models.GpuModeIntegrated, models.GpuModeVfio, models.GpuModeCompute}
	// modes where the dGPU drives or may drive a display
	displayModes = []models.GpuMode{models.GpuModeNvidia, models.GpuModeHybrid}
	// modes that detach the dGPU from the display stack
	detachedModes = []models.GpuMode{models.GpuModeCompute, models.GpuModeVfio}
)

// RequiredActionFor decides what a change from current to target needs.
// Reboot is never produced here; only a hardware mux change requires it.
func RequiredActionFor(current, target models.GpuMode) models.RequiredAction {
	if current.In(sessionSafeModes...) && target.In(sessionSafeModes...) {
		return models.ActionNone
	}
	if current.In(displayModes...) && target.In(detachedModes...) {
		return models.ActionMustBeIntegratedFirst
	}
	return models.ActionLogout
}
