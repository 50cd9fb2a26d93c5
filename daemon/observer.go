package daemon

import (
	"gitlab.com/gfxd/gpu-mode-service/models"
	"gitlab.com/gfxd/gpu-mode-service/telemetry"
)

// modeObserver records transitions and mode changes as metrics and calls modeChanged after
// every mode change, so the dGPU power state is sampled right after a switch.
type modeObserver struct {
	metrics     *telemetry.Metrics
	modeChanged func()
}

func (o *modeObserver) TransitionFinished(t models.Transition) {
	o.metrics.TransitionFinished(t)
}

func (o *modeObserver) ModeChanged(mode models.GpuMode) {
	o.metrics.ModeChanged(mode)
	if o.modeChanged != nil {
		o.modeChanged()
	}
}
