package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"gitlab.com/gfxd/gpu-mode-service/models"
)

func TestModeChanged(t *testing.T) {
	m := NewMetrics()

	m.ModeChanged(models.GpuModeHybrid)
	m.ModeChanged(models.GpuModeIntegrated)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.mode.WithLabelValues("integrated")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.mode.WithLabelValues("hybrid")))
}

func TestTransitionFinished(t *testing.T) {
	m := NewMetrics()

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Second)
	m.TransitionFinished(models.Transition{
		Model:      models.Model{CreatedAt: start},
		Target:     models.GpuModeIntegrated,
		Status:     models.TransitionCompleted,
		FinishedAt: &end,
	})
	m.TransitionFinished(models.Transition{Target: models.GpuModeVfio, Status: models.TransitionFailed})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("integrated", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("vfio", "failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.transitionDuration))
}

func TestPowerAndHandler(t *testing.T) {
	m := NewMetrics()
	m.ObservePower(models.PowerSuspended)
	m.ObservePruned(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.power.WithLabelValues("suspended")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.pruned))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gfxd_dgpu_power_state{state="suspended"} 1`)
}
