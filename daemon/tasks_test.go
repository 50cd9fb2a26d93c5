package daemon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/gfxd/gpu-mode-service/internal/background_tasks"
	"gitlab.com/gfxd/gpu-mode-service/models"
)

type fakePower struct {
	state models.PowerState
	err   error
}

func (f fakePower) PowerStatus() (models.PowerState, error) {
	return f.state, f.err
}

type recordingObserver struct {
	power  []models.PowerState
	pruned []int64
}

func (r *recordingObserver) ObservePower(state models.PowerState) {
	r.power = append(r.power, state)
}

func (r *recordingObserver) ObservePruned(n int64) {
	r.pruned = append(r.pruned, n)
}

type fakePruner struct {
	before time.Time
	n      int64
	err    error
}

func (f *fakePruner) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	f.before = t
	return f.n, f.err
}

func TestPowerSampleTask(t *testing.T) {
	obs := &recordingObserver{}
	trigger := background_tasks.NewEventTrigger()

	task := NewPowerSampleTask(fakePower{state: models.PowerSuspended}, obs, 5*time.Second, trigger)
	require.Len(t, task.Triggers, 2)
	assert.Same(t, trigger, task.Triggers[1])

	require.NoError(t, task.Function(context.Background()))
	assert.Equal(t, []models.PowerState{models.PowerSuspended}, obs.power)
}

func TestPowerSampleTaskReportsUnknownOnError(t *testing.T) {
	obs := &recordingObserver{}
	readErr := errors.New("permission denied")

	task := NewPowerSampleTask(fakePower{state: models.PowerUnknown, err: readErr}, obs, time.Second, nil)
	require.Len(t, task.Triggers, 1)

	err := task.Function(context.Background())
	assert.ErrorIs(t, err, readErr)
	assert.Equal(t, []models.PowerState{models.PowerUnknown}, obs.power)
}

func TestHistoryPruneTask(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC))
	pruner := &fakePruner{n: 3}
	obs := &recordingObserver{}

	task := NewHistoryPruneTask(pruner, obs, clk, "0 3 * * *", 24*time.Hour)
	require.NoError(t, task.Function(context.Background()))

	assert.Equal(t, time.Date(2026, 2, 28, 3, 0, 0, 0, time.UTC), pruner.before)
	assert.Equal(t, []int64{3}, obs.pruned)
}

func TestHistoryPruneTaskDisabled(t *testing.T) {
	pruner := &fakePruner{}
	obs := &recordingObserver{}

	task := NewHistoryPruneTask(pruner, obs, clock.NewMock(), "0 3 * * *", 0)
	require.NoError(t, task.Function(context.Background()))

	assert.True(t, pruner.before.IsZero())
	assert.Empty(t, obs.pruned)
}

func TestHistoryPruneTaskError(t *testing.T) {
	pruner := &fakePruner{err: errors.New("database is locked")}
	obs := &recordingObserver{}

	task := NewHistoryPruneTask(pruner, obs, clock.NewMock(), "0 3 * * *", time.Hour)
	err := task.Function(context.Background())

	assert.ErrorContains(t, err, "prune transitions: database is locked")
	assert.Empty(t, obs.pruned)
}
