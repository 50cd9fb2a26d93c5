package kmod

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name   string
	module string
}

// scriptedRunner replays results in order and repeats the last one.
type scriptedRunner struct {
	results []Result
	err     error
	calls   []call
}

func (r *scriptedRunner) Run(_ context.Context, name string, args ...string) (Result, error) {
	r.calls = append(r.calls, call{name: name, module: args[0]})
	if r.err != nil {
		return Result{}, r.err
	}
	i := len(r.calls) - 1
	if i >= len(r.results) {
		i = len(r.results) - 1
	}
	return r.results[i], nil
}

func failures(n int, stderr string) []Result {
	results := make([]Result, n)
	for i := range results {
		results[i] = Result{ExitCode: 1, Stderr: []byte(stderr)}
	}
	return results
}

func newTestLoader(r Runner) *Loader {
	return NewLoader(r, WithBackoff(time.Millisecond))
}

func TestLoadSucceedsOnLastAttempt(t *testing.T) {
	runner := &scriptedRunner{results: append(failures(5, "modprobe: ERROR: device busy"), Result{})}

	err := newTestLoader(runner).Load(context.Background(), "nvidia")
	assert.NoError(t, err)
	assert.Len(t, runner.calls, 6)
	assert.Equal(t, "modprobe", runner.calls[0].name)
}

func TestLoadExhaustsAttempts(t *testing.T) {
	runner := &scriptedRunner{results: failures(6, "modprobe: ERROR: device busy")}

	err := newTestLoader(runner).Load(context.Background(), "nvidia")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDriverAction)
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Len(t, runner.calls, 6)

	var actionErr *ActionError
	require.True(t, errors.As(err, &actionErr))
	assert.Equal(t, "nvidia", actionErr.Module)
	assert.Equal(t, 6, actionErr.Attempts)
}

func TestUnloadNotLoadedIsSuccess(t *testing.T) {
	runner := &scriptedRunner{results: failures(1, "rmmod: ERROR: Module nouveau is not currently loaded")}

	err := newTestLoader(runner).Unload(context.Background(), "nouveau")
	assert.NoError(t, err)
	assert.Len(t, runner.calls, 1)
	assert.Equal(t, "rmmod", runner.calls[0].name)
}

func TestUnloadBuiltinIsFatal(t *testing.T) {
	runner := &scriptedRunner{results: failures(1, "rmmod: ERROR: Module vfio is builtin.")}

	err := newTestLoader(runner).Unload(context.Background(), "vfio")
	assert.ErrorIs(t, err, ErrDriverAction)
	assert.ErrorIs(t, err, ErrModuleBuiltin)
	assert.NotErrorIs(t, err, ErrModuleMissing)
	assert.Len(t, runner.calls, 1)
}

func TestLoadMissingIsFatal(t *testing.T) {
	runner := &scriptedRunner{results: failures(1, "modprobe: FATAL: Module vfio-pci not found in directory /lib/modules/6.5.0")}

	err := newTestLoader(runner).Load(context.Background(), "vfio-pci")
	assert.ErrorIs(t, err, ErrModuleMissing)
	assert.Len(t, runner.calls, 1)
}

func TestPermissionDeniedIsNotFatal(t *testing.T) {
	runner := &scriptedRunner{results: failures(1, "rmmod: ERROR: could not remove module nvidia: Permission denied")}

	assert.NoError(t, newTestLoader(runner).Unload(context.Background(), "nvidia"))
	assert.Len(t, runner.calls, 1)
}

func TestToolThatCannotStart(t *testing.T) {
	runner := &scriptedRunner{err: errors.New("exec: \"modprobe\": executable file not found in $PATH")}

	err := newTestLoader(runner).Load(context.Background(), "nvidia")
	assert.ErrorIs(t, err, ErrDriverAction)
	assert.Len(t, runner.calls, 1)
}

func TestUnloadAllStopsAtFirstFailure(t *testing.T) {
	runner := &scriptedRunner{results: failures(1, "rmmod: ERROR: Module nvidia_drm is builtin.")}

	err := newTestLoader(runner).UnloadAll(context.Background(), []string{"nvidia_drm", "nvidia"})
	assert.ErrorIs(t, err, ErrModuleBuiltin)
	assert.Len(t, runner.calls, 1)
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	runner := &scriptedRunner{results: failures(6, "modprobe: ERROR: device busy")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewLoader(runner, WithBackoff(time.Hour)).Load(ctx, "nvidia")
	assert.ErrorIs(t, err, ErrDriverAction)
	assert.Len(t, runner.calls, 1)
}
