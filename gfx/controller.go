package gfx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"gitlab.com/gfxd/gpu-mode-service/models"
	"gitlab.com/gfxd/gpu-mode-service/pci"
)

// SessionLister lists login sessions. systemd.Logind implements it.
type SessionLister interface {
	ListSessions(ctx context.Context) ([]models.Session, error)
}

// ServiceManager controls systemd units. systemd.Units implements it.
type ServiceManager interface {
	StopUnit(ctx context.Context, name string) error
	RestartUnit(ctx context.Context, name string) error
	ActiveState(ctx context.Context, name string) (string, error)
	EnableUnit(ctx context.Context, name string) error
	DisableUnit(ctx context.Context, name string) error
}

// TransitionRecorder keeps the transition history.
type TransitionRecorder interface {
	Create(ctx context.Context, data models.Transition) (models.Transition, error)
	Update(ctx context.Context, id interface{}, data models.Transition) (models.Transition, error)
}

// Observer is told about finished transitions and mode changes.
type Observer interface {
	TransitionFinished(t models.Transition)
	ModeChanged(mode models.GpuMode)
}

// Options are the unit names, paths and timings the controller works with.
type Options struct {
	DisplayManager        string
	FallbackService       string
	PowerStatusPath       string
	SessionPoll           time.Duration
	SessionTimeout        time.Duration
	DisplayManagerPoll    time.Duration
	DisplayManagerTimeout time.Duration
}

// DefaultOptions match a stock systemd desktop.
func DefaultOptions() Options {
	return Options{
		DisplayManager:        "display-manager.service",
		FallbackService:       "nvidia-fallback.service",
		PowerStatusPath:       "/sys/bus/pci/devices/0000:01:00.0/power/runtime_status",
		SessionPoll:           100 * time.Millisecond,
		SessionTimeout:        180 * time.Second,
		DisplayManagerPoll:    250 * time.Millisecond,
		DisplayManagerTimeout: 3 * time.Second,
	}
}

// Dependencies are the collaborators of a Controller. Guard, History, Observer, Fs and Clock
// are optional.
type Dependencies struct {
	Store    *ConfigStore
	Executor ModeSetter
	Devices  []pci.GraphicsDevice
	Sessions SessionLister
	Services ServiceManager
	Guard    HardwareGuard
	History  TransitionRecorder
	Observer Observer
	Fs       afero.Fs
	Clock    clock.Clock
}

type pendingTransition struct {
	record models.Transition
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller decides what a mode change requires and carries it out. It owns the pending
// transition; at most one exists at a time and a newer request always replaces it.
type Controller struct {
	deps Dependencies
	opts Options

	// applyMu serializes executor runs between request handlers and the worker.
	applyMu sync.Mutex

	mu      sync.Mutex
	pending *pendingTransition
	last    *models.Transition

	wg sync.WaitGroup
}

func NewController(deps Dependencies, opts Options) *Controller {
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	return &Controller{deps: deps, opts: opts}
}

// Mode is the mode in effect: the session override if set, otherwise the saved mode.
func (c *Controller) Mode() models.GpuMode {
	return c.deps.Store.Snapshot().Current()
}

// Devices are the Nvidia devices found at startup.
func (c *Controller) Devices() []pci.GraphicsDevice {
	return c.deps.Devices
}

func (c *Controller) PowerStatus() (models.PowerState, error) {
	return ReadPowerStatus(c.deps.Fs, c.opts.PowerStatusPath)
}

func (c *Controller) Status() models.GfxStatus {
	cfg := c.deps.Store.Snapshot()
	status := models.GfxStatus{
		Mode:            cfg.Current(),
		SavedMode:       cfg.SavedMode,
		SessionOverride: cfg.SessionOverride,
		VfioEnabled:     cfg.VfioEnabled,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		rec := c.pending.record
		status.Pending = &rec
	}
	if c.last != nil {
		rec := *c.last
		status.Last = &rec
	}
	return status
}

func (c *Controller) SetVfioEnabled(ctx context.Context, enabled bool) error {
	return c.deps.Store.SetVfioEnabled(ctx, enabled)
}

// SetMode requests a change to target and returns the action it requires. Logout changes
// return at once and finish in the background once every graphical session has ended.
func (c *Controller) SetMode(ctx context.Context, target models.GpuMode) (models.RequiredAction, error) {
	if !target.IsValid() {
		return "", &RequestError{Target: target, Err: ErrInvalidMode}
	}

	cfg := c.deps.Store.Snapshot()
	action := RequiredActionFor(cfg.SavedMode, target)

	if c.deps.Guard != nil {
		engaged, err := c.deps.Guard.Engaged()
		if err != nil {
			zlog.Sugar().Warnf("could not read hardware gpu switch: %v", err)
		}
		if engaged {
			return action, &RequestError{Target: target, Action: action, Err: ErrHardwareGuard}
		}
	}

	if target == models.GpuModeVfio && !cfg.VfioEnabled {
		return action, &RequestError{Target: target, Action: action, Err: ErrVfioDisabled}
	}

	c.cancelPending()

	switch action {
	case models.ActionLogout:
		zlog.Sugar().Infof("change to %s requires a logout to complete", target)
		c.startWorker(cfg.SavedMode, target)
		return action, nil

	case models.ActionMustBeIntegratedFirst:
		zlog.Sugar().Infof("change to %s requires integrated mode first", target)
		return action, &RequestError{Target: target, Action: action, Err: ErrMustBeIntegratedFirst}

	default:
		return c.applyNow(ctx, target, action)
	}
}

// Reload applies the current mode again. It runs once at startup so the system matches the
// saved mode after a reboot.
func (c *Controller) Reload(ctx context.Context) error {
	cfg := c.deps.Store.Snapshot()
	mode := cfg.Current()

	c.applyMu.Lock()
	err := c.deps.Executor.Apply(ctx, mode, cfg.VfioEnabled, c.deps.Devices)
	c.applyMu.Unlock()
	if err != nil {
		return fmt.Errorf("reload %s mode: %w", mode, err)
	}

	c.toggleFallbackService(ctx, mode)
	c.modeChanged()
	zlog.Sugar().Infof("reloaded gfx mode: %s", mode)
	return nil
}

// Wait blocks until no worker is running.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels a pending transition that has not reached the display manager yet and waits
// for the worker to exit.
func (c *Controller) Close() {
	c.cancelPending()
	c.wg.Wait()
}

// toggleFallbackService enables the nouveau fallback unit for Nvidia mode only. The unit is
// optional, so failures are logged and ignored.
func (c *Controller) toggleFallbackService(ctx context.Context, mode models.GpuMode) {
	unit := c.opts.FallbackService
	if unit == "" || c.deps.Services == nil {
		return
	}

	var err error
	if mode == models.GpuModeNvidia {
		zlog.Sugar().Infof("enabling %s", unit)
		err = c.deps.Services.EnableUnit(ctx, unit)
	} else {
		zlog.Sugar().Infof("disabling %s", unit)
		err = c.deps.Services.DisableUnit(ctx, unit)
	}
	if err != nil {
		zlog.Sugar().Warnf("%s: %v (ignore if the unit does not exist)", unit, err)
	}
}

// applyNow runs the executor for a change that needs no logout. The action is decided again
// under applyMu, since a worker may have saved another mode while the request waited.
func (c *Controller) applyNow(ctx context.Context, target models.GpuMode, action models.RequiredAction) (models.RequiredAction, error) {
	c.applyMu.Lock()

	cfg := c.deps.Store.Snapshot()
	if current := RequiredActionFor(cfg.SavedMode, target); current != action {
		c.applyMu.Unlock()
		zlog.Sugar().Infof("saved mode changed to %s, change to %s now requires %s", cfg.SavedMode, target, current)
		err := ErrModeChanged
		if current == models.ActionMustBeIntegratedFirst {
			err = ErrMustBeIntegratedFirst
		}
		return current, &RequestError{Target: target, Action: current, Err: err}
	}
	if target == models.GpuModeVfio && !cfg.VfioEnabled {
		c.applyMu.Unlock()
		return action, &RequestError{Target: target, Action: action, Err: ErrVfioDisabled}
	}

	if action == models.ActionReboot {
		zlog.Sugar().Infof("change to %s requires a reboot", target)
	} else {
		zlog.Sugar().Infof("change to %s does not require a logout", target)
	}

	rec := c.begin(cfg.SavedMode, target, action)
	err := c.deps.Executor.Apply(context.WithoutCancel(ctx), target, cfg.VfioEnabled, c.deps.Devices)
	if err == nil && action == models.ActionNone {
		c.deps.Store.SetOverride(target)
	}
	c.applyMu.Unlock()

	c.finish(rec, target, err)
	if err != nil {
		return action, &RequestError{Target: target, Action: action, Err: err}
	}
	zlog.Sugar().Infof("graphics mode changed to %s", target)
	if action == models.ActionNone {
		c.modeChanged()
	}
	return action, nil
}

func (c *Controller) cancelPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil && c.pending.ctx.Err() == nil {
		zlog.Sugar().Infof("cancelling pending change to %s", c.pending.record.Target)
		c.pending.cancel()
	}
}

func (c *Controller) startWorker(from, target models.GpuMode) {
	rec := c.begin(from, target, models.ActionLogout)
	ctx, cancel := context.WithCancel(context.Background())
	p := &pendingTransition{record: rec, ctx: ctx, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	var previous <-chan struct{}
	if c.pending != nil {
		c.pending.cancel()
		previous = c.pending.done
	}
	c.pending = p
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(p.done)
		defer cancel()

		applied, err := c.runWorker(p, previous)

		c.mu.Lock()
		if c.pending == p {
			c.pending = nil
		}
		c.mu.Unlock()

		c.finish(p.record, applied, err)
	}()
}

// commit is the point of no return for p. It fails once p was cancelled or replaced; after
// it succeeds the transition always runs to completion or failure.
func (c *Controller) commit(p *pendingTransition) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return p.ctx.Err() == nil && c.pending == p
}

func (c *Controller) begin(from, target models.GpuMode, action models.RequiredAction) models.Transition {
	rec := models.Transition{
		Model:  models.Model{ID: uuid.NewString(), CreatedAt: c.deps.Clock.Now()},
		From:   from,
		Target: target,
		Action: action,
		Status: models.TransitionPending,
	}
	if c.deps.History != nil {
		if _, err := c.deps.History.Create(context.Background(), rec); err != nil {
			zlog.Sugar().Warnf("could not record transition %s: %v", rec.ID, err)
		}
	}
	return rec
}

func (c *Controller) finish(rec models.Transition, applied models.GpuMode, err error) {
	now := c.deps.Clock.Now()
	rec.FinishedAt = &now
	rec.Applied = applied

	switch {
	case errors.Is(err, ErrCancelled):
		rec.Status = models.TransitionCancelled
		rec.Applied = ""
		zlog.Sugar().Infof("change to %s was cancelled", rec.Target)
	case err != nil:
		rec.Status = models.TransitionFailed
		rec.Error = err.Error()
		zlog.Sugar().Errorf("change to %s failed: %v", rec.Target, err)
	default:
		rec.Status = models.TransitionCompleted
	}

	c.mu.Lock()
	c.last = &rec
	c.mu.Unlock()

	if c.deps.History != nil {
		if _, err := c.deps.History.Update(context.Background(), rec.ID, rec); err != nil {
			zlog.Sugar().Warnf("could not update transition %s: %v", rec.ID, err)
		}
	}
	if c.deps.Observer != nil {
		c.deps.Observer.TransitionFinished(rec)
	}
}

func (c *Controller) modeChanged() {
	if c.deps.Observer != nil {
		c.deps.Observer.ModeChanged(c.Mode())
	}
}
