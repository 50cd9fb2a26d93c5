package gfx

import (
	"context"
	"fmt"

	"gitlab.com/gfxd/gpu-mode-service/models"
)

// runWorker waits until no graphical session is left, then stops the display manager,
// applies the mode, restarts the display manager and saves the mode. It returns the mode
// that was applied.
func (c *Controller) runWorker(p *pendingTransition, previous <-chan struct{}) (models.GpuMode, error) {
	target := p.record.Target

	// a superseded worker may be past its point of no return
	if previous != nil {
		select {
		case <-previous:
		case <-p.ctx.Done():
			return "", ErrCancelled
		}
	}

	zlog.Sugar().Infof("waiting for graphical sessions to end before switching to %s", target)
	if err := c.waitForSessions(p.ctx); err != nil {
		return "", err
	}

	if !c.commit(p) {
		return "", ErrCancelled
	}
	zlog.Sugar().Info("all graphical user sessions ended, continuing")

	// the transition can no longer be cancelled
	ctx := context.Background()

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	dm := c.opts.DisplayManager
	if err := c.deps.Services.StopUnit(ctx, dm); err != nil {
		return "", fmt.Errorf("%w: stop %s: %v", ErrDisplayManager, dm, err)
	}
	if err := c.waitDisplayManager(ctx, "inactive"); err != nil {
		return "", err
	}

	cfg := c.deps.Store.Snapshot()
	mode := target
	if target.In(detachedModes...) && cfg.SavedMode.In(displayModes...) {
		zlog.Sugar().Warnf("saved mode is still %s, applying integrated instead of %s", cfg.SavedMode, target)
		mode = models.GpuModeIntegrated
	}

	if err := c.deps.Executor.Apply(ctx, mode, cfg.VfioEnabled, c.deps.Devices); err != nil {
		return mode, err
	}

	if err := c.deps.Services.RestartUnit(ctx, dm); err != nil {
		return mode, fmt.Errorf("%w: restart %s: %v", ErrDisplayManager, dm, err)
	}
	zlog.Sugar().Infof("%s restarted", dm)

	if err := c.deps.Store.Persist(ctx, mode); err != nil {
		return mode, err
	}
	c.modeChanged()

	zlog.Sugar().Infof("graphics mode changed to %s", mode)
	return mode, nil
}

func (c *Controller) waitForSessions(ctx context.Context) error {
	start := c.deps.Clock.Now()
	var previous []models.Session

	for first := true; ; first = false {
		sessions, err := c.deps.Sessions.ListSessions(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ErrCancelled
			}
			return fmt.Errorf("list sessions: %w", err)
		}
		if !first && !sameSessions(previous, sessions) {
			zlog.Sugar().Infof("sessions list changed: %d session(s)", len(sessions))
		}
		previous = sessions

		if !graphicalSessionsExist(sessions) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ErrCancelled
		default:
		}

		if c.deps.Clock.Since(start) > c.opts.SessionTimeout {
			zlog.Sugar().Warnf("graphical sessions still active after %s, giving up", c.opts.SessionTimeout)
			return ErrSessionWaitTimeout
		}

		select {
		case <-ctx.Done():
			return ErrCancelled
		case <-c.deps.Clock.After(c.opts.SessionPoll):
		}
	}
}

func (c *Controller) waitDisplayManager(ctx context.Context, state string) error {
	dm := c.opts.DisplayManager
	deadline := c.deps.Clock.Now().Add(c.opts.DisplayManagerTimeout)

	for {
		current, err := c.deps.Services.ActiveState(ctx, dm)
		if err != nil {
			return fmt.Errorf("%w: query %s: %v", ErrDisplayManager, dm, err)
		}
		if current == state {
			return nil
		}
		if !c.deps.Clock.Now().Before(deadline) {
			return fmt.Errorf("%w: %s still %s after %s", ErrDisplayManager, dm, current, c.opts.DisplayManagerTimeout)
		}
		<-c.deps.Clock.After(c.opts.DisplayManagerPoll)
	}
}

func graphicalSessionsExist(sessions []models.Session) bool {
	for _, s := range sessions {
		if s.IsGraphical() {
			return true
		}
	}
	return false
}

func sameSessions(a, b []models.Session) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
