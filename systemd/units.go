package systemd

import (
	"context"
	"errors"
	"fmt"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
)

// ErrJobFailed is returned when systemd finishes a unit job with a result other than "done".
var ErrJobFailed = errors.New("systemd job failed")

type unitConn interface {
	StopUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	RestartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	GetUnitPropertyContext(ctx context.Context, unit string, propertyName string) (*sddbus.Property, error)
	EnableUnitFilesContext(ctx context.Context, files []string, runtime bool, force bool) (bool, []sddbus.EnableUnitFileChange, error)
	DisableUnitFilesContext(ctx context.Context, files []string, runtime bool) ([]sddbus.DisableUnitFileChange, error)
	ReloadContext(ctx context.Context) error
	Close()
}

// Units starts, stops and (un)installs systemd units over the system bus.
type Units struct {
	conn unitConn
}

func NewUnits(ctx context.Context) (*Units, error) {
	conn, err := sddbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to systemd: %w", err)
	}
	return &Units{conn: conn}, nil
}

func (u *Units) Close() {
	u.conn.Close()
}

// StopUnit stops name and waits for the job to finish.
func (u *Units) StopUnit(ctx context.Context, name string) error {
	ch := make(chan string, 1)
	if _, err := u.conn.StopUnitContext(ctx, name, "replace", ch); err != nil {
		return fmt.Errorf("stop %s: %w", name, err)
	}
	return waitJob(ctx, "stop", name, ch)
}

// RestartUnit restarts name, starting it if it was stopped, and waits for the job to finish.
func (u *Units) RestartUnit(ctx context.Context, name string) error {
	ch := make(chan string, 1)
	if _, err := u.conn.RestartUnitContext(ctx, name, "replace", ch); err != nil {
		return fmt.Errorf("restart %s: %w", name, err)
	}
	return waitJob(ctx, "restart", name, ch)
}

// ActiveState returns the ActiveState property of name, e.g. "active" or "inactive".
func (u *Units) ActiveState(ctx context.Context, name string) (string, error) {
	prop, err := u.conn.GetUnitPropertyContext(ctx, name, "ActiveState")
	if err != nil {
		return "", fmt.Errorf("read state of %s: %w", name, err)
	}
	state, ok := prop.Value.Value().(string)
	if !ok {
		return "", fmt.Errorf("read state of %s: unexpected value %v", name, prop.Value)
	}
	return state, nil
}

func (u *Units) EnableUnit(ctx context.Context, name string) error {
	changed, _, err := u.conn.EnableUnitFilesContext(ctx, []string{name}, false, true)
	if err != nil {
		return fmt.Errorf("enable %s: %w", name, err)
	}
	if changed {
		zlog.Sugar().Debugf("enabled %s", name)
	}
	return u.conn.ReloadContext(ctx)
}

func (u *Units) DisableUnit(ctx context.Context, name string) error {
	changes, err := u.conn.DisableUnitFilesContext(ctx, []string{name}, false)
	if err != nil {
		return fmt.Errorf("disable %s: %w", name, err)
	}
	if len(changes) > 0 {
		zlog.Sugar().Debugf("disabled %s", name)
	}
	return u.conn.ReloadContext(ctx)
}

func waitJob(ctx context.Context, verb, name string, ch <-chan string) error {
	select {
	case result := <-ch:
		if result != "done" {
			return fmt.Errorf("%w: %s %s: %s", ErrJobFailed, verb, name, result)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s %s: %w", verb, name, ctx.Err())
	}
}
