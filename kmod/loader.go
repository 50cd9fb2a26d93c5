package kmod

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// Action is a module tool.
type Action string

const (
	Load   Action = "modprobe"
	Unload Action = "rmmod"
)

var (
	// ErrDriverAction matches every failed module action.
	ErrDriverAction = errors.New("driver action failed")
	// ErrAttemptsExhausted is a transient failure that persisted through every attempt.
	ErrAttemptsExhausted = errors.New("attempts exhausted")
	// ErrModuleBuiltin is returned when a built-in module was asked to unload.
	ErrModuleBuiltin = errors.New("module is built into the kernel")
	// ErrModuleMissing is returned when the module does not exist on the system.
	ErrModuleMissing = errors.New("module not found")
)

// ActionError reports a failed load or unload. It matches ErrDriverAction and its Kind.
type ActionError struct {
	Action   Action
	Module   string
	Attempts int
	Output   string
	Kind     error
}

func (e *ActionError) Error() string {
	msg := fmt.Sprintf("%s %s: %v after %d attempt(s)", e.Action, e.Module, e.Kind, e.Attempts)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *ActionError) Unwrap() []error {
	return []error{ErrDriverAction, e.Kind}
}

const (
	DefaultAttempts = 6
	DefaultBackoff  = 50 * time.Millisecond
)

// Loader loads and unloads kernel modules with a bounded number of attempts.
type Loader struct {
	runner   Runner
	clock    clock.Clock
	attempts int
	backoff  time.Duration
}

type Option func(*Loader)

func WithAttempts(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.attempts = n
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(l *Loader) {
		l.backoff = d
	}
}

func WithClock(c clock.Clock) Option {
	return func(l *Loader) {
		l.clock = c
	}
}

func NewLoader(runner Runner, opts ...Option) *Loader {
	l := &Loader{
		runner:   runner,
		clock:    clock.New(),
		attempts: DefaultAttempts,
		backoff:  DefaultBackoff,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) Load(ctx context.Context, module string) error {
	return l.do(ctx, Load, module)
}

func (l *Loader) Unload(ctx context.Context, module string) error {
	return l.do(ctx, Unload, module)
}

// LoadAll loads modules in order and stops at the first failure.
func (l *Loader) LoadAll(ctx context.Context, modules []string) error {
	for _, module := range modules {
		if err := l.Load(ctx, module); err != nil {
			return err
		}
	}
	return nil
}

// UnloadAll unloads modules in order and stops at the first failure.
func (l *Loader) UnloadAll(ctx context.Context, modules []string) error {
	for _, module := range modules {
		if err := l.Unload(ctx, module); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) do(ctx context.Context, action Action, module string) error {
	var output string

	for attempt := 1; attempt <= l.attempts; attempt++ {
		res, err := l.runner.Run(ctx, string(action), module)
		if err != nil {
			return fmt.Errorf("%w: %s %s: %v", ErrDriverAction, action, module, err)
		}
		if res.ExitCode == 0 {
			zlog.Sugar().Debugf("%s %s succeeded on attempt %d", action, module, attempt)
			return nil
		}

		output = strings.TrimSpace(string(res.Stderr))
		outcome, rule := Classify(module, res.Stderr)
		switch outcome {
		case Success:
			zlog.Sugar().Debugf("%s %s: %s", action, module, output)
			return nil
		case Ignored:
			zlog.Sugar().Warnf("%s %s: %s (rule %s), verify the module state manually", action, module, output, rule)
			return nil
		case Builtin:
			return &ActionError{Action: action, Module: module, Attempts: attempt, Output: output, Kind: ErrModuleBuiltin}
		case Missing:
			return &ActionError{Action: action, Module: module, Attempts: attempt, Output: output, Kind: ErrModuleMissing}
		}

		zlog.Sugar().Debugf("%s %s attempt %d/%d failed: %s", action, module, attempt, l.attempts, output)
		if attempt < l.attempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %s %s: %v", ErrDriverAction, action, module, ctx.Err())
			case <-l.clock.After(l.backoff):
			}
		}
	}

	return &ActionError{Action: action, Module: module, Attempts: l.attempts, Output: output, Kind: ErrAttemptsExhausted}
}
