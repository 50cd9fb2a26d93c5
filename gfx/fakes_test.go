package gfx

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"gitlab.com/gfxd/gpu-mode-service/db/repositories"
	"gitlab.com/gfxd/gpu-mode-service/models"
	"gitlab.com/gfxd/gpu-mode-service/pci"
)

var errFake = errors.New("fake failure")

// eventLog collects the calls of several fakes in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions []models.Session
	err      error
}

func (f *fakeSessions) ListSessions(ctx context.Context) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Session(nil), f.sessions...), f.err
}

func (f *fakeSessions) set(sessions ...models.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = sessions
}

var desktopSession = models.Session{ID: "2", User: "alice", Seat: "seat0", Type: "wayland", Class: "user", State: "active"}

type fakeServices struct {
	mu      sync.Mutex
	log     *eventLog
	calls   []string
	states  map[string]string
	stopErr error
}

func (f *fakeServices) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	f.log.add(call)
}

func (f *fakeServices) setState(name, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.states == nil {
		f.states = map[string]string{}
	}
	f.states[name] = state
}

func (f *fakeServices) StopUnit(ctx context.Context, name string) error {
	f.record("stop " + name)
	if f.stopErr != nil {
		return f.stopErr
	}
	f.setState(name, "inactive")
	return nil
}

func (f *fakeServices) RestartUnit(ctx context.Context, name string) error {
	f.record("restart " + name)
	f.setState(name, "active")
	return nil
}

func (f *fakeServices) ActiveState(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if state, ok := f.states[name]; ok {
		return state, nil
	}
	return "active", nil
}

func (f *fakeServices) EnableUnit(ctx context.Context, name string) error {
	f.record("enable " + name)
	return nil
}

func (f *fakeServices) DisableUnit(ctx context.Context, name string) error {
	f.record("disable " + name)
	return nil
}

func (f *fakeServices) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeExecutor struct {
	mu      sync.Mutex
	log     *eventLog
	applied []models.GpuMode
	err     error
}

func (f *fakeExecutor) Apply(ctx context.Context, mode models.GpuMode, vfioEnabled bool, devices []pci.GraphicsDevice) error {
	f.mu.Lock()
	f.applied = append(f.applied, mode)
	f.mu.Unlock()
	f.log.add("apply " + mode.String())
	return f.err
}

func (f *fakeExecutor) modes() []models.GpuMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.GpuMode(nil), f.applied...)
}

// gatedExecutor holds its first Apply until release is closed.
type gatedExecutor struct {
	fakeExecutor
	entered chan models.GpuMode
	release chan struct{}
	once    sync.Once
}

func newGatedExecutor(log *eventLog) *gatedExecutor {
	return &gatedExecutor{
		fakeExecutor: fakeExecutor{log: log},
		entered:      make(chan models.GpuMode, 1),
		release:      make(chan struct{}),
	}
}

func (g *gatedExecutor) Apply(ctx context.Context, mode models.GpuMode, vfioEnabled bool, devices []pci.GraphicsDevice) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		g.entered <- mode
		<-g.release
	}
	return g.fakeExecutor.Apply(ctx, mode, vfioEnabled, devices)
}

// fakeDrivers records driver actions as "load m", "unload m", "loadall a,b" and "unloadall a,b".
type fakeDrivers struct {
	mu     sync.Mutex
	ops    []string
	failOn string
}

func (f *fakeDrivers) do(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
	if f.failOn != "" && op == f.failOn {
		return errFake
	}
	return nil
}

func (f *fakeDrivers) Load(ctx context.Context, module string) error {
	return f.do("load " + module)
}

func (f *fakeDrivers) Unload(ctx context.Context, module string) error {
	return f.do("unload " + module)
}

func (f *fakeDrivers) LoadAll(ctx context.Context, modules []string) error {
	return f.do("loadall " + strings.Join(modules, ","))
}

func (f *fakeDrivers) UnloadAll(ctx context.Context, modules []string) error {
	return f.do("unloadall " + strings.Join(modules, ","))
}

func (f *fakeDrivers) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

type fakeConfigRepo struct {
	mu    sync.Mutex
	log   *eventLog
	saved *models.GfxConfig
	saves int
	err   error
}

func (f *fakeConfigRepo) Get(ctx context.Context) (models.GfxConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		return models.GfxConfig{}, repositories.NotFoundError
	}
	return *f.saved, nil
}

func (f *fakeConfigRepo) Save(ctx context.Context, data models.GfxConfig) (models.GfxConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return data, f.err
	}
	f.saves++
	f.saved = &data
	f.log.add("persist " + data.SavedMode.String())
	return data, nil
}

func (f *fakeConfigRepo) current() models.GfxConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		return models.GfxConfig{}
	}
	return *f.saved
}

type fakeHistory struct {
	mu      sync.Mutex
	order   []string
	records map[string]models.Transition
}

func (f *fakeHistory) Create(ctx context.Context, data models.Transition) (models.Transition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records == nil {
		f.records = map[string]models.Transition{}
	}
	f.order = append(f.order, data.ID)
	f.records[data.ID] = data
	return data, nil
}

func (f *fakeHistory) Update(ctx context.Context, id interface{}, data models.Transition) (models.Transition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, _ := id.(string)
	if _, ok := f.records[key]; !ok {
		return data, repositories.NotFoundError
	}
	f.records[key] = data
	return data, nil
}

// all returns the transitions in creation order.
func (f *fakeHistory) all() []models.Transition {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Transition, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.records[id])
	}
	return out
}

type fakeObserver struct {
	mu       sync.Mutex
	finished []models.Transition
	modes    []models.GpuMode
}

func (f *fakeObserver) TransitionFinished(t models.Transition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, t)
}

func (f *fakeObserver) ModeChanged(mode models.GpuMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modes = append(f.modes, mode)
}

func (f *fakeObserver) changes() []models.GpuMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.GpuMode(nil), f.modes...)
}

type fakeGuard struct {
	engaged bool
	err     error
}

func (f fakeGuard) Engaged() (bool, error) {
	return f.engaged, f.err
}

// waitWorkers moves the mock clock forward by step until every worker has exited.
func waitWorkers(t *testing.T, c *Controller, clk *clock.Mock, step time.Duration) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()

	for i := 0; i < 200; i++ {
		select {
		case <-done:
			return
		default:
		}
		clk.Add(step)
		select {
		case <-done:
			return
		case <-time.After(5 * time.Millisecond):
		}
	}
	t.Fatal("worker did not finish")
}
