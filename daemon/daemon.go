package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"gitlab.com/gfxd/gpu-mode-service/api"
	"gitlab.com/gfxd/gpu-mode-service/db"
	repositories_gorm "gitlab.com/gfxd/gpu-mode-service/db/repositories/gorm"
	"gitlab.com/gfxd/gpu-mode-service/gfx"
	"gitlab.com/gfxd/gpu-mode-service/internal/background_tasks"
	"gitlab.com/gfxd/gpu-mode-service/internal/config"
	"gitlab.com/gfxd/gpu-mode-service/internal/tracing"
	"gitlab.com/gfxd/gpu-mode-service/kmod"
	"gitlab.com/gfxd/gpu-mode-service/lib"
	"gitlab.com/gfxd/gpu-mode-service/models"
	"gitlab.com/gfxd/gpu-mode-service/pci"
	"gitlab.com/gfxd/gpu-mode-service/systemd"
	"gitlab.com/gfxd/gpu-mode-service/telemetry"
)

const (
	maxRunningTasks = 2
	shutdownTimeout = 5 * time.Second
)

// Run starts the daemon: it applies the saved mode, serves the REST API on the loopback
// interface and runs the background tasks until ctx is cancelled.
func Run(ctx context.Context) error {
	config.LoadConfig()
	cfg := config.GetConfig()

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return errors.Wrap(err, "init tracing")
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			zlog.Sugar().Warnf("tracer shutdown: %v", err)
		}
	}()

	database, err := db.ConnectDatabase(cfg.General.DatabasePath)
	if err != nil {
		return errors.Wrap(err, "connect database")
	}
	configRepo := repositories_gorm.NewGfxConfigRepository(database)
	transitionRepo := repositories_gorm.NewTransitionRepository(database)

	clk := clock.New()
	if err := SanityCheck(ctx, transitionRepo, clk.Now()); err != nil {
		zlog.Sugar().Warnf("sanity check: %v", err)
	}

	fs := afero.NewOsFs()
	bus := pci.NewBus(fs, cfg.Paths.PciRoot)
	if err := bus.Rescan(); err != nil {
		zlog.Sugar().Warnf("pci rescan: %v", err)
	}
	inv, err := bus.Enumerate()
	if err != nil {
		return errors.Wrap(err, "enumerate graphics devices")
	}
	for _, dev := range inv.All() {
		zlog.Sugar().Infof("%s: %s graphics with %d function(s)", dev.ID, pci.VendorName(dev.Vendor()), len(dev.Functions))
	}

	loader := kmod.NewLoader(kmod.ExecRunner{},
		kmod.WithAttempts(cfg.Timing.DriverAttempts),
		kmod.WithBackoff(cfg.Timing.DriverBackoff),
	)
	executor := gfx.NewExecutor(fs, bus, loader, gfx.Files{
		XorgConf:     cfg.Paths.XorgConf,
		ModprobeConf: cfg.Paths.ModprobeConf,
	})

	store, err := gfx.LoadConfigStore(ctx, configRepo, gfx.ModeConfig{SavedMode: models.GpuModeHybrid})
	if err != nil {
		return errors.Wrap(err, "load mode configuration")
	}

	units, err := systemd.NewUnits(ctx)
	if err != nil {
		return errors.Wrap(err, "connect to systemd")
	}
	defer units.Close()

	logind, err := systemd.NewLogind()
	if err != nil {
		return errors.Wrap(err, "connect to logind")
	}
	defer logind.Close()

	metrics := telemetry.NewMetrics()
	powerTrigger := background_tasks.NewEventTrigger()

	controller := gfx.NewController(gfx.Dependencies{
		Store:    store,
		Executor: executor,
		Devices:  inv.Nvidia,
		Sessions: logind,
		Services: units,
		Guard:    gfx.MuxSwitch{Fs: fs, Path: cfg.Paths.MuxSwitch},
		History:  transitionRepo,
		Observer: &modeObserver{metrics: metrics, modeChanged: powerTrigger.Fire},
		Fs:       fs,
		Clock:    clk,
	}, controllerOptions(cfg))
	defer controller.Close()

	if err := controller.Reload(ctx); err != nil {
		zlog.Sugar().Errorf("could not apply %s mode at startup: %v", controller.Mode(), err)
	}

	scheduler := background_tasks.NewScheduler(maxRunningTasks, clk)
	scheduler.AddTask(NewPowerSampleTask(controller, metrics, cfg.Tasks.PowerSampleInterval, powerTrigger))
	scheduler.AddTask(NewHistoryPruneTask(transitionRepo, metrics, clk, cfg.Tasks.HistoryPruneCron, cfg.General.HistoryRetention))
	scheduler.Start(ctx)
	defer scheduler.Stop()

	router := api.SetupRouter(api.RouterDeps{
		Gfx:     controller,
		Devices: NewDeviceDescriber(inv.All(), bus, loadNames()),
		History: transitionRepo,
		Metrics: metrics.Handler(),
	})

	return serve(ctx, &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Rest.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	})
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		zlog.Sugar().Infof("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "rest server")
	case <-ctx.Done():
	}

	zlog.Sugar().Info("shutting down rest server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "rest server shutdown")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "rest server")
	}
	return nil
}

func controllerOptions(cfg *config.Config) gfx.Options {
	return gfx.Options{
		DisplayManager:        cfg.Services.DisplayManager,
		FallbackService:       cfg.Services.NvidiaFallback,
		PowerStatusPath:       cfg.Paths.PowerStatus,
		SessionPoll:           cfg.Timing.SessionPoll,
		SessionTimeout:        cfg.Timing.SessionTimeout,
		DisplayManagerPoll:    cfg.Timing.DisplayManagerPoll,
		DisplayManagerTimeout: cfg.Timing.DisplayManagerTimeout,
	}
}

func loadNames() lib.PciNames {
	names, err := lib.LoadPciNames()
	if err != nil {
		zlog.Sugar().Warnf("pci names unavailable: %v", err)
		return lib.PciNames{}
	}
	return names
}
