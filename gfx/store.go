package gfx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gitlab.com/gfxd/gpu-mode-service/db/repositories"
	"gitlab.com/gfxd/gpu-mode-service/models"
)

// ConfigRepository persists the saved mode and the vfio flag.
type ConfigRepository interface {
	Get(ctx context.Context) (models.GfxConfig, error)
	Save(ctx context.Context, data models.GfxConfig) (models.GfxConfig, error)
}

// ModeConfig is the mode configuration. SessionOverride is never persisted and is only ever
// Compute or Vfio.
type ModeConfig struct {
	SavedMode       models.GpuMode
	SessionOverride models.GpuMode
	VfioEnabled     bool
}

// Current is the override if one is set, otherwise the saved mode.
func (c ModeConfig) Current() models.GpuMode {
	if c.SessionOverride != "" {
		return c.SessionOverride
	}
	return c.SavedMode
}

// ConfigStore serializes access to the mode configuration and writes it through to the
// repository.
type ConfigStore struct {
	mu   sync.Mutex
	cfg  ModeConfig
	repo ConfigRepository
}

// LoadConfigStore reads the saved configuration. When nothing was saved yet, defaults are
// saved and used.
func LoadConfigStore(ctx context.Context, repo ConfigRepository, defaults ModeConfig) (*ConfigStore, error) {
	s := &ConfigStore{repo: repo}

	saved, err := repo.Get(ctx)
	switch {
	case errors.Is(err, repositories.NotFoundError):
		s.cfg = ModeConfig{SavedMode: defaults.SavedMode, VfioEnabled: defaults.VfioEnabled}
		if err := s.save(ctx); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("load mode config: %w", err)
	default:
		s.cfg = ModeConfig{SavedMode: saved.SavedMode, VfioEnabled: saved.VfioEnabled}
	}

	if !s.cfg.SavedMode.IsValid() {
		zlog.Sugar().Warnf("saved mode %q is not valid, using %s", s.cfg.SavedMode, defaults.SavedMode)
		s.cfg.SavedMode = defaults.SavedMode
	}
	return s, nil
}

func (s *ConfigStore) Snapshot() ModeConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetOverride sets the session-only mode. Modes other than Compute and Vfio clear it.
func (s *ConfigStore) SetOverride(mode models.GpuMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode.In(detachedModes...) {
		s.cfg.SessionOverride = mode
	} else {
		s.cfg.SessionOverride = ""
	}
}

func (s *ConfigStore) ClearOverride() {
	s.SetOverride("")
}

// Persist makes mode the saved mode and drops any session override.
func (s *ConfigStore) Persist(ctx context.Context, mode models.GpuMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.SavedMode = mode
	s.cfg.SessionOverride = ""
	return s.save(ctx)
}

func (s *ConfigStore) SetVfioEnabled(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.VfioEnabled = enabled
	return s.save(ctx)
}

func (s *ConfigStore) save(ctx context.Context) error {
	_, err := s.repo.Save(ctx, models.GfxConfig{SavedMode: s.cfg.SavedMode, VfioEnabled: s.cfg.VfioEnabled})
	if err != nil {
		return fmt.Errorf("%w: mode config: %v", ErrConfigWrite, err)
	}
	return nil
}
