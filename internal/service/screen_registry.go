package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cdrp/console-gateway/internal/dto"
	"github.com/cdrp/console-gateway/internal/models"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
)

// RegistryConfig holds the registry settings taken from configuration.
type RegistryConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	IdleTTL         time.Duration
}

// ScreenRegistry owns the mounted screens of every session.
type ScreenRegistry struct {
	cfg     RegistryConfig
	deps    ScreenDeps
	catalog []screenFactory
	byKind  map[models.ScreenKind]screenFactory

	mu      sync.RWMutex
	screens map[string]ScreenHandle

	logger *zap.Logger
	now    func() time.Time
}

// NewScreenRegistry builds a registry over the console's screen catalogue.
func NewScreenRegistry(cfg RegistryConfig, deps ScreenDeps) *ScreenRegistry {
	return newScreenRegistry(cfg, deps, defaultCatalog())
}

func newScreenRegistry(cfg RegistryConfig, deps ScreenDeps, catalog []screenFactory) *ScreenRegistry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = NewFormValidator()
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 10
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	byKind := make(map[models.ScreenKind]screenFactory, len(catalog))
	for _, f := range catalog {
		byKind[f.kind()] = f
	}
	return &ScreenRegistry{
		cfg:     cfg,
		deps:    deps,
		catalog: catalog,
		byKind:  byKind,
		screens: make(map[string]ScreenHandle),
		logger:  deps.Logger,
		now:     time.Now,
	}
}

// Open mounts a screen for session and runs its first fetch. When the fetch
// fails the screen is still returned, mounted, together with the error.
func (r *ScreenRegistry) Open(ctx context.Context, session models.Session, req dto.OpenScreenRequest) (ScreenHandle, error) {
	factory, ok := r.byKind[req.Kind]
	if !ok {
		return nil, appErrors.WithFields(map[string]string{"kind": fmt.Sprintf("Unknown screen %q", req.Kind)})
	}
	if !factory.canOpen(session) {
		return nil, appErrors.ErrForbidden
	}
	filter := strings.TrimSpace(req.Filter)
	if !factory.validFilter(filter) {
		return nil, appErrors.WithFields(map[string]string{"filter": "Unsupported filter value"})
	}

	pageSize := req.PageSize
	switch {
	case pageSize <= 0:
		pageSize = r.cfg.DefaultPageSize
	case pageSize > r.cfg.MaxPageSize:
		pageSize = r.cfg.MaxPageSize
	}

	id := uuid.NewString()
	screen := factory.build(id, session, pageSize, filter, r.deps)
	screen.Touch(r.now())

	r.mu.Lock()
	r.screens[id] = screen
	r.mu.Unlock()
	r.deps.Metrics.ScreenOpened()

	r.logger.Info("screen opened",
		zap.String("screen_id", id),
		zap.String("kind", string(req.Kind)),
		zap.String("user_id", session.UserID),
	)
	return screen, screen.Refresh(ctx, session)
}

// Get returns the screen id owned by session. Screens of other users are
// reported as missing.
func (r *ScreenRegistry) Get(session models.Session, id string) (ScreenHandle, error) {
	r.mu.RLock()
	screen, ok := r.screens[id]
	r.mu.RUnlock()
	if !ok || screen.OwnerUserID() != session.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "screen not found")
	}
	screen.Touch(r.now())
	return screen, nil
}

// Close unmounts a screen of session.
func (r *ScreenRegistry) Close(session models.Session, id string) error {
	screen, err := r.Get(session, id)
	if err != nil {
		return err
	}
	r.unmount(id, screen, "closed")
	return nil
}

func (r *ScreenRegistry) unmount(id string, screen ScreenHandle, reason string) {
	r.mu.Lock()
	current, ok := r.screens[id]
	if ok && current == screen {
		delete(r.screens, id)
	}
	r.mu.Unlock()
	if !ok || current != screen {
		return
	}
	screen.Close()
	r.deps.Metrics.ScreenClosed()
	r.logger.Debug("screen unmounted", zap.String("screen_id", id), zap.String("reason", reason))
}

// Sweep unmounts screens idle for longer than the idle TTL and returns how
// many were removed.
func (r *ScreenRegistry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.cfg.IdleTTL)
	r.mu.RLock()
	idle := make(map[string]ScreenHandle)
	for id, screen := range r.screens {
		if screen.LastSeen().Before(cutoff) {
			idle[id] = screen
		}
	}
	r.mu.RUnlock()

	for id, screen := range idle {
		r.unmount(id, screen, "idle")
	}
	if len(idle) > 0 {
		r.logger.Info("idle screens unmounted", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// Run sweeps idle screens every interval until ctx is cancelled.
func (r *ScreenRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(r.now())
		}
	}
}

// CloseAll unmounts every screen; used on shutdown.
func (r *ScreenRegistry) CloseAll() {
	r.mu.RLock()
	all := make(map[string]ScreenHandle, len(r.screens))
	for id, screen := range r.screens {
		all[id] = screen
	}
	r.mu.RUnlock()
	for id, screen := range all {
		r.unmount(id, screen, "shutdown")
	}
}

// Dashboard lists the screens the session role may open.
func (r *ScreenRegistry) Dashboard(session models.Session) dto.DashboardResponse {
	entries := make([]dto.DashboardEntry, 0, len(r.catalog))
	for _, f := range r.catalog {
		if entry, ok := f.entry(session); ok {
			entries = append(entries, entry)
		}
	}
	return dto.DashboardResponse{Role: session.Role, Screens: entries}
}

// Stats summarises the mounted screens.
func (r *ScreenRegistry) Stats() dto.RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := dto.RegistryStats{OpenScreens: len(r.screens), ByKind: map[string]int{}}
	owners := map[string]struct{}{}
	for _, screen := range r.screens {
		owners[screen.OwnerUserID()] = struct{}{}
		stats.ByKind[string(screen.Kind())]++
	}
	stats.Sessions = len(owners)
	return stats
}
