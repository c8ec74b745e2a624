package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/cdrp/console-gateway/internal/models"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
)

// screenState is the state shared by the controllers of one screen. Every
// field is guarded by mu; backend calls are made with mu released.
type screenState[T models.Entity[T]] struct {
	mu sync.Mutex

	query   QueryState
	items   []T
	lastErr *appErrors.Error
	// viewErr is the last failed detail navigation; it outlives list fetches.
	viewErr *appErrors.Error

	issuedSeq  uint64
	settledSeq uint64
	closed     bool

	busy     map[string]struct{}
	mode     models.ViewMode
	selected *T

	// discardDraft drops the form draft; set by the detail controller.
	discardDraft func()
}

func newScreenState[T models.Entity[T]](query QueryState) *screenState[T] {
	return &screenState[T]{
		query: query,
		items: []T{},
		busy:  make(map[string]struct{}),
		mode:  models.ViewList,
	}
}

// indexOf returns the list position of id or -1. Callers hold mu.
func (st *screenState[T]) indexOf(id string) int {
	for i, item := range st.items {
		if item.EntityID() == id {
			return i
		}
	}
	return -1
}

// patch replaces the list row and the selected copy of entity. Callers hold mu.
func (st *screenState[T]) patch(entity T) {
	id := entity.EntityID()
	if i := st.indexOf(id); i >= 0 {
		st.items[i] = entity
	}
	if st.selected != nil && (*st.selected).EntityID() == id {
		selected := entity
		st.selected = &selected
	}
}

// remove drops a deleted entity from the list and the selection. Callers hold mu.
func (st *screenState[T]) remove(id string) {
	if i := st.indexOf(id); i >= 0 {
		items := make([]T, 0, len(st.items)-1)
		items = append(items, st.items[:i]...)
		st.items = append(items, st.items[i+1:]...)
	}
	st.query.ApplyTotal(st.query.Total() - 1)
	if st.selected != nil && (*st.selected).EntityID() == id {
		st.selected = nil
		st.mode = models.ViewList
		if st.discardDraft != nil {
			st.discardDraft()
		}
	}
}

// insertTop adds a created entity as the first row. Callers hold mu.
func (st *screenState[T]) insertTop(entity T) {
	items := make([]T, 0, len(st.items)+1)
	items = append(items, entity)
	st.items = append(items, st.items...)
	if limit := st.query.PageSize(); len(st.items) > limit {
		st.items = st.items[:limit]
	}
	st.query.ApplyTotal(st.query.Total() + 1)
}

// find returns the list row or the selected entity with id. Callers hold mu.
func (st *screenState[T]) find(id string) (T, bool) {
	if i := st.indexOf(id); i >= 0 {
		return st.items[i], true
	}
	if st.selected != nil && (*st.selected).EntityID() == id {
		return *st.selected, true
	}
	var zero T
	return zero, false
}

// Lister fetches one page of a collection.
type Lister[T any] interface {
	List(ctx context.Context, token string, q models.ListQuery, filterKey string, scope map[string]string) (models.ListResult[T], error)
}

// ListController issues list fetches for a screen and applies only the result
// of the most recently issued one.
type ListController[T models.Entity[T]] struct {
	st        *screenState[T]
	kind      string
	lister    Lister[T]
	filterKey string
	scope     map[string]string
	metrics   *MetricsService
	logger    *zap.Logger
}

func newListController[T models.Entity[T]](st *screenState[T], kind string, lister Lister[T], filterKey string, scope map[string]string, metrics *MetricsService, logger *zap.Logger) *ListController[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListController[T]{
		st:        st,
		kind:      kind,
		lister:    lister,
		filterKey: filterKey,
		scope:     scope,
		metrics:   metrics,
		logger:    logger,
	}
}

// Fetch loads the page described by the current query state. A result that
// arrives after a newer fetch was issued, or after the screen closed, is
// dropped without error. When the new total pushes the page out of range the
// page is clamped and fetched once more.
func (l *ListController[T]) Fetch(ctx context.Context, session models.Session) error {
	return l.fetch(ctx, session, true)
}

func (l *ListController[T]) fetch(ctx context.Context, session models.Session, allowReclamp bool) error {
	st := l.st
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return appErrors.ErrScreenClosed
	}
	st.issuedSeq++
	seq := st.issuedSeq
	q := st.query.Query()
	st.mu.Unlock()

	res, err := l.lister.List(ctx, session.Token, q, l.filterKey, l.scope)

	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		l.metrics.RecordFetch(l.kind, FetchUnmounted)
		return nil
	}
	if seq < st.issuedSeq {
		st.mu.Unlock()
		l.metrics.RecordFetch(l.kind, FetchStale)
		l.logger.Debug("stale list response discarded", zap.String("kind", l.kind), zap.Uint64("seq", seq))
		return nil
	}
	st.settledSeq = seq
	if err != nil {
		st.lastErr = appErrors.FromError(err)
		st.mu.Unlock()
		l.metrics.RecordFetch(l.kind, FetchError)
		return err
	}

	st.items = res.Items
	st.lastErr = nil
	clamped := st.query.ApplyTotal(res.Total(q.Search))
	st.mu.Unlock()
	l.metrics.RecordFetch(l.kind, FetchApplied)

	if clamped && allowReclamp {
		return l.fetch(ctx, session, false)
	}
	return nil
}

// Loading reports whether the most recently issued fetch is still in flight.
func (l *ListController[T]) Loading() bool {
	l.st.mu.Lock()
	defer l.st.mu.Unlock()
	return l.st.settledSeq < l.st.issuedSeq
}

// Items returns a copy of the current rows.
func (l *ListController[T]) Items() []T {
	l.st.mu.Lock()
	defer l.st.mu.Unlock()
	out := make([]T, len(l.st.items))
	copy(out, l.st.items)
	return out
}
