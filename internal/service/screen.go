package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cdrp/console-gateway/internal/dto"
	"github.com/cdrp/console-gateway/internal/models"
	"github.com/cdrp/console-gateway/internal/repository"
	"github.com/cdrp/console-gateway/pkg/backend"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
	"github.com/cdrp/console-gateway/pkg/export"
)

// ScreenHandle is a mounted screen as seen by the registry and the handlers.
type ScreenHandle interface {
	ID() string
	Kind() models.ScreenKind
	OwnerUserID() string
	LastSeen() time.Time
	Touch(now time.Time)

	Refresh(ctx context.Context, s models.Session) error
	Search(ctx context.Context, s models.Session, term string) error
	Filter(ctx context.Context, s models.Session, value string) error
	GoToPage(ctx context.Context, s models.Session, page int) error
	NextPage(ctx context.Context, s models.Session) error
	PreviousPage(ctx context.Context, s models.Session) error

	Mutate(ctx context.Context, s models.Session, entityID string, op models.Operation) error

	View(ctx context.Context, s models.Session, entityID string) error
	Back() error
	Edit(s models.Session) error
	Create(s models.Session) error
	Cancel() error
	UpdateDraft(fields map[string]json.RawMessage) error
	UpdateDraftForm(values map[string]string) error
	AttachImage(upload *backend.FileUpload) error
	Save(ctx context.Context, s models.Session) error

	Snapshot(s models.Session) dto.ScreenView
	Dataset() export.Dataset
	Close()
	Closed() bool
}

// ScreenDeps are the collaborators shared by every screen.
type ScreenDeps struct {
	Client    repository.BackendDoer
	Cache     *CacheService
	Audit     *AuditService
	Metrics   *MetricsService
	Scheduler Scheduler
	Validator *FormValidator
	Logger    *zap.Logger
}

// ScreenConfig describes one entry of the screen catalogue: which collection
// it lists, who may use it and how its rows and forms look.
type ScreenConfig[T models.Entity[T], D any] struct {
	Kind         models.ScreenKind
	Title        string
	Collection   string
	Scope        map[string]string
	FilterKey    string
	FilterValues []string
	Operations   []models.Operation

	// OpenRoles may mount the screen; empty means every role.
	OpenRoles   []models.UserRole
	ManageRoles []models.UserRole
	OwnerRoles  []models.UserRole
	CreateRoles []models.UserRole

	Columns []dto.ColumnView
	Row     func(T) map[string]string
	// Sanitize cleans user-authored text for display. State keeps the raw
	// entity so drafts and saves round-trip the stored values.
	Sanitize func(T) T

	NewDraft   func() D
	DraftFrom  func(T) D
	MergeDraft func(T, D) T
	// ImageField is the multipart field name of uploaded images.
	ImageField string
}

func (c *ScreenConfig[T, D]) kind() models.ScreenKind { return c.Kind }

func (c *ScreenConfig[T, D]) policy() accessPolicy {
	return accessPolicy{manageRoles: c.ManageRoles, ownerRoles: c.OwnerRoles, createRoles: c.CreateRoles}
}

func (c *ScreenConfig[T, D]) hasOp(op models.Operation) bool {
	for _, o := range c.Operations {
		if o == op {
			return true
		}
	}
	return false
}

func (c *ScreenConfig[T, D]) canOpen(s models.Session) bool {
	return len(c.OpenRoles) == 0 || s.IsAdmin() || s.HasRole(c.OpenRoles...)
}

func (c *ScreenConfig[T, D]) entry(s models.Session) (dto.DashboardEntry, bool) {
	if !c.canOpen(s) {
		return dto.DashboardEntry{}, false
	}
	return dto.DashboardEntry{
		Kind:      c.Kind,
		Title:     c.Title,
		CanCreate: c.hasOp(models.OpCreate) && c.policy().canCreate(s),
	}, true
}

func (c *ScreenConfig[T, D]) validFilter(value string) bool {
	if value == "" {
		return true
	}
	for _, v := range c.FilterValues {
		if v == value {
			return true
		}
	}
	return false
}

func (c *ScreenConfig[T, D]) build(id string, owner models.Session, pageSize int, filter string, deps ScreenDeps) ScreenHandle {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("screen_id", id), zap.String("kind", string(c.Kind)))

	repo := repository.NewCollectionRepository[T](deps.Client, c.Collection)
	st := newScreenState[T](NewQueryState(pageSize, filter))

	ops := make(map[models.Operation]bool, len(c.Operations))
	for _, op := range c.Operations {
		ops[op] = true
	}

	list := newListController[T](st, string(c.Kind), repo, c.FilterKey, c.Scope, deps.Metrics, logger)
	dispatcher := &MutationDispatcher[T]{
		st:         st,
		screenID:   id,
		kind:       string(c.Kind),
		collection: c.Collection,
		ops:        ops,
		policy:     c.policy(),
		mutator:    repo,
		cache:      deps.Cache,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		scheduler:  deps.Scheduler,
		refetch:    list.Fetch,
		logger:     logger,
	}
	validator := deps.Validator
	if validator == nil {
		validator = NewFormValidator()
	}
	detail := &DetailController[T, D]{
		st:         st,
		collection: c.Collection,
		getter:     repo,
		dispatcher: dispatcher,
		validator:  validator,
		cache:      deps.Cache,
		newDraft:   c.NewDraft,
		draftFrom:  c.DraftFrom,
		mergeDraft: c.MergeDraft,
	}
	st.discardDraft = func() { detail.draft = nil }

	scr := &Screen[T, D]{
		id:        id,
		owner:     owner.UserID,
		cfg:       c,
		st:        st,
		list:      list,
		mutations: dispatcher,
		detail:    detail,
		logger:    logger,
	}
	scr.Touch(time.Now())
	return scr
}

// Screen is one mounted list-view controller instance owned by one user.
type Screen[T models.Entity[T], D any] struct {
	id        string
	owner     string
	cfg       *ScreenConfig[T, D]
	st        *screenState[T]
	list      *ListController[T]
	mutations *MutationDispatcher[T]
	detail    *DetailController[T, D]
	lastSeen  atomic.Int64
	logger    *zap.Logger
}

func (s *Screen[T, D]) ID() string              { return s.id }
func (s *Screen[T, D]) Kind() models.ScreenKind { return s.cfg.Kind }
func (s *Screen[T, D]) OwnerUserID() string     { return s.owner }
func (s *Screen[T, D]) LastSeen() time.Time     { return time.Unix(0, s.lastSeen.Load()) }
func (s *Screen[T, D]) Touch(now time.Time)     { s.lastSeen.Store(now.UnixNano()) }

// Refresh refetches the current page.
func (s *Screen[T, D]) Refresh(ctx context.Context, session models.Session) error {
	return s.list.Fetch(ctx, session)
}

// Search submits a search term and fetches page 1.
func (s *Screen[T, D]) Search(ctx context.Context, session models.Session, term string) error {
	s.st.mu.Lock()
	s.st.query.SetSearch(strings.TrimSpace(term))
	s.st.mu.Unlock()
	return s.list.Fetch(ctx, session)
}

// Filter applies one of the screen's filter values and fetches page 1.
func (s *Screen[T, D]) Filter(ctx context.Context, session models.Session, value string) error {
	value = strings.TrimSpace(value)
	if s.cfg.FilterKey == "" {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "this screen has no filter")
	}
	if !s.cfg.validFilter(value) {
		return appErrors.WithFields(map[string]string{
			"value": fmt.Sprintf("Filter must be one of: %s", strings.Join(s.cfg.FilterValues, ", ")),
		})
	}
	s.st.mu.Lock()
	s.st.query.SetFilter(value)
	s.st.mu.Unlock()
	return s.list.Fetch(ctx, session)
}

// GoToPage fetches page n; out-of-range pages are ignored.
func (s *Screen[T, D]) GoToPage(ctx context.Context, session models.Session, n int) error {
	s.st.mu.Lock()
	moved := s.st.query.SetPage(n)
	s.st.mu.Unlock()
	if !moved {
		return nil
	}
	return s.list.Fetch(ctx, session)
}

// NextPage fetches the following page unless on the last one.
func (s *Screen[T, D]) NextPage(ctx context.Context, session models.Session) error {
	s.st.mu.Lock()
	moved := s.st.query.NextPage()
	s.st.mu.Unlock()
	if !moved {
		return nil
	}
	return s.list.Fetch(ctx, session)
}

// PreviousPage fetches the preceding page unless on the first one.
func (s *Screen[T, D]) PreviousPage(ctx context.Context, session models.Session) error {
	s.st.mu.Lock()
	moved := s.st.query.PreviousPage()
	s.st.mu.Unlock()
	if !moved {
		return nil
	}
	return s.list.Fetch(ctx, session)
}

func (s *Screen[T, D]) Mutate(ctx context.Context, session models.Session, entityID string, op models.Operation) error {
	return s.mutations.Dispatch(ctx, session, entityID, op)
}

func (s *Screen[T, D]) View(ctx context.Context, session models.Session, entityID string) error {
	return s.detail.Open(ctx, session, entityID)
}

func (s *Screen[T, D]) Back() error                         { return s.detail.Back() }
func (s *Screen[T, D]) Edit(session models.Session) error   { return s.detail.Edit(session) }
func (s *Screen[T, D]) Create(session models.Session) error { return s.detail.Create(session) }
func (s *Screen[T, D]) Cancel() error                       { return s.detail.Cancel() }

func (s *Screen[T, D]) UpdateDraft(fields map[string]json.RawMessage) error {
	return s.detail.UpdateDraft(fields)
}

func (s *Screen[T, D]) UpdateDraftForm(values map[string]string) error {
	return s.detail.UpdateDraftForm(values)
}

// AttachImage stores an upload on the draft under the screen's image field.
func (s *Screen[T, D]) AttachImage(upload *backend.FileUpload) error {
	if upload != nil && upload.Field == "" {
		upload.Field = s.cfg.ImageField
	}
	return s.detail.AttachImage(upload)
}

func (s *Screen[T, D]) Save(ctx context.Context, session models.Session) error {
	return s.detail.Save(ctx, session)
}

// Close unmounts the screen; in-flight results are dropped from now on.
func (s *Screen[T, D]) Close() {
	s.st.mu.Lock()
	s.st.closed = true
	s.st.mu.Unlock()
}

func (s *Screen[T, D]) Closed() bool {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return s.st.closed
}

func (s *Screen[T, D]) render(entity T) T {
	if s.cfg.Sanitize == nil {
		return entity
	}
	return s.cfg.Sanitize(entity)
}

// Snapshot renders the view state for session.
func (s *Screen[T, D]) Snapshot(session models.Session) dto.ScreenView {
	st := s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	policy := s.mutations.policy
	canVerify := policy.canVerify(session)
	rows := make([]dto.RowView, 0, len(st.items))
	for _, item := range st.items {
		_, busy := st.busy[item.EntityID()]
		state := item.State()
		rows = append(rows, dto.RowView{
			ID:         item.EntityID(),
			Cells:      s.cfg.Row(s.render(item)),
			Status:     state.Status,
			IsVerified: state.IsVerified,
			Busy:       busy,
			Actions:    rowActions(state, s.mutations.has, canVerify, policy.canManage(session, item.OwnerID())),
		})
	}

	view := dto.ScreenView{
		ID:      s.id,
		Kind:    s.cfg.Kind,
		Title:   s.cfg.Title,
		Mode:    st.mode,
		Loading: st.settledSeq < st.issuedSeq,
		Query: dto.QueryView{
			Page:          st.query.Page(),
			PageSize:      st.query.PageSize(),
			Search:        st.query.Search(),
			Filter:        st.query.Filter(),
			FilterKey:     s.cfg.FilterKey,
			FilterOptions: s.cfg.FilterValues,
		},
		Columns:    s.cfg.Columns,
		Rows:       rows,
		Pagination: st.query.Pagination(),
		CanCreate:  s.mutations.has(models.OpCreate) && policy.canCreate(session),
	}

	switch {
	case st.viewErr != nil:
		view.Error = &dto.ErrorView{Code: st.viewErr.Code, Message: st.viewErr.Message}
	case st.lastErr != nil:
		view.Error = &dto.ErrorView{Code: st.lastErr.Code, Message: st.lastErr.Message}
	}
	if st.selected != nil {
		view.Selected = s.render(*st.selected)
	}
	if draft := s.detail.draftSnapshot(); draft != nil {
		dv := &dto.DraftView{
			EntityID:  draft.EntityID,
			Values:    draft.Values,
			Errors:    draft.Errors,
			FormError: draft.FormError,
		}
		if img := draft.Image; img != nil {
			dv.Image = &dto.ImageView{Filename: img.Filename, ContentType: img.ContentType, Size: len(img.Data)}
		}
		view.Draft = dv
	}
	return view
}

// Dataset returns the current page as an export table keyed by column label.
func (s *Screen[T, D]) Dataset() export.Dataset {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	headers := make([]string, len(s.cfg.Columns))
	for i, col := range s.cfg.Columns {
		headers[i] = col.Label
	}
	rows := make([]map[string]string, 0, len(s.st.items))
	for _, item := range s.st.items {
		cells := s.cfg.Row(s.render(item))
		row := make(map[string]string, len(headers))
		for _, col := range s.cfg.Columns {
			row[col.Label] = cells[col.Key]
		}
		rows = append(rows, row)
	}
	return export.Dataset{
		Title:   fmt.Sprintf("%s (page %d of %d)", s.cfg.Title, s.st.query.Page(), s.st.query.TotalPages()),
		Headers: headers,
		Rows:    rows,
	}
}
