package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cdrp/console-gateway/internal/models"
	"github.com/cdrp/console-gateway/internal/repository"
	"github.com/cdrp/console-gateway/pkg/backend"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
)

// createBusyKey marks an in-flight create in the busy set.
const createBusyKey = "\x00create"

// Mutator performs backend mutations on a collection.
type Mutator[T any] interface {
	Verify(ctx context.Context, token, id string) (repository.MutationResult[T], error)
	PatchStatus(ctx context.Context, token, id string, status models.EntityStatus) (repository.MutationResult[T], error)
	Delete(ctx context.Context, token, id string) (repository.MutationResult[T], error)
	Update(ctx context.Context, token, id string, payload interface{}, image *backend.FileUpload) (repository.MutationResult[T], error)
	Create(ctx context.Context, token string, payload interface{}, image *backend.FileUpload) (repository.MutationResult[T], error)
}

// accessPolicy decides who may change records of a screen. Manage roles may
// change any record; owner roles only records they own.
type accessPolicy struct {
	manageRoles []models.UserRole
	ownerRoles  []models.UserRole
	createRoles []models.UserRole
}

func (p accessPolicy) canManage(s models.Session, ownerID string) bool {
	if s.IsAdmin() || s.HasRole(p.manageRoles...) {
		return true
	}
	return ownerID != "" && ownerID == s.UserID && s.HasRole(p.ownerRoles...)
}

func (p accessPolicy) canVerify(s models.Session) bool {
	return s.IsAdmin() || s.HasRole(p.manageRoles...)
}

func (p accessPolicy) canCreate(s models.Session) bool {
	return s.IsAdmin() || s.HasRole(p.createRoles...)
}

// transition returns the lifecycle op leads to. noop is set when the entity is
// already in the target state.
func transition(state models.Lifecycle, op models.Operation, hasVerify bool) (next models.Lifecycle, noop bool, err error) {
	next = state
	switch op {
	case models.OpVerify:
		if state.IsVerified {
			return state, true, nil
		}
		next.IsVerified = true
		if state.Status == models.StatusPending || state.Status == "" {
			next.Status = models.StatusActive
		}
	case models.OpActivate:
		switch state.Status {
		case models.StatusActive:
			return state, true, nil
		case models.StatusPending:
			if hasVerify && !state.IsVerified {
				return state, false, appErrors.Clone(appErrors.ErrPreconditionFailed, "verify this record before activating it")
			}
		}
		next.Status = models.StatusActive
	case models.OpDeactivate:
		switch state.Status {
		case models.StatusInactive:
			return state, true, nil
		case models.StatusActive:
			next.Status = models.StatusInactive
		default:
			return state, false, appErrors.Clone(appErrors.ErrPreconditionFailed, "only active records can be deactivated")
		}
	case models.OpDelete:
	default:
		return state, false, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("unsupported operation %q", op))
	}
	return next, false, nil
}

// rowActions lists the operations offered on a row.
func rowActions(state models.Lifecycle, has func(models.Operation) bool, canVerify, canManage bool) []models.Operation {
	actions := make([]models.Operation, 0, 2)
	if !canManage {
		return actions
	}
	switch {
	case has(models.OpVerify) && !state.IsVerified:
		if canVerify {
			actions = append(actions, models.OpVerify)
		}
	case state.Status == models.StatusActive:
		if has(models.OpDeactivate) {
			actions = append(actions, models.OpDeactivate)
		}
	case state.Status == models.StatusInactive || state.Status == models.StatusPending:
		if has(models.OpActivate) {
			actions = append(actions, models.OpActivate)
		}
	}
	if has(models.OpDelete) {
		actions = append(actions, models.OpDelete)
	}
	return actions
}

// MutationDispatcher runs mutations for a screen. One mutation per record may
// be in flight; a successful one patches the local copies and schedules a
// reconciling refetch whose result wins.
type MutationDispatcher[T models.Entity[T]] struct {
	st         *screenState[T]
	screenID   string
	kind       string
	collection string
	ops        map[models.Operation]bool
	policy     accessPolicy
	mutator    Mutator[T]
	cache      *CacheService
	audit      *AuditService
	metrics    *MetricsService
	scheduler  Scheduler
	refetch    func(ctx context.Context, session models.Session) error
	logger     *zap.Logger
}

func (d *MutationDispatcher[T]) has(op models.Operation) bool { return d.ops[op] }


func (d *MutationDispatcher[T]) authorize(session models.Session, entity T, op models.Operation) error {
	allowed := d.policy.canManage(session, entity.OwnerID())
	if op == models.OpVerify {
		allowed = d.policy.canVerify(session)
	}
	if !allowed {
		return appErrors.ErrForbidden
	}
	return nil
}

// Dispatch runs a row operation (verify, activate, deactivate, delete).
func (d *MutationDispatcher[T]) Dispatch(ctx context.Context, session models.Session, id string, op models.Operation) error {
	if !d.has(op) || op == models.OpSave || op == models.OpCreate {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("%s is not available on this screen", op))
	}

	st := d.st
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return appErrors.ErrScreenClosed
	}
	if _, busy := st.busy[id]; busy {
		st.mu.Unlock()
		return appErrors.Clone(appErrors.ErrConflict, "another change to this record is in progress")
	}
	entity, ok := st.find(id)
	if !ok {
		st.mu.Unlock()
		return appErrors.Clone(appErrors.ErrNotFound, "record is not on this screen")
	}
	if err := d.authorize(session, entity, op); err != nil {
		st.mu.Unlock()
		return err
	}
	next, noop, err := transition(entity.State(), op, d.has(models.OpVerify))
	if err != nil {
		st.mu.Unlock()
		return err
	}
	if noop {
		st.mu.Unlock()
		d.metrics.RecordMutation(d.kind, string(op), "noop")
		return nil
	}
	st.busy[id] = struct{}{}
	st.mu.Unlock()

	var res repository.MutationResult[T]
	switch op {
	case models.OpVerify:
		res, err = d.mutator.Verify(ctx, session.Token, id)
	case models.OpDelete:
		res, err = d.mutator.Delete(ctx, session.Token, id)
	default:
		res, err = d.mutator.PatchStatus(ctx, session.Token, id, next.Status)
	}

	st.mu.Lock()
	delete(st.busy, id)
	if err == nil && !st.closed && !res.Ambiguous {
		if op == models.OpDelete {
			st.remove(id)
		} else if res.Entity != nil {
			st.patch(*res.Entity)
		} else if current, found := st.find(id); found {
			st.patch(current.WithState(next))
		}
	}
	st.mu.Unlock()

	d.finish(ctx, session, id, op, res.Ambiguous, err)
	return err
}

// save submits an edited draft. merge builds the confirmed entity when the
// backend does not echo one.
func (d *MutationDispatcher[T]) save(ctx context.Context, session models.Session, id string, payload interface{}, image *backend.FileUpload, merge func(T) T) (T, error) {
	var zero T
	st := d.st
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return zero, appErrors.ErrScreenClosed
	}
	if _, busy := st.busy[id]; busy {
		st.mu.Unlock()
		return zero, appErrors.Clone(appErrors.ErrConflict, "another change to this record is in progress")
	}
	entity, ok := st.find(id)
	if !ok {
		st.mu.Unlock()
		return zero, appErrors.Clone(appErrors.ErrNotFound, "record is not on this screen")
	}
	if err := d.authorize(session, entity, models.OpSave); err != nil {
		st.mu.Unlock()
		return zero, err
	}
	st.busy[id] = struct{}{}
	st.mu.Unlock()

	res, err := d.mutator.Update(ctx, session.Token, id, payload, image)

	st.mu.Lock()
	delete(st.busy, id)
	var confirmed T
	if err == nil {
		if current, found := st.find(id); found {
			entity = current
		}
		if res.Entity != nil {
			confirmed = *res.Entity
		} else {
			confirmed = merge(entity)
		}
		if !st.closed && !res.Ambiguous {
			st.patch(confirmed)
		}
	}
	st.mu.Unlock()

	d.finish(ctx, session, id, models.OpSave, res.Ambiguous, err)
	return confirmed, err
}

// create submits a new record. The created entity is nil when the backend did
// not echo it; the reconciling refetch then brings it in.
func (d *MutationDispatcher[T]) create(ctx context.Context, session models.Session, payload interface{}, image *backend.FileUpload) (*T, error) {
	st := d.st
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return nil, appErrors.ErrScreenClosed
	}
	if _, busy := st.busy[createBusyKey]; busy {
		st.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrConflict, "a record is already being created")
	}
	if !d.policy.canCreate(session) {
		st.mu.Unlock()
		return nil, appErrors.ErrForbidden
	}
	st.busy[createBusyKey] = struct{}{}
	st.mu.Unlock()

	res, err := d.mutator.Create(ctx, session.Token, payload, image)

	var created *T
	st.mu.Lock()
	delete(st.busy, createBusyKey)
	if err == nil && res.Entity != nil {
		entity := *res.Entity
		created = &entity
		if !st.closed {
			st.insertTop(entity)
		}
	}
	st.mu.Unlock()

	id := ""
	if created != nil {
		id = (*created).EntityID()
	}
	d.finish(ctx, session, id, models.OpCreate, err == nil && created == nil, err)
	return created, err
}

func (d *MutationDispatcher[T]) finish(ctx context.Context, session models.Session, id string, op models.Operation, ambiguous bool, err error) {
	outcome := models.AuditOutcomeSuccess
	switch {
	case err != nil:
		outcome = models.AuditOutcomeFailure
	case ambiguous:
		outcome = models.AuditOutcomeAmbiguous
	}
	d.metrics.RecordMutation(d.kind, string(op), outcome)
	d.audit.Record(ctx, session, d.collection, id, op, outcome, err)

	if err != nil {
		d.logger.Info("mutation failed",
			zap.String("screen_id", d.screenID),
			zap.String("entity_id", id),
			zap.String("operation", string(op)),
			zap.Error(err),
		)
		return
	}
	d.cache.Invalidate(ctx, d.collection, id)
	d.reconcile(session)
}

// reconcile schedules a background refetch of the current page.
func (d *MutationDispatcher[T]) reconcile(session models.Session) {
	if d.scheduler == nil || d.refetch == nil {
		return
	}
	d.scheduler.Schedule(d.screenID, func(ctx context.Context) {
		if err := d.refetch(ctx, session); err != nil && !appErrors.HasCode(err, appErrors.ErrScreenClosed.Code) {
			d.logger.Warn("reconcile refetch failed", zap.String("screen_id", d.screenID), zap.Error(err))
		}
	})
}
