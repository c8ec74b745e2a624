package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cdrp/console-gateway/internal/models"
	"github.com/cdrp/console-gateway/pkg/backend"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
)

// Getter loads a single record.
type Getter[T any] interface {
	Get(ctx context.Context, token, id string) (T, error)
}

// FormDraft is the editable shadow copy of a record. It is never shared with
// the list rows or the selected entity.
type FormDraft[D any] struct {
	Values    D
	Errors    map[string]string
	FormError string
	Image     *backend.FileUpload
	EntityID  string
}

// DetailController drives the list, detail, edit and create sub-views.
type DetailController[T models.Entity[T], D any] struct {
	st         *screenState[T]
	collection string
	getter     Getter[T]
	dispatcher *MutationDispatcher[T]
	validator  *FormValidator
	cache      *CacheService
	newDraft   func() D
	draftFrom  func(T) D
	mergeDraft func(T, D) T

	// guarded by st.mu
	draft   *FormDraft[D]
	openSeq uint64
}

func invalidTransition(from models.ViewMode, action string) error {
	return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("cannot %s while in %s view", action, from))
}

// Open shows the detail of id, using the detail cache when it has the record.
// On failure the screen stays in the list and keeps the error.
func (c *DetailController[T, D]) Open(ctx context.Context, session models.Session, id string) error {
	st := c.st
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return appErrors.ErrScreenClosed
	}
	if st.mode != models.ViewList && st.mode != models.ViewDetail {
		mode := st.mode
		st.mu.Unlock()
		return invalidTransition(mode, "open a record")
	}
	c.openSeq++
	seq := c.openSeq
	st.mu.Unlock()

	var entity T
	if !c.cache.Detail(ctx, session.UserID, c.collection, id, &entity) || entity.EntityID() != id {
		fetched, err := c.getter.Get(ctx, session.Token, id)
		if err != nil {
			if appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
				err = appErrors.Clone(appErrors.ErrNotFound, "The selected record could not be found")
			}
			st.mu.Lock()
			if seq == c.openSeq && !st.closed {
				st.viewErr = appErrors.FromError(err)
			}
			st.mu.Unlock()
			return err
		}
		entity = fetched
		c.cache.StoreDetail(ctx, session.UserID, c.collection, id, entity)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return appErrors.ErrScreenClosed
	}
	if seq != c.openSeq {
		return nil
	}
	if st.mode != models.ViewList && st.mode != models.ViewDetail {
		return invalidTransition(st.mode, "open a record")
	}
	st.selected = &entity
	st.patch(entity)
	st.mode = models.ViewDetail
	st.viewErr = nil
	return nil
}

// Back returns from the detail to the list and drops the selection.
func (c *DetailController[T, D]) Back() error {
	st := c.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.mode != models.ViewDetail {
		return invalidTransition(st.mode, "go back")
	}
	st.selected = nil
	st.mode = models.ViewList
	st.viewErr = nil
	return nil
}

// Edit copies the selected record into a new draft. A session that may not
// change the record gets a permission error and no draft.
func (c *DetailController[T, D]) Edit(session models.Session) error {
	st := c.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.mode != models.ViewDetail || st.selected == nil {
		return invalidTransition(st.mode, "edit")
	}
	if !c.dispatcher.has(models.OpSave) {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "records on this screen cannot be edited")
	}
	selected := *st.selected
	if !c.dispatcher.policy.canManage(session, selected.OwnerID()) {
		return appErrors.ErrForbidden
	}
	c.draft = &FormDraft[D]{
		Values:   c.draftFrom(selected),
		Errors:   map[string]string{},
		EntityID: selected.EntityID(),
	}
	st.mode = models.ViewEdit
	return nil
}

// Create starts an empty draft for a new record.
func (c *DetailController[T, D]) Create(session models.Session) error {
	st := c.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.mode != models.ViewList {
		return invalidTransition(st.mode, "create")
	}
	if !c.dispatcher.has(models.OpCreate) {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "records cannot be created on this screen")
	}
	if !c.dispatcher.policy.canCreate(session) {
		return appErrors.ErrForbidden
	}
	c.draft = &FormDraft[D]{Values: c.newDraft(), Errors: map[string]string{}}
	st.mode = models.ViewCreate
	return nil
}

// Cancel discards the draft unconditionally.
func (c *DetailController[T, D]) Cancel() error {
	st := c.st
	st.mu.Lock()
	defer st.mu.Unlock()
	switch st.mode {
	case models.ViewEdit:
		st.mode = models.ViewDetail
	case models.ViewCreate:
		st.mode = models.ViewList
	default:
		return invalidTransition(st.mode, "cancel")
	}
	c.draft = nil
	return nil
}

// UpdateDraft overlays fields onto the draft values. Only the errors of the
// submitted fields are cleared.
func (c *DetailController[T, D]) UpdateDraft(fields map[string]json.RawMessage) error {
	st := c.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if c.draft == nil || (st.mode != models.ViewEdit && st.mode != models.ViewCreate) {
		return invalidTransition(st.mode, "change the form")
	}

	known := FieldNames(c.draft.Values)
	unknown := map[string]string{}
	for name := range fields {
		if _, ok := known[name]; !ok {
			unknown[name] = "Unknown field"
		}
	}
	if len(unknown) > 0 {
		return appErrors.WithFields(unknown)
	}

	current, err := json.Marshal(c.draft.Values)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read form")
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(current, &merged); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read form")
	}
	for name, value := range fields {
		merged[name] = value
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update form")
	}

	var next D
	if err := json.Unmarshal(raw, &next); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return appErrors.WithFields(map[string]string{typeErr.Field: "Invalid value"})
		}
		return appErrors.Clone(appErrors.ErrValidation, "form values could not be read")
	}

	c.draft.Values = next
	for name := range fields {
		delete(c.draft.Errors, name)
	}
	return nil
}

// UpdateDraftForm applies form-encoded values, typed by the draft's fields.
func (c *DetailController[T, D]) UpdateDraftForm(values map[string]string) error {
	var zero D
	return c.UpdateDraft(FormFields(zero, values))
}

// AttachImage sets the image uploaded with the next save.
func (c *DetailController[T, D]) AttachImage(upload *backend.FileUpload) error {
	st := c.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if c.draft == nil || (st.mode != models.ViewEdit && st.mode != models.ViewCreate) {
		return invalidTransition(st.mode, "attach an image")
	}
	c.draft.Image = upload
	return nil
}

// Save validates the whole draft and submits it. Validation failures make no
// backend call. A backend failure keeps the form open with the server message.
func (c *DetailController[T, D]) Save(ctx context.Context, session models.Session) error {
	st := c.st
	st.mu.Lock()
	draft := c.draft
	mode := st.mode
	if draft == nil || (mode != models.ViewEdit && mode != models.ViewCreate) {
		st.mu.Unlock()
		return invalidTransition(mode, "save")
	}
	values, image, id := draft.Values, draft.Image, draft.EntityID
	st.mu.Unlock()

	if errs := c.validator.Validate(values); len(errs) > 0 {
		st.mu.Lock()
		if c.draft == draft {
			draft.Errors = errs
			draft.FormError = ""
		}
		st.mu.Unlock()
		vErr := appErrors.WithFields(errs)
		vErr.Message = "Please correct the highlighted fields"
		return vErr
	}

	var (
		confirmed T
		created   *T
		err       error
	)
	if mode == models.ViewEdit {
		confirmed, err = c.dispatcher.save(ctx, session, id, values, image, func(e T) T { return c.mergeDraft(e, values) })
	} else {
		created, err = c.dispatcher.create(ctx, session, values, image)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if err != nil {
		if c.draft == draft {
			appErr := appErrors.FromError(err)
			draft.FormError = appErr.Message
			for field, msg := range appErr.Fields {
				draft.Errors[field] = msg
			}
		}
		return err
	}
	if st.closed || c.draft != draft {
		return nil
	}
	c.draft = nil
	switch {
	case mode == models.ViewEdit:
		st.selected = &confirmed
		st.mode = models.ViewDetail
	case created != nil:
		st.selected = created
		st.mode = models.ViewDetail
	default:
		st.mode = models.ViewList
	}
	return nil
}

// draftSnapshot copies the draft for rendering. Callers hold st.mu.
func (c *DetailController[T, D]) draftSnapshot() *FormDraft[D] {
	if c.draft == nil {
		return nil
	}
	cp := *c.draft
	cp.Errors = make(map[string]string, len(c.draft.Errors))
	for k, v := range c.draft.Errors {
		cp.Errors[k] = v
	}
	return &cp
}
