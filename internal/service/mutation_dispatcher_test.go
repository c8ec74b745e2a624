package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cdrp/console-gateway/internal/models"
	"github.com/cdrp/console-gateway/internal/repository"
	"github.com/cdrp/console-gateway/pkg/backend"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
)

// countingMutator records calls and can hold them until released.
type countingMutator struct {
	mu      sync.Mutex
	calls   []string
	hold    chan struct{}
	entered chan struct{}
	result  repository.MutationResult[models.Organization]
	err     error
}

func (m *countingMutator) call(name string) (repository.MutationResult[models.Organization], error) {
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.hold != nil {
		<-m.hold
	}
	return m.result, m.err
}

func (m *countingMutator) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *countingMutator) Verify(context.Context, string, string) (repository.MutationResult[models.Organization], error) {
	return m.call("verify")
}

func (m *countingMutator) PatchStatus(_ context.Context, _ string, _ string, status models.EntityStatus) (repository.MutationResult[models.Organization], error) {
	return m.call("status:" + string(status))
}

func (m *countingMutator) Delete(context.Context, string, string) (repository.MutationResult[models.Organization], error) {
	return m.call("delete")
}

func (m *countingMutator) Update(context.Context, string, string, interface{}, *backend.FileUpload) (repository.MutationResult[models.Organization], error) {
	return m.call("update")
}

func (m *countingMutator) Create(context.Context, string, interface{}, *backend.FileUpload) (repository.MutationResult[models.Organization], error) {
	return m.call("create")
}

func newTestDispatcher(m *countingMutator, orgs ...models.Organization) (*MutationDispatcher[models.Organization], *screenState[models.Organization]) {
	st := newScreenState[models.Organization](NewQueryState(10, ""))
	st.items = append(st.items, orgs...)
	st.query.ApplyTotal(len(orgs))
	ops := map[models.Operation]bool{}
	for _, op := range withOps(models.OpVerify) {
		ops[op] = true
	}
	return &MutationDispatcher[models.Organization]{
		st:         st,
		screenID:   "screen-1",
		kind:       "charities",
		collection: "organizations",
		ops:        ops,
		policy:     accessPolicy{manageRoles: []models.UserRole{models.RoleAdmin}},
		mutator:    m,
		logger:     zap.NewNop(),
	}, st
}

func org(id string, status models.EntityStatus, verified bool) models.Organization {
	return models.Organization{ID: id, Name: id, Lifecycle: models.Lifecycle{Status: status, IsVerified: verified}}
}

func TestTransition(t *testing.T) {
	cases := []struct {
		name    string
		state   models.Lifecycle
		op      models.Operation
		want    models.Lifecycle
		noop    bool
		errCode string
	}{
		{"verify pending", models.Lifecycle{Status: models.StatusPending}, models.OpVerify, models.Lifecycle{Status: models.StatusActive, IsVerified: true}, false, ""},
		{"verify inactive keeps status", models.Lifecycle{Status: models.StatusInactive}, models.OpVerify, models.Lifecycle{Status: models.StatusInactive, IsVerified: true}, false, ""},
		{"verify verified", models.Lifecycle{Status: models.StatusActive, IsVerified: true}, models.OpVerify, models.Lifecycle{Status: models.StatusActive, IsVerified: true}, true, ""},
		{"activate inactive", models.Lifecycle{Status: models.StatusInactive, IsVerified: true}, models.OpActivate, models.Lifecycle{Status: models.StatusActive, IsVerified: true}, false, ""},
		{"activate active", models.Lifecycle{Status: models.StatusActive}, models.OpActivate, models.Lifecycle{Status: models.StatusActive}, true, ""},
		{"activate unverified pending", models.Lifecycle{Status: models.StatusPending}, models.OpActivate, models.Lifecycle{Status: models.StatusPending}, false, appErrors.ErrPreconditionFailed.Code},
		{"deactivate active", models.Lifecycle{Status: models.StatusActive}, models.OpDeactivate, models.Lifecycle{Status: models.StatusInactive}, false, ""},
		{"deactivate inactive", models.Lifecycle{Status: models.StatusInactive}, models.OpDeactivate, models.Lifecycle{Status: models.StatusInactive}, true, ""},
		{"deactivate pending", models.Lifecycle{Status: models.StatusPending}, models.OpDeactivate, models.Lifecycle{Status: models.StatusPending}, false, appErrors.ErrPreconditionFailed.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, noop, err := transition(tc.state, tc.op, true)
			if tc.errCode != "" {
				assert.True(t, appErrors.HasCode(err, tc.errCode))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, next)
			assert.Equal(t, tc.noop, noop)
		})
	}

	next, _, err := transition(models.Lifecycle{Status: models.StatusPending}, models.OpActivate, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, next.Status)
}

func TestRowActions(t *testing.T) {
	all := func(models.Operation) bool { return true }
	noVerify := func(op models.Operation) bool { return op != models.OpVerify }

	assert.Equal(t, []models.Operation{models.OpVerify, models.OpDelete},
		rowActions(models.Lifecycle{Status: models.StatusPending}, all, true, true))
	assert.Equal(t, []models.Operation{models.OpDeactivate, models.OpDelete},
		rowActions(models.Lifecycle{Status: models.StatusActive, IsVerified: true}, all, true, true))
	assert.Equal(t, []models.Operation{models.OpActivate, models.OpDelete},
		rowActions(models.Lifecycle{Status: models.StatusInactive}, noVerify, false, true))
	assert.Equal(t, []models.Operation{models.OpDelete},
		rowActions(models.Lifecycle{Status: models.StatusPending}, all, false, true))
	assert.Empty(t, rowActions(models.Lifecycle{Status: models.StatusActive}, all, true, false))
}

func TestDispatchVerifyOnVerifiedEntityMakesNoCall(t *testing.T) {
	m := &countingMutator{}
	d, st := newTestDispatcher(m, org("org1", models.StatusActive, true))

	require.NoError(t, d.Dispatch(context.Background(), adminSession, "org1", models.OpVerify))
	require.NoError(t, d.Dispatch(context.Background(), adminSession, "org1", models.OpVerify))

	assert.Equal(t, 0, m.count())
	assert.Equal(t, org("org1", models.StatusActive, true), st.items[0])
}

func TestDispatchPatchesRowOnSuccess(t *testing.T) {
	m := &countingMutator{}
	d, st := newTestDispatcher(m, org("org1", models.StatusPending, false), org("org2", models.StatusActive, true))

	require.NoError(t, d.Dispatch(context.Background(), adminSession, "org1", models.OpVerify))
	assert.Equal(t, models.Lifecycle{Status: models.StatusActive, IsVerified: true}, st.items[0].Lifecycle)

	require.NoError(t, d.Dispatch(context.Background(), adminSession, "org2", models.OpDeactivate))
	assert.Equal(t, models.StatusInactive, st.items[1].Status)
	assert.Equal(t, []string{"verify", "status:inactive"}, m.calls)
	assert.Empty(t, st.busy)
}

func TestDispatchDeleteRemovesRowAndSelection(t *testing.T) {
	m := &countingMutator{}
	d, st := newTestDispatcher(m, org("org1", models.StatusActive, true), org("org2", models.StatusActive, true))
	selected := st.items[0]
	st.selected = &selected
	st.mode = models.ViewDetail

	require.NoError(t, d.Dispatch(context.Background(), adminSession, "org1", models.OpDelete))

	require.Len(t, st.items, 1)
	assert.Equal(t, "org2", st.items[0].ID)
	assert.Equal(t, 1, st.query.Total())
	assert.Nil(t, st.selected)
	assert.Equal(t, models.ViewList, st.mode)
}

func TestDispatchFailureLeavesRowUntouched(t *testing.T) {
	m := &countingMutator{err: appErrors.Clone(appErrors.ErrServerValidation, "Organization is locked")}
	d, st := newTestDispatcher(m, org("org1", models.StatusActive, true))

	err := d.Dispatch(context.Background(), adminSession, "org1", models.OpDeactivate)
	require.Error(t, err)
	assert.Equal(t, "Organization is locked", appErrors.FromError(err).Message)
	assert.Equal(t, models.StatusActive, st.items[0].Status)
	assert.Empty(t, st.busy)
}

func TestDispatchAmbiguousResultIsNotPatched(t *testing.T) {
	m := &countingMutator{result: repository.MutationResult[models.Organization]{Ambiguous: true}}
	d, st := newTestDispatcher(m, org("org1", models.StatusActive, true))

	require.NoError(t, d.Dispatch(context.Background(), adminSession, "org1", models.OpDeactivate))
	assert.Equal(t, models.StatusActive, st.items[0].Status)
}

func TestDispatchRejectsSecondMutationOnBusyRow(t *testing.T) {
	m := &countingMutator{hold: make(chan struct{}), entered: make(chan struct{}, 1)}
	d, st := newTestDispatcher(m, org("org1", models.StatusActive, true), org("org2", models.StatusActive, true))

	done := make(chan error, 1)
	go func() { done <- d.Dispatch(context.Background(), adminSession, "org1", models.OpDeactivate) }()
	<-m.entered

	err := d.Dispatch(context.Background(), adminSession, "org1", models.OpDelete)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))

	m.hold <- struct{}{}
	require.NoError(t, <-done)

	m.hold, m.entered = nil, nil
	require.NoError(t, d.Dispatch(context.Background(), adminSession, "org2", models.OpDeactivate))

	st.mu.Lock()
	defer st.mu.Unlock()
	assert.Empty(t, st.busy)
	assert.Equal(t, models.StatusInactive, st.items[0].Status)
	assert.Equal(t, models.StatusInactive, st.items[1].Status)
}

func TestDispatchRequiresPermission(t *testing.T) {
	m := &countingMutator{}
	d, _ := newTestDispatcher(m, org("org1", models.StatusPending, false))

	err := d.Dispatch(context.Background(), charityASess, "org1", models.OpVerify)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))

	err = d.Dispatch(context.Background(), adminSession, "missing", models.OpDelete)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
	assert.Equal(t, 0, m.count())
}

func TestDispatchSchedulesReconcile(t *testing.T) {
	m := &countingMutator{}
	d, _ := newTestDispatcher(m, org("org1", models.StatusActive, true))
	refetched := 0
	d.scheduler = InlineScheduler{}
	d.refetch = func(context.Context, models.Session) error {
		refetched++
		return nil
	}

	require.NoError(t, d.Dispatch(context.Background(), adminSession, "org1", models.OpDeactivate))
	assert.Equal(t, 1, refetched)

	m.err = appErrors.ErrNetwork
	require.Error(t, d.Dispatch(context.Background(), adminSession, "org1", models.OpActivate))
	assert.Equal(t, 1, refetched)
}
