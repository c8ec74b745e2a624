package service

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdrp/console-gateway/internal/dto"
	"github.com/cdrp/console-gateway/internal/models"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
)

func TestScenarioPaginationOverTwentyThreeCharities(t *testing.T) {
	fb := newFakeCDRP()
	fb.seedOrganizations(23)
	screen := openScreen(t, newTestRegistry(t, fb, nil), adminSession, models.KindCharities, 10)
	ctx := context.Background()

	view := screen.Snapshot(adminSession)
	assert.Equal(t, 3, view.Pagination.TotalPages)
	assert.Equal(t, 23, view.Pagination.TotalCount)
	assert.Len(t, view.Rows, 10)
	assert.False(t, view.Loading)

	require.NoError(t, screen.NextPage(ctx, adminSession))
	view = screen.Snapshot(adminSession)
	assert.Equal(t, 2, view.Query.Page)
	assert.Equal(t, "org11", view.Rows[0].ID)

	require.NoError(t, screen.GoToPage(ctx, adminSession, 3))
	require.NoError(t, screen.NextPage(ctx, adminSession))
	view = screen.Snapshot(adminSession)
	assert.Equal(t, 3, view.Query.Page)
	assert.Len(t, view.Rows, 3)
	assert.False(t, view.Pagination.HasNext)

	require.NoError(t, screen.GoToPage(ctx, adminSession, 7))
	assert.Equal(t, 3, screen.Snapshot(adminSession).Query.Page)
}

func TestScenarioSearchReturnsToFirstPage(t *testing.T) {
	fb := newFakeCDRP()
	fb.seedOrganizations(23)
	screen := openScreen(t, newTestRegistry(t, fb, nil), adminSession, models.KindCharities, 10)
	ctx := context.Background()

	require.NoError(t, screen.GoToPage(ctx, adminSession, 2))
	require.NoError(t, screen.Search(ctx, adminSession, "Charity 2"))

	view := screen.Snapshot(adminSession)
	assert.Equal(t, 1, view.Query.Page)
	assert.Equal(t, "Charity 2", view.Query.Search)
	assert.Equal(t, []string{"org20", "org21", "org22", "org23"}, rowIDs(view))
	assert.Equal(t, 4, view.Pagination.TotalCount)
	assert.Equal(t, 1, view.Pagination.TotalPages)
}

func TestScenarioVerifyingCharityOffersDeactivate(t *testing.T) {
	fb := newFakeCDRP()
	fb.seed("organizations", map[string]interface{}{
		"id":         "org1",
		"name":       "Harbour Aid",
		"email":      "harbour@example.org",
		"role":       "charity",
		"status":     "active",
		"isVerified": false,
	})
	screen := openScreen(t, newTestRegistry(t, fb, nil), adminSession, models.KindCharities, 10)

	row := findRow(t, screen.Snapshot(adminSession), "org1")
	assert.Equal(t, []models.Operation{models.OpVerify, models.OpDelete}, row.Actions)
	getsBefore := fb.countCalls(http.MethodGet)

	require.NoError(t, screen.Mutate(context.Background(), adminSession, "org1", models.OpVerify))

	row = findRow(t, screen.Snapshot(adminSession), "org1")
	assert.True(t, row.IsVerified)
	assert.Equal(t, models.StatusActive, row.Status)
	assert.Equal(t, []models.Operation{models.OpDeactivate, models.OpDelete}, row.Actions)
	assert.Contains(t, fb.callLog(), "PATCH /organizations/verify/org1")
	assert.Equal(t, getsBefore, fb.countCalls(http.MethodGet))
}

func TestScenarioReconcileRefetchIsAuthoritative(t *testing.T) {
	fb := newFakeCDRP()
	fb.seedOrganizations(3)
	screen := openScreen(t, newTestRegistry(t, fb, InlineScheduler{}), adminSession, models.KindCharities, 10)

	require.NoError(t, screen.Mutate(context.Background(), adminSession, "org2", models.OpDelete))

	view := screen.Snapshot(adminSession)
	assert.Equal(t, []string{"org1", "org3"}, rowIDs(view))
	assert.Equal(t, 2, view.Pagination.TotalCount)
	assert.Equal(t, 2, fb.countCalls("GET"))
}

func TestScenarioEmptyEmailBlocksSave(t *testing.T) {
	fb := newFakeCDRP()
	fb.seed("users", map[string]interface{}{"id": "u1", "name": "Ada", "email": "ada@example.org", "role": "citizen", "status": "active"})
	screen := openScreen(t, newTestRegistry(t, fb, nil), adminSession, models.KindUsers, 10)
	require.NoError(t, screen.View(context.Background(), adminSession, "u1"))
	require.NoError(t, screen.Edit(adminSession))
	require.NoError(t, screen.UpdateDraft(map[string]json.RawMessage{"email": json.RawMessage(`""`)}))

	before := len(fb.callLog())
	err := screen.Save(context.Background(), adminSession)
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "Email is required", appErr.Fields["email"])
	assert.Len(t, fb.callLog(), before)

	view := screen.Snapshot(adminSession)
	assert.Equal(t, models.ViewEdit, view.Mode)
	assert.Equal(t, "Email is required", view.Draft.Errors["email"])
}

func TestScenarioCharityCannotEditAnotherCharitysCampaign(t *testing.T) {
	fb := newFakeCDRP()
	fb.seed("campaigns", map[string]interface{}{"id": "c1", "title": "Food drive", "charityId": "charityA", "status": "active", "volunteersNeeded": 5})
	reg := newTestRegistry(t, fb, nil)

	screen := openScreen(t, reg, charityBSess, models.KindCampaigns, 10)
	require.NoError(t, screen.View(context.Background(), charityBSess, "c1"))

	err := screen.Edit(charityBSess)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))

	view := screen.Snapshot(charityBSess)
	assert.Nil(t, view.Draft)
	assert.Equal(t, models.ViewDetail, view.Mode)
	assert.Empty(t, findRow(t, view, "c1").Actions)

	err = screen.Mutate(context.Background(), charityBSess, "c1", models.OpDeactivate)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))
	assert.Equal(t, 0, fb.countCalls("PATCH"))

	owner := openScreen(t, reg, charityASess, models.KindCampaigns, 10)
	ownerView := owner.Snapshot(charityASess)
	assert.Equal(t, []models.Operation{models.OpDeactivate, models.OpDelete}, findRow(t, ownerView, "c1").Actions)
	require.NoError(t, owner.View(context.Background(), charityASess, "c1"))
	require.NoError(t, owner.Edit(charityASess))
}

func TestScenarioFailedFetchShowsNoRows(t *testing.T) {
	fb := newFakeCDRP()
	fb.seedOrganizations(3)
	fb.failOn("GET", "/organizations", appErrors.ErrNetwork)
	reg := newTestRegistry(t, fb, nil)

	screen, err := reg.Open(context.Background(), adminSession, dto.OpenScreenRequest{Kind: models.KindCharities})
	require.Error(t, err)
	require.NotNil(t, screen)

	view := screen.Snapshot(adminSession)
	assert.Empty(t, view.Rows)
	require.NotNil(t, view.Error)
	assert.Equal(t, appErrors.ErrNetwork.Code, view.Error.Code)
}
