package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdrp/console-gateway/internal/dto"
	"github.com/cdrp/console-gateway/internal/models"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
)

func TestRegistryOpenValidatesRequest(t *testing.T) {
	reg := newTestRegistry(t, newFakeCDRP(), nil)
	ctx := context.Background()

	_, err := reg.Open(ctx, adminSession, dto.OpenScreenRequest{Kind: "volunteers"})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "kind")

	_, err = reg.Open(ctx, citizenSession, dto.OpenScreenRequest{Kind: models.KindCharities})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))

	_, err = reg.Open(ctx, adminSession, dto.OpenScreenRequest{Kind: models.KindCharities, Filter: "archived"})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "filter")

	assert.Equal(t, 0, reg.Stats().OpenScreens)
}

func TestRegistryClampsPageSize(t *testing.T) {
	reg := newTestRegistry(t, newFakeCDRP(), nil)

	screen := openScreen(t, reg, adminSession, models.KindUsers, 500)
	assert.Equal(t, 50, screen.Snapshot(adminSession).Query.PageSize)

	screen = openScreen(t, reg, adminSession, models.KindUsers, 0)
	assert.Equal(t, 10, screen.Snapshot(adminSession).Query.PageSize)
}

func TestRegistryScreensArePrivateToTheirOwner(t *testing.T) {
	reg := newTestRegistry(t, newFakeCDRP(), nil)
	screen := openScreen(t, reg, charityASess, models.KindCampaigns, 10)

	got, err := reg.Get(charityASess, screen.ID())
	require.NoError(t, err)
	assert.Equal(t, screen.ID(), got.ID())

	_, err = reg.Get(charityBSess, screen.ID())
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
	assert.True(t, appErrors.HasCode(reg.Close(charityBSess, screen.ID()), appErrors.ErrNotFound.Code))
}

func TestRegistryCloseUnmountsScreen(t *testing.T) {
	reg := newTestRegistry(t, newFakeCDRP(), nil)
	screen := openScreen(t, reg, adminSession, models.KindNews, 10)

	require.NoError(t, reg.Close(adminSession, screen.ID()))
	assert.True(t, screen.Closed())

	_, err := reg.Get(adminSession, screen.ID())
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	err = screen.Refresh(context.Background(), adminSession)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrScreenClosed.Code))
	assert.Equal(t, int64(0), reg.deps.Metrics.Snapshot().OpenScreens)
}

func TestRegistrySweepRemovesIdleScreens(t *testing.T) {
	reg := newTestRegistry(t, newFakeCDRP(), nil)
	start := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return start }

	idle := openScreen(t, reg, adminSession, models.KindUsers, 10)
	active := openScreen(t, reg, adminSession, models.KindNews, 10)

	reg.now = func() time.Time { return start.Add(20 * time.Minute) }
	_, err := reg.Get(adminSession, active.ID())
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Sweep(start.Add(35*time.Minute)))
	assert.True(t, idle.Closed())
	assert.False(t, active.Closed())
	assert.Equal(t, 1, reg.Stats().OpenScreens)
}

func TestRegistryDashboardByRole(t *testing.T) {
	reg := newTestRegistry(t, newFakeCDRP(), nil)

	admin := reg.Dashboard(adminSession)
	assert.Len(t, admin.Screens, 7)

	citizen := reg.Dashboard(citizenSession)
	kinds := make([]models.ScreenKind, 0, len(citizen.Screens))
	creatable := map[models.ScreenKind]bool{}
	for _, entry := range citizen.Screens {
		kinds = append(kinds, entry.Kind)
		creatable[entry.Kind] = entry.CanCreate
	}
	assert.Equal(t, []models.ScreenKind{models.KindIncidents, models.KindCampaigns, models.KindAnnouncements, models.KindNews}, kinds)
	assert.True(t, creatable[models.KindIncidents])
	assert.False(t, creatable[models.KindCampaigns])
	assert.Equal(t, models.RoleCitizen, citizen.Role)
}

func TestRegistryStatsAndCloseAll(t *testing.T) {
	reg := newTestRegistry(t, newFakeCDRP(), nil)
	openScreen(t, reg, adminSession, models.KindUsers, 10)
	openScreen(t, reg, adminSession, models.KindUsers, 10)
	openScreen(t, reg, charityASess, models.KindCampaigns, 10)

	stats := reg.Stats()
	assert.Equal(t, 3, stats.OpenScreens)
	assert.Equal(t, 2, stats.Sessions)
	assert.Equal(t, map[string]int{"users": 2, "campaigns": 1}, stats.ByKind)

	reg.CloseAll()
	assert.Equal(t, 0, reg.Stats().OpenScreens)
}

func TestScreenFilterValidatesValue(t *testing.T) {
	fb := newFakeCDRP()
	fb.seedOrganizations(2)
	fb.seed("organizations", map[string]interface{}{"id": "org9", "name": "Active One", "role": "charity", "status": "active", "isVerified": true})
	screen := openScreen(t, newTestRegistry(t, fb, nil), adminSession, models.KindCharities, 10)

	err := screen.Filter(context.Background(), adminSession, "archived")
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "value")

	require.NoError(t, screen.Filter(context.Background(), adminSession, "active"))
	view := screen.Snapshot(adminSession)
	assert.Equal(t, "active", view.Query.Filter)
	assert.Equal(t, []string{"org9"}, rowIDs(view))

	require.NoError(t, screen.Filter(context.Background(), adminSession, ""))
	assert.Len(t, screen.Snapshot(adminSession).Rows, 3)
}
