package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/cdrp/console-gateway/pkg/errors"
)

func TestDetailKeys(t *testing.T) {
	assert.Equal(t, "detail:u1:organizations:org1", DetailKey("u1", "organizations", "org1"))
	assert.Equal(t, "detail-index:organizations:org1", entityIndexKey("organizations", "org1"))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	assert.False(t, repo.Enabled())
	var dest map[string]string
	assert.ErrorIs(t, repo.GetDetail(ctx, "u1", "users", "u2", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.PutDetail(ctx, "u1", "users", "u2", map[string]string{"id": "u2"}, time.Minute))
	assert.NoError(t, repo.InvalidateEntity(ctx, "users", "u2"))
	assert.NoError(t, repo.Close())
}
