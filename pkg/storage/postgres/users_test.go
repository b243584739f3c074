package postgres_test

import (
	"context"
	"testing"
	"time"

	"marketgateway/pkg/storage/postgres"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestUserCRUD
func TestUserCRUD(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	u := &postgres.UserRecord{Email: "a@b.com", PasswordHash: "hash", FirstName: "A", LastName: "B", IsActive: true}
	require.NoError(t, client.CreateUser(ctx, u))
	require.NotEmpty(t, u.ID)

	dup := &postgres.UserRecord{Email: "a@b.com", PasswordHash: "hash2", IsActive: true}
	assert.ErrorIs(t, client.CreateUser(ctx, dup), postgres.ErrDuplicate)

	got, err := client.FindUserByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "user", got.Role)
	assert.Nil(t, got.LastLoginAt)

	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	require.NoError(t, client.UpdateLastLogin(ctx, u.ID, now))
	require.NoError(t, client.SetUserActive(ctx, u.ID, false))

	got, err = client.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, now.Equal(*got.LastLoginAt))
	assert.False(t, got.IsActive)

	_, err = client.FindUserByEmail(ctx, "nobody@b.com")
	assert.ErrorIs(t, err, postgres.ErrNotFound)
}

// go test -v --run TestRefreshTokenLifecycle
func TestRefreshTokenLifecycle(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	u := &postgres.UserRecord{Email: "r@b.com", PasswordHash: "hash", IsActive: true}
	require.NoError(t, client.CreateUser(ctx, u))

	require.NoError(t, client.CreateRefreshToken(ctx, &postgres.RefreshTokenRecord{
		UserID: u.ID, Token: "live", ExpiresAt: now.Add(7 * 24 * time.Hour),
	}))
	require.NoError(t, client.CreateRefreshToken(ctx, &postgres.RefreshTokenRecord{
		UserID: u.ID, Token: "stale", ExpiresAt: now.Add(-time.Minute),
	}))

	r, err := client.FindValidRefreshToken(ctx, "live", u.ID, now)
	require.NoError(t, err)
	assert.False(t, r.IsExpired(now))

	_, err = client.FindValidRefreshToken(ctx, "live", "someone-else", now)
	assert.ErrorIs(t, err, postgres.ErrNotFound)

	_, err = client.FindValidRefreshToken(ctx, "stale", u.ID, now)
	assert.ErrorIs(t, err, postgres.ErrNotFound)

	n, err := client.PurgeExpiredRefreshTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, client.DeleteRefreshToken(ctx, "live", u.ID))
	require.NoError(t, client.DeleteRefreshToken(ctx, "live", u.ID))
	_, err = client.FindValidRefreshToken(ctx, "live", u.ID, now)
	assert.ErrorIs(t, err, postgres.ErrNotFound)
}
