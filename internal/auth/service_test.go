package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"marketgateway/config"
	"marketgateway/internal/apperr"
	"marketgateway/pkg/cache"
	"marketgateway/pkg/storage/postgres"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessSecret:    "access-secret-for-tests",
		RefreshSecret:   "refresh-secret-for-tests",
		AccessTTL:       15 * time.Minute,
		RefreshTTL:      7 * 24 * time.Hour,
		SessionTTL:      24 * time.Hour,
		BcryptCost:      bcrypt.MinCost,
		RateLimitWindow: 15 * time.Minute,
		RateLimitMax:    5,
	}
}

type authHarness struct {
	svc   *Service
	db    *postgres.PostgresClient
	cache *cache.MemoryStore
}

func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	db := postgres.NewClientFromDB(gdb)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	mem := cache.NewMemoryStore()
	svc, err := NewService(db, mem, testAuthConfig(), nil)
	require.NoError(t, err)

	return &authHarness{svc: svc, db: db, cache: mem}
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, kind), "want %s, got %v", kind, err)
}

// go test -v --run TestRegisterThenDuplicate
func TestRegisterThenDuplicate(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	res, err := h.svc.Register(ctx, "a@b.com", "Secur3!Pass", "A", "B")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", res.User.Email)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	assert.Equal(t, 900, res.Tokens.ExpiresIn)

	u, err := h.db.FindUserByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.NotContains(t, u.PasswordHash, "Secur3!Pass")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("Secur3!Pass")))

	_, err = h.svc.Register(ctx, " A@B.com ", "Other!Pass1", "X", "Y")
	assertKind(t, err, apperr.KindConflict)
}

// go test -v --run TestRegisterValidation
func TestRegisterValidation(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	_, err := h.svc.Register(ctx, "not-an-email", "Secur3!Pass", "A", "B")
	assertKind(t, err, apperr.KindValidation)

	_, err = h.svc.Register(ctx, "a@b.com", "short", "A", "B")
	assertKind(t, err, apperr.KindValidation)
}

// go test -v --run TestLoginGenericFailure
func TestLoginGenericFailure(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	res, err := h.svc.Register(ctx, "a@b.com", "Secur3!Pass", "A", "B")
	require.NoError(t, err)

	_, errUnknown := h.svc.Login(ctx, "nobody@b.com", "Secur3!Pass")
	_, errWrong := h.svc.Login(ctx, "a@b.com", "wrong-pass")
	assertKind(t, errUnknown, apperr.KindAuthentication)
	assertKind(t, errWrong, apperr.KindAuthentication)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())

	require.NoError(t, h.db.SetUserActive(ctx, res.User.ID, false))
	_, errInactive := h.svc.Login(ctx, "a@b.com", "Secur3!Pass")
	assertKind(t, errInactive, apperr.KindAuthentication)
	assert.Equal(t, errUnknown.Error(), errInactive.Error())
}

// go test -v --run TestLoginIssuesNewSession
func TestLoginIssuesNewSession(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	reg, err := h.svc.Register(ctx, "a@b.com", "Secur3!Pass", "A", "B")
	require.NoError(t, err)

	login, err := h.svc.Login(ctx, "A@b.com", "Secur3!Pass")
	require.NoError(t, err)
	require.NotNil(t, login.User.LastLoginAt)

	id1, err := h.svc.ValidateAccessToken(ctx, reg.Tokens.AccessToken)
	require.NoError(t, err)
	id2, err := h.svc.ValidateAccessToken(ctx, login.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, id1.UserID, id2.UserID)
	assert.NotEqual(t, id1.SessionID, id2.SessionID)
}

// go test -v --run TestLogoutInvalidatesAccessToken
func TestLogoutInvalidatesAccessToken(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	res, err := h.svc.Register(ctx, "a@b.com", "Secur3!Pass", "A", "B")
	require.NoError(t, err)

	id, err := h.svc.ValidateAccessToken(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", id.Email)

	require.NoError(t, h.svc.Logout(ctx, id.SessionID, id.UserID))
	require.NoError(t, h.svc.Logout(ctx, id.SessionID, id.UserID))

	_, err = h.svc.ValidateAccessToken(ctx, res.Tokens.AccessToken)
	assertKind(t, err, apperr.KindSessionExpired)

	_, err = h.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assertKind(t, err, apperr.KindInvalidToken)
}

// go test -v --run TestValidateInactiveUser
func TestValidateInactiveUser(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	res, err := h.svc.Register(ctx, "a@b.com", "Secur3!Pass", "A", "B")
	require.NoError(t, err)
	claims, err := h.svc.Tokens().ParseAccess(res.Tokens.AccessToken)
	require.NoError(t, err)

	require.NoError(t, h.db.SetUserActive(ctx, res.User.ID, false))
	_, err = h.svc.ValidateAccessToken(ctx, res.Tokens.AccessToken)
	assertKind(t, err, apperr.KindAccountInactive)

	_, err = h.cache.Get(ctx, sessionKey(claims.SessionID))
	assert.ErrorIs(t, err, cache.ErrMiss)
}

// go test -v --run TestValidateRejectsBadTokens
func TestValidateRejectsBadTokens(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	res, err := h.svc.Register(ctx, "a@b.com", "Secur3!Pass", "A", "B")
	require.NoError(t, err)

	for _, tok := range []string{"", "garbage", res.Tokens.RefreshToken, res.Tokens.AccessToken + "x"} {
		_, err := h.svc.ValidateAccessToken(ctx, tok)
		assertKind(t, err, apperr.KindInvalidToken)
	}

	_, err = h.svc.Refresh(ctx, res.Tokens.AccessToken)
	assertKind(t, err, apperr.KindInvalidToken)
}

// go test -v --run TestRefreshWhileSessionActive
func TestRefreshWhileSessionActive(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	res, err := h.svc.Register(ctx, "a@b.com", "Secur3!Pass", "A", "B")
	require.NoError(t, err)

	tokens, err := h.svc.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.Empty(t, tokens.RefreshToken)

	id, err := h.svc.ValidateAccessToken(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", id.Email)
}

// go test -v --run TestRefreshDoesNotRestoreExpiredSession
func TestRefreshDoesNotRestoreExpiredSession(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	res, err := h.svc.Register(ctx, "a@b.com", "Secur3!Pass", "A", "B")
	require.NoError(t, err)
	claims, err := h.svc.Tokens().ParseRefresh(res.Tokens.RefreshToken)
	require.NoError(t, err)

	// 25h later the 24h session is gone from the cache; the refresh row (7d) is not
	later := time.Now().Add(25 * time.Hour)
	h.cache.SetClock(func() time.Time { return later })
	h.svc.now = func() time.Time { return later }

	tokens, err := h.svc.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, tokens.AccessToken)

	_, err = h.svc.sessions.Get(ctx, claims.SessionID)
	assert.ErrorIs(t, err, cache.ErrMiss)

	_, err = h.svc.ValidateAccessToken(ctx, tokens.AccessToken)
	assertKind(t, err, apperr.KindSessionExpired)
}

// go test -v --run TestRefreshExpiredRow
func TestRefreshExpiredRow(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	res, err := h.svc.Register(ctx, "a@b.com", "Secur3!Pass", "A", "B")
	require.NoError(t, err)

	// the row is checked against the service clock, the signature against the token clock
	h.svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	_, err = h.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assertKind(t, err, apperr.KindInvalidToken)
	assert.Contains(t, err.Error(), msgRefreshRevoked)
}

// go test -v --run TestRefreshInactiveUser
func TestRefreshInactiveUser(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	res, err := h.svc.Register(ctx, "a@b.com", "Secur3!Pass", "A", "B")
	require.NoError(t, err)
	require.NoError(t, h.db.SetUserActive(ctx, res.User.ID, false))

	_, err = h.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assertKind(t, err, apperr.KindAccountInactive)
}

// go test -v --run TestMe
func TestMe(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	res, err := h.svc.Register(ctx, "a@b.com", "Secur3!Pass", "Ada", "Byron")
	require.NoError(t, err)
	id, err := h.svc.ValidateAccessToken(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)

	u, err := h.svc.Me(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.FirstName)
	assert.Equal(t, "user", u.Role)
}
