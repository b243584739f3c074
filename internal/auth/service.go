package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"net/mail"
	"strings"
	"time"

	"marketgateway/config"
	"marketgateway/internal/apperr"
	"marketgateway/pkg/cache"
	"marketgateway/pkg/storage/postgres"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt ignores bytes past 72

	msgInvalidCredentials = "Invalid email or password"
	msgRefreshRevoked     = "Refresh token expired or revoked"
	msgSessionExpired     = "Session expired or revoked"
	msgAccountInactive    = "Account is inactive"
)

// UserStore is the durable side of authentication.
type UserStore interface {
	CreateUser(ctx context.Context, u *postgres.UserRecord) error
	FindUserByEmail(ctx context.Context, email string) (*postgres.UserRecord, error)
	FindUserByID(ctx context.Context, id string) (*postgres.UserRecord, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	CreateRefreshToken(ctx context.Context, r *postgres.RefreshTokenRecord) error
	FindValidRefreshToken(ctx context.Context, token, userID string, now time.Time) (*postgres.RefreshTokenRecord, error)
	DeleteRefreshToken(ctx context.Context, token, userID string) error
}

// User is the public profile returned to clients.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"` // access token lifetime in seconds
}

type Result struct {
	User   User   `json:"user"`
	Tokens Tokens `json:"tokens"`
}

// Identity is attached to authenticated requests.
type Identity struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

type Service struct {
	users      UserStore
	sessions   *SessionStore
	tokens     *TokenManager
	cost       int
	refreshTTL time.Duration
	dummyHash  []byte
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(users UserStore, store cache.Store, cfg config.AuthConfig, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}

	// compared against when the email is unknown so login timing is uniform
	pad := make([]byte, 24)
	if _, err := rand.Read(pad); err != nil {
		return nil, err
	}
	dummy, err := bcrypt.GenerateFromPassword(pad, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	return &Service{
		users:      users,
		sessions:   NewSessionStore(store, cfg.SessionTTL),
		tokens:     NewTokenManager(cfg),
		cost:       cfg.BcryptCost,
		refreshTTL: cfg.RefreshTTL,
		dummyHash:  dummy,
		logger:     log.Named("auth"),
		now:        time.Now,
	}, nil
}

// Tokens exposes signature checks for routes that skip the session lookup.
func (s *Service) Tokens() *TokenManager { return s.tokens }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return apperr.Validation("invalid email address")
	}
	if len(password) < minPasswordLen {
		return apperr.Validation("password must be at least %d characters", minPasswordLen)
	}
	if len(password) > maxPasswordLen {
		return apperr.Validation("password must be at most %d bytes", maxPasswordLen)
	}
	return nil
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (*Result, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	_, err := s.users.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperr.Conflict("User with this email already exists")
	case !errors.Is(err, postgres.ErrNotFound):
		return nil, apperr.Database(err, "failed to look up user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, apperr.Internal(err, "failed to hash password")
	}

	u := &postgres.UserRecord{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Role:         "user",
		IsActive:     true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, postgres.ErrDuplicate) {
			return nil, apperr.Conflict("User with this email already exists")
		}
		return nil, apperr.Database(err, "failed to create user")
	}

	s.logger.Info("user registered", zap.String("userId", u.ID))
	return s.signIn(ctx, u)
}

// Login verifies credentials. Unknown, inactive and wrong-password cases all
// return the same AuthenticationError.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = normalizeEmail(email)

	u, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, postgres.ErrNotFound) {
			return nil, apperr.Database(err, "failed to look up user")
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, apperr.New(apperr.KindAuthentication, msgInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil || !u.IsActive {
		return nil, apperr.New(apperr.KindAuthentication, msgInvalidCredentials)
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.String("userId", u.ID), zap.Error(err))
	} else {
		u.LastLoginAt = &now
	}

	return s.signIn(ctx, u)
}

// signIn creates the session, the token pair and the durable refresh row.
func (s *Service) signIn(ctx context.Context, u *postgres.UserRecord) (*Result, error) {
	sess, err := s.sessions.Create(ctx, u.ID, u.Email, u.FirstName, u.LastName)
	if err != nil {
		return nil, apperr.Internal(err, "failed to create session")
	}

	access, err := s.tokens.IssueAccess(u.ID, sess.SessionID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to issue access token")
	}
	refresh, err := s.tokens.IssueRefresh(u.ID, sess.SessionID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to issue refresh token")
	}

	row := &postgres.RefreshTokenRecord{
		UserID:    u.ID,
		Token:     sess.SessionID,
		ExpiresAt: s.now().UTC().Add(s.refreshTTL),
	}
	if err := s.users.CreateRefreshToken(ctx, row); err != nil {
		_ = s.sessions.Delete(ctx, sess.SessionID)
		return nil, apperr.Database(err, "failed to store refresh token")
	}

	return &Result{
		User: toUser(u),
		Tokens: Tokens{
			AccessToken:  access,
			RefreshToken: refresh,
			TokenType:    "Bearer",
			ExpiresIn:    int(s.tokens.AccessTTL().Seconds()),
		},
	}, nil
}

// Refresh mints a new access token. The refresh token and session are not
// rotated, and an expired session is not re-established: the new token then
// fails ValidateAccessToken with SessionExpiredError.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.FindValidRefreshToken(ctx, claims.SessionID, claims.UserID, s.now()); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, apperr.InvalidToken(msgRefreshRevoked)
		}
		return nil, apperr.Database(err, "failed to look up refresh token")
	}

	u, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	access, err := s.tokens.IssueAccess(u.ID, claims.SessionID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to issue access token")
	}
	return &Tokens{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// ValidateAccessToken checks the signature and then the live session.
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.tokens.ParseAccess(token)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, apperr.New(apperr.KindSessionExpired, msgSessionExpired)
		}
		return nil, apperr.Internal(err, "failed to read session")
	}
	if sess.UserID != claims.UserID {
		return nil, apperr.InvalidToken("Token does not match session")
	}

	u, err := s.users.FindUserByID(ctx, claims.UserID)
	if err != nil && !errors.Is(err, postgres.ErrNotFound) {
		return nil, apperr.Database(err, "failed to look up user")
	}
	if err != nil || !u.IsActive {
		if derr := s.sessions.Delete(ctx, claims.SessionID); derr != nil {
			s.logger.Warn("failed to delete orphaned session", zap.Error(derr))
		}
		return nil, apperr.New(apperr.KindAccountInactive, msgAccountInactive)
	}

	return &Identity{
		UserID:    u.ID,
		SessionID: claims.SessionID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
	}, nil
}

// Logout revokes the session and its refresh row. Repeating it is a no-op.
func (s *Service) Logout(ctx context.Context, sessionID, userID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return apperr.Internal(err, "failed to delete session")
	}
	if err := s.users.DeleteRefreshToken(ctx, sessionID, userID); err != nil {
		return apperr.Database(err, "failed to delete refresh token")
	}
	s.logger.Info("user logged out", zap.String("userId", userID))
	return nil
}

// Me returns the profile of an authenticated identity.
func (s *Service) Me(ctx context.Context, id *Identity) (*User, error) {
	u, err := s.activeUser(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	out := toUser(u)
	return &out, nil
}

func (s *Service) activeUser(ctx context.Context, userID string) (*postgres.UserRecord, error) {
	u, err := s.users.FindUserByID(ctx, userID)
	if errors.Is(err, postgres.ErrNotFound) {
		return nil, apperr.New(apperr.KindAccountInactive, msgAccountInactive)
	}
	if err != nil {
		return nil, apperr.Database(err, "failed to look up user")
	}
	if !u.IsActive {
		return nil, apperr.New(apperr.KindAccountInactive, msgAccountInactive)
	}
	return u, nil
}

func toUser(u *postgres.UserRecord) User {
	return User{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        u.Role,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}
