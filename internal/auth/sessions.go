package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"marketgateway/pkg/cache"
)

// Session is the server-side proof that a login is still valid.
type Session struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionStore keeps sessions in the cache store under session:{id}.
type SessionStore struct {
	cache cache.Store
	ttl   time.Duration
	now   func() time.Time
}

func NewSessionStore(store cache.Store, ttl time.Duration) *SessionStore {
	return &SessionStore{cache: store, ttl: ttl, now: time.Now}
}

func sessionKey(id string) string { return "session:" + id }

// newSessionID returns 32 random bytes, hex encoded.
func newSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Create stores a new session for the user.
func (s *SessionStore) Create(ctx context.Context, userID, email, firstName, lastName string) (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	sess := &Session{
		SessionID: id,
		UserID:    userID,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
	}
	if err := s.Put(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Put (re)writes sess with a full TTL.
func (s *SessionStore) Put(ctx context.Context, sess *Session) error {
	now := s.now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.ExpiresAt = now.Add(s.ttl)
	if err := cache.SetJSON(ctx, s.cache, sessionKey(sess.SessionID), sess, s.ttl); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Get returns the session or cache.ErrMiss when it expired or was revoked.
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	var sess Session
	if err := cache.GetJSON(ctx, s.cache, sessionKey(id), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, sessionKey(id))
}
