package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/student-portal-api/internal/models"
)

// ErrSessionNotFound is returned when a session id is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

const sessionKeyPrefix = "session:"

// SessionRepository keeps login sessions in Redis so logout invalidates outstanding tokens.
type SessionRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewSessionRepository constructs a Redis-backed session store.
func NewSessionRepository(client *redis.Client, logger *zap.Logger) *SessionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRepository{client: client, logger: logger}
}

// Create stores the session until ttl elapses.
func (r *SessionRepository) Create(ctx context.Context, session models.Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", session.ID, err)
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+session.ID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %s: %w", session.ID, err)
	}
	return nil
}

// Get loads a live session.
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	raw, err := r.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get session %s: %w", id, err)
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		r.logger.Warn("discarding unreadable session", zap.String("session_id", id), zap.Error(err))
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

// Delete removes the session. Deleting an unknown session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis delete session %s: %w", id, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (r *SessionRepository) Close() error {
	return r.client.Close()
}

// MemorySessionRepository is the single-process session store used when Redis is disabled.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

type memorySession struct {
	session   models.Session
	expiresAt time.Time
}

// NewMemorySessionRepository constructs an empty in-process store.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]memorySession), now: time.Now}
}

// Create stores the session until ttl elapses and drops expired entries.
func (r *MemorySessionRepository) Create(_ context.Context, session models.Session, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for id, s := range r.sessions {
		if !now.Before(s.expiresAt) {
			delete(r.sessions, id)
		}
	}
	r.sessions[session.ID] = memorySession{session: session, expiresAt: now.Add(ttl)}
	return nil
}

// Get loads a live session.
func (r *MemorySessionRepository) Get(_ context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !r.now().Before(s.expiresAt) {
		delete(r.sessions, id)
		return nil, ErrSessionNotFound
	}
	session := s.session
	return &session, nil
}

// Delete removes the session.
func (r *MemorySessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}
