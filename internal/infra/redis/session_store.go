package redis

import (
	"context"
	"sync"
	"time"

	"course-quiz-service/internal/quiz"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions own a running timer, so they stay in a local map; Redis holds a
// liveness marker per session (quiz:session:{id}) that expires with the TTL.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	logger   *zap.Logger
	mu       sync.RWMutex
	sessions map[string]*quiz.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		logger:   logger,
		sessions: make(map[string]*quiz.Session),
	}
}

func (s *SessionStore) Add(session *quiz.Session) {
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	// best-effort liveness marker
	if err := s.client.Set(context.Background(), s.key(session.ID()), session.View().QuizID, s.ttl).Err(); err != nil {
		s.logger.Warn("mark session live", zap.String("session", session.ID()), zap.Error(err))
	}
}

func (s *SessionStore) Get(sessionID string) (*quiz.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok && s.ttl > 0 {
		_ = s.client.Expire(context.Background(), s.key(sessionID), s.ttl).Err()
	}
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

// Live reports whether the liveness marker for a session still exists.
func (s *SessionStore) Live(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(sessionID)).Result()
	return n == 1, err
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}

// CloseAll tears down every live session and clears their markers.
func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*quiz.Session)
	s.mu.Unlock()

	for id, session := range sessions {
		session.Close()
		_ = s.client.Del(context.Background(), s.key(id)).Err()
	}
}
