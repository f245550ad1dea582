package redis

import (
	"context"
	"sync"
	"time"

	"dental-quest-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// AttemptStore is a Redis-aware implementation of app.AttemptRepository.
// Attempts own live timers and subscriber channels, so they stay in a local map;
// Redis only carries a liveness marker per attempt so other instances and
// operators can see which attempts this process is serving.
type AttemptStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	attempts map[string]*app.Attempt
}

func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{
		client:   client,
		ttl:      ttl,
		attempts: make(map[string]*app.Attempt),
	}
}

func (s *AttemptStore) Put(attempt *app.Attempt) {
	s.mu.Lock()
	s.attempts[attempt.ID()] = attempt
	s.mu.Unlock()
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(attempt.ID()), attempt.UserID(), s.ttl).Err()
}

func (s *AttemptStore) Get(attemptID string) (*app.Attempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptID]
	return attempt, ok
}

func (s *AttemptStore) Delete(attemptID string) {
	s.mu.Lock()
	delete(s.attempts, attemptID)
	s.mu.Unlock()
	_ = s.client.Del(context.Background(), s.key(attemptID)).Err()
}

func (s *AttemptStore) Sweep(before time.Time) int {
	s.mu.Lock()
	var removed []string
	for id, attempt := range s.attempts {
		if finished, ok := attempt.FinishedAt(); ok && finished.Before(before) {
			delete(s.attempts, id)
			removed = append(removed, id)
		}
	}
	s.mu.Unlock()

	if len(removed) > 0 {
		keys := make([]string, len(removed))
		for i, id := range removed {
			keys[i] = s.key(id)
		}
		_ = s.client.Del(context.Background(), keys...).Err()
	}
	return len(removed)
}

func (s *AttemptStore) key(attemptID string) string {
	return "assessment:attempt:" + attemptID
}
