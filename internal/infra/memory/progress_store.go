package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"dental-quest-service/internal/domain"
)

// ProgressStore keeps user accounts and result history in process memory.
type ProgressStore struct {
	mu      sync.RWMutex
	users   map[string]*domain.User
	results map[string]domain.ResultRecord
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		users:   make(map[string]*domain.User),
		results: make(map[string]domain.ResultRecord),
	}
}

// CreateUser registers an account. An email that is already registered
// returns the existing account unchanged.
func (s *ProgressStore) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email != "" && u.Email == user.Email {
			return copyUser(u), nil
		}
	}
	if existing, ok := s.users[user.ID]; ok {
		// results arrived before the profile did
		existing.Username = user.Username
		existing.Email = user.Email
		return copyUser(existing), nil
	}
	stored := user
	if stored.Level < 1 {
		stored.Level = 1
	}
	stored.Achievements = append([]string{}, user.Achievements...)
	s.users[user.ID] = &stored
	return copyUser(&stored), nil
}

func (s *ProgressStore) User(_ context.Context, userID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return copyUser(u), nil
}

// RecordResult adds the score to the user's total once per attempt id.
func (s *ProgressStore) RecordResult(_ context.Context, record domain.ResultRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.userLocked(record.UserID, record.CompletedAt)
	if _, seen := s.results[record.AttemptID]; !seen {
		s.results[record.AttemptID] = record
		user.TotalScore += record.ScorePercent
	}
	if record.CompletedAt.After(user.LastActive) {
		user.LastActive = record.CompletedAt
	}
	return user.TotalScore, nil
}

// SaveProgression only moves forward: the level never drops and achievements
// are merged, so a late write computed from an older total cannot undo a
// newer one.
func (s *ProgressStore) SaveProgression(_ context.Context, userID string, level int, achievements []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.userLocked(userID, time.Now())
	if level > user.Level {
		user.Level = level
	}
	user.Achievements = mergeAchievements(user.Achievements, achievements)
	return nil
}

// UserProgress returns level-1 defaults for users without results.
func (s *ProgressStore) UserProgress(_ context.Context, userID string) (domain.UserProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.UserProgress{UserID: userID, Level: 1, Achievements: []string{}}, nil
	}
	return domain.UserProgress{
		UserID:       user.ID,
		TotalScore:   user.TotalScore,
		Level:        user.Level,
		Achievements: append([]string{}, user.Achievements...),
	}, nil
}

// History lists a user's results, newest first.
func (s *ProgressStore) History(_ context.Context, userID string) ([]domain.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ResultRecord
	for _, r := range s.results {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	return out, nil
}

func (s *ProgressStore) userLocked(userID string, now time.Time) *domain.User {
	user, ok := s.users[userID]
	if !ok {
		user = &domain.User{ID: userID, Level: 1, Achievements: []string{}, CreatedAt: now, LastActive: now}
		s.users[userID] = user
	}
	return user
}

func copyUser(u *domain.User) domain.User {
	out := *u
	out.Achievements = append([]string{}, u.Achievements...)
	return out
}

func mergeAchievements(have, add []string) []string {
	out := append([]string{}, have...)
	for _, id := range add {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
