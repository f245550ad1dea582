package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dental-quest-service/internal/domain"
	"github.com/uptrace/bun"
)

type userRow struct {
	bun.BaseModel `bun:"table:users"`

	ID           string    `bun:"id,pk"`
	Username     string    `bun:"username,notnull"`
	Email        string    `bun:"email,notnull"`
	TotalScore   int       `bun:"total_score,notnull"`
	Level        int       `bun:"level,notnull"`
	Achievements []string  `bun:"achievements,array"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	LastActive   time.Time `bun:"last_active,notnull"`
}

func (r userRow) toDomain() domain.User {
	achievements := r.Achievements
	if achievements == nil {
		achievements = []string{}
	}
	return domain.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		TotalScore:   r.TotalScore,
		Level:        r.Level,
		Achievements: achievements,
		CreatedAt:    r.CreatedAt,
		LastActive:   r.LastActive,
	}
}

type resultRow struct {
	bun.BaseModel `bun:"table:assessment_results"`

	AttemptID    string    `bun:"attempt_id,pk"`
	UserID       string    `bun:"user_id,notnull"`
	AssessmentID string    `bun:"assessment_id,notnull"`
	CorrectCount int       `bun:"correct_count,notnull"`
	TotalCount   int       `bun:"total_count,notnull"`
	ScorePercent int       `bun:"score_percent,notnull"`
	Passed       bool      `bun:"passed,notnull"`
	CompletedAt  time.Time `bun:"completed_at,notnull"`
}

// ProgressStore persists results and user progression with bun.
type ProgressStore struct {
	db *bun.DB
}

func NewProgressStore(db *bun.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// CreateUser inserts the account unless its email is already registered, then
// returns whatever row owns that email.
func (s *ProgressStore) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	row := userRow{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Level:        1,
		Achievements: []string{},
		CreatedAt:    user.CreatedAt,
		LastActive:   user.LastActive,
	}
	if _, err := s.db.NewInsert().Model(&row).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	var stored userRow
	if err := s.db.NewSelect().Model(&stored).Where("email = ?", user.Email).Scan(ctx); err != nil {
		return domain.User{}, fmt.Errorf("load user %s: %w", user.Email, err)
	}
	return stored.toDomain(), nil
}

func (s *ProgressStore) User(ctx context.Context, userID string) (domain.User, error) {
	var row userRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	return row.toDomain(), nil
}

// RecordResult inserts the result row and bumps the user's total in one
// transaction. A replayed attempt id leaves the total untouched.
func (s *ProgressStore) RecordResult(ctx context.Context, record domain.ResultRecord) (int, error) {
	var total int
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := resultRow{
			AttemptID:    record.AttemptID,
			UserID:       record.UserID,
			AssessmentID: record.AssessmentID,
			CorrectCount: record.CorrectCount,
			TotalCount:   record.TotalCount,
			ScorePercent: record.ScorePercent,
			Passed:       record.Passed,
			CompletedAt:  record.CompletedAt,
		}
		res, err := tx.NewInsert().Model(&row).On("CONFLICT (attempt_id) DO NOTHING").Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return err
		}

		points := 0
		if inserted == 1 {
			points = record.ScorePercent
		}
		return tx.QueryRowContext(ctx, `
INSERT INTO users (id, total_score, level, achievements, last_active)
VALUES (?, ?, 1, '{}', ?)
ON CONFLICT (id) DO UPDATE
SET total_score = users.total_score + EXCLUDED.total_score, last_active = EXCLUDED.last_active
RETURNING total_score`, record.UserID, points, record.CompletedAt).Scan(&total)
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// SaveProgression never lowers the stored level and merges achievements, so
// overlapping write-backs for one user converge on the newest total.
func (s *ProgressStore) SaveProgression(ctx context.Context, userID string, level int, achievements []string) error {
	row := userRow{
		ID:           userID,
		Level:        level,
		Achievements: achievements,
		LastActive:   time.Now().UTC(),
	}
	if row.Achievements == nil {
		row.Achievements = []string{}
	}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("level = GREATEST(users.level, EXCLUDED.level)").
		Set("achievements = ARRAY(SELECT DISTINCT a FROM unnest(users.achievements || EXCLUDED.achievements) AS a ORDER BY a)").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save progression: %w", err)
	}
	return nil
}

func (s *ProgressStore) UserProgress(ctx context.Context, userID string) (domain.UserProgress, error) {
	var row userRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserProgress{UserID: userID, Level: 1, Achievements: []string{}}, nil
	}
	if err != nil {
		return domain.UserProgress{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	user := row.toDomain()
	return domain.UserProgress{
		UserID:       user.ID,
		TotalScore:   user.TotalScore,
		Level:        user.Level,
		Achievements: user.Achievements,
	}, nil
}

func (s *ProgressStore) History(ctx context.Context, userID string) ([]domain.ResultRecord, error) {
	var rows []resultRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("completed_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", userID, err)
	}
	out := make([]domain.ResultRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.ResultRecord{
			AttemptID:    r.AttemptID,
			UserID:       r.UserID,
			AssessmentID: r.AssessmentID,
			CorrectCount: r.CorrectCount,
			TotalCount:   r.TotalCount,
			ScorePercent: r.ScorePercent,
			Passed:       r.Passed,
			CompletedAt:  r.CompletedAt,
		})
	}
	return out, nil
}
