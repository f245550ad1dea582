package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"dental-quest-service/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefinitionRepository loads assessment definitions (from cache/backing store).
type DefinitionRepository interface {
	GetDefinition(ctx context.Context, assessmentID string) (domain.Definition, error)
	ListDefinitions(ctx context.Context) ([]domain.Definition, error)
}

// AttemptRepository abstracts where live attempts are kept (in-memory, Redis, etc).
type AttemptRepository interface {
	Put(attempt *Attempt)
	Get(attemptID string) (*Attempt, bool)
	Delete(attemptID string)
	// Sweep drops attempts that reached a terminal state before the cutoff.
	Sweep(before time.Time) int
}

// ProgressStore is the user-account collaborator that persists results.
type ProgressStore interface {
	// CreateUser returns the existing account when the email is already registered.
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	User(ctx context.Context, userID string) (domain.User, error)
	// RecordResult stores the result once per attempt id and returns the
	// user's updated total score.
	RecordResult(ctx context.Context, record domain.ResultRecord) (int, error)
	SaveProgression(ctx context.Context, userID string, level int, achievements []string) error
	UserProgress(ctx context.Context, userID string) (domain.UserProgress, error)
	History(ctx context.Context, userID string) ([]domain.ResultRecord, error)
}

// AnswerInput is one entry of a full answer sheet.
type AnswerInput struct {
	QuestionIndex  int    `json:"questionIndex"`
	SelectedOption string `json:"selectedOption"`
}

// Config carries the engine's collaborators and tunables.
type Config struct {
	Achievements   []domain.AchievementRule
	Retry          RetryConfig
	PersistTimeout time.Duration
	NewTicker      TickerFactory
	Now            func() time.Time
	NewID          func() string
	Recorder       Recorder
	Logger         *zap.Logger
}

// AssessmentService contains the assessment use cases.
type AssessmentService struct {
	defs           DefinitionRepository
	attempts       AttemptRepository
	progress       ProgressStore
	achievements   []domain.AchievementRule
	retry          RetryConfig
	persistTimeout time.Duration
	newTicker      TickerFactory
	now            func() time.Time
	newID          func() string
	recorder       Recorder
	logger         *zap.Logger

	pending sync.WaitGroup
}

func NewAssessmentService(defs DefinitionRepository, attempts AttemptRepository, progress ProgressStore, cfg Config) *AssessmentService {
	s := &AssessmentService{
		defs:           defs,
		attempts:       attempts,
		progress:       progress,
		achievements:   cfg.Achievements,
		retry:          cfg.Retry,
		persistTimeout: cfg.PersistTimeout,
		newTicker:      cfg.NewTicker,
		now:            cfg.Now,
		newID:          cfg.NewID,
		recorder:       cfg.Recorder,
		logger:         cfg.Logger,
	}
	if s.achievements == nil {
		s.achievements = DefaultAchievements()
	}
	if s.retry == (RetryConfig{}) {
		s.retry = DefaultRetryConfig()
	}
	if s.persistTimeout <= 0 {
		s.persistTimeout = 30 * time.Second
	}
	if s.newTicker == nil {
		s.newTicker = NewRealTicker
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// ListAssessments returns the lessons and challenges matching filter, without answers.
func (s *AssessmentService) ListAssessments(ctx context.Context, filter domain.ListFilter) ([]domain.PublicDefinition, error) {
	defs, err := s.defs.ListDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PublicDefinition, 0, len(defs))
	for _, def := range defs {
		if filter.Level > 0 && def.Level != filter.Level {
			continue
		}
		if filter.Kind != "" && def.Kind != filter.Kind {
			continue
		}
		out = append(out, normalizeDefinition(def).Public())
	}
	return out, nil
}

// CreateUser registers a learner. Registering a known email again returns
// the existing account.
func (s *AssessmentService) CreateUser(ctx context.Context, username, email string) (domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return domain.User{}, fmt.Errorf("%w: username and email are required", domain.ErrValidation)
	}
	now := s.now()
	user, err := s.progress.CreateUser(ctx, domain.User{
		ID:           s.newID(),
		Username:     username,
		Email:        email,
		Level:        1,
		Achievements: []string{},
		CreatedAt:    now,
		LastActive:   now,
	})
	if err != nil {
		return domain.User{}, err
	}
	s.logger.Info("user registered", zap.String("userId", user.ID), zap.String("username", user.Username))
	return user, nil
}

func (s *AssessmentService) User(ctx context.Context, userID string) (domain.User, error) {
	return s.progress.User(ctx, userID)
}

// Assessment returns a single definition without answers.
func (s *AssessmentService) Assessment(ctx context.Context, assessmentID string) (domain.PublicDefinition, error) {
	def, err := s.loadDefinition(ctx, assessmentID)
	if err != nil {
		return domain.PublicDefinition{}, err
	}
	return def.Public(), nil
}

func (s *AssessmentService) loadDefinition(ctx context.Context, assessmentID string) (domain.Definition, error) {
	def, err := s.defs.GetDefinition(ctx, assessmentID)
	if err != nil {
		return domain.Definition{}, err
	}
	def = normalizeDefinition(def)
	if err := ValidateDefinition(def); err != nil {
		return domain.Definition{}, err
	}
	return def, nil
}

// Start creates and starts a fresh attempt. Configuration errors are reported
// here, before any timer runs.
func (s *AssessmentService) Start(ctx context.Context, userID, assessmentID string) (*Attempt, error) {
	def, err := s.loadDefinition(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	return s.startAttempt(userID, def)
}

func (s *AssessmentService) startAttempt(userID string, def domain.Definition) (*Attempt, error) {
	attempt, err := newAttempt(s.newID(), userID, def, attemptOptions{
		newTicker:  s.newTicker,
		now:        s.now,
		onFinalize: s.finalized,
	})
	if err != nil {
		return nil, err
	}
	if err := attempt.Start(); err != nil {
		return nil, err
	}
	s.attempts.Put(attempt)
	s.recorder.AttemptStarted(def.Kind)
	s.logger.Info("attempt started",
		zap.String("attemptId", attempt.ID()),
		zap.String("userId", userID),
		zap.String("assessmentId", def.ID),
		zap.Int("timeLimitSeconds", def.TimeLimitSeconds))
	return attempt, nil
}

// Attempt looks up a live attempt.
func (s *AssessmentService) Attempt(attemptID string) (*Attempt, error) {
	attempt, ok := s.attempts.Get(attemptID)
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

// Select records an answer on a live attempt.
func (s *AssessmentService) Select(attemptID string, questionIndex int, option string) (AttemptView, error) {
	attempt, err := s.Attempt(attemptID)
	if err != nil {
		return AttemptView{}, err
	}
	if err := attempt.Select(questionIndex, option); err != nil {
		return AttemptView{}, err
	}
	return attempt.View(), nil
}

func (s *AssessmentService) Next(attemptID string) (AttemptView, error) {
	attempt, err := s.Attempt(attemptID)
	if err != nil {
		return AttemptView{}, err
	}
	if _, err := attempt.Next(); err != nil {
		return AttemptView{}, err
	}
	return attempt.View(), nil
}

func (s *AssessmentService) Previous(attemptID string) (AttemptView, error) {
	attempt, err := s.Attempt(attemptID)
	if err != nil {
		return AttemptView{}, err
	}
	if _, err := attempt.Previous(); err != nil {
		return AttemptView{}, err
	}
	return attempt.View(), nil
}

// Submit finalizes an attempt and waits for the write-back. If ctx ends
// first the locally computed result is still returned, flagged as unsaved.
func (s *AssessmentService) Submit(ctx context.Context, attemptID string) (domain.Outcome, error) {
	attempt, err := s.Attempt(attemptID)
	if err != nil {
		return domain.Outcome{}, err
	}
	result, err := attempt.Submit()
	if err != nil {
		return domain.Outcome{}, err
	}
	select {
	case <-attempt.Saved():
		outcome, _ := attempt.Outcome()
		return outcome, nil
	case <-ctx.Done():
		return domain.Outcome{Result: result, Saved: false, Warning: progressNotSavedWarning}, nil
	}
}

// Retry discards an attempt and starts a fresh one on the same definition.
func (s *AssessmentService) Retry(_ context.Context, attemptID string) (*Attempt, error) {
	old, err := s.Attempt(attemptID)
	if err != nil {
		return nil, err
	}
	if old.Abandon() {
		s.recorder.AttemptAbandoned(old.Definition().Kind)
	}
	s.attempts.Delete(attemptID)
	return s.startAttempt(old.UserID(), old.Definition())
}

// Abandon stops an attempt the user navigated away from and discards it.
func (s *AssessmentService) Abandon(attemptID string) error {
	attempt, err := s.Attempt(attemptID)
	if err != nil {
		return err
	}
	if attempt.Abandon() {
		s.recorder.AttemptAbandoned(attempt.Definition().Kind)
		s.logger.Info("attempt abandoned", zap.String("attemptId", attemptID))
	}
	s.attempts.Delete(attemptID)
	return nil
}

// Evaluate scores a complete answer sheet in one call and writes it back.
func (s *AssessmentService) Evaluate(ctx context.Context, userID, assessmentID string, answers []AnswerInput) (domain.Outcome, error) {
	def, err := s.loadDefinition(ctx, assessmentID)
	if err != nil {
		return domain.Outcome{}, err
	}
	ledger := NewLedger(def.Questions)
	for _, answer := range answers {
		if err := ledger.Select(answer.QuestionIndex, answer.SelectedOption); err != nil {
			return domain.Outcome{}, err
		}
	}
	result, err := ScoreDefinition(def, ledger.Snapshot())
	if err != nil {
		return domain.Outcome{}, err
	}
	s.recorder.AttemptFinished(def.Kind, ReasonManual, result)

	record := s.resultRecord(s.newID(), userID, def.ID, result)
	update, err := s.writeBack(ctx, record)
	if err != nil {
		s.logger.Error("progress not saved", zap.String("userId", userID), zap.String("assessmentId", def.ID), zap.Error(err))
	}
	return s.buildOutcome(result, update, err), nil
}

// Progress derives the profile view from the stored score total.
func (s *AssessmentService) Progress(ctx context.Context, userID string) (domain.ProgressView, error) {
	up, err := s.progress.UserProgress(ctx, userID)
	if err != nil {
		return domain.ProgressView{}, err
	}
	history, err := s.progress.History(ctx, userID)
	if err != nil {
		return domain.ProgressView{}, err
	}
	if history == nil {
		history = []domain.ResultRecord{}
	}
	return domain.ProgressView{
		UserID:      userID,
		Progression: Evaluate(up.TotalScore, s.achievements),
		Stats:       SummarizeHistory(history),
		History:     history,
	}, nil
}

// SweepFinished drops terminal attempts older than before.
func (s *AssessmentService) SweepFinished(before time.Time) int {
	return s.attempts.Sweep(before)
}

// Wait blocks until pending write-backs finish or ctx ends.
func (s *AssessmentService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AssessmentService) finalized(attempt *Attempt, reason SubmitReason, result domain.AssessmentResult) {
	def := attempt.Definition()
	s.recorder.AttemptFinished(def.Kind, reason, result)
	s.logger.Info("attempt submitted",
		zap.String("attemptId", attempt.ID()),
		zap.String("reason", string(reason)),
		zap.Int("scorePercent", result.ScorePercent),
		zap.Bool("passed", result.Passed))

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
		defer cancel()

		record := s.resultRecord(attempt.ID(), attempt.UserID(), def.ID, result)
		update, err := s.writeBack(ctx, record)
		if err != nil {
			s.logger.Error("progress not saved", zap.String("attemptId", attempt.ID()), zap.Error(err))
		}
		attempt.recordOutcome(s.buildOutcome(result, update, err))
	}()
}

func (s *AssessmentService) resultRecord(attemptID, userID, assessmentID string, result domain.AssessmentResult) domain.ResultRecord {
	return domain.ResultRecord{
		AttemptID:    attemptID,
		UserID:       userID,
		AssessmentID: assessmentID,
		CorrectCount: result.CorrectCount,
		TotalCount:   result.TotalCount,
		ScorePercent: result.ScorePercent,
		Passed:       result.Passed,
		CompletedAt:  s.now(),
	}
}
