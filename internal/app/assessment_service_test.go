package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dental-quest-service/internal/app"
	"dental-quest-service/internal/app/apptest"
	"dental-quest-service/internal/domain"
	"dental-quest-service/internal/infra/memory"
)

func TestSubmitPersistsProgress(t *testing.T) {
	ctx := context.Background()
	service, _, progress := newTestService(t, nil)

	attempt, err := service.Start(ctx, "u1", "brushing")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.Select(attempt.ID(), 0, "2 minutes"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := service.Select(attempt.ID(), 1, "Fluoride"); err != nil {
		t.Fatalf("select: %v", err)
	}

	outcome, err := service.Submit(ctx, attempt.ID())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !outcome.Saved || outcome.Progress == nil {
		t.Fatalf("expected saved outcome, got %+v", outcome)
	}
	if outcome.Progress.TotalScore != 100 || outcome.Progress.Level != 2 {
		t.Fatalf("expected 100 points at level 2, got %+v", outcome.Progress)
	}
	if len(outcome.Progress.Achievements) != 1 || outcome.Progress.Achievements[0] != "explorer" {
		t.Fatalf("expected explorer unlocked, got %v", outcome.Progress.Achievements)
	}

	// Resubmitting returns the same outcome and never double counts.
	again, err := service.Submit(ctx, attempt.ID())
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if again.Result != outcome.Result {
		t.Fatalf("resubmit changed the result: %+v vs %+v", again.Result, outcome.Result)
	}
	up, _ := progress.UserProgress(ctx, "u1")
	if up.TotalScore != 100 || up.Level != 2 {
		t.Fatalf("expected stored total 100 at level 2, got %+v", up)
	}
}

func TestExpiryPersistsPartialResult(t *testing.T) {
	ctx := context.Background()
	service, tickers, _ := newTestService(t, nil)

	attempt, err := service.Start(ctx, "u1", "speed")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_, _ = service.Select(attempt.ID(), 1, "Fluoride")
	tickers.Next(t).Tick(t)

	select {
	case <-attempt.Saved():
	case <-time.After(2 * time.Second):
		t.Fatalf("expired attempt was not persisted")
	}
	view := attempt.View()
	if view.Status != app.StatusSubmitted || view.Reason != app.ReasonExpired {
		t.Fatalf("expected expired submission, got %s/%s", view.Status, view.Reason)
	}
	if view.Outcome == nil || view.Outcome.Result.ScorePercent != 50 || !view.Outcome.Saved {
		t.Fatalf("unexpected outcome %+v", view.Outcome)
	}

	prog, err := service.Progress(ctx, "u1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if prog.Progression.TotalScore != 50 || prog.Stats.Completed != 1 || len(prog.History) != 1 {
		t.Fatalf("unexpected progress %+v", prog)
	}
}

func TestSubmitKeepsResultWhenPersistenceFails(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t, failingProgress{})

	attempt, _ := service.Start(ctx, "u1", "speed")
	_, _ = service.Select(attempt.ID(), 0, "2 minutes")

	outcome, err := service.Submit(ctx, attempt.ID())
	if err != nil {
		t.Fatalf("submit must not fail on persistence errors: %v", err)
	}
	if outcome.Saved || outcome.Progress != nil || outcome.Warning == "" {
		t.Fatalf("expected unsaved outcome with warning, got %+v", outcome)
	}
	if outcome.Result.CorrectCount != 1 || outcome.Result.ScorePercent != 50 {
		t.Fatalf("locally computed result must survive, got %+v", outcome.Result)
	}
}

func TestSubmitIncompleteLesson(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t, nil)

	attempt, _ := service.Start(ctx, "u1", "brushing")
	defer service.Abandon(attempt.ID())

	if _, err := service.Submit(ctx, attempt.ID()); !errors.Is(err, domain.ErrIncomplete) {
		t.Fatalf("expected incomplete error, got %v", err)
	}
	if !errors.Is(domain.ErrIncomplete, domain.ErrValidation) {
		t.Fatalf("incomplete must classify as validation")
	}
}

func TestRetryStartsFreshAttempt(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t, nil)

	first, _ := service.Start(ctx, "u1", "speed")
	_, _ = service.Select(first.ID(), 0, "2 minutes")
	if _, err := service.Submit(ctx, first.ID()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	second, err := service.Retry(ctx, first.ID())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	defer service.Abandon(second.ID())

	if second.ID() == first.ID() {
		t.Fatalf("retry must create a new attempt")
	}
	view := second.View()
	if view.Status != app.StatusInProgress || view.Answered != 0 || view.RemainingSeconds != 1 {
		t.Fatalf("expected fresh attempt, got %+v", view)
	}
	if _, err := service.Attempt(first.ID()); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("old attempt should be discarded, got %v", err)
	}
}

func TestStartRejectsBrokenDefinitions(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t, nil)

	if _, err := service.Start(ctx, "u1", "missing"); !errors.Is(err, domain.ErrAssessmentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := service.Start(ctx, "u1", "broken"); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := service.Start(ctx, "u1", "untimed"); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error for zero time limit, got %v", err)
	}
}

func TestEvaluateAnswerSheet(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t, nil)

	outcome, err := service.Evaluate(ctx, "u2", "brushing", []app.AnswerInput{
		{QuestionIndex: 0, SelectedOption: "2 minutes"},
		{QuestionIndex: 1, SelectedOption: "Calcium"},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if outcome.Result.ScorePercent != 50 || outcome.Result.Passed || !outcome.Saved {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	_, err = service.Evaluate(ctx, "u2", "brushing", []app.AnswerInput{{QuestionIndex: 7, SelectedOption: "x"}})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListAssessmentsHidesAnswers(t *testing.T) {
	service, _, _ := newTestService(t, nil)
	defs, err := service.ListAssessments(context.Background(), domain.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(defs) != 4 {
		t.Fatalf("expected 4 definitions, got %d", len(defs))
	}
	brushing := defs[1]
	if brushing.ID != "brushing" || brushing.Questions[1].Index != 1 {
		t.Fatalf("expected positional indexes on brushing, got %+v", brushing)
	}
}

func TestListAssessmentsFilters(t *testing.T) {
	service, _, _ := newTestService(t, nil)
	ctx := context.Background()

	lessons, err := service.ListAssessments(ctx, domain.ListFilter{Level: 1})
	if err != nil {
		t.Fatalf("list by level: %v", err)
	}
	if len(lessons) != 1 || lessons[0].ID != "brushing" {
		t.Fatalf("expected only brushing at level 1, got %+v", lessons)
	}

	challenges, _ := service.ListAssessments(ctx, domain.ListFilter{Kind: domain.KindChallenge})
	if len(challenges) != 2 {
		t.Fatalf("expected 2 challenges, got %d", len(challenges))
	}
	for _, c := range challenges {
		if c.Kind != domain.KindChallenge {
			t.Fatalf("unexpected kind %s in challenge listing", c.Kind)
		}
	}
}

func TestCreateUserIsIdempotentByEmail(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t, nil)

	user, err := service.CreateUser(ctx, "mia", "mia@example.com")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.ID == "" || user.Level != 1 || user.TotalScore != 0 {
		t.Fatalf("unexpected new user %+v", user)
	}
	again, err := service.CreateUser(ctx, "mia2", "mia@example.com")
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if again.ID != user.ID || again.Username != "mia" {
		t.Fatalf("expected existing account returned, got %+v", again)
	}

	if _, err := service.Evaluate(ctx, user.ID, "brushing", []app.AnswerInput{
		{QuestionIndex: 0, SelectedOption: "2 minutes"},
		{QuestionIndex: 1, SelectedOption: "Fluoride"},
	}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	got, err := service.User(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.TotalScore != 100 || got.Level != 2 {
		t.Fatalf("expected progress on the account, got %+v", got)
	}

	if _, err := service.User(ctx, "ghost"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
	if _, err := service.CreateUser(ctx, " ", "x@example.com"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSweepFinishedAndWait(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t, nil)

	attempt, _ := service.Start(ctx, "u1", "speed")
	if _, err := service.Submit(ctx, attempt.ID()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := service.Wait(waitCtx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	if removed := service.SweepFinished(time.Now().Add(time.Minute)); removed != 1 {
		t.Fatalf("expected submitted attempt swept, removed %d", removed)
	}
}

type failingProgress struct{}

var errStoreDown = errors.New("store down")

func (failingProgress) CreateUser(context.Context, domain.User) (domain.User, error) {
	return domain.User{}, errStoreDown
}

func (failingProgress) User(context.Context, string) (domain.User, error) {
	return domain.User{}, errStoreDown
}

func (failingProgress) RecordResult(context.Context, domain.ResultRecord) (int, error) {
	return 0, errStoreDown
}

func (failingProgress) SaveProgression(context.Context, string, int, []string) error {
	return errStoreDown
}

func (failingProgress) UserProgress(context.Context, string) (domain.UserProgress, error) {
	return domain.UserProgress{}, errStoreDown
}

func (failingProgress) History(context.Context, string) ([]domain.ResultRecord, error) {
	return nil, errStoreDown
}

func newTestService(t *testing.T, progress app.ProgressStore) (*app.AssessmentService, *apptest.Tickers, app.ProgressStore) {
	t.Helper()
	if progress == nil {
		progress = memory.NewProgressStore()
	}
	tickers := apptest.NewTickers()
	defs := memory.NewDefinitionRepository(memory.NewStaticDefinitionLoader(testDefinitions()), time.Minute)
	service := app.NewAssessmentService(defs, memory.NewAttemptStore(), progress, app.Config{
		NewTicker: func(d time.Duration) app.Ticker { return tickers.New(d) },
		Retry: app.RetryConfig{
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
			MaxElapsedTime:  20 * time.Millisecond,
		},
	})
	return service, tickers, progress
}

func testDefinitions() map[string]domain.Definition {
	threshold := 70
	questions := []domain.Question{
		{Prompt: "How long should you brush?", Options: []string{"1 minute", "2 minutes"}, CorrectAnswer: "2 minutes"},
		{Prompt: "What prevents cavities?", Options: []string{"Calcium", "Fluoride"}, CorrectAnswer: "Fluoride"},
	}
	return map[string]domain.Definition{
		"brushing": {
			ID:               "brushing",
			Kind:             domain.KindLesson,
			Level:            1,
			Questions:        questions,
			TimeLimitSeconds: 300,
			PassThreshold:    &threshold,
			RequireComplete:  true,
		},
		"speed": {
			ID:               "speed",
			Kind:             domain.KindChallenge,
			Questions:        questions,
			TimeLimitSeconds: 1,
		},
		"broken": {
			ID:               "broken",
			Kind:             domain.KindLesson,
			TimeLimitSeconds: 60,
			Questions: []domain.Question{
				{Prompt: "?", Options: []string{"a", "b"}, CorrectAnswer: "c"},
			},
		},
		"untimed": {
			ID:        "untimed",
			Kind:      domain.KindChallenge,
			Questions: questions,
		},
	}
}

func TestOverlappingWriteBacksKeepLevelConsistent(t *testing.T) {
	ctx := context.Background()
	progress := &heldProgress{
		ProgressStore: memory.NewProgressStore(),
		holdLevel:     2,
		held:          make(chan struct{}),
		release:       make(chan struct{}),
	}
	service, _, _ := newTestService(t, progress)
	perfect := []app.AnswerInput{
		{QuestionIndex: 0, SelectedOption: "2 minutes"},
		{QuestionIndex: 1, SelectedOption: "Fluoride"},
	}

	first := make(chan domain.Outcome, 1)
	go func() {
		outcome, _ := service.Evaluate(ctx, "u", "brushing", perfect)
		first <- outcome
	}()
	select {
	case <-progress.held:
	case <-time.After(2 * time.Second):
		t.Fatalf("first write-back never reached SaveProgression")
	}

	second, err := service.Evaluate(ctx, "u", "brushing", perfect)
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if !second.Saved || second.Progress.TotalScore != 200 {
		t.Fatalf("expected second write-back to see 200 points, got %+v", second)
	}
	close(progress.release)
	if outcome := <-first; !outcome.Saved {
		t.Fatalf("expected first write-back saved, got %+v", outcome)
	}

	up, _ := progress.UserProgress(ctx, "u")
	if up.TotalScore != 200 || up.Level != app.ComputeLevel(up.TotalScore) {
		t.Fatalf("stored level %d inconsistent with total %d", up.Level, up.TotalScore)
	}
	if len(up.Achievements) != 2 {
		t.Fatalf("expected explorer and expert kept, got %v", up.Achievements)
	}
}

// heldProgress blocks the first SaveProgression at holdLevel until released.
type heldProgress struct {
	*memory.ProgressStore
	holdLevel int
	held      chan struct{}
	release   chan struct{}
	once      sync.Once
}

func (p *heldProgress) SaveProgression(ctx context.Context, userID string, level int, achievements []string) error {
	if level == p.holdLevel {
		hold := false
		p.once.Do(func() { hold = true })
		if hold {
			close(p.held)
			<-p.release
		}
	}
	return p.ProgressStore.SaveProgression(ctx, userID, level, achievements)
}
