package app

import (
	"sync"
	"time"

	"dental-quest-service/internal/domain"
)

// Status is the lifecycle state of an attempt.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusAbandoned  Status = "abandoned"
)

// SubmitReason records which path finalized an attempt.
type SubmitReason string

const (
	ReasonManual      SubmitReason = "manual"
	ReasonExpired     SubmitReason = "expired"
	ReasonAutoAdvance SubmitReason = "auto_advance"
)

// EventType enumerates attempt notifications.
type EventType string

const (
	EventTick    EventType = "tick"
	EventAdvance EventType = "advance"
	EventExpired EventType = "expired"
	EventResult  EventType = "result"
)

// Event is pushed to attempt subscribers.
type Event struct {
	Type          EventType       `json:"type"`
	AttemptID     string          `json:"attemptId"`
	Remaining     int             `json:"remaining"`
	QuestionIndex int             `json:"questionIndex"`
	Outcome       *domain.Outcome `json:"outcome,omitempty"`
}

// AttemptView is a read-only snapshot of an attempt.
type AttemptView struct {
	ID               string                  `json:"id"`
	UserID           string                  `json:"userId"`
	Assessment       domain.PublicDefinition `json:"assessment"`
	Status           Status                  `json:"status"`
	Reason           SubmitReason            `json:"reason,omitempty"`
	TimeLimitSeconds int                     `json:"timeLimitSeconds"`
	ElapsedSeconds   int                     `json:"elapsedSeconds"`
	RemainingSeconds int                     `json:"remainingSeconds"`
	Current          int                     `json:"current"`
	Answered         int                     `json:"answered"`
	Complete         bool                    `json:"complete"`
	Selections       map[int]string          `json:"selections"`
	Outcome          *domain.Outcome         `json:"outcome,omitempty"`
}

type attemptOptions struct {
	newTicker  TickerFactory
	now        func() time.Time
	onFinalize func(a *Attempt, reason SubmitReason, result domain.AssessmentResult)
}

// Attempt is one user's run through an assessment. All mutations are
// serialized by mu; the timer goroutine reaches it only through expire.
type Attempt struct {
	id         string
	userID     string
	def        domain.Definition
	now        func() time.Time
	onFinalize func(a *Attempt, reason SubmitReason, result domain.AssessmentResult)

	mu         sync.Mutex
	status     Status
	ledger     *Ledger
	timer      *Timer
	cursor     int
	reason     SubmitReason
	result     *domain.AssessmentResult
	advance    *time.Timer
	createdAt  time.Time
	finishedAt time.Time
	outcome    *domain.Outcome
	saved      chan struct{}

	subMu       sync.Mutex
	subscribers map[chan Event]struct{}
}

func newAttempt(id, userID string, def domain.Definition, opts attemptOptions) (*Attempt, error) {
	timer, err := NewTimer(def.TimeLimitSeconds, opts.newTicker)
	if err != nil {
		return nil, err
	}
	now := opts.now
	if now == nil {
		now = time.Now
	}
	return &Attempt{
		id:          id,
		userID:      userID,
		def:         def,
		now:         now,
		onFinalize:  opts.onFinalize,
		status:      StatusNotStarted,
		ledger:      NewLedger(def.Questions),
		timer:       timer,
		createdAt:   now(),
		saved:       make(chan struct{}),
		subscribers: make(map[chan Event]struct{}),
	}, nil
}

func (a *Attempt) ID() string                    { return a.id }
func (a *Attempt) UserID() string                { return a.userID }
func (a *Attempt) Definition() domain.Definition { return a.def }

// Start moves the attempt to InProgress with an empty ledger and a running timer.
func (a *Attempt) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != StatusNotStarted {
		return domain.ErrAttemptClosed
	}
	a.ledger.Reset()
	a.cursor = 0
	a.status = StatusInProgress
	a.timer.Start(a.onTick, a.expire)
	return nil
}

// Select records an answer. With auto-advance enabled the cursor moves on,
// or the attempt finalizes on the last question, after the configured delay.
func (a *Attempt) Select(questionIndex int, option string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != StatusInProgress {
		return domain.ErrAttemptClosed
	}
	if err := a.ledger.Select(questionIndex, option); err != nil {
		return err
	}
	a.cursor = questionIndex
	if a.def.AutoAdvance {
		if a.advance != nil {
			a.advance.Stop()
		}
		delay := time.Duration(a.def.AutoAdvanceDelayMs) * time.Millisecond
		a.advance = time.AfterFunc(delay, func() { a.autoAdvance(questionIndex) })
	}
	return nil
}

// Next moves the cursor forward and returns it.
func (a *Attempt) Next() (int, error) {
	return a.move(1)
}

// Previous moves the cursor back and returns it.
func (a *Attempt) Previous() (int, error) {
	return a.move(-1)
}

func (a *Attempt) move(delta int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != StatusInProgress {
		return a.cursor, domain.ErrAttemptClosed
	}
	next := a.cursor + delta
	if next >= 0 && next < len(a.def.Questions) {
		a.cursor = next
	}
	return a.cursor, nil
}

// Submit finalizes the attempt manually. Submitting an already submitted
// attempt returns the cached result unchanged.
func (a *Attempt) Submit() (domain.AssessmentResult, error) {
	a.mu.Lock()
	switch a.status {
	case StatusSubmitted:
		result := *a.result
		a.mu.Unlock()
		return result, nil
	case StatusInProgress:
	default:
		a.mu.Unlock()
		return domain.AssessmentResult{}, domain.ErrAttemptClosed
	}
	if a.def.RequireComplete && !a.ledger.IsComplete() {
		a.mu.Unlock()
		return domain.AssessmentResult{}, domain.ErrIncomplete
	}
	result := a.finalizeLocked(ReasonManual)
	a.mu.Unlock()

	a.notifyFinalized(ReasonManual, result)
	return result, nil
}

// expire is the timer's forced submit; it is a no-op once the attempt left InProgress.
func (a *Attempt) expire() {
	a.mu.Lock()
	if a.status != StatusInProgress {
		a.mu.Unlock()
		return
	}
	result := a.finalizeLocked(ReasonExpired)
	a.mu.Unlock()

	a.publish(Event{Type: EventExpired, AttemptID: a.id})
	a.notifyFinalized(ReasonExpired, result)
}

func (a *Attempt) autoAdvance(questionIndex int) {
	a.mu.Lock()
	if a.status != StatusInProgress {
		a.mu.Unlock()
		return
	}
	if questionIndex < len(a.def.Questions)-1 {
		if a.cursor <= questionIndex {
			a.cursor = questionIndex + 1
		}
		cursor := a.cursor
		a.mu.Unlock()
		a.publish(Event{Type: EventAdvance, AttemptID: a.id, QuestionIndex: cursor})
		return
	}
	result := a.finalizeLocked(ReasonAutoAdvance)
	a.mu.Unlock()

	a.notifyFinalized(ReasonAutoAdvance, result)
}

// finalizeLocked scores the ledger exactly once. Callers hold mu and have
// checked the attempt is InProgress.
func (a *Attempt) finalizeLocked(reason SubmitReason) domain.AssessmentResult {
	result, err := ScoreDefinition(a.def, a.ledger.Snapshot())
	if err != nil {
		// Definitions are validated before start; reaching this is a defect.
		panic(err)
	}
	a.status = StatusSubmitted
	a.reason = reason
	a.result = &result
	a.finishedAt = a.now()
	if a.advance != nil {
		a.advance.Stop()
	}
	a.timer.Stop()
	return result
}

func (a *Attempt) notifyFinalized(reason SubmitReason, result domain.AssessmentResult) {
	if a.onFinalize != nil {
		a.onFinalize(a, reason, result)
	}
}

// Abandon discards an in-progress attempt. The timer is stopped before it
// returns, so no further signal fires.
func (a *Attempt) Abandon() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status == StatusSubmitted || a.status == StatusAbandoned {
		return false
	}
	a.status = StatusAbandoned
	a.finishedAt = a.now()
	if a.advance != nil {
		a.advance.Stop()
	}
	a.timer.Stop()
	return true
}

// Result returns the cached result once submitted.
func (a *Attempt) Result() (domain.AssessmentResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.result == nil {
		return domain.AssessmentResult{}, false
	}
	return *a.result, true
}

func (a *Attempt) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// FinishedAt reports when the attempt reached a terminal state.
func (a *Attempt) FinishedAt() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != StatusSubmitted && a.status != StatusAbandoned {
		return time.Time{}, false
	}
	return a.finishedAt, true
}

// Saved is closed once the outcome of the write-back is known.
func (a *Attempt) Saved() <-chan struct{} {
	return a.saved
}

// Outcome returns the recorded outcome, if persistence has finished.
func (a *Attempt) Outcome() (domain.Outcome, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.outcome == nil {
		return domain.Outcome{}, false
	}
	return *a.outcome, true
}

func (a *Attempt) recordOutcome(outcome domain.Outcome) {
	a.mu.Lock()
	if a.outcome != nil {
		a.mu.Unlock()
		return
	}
	a.outcome = &outcome
	close(a.saved)
	a.mu.Unlock()

	a.publish(Event{Type: EventResult, AttemptID: a.id, Outcome: &outcome})
}

func (a *Attempt) View() AttemptView {
	a.mu.Lock()
	defer a.mu.Unlock()
	view := AttemptView{
		ID:               a.id,
		UserID:           a.userID,
		Assessment:       a.def.Public(),
		Status:           a.status,
		Reason:           a.reason,
		TimeLimitSeconds: a.timer.Limit(),
		ElapsedSeconds:   a.timer.Elapsed(),
		RemainingSeconds: a.timer.Remaining(),
		Current:          a.cursor,
		Answered:         a.ledger.Answered(),
		Complete:         a.ledger.IsComplete(),
		Selections:       a.ledger.Snapshot(),
	}
	if a.outcome != nil {
		outcome := *a.outcome
		view.Outcome = &outcome
	} else if a.result != nil {
		view.Outcome = &domain.Outcome{Result: *a.result}
	}
	return view
}

func (a *Attempt) onTick(remaining int) {
	a.publish(Event{Type: EventTick, AttemptID: a.id, Remaining: remaining})
}

// Subscribe returns a channel of attempt events. The caller must invoke the
// returned cancel function to avoid leaks.
func (a *Attempt) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	a.subMu.Lock()
	a.subscribers[ch] = struct{}{}
	a.subMu.Unlock()

	cancel := func() {
		a.subMu.Lock()
		if _, ok := a.subscribers[ch]; ok {
			delete(a.subscribers, ch)
			close(ch)
		}
		a.subMu.Unlock()
	}
	return ch, cancel
}

func (a *Attempt) publish(ev Event) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for ch := range a.subscribers {
		select {
		case ch <- ev:
		default:
			// Drop the oldest event so a slow subscriber never blocks the timer.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
