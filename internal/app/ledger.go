package app

import (
	"fmt"

	"dental-quest-service/internal/domain"
)

// Ledger records one selected option per question index.
// It is not safe for concurrent use; Attempt serializes access.
type Ledger struct {
	questions []domain.Question
	answers   map[int]string
}

func NewLedger(questions []domain.Question) *Ledger {
	return &Ledger{
		questions: questions,
		answers:   make(map[int]string, len(questions)),
	}
}

// Select records option for questionIndex, overwriting any prior selection.
// Out-of-range indexes and unknown options leave the ledger unchanged.
func (l *Ledger) Select(questionIndex int, option string) error {
	if questionIndex < 0 || questionIndex >= len(l.questions) {
		return fmt.Errorf("%w: question index %d outside 0..%d", domain.ErrValidation, questionIndex, len(l.questions)-1)
	}
	for _, opt := range l.questions[questionIndex].Options {
		if opt == option {
			l.answers[questionIndex] = option
			return nil
		}
	}
	return fmt.Errorf("%w: %q is not an option of question %d", domain.ErrValidation, option, questionIndex)
}

// IsComplete reports whether every question has a selection.
func (l *Ledger) IsComplete() bool {
	return len(l.answers) == len(l.questions)
}

func (l *Ledger) Reset() {
	l.answers = make(map[int]string, len(l.questions))
}

func (l *Ledger) Answered() int {
	return len(l.answers)
}

func (l *Ledger) Selection(questionIndex int) (string, bool) {
	opt, ok := l.answers[questionIndex]
	return opt, ok
}

// Snapshot returns a copy of the current selections.
func (l *Ledger) Snapshot() map[int]string {
	out := make(map[int]string, len(l.answers))
	for k, v := range l.answers {
		out[k] = v
	}
	return out
}
