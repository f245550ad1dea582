package app

import (
	"fmt"

	"dental-quest-service/internal/domain"
)

// ValidateDefinition rejects definitions the engine cannot score. It must pass
// before an attempt is started; nothing is ever silently scored as 0%.
func ValidateDefinition(def domain.Definition) error {
	if len(def.Questions) == 0 {
		return fmt.Errorf("%w: assessment %q has no questions", domain.ErrConfiguration, def.ID)
	}
	if def.TimeLimitSeconds <= 0 {
		return fmt.Errorf("%w: assessment %q time limit must be positive, got %d", domain.ErrConfiguration, def.ID, def.TimeLimitSeconds)
	}
	if def.PassThreshold != nil && (*def.PassThreshold < 0 || *def.PassThreshold > 100) {
		return fmt.Errorf("%w: assessment %q pass threshold %d outside 0..100", domain.ErrConfiguration, def.ID, *def.PassThreshold)
	}
	if def.AutoAdvanceDelayMs < 0 {
		return fmt.Errorf("%w: assessment %q auto-advance delay is negative", domain.ErrConfiguration, def.ID)
	}
	for _, b := range def.RatingBands {
		if b.MinPercent < 0 || b.MinPercent > 100 {
			return fmt.Errorf("%w: assessment %q rating band %d outside 0..100", domain.ErrConfiguration, def.ID, b.MinPercent)
		}
		switch b.Rating {
		case domain.RatingPerfect, domain.RatingExcellent, domain.RatingGood, domain.RatingKeepTrying:
		default:
			return fmt.Errorf("%w: assessment %q has unknown rating %q", domain.ErrConfiguration, def.ID, b.Rating)
		}
	}
	for i, q := range def.Questions {
		if len(q.Options) == 0 {
			return fmt.Errorf("%w: question %d has no options", domain.ErrConfiguration, i)
		}
		seen := make(map[string]struct{}, len(q.Options))
		for _, opt := range q.Options {
			if _, dup := seen[opt]; dup {
				return fmt.Errorf("%w: question %d lists option %q twice", domain.ErrConfiguration, i, opt)
			}
			seen[opt] = struct{}{}
		}
		if _, ok := seen[q.CorrectAnswer]; !ok {
			return fmt.Errorf("%w: question %d correct answer %q is not an option", domain.ErrConfiguration, i, q.CorrectAnswer)
		}
	}
	return nil
}

// normalizeDefinition assigns question indexes by position.
func normalizeDefinition(def domain.Definition) domain.Definition {
	questions := make([]domain.Question, len(def.Questions))
	for i, q := range def.Questions {
		q.Index = i
		q.Options = append([]string(nil), q.Options...)
		questions[i] = q
	}
	def.Questions = questions
	def.RatingBands = append([]domain.RatingBand(nil), def.RatingBands...)
	return def
}
