package app

import (
	"fmt"

	"dental-quest-service/internal/domain"
)

// Score compares answers against the answer key. Missing entries count as
// incorrect and totalCount is always the full question count. A nil
// passThreshold leaves the result ungated (Passed is false).
func Score(questions []domain.Question, answers map[int]string, passThreshold *int) (domain.AssessmentResult, error) {
	total := len(questions)
	if total == 0 {
		return domain.AssessmentResult{}, fmt.Errorf("%w: cannot score an empty answer key", domain.ErrConfiguration)
	}

	correct := 0
	for i, q := range questions {
		if selected, ok := answers[i]; ok && selected == q.CorrectAnswer {
			correct++
		}
	}

	percent := scorePercent(correct, total)
	result := domain.AssessmentResult{
		CorrectCount: correct,
		TotalCount:   total,
		ScorePercent: percent,
		Rating:       rate(percent),
	}
	if passThreshold != nil {
		threshold := *passThreshold
		result.PassThreshold = &threshold
		result.Passed = percent >= threshold
	}
	return result, nil
}

// scorePercent rounds correct/total*100 half-up in integer arithmetic.
func scorePercent(correct, total int) int {
	return (correct*200 + total) / (2 * total)
}

// ScoreDefinition scores answers against def and rates the result with the
// definition's own bands when it has any.
func ScoreDefinition(def domain.Definition, answers map[int]string) (domain.AssessmentResult, error) {
	result, err := Score(def.Questions, answers, def.PassThreshold)
	if err != nil {
		return domain.AssessmentResult{}, err
	}
	if len(def.RatingBands) > 0 {
		result.Rating = Rate(result.ScorePercent, def.RatingBands)
	}
	return result, nil
}

// DefaultRatingBands are the challenge feedback bands.
func DefaultRatingBands() []domain.RatingBand {
	return []domain.RatingBand{
		{MinPercent: 100, Rating: domain.RatingPerfect},
		{MinPercent: 80, Rating: domain.RatingExcellent},
		{MinPercent: 60, Rating: domain.RatingGood},
	}
}

// Rate picks the highest band percent reaches.
func Rate(percent int, bands []domain.RatingBand) domain.Rating {
	best := -1
	rating := domain.RatingKeepTrying
	for _, b := range bands {
		if percent >= b.MinPercent && b.MinPercent > best {
			best = b.MinPercent
			rating = b.Rating
		}
	}
	return rating
}

func rate(percent int) domain.Rating {
	return Rate(percent, DefaultRatingBands())
}
