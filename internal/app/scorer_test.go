package app

import (
	"errors"
	"testing"

	"dental-quest-service/internal/domain"
)

func TestScoreHalfCorrectFailsThreshold(t *testing.T) {
	threshold := 70
	result, err := Score(twoQuestions(), map[int]string{0: "2 minutes", 1: "Calcium"}, &threshold)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if result.CorrectCount != 1 || result.TotalCount != 2 || result.ScorePercent != 50 || result.Passed {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Rating != domain.RatingKeepTrying {
		t.Fatalf("expected keep-trying rating, got %s", result.Rating)
	}
}

func TestScoreCountsMissingAsIncorrect(t *testing.T) {
	result, err := Score(twoQuestions(), map[int]string{1: "Fluoride"}, nil)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if result.TotalCount != 2 || result.CorrectCount != 1 {
		t.Fatalf("total must be the full key, got %+v", result)
	}
	if result.Passed || result.PassThreshold != nil {
		t.Fatalf("ungated result must not pass, got %+v", result)
	}
}

func TestScoreRoundsHalfUp(t *testing.T) {
	cases := []struct {
		correct, total, want int
	}{
		{correct: 1, total: 3, want: 33},
		{correct: 2, total: 3, want: 67},
		{correct: 1, total: 8, want: 13},
		{correct: 0, total: 5, want: 0},
		{correct: 5, total: 5, want: 100},
	}
	for _, tc := range cases {
		if got := scorePercent(tc.correct, tc.total); got != tc.want {
			t.Fatalf("scorePercent(%d,%d)=%d, want %d", tc.correct, tc.total, got, tc.want)
		}
	}
}

func TestScorePassesAtThreshold(t *testing.T) {
	threshold := 100
	result, _ := Score(twoQuestions(), map[int]string{0: "2 minutes", 1: "Fluoride"}, &threshold)
	if !result.Passed || result.Rating != domain.RatingPerfect {
		t.Fatalf("expected perfect pass, got %+v", result)
	}
}

func TestScoreEmptyKeyIsConfigurationError(t *testing.T) {
	if _, err := Score(nil, nil, nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRatingBands(t *testing.T) {
	for percent, want := range map[int]domain.Rating{
		100: domain.RatingPerfect,
		99:  domain.RatingExcellent,
		80:  domain.RatingExcellent,
		79:  domain.RatingGood,
		60:  domain.RatingGood,
		59:  domain.RatingKeepTrying,
	} {
		if got := rate(percent); got != want {
			t.Fatalf("rate(%d)=%s, want %s", percent, got, want)
		}
	}
}

func TestScoreDefinitionUsesOwnBands(t *testing.T) {
	threshold := 70
	def := domain.Definition{
		Questions:     threeQuestions(),
		PassThreshold: &threshold,
		RatingBands: []domain.RatingBand{
			{MinPercent: 90, Rating: domain.RatingExcellent},
			{MinPercent: 70, Rating: domain.RatingGood},
		},
	}

	// 2/3 rounds to 67: good on the challenge bands, below the lesson bands
	result, err := ScoreDefinition(def, map[int]string{0: "a", 1: "a"})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if result.ScorePercent != 67 || result.Rating != domain.RatingKeepTrying {
		t.Fatalf("expected 67 keep-trying, got %d %s", result.ScorePercent, result.Rating)
	}

	result, _ = ScoreDefinition(def, map[int]string{0: "a", 1: "a", 2: "a"})
	if result.Rating != domain.RatingExcellent {
		t.Fatalf("expected excellent for a full score, got %s", result.Rating)
	}

	def.RatingBands = nil
	result, _ = ScoreDefinition(def, map[int]string{0: "a", 1: "a"})
	if result.Rating != domain.RatingGood {
		t.Fatalf("expected default bands to rate 67 good, got %s", result.Rating)
	}
}

func threeQuestions() []domain.Question {
	return []domain.Question{
		{Prompt: "one", Options: []string{"a", "b"}, CorrectAnswer: "a"},
		{Prompt: "two", Options: []string{"a", "b"}, CorrectAnswer: "a"},
		{Prompt: "three", Options: []string{"a", "b"}, CorrectAnswer: "a"},
	}
}
