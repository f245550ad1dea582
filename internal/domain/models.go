package domain

import "time"

// Kind distinguishes lesson quizzes from challenge variants. Both run through
// the same engine; only the definition fields differ.
type Kind string

const (
	KindLesson    Kind = "lesson"
	KindChallenge Kind = "challenge"
)

// Question models a single-choice question. CorrectAnswer must equal one of Options.
type Question struct {
	Index         int      `json:"index" yaml:"-"`
	Prompt        string   `json:"prompt" yaml:"prompt"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer string   `json:"correctAnswer" yaml:"correct"`
}

// Definition is an assessment as served by the content store: an ordered
// answer key plus the time limit and pass rule.
type Definition struct {
	ID               string     `json:"id" yaml:"id"`
	Kind             Kind       `json:"kind" yaml:"kind"`
	Title            string     `json:"title" yaml:"title"`
	Description      string     `json:"description" yaml:"description"`
	Level            int        `json:"level,omitempty" yaml:"level"`
	KeyPoints        []string   `json:"keyPoints,omitempty" yaml:"keyPoints"`
	Questions        []Question `json:"questions" yaml:"questions"`
	TimeLimitSeconds int        `json:"timeLimitSeconds" yaml:"timeLimitSeconds"`
	// PassThreshold is nil for variants that only report a raw percent.
	PassThreshold *int `json:"passThreshold,omitempty" yaml:"passThreshold"`
	// RequireComplete forbids manual submission until every question is answered.
	RequireComplete bool `json:"requireComplete" yaml:"requireComplete"`
	// AutoAdvance moves to the next question AutoAdvanceDelayMs after a selection.
	AutoAdvance        bool `json:"autoAdvance" yaml:"autoAdvance"`
	AutoAdvanceDelayMs int  `json:"autoAdvanceDelayMs,omitempty" yaml:"autoAdvanceDelayMs"`
	// RatingBands overrides the default feedback bands. Scores below every
	// band rate keep-trying.
	RatingBands []RatingBand `json:"ratingBands,omitempty" yaml:"ratingBands"`
}

// PublicQuestion is a question without its answer.
type PublicQuestion struct {
	Index   int      `json:"index"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// PublicDefinition is what clients see before and during an attempt.
type PublicDefinition struct {
	ID               string           `json:"id"`
	Kind             Kind             `json:"kind"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	Level            int              `json:"level,omitempty"`
	KeyPoints        []string         `json:"keyPoints,omitempty"`
	Questions        []PublicQuestion `json:"questions"`
	TimeLimitSeconds int              `json:"timeLimitSeconds"`
	PassThreshold    *int             `json:"passThreshold,omitempty"`
	AutoAdvance      bool             `json:"autoAdvance"`
}

// Public strips correct answers from the definition.
func (d Definition) Public() PublicDefinition {
	questions := make([]PublicQuestion, len(d.Questions))
	for i, q := range d.Questions {
		questions[i] = PublicQuestion{Index: i, Prompt: q.Prompt, Options: append([]string(nil), q.Options...)}
	}
	return PublicDefinition{
		ID:               d.ID,
		Kind:             d.Kind,
		Title:            d.Title,
		Description:      d.Description,
		Level:            d.Level,
		KeyPoints:        d.KeyPoints,
		Questions:        questions,
		TimeLimitSeconds: d.TimeLimitSeconds,
		PassThreshold:    d.PassThreshold,
		AutoAdvance:      d.AutoAdvance,
	}
}

// Rating is the feedback band shown next to a score.
type Rating string

const (
	RatingPerfect    Rating = "perfect"
	RatingExcellent  Rating = "excellent"
	RatingGood       Rating = "good"
	RatingKeepTrying Rating = "keep-trying"
)

// RatingBand awards Rating to scores of at least MinPercent.
type RatingBand struct {
	MinPercent int    `json:"minPercent" yaml:"min"`
	Rating     Rating `json:"rating" yaml:"rating"`
}

// AssessmentResult is derived once per submitted attempt and never mutated.
type AssessmentResult struct {
	CorrectCount  int    `json:"correctCount"`
	TotalCount    int    `json:"totalCount"`
	ScorePercent  int    `json:"scorePercent"`
	Passed        bool   `json:"passed"`
	PassThreshold *int   `json:"passThreshold,omitempty"`
	Rating        Rating `json:"rating"`
}

// ResultRecord is a persisted result row for a user.
type ResultRecord struct {
	AttemptID    string    `json:"attemptId"`
	UserID       string    `json:"userId"`
	AssessmentID string    `json:"assessmentId"`
	CorrectCount int       `json:"correctCount"`
	TotalCount   int       `json:"totalCount"`
	ScorePercent int       `json:"scorePercent"`
	Passed       bool      `json:"passed"`
	CompletedAt  time.Time `json:"completedAt"`
}

// UserProgress is the account-level progression state.
type UserProgress struct {
	UserID       string   `json:"userId"`
	TotalScore   int      `json:"totalScore"`
	Level        int      `json:"level"`
	Achievements []string `json:"achievements"`
}

// User is a learner account. Level, TotalScore and Achievements are owned by
// the progress write-back; creating a user only sets the profile fields.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	TotalScore   int       `json:"totalScore"`
	Level        int       `json:"level"`
	Achievements []string  `json:"achievements"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActive   time.Time `json:"lastActive"`
}

// ListFilter narrows ListAssessments. Zero values match everything.
type ListFilter struct {
	Level int
	Kind  Kind
}

// ProgressUpdate is returned after a result has been written back.
type ProgressUpdate struct {
	TotalScore   int      `json:"updatedTotalScore"`
	Level        int      `json:"updatedLevel"`
	Achievements []string `json:"achievements"`
}

// AchievementRule is static configuration.
type AchievementRule struct {
	ID             string `json:"id" yaml:"id"`
	ThresholdScore int    `json:"thresholdScore" yaml:"threshold"`
	Title          string `json:"title" yaml:"title"`
	Description    string `json:"description" yaml:"description"`
}

// AchievementStatus is a rule evaluated against a score total.
type AchievementStatus struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	ThresholdScore int    `json:"thresholdScore"`
	Unlocked       bool   `json:"unlocked"`
}

// Progression is the derived level view for a score total.
type Progression struct {
	TotalScore           int                 `json:"totalScore"`
	Level                int                 `json:"level"`
	LevelProgressPercent int                 `json:"levelProgressPercent"`
	PointsToNextLevel    int                 `json:"pointsToNextLevel"`
	Achievements         []AchievementStatus `json:"achievements"`
}

// HistoryStats summarizes completed results.
type HistoryStats struct {
	Completed    int `json:"completed"`
	AverageScore int `json:"averageScore"`
}

// ProgressView is the profile payload.
type ProgressView struct {
	UserID      string         `json:"userId"`
	Progression Progression    `json:"progression"`
	Stats       HistoryStats   `json:"stats"`
	History     []ResultRecord `json:"history"`
}

// Outcome is what a user sees after submitting: the result is always present,
// Progress only when the write-back succeeded.
type Outcome struct {
	Result   AssessmentResult `json:"result"`
	Progress *ProgressUpdate  `json:"progress,omitempty"`
	Saved    bool             `json:"saved"`
	Warning  string           `json:"warning,omitempty"`
}
