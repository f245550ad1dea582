package app

import "dental-quest-service/internal/domain"

// PointsPerLevel is the width of every level band.
const PointsPerLevel = 100

// ComputeLevel maps a score total to a level starting at 1. A total of exactly
// level*100 already belongs to the next level. Negative totals count as 0.
func ComputeLevel(totalScore int) int {
	if totalScore < 0 {
		totalScore = 0
	}
	return totalScore/PointsPerLevel + 1
}

// LevelProgressPercent is the position of totalScore inside the band of level,
// clamped to 0..100.
func LevelProgressPercent(totalScore, level int) int {
	base := (level - 1) * PointsPerLevel
	next := level * PointsPerLevel
	pct := (totalScore - base) * 100 / (next - base)
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// PointsToNextLevel is how many points remain until level+1.
func PointsToNextLevel(totalScore, level int) int {
	remaining := level*PointsPerLevel - totalScore
	if remaining < 0 {
		return 0
	}
	return remaining
}

// UnlockedAchievements returns every rule, marked unlocked when totalScore meets
// its threshold. Locked rules keep their threshold for progress display.
func UnlockedAchievements(totalScore int, rules []domain.AchievementRule) []domain.AchievementStatus {
	out := make([]domain.AchievementStatus, 0, len(rules))
	for _, rule := range rules {
		out = append(out, domain.AchievementStatus{
			ID:             rule.ID,
			Title:          rule.Title,
			Description:    rule.Description,
			ThresholdScore: rule.ThresholdScore,
			Unlocked:       totalScore >= rule.ThresholdScore,
		})
	}
	return out
}

// Evaluate derives the full progression view for a score total.
func Evaluate(totalScore int, rules []domain.AchievementRule) domain.Progression {
	level := ComputeLevel(totalScore)
	return domain.Progression{
		TotalScore:           totalScore,
		Level:                level,
		LevelProgressPercent: LevelProgressPercent(totalScore, level),
		PointsToNextLevel:    PointsToNextLevel(totalScore, level),
		Achievements:         UnlockedAchievements(totalScore, rules),
	}
}

// UnlockedIDs lists the ids of unlocked achievements, in rule order.
func UnlockedIDs(statuses []domain.AchievementStatus) []string {
	ids := make([]string, 0, len(statuses))
	for _, s := range statuses {
		if s.Unlocked {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// SummarizeHistory counts completed results and their rounded average score.
func SummarizeHistory(records []domain.ResultRecord) domain.HistoryStats {
	if len(records) == 0 {
		return domain.HistoryStats{}
	}
	sum := 0
	for _, r := range records {
		sum += r.ScorePercent
	}
	n := len(records)
	return domain.HistoryStats{
		Completed:    n,
		AverageScore: (sum*2 + n) / (2 * n),
	}
}

// DefaultAchievements mirrors the thresholds shown on the profile page.
func DefaultAchievements() []domain.AchievementRule {
	return []domain.AchievementRule{
		{ID: "explorer", ThresholdScore: 50, Title: "Cosmic Explorer", Description: "Achieved 50+ total points"},
		{ID: "expert", ThresholdScore: 200, Title: "Space Dental Expert", Description: "Achieved 200+ total points"},
		{ID: "master", ThresholdScore: 500, Title: "Dental Master", Description: "Achieved 500+ total points"},
		{ID: "legend", ThresholdScore: 1000, Title: "Dental Legend", Description: "Achieve 1000+ total points"},
	}
}
