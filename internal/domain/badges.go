package domain

type BadgeID string

const (
	BadgePerfectionist BadgeID = "perfectionist"
	BadgeScholar       BadgeID = "scholar"
)

type Badge struct {
	ID          BadgeID `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

var AllBadges = map[BadgeID]Badge{
	BadgePerfectionist: {ID: BadgePerfectionist, Name: "Perfectionist", Description: "95%+ accuracy in a quiz or case study", Icon: "🏆"},
	BadgeScholar:       {ID: BadgeScholar, Name: "Scholar", Description: "80%+ accuracy in a quiz or case study", Icon: "📚"},
}

// EvaluateBadges maps a final flow aggregate to the badges it earns.
// Pure function of the summary; thresholds do not overlap.
func EvaluateBadges(summary FlowSummary) []Badge {
	var earned []Badge

	// Perfectionist: 95%+ accuracy
	if summary.Accuracy >= 95 {
		earned = append(earned, AllBadges[BadgePerfectionist])
	}

	// Scholar: 80%+ accuracy, below the Perfectionist cut
	if summary.Accuracy >= 80 && summary.Accuracy < 95 {
		earned = append(earned, AllBadges[BadgeScholar])
	}

	return earned
}
