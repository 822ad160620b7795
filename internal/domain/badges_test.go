package domain

import "testing"

func TestBadgeThresholds(t *testing.T) {
	cases := []struct {
		name          string
		accuracy      float64
		perfectionist bool
		scholar       bool
	}{
		{"perfect run", 96, true, false},
		{"threshold exact", 95, true, false},
		{"scholar run", 82, false, true},
		{"scholar threshold", 80, false, true},
		{"halfway", 50, false, false},
		{"zero", 0, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			earned := EvaluateBadges(FlowSummary{Accuracy: tc.accuracy})
			if has(earned, BadgePerfectionist) != tc.perfectionist {
				t.Fatalf("accuracy %v: perfectionist=%v, want %v", tc.accuracy, has(earned, BadgePerfectionist), tc.perfectionist)
			}
			if has(earned, BadgeScholar) != tc.scholar {
				t.Fatalf("accuracy %v: scholar=%v, want %v", tc.accuracy, has(earned, BadgeScholar), tc.scholar)
			}
		})
	}
}

func has(badges []Badge, id BadgeID) bool {
	for _, badge := range badges {
		if badge.ID == id {
			return true
		}
	}
	return false
}
