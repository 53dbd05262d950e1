// Package scoring computes lead quality scores for sales prioritization.
//
// The model sums four factors, each independently capped at 25 points:
// revenue potential, engagement, profile fit, and urgency. The result is
// clamped to [0,100]. Scoring is a pure re-derivation over the lead snapshot
// and "now": recomputing at any time with the same inputs yields the same
// score, so the derived field can be rewritten unconditionally.
package scoring

import (
	"time"

	"leadprotect_backend/internal/leads/domain"
)

const factorCap = 25

// Euro thresholds for revenue potential, in cents (estimatedVolume is annual).
const (
	volumeTier1Cents = 50_000_00
	volumeTier2Cents = 25_000_00
	volumeTier3Cents = 10_000_00
)

// Score returns the total lead score in [0,100] at the given instant.
func Score(lead *domain.Lead, now time.Time) int {
	total := RevenueScore(lead) +
		EngagementScore(lead, now) +
		FitScore(lead) +
		UrgencyScore(lead, now)

	return clamp(total, 0, 100)
}

// RevenueScore rates deal value potential: estimated annual volume plus
// headcount, capped at 25.
func RevenueScore(lead *domain.Lead) int {
	score := 0

	if lead.EstimatedVolumeCents != nil {
		switch volume := *lead.EstimatedVolumeCents; {
		case volume >= volumeTier1Cents:
			score += 15
		case volume >= volumeTier2Cents:
			score += 10
		case volume >= volumeTier3Cents:
			score += 5
		case volume > 0:
			score += 2
		}
	}

	if lead.EmployeeCount != nil {
		switch count := *lead.EmployeeCount; {
		case count >= 25:
			score += 10
		case count >= 10:
			score += 6
		case count >= 5:
			score += 3
		case count > 0:
			score += 1
		}
	}

	return min(score, factorCap)
}

// EngagementScore rates relationship strength: recency of the last meaningful
// activity plus the accumulated follow-up count, capped at 25.
func EngagementScore(lead *domain.Lead, now time.Time) int {
	score := 0

	if lead.LastActivityAt != nil {
		switch days := daysSince(*lead.LastActivityAt, now); {
		case days < 7:
			score += 15
		case days < 30:
			score += 10
		case days < 90:
			score += 5
		}
	}

	switch {
	case lead.FollowupCount >= 6:
		score += 10
	case lead.FollowupCount >= 3:
		score += 7
	case lead.FollowupCount >= 1:
		score += 3
	}

	return min(score, factorCap)
}

// FitScore rates ideal-customer-profile match: business type, kitchen size
// and profiling stage, capped at 25.
func FitScore(lead *domain.Lead) int {
	score := 0

	if lead.BusinessType != nil {
		switch *lead.BusinessType {
		case domain.BusinessTypeRestaurant, domain.BusinessTypeHotel:
			score += 10
		case domain.BusinessTypeCatering:
			score += 7
		case domain.BusinessTypeCanteen:
			score += 5
		default:
			score += 2
		}
	}

	if lead.KitchenSize != nil {
		switch *lead.KitchenSize {
		case domain.KitchenSizeLarge:
			score += 8
		case domain.KitchenSizeMedium:
			score += 5
		case domain.KitchenSizeSmall:
			score += 2
		}
	}

	switch lead.Stage {
	case domain.StageQualified:
		score += 7
	case domain.StageRegistration:
		score += 4
	case domain.StageIntake:
		score += 1
	}

	return min(score, factorCap)
}

// UrgencyScore rates time pressure: proximity of the progress deadline plus
// proximity of the protection ceiling, capped at 25.
func UrgencyScore(lead *domain.Lead, now time.Time) int {
	score := 0

	if lead.ProgressDeadline != nil {
		switch days := daysUntil(now, *lead.ProgressDeadline); {
		case days < 3:
			score += 15
		case days < 7:
			score += 10
		case days < 14:
			score += 5
		}
	}

	switch days := daysUntil(now, lead.ProtectionUntil()); {
	case days < 30:
		score += 10
	case days < 90:
		score += 5
	case days < 180:
		score += 2
	}

	return min(score, factorCap)
}

func daysSince(t, now time.Time) int {
	return int(now.Sub(t).Hours() / 24)
}

func daysUntil(now, t time.Time) int {
	return int(t.Sub(now).Hours() / 24)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
