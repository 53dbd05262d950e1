package scoring

import (
	"testing"
	"time"

	"leadprotect_backend/internal/leads/domain"
)

func ptr[T any](v T) *T { return &v }

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

func TestScore_EmptyLeadStaysLow(t *testing.T) {
	now := date(2024, time.June, 1)
	lead := &domain.Lead{
		Status:            domain.StatusRegistered,
		ProtectionStartAt: now,
		ProtectionMonths:  domain.DefaultProtectionMonths,
	}

	got := Score(lead, now)
	// Intake stage contributes 1; the far-away ceiling may add a little urgency.
	if got < 0 || got > 10 {
		t.Fatalf("empty lead score = %d, want a low value", got)
	}
}

func TestScore_Deterministic(t *testing.T) {
	now := date(2024, time.June, 1)
	deadline := date(2024, time.June, 5)
	activity := date(2024, time.May, 30)
	lead := &domain.Lead{
		Status:               domain.StatusActive,
		Stage:                domain.StageQualified,
		BusinessType:         ptr(domain.BusinessTypeHotel),
		KitchenSize:          ptr(domain.KitchenSizeLarge),
		EstimatedVolumeCents: ptr[int64](60_000_00),
		EmployeeCount:        ptr(30),
		FollowupCount:        7,
		LastActivityAt:       &activity,
		ProgressDeadline:     &deadline,
		ProtectionStartAt:    date(2024, time.January, 1),
		ProtectionMonths:     6,
	}

	first := Score(lead, now)
	for i := 0; i < 10; i++ {
		if got := Score(lead, now); got != first {
			t.Fatalf("score not deterministic: %d then %d", first, got)
		}
	}
}

func TestScore_MaximalLeadHitsCeiling(t *testing.T) {
	now := date(2024, time.June, 25)
	deadline := date(2024, time.June, 26)
	activity := date(2024, time.June, 24)
	lead := &domain.Lead{
		Status:               domain.StatusActive,
		Stage:                domain.StageQualified,
		BusinessType:         ptr(domain.BusinessTypeRestaurant),
		KitchenSize:          ptr(domain.KitchenSizeLarge),
		EstimatedVolumeCents: ptr[int64](100_000_00),
		EmployeeCount:        ptr(50),
		FollowupCount:        10,
		LastActivityAt:       &activity,
		ProgressDeadline:     &deadline,
		ProtectionStartAt:    date(2024, time.January, 1),
		ProtectionMonths:     6,
	}

	if got := RevenueScore(lead); got != 25 {
		t.Errorf("revenue = %d, want 25", got)
	}
	if got := EngagementScore(lead, now); got != 25 {
		t.Errorf("engagement = %d, want 25", got)
	}
	if got := FitScore(lead); got != 25 {
		t.Errorf("fit = %d, want 25", got)
	}
	if got := UrgencyScore(lead, now); got != 25 {
		t.Errorf("urgency = %d, want 25", got)
	}
	if got := Score(lead, now); got != 100 {
		t.Fatalf("total = %d, want 100", got)
	}
}

func TestRevenueScore_Tiers(t *testing.T) {
	cases := []struct {
		volumeCents int64
		want        int
	}{
		{50_000_00, 15},
		{49_999_99, 10},
		{25_000_00, 10},
		{10_000_00, 5},
		{9_999_99, 2},
		{1, 2},
		{0, 0},
	}
	for _, tc := range cases {
		lead := &domain.Lead{EstimatedVolumeCents: &tc.volumeCents}
		if got := RevenueScore(lead); got != tc.want {
			t.Errorf("volume %d cents: score = %d, want %d", tc.volumeCents, got, tc.want)
		}
	}

	employees := []struct {
		count int
		want  int
	}{
		{25, 10}, {24, 6}, {10, 6}, {9, 3}, {5, 3}, {4, 1}, {1, 1}, {0, 0},
	}
	for _, tc := range employees {
		lead := &domain.Lead{EmployeeCount: &tc.count}
		if got := RevenueScore(lead); got != tc.want {
			t.Errorf("employees %d: score = %d, want %d", tc.count, got, tc.want)
		}
	}
}

func TestEngagementScore_Recency(t *testing.T) {
	now := date(2024, time.June, 1)
	cases := []struct {
		daysAgo int
		want    int
	}{
		{1, 15}, {6, 15}, {7, 10}, {29, 10}, {30, 5}, {89, 5}, {90, 0}, {400, 0},
	}
	for _, tc := range cases {
		activity := now.AddDate(0, 0, -tc.daysAgo)
		lead := &domain.Lead{LastActivityAt: &activity}
		if got := EngagementScore(lead, now); got != tc.want {
			t.Errorf("activity %d days ago: score = %d, want %d", tc.daysAgo, got, tc.want)
		}
	}
}

func TestFitScore_BusinessTypes(t *testing.T) {
	cases := []struct {
		businessType domain.BusinessType
		want         int
	}{
		{domain.BusinessTypeRestaurant, 10},
		{domain.BusinessTypeHotel, 10},
		{domain.BusinessTypeCatering, 7},
		{domain.BusinessTypeCanteen, 5},
		{domain.BusinessTypeOther, 2},
	}
	for _, tc := range cases {
		lead := &domain.Lead{BusinessType: &tc.businessType, Stage: domain.StageIntake}
		want := tc.want + 1 // intake stage adds 1
		if got := FitScore(lead); got != want {
			t.Errorf("business type %s: score = %d, want %d", tc.businessType, got, want)
		}
	}
}

func TestUrgencyScore_DeadlineProximity(t *testing.T) {
	now := date(2024, time.June, 1)
	lead := &domain.Lead{
		ProtectionStartAt: date(2024, time.January, 1),
		ProtectionMonths:  12, // ceiling far away, contributes nothing
	}

	cases := []struct {
		daysUntilDeadline int
		want              int
	}{
		{1, 15}, {2, 15}, {3, 10}, {6, 10}, {7, 5}, {13, 5}, {14, 0}, {60, 0},
	}
	for _, tc := range cases {
		deadline := now.AddDate(0, 0, tc.daysUntilDeadline)
		lead.ProgressDeadline = &deadline
		if got := UrgencyScore(lead, now); got != tc.want {
			t.Errorf("deadline in %d days: score = %d, want %d", tc.daysUntilDeadline, got, tc.want)
		}
	}

	// A past-due deadline counts as maximally urgent.
	overdue := now.AddDate(0, 0, -5)
	lead.ProgressDeadline = &overdue
	if got := UrgencyScore(lead, now); got != 15 {
		t.Errorf("overdue deadline: score = %d, want 15", got)
	}
}

func TestScore_ClampedToHundred(t *testing.T) {
	now := date(2024, time.June, 1)
	lead := &domain.Lead{}
	if got := Score(lead, now); got < 0 || got > 100 {
		t.Fatalf("score %d outside [0,100]", got)
	}
}
