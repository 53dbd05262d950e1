package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Protection rule defaults. The per-lead day fields exist because individual
// contracts may deviate from the standard cadence.
const (
	DefaultProtectionMonths = 6
	DefaultProtectionDays60 = 60
	DefaultProtectionDays10 = 10

	// SystemActor is recorded as updated_by on job-driven mutations.
	SystemActor = "SYSTEM"

	// AnonymizedPlaceholder replaces the contact person on pseudonymization.
	AnonymizedPlaceholder = "ANONYMIZED"
)

// BusinessType classifies the lead's establishment.
type BusinessType string

const (
	BusinessTypeRestaurant BusinessType = "RESTAURANT"
	BusinessTypeHotel      BusinessType = "HOTEL"
	BusinessTypeCatering   BusinessType = "CATERING"
	BusinessTypeCanteen    BusinessType = "CANTEEN"
	BusinessTypeOther      BusinessType = "OTHER"
)

// KitchenSize is the rough capacity tier of the lead's kitchen.
type KitchenSize string

const (
	KitchenSizeSmall  KitchenSize = "SMALL"
	KitchenSizeMedium KitchenSize = "MEDIUM"
	KitchenSizeLarge  KitchenSize = "LARGE"
)

// Stage is the progressive-profiling stage of a lead record.
type Stage int

const (
	StageIntake       Stage = 0
	StageRegistration Stage = 1
	StageQualified    Stage = 2
)

// Lead is the aggregate under lifecycle control. Ownership protection is
// user-based: whoever registers and actively works the lead keeps exclusive
// rights until inactivity or the protection ceiling releases it.
type Lead struct {
	ID uuid.UUID

	CompanyName   string
	ContactPerson *string
	Email         *string
	Phone         *string
	City          *string
	BusinessType  *BusinessType
	KitchenSize   *KitchenSize
	EmployeeCount *int
	// EstimatedVolumeCents is the estimated annual volume in euro cents.
	EstimatedVolumeCents *int64

	Status      Status
	Stage       Stage
	OwnerUserID *string

	// RegisteredAt is the immutable business origin of protection. It may be
	// administratively backdated, which also recalculates derived deadlines.
	RegisteredAt      time.Time
	ProtectionStartAt time.Time
	ProtectionMonths  int
	ProtectionDays60  int
	ProtectionDays10  int

	LastActivityAt     *time.Time
	ReminderSentAt     *time.Time
	GracePeriodStartAt *time.Time
	ExpiredAt          *time.Time

	// Stop-the-clock: while ClockStoppedAt is set, no time-driven transition fires.
	ClockStoppedAt *time.Time
	StopReason     *string
	StopApprovedBy *string

	ProgressDeadline      *time.Time
	ProgressWarningSentAt *time.Time

	PseudonymizedAt *time.Time

	FollowupCount int
	LeadScore     *int

	Source         *string
	SourceCampaign *string

	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
	UpdatedBy *string
}

// ProtectionUntil returns the protection ceiling, the point at which exclusive
// ownership ends regardless of activity.
func (l *Lead) ProtectionUntil() time.Time {
	return l.ProtectionStartAt.AddDate(0, l.ProtectionMonths, 0)
}

// IsProtectionActive reports whether the lead is still protected at now.
// A stopped clock keeps protection active indefinitely.
func (l *Lead) IsProtectionActive(now time.Time) bool {
	if l.ClockStoppedAt != nil {
		return true
	}
	return now.Before(l.ProtectionUntil())
}

// NeedsReminder reports whether the activity track is due to move the lead to
// REMINDER: no meaningful activity for the 60-day window.
func (l *Lead) NeedsReminder(now time.Time) bool {
	anchor := l.RegisteredAt
	if l.LastActivityAt != nil {
		anchor = *l.LastActivityAt
	}
	return anchor.AddDate(0, 0, l.ProtectionDays60).Before(now)
}

// IsInGracePeriod reports whether the lead sits in the fixed extra window
// after a reminder.
func (l *Lead) IsInGracePeriod() bool {
	return l.Status == StatusGracePeriod && l.GracePeriodStartAt != nil
}

// NormalizeEmail lowercases and trims an email for storage and deduplication.
// Returns empty string for blank input.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
