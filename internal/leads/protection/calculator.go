// Package protection implements the lead protection rules: the protection
// clock calculator and the stop-the-clock policy. Everything here is a pure
// function over a lead snapshot and an explicit "now".
package protection

import (
	"math"
	"time"

	"leadprotect_backend/internal/leads/domain"
)

const (
	// ClockStoppedDays is the sentinel returned while the clock is stopped:
	// protection is effectively indefinite until the clock resumes.
	ClockStoppedDays = math.MaxInt32

	// ProgressDeadlineDays is the activity standard: demonstrable progress is
	// required every 60 days.
	ProgressDeadlineDays = 60

	// ProgressWarningDaysBeforeDeadline is when the warning fires, 7 days
	// before the progress deadline.
	ProgressWarningDaysBeforeDeadline = 7
)

// RemainingProtectionDays returns the whole days of protection left at now.
// Clock stopped returns ClockStoppedDays; an expired lead or a lead past its
// ceiling returns -1.
func RemainingProtectionDays(lead *domain.Lead, now time.Time) int {
	if lead.ClockStoppedAt != nil {
		return ClockStoppedDays
	}

	if lead.Status == domain.StatusExpired {
		return -1
	}

	protectionEnd := lead.ProtectionUntil()
	if now.After(protectionEnd) {
		return -1
	}

	return int(protectionEnd.Sub(now).Hours() / 24)
}

// DaysUntilNextTransition returns the whole days until the next scheduled
// status transition, 0 when the transition is already due, and -1 when no
// transition is scheduled (terminal-ish states, missing track timestamps, or
// a stopped clock).
func DaysUntilNextTransition(lead *domain.Lead, now time.Time) int {
	if lead.ClockStoppedAt != nil {
		return -1
	}

	switch lead.Status {
	case domain.StatusActive, domain.StatusRegistered:
		anchor := lead.RegisteredAt
		if lead.LastActivityAt != nil {
			anchor = *lead.LastActivityAt
		}
		return daysUntil(now, anchor.AddDate(0, 0, lead.ProtectionDays60))

	case domain.StatusReminder:
		if lead.ReminderSentAt == nil {
			return -1
		}
		return daysUntil(now, lead.ReminderSentAt.AddDate(0, 0, lead.ProtectionDays10))

	case domain.StatusGracePeriod:
		if lead.GracePeriodStartAt == nil {
			return -1
		}
		return daysUntil(now, lead.GracePeriodStartAt.AddDate(0, 0, lead.ProtectionDays10))

	default:
		return -1
	}
}

func daysUntil(now, deadline time.Time) int {
	if !now.Before(deadline) {
		return 0
	}
	return int(deadline.Sub(now).Hours() / 24)
}

// IsExpiringSoon reports whether the protection ceiling falls within
// warningDays. A stopped clock or an already expired lead never expires soon.
func IsExpiringSoon(lead *domain.Lead, now time.Time, warningDays int) bool {
	if lead.ClockStoppedAt != nil {
		return false
	}
	if lead.Status == domain.StatusExpired {
		return false
	}

	remaining := RemainingProtectionDays(lead, now)
	return remaining >= 0 && remaining <= warningDays
}

// ProgressDeadline computes the deadline for the next demonstrable progress.
func ProgressDeadline(lastActivityAt time.Time) time.Time {
	return lastActivityAt.AddDate(0, 0, ProgressDeadlineDays)
}

// NeedsProgressWarning reports whether the progress-deadline warning should
// fire: a deadline is set, no warning was sent yet, and now is within the
// 7-day warning window.
func NeedsProgressWarning(lead *domain.Lead, now time.Time) bool {
	if lead.ProgressDeadline == nil {
		return false
	}
	if lead.ProgressWarningSentAt != nil {
		return false
	}

	warningThreshold := lead.ProgressDeadline.AddDate(0, 0, -ProgressWarningDaysBeforeDeadline)
	return now.After(warningThreshold)
}

// Status summarizes the protection situation of a lead for callers.
type Status struct {
	LeadID              string
	CurrentStatus       domain.Status
	Protected           bool
	ClockStopped        bool
	RemainingDays       int
	DaysUntilTransition int
	StopReason          *string
	StoppedBy           *string
	StoppedAt           *time.Time
}

// StatusFor builds the protection summary for a lead at now.
func StatusFor(lead *domain.Lead, now time.Time) Status {
	s := Status{
		LeadID:              lead.ID.String(),
		CurrentStatus:       lead.Status,
		Protected:           lead.IsProtectionActive(now),
		ClockStopped:        lead.ClockStoppedAt != nil,
		RemainingDays:       RemainingProtectionDays(lead, now),
		DaysUntilTransition: DaysUntilNextTransition(lead, now),
	}

	if lead.ClockStoppedAt != nil {
		s.StopReason = lead.StopReason
		s.StoppedBy = lead.StopApprovedBy
		s.StoppedAt = lead.ClockStoppedAt
	}

	return s
}
