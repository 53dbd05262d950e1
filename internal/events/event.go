// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"leadprotect_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Lead Lifecycle Events
// =============================================================================

// LeadRegistered is published when a new lead is registered.
type LeadRegistered struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	CompanyName string    `json:"companyName"`
	OwnerUserID string    `json:"ownerUserId"`
}

func (e LeadRegistered) EventName() string { return "leads.lead.registered" }

// LeadStatusChanged is published on every validated status transition,
// interactive or job-driven.
type LeadStatusChanged struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
	ActorID   string    `json:"actorId"`
}

func (e LeadStatusChanged) EventName() string { return "leads.lead.status_changed" }

// LeadActivityRecorded is published when a meaningful activity refreshes the
// lead's activity clock.
type LeadActivityRecorded struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	ActivityType string    `json:"activityType"`
	Reactivated  bool      `json:"reactivated"`
}

func (e LeadActivityRecorded) EventName() string { return "leads.activity.recorded" }

// ClockStopped is published when the protection clock is administratively paused.
type ClockStopped struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	Reason     string    `json:"reason"`
	ApprovedBy string    `json:"approvedBy"`
}

func (e ClockStopped) EventName() string { return "leads.clock.stopped" }

// ClockResumed is published when a stopped protection clock resumes.
type ClockResumed struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
}

func (e ClockResumed) EventName() string { return "leads.clock.resumed" }

// LeadRegistrationBackdated is published when an administrator moves the
// registration origin, which recalculates the derived deadlines.
type LeadRegistrationBackdated struct {
	BaseEvent
	LeadID          uuid.UUID `json:"leadId"`
	OldRegisteredAt time.Time `json:"oldRegisteredAt"`
	NewRegisteredAt time.Time `json:"newRegisteredAt"`
	ActorID         string    `json:"actorId"`
}

func (e LeadRegistrationBackdated) EventName() string { return "leads.registration.backdated" }

// =============================================================================
// Maintenance Job Events
// =============================================================================

// LeadProgressWarningIssued is published per lead when the progress-deadline
// warning fires, for dashboard real-time updates.
type LeadProgressWarningIssued struct {
	BaseEvent
	LeadID           uuid.UUID  `json:"leadId"`
	OwnerUserID      *string    `json:"ownerUserId,omitempty"`
	ProgressDeadline *time.Time `json:"progressDeadline,omitempty"`
}

func (e LeadProgressWarningIssued) EventName() string { return "leads.progress.warning_issued" }

// LeadProtectionExpired is published per lead when protection ends and the
// lead is released for reassignment.
type LeadProtectionExpired struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	PreviousOwner *string   `json:"previousOwner,omitempty"`
	ExpiredAt     time.Time `json:"expiredAt"`
}

func (e LeadProtectionExpired) EventName() string { return "leads.protection.expired" }

// LeadReminderIssued is published per lead when the activity track moves a
// lead to REMINDER.
type LeadReminderIssued struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	OwnerUserID *string   `json:"ownerUserId,omitempty"`
}

func (e LeadReminderIssued) EventName() string { return "leads.reminder.issued" }

// LeadGracePeriodStarted is published per lead when the activity track moves
// a lead from REMINDER to GRACE_PERIOD.
type LeadGracePeriodStarted struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
}

func (e LeadGracePeriodStarted) EventName() string { return "leads.grace_period.started" }

// LeadsPseudonymized is published once per pseudonymization run that touched
// at least one lead, for the compliance dashboard.
type LeadsPseudonymized struct {
	BaseEvent
	Count int `json:"count"`
}

func (e LeadsPseudonymized) EventName() string { return "leads.pseudonymized" }

// ImportJobsArchived is published once per archival run that deleted at least
// one import job record.
type ImportJobsArchived struct {
	BaseEvent
	Count int `json:"count"`
}

func (e ImportJobsArchived) EventName() string { return "leads.import_jobs.archived" }

// LeadsRescored is published once per rescore run that changed at least one
// lead score.
type LeadsRescored struct {
	BaseEvent
	Count int `json:"count"`
}

func (e LeadsRescored) EventName() string { return "leads.rescored" }
