// Package service implements the interactive lead operations: registration,
// activity recording, manual status changes, and clock stop administration.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leadprotect_backend/internal/events"
	"leadprotect_backend/internal/leads/domain"
	"leadprotect_backend/internal/leads/protection"
	"leadprotect_backend/internal/leads/repository"
	"leadprotect_backend/platform/apperr"
	"leadprotect_backend/platform/clock"
	"leadprotect_backend/platform/config"
	"leadprotect_backend/platform/logger"
	"leadprotect_backend/platform/phone"
	"leadprotect_backend/platform/validator"
)

// Store is the slice of the lead repository the interactive service needs.
type Store interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (domain.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.Status, actorID string, now time.Time) (bool, error)
	RefreshActivity(ctx context.Context, id uuid.UUID, countsAsFollowup bool, actorID string, now time.Time) (domain.Lead, error)
	BackdateRegistration(ctx context.Context, id uuid.UUID, oldRegisteredAt, newRegisteredAt time.Time, newDeadline *time.Time, actorID string, now time.Time) (bool, error)
	StopClock(ctx context.Context, id uuid.UUID, reason, approvedBy string, now time.Time) (bool, error)
	ResumeClock(ctx context.Context, id uuid.UUID, actorID string, now time.Time) (bool, error)
	RecordActivity(ctx context.Context, params repository.RecordActivityParams) (repository.Activity, error)
	ListActivities(ctx context.Context, leadID uuid.UUID, limit int) ([]repository.Activity, error)

	CreateImportJob(ctx context.Context, params repository.CreateImportJobParams) (repository.ImportJob, error)
	CompleteImportJob(ctx context.Context, id uuid.UUID, status string, imported, failed int, now time.Time, retentionDays int) (bool, error)
}

type Service struct {
	store     Store
	bus       events.Bus
	clk       clock.Clock
	validator *validator.Validator
	log       *logger.Logger

	reminderDays        int
	graceDays           int
	importRetentionDays int
}

func New(store Store, bus events.Bus, clk clock.Clock, v *validator.Validator, log *logger.Logger, cfg config.MaintenanceConfig) *Service {
	return &Service{
		store:               store,
		bus:                 bus,
		clk:                 clk,
		validator:           v,
		log:                 log,
		reminderDays:        cfg.GetActivityReminderDays(),
		graceDays:           cfg.GetGracePeriodDays(),
		importRetentionDays: cfg.GetImportJobRetentionDays(),
	}
}

type RegisterLeadInput struct {
	CompanyName          string  `validate:"required,min=2,max=255"`
	ContactPerson        *string `validate:"omitempty,max=255"`
	Email                *string `validate:"omitempty,email"`
	Phone                *string `validate:"omitempty,max=40"`
	City                 *string `validate:"omitempty,max=120"`
	BusinessType         *domain.BusinessType
	KitchenSize          *domain.KitchenSize
	EmployeeCount        *int   `validate:"omitempty,min=0"`
	EstimatedVolumeCents *int64 `validate:"omitempty,min=0"`
	OwnerUserID          *string
	Source               *string
	SourceCampaign       *string
	ProtectionMonths     int `validate:"omitempty,min=1,max=24"`
	ActorID              string
}

// RegisterLead creates a new protected lead. Protection starts at
// registration time and the progress deadline is armed immediately.
func (s *Service) RegisterLead(ctx context.Context, input RegisterLeadInput) (domain.Lead, error) {
	if err := s.validator.Struct(input); err != nil {
		return domain.Lead{}, apperr.Wrap(apperr.KindValidation, "invalid lead registration", err)
	}

	if input.Phone != nil && *input.Phone != "" {
		normalized := phone.NormalizeE164(*input.Phone)
		input.Phone = &normalized
	}
	if input.Email != nil {
		normalized := domain.NormalizeEmail(*input.Email)
		input.Email = &normalized
	}

	months := input.ProtectionMonths
	if months == 0 {
		months = domain.DefaultProtectionMonths
	}

	now := s.clk.Now()
	deadline := now.AddDate(0, 0, protection.ProgressDeadlineDays)

	lead, err := s.store.Create(ctx, repository.CreateLeadParams{
		CompanyName:          input.CompanyName,
		ContactPerson:        input.ContactPerson,
		Email:                input.Email,
		Phone:                input.Phone,
		City:                 input.City,
		BusinessType:         input.BusinessType,
		KitchenSize:          input.KitchenSize,
		EmployeeCount:        input.EmployeeCount,
		EstimatedVolumeCents: input.EstimatedVolumeCents,
		Stage:                domain.StageRegistration,
		OwnerUserID:          input.OwnerUserID,
		RegisteredAt:         now,
		ProtectionMonths:     months,
		ProtectionDays60:     s.reminderDays,
		ProtectionDays10:     s.graceDays,
		ProgressDeadline:     &deadline,
		Source:               input.Source,
		SourceCampaign:       input.SourceCampaign,
		CreatedAt:            now,
		CreatedBy:            input.ActorID,
	})
	if err != nil {
		return domain.Lead{}, fmt.Errorf("create lead: %w", err)
	}

	if _, err := s.store.RecordActivity(ctx, repository.RecordActivityParams{
		LeadID:       lead.ID,
		ActivityType: "LEAD_REGISTERED",
		IsMeaningful: false,
		ActorID:      input.ActorID,
		OccurredAt:   now,
	}); err != nil {
		s.log.Error("record registration activity failed", "lead_id", lead.ID, "error", err)
	}

	owner := ""
	if lead.OwnerUserID != nil {
		owner = *lead.OwnerUserID
	}
	s.bus.Publish(ctx, events.LeadRegistered{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		CompanyName: lead.CompanyName,
		OwnerUserID: owner,
	})
	return lead, nil
}

func (s *Service) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

// LeadTimeline returns the most recent activities on the lead, newest first.
func (s *Service) LeadTimeline(ctx context.Context, id uuid.UUID, limit int) ([]repository.Activity, error) {
	if _, err := s.GetLead(ctx, id); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.store.ListActivities(ctx, id, limit)
}

// ProtectionStatus returns the computed protection summary for one lead.
func (s *Service) ProtectionStatus(ctx context.Context, id uuid.UUID) (protection.Status, error) {
	lead, err := s.GetLead(ctx, id)
	if err != nil {
		return protection.Status{}, err
	}
	return protection.StatusFor(&lead, s.clk.Now()), nil
}

// Meaningful activity types reset the inactivity cadence; anything else is
// audit-only.
var meaningfulActivities = map[string]bool{
	"CALL":     true,
	"EMAIL":    true,
	"MEETING":  true,
	"FOLLOWUP": true,
	"QUOTE":    true,
	"SAMPLE":   true,
}

type RecordActivityInput struct {
	LeadID       uuid.UUID
	ActivityType string `validate:"required,max=64"`
	Description  *string
	ActorID      string `validate:"required"`
}

// RecordActivity appends an activity to the lead's timeline. Meaningful
// activities refresh the activity clock, re-arm the progress warning, and
// reactivate leads sitting in REMINDER or GRACE_PERIOD.
func (s *Service) RecordActivity(ctx context.Context, input RecordActivityInput) (domain.Lead, error) {
	if err := s.validator.Struct(input); err != nil {
		return domain.Lead{}, apperr.Wrap(apperr.KindValidation, "invalid activity", err)
	}

	lead, err := s.GetLead(ctx, input.LeadID)
	if err != nil {
		return domain.Lead{}, err
	}
	if lead.ClockStoppedAt != nil {
		return domain.Lead{}, apperr.Conflict("lead clock is stopped")
	}
	if lead.PseudonymizedAt != nil {
		return domain.Lead{}, apperr.Conflict("lead is pseudonymized")
	}

	now := s.clk.Now()
	meaningful := meaningfulActivities[input.ActivityType]
	wasDormant := lead.Status == domain.StatusReminder || lead.Status == domain.StatusGracePeriod

	if _, err := s.store.RecordActivity(ctx, repository.RecordActivityParams{
		LeadID:       input.LeadID,
		ActivityType: input.ActivityType,
		Description:  input.Description,
		IsMeaningful: meaningful,
		ActorID:      input.ActorID,
		OccurredAt:   now,
	}); err != nil {
		return domain.Lead{}, fmt.Errorf("record activity: %w", err)
	}

	if !meaningful {
		return lead, nil
	}

	countsAsFollowup := input.ActivityType == "FOLLOWUP"
	updated, err := s.store.RefreshActivity(ctx, input.LeadID, countsAsFollowup, input.ActorID, now)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, apperr.Conflict("lead changed concurrently")
	}
	if err != nil {
		return domain.Lead{}, fmt.Errorf("refresh activity: %w", err)
	}

	s.bus.Publish(ctx, events.LeadActivityRecorded{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       input.LeadID,
		ActivityType: input.ActivityType,
		Reactivated:  wasDormant && updated.Status == domain.StatusActive,
	})
	return updated, nil
}

type ChangeStatusInput struct {
	LeadID      uuid.UUID
	NewStatus   domain.Status
	ActorID     string `validate:"required"`
	Permissions domain.Permissions
}

// ChangeStatus performs a validated manual status transition. The expected
// current status is part of the update predicate, so a concurrent change
// surfaces as a conflict instead of a lost update.
func (s *Service) ChangeStatus(ctx context.Context, input ChangeStatusInput) (domain.Lead, error) {
	if err := s.validator.Struct(input); err != nil {
		return domain.Lead{}, apperr.Wrap(apperr.KindValidation, "invalid status change", err)
	}

	lead, err := s.GetLead(ctx, input.LeadID)
	if err != nil {
		return domain.Lead{}, err
	}

	decision := domain.CanTransition(&lead, input.NewStatus, input.Permissions)
	if !decision.Allowed {
		s.log.Error("status transition denied",
			"lead_id", input.LeadID,
			"from", lead.Status,
			"to", input.NewStatus,
			"reason", decision.Reason,
		)
		return domain.Lead{}, apperr.Forbidden(decision.Reason)
	}
	if input.NewStatus == lead.Status {
		return lead, nil
	}

	now := s.clk.Now()
	applied, err := s.store.UpdateStatus(ctx, input.LeadID, lead.Status, input.NewStatus, input.ActorID, now)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("update status: %w", err)
	}
	if !applied {
		return domain.Lead{}, apperr.Conflict("lead status changed concurrently")
	}

	if _, err := s.store.RecordActivity(ctx, repository.RecordActivityParams{
		LeadID:       input.LeadID,
		ActivityType: "STATUS_CHANGED",
		IsMeaningful: false,
		ActorID:      input.ActorID,
		OccurredAt:   now,
	}); err != nil {
		s.log.Error("record status change activity failed", "lead_id", input.LeadID, "error", err)
	}

	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    input.LeadID,
		OldStatus: string(lead.Status),
		NewStatus: string(input.NewStatus),
		ActorID:   input.ActorID,
	})

	return s.GetLead(ctx, input.LeadID)
}

type BackdateRegistrationInput struct {
	LeadID          uuid.UUID
	NewRegisteredAt time.Time `validate:"required"`
	Reason          string    `validate:"required,min=3,max=500"`
	ActorID         string    `validate:"required"`
	Permissions     domain.Permissions
}

// BackdateRegistration moves the registration origin to an earlier date.
// Protection start follows the new origin; the progress deadline is
// recalculated when the lead never had activity beyond registration.
// Requires the protection override permission.
func (s *Service) BackdateRegistration(ctx context.Context, input BackdateRegistrationInput) (domain.Lead, error) {
	if err := s.validator.Struct(input); err != nil {
		return domain.Lead{}, apperr.Wrap(apperr.KindValidation, "invalid backdate request", err)
	}
	if !input.Permissions.CanOverrideProtection {
		return domain.Lead{}, apperr.Forbidden("backdating requires the protection override permission")
	}

	lead, err := s.GetLead(ctx, input.LeadID)
	if err != nil {
		return domain.Lead{}, err
	}
	if lead.PseudonymizedAt != nil {
		return domain.Lead{}, apperr.Conflict("lead is pseudonymized")
	}
	if lead.ClockStoppedAt != nil {
		return domain.Lead{}, apperr.Conflict("lead clock is stopped")
	}

	now := s.clk.Now()
	if input.NewRegisteredAt.After(now) {
		return domain.Lead{}, apperr.Validation("registration date cannot be in the future")
	}
	if !input.NewRegisteredAt.Before(lead.RegisteredAt) {
		return domain.Lead{}, apperr.Validation("registration date can only move backwards")
	}

	var newDeadline *time.Time
	if lead.LastActivityAt == nil || lead.LastActivityAt.Equal(lead.RegisteredAt) {
		d := input.NewRegisteredAt.AddDate(0, 0, protection.ProgressDeadlineDays)
		newDeadline = &d
	}

	applied, err := s.store.BackdateRegistration(ctx, input.LeadID, lead.RegisteredAt, input.NewRegisteredAt, newDeadline, input.ActorID, now)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("backdate registration: %w", err)
	}
	if !applied {
		return domain.Lead{}, apperr.Conflict("lead changed concurrently")
	}

	if _, err := s.store.RecordActivity(ctx, repository.RecordActivityParams{
		LeadID:       input.LeadID,
		ActivityType: "REGISTRATION_BACKDATED",
		Description:  &input.Reason,
		IsMeaningful: false,
		ActorID:      input.ActorID,
		OccurredAt:   now,
	}); err != nil {
		s.log.Error("record backdate activity failed", "lead_id", input.LeadID, "error", err)
	}

	s.bus.Publish(ctx, events.LeadRegistrationBackdated{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          input.LeadID,
		OldRegisteredAt: lead.RegisteredAt,
		NewRegisteredAt: input.NewRegisteredAt,
		ActorID:         input.ActorID,
	})

	return s.GetLead(ctx, input.LeadID)
}

type StopClockInput struct {
	LeadID      uuid.UUID
	Reason      string `validate:"required,min=3,max=500"`
	ApprovedBy  string `validate:"required"`
	Permissions domain.Permissions
}

// StopClock pauses all deadline-driven processing for a lead. Requires the
// stop-clock permission and a documented reason.
func (s *Service) StopClock(ctx context.Context, input StopClockInput) error {
	if err := s.validator.Struct(input); err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid clock stop", err)
	}

	lead, err := s.GetLead(ctx, input.LeadID)
	if err != nil {
		return err
	}
	if ok, reason := protection.CanStopClock(&lead, input.Permissions); !ok {
		if !input.Permissions.CanStopClock {
			return apperr.Forbidden(reason)
		}
		return apperr.Conflict(reason)
	}

	now := s.clk.Now()
	applied, err := s.store.StopClock(ctx, input.LeadID, input.Reason, input.ApprovedBy, now)
	if err != nil {
		return fmt.Errorf("stop clock: %w", err)
	}
	if !applied {
		return apperr.Conflict("clock already stopped")
	}

	s.bus.Publish(ctx, events.ClockStopped{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     input.LeadID,
		Reason:     input.Reason,
		ApprovedBy: input.ApprovedBy,
	})
	return nil
}

// ResumeClock clears a stop; the paused span is credited back to the lead's
// deadlines so the stop is time-neutral.
func (s *Service) ResumeClock(ctx context.Context, leadID uuid.UUID, actorID string, perms domain.Permissions) error {
	lead, err := s.GetLead(ctx, leadID)
	if err != nil {
		return err
	}
	if ok, reason := protection.CanResumeClock(&lead, perms); !ok {
		if !perms.CanStopClock {
			return apperr.Forbidden(reason)
		}
		return apperr.Conflict(reason)
	}

	applied, err := s.store.ResumeClock(ctx, leadID, actorID, s.clk.Now())
	if err != nil {
		return fmt.Errorf("resume clock: %w", err)
	}
	if !applied {
		return apperr.Conflict("clock is not stopped")
	}

	s.bus.Publish(ctx, events.ClockResumed{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
	})
	return nil
}

type ImportLeadsInput struct {
	IdempotencyKey string `validate:"required,min=8,max=128"`
	Leads          []RegisterLeadInput
	ActorID        string `validate:"required"`
}

// ImportResult summarizes one batch import.
type ImportResult struct {
	JobID    uuid.UUID
	Imported int
	Failed   int
	Replayed bool
}

// ImportLeads registers a batch of leads under an idempotency key. A replay
// with a key that already completed returns the recorded outcome without
// importing anything again.
func (s *Service) ImportLeads(ctx context.Context, input ImportLeadsInput) (ImportResult, error) {
	if err := s.validator.Struct(input); err != nil {
		return ImportResult{}, apperr.Wrap(apperr.KindValidation, "invalid import", err)
	}

	now := s.clk.Now()
	job, err := s.store.CreateImportJob(ctx, repository.CreateImportJobParams{
		IdempotencyKey: input.IdempotencyKey,
		TotalRecords:   len(input.Leads),
		CreatedBy:      input.ActorID,
		CreatedAt:      now,
	})
	if err != nil {
		return ImportResult{}, fmt.Errorf("create import job: %w", err)
	}
	if job.Status != repository.ImportJobStatusRunning || !job.CreatedAt.Equal(now) {
		return ImportResult{
			JobID:    job.ID,
			Imported: job.ImportedRecords,
			Failed:   job.FailedRecords,
			Replayed: true,
		}, nil
	}

	var imported, failed int
	for i, leadInput := range input.Leads {
		leadInput.ActorID = input.ActorID
		if _, err := s.RegisterLead(ctx, leadInput); err != nil {
			failed++
			s.log.Error("import lead failed", "job_id", job.ID, "index", i, "error", err)
			continue
		}
		imported++
	}

	status := repository.ImportJobStatusCompleted
	if imported == 0 && failed > 0 {
		status = repository.ImportJobStatusFailed
	}
	if _, err := s.store.CompleteImportJob(ctx, job.ID, status, imported, failed, s.clk.Now(), s.importRetentionDays); err != nil {
		return ImportResult{}, fmt.Errorf("complete import job: %w", err)
	}

	return ImportResult{JobID: job.ID, Imported: imported, Failed: failed}, nil
}
