// Package maintenance implements the time-driven lead lifecycle jobs.
//
// Every job follows the same contract: select a bounded batch ordered by the
// relevant deadline, claim each lead with a conditional update that repeats
// the selection guard, and only perform side effects (notifications, audit
// entries, events) for leads the run actually claimed. A claim that affects
// zero rows means another run got there first and is a success-no-op.
// Correctness never depends on the per-job skip lock; that only avoids
// wasted scans when a run overlaps itself.
package maintenance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadprotect_backend/internal/events"
	"leadprotect_backend/internal/leads/domain"
	"leadprotect_backend/internal/leads/repository"
	"leadprotect_backend/internal/leads/scoring"
	"leadprotect_backend/internal/notification/outbox"
	"leadprotect_backend/platform/clock"
	"leadprotect_backend/platform/config"
	"leadprotect_backend/platform/logger"
)

const (
	JobProgressWarning  = "lead_progress_warning"
	JobProtectionExpiry = "lead_protection_expiry"
	JobPseudonymization = "lead_pseudonymization"
	JobImportArchival   = "import_job_archival"
	JobActivityTrack    = "lead_activity_track"
	JobRescore          = "lead_rescore"

	TemplateProgressWarning   = "lead_progress_warning"
	TemplateProtectionExpired = "lead_protection_expired"
	TemplateReminder          = "lead_reminder"
)

// Store is the slice of the lead repository the jobs need.
type Store interface {
	FindProgressWarningCandidates(ctx context.Context, now time.Time, warningDays, limit int) ([]domain.Lead, error)
	MarkProgressWarningSent(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	FindExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Lead, error)
	ExpireLead(ctx context.Context, id uuid.UUID, from domain.Status, now time.Time) (bool, error)

	FindPseudonymizationCandidates(ctx context.Context, now time.Time, delayDays, limit int) ([]domain.Lead, error)
	Pseudonymize(ctx context.Context, id uuid.UUID, emailHash *string, now time.Time) (bool, error)

	FindReminderCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Lead, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	FindGracePeriodCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Lead, error)
	StartGracePeriod(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	FindGraceExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Lead, error)

	FindRescoreCandidates(ctx context.Context, limit int) ([]domain.Lead, error)
	UpdateScore(ctx context.Context, id uuid.UUID, score int) (bool, error)

	DeleteExpiredImportJobs(ctx context.Context, now time.Time, limit int) (int, error)

	RecordActivity(ctx context.Context, params repository.RecordActivityParams) (repository.Activity, error)
	HasRecentMeaningfulActivity(ctx context.Context, leadID uuid.UUID, since time.Time) (bool, error)
}

// Outbox is the notification sink the jobs write to.
type Outbox interface {
	Insert(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error)
}

// Result summarizes one job run.
type Result struct {
	Processed int
	Actions   int
	Skipped   bool
}

type Service struct {
	store  Store
	outbox Outbox
	bus    events.Bus
	clk    clock.Clock
	log    *logger.Logger

	batchSize       int
	warningDays     int
	graceDays       int
	pseudonymDelay  int
	importRetention int

	managerAddress  string
	ownerMailDomain string

	warnMu     sync.Mutex
	expireMu   sync.Mutex
	pseudonMu  sync.Mutex
	archiveMu  sync.Mutex
	activityMu sync.Mutex
	rescoreMu  sync.Mutex
}

func NewService(store Store, ob Outbox, bus events.Bus, clk clock.Clock, log *logger.Logger, cfg interface {
	config.MaintenanceConfig
	config.EmailConfig
}) *Service {
	return &Service{
		store:           store,
		outbox:          ob,
		bus:             bus,
		clk:             clk,
		log:             log,
		batchSize:       cfg.GetMaintenanceBatchSize(),
		warningDays:     cfg.GetProtectionWarningDays(),
		graceDays:       cfg.GetGracePeriodDays(),
		pseudonymDelay:  cfg.GetPseudonymizationDelayDays(),
		importRetention: cfg.GetImportJobRetentionDays(),
		managerAddress:  cfg.GetManagerEmailAddress(),
		ownerMailDomain: cfg.GetOwnerEmailDomain(),
	}
}

// RunProgressWarning warns owners whose progress deadline is inside the
// warning window.
func (s *Service) RunProgressWarning(ctx context.Context) (Result, error) {
	if !s.warnMu.TryLock() {
		s.log.Info("previous run still in progress, skipping", "job", JobProgressWarning)
		return Result{Skipped: true}, nil
	}
	defer s.warnMu.Unlock()

	start := time.Now()
	now := s.clk.Now()

	leads, err := s.store.FindProgressWarningCandidates(ctx, now, s.warningDays, s.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("find progress warning candidates: %w", err)
	}

	var actions int
	for _, lead := range leads {
		applied, err := s.store.MarkProgressWarningSent(ctx, lead.ID, now)
		if err != nil {
			s.log.JobItemError(JobProgressWarning, lead.ID.String(), err)
			continue
		}
		if !applied {
			continue
		}
		actions++

		s.recordSystemActivity(ctx, lead.ID, "PROGRESS_WARNING_SENT", now)
		s.enqueueNotification(ctx, &lead, TemplateProgressWarning, s.recipientFor(&lead), now, map[string]any{
			"leadId":           lead.ID,
			"companyName":      lead.CompanyName,
			"progressDeadline": lead.ProgressDeadline,
		})
		s.bus.Publish(ctx, events.LeadProgressWarningIssued{
			BaseEvent:        events.NewBaseEvent(),
			LeadID:           lead.ID,
			OwnerUserID:      lead.OwnerUserID,
			ProgressDeadline: lead.ProgressDeadline,
		})
	}

	s.log.JobMetrics(JobProgressWarning, len(leads), actions, time.Since(start))
	return Result{Processed: len(leads), Actions: actions}, nil
}

// RunProtectionExpiry expires warned leads whose progress deadline has
// passed. The grace window after the warning is honored even when the job
// catches up after downtime, so the warned-at timestamp is re-checked per
// lead rather than trusted from the selection.
func (s *Service) RunProtectionExpiry(ctx context.Context) (Result, error) {
	if !s.expireMu.TryLock() {
		s.log.Info("previous run still in progress, skipping", "job", JobProtectionExpiry)
		return Result{Skipped: true}, nil
	}
	defer s.expireMu.Unlock()

	start := time.Now()
	now := s.clk.Now()

	leads, err := s.store.FindExpiryCandidates(ctx, now, s.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("find expiry candidates: %w", err)
	}

	var actions int
	for _, lead := range leads {
		if lead.ProgressWarningSentAt == nil || now.Before(lead.ProgressWarningSentAt.AddDate(0, 0, s.graceDays)) {
			continue
		}
		applied, err := s.store.ExpireLead(ctx, lead.ID, domain.StatusActive, now)
		if err != nil {
			s.log.JobItemError(JobProtectionExpiry, lead.ID.String(), err)
			continue
		}
		if !applied {
			continue
		}
		actions++

		s.recordSystemActivity(ctx, lead.ID, "PROTECTION_EXPIRED", now)
		s.enqueueNotification(ctx, &lead, TemplateProtectionExpired, s.managerAddress, now, map[string]any{
			"leadId":        lead.ID,
			"companyName":   lead.CompanyName,
			"previousOwner": lead.OwnerUserID,
		})
		s.bus.Publish(ctx, events.LeadProtectionExpired{
			BaseEvent:     events.NewBaseEvent(),
			LeadID:        lead.ID,
			PreviousOwner: lead.OwnerUserID,
			ExpiredAt:     now,
		})
	}

	s.log.JobMetrics(JobProtectionExpiry, len(leads), actions, time.Since(start))
	return Result{Processed: len(leads), Actions: actions}, nil
}

// RunPseudonymization strips personal data from leads that stayed EXPIRED
// past the retention delay. Company-level fields are retained for aggregate
// reporting.
func (s *Service) RunPseudonymization(ctx context.Context) (Result, error) {
	if !s.pseudonMu.TryLock() {
		s.log.Info("previous run still in progress, skipping", "job", JobPseudonymization)
		return Result{Skipped: true}, nil
	}
	defer s.pseudonMu.Unlock()

	start := time.Now()
	now := s.clk.Now()

	leads, err := s.store.FindPseudonymizationCandidates(ctx, now, s.pseudonymDelay, s.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("find pseudonymization candidates: %w", err)
	}

	var actions int
	for _, lead := range leads {
		var hash *string
		if lead.Email != nil && *lead.Email != "" {
			h := HashEmail(*lead.Email)
			hash = &h
		}
		applied, err := s.store.Pseudonymize(ctx, lead.ID, hash, now)
		if err != nil {
			s.log.JobItemError(JobPseudonymization, lead.ID.String(), err)
			continue
		}
		if applied {
			actions++
		}
	}

	if actions > 0 {
		s.bus.Publish(ctx, events.LeadsPseudonymized{BaseEvent: events.NewBaseEvent(), Count: actions})
	}
	s.log.JobMetrics(JobPseudonymization, len(leads), actions, time.Since(start))
	return Result{Processed: len(leads), Actions: actions}, nil
}

// RunImportArchival hard-deletes finished import jobs whose retention TTL
// has elapsed.
func (s *Service) RunImportArchival(ctx context.Context) (Result, error) {
	if !s.archiveMu.TryLock() {
		s.log.Info("previous run still in progress, skipping", "job", JobImportArchival)
		return Result{Skipped: true}, nil
	}
	defer s.archiveMu.Unlock()

	start := time.Now()
	now := s.clk.Now()

	deleted, err := s.store.DeleteExpiredImportJobs(ctx, now, s.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("delete expired import jobs: %w", err)
	}

	if deleted > 0 {
		s.bus.Publish(ctx, events.ImportJobsArchived{BaseEvent: events.NewBaseEvent(), Count: deleted})
	}
	s.log.JobMetrics(JobImportArchival, deleted, deleted, time.Since(start))
	return Result{Processed: deleted, Actions: deleted}, nil
}

// RunActivityTrack advances the inactivity cadence: ACTIVE leads with no
// meaningful activity past the per-lead reminder threshold move to REMINDER,
// reminded leads move to GRACE_PERIOD after the grace threshold, and leads
// whose grace fully elapsed expire and lose their owner.
func (s *Service) RunActivityTrack(ctx context.Context) (Result, error) {
	if !s.activityMu.TryLock() {
		s.log.Info("previous run still in progress, skipping", "job", JobActivityTrack)
		return Result{Skipped: true}, nil
	}
	defer s.activityMu.Unlock()

	start := time.Now()
	now := s.clk.Now()
	var processed, actions int

	reminders, err := s.store.FindReminderCandidates(ctx, now, s.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("find reminder candidates: %w", err)
	}
	processed += len(reminders)
	for _, lead := range reminders {
		// The activity log is authoritative: an activity recorded between
		// the scan and this claim keeps the lead out of REMINDER.
		recent, err := s.store.HasRecentMeaningfulActivity(ctx, lead.ID, now.AddDate(0, 0, -lead.ProtectionDays60))
		if err != nil {
			s.log.JobItemError(JobActivityTrack, lead.ID.String(), err)
			continue
		}
		if recent {
			continue
		}
		applied, err := s.store.MarkReminderSent(ctx, lead.ID, now)
		if err != nil {
			s.log.JobItemError(JobActivityTrack, lead.ID.String(), err)
			continue
		}
		if !applied {
			continue
		}
		actions++

		s.recordSystemActivity(ctx, lead.ID, "REMINDER_SENT", now)
		s.enqueueNotification(ctx, &lead, TemplateReminder, s.recipientFor(&lead), now, map[string]any{
			"leadId":      lead.ID,
			"companyName": lead.CompanyName,
		})
		s.bus.Publish(ctx, events.LeadReminderIssued{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      lead.ID,
			OwnerUserID: lead.OwnerUserID,
		})
	}

	graces, err := s.store.FindGracePeriodCandidates(ctx, now, s.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("find grace period candidates: %w", err)
	}
	processed += len(graces)
	for _, lead := range graces {
		applied, err := s.store.StartGracePeriod(ctx, lead.ID, now)
		if err != nil {
			s.log.JobItemError(JobActivityTrack, lead.ID.String(), err)
			continue
		}
		if !applied {
			continue
		}
		actions++

		s.recordSystemActivity(ctx, lead.ID, "GRACE_PERIOD_STARTED", now)
		s.bus.Publish(ctx, events.LeadGracePeriodStarted{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
		})
	}

	expiries, err := s.store.FindGraceExpiryCandidates(ctx, now, s.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("find grace expiry candidates: %w", err)
	}
	processed += len(expiries)
	for _, lead := range expiries {
		applied, err := s.store.ExpireLead(ctx, lead.ID, domain.StatusGracePeriod, now)
		if err != nil {
			s.log.JobItemError(JobActivityTrack, lead.ID.String(), err)
			continue
		}
		if !applied {
			continue
		}
		actions++

		s.recordSystemActivity(ctx, lead.ID, "PROTECTION_EXPIRED", now)
		s.enqueueNotification(ctx, &lead, TemplateProtectionExpired, s.managerAddress, now, map[string]any{
			"leadId":        lead.ID,
			"companyName":   lead.CompanyName,
			"previousOwner": lead.OwnerUserID,
		})
		s.bus.Publish(ctx, events.LeadProtectionExpired{
			BaseEvent:     events.NewBaseEvent(),
			LeadID:        lead.ID,
			PreviousOwner: lead.OwnerUserID,
			ExpiredAt:     now,
		})
	}

	s.log.JobMetrics(JobActivityTrack, processed, actions, time.Since(start))
	return Result{Processed: processed, Actions: actions}, nil
}

// RunRescore recomputes lead scores from current data. The write is skipped
// when the stored value already matches, so re-running is harmless.
func (s *Service) RunRescore(ctx context.Context) (Result, error) {
	if !s.rescoreMu.TryLock() {
		s.log.Info("previous run still in progress, skipping", "job", JobRescore)
		return Result{Skipped: true}, nil
	}
	defer s.rescoreMu.Unlock()

	start := time.Now()
	now := s.clk.Now()

	leads, err := s.store.FindRescoreCandidates(ctx, s.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("find rescore candidates: %w", err)
	}

	var actions int
	for _, lead := range leads {
		score := scoring.Score(&lead, now)
		changed, err := s.store.UpdateScore(ctx, lead.ID, score)
		if err != nil {
			s.log.JobItemError(JobRescore, lead.ID.String(), err)
			continue
		}
		if changed {
			actions++
		}
	}

	if actions > 0 {
		s.bus.Publish(ctx, events.LeadsRescored{BaseEvent: events.NewBaseEvent(), Count: actions})
	}
	s.log.JobMetrics(JobRescore, len(leads), actions, time.Since(start))
	return Result{Processed: len(leads), Actions: actions}, nil
}

// HashEmail returns the deterministic pseudonym for an email address: the
// hex SHA-256 digest of the trimmed, lowercased address.
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

func (s *Service) recordSystemActivity(ctx context.Context, leadID uuid.UUID, activityType string, now time.Time) {
	_, err := s.store.RecordActivity(ctx, repository.RecordActivityParams{
		LeadID:       leadID,
		ActivityType: activityType,
		IsMeaningful: false,
		ActorID:      domain.SystemActor,
		OccurredAt:   now,
	})
	if err != nil {
		s.log.Error("record system activity failed", "lead_id", leadID, "activity_type", activityType, "error", err)
	}
}

func (s *Service) enqueueNotification(ctx context.Context, lead *domain.Lead, template, recipient string, now time.Time, payload map[string]any) {
	if recipient == "" {
		return
	}
	id := lead.ID
	_, err := s.outbox.Insert(ctx, outbox.InsertParams{
		LeadID:    &id,
		Kind:      "email",
		Template:  template,
		Recipient: recipient,
		Payload:   payload,
		RunAt:     now,
	})
	if err != nil {
		s.log.Error("enqueue notification failed", "lead_id", lead.ID, "template", template, "error", err)
	}
}

// recipientFor resolves the owner's mailbox, falling back to the manager
// when the lead has no owner or no mail domain is configured.
func (s *Service) recipientFor(lead *domain.Lead) string {
	if lead.OwnerUserID != nil && *lead.OwnerUserID != "" && s.ownerMailDomain != "" {
		return fmt.Sprintf("%s@%s", *lead.OwnerUserID, s.ownerMailDomain)
	}
	return s.managerAddress
}
