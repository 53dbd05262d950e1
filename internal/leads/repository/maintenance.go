package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leadprotect_backend/internal/leads/domain"
)

// Maintenance queries share one predicate shape: status filter, deadline
// comparison, clock not stopped, ordered by the deadline ascending, bounded
// by the batch size. The matching conditional updates repeat the selection
// guard in their WHERE clause so a run that overlaps another (or is retried)
// claims each lead at most once.

// FindProgressWarningCandidates returns ACTIVE leads whose progress deadline
// falls within the warning window and that have not been warned yet.
func (r *Repository) FindProgressWarningCandidates(ctx context.Context, now time.Time, warningDays, limit int) ([]domain.Lead, error) {
	cutoff := now.AddDate(0, 0, warningDays)
	return r.queryLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = $1
			AND progress_deadline IS NOT NULL
			AND progress_deadline < $2
			AND progress_warning_sent_at IS NULL
			AND clock_stopped_at IS NULL
		ORDER BY progress_deadline ASC
		LIMIT $3
	`, domain.StatusActive, cutoff, limit)
}

// MarkProgressWarningSent claims the warning for one lead. Returns false when
// another run already set the flag.
func (r *Repository) MarkProgressWarningSent(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET progress_warning_sent_at = $2, updated_at = $2, updated_by = $3
		WHERE id = $1
			AND status = $4
			AND progress_warning_sent_at IS NULL
			AND clock_stopped_at IS NULL
	`, id, now, domain.SystemActor, domain.StatusActive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FindExpiryCandidates returns ACTIVE leads that were warned and whose
// progress deadline has passed. The grace window after the warning is
// re-checked by the caller per item.
func (r *Repository) FindExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Lead, error) {
	return r.queryLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = $1
			AND progress_warning_sent_at IS NOT NULL
			AND progress_deadline < $2
			AND clock_stopped_at IS NULL
		ORDER BY progress_deadline ASC
		LIMIT $3
	`, domain.StatusActive, now, limit)
}

// ExpireLead transitions an ACTIVE lead to EXPIRED and releases the owner.
// Returns false when the status already changed under a concurrent run.
func (r *Repository) ExpireLead(ctx context.Context, id uuid.UUID, from domain.Status, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = $3, expired_at = $4, owner_user_id = NULL,
			updated_at = $4, updated_by = $5
		WHERE id = $1 AND status = $2 AND clock_stopped_at IS NULL
	`, id, from, domain.StatusExpired, now, domain.SystemActor)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FindPseudonymizationCandidates returns EXPIRED leads untouched for the
// retention delay and not yet pseudonymized.
func (r *Repository) FindPseudonymizationCandidates(ctx context.Context, now time.Time, delayDays, limit int) ([]domain.Lead, error) {
	cutoff := now.AddDate(0, 0, -delayDays)
	return r.queryLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = $1
			AND updated_at < $2
			AND pseudonymized_at IS NULL
		ORDER BY updated_at ASC
		LIMIT $3
	`, domain.StatusExpired, cutoff, limit)
}

// Pseudonymize replaces personal data on one lead. Company-level fields stay
// intact for aggregate reporting. Returns false when already pseudonymized.
func (r *Repository) Pseudonymize(ctx context.Context, id uuid.UUID, emailHash *string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET email = $2, phone = NULL, contact_person = $3, pseudonymized_at = $4,
			updated_at = $4, updated_by = $5
		WHERE id = $1 AND pseudonymized_at IS NULL
	`, id, emailHash, domain.AnonymizedPlaceholder, now, domain.SystemActor)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FindReminderCandidates returns REGISTERED and ACTIVE leads whose activity
// clock ran past the per-lead reminder threshold without a reminder being
// sent. A lead that was never manually activated still ages into the cadence;
// its inactivity counts from registration.
func (r *Repository) FindReminderCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Lead, error) {
	return r.queryLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status IN ($1, $2)
			AND COALESCE(last_activity_at, registered_at) < $3 - make_interval(days => protection_days_60)
			AND reminder_sent_at IS NULL
			AND clock_stopped_at IS NULL
		ORDER BY COALESCE(last_activity_at, registered_at) ASC
		LIMIT $4
	`, domain.StatusRegistered, domain.StatusActive, now, limit)
}

// MarkReminderSent moves a REGISTERED or ACTIVE lead to REMINDER and stamps
// the reminder.
func (r *Repository) MarkReminderSent(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = $2, reminder_sent_at = $3, updated_at = $3, updated_by = $4
		WHERE id = $1
			AND status IN ($5, $6)
			AND reminder_sent_at IS NULL
			AND clock_stopped_at IS NULL
	`, id, domain.StatusReminder, now, domain.SystemActor, domain.StatusRegistered, domain.StatusActive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FindGracePeriodCandidates returns REMINDER leads whose reminder aged past
// the per-lead grace threshold with no activity in between.
func (r *Repository) FindGracePeriodCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Lead, error) {
	return r.queryLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = $1
			AND reminder_sent_at IS NOT NULL
			AND reminder_sent_at < $2 - make_interval(days => protection_days_10)
			AND grace_period_start_at IS NULL
			AND clock_stopped_at IS NULL
		ORDER BY reminder_sent_at ASC
		LIMIT $3
	`, domain.StatusReminder, now, limit)
}

// StartGracePeriod moves a REMINDER lead into GRACE_PERIOD.
func (r *Repository) StartGracePeriod(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = $2, grace_period_start_at = $3, updated_at = $3, updated_by = $4
		WHERE id = $1
			AND status = $5
			AND grace_period_start_at IS NULL
			AND clock_stopped_at IS NULL
	`, id, domain.StatusGracePeriod, now, domain.SystemActor, domain.StatusReminder)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FindGraceExpiryCandidates returns GRACE_PERIOD leads whose grace window
// has fully elapsed.
func (r *Repository) FindGraceExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Lead, error) {
	return r.queryLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = $1
			AND grace_period_start_at IS NOT NULL
			AND grace_period_start_at < $2 - make_interval(days => protection_days_10)
			AND clock_stopped_at IS NULL
		ORDER BY grace_period_start_at ASC
		LIMIT $3
	`, domain.StatusGracePeriod, now, limit)
}

// FindRescoreCandidates returns leads eligible for a score refresh, oldest
// update first so every lead cycles through over successive runs.
func (r *Repository) FindRescoreCandidates(ctx context.Context, limit int) ([]domain.Lead, error) {
	return r.queryLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status NOT IN ($1, $2)
			AND pseudonymized_at IS NULL
		ORDER BY updated_at ASC
		LIMIT $3
	`, domain.StatusDeleted, domain.StatusExpired, limit)
}
