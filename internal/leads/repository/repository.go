package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadprotect_backend/internal/leads/domain"
	"leadprotect_backend/internal/leads/protection"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `
	id, company_name, contact_person, email, phone, city,
	business_type, kitchen_size, employee_count, estimated_volume_cents,
	status, stage, owner_user_id,
	registered_at, protection_start_at, protection_months, protection_days_60, protection_days_10,
	last_activity_at, reminder_sent_at, grace_period_start_at, expired_at,
	clock_stopped_at, stop_reason, stop_approved_by,
	progress_deadline, progress_warning_sent_at, pseudonymized_at,
	followup_count, lead_score, source, source_campaign,
	created_at, updated_at, created_by, updated_by`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	err := row.Scan(
		&l.ID, &l.CompanyName, &l.ContactPerson, &l.Email, &l.Phone, &l.City,
		&l.BusinessType, &l.KitchenSize, &l.EmployeeCount, &l.EstimatedVolumeCents,
		&l.Status, &l.Stage, &l.OwnerUserID,
		&l.RegisteredAt, &l.ProtectionStartAt, &l.ProtectionMonths, &l.ProtectionDays60, &l.ProtectionDays10,
		&l.LastActivityAt, &l.ReminderSentAt, &l.GracePeriodStartAt, &l.ExpiredAt,
		&l.ClockStoppedAt, &l.StopReason, &l.StopApprovedBy,
		&l.ProgressDeadline, &l.ProgressWarningSentAt, &l.PseudonymizedAt,
		&l.FollowupCount, &l.LeadScore, &l.Source, &l.SourceCampaign,
		&l.CreatedAt, &l.UpdatedAt, &l.CreatedBy, &l.UpdatedBy,
	)
	return l, err
}

func (r *Repository) queryLeads(ctx context.Context, sql string, args ...any) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return leads, nil
}

type CreateLeadParams struct {
	CompanyName          string
	ContactPerson        *string
	Email                *string
	Phone                *string
	City                 *string
	BusinessType         *domain.BusinessType
	KitchenSize          *domain.KitchenSize
	EmployeeCount        *int
	EstimatedVolumeCents *int64
	Stage                domain.Stage
	OwnerUserID          *string
	RegisteredAt         time.Time
	ProtectionMonths     int
	ProtectionDays60     int
	ProtectionDays10     int
	ProgressDeadline     *time.Time
	Source               *string
	SourceCampaign       *string
	CreatedAt            time.Time
	CreatedBy            string
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			company_name, contact_person, email, phone, city,
			business_type, kitchen_size, employee_count, estimated_volume_cents,
			status, stage, owner_user_id,
			registered_at, protection_start_at, protection_months, protection_days_60, protection_days_10,
			last_activity_at, progress_deadline, followup_count,
			source, source_campaign, created_at, updated_at, created_by
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12,
			$13, $13, $14, $15, $16,
			$13, $17, 0,
			$18, $19, $20, $20, $21
		)
		RETURNING `+leadColumns,
		params.CompanyName, params.ContactPerson, params.Email, params.Phone, params.City,
		params.BusinessType, params.KitchenSize, params.EmployeeCount, params.EstimatedVolumeCents,
		domain.StatusRegistered, params.Stage, params.OwnerUserID,
		params.RegisteredAt, params.ProtectionMonths, params.ProtectionDays60, params.ProtectionDays10,
		params.ProgressDeadline,
		params.Source, params.SourceCampaign, params.CreatedAt, params.CreatedBy,
	)
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE id = $1 AND status <> $2
	`, id, domain.StatusDeleted)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

// UpdateStatus transitions a lead from one status to another. The expected
// current status is repeated in the WHERE clause so a concurrent change makes
// this a no-op instead of a lost update. Returns true when the row was changed.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.Status, actorID string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = $3, updated_at = $4, updated_by = $5
		WHERE id = $1 AND status = $2
	`, id, from, to, now, actorID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RefreshActivity records a meaningful activity on the lead: refreshes the
// activity clock, advances the progress deadline, re-arms the progress warning,
// and reactivates leads sitting in REMINDER or GRACE_PERIOD.
func (r *Repository) RefreshActivity(ctx context.Context, id uuid.UUID, countsAsFollowup bool, actorID string, now time.Time) (domain.Lead, error) {
	deadline := now.AddDate(0, 0, protection.ProgressDeadlineDays)
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET last_activity_at = $2,
			progress_deadline = $3,
			progress_warning_sent_at = NULL,
			followup_count = followup_count + CASE WHEN $4 THEN 1 ELSE 0 END,
			status = CASE WHEN status IN ($6, $7) THEN $8 ELSE status END,
			reminder_sent_at = CASE WHEN status IN ($6, $7) THEN NULL ELSE reminder_sent_at END,
			grace_period_start_at = CASE WHEN status IN ($6, $7) THEN NULL ELSE grace_period_start_at END,
			updated_at = $2,
			updated_by = $5
		WHERE id = $1 AND clock_stopped_at IS NULL AND pseudonymized_at IS NULL
		RETURNING `+leadColumns,
		id, now, deadline, countsAsFollowup, actorID,
		domain.StatusReminder, domain.StatusGracePeriod, domain.StatusActive,
	)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

// StopClock pauses all deadline-driven processing for the lead.
func (r *Repository) StopClock(ctx context.Context, id uuid.UUID, reason, approvedBy string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET clock_stopped_at = $2, stop_reason = $3, stop_approved_by = $4,
			updated_at = $2, updated_by = $4
		WHERE id = $1 AND clock_stopped_at IS NULL
	`, id, now, reason, approvedBy)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ResumeClock clears the stop and shifts the protection window and deadlines
// forward by the paused duration, so stopped time does not count against the lead.
func (r *Repository) ResumeClock(ctx context.Context, id uuid.UUID, actorID string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET protection_start_at = protection_start_at + ($2 - clock_stopped_at),
			last_activity_at = last_activity_at + ($2 - clock_stopped_at),
			progress_deadline = progress_deadline + ($2 - clock_stopped_at),
			clock_stopped_at = NULL, stop_reason = NULL, stop_approved_by = NULL,
			updated_at = $2, updated_by = $3
		WHERE id = $1 AND clock_stopped_at IS NOT NULL
	`, id, now, actorID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// BackdateRegistration moves the registration origin to an earlier date and
// recalculates the derived deadlines. The previous registered_at is part of
// the predicate so a concurrent change makes this a no-op. A nil newDeadline
// leaves the progress deadline untouched.
func (r *Repository) BackdateRegistration(ctx context.Context, id uuid.UUID, oldRegisteredAt, newRegisteredAt time.Time, newDeadline *time.Time, actorID string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET registered_at = $3,
			protection_start_at = $3,
			last_activity_at = CASE WHEN last_activity_at = $2 THEN $3 ELSE last_activity_at END,
			progress_deadline = COALESCE($4, progress_deadline),
			updated_at = $5, updated_by = $6
		WHERE id = $1 AND registered_at = $2 AND clock_stopped_at IS NULL
	`, id, oldRegisteredAt, newRegisteredAt, newDeadline, now, actorID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateScore writes the derived score only when it actually changed.
// Returns true when the stored value differed from the new one.
func (r *Repository) UpdateScore(ctx context.Context, id uuid.UUID, score int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET lead_score = $2
		WHERE id = $1 AND lead_score IS DISTINCT FROM $2
	`, id, score)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
