package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Activity is one append-only audit entry on a lead's timeline. System
// entries document job-driven transitions so the lifecycle stays explainable.
type Activity struct {
	ID           uuid.UUID
	LeadID       uuid.UUID
	ActivityType string
	Description  *string
	IsMeaningful bool
	ActorID      string
	Metadata     json.RawMessage
	OccurredAt   time.Time
	CreatedAt    time.Time
}

type RecordActivityParams struct {
	LeadID       uuid.UUID
	ActivityType string
	Description  *string
	IsMeaningful bool
	ActorID      string
	Metadata     json.RawMessage
	OccurredAt   time.Time
}

func (r *Repository) RecordActivity(ctx context.Context, params RecordActivityParams) (Activity, error) {
	var a Activity
	err := r.pool.QueryRow(ctx, `
		INSERT INTO lead_activities (lead_id, activity_type, description, is_meaningful, actor_id, metadata, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, lead_id, activity_type, description, is_meaningful, actor_id, metadata, occurred_at, created_at
	`, params.LeadID, params.ActivityType, params.Description, params.IsMeaningful, params.ActorID, params.Metadata, params.OccurredAt).Scan(
		&a.ID, &a.LeadID, &a.ActivityType, &a.Description, &a.IsMeaningful, &a.ActorID, &a.Metadata, &a.OccurredAt, &a.CreatedAt,
	)
	if err != nil {
		return Activity{}, err
	}
	return a, nil
}

func (r *Repository) ListActivities(ctx context.Context, leadID uuid.UUID, limit int) ([]Activity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, activity_type, description, is_meaningful, actor_id, metadata, occurred_at, created_at
		FROM lead_activities
		WHERE lead_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Activity, 0)
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.LeadID, &a.ActivityType, &a.Description, &a.IsMeaningful, &a.ActorID, &a.Metadata, &a.OccurredAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// HasRecentMeaningfulActivity reports whether the lead saw a meaningful
// activity at or after the given instant.
func (r *Repository) HasRecentMeaningfulActivity(ctx context.Context, leadID uuid.UUID, since time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM lead_activities
			WHERE lead_id = $1 AND is_meaningful = true AND occurred_at >= $2
		)
	`, leadID, since).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
