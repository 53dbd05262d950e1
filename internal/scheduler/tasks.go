package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TaskProgressWarning  = "leads.maintenance.progress_warning"
	TaskProtectionExpiry = "leads.maintenance.protection_expiry"
	TaskPseudonymization = "leads.maintenance.pseudonymization"
	TaskImportArchival   = "leads.maintenance.import_archival"
	TaskActivityTrack    = "leads.maintenance.activity_track"
	TaskRescore          = "leads.maintenance.rescore"

	TaskNotificationOutboxDue = "notification.outbox.due"
)

type NotificationOutboxDuePayload struct {
	OutboxID string `json:"outboxId"`
}

func NewMaintenanceTask(name string) *asynq.Task {
	return asynq.NewTask(name, nil)
}

func NewNotificationOutboxDueTask(payload NotificationOutboxDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationOutboxDue, data), nil
}

func ParseNotificationOutboxDuePayload(task *asynq.Task) (NotificationOutboxDuePayload, error) {
	var payload NotificationOutboxDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationOutboxDuePayload{}, err
	}
	return payload, nil
}
