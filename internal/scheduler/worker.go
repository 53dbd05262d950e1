package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"leadprotect_backend/internal/email"
	"leadprotect_backend/internal/leads/maintenance"
	"leadprotect_backend/internal/notification/outbox"
	"leadprotect_backend/platform/config"
	"leadprotect_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	maintenance *maintenance.Service
	outboxRepo  *outbox.Repository
	sender      email.Sender
	log         *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, svc *maintenance.Service, sender email.Sender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:      server,
		mux:         mux,
		maintenance: svc,
		outboxRepo:  outbox.New(pool),
		sender:      sender,
		log:         log,
	}

	mux.HandleFunc(TaskProgressWarning, w.runJob(maintenance.JobProgressWarning, svc.RunProgressWarning))
	mux.HandleFunc(TaskProtectionExpiry, w.runJob(maintenance.JobProtectionExpiry, svc.RunProtectionExpiry))
	mux.HandleFunc(TaskPseudonymization, w.runJob(maintenance.JobPseudonymization, svc.RunPseudonymization))
	mux.HandleFunc(TaskImportArchival, w.runJob(maintenance.JobImportArchival, svc.RunImportArchival))
	mux.HandleFunc(TaskActivityTrack, w.runJob(maintenance.JobActivityTrack, svc.RunActivityTrack))
	mux.HandleFunc(TaskRescore, w.runJob(maintenance.JobRescore, svc.RunRescore))
	mux.HandleFunc(TaskNotificationOutboxDue, w.handleNotificationOutboxDue)

	return w, nil
}

func (w *Worker) runJob(name string, run func(ctx context.Context) (maintenance.Result, error)) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		if _, err := run(ctx); err != nil {
			w.log.Error("maintenance job failed", "job", name, "error", err)
			return err
		}
		return nil
	}
}

// notificationPayload is the outbox payload shape the maintenance jobs write.
type notificationPayload struct {
	CompanyName      string     `json:"companyName"`
	ProgressDeadline *time.Time `json:"progressDeadline"`
	PreviousOwner    *string    `json:"previousOwner"`
}

func (w *Worker) handleNotificationOutboxDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNotificationOutboxDuePayload(task)
	if err != nil {
		return err
	}

	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return err
	}

	rec, err := w.outboxRepo.GetByID(ctx, outboxID)
	if err != nil {
		return err
	}
	if rec.Status == outbox.StatusSucceeded {
		return nil
	}

	if err := w.outboxRepo.MarkProcessing(ctx, rec.ID); err != nil {
		return err
	}

	if err := w.deliver(ctx, rec); err != nil {
		if markErr := w.outboxRepo.MarkFailed(ctx, rec.ID, err.Error()); markErr != nil {
			w.log.Error("mark outbox failed", "outbox_id", rec.ID, "error", markErr)
		}
		return err
	}

	return w.outboxRepo.MarkSucceeded(ctx, rec.ID)
}

func (w *Worker) deliver(ctx context.Context, rec outbox.Record) error {
	var data notificationPayload
	if err := json.Unmarshal(rec.Payload, &data); err != nil {
		return fmt.Errorf("decode outbox payload: %w", err)
	}

	switch rec.Template {
	case maintenance.TemplateProgressWarning:
		deadline := ""
		if data.ProgressDeadline != nil {
			deadline = data.ProgressDeadline.Format("02.01.2006")
		}
		return w.sender.SendProgressWarning(ctx, rec.Recipient, data.CompanyName, deadline)
	case maintenance.TemplateProtectionExpired:
		owner := ""
		if data.PreviousOwner != nil {
			owner = *data.PreviousOwner
		}
		return w.sender.SendProtectionExpired(ctx, rec.Recipient, data.CompanyName, owner)
	case maintenance.TemplateReminder:
		return w.sender.SendReminder(ctx, rec.Recipient, data.CompanyName)
	default:
		return fmt.Errorf("unknown notification template %q", rec.Template)
	}
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
