// Package leads provides the lead protection bounded context module.
// This file wires the repository, the interactive service, and the
// maintenance jobs together.
package leads

import (
	"context"

	"leadprotect_backend/internal/events"
	"leadprotect_backend/internal/leads/maintenance"
	"leadprotect_backend/internal/leads/repository"
	"leadprotect_backend/internal/leads/service"
	"leadprotect_backend/internal/notification/outbox"
	"leadprotect_backend/platform/clock"
	"leadprotect_backend/platform/config"
	"leadprotect_backend/platform/logger"
	"leadprotect_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module.
type Module struct {
	repo        *repository.Repository
	service     *service.Service
	maintenance *maintenance.Service
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, cfg *config.Config, log *logger.Logger) *Module {
	repo := repository.New(pool)
	ob := outbox.New(pool)
	clk := clock.System{}

	svc := service.New(repo, eventBus, clk, val, log, cfg)
	maint := maintenance.NewService(repo, ob, eventBus, clk, log, cfg)

	// Status changes are audit-relevant; keep an eye on them in the logs
	// even when no handler cares.
	eventBus.Subscribe(events.LeadStatusChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadStatusChanged)
		if !ok {
			return nil
		}
		log.Info("lead status changed", "lead_id", e.LeadID, "from", e.OldStatus, "to", e.NewStatus, "actor", e.ActorID)
		return nil
	}))

	return &Module{
		repo:        repo,
		service:     svc,
		maintenance: maint,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "leads" }

// Service exposes the interactive lead operations.
func (m *Module) Service() *service.Service { return m.service }

// Maintenance exposes the job runner for the scheduler worker.
func (m *Module) Maintenance() *maintenance.Service { return m.maintenance }

// Repository exposes the raw store, used by the scheduler wiring.
func (m *Module) Repository() *repository.Repository { return m.repo }
