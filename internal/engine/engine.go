package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mdraugelis/ai-programs-registry/internal/config"
	"github.com/Mdraugelis/ai-programs-registry/internal/domain"
	"github.com/Mdraugelis/ai-programs-registry/internal/events"
	"github.com/Mdraugelis/ai-programs-registry/internal/repo"
)

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Workspace string
	Now       func() time.Time
}

func New(db *sql.DB, cfg *config.Config, workspace string) Engine {
	return Engine{
		DB:        db,
		Repo:      repo.Repo{DB: db},
		Events:    events.Writer{DB: db},
		Config:    cfg,
		Workspace: workspace,
		Now:       time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func validStage(stage string) bool {
	return domain.StageRank(stage) >= 0
}

var initiativeStatuses = map[string]bool{
	"active": true, "paused": true, "completed": true, "deleted": true,
}

// InitiativeCreateOptions are parameters for registering an initiative.
type InitiativeCreateOptions struct {
	Title                string
	ProgramOwner         string
	Department           string
	Background           string
	Goal                 string
	Stage                string
	Risks                string
	VendorInfo           string
	AIComponents         string
	EquityConsiderations string
	ActorID              string
}

func (e Engine) CreateInitiative(ctx context.Context, opts InitiativeCreateOptions) (domain.Initiative, error) {
	if opts.Title == "" {
		return domain.Initiative{}, errors.New("title is required")
	}
	if opts.Stage == "" {
		opts.Stage = "idea"
	}
	if !validStage(opts.Stage) {
		return domain.Initiative{}, fmt.Errorf("unknown stage %q", opts.Stage)
	}
	now := e.now().UTC().Format(time.RFC3339)
	in := domain.Initiative{
		ID:                   uuid.NewString(),
		Title:                opts.Title,
		ProgramOwner:         opts.ProgramOwner,
		Department:           opts.Department,
		Background:           opts.Background,
		Goal:                 opts.Goal,
		Stage:                opts.Stage,
		Risks:                opts.Risks,
		VendorInfo:           opts.VendorInfo,
		AIComponents:         opts.AIComponents,
		EquityConsiderations: opts.EquityConsiderations,
		Status:               "active",
		CreatedBy:            opts.ActorID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Initiative{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertInitiative(ctx, tx, in); err != nil {
		return domain.Initiative{}, err
	}
	if err := e.Events.Append(ctx, tx, "initiative.created", "initiative", in.ID, opts.ActorID, events.EventPayload{
		"title": in.Title,
		"stage": in.Stage,
	}); err != nil {
		return domain.Initiative{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Initiative{}, err
	}
	return in, nil
}

func (e Engine) UpdateInitiative(ctx context.Context, id string, u repo.InitiativeUpdate, actorID string) (domain.Initiative, error) {
	if u.Stage != nil && !validStage(*u.Stage) {
		return domain.Initiative{}, fmt.Errorf("unknown stage %q", *u.Stage)
	}
	if u.Status != nil && !initiativeStatuses[*u.Status] {
		return domain.Initiative{}, fmt.Errorf("unknown status %q", *u.Status)
	}
	prev, err := e.Repo.GetInitiative(ctx, id)
	if err != nil {
		return domain.Initiative{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Initiative{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateInitiative(ctx, tx, id, u, now); err != nil {
		return domain.Initiative{}, err
	}
	payload := events.EventPayload{}
	if u.Stage != nil && *u.Stage != prev.Stage {
		payload["stage_from"] = prev.Stage
		payload["stage_to"] = *u.Stage
	}
	if u.Status != nil && *u.Status != prev.Status {
		payload["status_from"] = prev.Status
		payload["status_to"] = *u.Status
	}
	if err := e.Events.Append(ctx, tx, "initiative.updated", "initiative", id, actorID, payload); err != nil {
		return domain.Initiative{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Initiative{}, err
	}
	return e.Repo.GetInitiative(ctx, id)
}

// DeleteInitiative soft-deletes: the row stays for the audit trail but drops
// out of listings.
func (e Engine) DeleteInitiative(ctx context.Context, id, actorID string) error {
	in, err := e.Repo.GetInitiative(ctx, id)
	if err != nil {
		return err
	}
	if in.Status == "deleted" {
		return nil
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	deleted := "deleted"
	if err := e.Repo.UpdateInitiative(ctx, tx, id, repo.InitiativeUpdate{Status: &deleted}, now); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "initiative.deleted", "initiative", id, actorID, events.EventPayload{
		"title": in.Title,
	}); err != nil {
		return err
	}
	return tx.Commit()
}
