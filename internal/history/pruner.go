package history

import (
	"fmt"
	"log/slog"

	"github.com/acolita/hydra-sh/internal/ports"
	"github.com/robfig/cron/v3"
)

// Pruner deletes days older than the retention window on a cron schedule.
type Pruner struct {
	store         *Store
	retentionDays int
	clock         ports.Clock
	logger        *slog.Logger
	cron          *cron.Cron
}

// NewPruner schedules RunOnce on schedule (standard cron spec or a
// descriptor such as "@daily"). It does not start the scheduler.
func NewPruner(store *Store, retentionDays int, schedule string, clock ports.Clock, logger *slog.Logger) (*Pruner, error) {
	if retentionDays <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %d days", retentionDays)
	}
	if schedule == "" {
		schedule = "@daily"
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pruner{
		store:         store,
		retentionDays: retentionDays,
		clock:         clock,
		logger:        logger,
		cron:          cron.New(),
	}
	if _, err := p.cron.AddFunc(schedule, func() {
		if _, err := p.RunOnce(); err != nil {
			p.logger.Error("history prune failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return nil, fmt.Errorf("parse prune schedule %q: %w", schedule, err)
	}
	return p, nil
}

// Cutoff returns the oldest day key kept.
func (p *Pruner) Cutoff() string {
	return p.clock.Now().UTC().AddDate(0, 0, -p.retentionDays).Format(DateLayout)
}

// RunOnce prunes immediately.
func (p *Pruner) RunOnce() (int64, error) {
	cutoff := p.Cutoff()
	n, err := p.store.DeleteBefore(cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.Info("pruned history", slog.String("before", cutoff), slog.Int64("entries", n))
	}
	return n, nil
}

// Start runs the schedule in the background.
func (p *Pruner) Start() { p.cron.Start() }

// Stop halts the schedule and waits for a running prune.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}
