// Package prune runs the scheduled audit-log retention job.
package prune

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// AuditStore is the slice of the audit log the pruner needs.
type AuditStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditPruner deletes raw webhook records past the retention window.
// The audit log is a diagnostics sink; unbounded growth is the only
// reason it needs maintenance.
type AuditPruner struct {
	audit     AuditStore
	retention time.Duration
	schedule  string
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewAuditPruner creates the pruner. retentionDays <= 0 disables it.
func NewAuditPruner(log *slog.Logger, audit AuditStore, retentionDays int, schedule string) *AuditPruner {
	if log == nil {
		log = slog.Default()
	}
	return &AuditPruner{
		audit:     audit,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		schedule:  schedule,
		logger:    log.With(slog.String("component", "audit_pruner")),
	}
}

// Start schedules the job. No-op when retention is disabled.
func (p *AuditPruner) Start() error {
	if p.retention <= 0 {
		p.logger.Info("audit retention disabled")
		return nil
	}
	p.cron = cron.New()
	if _, err := p.cron.AddFunc(p.schedule, p.runOnce); err != nil {
		return err
	}
	p.cron.Start()
	p.logger.Info("audit retention scheduled",
		slog.String("schedule", p.schedule),
		slog.Duration("retention", p.retention),
	)
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (p *AuditPruner) Stop() {
	if p.cron != nil {
		<-p.cron.Stop().Done()
	}
}

func (p *AuditPruner) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-p.retention)
	deleted, err := p.audit.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("audit prune failed", slog.Any("error", err))
		return
	}
	if deleted > 0 {
		p.logger.Info("audit records pruned",
			slog.Int64("deleted", deleted),
			slog.Time("cutoff", cutoff),
		)
	}
}
