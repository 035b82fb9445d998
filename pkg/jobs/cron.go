// Package jobs schedules the background maintenance the ledger needs: pruning
// expired day buckets and reconciling cached counts against the event log.
package jobs

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/mehdierdemdede/leadflow/pkg/audit"
	"github.com/mehdierdemdede/leadflow/pkg/ledger"
	"github.com/mehdierdemdede/leadflow/pkg/logger"
)

// CronManager manages scheduled jobs
type CronManager struct {
	cron          *cron.Cron
	ledger        ledger.Ledger
	eventLog      *audit.Service
	clock         clockwork.Clock
	retentionDays int
	log           logger.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(led ledger.Ledger, eventLog *audit.Service, clock clockwork.Clock, retentionDays int, log logger.Logger) *CronManager {
	if log == nil {
		log = logger.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if retentionDays <= 0 {
		retentionDays = 30
	}

	return &CronManager{
		cron:          cron.New(),
		ledger:        led,
		eventLog:      eventLog,
		clock:         clock,
		retentionDays: retentionDays,
		log:           log,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	cm.log.Info("setting up cron jobs")

	// Daily at 2 AM UTC: prune ledger buckets past retention.
	if _, err := cm.cron.AddFunc("0 2 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if err := cm.PruneLedger(ctx); err != nil {
			cm.log.Error("ledger prune job failed", "error", err)
		}
	}); err != nil {
		return err
	}

	// Daily at 3 AM UTC: reconcile yesterday's cached counts against the
	// event log. Yesterday's buckets can still be decremented by transfers
	// and unassignments, so they are re-derived rather than assumed stable.
	if _, err := cm.cron.AddFunc("0 3 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if err := cm.ReconcileYesterday(ctx); err != nil {
			cm.log.Error("ledger reconcile job failed", "error", err)
		}
	}); err != nil {
		return err
	}

	return nil
}

// PruneLedger drops day buckets older than the retention window.
func (cm *CronManager) PruneLedger(ctx context.Context) error {
	cutoff := ledger.DayOf(cm.clock.Now().AddDate(0, 0, -cm.retentionDays))

	pruned, err := cm.ledger.PruneBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	cm.log.Info("ledger pruned", "cutoff", cutoff, "buckets_removed", pruned)
	return nil
}

// ReconcileYesterday rebuilds yesterday's ledger buckets from the event log.
func (cm *CronManager) ReconcileYesterday(ctx context.Context) error {
	day := ledger.DayOf(cm.clock.Now().AddDate(0, 0, -1))

	if err := cm.eventLog.RebuildDay(ctx, cm.ledger, day); err != nil {
		return err
	}

	cm.log.Info("ledger reconciled", "day", day)
	return nil
}

// Start begins running scheduled jobs
func (cm *CronManager) Start() {
	cm.cron.Start()
	cm.log.Info("cron jobs started")
}

// Stop halts all scheduled jobs
func (cm *CronManager) Stop() {
	cm.cron.Stop()
	cm.log.Info("cron jobs stopped")
}
