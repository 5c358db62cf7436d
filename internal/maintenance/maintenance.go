// Package maintenance runs the board's periodic housekeeping: a
// cron-scheduled capacity recompute that keeps the gauge and the log in
// step with the store.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"

	"voiceboard/pkg/capacity"
	"voiceboard/pkg/logger"
	"voiceboard/pkg/store"
)

// Start launches the maintenance scheduler for the given cron
// expression. An empty expression disables the loop; an invalid one is
// an error. The returned cancel func stops the scheduler.
func Start(ctx context.Context, st *store.Store, acct *capacity.Accountant, cronExpr string) (context.CancelFunc, error) {
	if cronExpr == "" {
		logger.Info("maintenance_disabled")
		return func() {}, nil
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("maintenance_invalid_cron", zap.String("cron", cronExpr))
		return nil, fmt.Errorf("invalid maintenance cron expression: %s", cronExpr)
	}

	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, st, acct, cronExpr)
	logger.Info("maintenance_scheduler_started", zap.String("cron", cronExpr))
	return cancel, nil
}

// runScheduler computes the next cron tick with gronx and sleeps until
// then, running one recompute per tick.
func runScheduler(ctx context.Context, st *store.Store, acct *capacity.Accountant, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("maintenance_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("maintenance_nexttick_failed", zap.String("cron", cronExpr), zap.Error(err))
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait < time.Second {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			RunOnce(st, acct)
		case <-ctx.Done():
			logger.Info("maintenance_scheduler_stopping")
			return
		}
	}
}

// RunOnce performs a single housekeeping pass. A failed recompute is
// logged and skipped for this cycle, never retried.
func RunOnce(st *store.Store, acct *capacity.Accountant) {
	total, err := acct.ComputeUsage()
	if err != nil {
		logger.Warn("maintenance_capacity_skipped", zap.Error(err))
		return
	}
	logger.Info("maintenance_capacity",
		zap.Int64("blob_bytes", total),
		zap.String("display", capacity.FormatUsage(total)),
		zap.Int64("disk_bytes", st.DiskUsage()))
}
