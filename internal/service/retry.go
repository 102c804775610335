package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"orderbridge/internal/metrics"
	"orderbridge/internal/model"
	"orderbridge/internal/repository"
	"orderbridge/pkg/logger"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"go.uber.org/zap"
)

// SweepSummary is what a sweep entry point reports back to its trigger.
type SweepSummary struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Escalated int `json:"escalated"`
}

// RetryWorkerConfig bounds one retry sweep.
type RetryWorkerConfig struct {
	MaxRetries int
	BatchSize  int
	Cooldown   time.Duration
	Interval   time.Duration
}

// RetryWorker periodically re-attempts pending orders and escalates the ones
// that exhausted their retry budget.
type RetryWorker struct {
	pending     repository.PendingInterface
	deadLetters repository.DeadLetterInterface
	syncer      OrderSyncer
	etcd        *clientv3.Client
	cfg         RetryWorkerConfig
	observer    metrics.Observer
}

func NewRetryWorker(pending repository.PendingInterface, deadLetters repository.DeadLetterInterface, syncer OrderSyncer, etcd *clientv3.Client, cfg RetryWorkerConfig, observer metrics.Observer) *RetryWorker {
	return &RetryWorker{
		pending:     pending,
		deadLetters: deadLetters,
		syncer:      syncer,
		etcd:        etcd,
		cfg:         cfg,
		observer:    observer,
	}
}

// Run ticks until the context is cancelled. When an etcd client is present a
// distributed mutex keeps overlapping instances from sweeping concurrently.
func (w *RetryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	var mutex *concurrency.Mutex
	if w.etcd != nil {
		session, err := concurrency.NewSession(w.etcd, concurrency.WithTTL(10))
		if err != nil {
			logger.Error("failed to create etcd concurrency session", zap.Error(err))
			return
		}
		defer session.Close()
		mutex = concurrency.NewMutex(session, "/locks/retry-sweep")
	}

	logger.Info("retry worker started", zap.Duration("interval", w.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			logger.Info("retry worker stopped")
			return
		case <-ticker.C:
			if mutex != nil {
				lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err := mutex.Lock(lockCtx)
				cancel()
				if err != nil {
					if err == context.DeadlineExceeded {
						logger.Debug("retry sweep skipped, another instance holds the lock")
					} else {
						logger.Error("failed to acquire retry sweep lock", zap.Error(err))
					}
					continue
				}
			}

			if _, err := w.Sweep(ctx); err != nil {
				logger.Error("retry sweep failed", zap.Error(err))
			}

			if mutex != nil {
				if err := mutex.Unlock(context.Background()); err != nil {
					logger.Warn("failed to release retry sweep lock", zap.Error(err))
				}
			}
		}
	}
}

// Sweep runs one bounded pass: eligible rows are re-attempted oldest-attempt
// first, then rows that spent their retry budget move to the dead-letter
// store. Rows touched during the retry pass are skipped by the escalation
// pass and wait for the next sweep. A store error aborts the sweep; per-item
// failures are recorded and the sweep continues.
func (w *RetryWorker) Sweep(ctx context.Context) (*SweepSummary, error) {
	start := time.Now()
	defer func() {
		w.observer.ObserveSweepDuration("retry", time.Since(start).Seconds())
	}()

	sweepID := uuid.New().String()
	summary := &SweepSummary{}

	rows, err := w.pending.SelectEligibleForRetry(ctx, w.cfg.MaxRetries, w.cfg.BatchSize, w.cfg.Cooldown)
	if err != nil {
		return nil, fmt.Errorf("select eligible rows: %w", err)
	}
	if len(rows) > 0 {
		logger.Info("retrying pending orders",
			zap.String("sweep_id", sweepID), zap.Int("count", len(rows)))
	}

	processed := make(map[int64]struct{}, len(rows))
	for i := range rows {
		row := &rows[i]
		if ctx.Err() != nil {
			// Cancelled mid-batch: already-processed rows keep their updated
			// state, the remainder waits for the next sweep.
			return summary, ctx.Err()
		}

		processed[row.ID] = struct{}{}
		summary.Processed++

		if !json.Valid([]byte(row.Payload)) {
			// A malformed stored payload cannot self-heal by waiting.
			logger.Error("stored payload is not valid JSON, escalating",
				zap.String("sweep_id", sweepID),
				zap.Int64("order_id", row.OrderID),
				zap.Int64("pending_id", row.ID))
			w.escalate(ctx, row, summary)
			continue
		}

		logger.Info("retrying order",
			zap.String("sweep_id", sweepID),
			zap.Int64("order_id", row.OrderID),
			zap.Int("attempt", row.RetryCount+1))

		outcome, serr := w.syncer.SyncOrder(ctx, SyncRequest{
			OrderID:           row.OrderID,
			Payload:           json.RawMessage(row.Payload),
			DestinationID:     row.DestinationID,
			DestinationNumber: row.DestinationNumber,
		})
		if serr != nil {
			summary.Failed++
			w.observer.RecordSyncFailure(string(FailureKindOf(serr)))
			logger.Error("retry attempt failed",
				zap.String("sweep_id", sweepID),
				zap.Int64("order_id", row.OrderID),
				zap.Error(serr))

			rec := repository.FailureRecord{
				OrderID:      row.OrderID,
				Payload:      row.Payload,
				ErrorMessage: serr.Error(),
			}
			if outcome != nil {
				rec.DestinationID = outcome.DestinationID
				rec.DestinationNumber = outcome.DestinationNumber
			}
			if uerr := w.pending.UpsertFailure(ctx, rec); uerr != nil {
				logger.Error("failed to record retry failure",
					zap.Int64("order_id", row.OrderID), zap.Error(uerr))
			}
			continue
		}

		summary.Succeeded++
		w.observer.RecordSyncSuccess()
		if rmErr := w.pending.Remove(ctx, row.OrderID); rmErr != nil {
			logger.Error("failed to remove synced order from pending store",
				zap.Int64("order_id", row.OrderID), zap.Error(rmErr))
		}
	}

	exhausted, err := w.pending.SelectExhausted(ctx, w.cfg.MaxRetries, w.cfg.BatchSize)
	if err != nil {
		return summary, fmt.Errorf("select exhausted rows: %w", err)
	}
	for i := range exhausted {
		row := &exhausted[i]
		if _, ok := processed[row.ID]; ok {
			continue
		}
		w.escalate(ctx, row, summary)
	}

	logger.Info("retry sweep finished",
		zap.String("sweep_id", sweepID),
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("escalated", summary.Escalated))
	return summary, nil
}

func (w *RetryWorker) escalate(ctx context.Context, row *model.PendingSync, summary *SweepSummary) {
	logger.Warn("order reached max retries, moving to dead letter store",
		zap.Int64("order_id", row.OrderID),
		zap.Int64("pending_id", row.ID),
		zap.Int("retry_count", row.RetryCount))

	if err := w.deadLetters.Escalate(ctx, row); err != nil {
		// The pending row survives and the next sweep reconsiders it.
		logger.Error("escalation failed, pending row kept",
			zap.Int64("order_id", row.OrderID),
			zap.Int64("pending_id", row.ID),
			zap.Error(err))
		return
	}
	summary.Escalated++
	w.observer.RecordEscalation()
}
