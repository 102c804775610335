package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"orderbridge/internal/gateway"
	"orderbridge/internal/metrics"
	"orderbridge/internal/repository"
	"orderbridge/pkg/logger"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"go.uber.org/zap"
)

const (
	// DirectionDownstream propagates destination statuses to the source.
	DirectionDownstream = "downstream"
	// DirectionUpstream propagates source statuses to the destination.
	DirectionUpstream = "upstream"
)

// StatusReconciler runs the two oppositely-directed status sweeps. Each sweep
// rebuilds the status map from the operator-managed table, lists recently
// changed orders on one side and applies at most one mapped status write per
// order on the other side. Orders whose status has no mapping entry are
// skipped, not errors.
type StatusReconciler struct {
	source   gateway.SourceClient
	dest     gateway.DestinationClient
	mappings repository.StatusMappingInterface
	etcd     *clientv3.Client
	interval time.Duration
	pageSize int
	observer metrics.Observer
}

func NewStatusReconciler(source gateway.SourceClient, dest gateway.DestinationClient, mappings repository.StatusMappingInterface, etcd *clientv3.Client, interval time.Duration, pageSize int, observer metrics.Observer) *StatusReconciler {
	return &StatusReconciler{
		source:   source,
		dest:     dest,
		mappings: mappings,
		etcd:     etcd,
		interval: interval,
		pageSize: pageSize,
		observer: observer,
	}
}

// RunDownstream loops the destination→source sweep until cancelled.
func (r *StatusReconciler) RunDownstream(ctx context.Context) {
	r.runLoop(ctx, DirectionDownstream, "/locks/status-downstream", r.SweepDownstream)
}

// RunUpstream loops the source→destination sweep until cancelled.
func (r *StatusReconciler) RunUpstream(ctx context.Context) {
	r.runLoop(ctx, DirectionUpstream, "/locks/status-upstream", r.SweepUpstream)
}

func (r *StatusReconciler) runLoop(ctx context.Context, direction, lockKey string, sweep func(context.Context) (*SweepSummary, error)) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var mutex *concurrency.Mutex
	if r.etcd != nil {
		session, err := concurrency.NewSession(r.etcd, concurrency.WithTTL(10))
		if err != nil {
			logger.Error("failed to create etcd concurrency session",
				zap.String("direction", direction), zap.Error(err))
			return
		}
		defer session.Close()
		mutex = concurrency.NewMutex(session, lockKey)
	}

	logger.Info("status reconciler started",
		zap.String("direction", direction), zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			logger.Info("status reconciler stopped", zap.String("direction", direction))
			return
		case <-ticker.C:
			if mutex != nil {
				lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err := mutex.Lock(lockCtx)
				cancel()
				if err != nil {
					if err == context.DeadlineExceeded {
						logger.Debug("status sweep skipped, another instance holds the lock",
							zap.String("direction", direction))
					} else {
						logger.Error("failed to acquire status sweep lock",
							zap.String("direction", direction), zap.Error(err))
					}
					continue
				}
			}

			if _, err := sweep(ctx); err != nil {
				logger.Error("status sweep failed",
					zap.String("direction", direction), zap.Error(err))
			}

			if mutex != nil {
				if err := mutex.Unlock(context.Background()); err != nil {
					logger.Warn("failed to release status sweep lock",
						zap.String("direction", direction), zap.Error(err))
				}
			}
		}
	}
}

// SweepDownstream fetches recently changed destination orders and applies the
// mapped status to their linked source orders. The linkage is the source
// order id carried in the destination order's external code.
func (r *StatusReconciler) SweepDownstream(ctx context.Context) (*SweepSummary, error) {
	start := time.Now()
	defer func() {
		r.observer.ObserveSweepDuration("status_downstream", time.Since(start).Seconds())
	}()

	summary := &SweepSummary{}

	entries, err := r.mappings.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load status mappings: %w", err)
	}
	m := BuildStatusMap(entries)
	if m.Empty() {
		logger.Warn("status mapping table is empty, skipping downstream sweep")
		return summary, nil
	}

	orders, err := r.dest.ListRecentOrders(ctx, r.pageSize)
	if err != nil {
		return nil, fmt.Errorf("list destination orders: %w", err)
	}

	seen := make(map[string]struct{}, len(orders))
	for i := range orders {
		o := &orders[i]
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if o.ExternalCode == "" || o.State.Name == "" {
			continue
		}
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}

		sourceID, perr := strconv.ParseInt(o.ExternalCode, 10, 64)
		if perr != nil {
			logger.Debug("destination order carries a non-numeric external code",
				zap.String("destination_id", o.ID),
				zap.String("external_code", o.ExternalCode))
			continue
		}

		mapped, ok := m.ToSource(o.State.Name)
		if !ok {
			logger.Debug("destination status has no mapping entry",
				zap.String("destination_id", o.ID),
				zap.String("status", o.State.Name))
			continue
		}

		summary.Processed++
		if uerr := r.source.UpdateOrderStatus(ctx, sourceID, mapped); uerr != nil {
			summary.Failed++
			logger.Error("failed to update source order status",
				zap.Int64("order_id", sourceID),
				zap.String("status", mapped),
				zap.Error(uerr))
			continue
		}
		summary.Succeeded++
		r.observer.RecordStatusUpdate(DirectionDownstream)
		logger.Info("source order status updated",
			zap.Int64("order_id", sourceID),
			zap.String("status", mapped),
			zap.String("destination_status", o.State.Name))
	}

	logger.Info("downstream status sweep finished",
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// SweepUpstream fetches recently changed source orders and applies the mapped
// status to their linked destination orders. The linkage is the destination
// order id carried in the source order's metadata.
func (r *StatusReconciler) SweepUpstream(ctx context.Context) (*SweepSummary, error) {
	start := time.Now()
	defer func() {
		r.observer.ObserveSweepDuration("status_upstream", time.Since(start).Seconds())
	}()

	summary := &SweepSummary{}

	entries, err := r.mappings.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load status mappings: %w", err)
	}
	m := BuildStatusMap(entries)
	if m.Empty() {
		logger.Warn("status mapping table is empty, skipping upstream sweep")
		return summary, nil
	}

	orders, err := r.source.ListRecentOrders(ctx, r.pageSize)
	if err != nil {
		return nil, fmt.Errorf("list source orders: %w", err)
	}

	// The status catalog is fetched at most once per sweep, and only when a
	// mapping entry does not pin the reference itself.
	var catalog map[string]string
	resolveRef := func(status string) (gateway.StatusRef, error) {
		if href, ok := m.DestinationRef(status); ok {
			return gateway.StatusRef{Name: status, Href: href}, nil
		}
		if catalog == nil {
			refs, cerr := r.dest.StatusCatalog(ctx)
			if cerr != nil {
				return gateway.StatusRef{}, cerr
			}
			catalog = make(map[string]string, len(refs))
			for _, ref := range refs {
				catalog[ref.Name] = ref.Href
			}
		}
		href, ok := catalog[status]
		if !ok {
			return gateway.StatusRef{}, fmt.Errorf("status %q not present in destination catalog", status)
		}
		return gateway.StatusRef{Name: status, Href: href}, nil
	}

	seen := make(map[int64]struct{}, len(orders))
	for i := range orders {
		o := &orders[i]
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		destID := o.Meta(gateway.MetaDestinationID)
		if destID == "" || o.Status == "" {
			continue
		}
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}

		mapped, ok := m.ToDestination(o.Status)
		if !ok {
			logger.Debug("source status has no mapping entry",
				zap.Int64("order_id", o.ID),
				zap.String("status", o.Status))
			continue
		}

		summary.Processed++
		ref, rerr := resolveRef(mapped)
		if rerr != nil {
			summary.Failed++
			logger.Error("failed to resolve destination status reference",
				zap.Int64("order_id", o.ID),
				zap.String("status", mapped),
				zap.Error(rerr))
			continue
		}
		if uerr := r.dest.UpdateOrderStatus(ctx, destID, ref); uerr != nil {
			summary.Failed++
			logger.Error("failed to update destination order status",
				zap.String("destination_id", destID),
				zap.String("status", mapped),
				zap.Error(uerr))
			continue
		}
		summary.Succeeded++
		r.observer.RecordStatusUpdate(DirectionUpstream)
		logger.Info("destination order status updated",
			zap.String("destination_id", destID),
			zap.String("status", mapped),
			zap.Int64("order_id", o.ID))
	}

	logger.Info("upstream status sweep finished",
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))
	return summary, nil
}
