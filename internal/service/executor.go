package service

import (
	"context"
	"encoding/json"
	"errors"

	"orderbridge/internal/gateway"
	"orderbridge/internal/metrics"
	"orderbridge/internal/repository"
	"orderbridge/pkg/logger"

	"go.uber.org/zap"
)

// SyncRequest describes one forward-sync attempt. DestinationID and
// DestinationNumber are set when a previous attempt already created the
// destination order but failed to link it back; such an attempt resumes at
// the link-back step and never creates a second destination order.
type SyncRequest struct {
	OrderID           int64
	Payload           json.RawMessage
	DestinationID     string
	DestinationNumber string
}

// SyncOutcome carries the destination-assigned identifiers. It is returned
// even when the attempt fails after creation, so the caller can persist the
// resume point.
type SyncOutcome struct {
	DestinationID     string
	DestinationNumber string
}

// OrderSyncer is the narrow view of the executor the retry sweep depends on.
type OrderSyncer interface {
	SyncOrder(ctx context.Context, req SyncRequest) (*SyncOutcome, error)
}

// Executor performs the idempotent single-order forward-sync: submit to the
// destination, validate the response, link the destination identifiers back
// onto the source order.
type Executor struct {
	source   gateway.SourceClient
	dest     gateway.DestinationClient
	pending  repository.PendingInterface
	observer metrics.Observer
}

func NewExecutor(source gateway.SourceClient, dest gateway.DestinationClient, pending repository.PendingInterface, observer metrics.Observer) *Executor {
	return &Executor{
		source:   source,
		dest:     dest,
		pending:  pending,
		observer: observer,
	}
}

// SyncOrder runs one attempt. All failures come back as *gateway.SyncError;
// per-attempt bookkeeping (pending store writes) is the caller's job.
func (e *Executor) SyncOrder(ctx context.Context, req SyncRequest) (*SyncOutcome, error) {
	outcome := &SyncOutcome{
		DestinationID:     req.DestinationID,
		DestinationNumber: req.DestinationNumber,
	}

	if outcome.DestinationID == "" {
		created, err := e.dest.CreateOrder(ctx, req.Payload)
		if err != nil {
			return nil, err
		}
		if created.ID == "" || created.Name == "" || created.Meta.Href == "" {
			return nil, &gateway.SyncError{
				Kind:    gateway.FailureInvalidResponse,
				Message: "creation response missing id, name or meta.href",
			}
		}
		outcome.DestinationID = created.ID
		outcome.DestinationNumber = created.Name
	} else {
		logger.Info("resuming link-back for already-created destination order",
			zap.Int64("order_id", req.OrderID),
			zap.String("destination_id", outcome.DestinationID))
	}

	// Link-back is idempotent on the source side, safe to repeat.
	fields := map[string]string{
		gateway.MetaDestinationID:     outcome.DestinationID,
		gateway.MetaDestinationNumber: outcome.DestinationNumber,
	}
	if err := e.source.UpdateOrderMetadata(ctx, req.OrderID, outcome.DestinationNumber, fields); err != nil {
		return outcome, &gateway.SyncError{
			Kind:    gateway.FailureLinkBack,
			Message: err.Error(),
			Err:     err,
		}
	}

	return outcome, nil
}

// ProcessOrder is the first-attempt entry point, called when the source
// system reports a new order. On success any pending row for the order is
// removed; on failure the order lands in the pending store for the retry
// sweep to pick up.
func (e *Executor) ProcessOrder(ctx context.Context, orderID int64, payload json.RawMessage) error {
	logger.Info("syncing order to destination", zap.Int64("order_id", orderID))

	outcome, err := e.SyncOrder(ctx, SyncRequest{OrderID: orderID, Payload: payload})
	if err != nil {
		kind := FailureKindOf(err)
		e.observer.RecordSyncFailure(string(kind))
		logger.Error("order sync failed",
			zap.Int64("order_id", orderID),
			zap.String("kind", string(kind)),
			zap.Error(err))

		rec := repository.FailureRecord{
			OrderID:      orderID,
			Payload:      string(payload),
			ErrorMessage: err.Error(),
		}
		if outcome != nil {
			rec.DestinationID = outcome.DestinationID
			rec.DestinationNumber = outcome.DestinationNumber
		}
		if uerr := e.pending.UpsertFailure(ctx, rec); uerr != nil {
			logger.Error("failed to record order in pending store",
				zap.Int64("order_id", orderID), zap.Error(uerr))
		}
		return err
	}

	e.observer.RecordSyncSuccess()
	if rmErr := e.pending.Remove(ctx, orderID); rmErr != nil {
		logger.Error("failed to remove order from pending store",
			zap.Int64("order_id", orderID), zap.Error(rmErr))
	}
	logger.Info("order synced",
		zap.Int64("order_id", orderID),
		zap.String("destination_id", outcome.DestinationID),
		zap.String("destination_number", outcome.DestinationNumber))
	return nil
}

// FailureKindOf extracts the taxonomy kind from a sync error.
func FailureKindOf(err error) gateway.FailureKind {
	var serr *gateway.SyncError
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return gateway.FailureNetwork
}
