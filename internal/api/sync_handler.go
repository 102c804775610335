package api

import (
	"encoding/json"
	"strconv"

	"orderbridge/internal/dto/resp"
	"orderbridge/internal/repository"
	"orderbridge/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type SyncHandler struct {
	executor    *service.Executor
	retry       *service.RetryWorker
	statuses    *service.StatusReconciler
	pending     repository.PendingInterface
	deadLetters repository.DeadLetterInterface
	db          *gorm.DB
}

func NewSyncHandler(executor *service.Executor, retry *service.RetryWorker, statuses *service.StatusReconciler, pending repository.PendingInterface, deadLetters repository.DeadLetterInterface, db *gorm.DB) *SyncHandler {
	return &SyncHandler{
		executor:    executor,
		retry:       retry,
		statuses:    statuses,
		pending:     pending,
		deadLetters: deadLetters,
		db:          db,
	}
}

func (h *SyncHandler) HealthCheck(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(503, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"status": "ok"})
}

// SyncOrder is the first-attempt entry point, called by the source system's
// webhook with the order payload as the request body. A failed attempt is
// parked in the pending store, so the caller gets 502 but the order is not
// lost.
func (h *SyncHandler) SyncOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid order id"})
		return
	}

	payload, err := c.GetRawData()
	if err != nil || !json.Valid(payload) {
		c.JSON(400, gin.H{"error": "request body must be a JSON order payload"})
		return
	}

	if err := h.executor.ProcessOrder(c.Request.Context(), orderID, payload); err != nil {
		c.JSON(502, gin.H{
			"status": "pending",
			"kind":   string(service.FailureKindOf(err)),
			"error":  err.Error(),
		})
		return
	}
	c.JSON(200, gin.H{"status": "synced", "order_id": orderID})
}

func (h *SyncHandler) ListPending(c *gin.Context) {
	limit := queryLimit(c, 50)
	rows, err := h.pending.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	items := make([]resp.PendingItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, resp.PendingItem{
			ID:                r.ID,
			OrderID:           r.OrderID,
			RetryCount:        r.RetryCount,
			LastAttemptAt:     r.LastAttemptAt,
			ErrorMessage:      r.ErrorMessage,
			DestinationID:     r.DestinationID,
			DestinationNumber: r.DestinationNumber,
			CreatedAt:         r.CreatedAt,
		})
	}
	c.JSON(200, items)
}

func (h *SyncHandler) ListDeadLetters(c *gin.Context) {
	limit := queryLimit(c, 50)
	rows, err := h.deadLetters.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}

	items := make([]resp.DeadLetterItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, resp.DeadLetterItem{
			ID:                r.ID,
			OriginalPendingID: r.OriginalPendingID,
			OrderID:           r.OrderID,
			Payload:           r.Payload,
			FinalErrorMessage: r.FinalErrorMessage,
			FailedAt:          r.FailedAt,
		})
	}
	c.JSON(200, items)
}

func (h *SyncHandler) TriggerRetrySweep(c *gin.Context) {
	summary, err := h.retry.Sweep(c.Request.Context())
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, summary)
}

func (h *SyncHandler) TriggerDownstreamSweep(c *gin.Context) {
	summary, err := h.statuses.SweepDownstream(c.Request.Context())
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, summary)
}

func (h *SyncHandler) TriggerUpstreamSweep(c *gin.Context) {
	summary, err := h.statuses.SweepUpstream(c.Request.Context())
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, summary)
}

func queryLimit(c *gin.Context, fallback int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(fallback)))
	if err != nil || limit <= 0 || limit > 500 {
		return fallback
	}
	return limit
}
