package resp

import "time"

// PendingItem is the operator view of one row awaiting retry.
type PendingItem struct {
	ID                int64     `json:"id"`
	OrderID           int64     `json:"order_id"`
	RetryCount        int       `json:"retry_count"`
	LastAttemptAt     time.Time `json:"last_attempt_at"`
	ErrorMessage      string    `json:"error_message"`
	DestinationID     string    `json:"destination_id,omitempty"`
	DestinationNumber string    `json:"destination_number,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// DeadLetterItem is the operator view of one terminally failed order.
type DeadLetterItem struct {
	ID                int64     `json:"id"`
	OriginalPendingID int64     `json:"original_pending_id"`
	OrderID           int64     `json:"order_id"`
	Payload           string    `json:"payload"`
	FinalErrorMessage string    `json:"final_error_message"`
	FailedAt          time.Time `json:"failed_at"`
}
