package model

import "time"

// PendingSync is one order awaiting a successful forward-sync to the
// destination system. At most one active row exists per OrderID; repeated
// failures update the row in place and bump RetryCount.
type PendingSync struct {
	ID      int64  `json:"id" gorm:"primaryKey"`
	OrderID int64  `json:"order_id" gorm:"uniqueIndex"`
	Payload string `json:"payload" gorm:"type:text"`
	// DestinationID / DestinationNumber are set when the destination-side
	// creation succeeded but the link-back to the source failed. A retry for
	// such a row resumes at the link-back step and must not create a second
	// destination order.
	DestinationID     string    `json:"destination_id" gorm:"size:64"`
	DestinationNumber string    `json:"destination_number" gorm:"size:64"`
	RetryCount        int       `json:"retry_count" gorm:"default:0;index"`
	LastAttemptAt     time.Time `json:"last_attempt_at" gorm:"index"`
	ErrorMessage      string    `json:"error_message" gorm:"type:text"`
	CreatedAt         time.Time `json:"created_at"`
}
