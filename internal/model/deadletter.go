package model

import "time"

// DeadLetterSync is the terminal snapshot of an order that exhausted its
// retry budget. Write-once; reviewed by operators, never mutated.
type DeadLetterSync struct {
	ID                int64     `json:"id" gorm:"primaryKey"`
	OriginalPendingID int64     `json:"original_pending_id" gorm:"index"`
	OrderID           int64     `json:"order_id" gorm:"index"`
	Payload           string    `json:"payload" gorm:"type:text"`
	FinalErrorMessage string    `json:"final_error_message" gorm:"type:text"`
	FailedAt          time.Time `json:"failed_at"`
}
