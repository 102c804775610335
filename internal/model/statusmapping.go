package model

import "time"

// StatusMapping pairs a source-system status name with a destination-system
// status name. The table is operator-managed; the engine only reads it.
// DestinationStatusRef optionally pins the destination-side status reference
// (href); when empty the reconciler resolves it from the status catalog.
type StatusMapping struct {
	ID                   int64     `json:"id" gorm:"primaryKey"`
	SourceStatus         string    `json:"source_status" gorm:"size:128;index"`
	DestinationStatus    string    `json:"destination_status" gorm:"size:128;index"`
	DestinationStatusRef string    `json:"destination_status_ref" gorm:"size:512"`
	UpdatedAt            time.Time `json:"updated_at"`
}
