package messages

import "time"

// StatusChanged is published whenever a tracked package makes a real
// status transition, whether it came from a poll or a webhook push.
type StatusChanged struct {
	EventID        string    `json:"event_id"`
	TrackingNumber string    `json:"tracking_number"`
	OldStatus      string    `json:"old_status"`
	NewStatus      string    `json:"new_status"`
	ChangedAt      time.Time `json:"changed_at"`
}

// UpdateFailed is published once per exhausted retry cycle.
type UpdateFailed struct {
	EventID        string    `json:"event_id"`
	TrackingNumber string    `json:"tracking_number"`
	Error          string    `json:"error"`
	FailedAt       time.Time `json:"failed_at"`
}
