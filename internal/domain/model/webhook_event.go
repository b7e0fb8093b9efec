package model

import "time"

type EventResult string

const (
	EventResultProcessing EventResult = "processing"
	EventResultSuccess    EventResult = "success"
	EventResultError      EventResult = "error"
	EventResultSkipped    EventResult = "skipped"
)

// IsTerminalProcessed reports whether an event with this result must never be reprocessed.
func (r EventResult) IsTerminalProcessed() bool {
	return r == EventResultSuccess || r == EventResultSkipped
}

// WebhookEvent is the ledger entry for one provider event id.
type WebhookEvent struct {
	EventID      string
	EventType    string
	Result       EventResult
	ErrorMessage string
	Attempts     int
	FirstSeenAt  time.Time
	UpdatedAt    time.Time
}

// ProcessedStatus is the answer of the idempotency gate.
type ProcessedStatus struct {
	IsProcessed bool
	Result      EventResult
}
