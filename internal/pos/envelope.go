package pos

import (
	"encoding/json"
	"time"
)

const (
	EventTypeSaleCommitted = "SaleCommitted"
	EventTypeSaleDeleted   = "SaleDeleted"
)

// Envelope wraps every message published on the sales topics.
type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the EventType constants
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "pos-terminal"
	CorrelationID string          `json:"correlation_id,omitempty"` // sale id
	Payload       json.RawMessage `json:"payload"`
}

type SaleCommittedPayload struct {
	Sale Sale `json:"sale"`
}

type SaleDeletedPayload struct {
	SaleID string `json:"sale_id"`
}
