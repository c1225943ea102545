package events

import "context"

// Event types
const (
	EventOperationApplied   = "operation_applied"
	EventOfferStatusChanged = "offer_status_changed"
	EventMarketCreated      = "market_created"
	EventNameRegistered     = "name_registered"
)

// StreamContract carries every committed contract mutation; WebSocket clients
// fan out from it instead of polling state.
const StreamContract = "contract_events"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
