package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a change in the ledger.
type EventType string

const (
	OrderCreated       EventType = "order.created"
	OrderDeleted       EventType = "order.deleted"
	CustomerDeleted    EventType = "customer.deleted"
	InstallmentSettled EventType = "installment.settled"
)

var knownEventTypes = map[EventType]bool{
	OrderCreated:       true,
	OrderDeleted:       true,
	CustomerDeleted:    true,
	InstallmentSettled: true,
}

// LedgerEvent is a lightweight notification that a ledger entity changed.
// Consumers fetch the current state from storage; the event carries only the ID.
type LedgerEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      EventType `json:"type"`
	EntityID  int64     `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent stamps a new event with a random ID and the current time.
func NewLedgerEvent(t EventType, entityID int64) LedgerEvent {
	return LedgerEvent{
		ID:        uuid.New(),
		Type:      t,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and rejects unknown types.
func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return LedgerEvent{}, err
	}
	if !knownEventTypes[ev.Type] {
		return LedgerEvent{}, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return ev, nil
}
