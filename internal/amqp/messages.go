package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind names what happened to a transaction.
type EventKind string

const (
	EventCreated  EventKind = "transaction.created"
	EventUpdated  EventKind = "transaction.updated"
	EventDeleted  EventKind = "transaction.deleted"
	EventMigrated EventKind = "transaction.migrated"
)

func (k EventKind) IsValid() bool {
	switch k {
	case EventCreated, EventUpdated, EventDeleted, EventMigrated:
		return true
	}
	return false
}

// TransactionEvent is a lightweight notification about a transaction write.
// Consumers fetch the full record from the store by TransactionID.
type TransactionEvent struct {
	EventID       string    `json:"event_id"`
	Kind          EventKind `json:"kind"`
	TransactionID string    `json:"transaction_id"`
	Type          string    `json:"type"`
	PreviousType  string    `json:"previous_type,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionEvent stamps a new event with a random id and the current time.
func NewTransactionEvent(kind EventKind, transactionID, txType string) *TransactionEvent {
	return &TransactionEvent{
		EventID:       uuid.NewString(),
		Kind:          kind,
		TransactionID: transactionID,
		Type:          txType,
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Kind.IsValid() {
		return nil, fmt.Errorf("unknown event kind %q", msg.Kind)
	}
	if msg.TransactionID == "" {
		return nil, fmt.Errorf("event %s has no transaction id", msg.EventID)
	}
	return &msg, nil
}
