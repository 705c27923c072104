package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Reasons carried by ViewChangedMessage.
const (
	ReasonIngest    = "ingest"
	ReasonExclude   = "exclude"
	ReasonReinstate = "reinstate"
	ReasonResync    = "resync"
)

// ViewChangedMessage announces that the filtered transaction view changed.
// It carries no transaction data; consumers re-read the store.
type ViewChangedMessage struct {
	ID        uuid.UUID `json:"id"`
	Reason    string    `json:"reason"`
	Rows      int64     `json:"rows"` // rows affected by the change
	Timestamp time.Time `json:"timestamp"`
}

func NewViewChangedMessage(reason string, rows int64) *ViewChangedMessage {
	return &ViewChangedMessage{
		ID:        uuid.New(),
		Reason:    reason,
		Rows:      rows,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ViewChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ViewChangedMessageFromJSON(data []byte) (*ViewChangedMessage, error) {
	var msg ViewChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
