package eventbridge

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/birbparty/birb-ads/sdk"
)

// EventMessage is the JSON form of an SDK consumer event
type EventMessage struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	AdType      string    `json:"ad_type,omitempty"`
	Orientation string    `json:"orientation,omitempty"`
	Height      int       `json:"height,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewEventMessage converts an SDK event
func NewEventMessage(ev sdk.Event, now time.Time) *EventMessage {
	msg := &EventMessage{
		ID:          uuid.New().String(),
		Type:        string(ev.Type),
		AdType:      string(ev.AdType),
		Orientation: string(ev.Orientation),
		Height:      ev.Height,
		Timestamp:   now.UTC(),
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	return msg
}

// Marshal serializes the message to JSON
func (m *EventMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalEventMessage deserializes a message from JSON
func UnmarshalEventMessage(data []byte) (*EventMessage, error) {
	var msg EventMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}
