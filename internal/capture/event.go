package capture

import (
	"encoding/json"
	"time"
)

// Kind classifies decoded capture events.
type Kind int

const (
	Message      Kind = iota // a decoded pager message
	DeviceFound              // a sensor/station/bluetooth device sighting
	NetworkFound             // a wifi access point sighting
	Status                   // lifecycle and informational notices
	Error                    // decode faults, stderr output, process death
)

var kindNames = map[Kind]string{
	Message:      "message",
	DeviceFound:  "device_found",
	NetworkFound: "network_found",
	Status:       "status",
	Error:        "error",
}

var kindFromName = map[string]Kind{
	"message":       Message,
	"device_found":  DeviceFound,
	"network_found": NetworkFound,
	"status":        Status,
	"error":         Error,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := kindFromName[s]; ok {
		*k = v
	}
	return nil
}

// Event is one structured record decoded from a capture tool's output,
// or a lifecycle notice about the session itself. Immutable once
// published; payload values are scalars or flat maps only.
type Event struct {
	Kind      Kind           `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"sessionId,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewEvent stamps an event with the current time. The session ID is
// filled in by the owning session at publish time.
func NewEvent(kind Kind, payload map[string]any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}

// StatusEvent is shorthand for an informational notice.
func StatusEvent(text string) Event {
	return NewEvent(Status, map[string]any{"text": text})
}

// ErrorEvent is shorthand for a fault notice.
func ErrorEvent(text string) Event {
	return NewEvent(Error, map[string]any{"text": text})
}
