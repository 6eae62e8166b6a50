// Package events carries engine notifications to dashboard clients over SSE.
package events

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Version is the envelope schema version sent with every event.
const Version = 1

// Types emitted besides the lead change kinds.
const (
	TypePing      = "ping"
	TypeSyncError = "sync_failed"
)

// Event is the JSON envelope in each SSE data line.
type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}

// Decode parses an envelope produced by MakeEvent. Envelopes from a newer
// schema version are rejected.
func Decode(raw string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Event{}, fmt.Errorf("event: %w", err)
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("event: missing type")
	}
	if e.Version > Version {
		return Event{}, fmt.Errorf("event: unsupported version %d", e.Version)
	}
	return e, nil
}

// WriteFrame writes one SSE message frame. Multi-line payloads are split
// across data lines.
func WriteFrame(w io.Writer, payload string) error {
	var b strings.Builder
	b.WriteString("event: message\n")
	for _, line := range strings.Split(payload, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
