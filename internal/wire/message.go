// Package wire defines the SkyLink emergency message format.
//
// A message is created exactly once, on the victim's device, and is never
// modified afterward: every relay re-emits the identical field set it
// received. The id is the identity key for deduplication — two messages with
// the same id are the same logical report regardless of content.
package wire

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the wall-clock format carried on the wire. It is set by
// the originating sender and never rewritten by relays.
const TimestampLayout = "2006-01-02 15:04:05"

// Priority orders messages for forwarding. Lower value = more urgent.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Value returns the numeric rank used for queue ordering: HIGH=1, MEDIUM=2,
// LOW=3. Unknown priorities rank 0; they never reach a queue because decoding
// fails closed on them.
func (p Priority) Value() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 0
}

// Valid reports whether p is one of the three defined levels.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// ParsePriority converts a wire string into a Priority, failing closed on
// anything outside the three defined values.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.Valid() {
		return "", fmt.Errorf("wire: unknown priority %q", s)
	}
	return p, nil
}

// Message is the immutable unit exchanged between sender, relays and the
// base station.
type Message struct {
	ID         string   `json:"message_id"`
	SenderName string   `json:"sender_name"`
	Location   string   `json:"location"`
	Text       string   `json:"message_text"`
	Priority   Priority `json:"priority"`
	Timestamp  string   `json:"timestamp"`
}

// New builds an emergency report with a fresh id and the current local time.
// Only the originating sender calls this; relays forward what they received.
func New(senderName, location, text string, p Priority) Message {
	return Message{
		ID:         uuid.NewString(),
		SenderName: senderName,
		Location:   location,
		Text:       text,
		Priority:   p,
		Timestamp:  time.Now().Format(TimestampLayout),
	}
}

// Validate checks the invariants decoding relies on: a well-formed UUID id,
// non-empty required fields, and a recognized priority.
func (m Message) Validate() error {
	if _, err := uuid.Parse(m.ID); err != nil {
		return fmt.Errorf("message_id: %w", err)
	}
	if m.SenderName == "" {
		return errors.New("sender_name is empty")
	}
	if m.Location == "" {
		return errors.New("location is empty")
	}
	if m.Text == "" {
		return errors.New("message_text is empty")
	}
	if !m.Priority.Valid() {
		return fmt.Errorf("unknown priority %q", m.Priority)
	}
	return nil
}
