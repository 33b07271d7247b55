package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// MaxFrameSize bounds a single encoded message on the wire: the largest
	// body the 2-byte length header can represent. Reports are short
	// free-form text; anything larger is rejected as malformed.
	MaxFrameSize = 1<<16 - 1

	headerSize = 2
)

// AckToken is written by the receiving side after a message has been accepted
// into its queue (or persisted, at the base station). A hop that accepts
// bytes but never sends the token is a failed hop, not a successful one.
const AckToken = "ACK"

// ErrMalformed is returned by Decode for any frame that cannot become a valid
// Message. The offending connection should be closed; nothing is queued.
var ErrMalformed = errors.New("wire: malformed message")

// Encode writes m to w as a 2-byte big-endian length prefix followed by the
// JSON body. Encoding an already-valid in-memory message never fails except
// for I/O errors on w.
func (m Message) Encode(w io.Writer) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("wire: marshal: %w", err)
	}
	if len(body) > MaxFrameSize {
		return fmt.Errorf("wire: frame too large (%d bytes)", len(body))
	}
	var hdr [headerSize]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// Decode reads exactly one framed message from r. It fails with a wrapped
// ErrMalformed when the frame is truncated, the body is not valid JSON, a
// required field is absent, the priority is not one of the three defined
// values, or the id is not a well-formed UUID.
func Decode(r io.Reader) (Message, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Message{}, fmt.Errorf("%w: read header: %v", ErrMalformed, err)
	}
	size := int(binary.BigEndian.Uint16(hdr[:]))
	if size == 0 {
		return Message{}, fmt.Errorf("%w: empty frame", ErrMalformed)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, fmt.Errorf("%w: read body: %v", ErrMalformed, err)
	}
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return m, nil
}

// WriteAck sends the positive acknowledgement token.
func WriteAck(w io.Writer) error {
	_, err := io.WriteString(w, AckToken)
	return err
}

// ReadAck consumes and verifies the acknowledgement token. Any other bytes,
// or a connection closed before the token arrives, is an error.
func ReadAck(r io.Reader) error {
	buf := make([]byte, len(AckToken))
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("wire: no acknowledgement: %w", err)
	}
	if string(buf) != AckToken {
		return fmt.Errorf("wire: unexpected acknowledgement %q", buf)
	}
	return nil
}
