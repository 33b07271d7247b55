// Package sender implements the victim-device side: composing an emergency
// report and performing the one externally-initiated send into the first
// relay node. Delivery beyond that node is best-effort; the sender has no
// end-to-end confirmation channel.
package sender

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/transport"
	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/wire"
)

// Client transmits reports into the mesh.
type Client struct {
	dialer transport.Dialer
}

// New creates a Client with the given per-send timeout.
func New(timeout time.Duration) *Client {
	return &Client{dialer: &transport.TCPDialer{Timeout: timeout}}
}

// NewWithDialer creates a Client over an injected dialer (tests).
func NewWithDialer(d transport.Dialer) *Client {
	return &Client{dialer: d}
}

// Send transmits msg to the first relay node and waits for its
// acknowledgement. A nil error means the node queued the report, not that it
// reached the base station.
func (c *Client) Send(ctx context.Context, firstNode string, msg wire.Message) error {
	if err := c.dialer.Send(ctx, firstNode, msg); err != nil {
		return fmt.Errorf("sender: %w", err)
	}
	return nil
}

// Prompt interactively collects the report fields from r, echoing prompts to
// w, and returns a freshly created message. Empty required fields are
// re-asked; the priority choice maps 1/2/3 onto HIGH/MEDIUM/LOW.
func Prompt(r io.Reader, w io.Writer) (wire.Message, error) {
	scanner := bufio.NewScanner(r)

	ask := func(label string) (string, error) {
		for {
			fmt.Fprintf(w, "%s: ", label)
			if !scanner.Scan() {
				return "", errors.New("sender: input closed")
			}
			v := strings.TrimSpace(scanner.Text())
			if v != "" {
				return v, nil
			}
			fmt.Fprintf(w, "%s cannot be empty.\n", label)
		}
	}

	name, err := ask("Your Name")
	if err != nil {
		return wire.Message{}, err
	}
	location, err := ask("Your Location")
	if err != nil {
		return wire.Message{}, err
	}
	text, err := ask("Emergency Message")
	if err != nil {
		return wire.Message{}, err
	}

	fmt.Fprintln(w, "\nSelect Priority Level:")
	fmt.Fprintln(w, "  1. HIGH   - Life-threatening emergency")
	fmt.Fprintln(w, "  2. MEDIUM - Urgent but not critical")
	fmt.Fprintln(w, "  3. LOW    - Information or non-urgent")
	var priority wire.Priority
	for priority == "" {
		choice, err := ask("Enter choice (1/2/3)")
		if err != nil {
			return wire.Message{}, err
		}
		switch choice {
		case "1":
			priority = wire.PriorityHigh
		case "2":
			priority = wire.PriorityMedium
		case "3":
			priority = wire.PriorityLow
		default:
			fmt.Fprintln(w, "Invalid choice. Please enter 1, 2, or 3.")
		}
	}

	return wire.New(name, location, text, priority), nil
}
