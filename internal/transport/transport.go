// Package transport moves wire messages across one hop.
//
// The protocol is one message per connection: the sending side writes a
// framed message, then waits for the receiver's acknowledgement token before
// closing. The ack means "accepted into the receiving node's queue", not
// "delivered further downstream".
//
// The node and forwarder depend only on the Dialer interface so that tests
// can inject an in-memory network without real sockets.
package transport

import (
	"context"

	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/wire"
)

// Dialer performs one hop transmission: connect, send, await ack.
// A nil error means the peer acknowledged acceptance.
type Dialer interface {
	Send(ctx context.Context, addr string, msg wire.Message) error
}

// Handler is invoked by a Listener for each successfully decoded inbound
// message. Returning true sends the acknowledgement token; returning false
// closes the connection without acking.
type Handler func(msg wire.Message) bool
