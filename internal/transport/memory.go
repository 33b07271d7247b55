package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/wire"
)

// MemoryNetwork is an in-process hop network for tests. Endpoints are
// registered under arbitrary string addresses; Send routes to them without
// sockets. Unregistered addresses behave like a refused connection.
type MemoryNetwork struct {
	mu        sync.Mutex
	endpoints map[string]Handler
	attempts  map[string]int
}

// NewMemoryNetwork creates an empty network.
func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{
		endpoints: make(map[string]Handler),
		attempts:  make(map[string]int),
	}
}

// Handle registers handler as the endpoint at addr, replacing any previous
// endpoint there.
func (n *MemoryNetwork) Handle(addr string, handler Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.endpoints[addr] = handler
}

// Unreachable removes the endpoint at addr so that sends to it are refused.
func (n *MemoryNetwork) Unreachable(addr string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.endpoints, addr)
}

// Attempts returns how many Sends have targeted addr, reachable or not.
func (n *MemoryNetwork) Attempts(addr string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.attempts[addr]
}

// Send implements Dialer. The handler's ack decision maps onto the wire
// contract: false means the peer closed without acknowledging.
func (n *MemoryNetwork) Send(ctx context.Context, addr string, msg wire.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	n.attempts[addr]++
	handler, ok := n.endpoints[addr]
	n.mu.Unlock()

	if !ok {
		return fmt.Errorf("transport: dial %s: connection refused", addr)
	}
	if !handler(msg) {
		return fmt.Errorf("transport: %s: no acknowledgement", addr)
	}
	return nil
}
