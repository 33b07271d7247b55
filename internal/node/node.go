// Package node composes the SkyLink relay engine.
//
// Design:
//   - One TCP listener accepts inbound connections; each connection is
//     handled in its own goroutine (decode → dedup → enqueue → ack).
//   - N long-lived forwarding workers drain the shared priority queue and
//     carry each message across one hop with bounded retries and failover.
//   - The dedup filter and the priority queue are the only state shared
//     between listener goroutines and workers; both serialize internally.
package node

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/dedup"
	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/forward"
	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/metrics"
	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/queue"
	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/transport"
	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/wire"
)

// State is the node lifecycle phase.
type State int32

const (
	StateStarting State = iota
	StateReady
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting-down"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

const defaultTimeout = 3 * time.Second

// Config configures a relay Node. The neighbor list and budgets are read
// once at construction; there is no mid-life reconfiguration.
type Config struct {
	Listen      string        // TCP listen address; empty disables the listener (tests)
	Neighbors   []string      // ordered next-hop candidates (host:port)
	Delay       time.Duration // simulated transmission delay per message
	MaxAttempts int           // attempt budget per neighbor
	Backoff     time.Duration // pause between attempts on one neighbor
	Timeout     time.Duration // per-attempt connect/write/ack deadline
	Workers     int           // forwarding workers; defaults to 1

	Dialer  transport.Dialer // defaults to a TCPDialer with Timeout
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// Node is a relay: it receives reports, deduplicates them, queues them by
// priority, and forwards each to the first reachable configured neighbor.
type Node struct {
	cfg    Config
	log    *zap.Logger
	met    *metrics.Metrics
	filter *dedup.Filter
	queue  *queue.Queue
	fwd    *forward.Forwarder

	listener *transport.Listener
	state    atomic.Int32
	cancel   context.CancelFunc
	workers  sync.WaitGroup
	stopOnce sync.Once
}

// New creates a Node in the Starting state.
func New(cfg Config) *Node {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &transport.TCPDialer{Timeout: cfg.Timeout}
	}

	n := &Node{
		cfg:    cfg,
		log:    cfg.Log,
		met:    cfg.Metrics,
		filter: dedup.New(0),
		queue:  queue.New(),
	}
	n.fwd = forward.New(forward.Config{
		Neighbors:   cfg.Neighbors,
		Delay:       cfg.Delay,
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.Backoff,
		Dialer:      cfg.Dialer,
		Log:         cfg.Log,
		Metrics:     cfg.Metrics,
	})
	n.state.Store(int32(StateStarting))
	return n
}

// Start binds the listening port and launches the forwarding workers. A bind
// failure is fatal: the node never reaches Ready.
func (n *Node) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel

	if n.cfg.Listen != "" {
		onMalformed := func() {
			if n.met != nil {
				n.met.Malformed.Inc()
			}
		}
		l, err := transport.Listen(n.cfg.Listen, n.HandleInbound, n.log, onMalformed)
		if err != nil {
			cancel()
			n.state.Store(int32(StateStopped))
			return fmt.Errorf("node: %w", err)
		}
		n.listener = l
		n.log.Info("listening",
			zap.String("addr", l.Addr().String()),
			zap.Strings("neighbors", n.cfg.Neighbors))
	}

	for i := 0; i < n.cfg.Workers; i++ {
		n.workers.Add(1)
		go n.forwardLoop(ctx)
	}
	n.state.Store(int32(StateReady))
	return nil
}

// Stop stops accepting new connections, lets in-flight forwarding attempts
// complete, and drops queued-but-undispatched entries. Idempotent.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		n.state.Store(int32(StateShuttingDown))
		if n.listener != nil {
			n.listener.Close() //nolint:errcheck
		}
		n.queue.Close()
		n.filter.Close()
		if n.cancel != nil {
			n.cancel()
		}
		n.workers.Wait()
		n.state.Store(int32(StateStopped))
		n.log.Info("stopped")
	})
}

// State returns the current lifecycle phase.
func (n *Node) State() State {
	return State(n.state.Load())
}

// Addr returns the bound listen address, or nil when no listener is running.
func (n *Node) Addr() net.Addr {
	if n.listener == nil {
		return nil
	}
	return n.listener.Addr()
}

// QueueLen reports the number of messages waiting to be forwarded.
func (n *Node) QueueLen() int {
	return n.queue.Len()
}

// HandleInbound runs a decoded message through the dedup filter and into the
// priority queue. The returned ack means "accepted into this node's queue".
// A duplicate is acked too: the upstream hop did deliver it here, the filter
// merely absorbs the repeat.
func (n *Node) HandleInbound(msg wire.Message) bool {
	if n.met != nil {
		n.met.Received.Inc()
	}
	if !n.filter.Accept(msg.ID) {
		n.log.Info("duplicate message ignored", zap.String("id", msg.ID))
		if n.met != nil {
			n.met.Duplicates.Inc()
		}
		return true
	}

	n.queue.Enqueue(msg)
	if n.met != nil {
		n.met.QueueDepth.Set(float64(n.queue.Len()))
	}
	n.log.Info("message queued",
		zap.String("id", msg.ID),
		zap.String("priority", string(msg.Priority)),
		zap.String("sender", msg.SenderName),
		zap.Int("queue_len", n.queue.Len()))
	return true
}

// forwardLoop is one long-lived worker: dequeue, forward, repeat until the
// queue closes or the node shuts down.
func (n *Node) forwardLoop(ctx context.Context) {
	defer n.workers.Done()
	for {
		msg, ok := n.queue.Dequeue()
		if !ok {
			return
		}
		if n.met != nil {
			n.met.QueueDepth.Set(float64(n.queue.Len()))
		}
		n.fwd.Forward(ctx, msg)
	}
}
