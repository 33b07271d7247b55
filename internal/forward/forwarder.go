// Package forward implements the per-message retry and failover state
// machine that turns a dequeued report into a confirmed hand-off.
//
// Forwarding order is fixed: all attempts against the current candidate
// before moving on, candidates tried strictly in configured preference order,
// and a passed-over candidate is never revisited for the same message.
// Failure of the preferred next hop falls through to the next-best neighbor
// instead of stalling the message.
package forward

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/metrics"
	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/transport"
	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/wire"
)

// Outcome is the terminal result of forwarding one message. Per-attempt
// failures stay inside Forward; only the final disposition escapes.
type Outcome int

const (
	// Delivered means exactly one neighbor acknowledged the message.
	Delivered Outcome = iota
	// Exhausted means every candidate's retry budget was spent. The message
	// is dropped at this node; there is no re-queue and no escalation.
	Exhausted
	// Canceled means the node shut down between attempts. The in-flight
	// attempt was allowed to finish, the remaining budget was abandoned.
	Canceled
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Exhausted:
		return "exhausted"
	case Canceled:
		return "canceled"
	}
	return "unknown"
}

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
)

// Config configures a Forwarder.
type Config struct {
	// Neighbors is the ordered candidate list of next hops (host:port),
	// ranked by preference. It is never mutated; self-healing means skipping
	// unreachable entries per message, not removing them.
	Neighbors []string

	// Delay models the physical radio-link latency. Applied once per
	// message, before the first attempt.
	Delay time.Duration

	// MaxAttempts is the per-candidate attempt budget. Defaults to 3.
	MaxAttempts int

	// Backoff is the pause between attempts on the same candidate.
	// Defaults to 500ms.
	Backoff time.Duration

	Dialer  transport.Dialer
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// Forwarder carries messages across one hop with bounded retries.
type Forwarder struct {
	cfg Config
}

// New creates a Forwarder, filling in defaulted budgets.
func New(cfg Config) *Forwarder {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &Forwarder{cfg: cfg}
}

// Forward attempts to hand msg to exactly one reachable neighbor. Every retry
// loop has a fixed finite bound; nothing is retried indefinitely.
func (f *Forwarder) Forward(ctx context.Context, msg wire.Message) Outcome {
	log := f.cfg.Log.With(
		zap.String("id", msg.ID),
		zap.String("priority", string(msg.Priority)),
	)

	if f.cfg.Delay > 0 {
		if !sleep(ctx, f.cfg.Delay) {
			return Canceled
		}
	}

	for _, addr := range f.cfg.Neighbors {
		for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
			if ctx.Err() != nil {
				return Canceled
			}
			if f.cfg.Metrics != nil {
				f.cfg.Metrics.Attempts.Inc()
			}
			err := f.cfg.Dialer.Send(ctx, addr, msg)
			if err == nil {
				log.Info("forwarded",
					zap.String("neighbor", addr),
					zap.Int("attempt", attempt))
				if f.cfg.Metrics != nil {
					f.cfg.Metrics.Forwarded.Inc()
				}
				return Delivered
			}
			log.Warn("hop unreachable",
				zap.String("neighbor", addr),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", f.cfg.MaxAttempts),
				zap.Error(err))
			if attempt < f.cfg.MaxAttempts {
				if !sleep(ctx, f.cfg.Backoff) {
					return Canceled
				}
			}
		}
		log.Warn("neighbor exhausted, trying next", zap.String("neighbor", addr))
	}

	log.Error("forwarding exhausted, message dropped",
		zap.Int("neighbors", len(f.cfg.Neighbors)))
	if f.cfg.Metrics != nil {
		f.cfg.Metrics.Dropped.Inc()
	}
	return Exhausted
}

// sleep waits for d or until ctx is canceled. Returns false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
