// Package station implements the base station: the terminal sink of the
// relay chain. It accepts wire messages, appends them to a persistent record
// set keyed by message id, and renders them for rescue coordinators. It never
// forwards anything.
package station

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/transport"
	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/wire"
)

var bucketMessages = []byte("messages")

// Station is the rescue control center endpoint.
type Station struct {
	db  *bolt.DB
	log *zap.Logger

	// Out receives the rendered message tables; defaults to stdout.
	Out io.Writer

	listener *transport.Listener

	mu      sync.Mutex
	counter int
}

// New opens (or creates) the message database under dataDir.
func New(dataDir string, log *zap.Logger) (*Station, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(filepath.Join(dataDir, "messages.db"), 0o600,
		&bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("station: open db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMessages)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Station{db: db, log: log, Out: os.Stdout}, nil
}

// Start binds the listening address and begins accepting relayed messages.
func (s *Station) Start(listen string) error {
	l, err := transport.Listen(listen, s.handle, s.log, nil)
	if err != nil {
		return fmt.Errorf("station: %w", err)
	}
	s.listener = l
	s.log.Info("base station listening", zap.String("addr", l.Addr().String()))
	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (s *Station) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops the listener and closes the database.
func (s *Station) Close() error {
	if s.listener != nil {
		s.listener.Close() //nolint:errcheck
	}
	return s.db.Close()
}

// handle persists one relayed message and acknowledges it. Keyed by id, a
// retransmitted copy that slipped past every relay's filter overwrites the
// identical record, so the record set stays exactly-once per id.
func (s *Station) handle(msg wire.Message) bool {
	if err := s.persist(msg); err != nil {
		s.log.Error("persist failed", zap.String("id", msg.ID), zap.Error(err))
		return false
	}

	s.mu.Lock()
	s.counter++
	num := s.counter
	s.mu.Unlock()

	s.render(msg, num)
	s.log.Info("message recorded",
		zap.String("id", msg.ID),
		zap.String("priority", string(msg.Priority)))
	return true
}

func (s *Station) persist(msg wire.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMessages).Put([]byte(msg.ID), data)
	})
}

// Records returns every persisted message.
func (s *Station) Records() ([]wire.Message, error) {
	var out []wire.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMessages).ForEach(func(_, v []byte) error {
			var m wire.Message
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			out = append(out, m)
			return nil
		})
	})
	return out, err
}

// Stats counts persisted messages per priority.
func (s *Station) Stats() (map[wire.Priority]int, error) {
	msgs, err := s.Records()
	if err != nil {
		return nil, err
	}
	stats := map[wire.Priority]int{}
	for _, m := range msgs {
		stats[m.Priority]++
	}
	return stats, nil
}

// render prints one message as a bordered table on s.Out.
func (s *Station) render(msg wire.Message, num int) {
	w := s.Out
	bar := strings.Repeat("═", 78)
	sep := strings.Repeat("─", 78)

	fmt.Fprintf(w, "\n%s\n", bar)
	fmt.Fprintf(w, "%s\n", center(fmt.Sprintf("MESSAGE #%d", num), 78))
	fmt.Fprintf(w, "%s\n", bar)
	fmt.Fprintf(w, "  %-12s %s\n", "Message ID", msg.ID)
	fmt.Fprintf(w, "  %-12s %s\n", "Sender", msg.SenderName)
	fmt.Fprintf(w, "  %-12s %s\n", "Location", msg.Location)
	fmt.Fprintf(w, "  %-12s %s\n", "Priority", msg.Priority)
	fmt.Fprintf(w, "  %-12s %s\n", "Timestamp", msg.Timestamp)
	fmt.Fprintf(w, "%s\n", sep)
	fmt.Fprintf(w, "  %s\n", msg.Text)
	fmt.Fprintf(w, "%s\n", bar)
}

// PrintStats writes the per-priority summary on s.Out.
func (s *Station) PrintStats() error {
	stats, err := s.Stats()
	if err != nil {
		return err
	}
	total := stats[wire.PriorityHigh] + stats[wire.PriorityMedium] + stats[wire.PriorityLow]
	sep := strings.Repeat("─", 78)
	fmt.Fprintf(s.Out, "\n%s\nSTATISTICS\n%s\n", sep, sep)
	fmt.Fprintf(s.Out, "  Total messages : %d\n", total)
	fmt.Fprintf(s.Out, "  HIGH priority  : %d\n", stats[wire.PriorityHigh])
	fmt.Fprintf(s.Out, "  MEDIUM priority: %d\n", stats[wire.PriorityMedium])
	fmt.Fprintf(s.Out, "  LOW priority   : %d\n", stats[wire.PriorityLow])
	fmt.Fprintf(s.Out, "%s\n", sep)
	return nil
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	pad := (width - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}
