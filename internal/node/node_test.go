package node

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/transport"
	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/wire"
)

// sink is a terminal endpoint that acks and records everything it receives,
// standing in for the base station.
type sink struct {
	mu       sync.Mutex
	got      []wire.Message
	listener *transport.Listener
}

func newSink(t *testing.T) *sink {
	t.Helper()
	s := &sink{}
	l, err := transport.Listen("127.0.0.1:0", func(m wire.Message) bool {
		s.mu.Lock()
		s.got = append(s.got, m)
		s.mu.Unlock()
		return true
	}, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	s.listener = l
	return s
}

func (s *sink) addr() string { return s.listener.Addr().String() }

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func (s *sink) messages() []wire.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wire.Message(nil), s.got...)
}

func startNode(t *testing.T, neighbors ...string) *Node {
	t.Helper()
	n := New(Config{
		Listen:      "127.0.0.1:0",
		Neighbors:   neighbors,
		MaxAttempts: 2,
		Backoff:     5 * time.Millisecond,
		Timeout:     time.Second,
		Log:         zaptest.NewLogger(t),
	})
	require.NoError(t, n.Start())
	t.Cleanup(n.Stop)
	return n
}

func TestLifecycleStates(t *testing.T) {
	n := New(Config{Listen: "127.0.0.1:0", Log: zaptest.NewLogger(t)})
	assert.Equal(t, StateStarting, n.State())

	require.NoError(t, n.Start())
	assert.Equal(t, StateReady, n.State())

	n.Stop()
	assert.Equal(t, StateStopped, n.State())

	n.Stop() // idempotent
	assert.Equal(t, StateStopped, n.State())
}

func TestBindFailureIsFatal(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	n := New(Config{Listen: taken.Addr().String(), Log: zaptest.NewLogger(t)})
	err = n.Start()
	require.Error(t, err)
	assert.Equal(t, StateStopped, n.State(), "node must never reach Ready on bind failure")
}

func TestEndToEndChainWithRetransmission(t *testing.T) {
	// Sender → Node1 → Node2 → Node3 → sink (base station). The chain is
	// built back-to-front because each hop needs the next hop's bound address.
	station := newSink(t)
	node3 := startNode(t, station.addr())
	node2 := startNode(t, node3.Addr().String())
	node1 := startNode(t, node2.Addr().String())

	msg := wire.New("Ravi", "collapsed bridge, north bank", "two injured", wire.PriorityHigh)

	d := &transport.TCPDialer{Timeout: time.Second}
	ctx := context.Background()
	require.NoError(t, d.Send(ctx, node1.Addr().String(), msg))
	// Retransmission of the same report into the first node.
	require.NoError(t, d.Send(ctx, node1.Addr().String(), msg))

	require.Eventually(t, func() bool { return station.count() >= 1 },
		3*time.Second, 10*time.Millisecond, "message never reached the station")

	// Give a would-be duplicate time to travel the chain, then check the
	// record set holds exactly one entry for the id.
	time.Sleep(300 * time.Millisecond)
	msgs := station.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)
	assert.Equal(t, msg, msgs[0], "relays must not rewrite any field")
}

func TestFailoverToSecondNeighborAcrossRealSockets(t *testing.T) {
	station := newSink(t)

	// First neighbor is a dead address (bound then closed), second is live.
	dead, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := dead.Addr().String()
	dead.Close()

	n := startNode(t, deadAddr, station.addr())

	d := &transport.TCPDialer{Timeout: time.Second}
	msg := wire.New("Mina", "shelter 12", "medicine running low", wire.PriorityMedium)
	require.NoError(t, d.Send(context.Background(), n.Addr().String(), msg))

	require.Eventually(t, func() bool { return station.count() == 1 },
		3*time.Second, 10*time.Millisecond)
}

func TestMalformedConnectionDoesNotStopListener(t *testing.T) {
	station := newSink(t)
	n := startNode(t, station.addr())

	// Garbage first: no ack expected, connection just closes.
	conn, err := net.Dial("tcp", n.Addr().String())
	require.NoError(t, err)
	_, err = conn.Write([]byte("\x00\x09not-json!"))
	require.NoError(t, err)
	conn.Close()

	// A valid message afterwards must still go through.
	d := &transport.TCPDialer{Timeout: time.Second}
	msg := wire.New("Omar", "east ridge", "all clear", wire.PriorityLow)
	require.NoError(t, d.Send(context.Background(), n.Addr().String(), msg))

	require.Eventually(t, func() bool { return station.count() == 1 },
		3*time.Second, 10*time.Millisecond)
}

func TestDuplicateIsAckedAndAbsorbed(t *testing.T) {
	n := New(Config{
		Neighbors: []string{"203.0.113.1:1"}, // never dialed in this test
		Log:       zaptest.NewLogger(t),
	})
	msg := wire.New("Lena", "pier 3", "stranded", wire.PriorityHigh)

	assert.True(t, n.HandleInbound(msg), "first copy accepted")
	assert.True(t, n.HandleInbound(msg), "duplicate still acked upstream")
	assert.Equal(t, 1, n.QueueLen(), "duplicate must not be enqueued")
}

func TestStopWithUnreachableNeighborReturnsPromptly(t *testing.T) {
	n := New(Config{
		Listen:      "127.0.0.1:0",
		Neighbors:   []string{"127.0.0.1:1"},
		MaxAttempts: 50,
		Backoff:     time.Second,
		Timeout:     100 * time.Millisecond,
		Log:         zaptest.NewLogger(t),
	})
	require.NoError(t, n.Start())
	n.HandleInbound(wire.New("t", "x", "y", wire.PriorityLow))

	done := make(chan struct{})
	go func() {
		n.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not cancel the worker's retry loop")
	}
}

func TestMultipleWorkersDeliverEverythingOnce(t *testing.T) {
	station := newSink(t)
	n := New(Config{
		Listen:    "127.0.0.1:0",
		Neighbors: []string{station.addr()},
		Workers:   4,
		Timeout:   time.Second,
		Log:       zaptest.NewLogger(t),
	})
	require.NoError(t, n.Start())
	t.Cleanup(n.Stop)

	const total = 40
	for i := 0; i < total; i++ {
		n.HandleInbound(wire.New("t", "x", "report", wire.PriorityMedium))
	}

	require.Eventually(t, func() bool { return station.count() == total },
		5*time.Second, 10*time.Millisecond)

	seen := map[string]int{}
	for _, m := range station.messages() {
		seen[m.ID]++
	}
	for id, c := range seen {
		assert.Equalf(t, 1, c, "message %s delivered %d times", id, c)
	}
}
