package station

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/transport"
	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/wire"
)

func newTestStation(t *testing.T) *Station {
	t.Helper()
	s, err := New(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	s.Out = &bytes.Buffer{}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPersistAndRecords(t *testing.T) {
	s := newTestStation(t)

	m1 := wire.New("Asha", "sector 7", "trapped", wire.PriorityHigh)
	m2 := wire.New("Omar", "sector 9", "food needed", wire.PriorityLow)
	require.True(t, s.handle(m1))
	require.True(t, s.handle(m2))

	records, err := s.Records()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRecordSetIsExactlyOncePerID(t *testing.T) {
	s := newTestStation(t)

	m := wire.New("Asha", "sector 7", "trapped", wire.PriorityHigh)
	require.True(t, s.handle(m))
	require.True(t, s.handle(m), "a duplicate is still acked")

	records, err := s.Records()
	require.NoError(t, err)
	require.Len(t, records, 1, "persisted record set is keyed by id")
	assert.Equal(t, m, records[0])
}

func TestRecordsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	s.Out = &bytes.Buffer{}

	m := wire.New("Mina", "shelter 12", "medicine low", wire.PriorityMedium)
	require.True(t, s.handle(m))
	require.NoError(t, s.Close())

	reopened, err := New(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, m.ID, records[0].ID)
}

func TestStats(t *testing.T) {
	s := newTestStation(t)
	s.handle(wire.New("a", "x", "m", wire.PriorityHigh))
	s.handle(wire.New("b", "x", "m", wire.PriorityHigh))
	s.handle(wire.New("c", "x", "m", wire.PriorityLow))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats[wire.PriorityHigh])
	assert.Equal(t, 0, stats[wire.PriorityMedium])
	assert.Equal(t, 1, stats[wire.PriorityLow])
}

func TestAcceptsOverTCPAndAcks(t *testing.T) {
	s := newTestStation(t)
	require.NoError(t, s.Start("127.0.0.1:0"))

	d := &transport.TCPDialer{Timeout: time.Second}
	m := wire.New("Ravi", "north bank", "two injured", wire.PriorityHigh)
	require.NoError(t, d.Send(context.Background(), s.Addr().String(), m),
		"nil error implies the ack token arrived")

	require.Eventually(t, func() bool {
		records, err := s.Records()
		return err == nil && len(records) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
