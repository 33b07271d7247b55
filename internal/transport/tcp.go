package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Darain-Brit-A/SkyLink-Rescue-Network/internal/wire"
)

// TCPDialer implements Dialer over TCP with a bounded connect/write timeout
// covering the whole attempt: dial, send, and the wait for the ack token.
type TCPDialer struct {
	Timeout time.Duration
}

func (d *TCPDialer) Send(ctx context.Context, addr string, msg wire.Message) error {
	nd := net.Dialer{Timeout: d.Timeout}
	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	defer conn.Close()

	if d.Timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(d.Timeout)); err != nil {
			return err
		}
	}
	if err := msg.Encode(conn); err != nil {
		return fmt.Errorf("transport: send to %s: %w", addr, err)
	}
	if err := wire.ReadAck(conn); err != nil {
		return fmt.Errorf("transport: %s: %w", addr, err)
	}
	return nil
}

// Listener accepts hop connections and decodes one message per connection.
// Each connection is handled in its own goroutine; a malformed or rejected
// message affects only its own connection.
type Listener struct {
	ln      net.Listener
	handler Handler
	log     *zap.Logger

	// onMalformed, when non-nil, is called once per connection whose
	// payload failed to decode.
	onMalformed func()

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Listen binds addr and starts accepting. A bind failure is returned to the
// caller; the node treats it as fatal. onMalformed may be nil.
func Listen(addr string, handler Handler, log *zap.Logger, onMalformed func()) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: bind %s: %w", addr, err)
	}
	l := &Listener{ln: ln, handler: handler, log: log, onMalformed: onMalformed}
	l.wg.Add(1)
	go l.acceptLoop()
	return l, nil
}

// Addr returns the bound address (useful with ":0" listeners).
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops accepting new connections and waits for in-flight ones.
func (l *Listener) Close() error {
	var err error
	l.stopOnce.Do(func() {
		err = l.ln.Close()
		l.wg.Wait()
	})
	return err
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				l.log.Warn("accept failed", zap.Error(err))
			}
			return
		}
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handleConn(conn)
		}()
	}
}

// inboundDeadline bounds how long one connection may take to deliver its
// message and receive the ack, so a silent peer cannot pin a goroutine.
const inboundDeadline = 30 * time.Second

func (l *Listener) handleConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(inboundDeadline)) //nolint:errcheck

	msg, err := wire.Decode(conn)
	if err != nil {
		l.log.Warn("malformed message",
			zap.String("remote", conn.RemoteAddr().String()),
			zap.Error(err))
		if l.onMalformed != nil {
			l.onMalformed()
		}
		return // close without ack
	}
	if !l.handler(msg) {
		return
	}
	if err := wire.WriteAck(conn); err != nil {
		l.log.Warn("ack write failed",
			zap.String("remote", conn.RemoteAddr().String()),
			zap.Error(err))
	}
}
