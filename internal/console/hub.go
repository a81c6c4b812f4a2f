// Package console multiplexes a VM's libvirt serial console PTY across
// zero or more WebSocket clients, per SPEC_FULL.md §4.8. The WebSocket
// transport (nhooyr.io/websocket) is grounded on
// ravan-provider-orchard/internal/ssh/tunnel.go's usage of the same
// library, there as a client dialing a port-forward tunnel; here as the
// server side accepting browser connections onto the same byte stream the
// Driver hands back from OpenSerialConsole.
package console

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/coreforge/vmcp/api/v1alpha1"
	"github.com/coreforge/vmcp/internal/driver"
)

// IdleTimeout is how long a session with zero attached clients stays open
// before its underlying console stream is closed (§4.8: "Idle sessions (no
// clients for 30 s) close the underlying socket").
const IdleTimeout = 30 * time.Second

// ClientBufferLimit bounds how many unsent bytes a single slow client may
// accumulate before it is disconnected with slow_consumer (§4.8).
const ClientBufferLimit = 64 * 1024

// StreamOpener opens (or reuses) the duplex byte stream for a VM's serial
// console, delegating to the Driver the way every other console operation
// does.
type StreamOpener func(ctx context.Context, host *v1alpha1.Host, vmName string) (driver.ConsoleStream, error)

// Hub owns every live console Session, keyed by VM name. One Hub instance
// serves the whole control plane.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*session

	open   StreamOpener
	Logger *zap.SugaredLogger
}

// NewHub builds a Hub that opens streams through open.
func NewHub(open StreamOpener) *Hub {
	return &Hub{
		sessions: make(map[string]*session),
		open:     open,
		Logger:   zap.S().Named("console"),
	}
}

// session is one VM's console: one underlying stream, fanned out to
// however many clients are currently attached.
type session struct {
	vmName string
	stream driver.ConsoleStream

	mu        sync.Mutex
	clients   map[*client]struct{}
	closed    bool
	idleTimer *time.Timer

	hub *Hub
}

// client is one attached WebSocket connection. outbound is fed by the
// session's read-from-stream loop and drained by writeLoop; when it fills
// past ClientBufferLimit the client is disconnected rather than blocking
// the fan-out to every other client.
type client struct {
	ws        *websocket.Conn
	outbound  chan []byte
	closeOnce sync.Once
	done      chan struct{}

	bufMu         sync.Mutex
	bufferedBytes int
}

// Attach associates ws with vmName's console session, opening the
// underlying stream via open if this is the first client. Attach blocks
// until the client disconnects (input EOF, slow_consumer, or ctx
// cancellation), fanning session output to ws and forwarding ws input to
// the stream meanwhile.
func (h *Hub) Attach(ctx context.Context, host *v1alpha1.Host, vmName string, ws *websocket.Conn) error {
	sess, err := h.getOrOpenSession(ctx, host, vmName)
	if err != nil {
		return err
	}

	cl := &client{
		ws:       ws,
		outbound: make(chan []byte, 256),
		done:     make(chan struct{}),
	}
	sess.addClient(cl)
	defer sess.removeClient(cl)

	go cl.writeLoop(ctx, h.Logger)

	return cl.readLoop(ctx, sess.stream, h.Logger)
}

func (h *Hub) getOrOpenSession(ctx context.Context, host *v1alpha1.Host, vmName string) (*session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sess, ok := h.sessions[vmName]; ok && !sess.isClosed() {
		sess.stopIdleTimer()
		return sess, nil
	}

	stream, err := h.open(ctx, host, vmName)
	if err != nil {
		return nil, err
	}

	sess := &session{
		vmName:  vmName,
		stream:  stream,
		clients: make(map[*client]struct{}),
		hub:     h,
	}
	h.sessions[vmName] = sess
	go sess.readFromStream(h.Logger)
	return sess, nil
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *session) addClient(cl *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[cl] = struct{}{}
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

func (s *session) removeClient(cl *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, cl)
	if len(s.clients) == 0 {
		s.idleTimer = time.AfterFunc(IdleTimeout, s.closeIfStillIdle)
	}
}

func (s *session) closeIfStillIdle() {
	s.mu.Lock()
	if len(s.clients) != 0 || s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.stream.Close()
	s.hub.mu.Lock()
	if s.hub.sessions[s.vmName] == s {
		delete(s.hub.sessions, s.vmName)
	}
	s.hub.mu.Unlock()
}

func (s *session) stopIdleTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

// readFromStream fans every byte read off the console PTY out to every
// attached client, last-writer-wins with no locking on the stream side
// (§4.8: "this matches physical TTY semantics").
func (s *session) readFromStream(logger *zap.SugaredLogger) {
	buf := make([]byte, 4096)
	for {
		n, err := s.stream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.broadcast(chunk)
		}
		if err != nil {
			if err != io.EOF {
				logger.Warnw("console stream read failed", "vm", s.vmName, "error", err)
			}
			s.disconnectAll()
			return
		}
	}
}

func (s *session) broadcast(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cl := range s.clients {
		cl.enqueue(chunk)
	}
}

func (s *session) disconnectAll() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for cl := range s.clients {
		clients = append(clients, cl)
	}
	s.mu.Unlock()
	for _, cl := range clients {
		cl.disconnect()
	}
}

// enqueue buffers chunk for delivery to the client's writeLoop. A client
// that accumulates more than ClientBufferLimit unsent bytes is a slow
// consumer and is disconnected rather than backpressuring every other
// client on the same session.
func (cl *client) enqueue(chunk []byte) {
	cl.bufMu.Lock()
	over := cl.bufferedBytes+len(chunk) > ClientBufferLimit
	if !over {
		cl.bufferedBytes += len(chunk)
	}
	cl.bufMu.Unlock()

	if over {
		cl.disconnectSlow()
		return
	}
	select {
	case cl.outbound <- chunk:
	default:
		cl.bufMu.Lock()
		cl.bufferedBytes -= len(chunk)
		cl.bufMu.Unlock()
		cl.disconnectSlow()
	}
}

func (cl *client) disconnectSlow() {
	cl.closeOnce.Do(func() {
		_ = cl.ws.Write(context.Background(), websocket.MessageText, []byte("slow_consumer"))
		_ = cl.ws.Close(websocket.StatusPolicyViolation, "slow_consumer")
		close(cl.done)
	})
}

func (cl *client) disconnect() {
	cl.closeOnce.Do(func() {
		_ = cl.ws.Write(context.Background(), websocket.MessageText, []byte("disconnected"))
		_ = cl.ws.Close(websocket.StatusNormalClosure, "disconnected")
		close(cl.done)
	})
}

// writeLoop drains outbound onto the WebSocket until the client
// disconnects.
func (cl *client) writeLoop(ctx context.Context, logger *zap.SugaredLogger) {
	for {
		select {
		case <-cl.done:
			return
		case <-ctx.Done():
			cl.disconnect()
			return
		case chunk := <-cl.outbound:
			cl.bufMu.Lock()
			cl.bufferedBytes -= len(chunk)
			cl.bufMu.Unlock()
			if err := cl.ws.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				logger.Debugw("console client write failed", "error", err)
				cl.disconnect()
				return
			}
		}
	}
}

// readLoop forwards every message the client sends to the console stream
// (last-writer-wins across clients, matching physical TTY input
// semantics) until the client disconnects or ctx is canceled.
func (cl *client) readLoop(ctx context.Context, stream driver.ConsoleStream, logger *zap.SugaredLogger) error {
	for {
		_, data, err := cl.ws.Read(ctx)
		if err != nil {
			cl.disconnect()
			return err
		}
		if _, err := stream.Write(data); err != nil {
			cl.disconnect()
			return err
		}
	}
}
