// Package network turns byte streams from TCP and WebSocket clients into
// protocol frames and carries outbound frames back to them.
package network

import (
	"encoding"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/protocol"
)

var (
	// ErrSessionClosed is returned by Send once a session has been closed.
	ErrSessionClosed = errors.New("network: session closed")
	// ErrSendQueueFull is returned when a slow client's outbound queue overflows.
	// The session is closed when this happens.
	ErrSendQueueFull = errors.New("network: send queue full")
)

// Transport is the byte stream beneath a Session.
type Transport interface {
	io.ReadWriteCloser
	RemoteAddr() net.Addr
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

var sessionIDs atomic.Uint64

// Options tune a Session.
type Options struct {
	// SendQueue is the outbound frame buffer size.
	SendQueue int
	// WriteTimeout bounds each transport write when the transport supports deadlines.
	WriteTimeout time.Duration
	// Now overrides the clock; nil uses time.Now.
	Now func() time.Time
}

// Session is one client connection. It owns a growable receive buffer that
// is reassembled into frames, a monotonically increasing outbound sequence
// counter, and liveness bookkeeping.
//
// Feed and PollFrame are called only from the session's read goroutine.
// Send and Close are safe for concurrent use.
type Session struct {
	id        uint64
	transport Transport
	logger    *zap.Logger
	opts      Options

	recv []byte

	sendMu  sync.Mutex
	nextSeq uint32
	out     chan []byte

	lastInbound atomic.Int64
	inboundSeq  atomic.Uint32

	accountID atomic.Int64
	playerID  atomic.Uint64
	admin     atomic.Bool

	closeOnce sync.Once
	closed    chan struct{}
	closeMu   sync.Mutex
	onClose   []func(*Session)
}

// NewSession wraps transport in a Session and starts its writer goroutine.
//
// Precondition: transport and logger must be non-nil.
// Postcondition: Returns an open Session whose LastActivity is now.
func NewSession(transport Transport, logger *zap.Logger, opts Options) *Session {
	if opts.SendQueue <= 0 {
		opts.SendQueue = 256
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Session{
		id:        sessionIDs.Add(1),
		transport: transport,
		opts:      opts,
		out:       make(chan []byte, opts.SendQueue),
		closed:    make(chan struct{}),
	}
	s.logger = logger.With(zap.Uint64("session_id", s.id), zap.String("remote_addr", s.RemoteAddr()))
	s.Touch(opts.Now())
	go s.writeLoop()
	return s
}

// ID returns the process-unique session identifier.
func (s *Session) ID() uint64 { return s.id }

// RemoteAddr returns the peer address, or "" if unknown.
func (s *Session) RemoteAddr() string {
	if addr := s.transport.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Logger returns the session-scoped logger.
func (s *Session) Logger() *zap.Logger { return s.logger }

// Feed appends inbound bytes to the receive buffer and refreshes liveness.
func (s *Session) Feed(b []byte) {
	s.recv = append(s.recv, b...)
	s.Touch(s.opts.Now())
}

// Buffered returns the number of received bytes not yet consumed as frames.
func (s *Session) Buffered() int { return len(s.recv) }

// PollFrame returns the next complete frame from the receive buffer.
// It returns protocol.ErrIncomplete while fewer than header+payloadLength
// bytes are buffered; any other error means the stream is corrupt and the
// session must be closed.
func (s *Session) PollFrame() (protocol.Frame, error) {
	f, n, err := protocol.Decode(s.recv)
	if err != nil {
		return protocol.Frame{}, err
	}
	rest := copy(s.recv, s.recv[n:])
	s.recv = s.recv[:rest]
	s.inboundSeq.Store(f.Sequence)
	return f, nil
}

// Send marshals m and queues it as a frame of type t.
//
// Postcondition: On success the frame carries the next outbound sequence number.
func (s *Session) Send(t protocol.PacketType, m encoding.BinaryMarshaler) error {
	payload, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", t, err)
	}
	return s.SendRaw(t, payload)
}

// SendRaw queues payload as a frame of type t. A full queue closes the session.
func (s *Session) SendRaw(t protocol.PacketType, payload []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.Closed() {
		return ErrSessionClosed
	}
	frame, err := protocol.Encode(t, payload, s.nextSeq)
	if err != nil {
		return err
	}
	select {
	case s.out <- frame:
		s.nextSeq++
		return nil
	default:
		s.logger.Warn("closing slow session", zap.Stringer("packet", t), zap.Int("queued", len(s.out)))
		go s.Close()
		return ErrSendQueueFull
	}
}

// NextSequence returns the sequence number the next Send will use.
func (s *Session) NextSequence() uint32 {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.nextSeq
}

// LastInboundSequence returns the sequence number of the most recent inbound frame.
func (s *Session) LastInboundSequence() uint32 { return s.inboundSeq.Load() }

// Touch records inbound activity at now.
func (s *Session) Touch(now time.Time) { s.lastInbound.Store(now.UnixNano()) }

// LastActivity returns the time of the most recent inbound traffic.
func (s *Session) LastActivity() time.Time { return time.Unix(0, s.lastInbound.Load()) }

// Idle reports whether no inbound traffic has been seen within window of now.
func (s *Session) Idle(now time.Time, window time.Duration) bool {
	return now.Sub(s.LastActivity()) > window
}

// Bind records the authenticated account on the session.
func (s *Session) Bind(accountID int64, admin bool) {
	s.accountID.Store(accountID)
	s.admin.Store(admin)
}

// AccountID returns the authenticated account, or 0.
func (s *Session) AccountID() int64 { return s.accountID.Load() }

// Admin reports whether the authenticated account holds admin rights.
func (s *Session) Admin() bool { return s.admin.Load() }

// SetPlayer records the world entity this session puppets; 0 clears it.
func (s *Session) SetPlayer(id uint64) { s.playerID.Store(id) }

// PlayerID returns the world entity this session puppets, or 0.
func (s *Session) PlayerID() uint64 { return s.playerID.Load() }

// OnClose registers fn to run once when the session closes. If the session
// is already closed, fn runs immediately.
func (s *Session) OnClose(fn func(*Session)) {
	s.closeMu.Lock()
	if !s.Closed() {
		s.onClose = append(s.onClose, fn)
		s.closeMu.Unlock()
		return
	}
	s.closeMu.Unlock()
	fn(s)
}

// Close shuts the transport and runs OnClose callbacks. It is idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closeMu.Lock()
		close(s.closed)
		callbacks := s.onClose
		s.onClose = nil
		s.closeMu.Unlock()

		if err := s.transport.Close(); err != nil {
			s.logger.Debug("closing transport", zap.Error(err))
		}
		for _, fn := range callbacks {
			fn(s)
		}
		s.logger.Info("session closed")
	})
}

// CloseAfterFlush closes the session once every frame queued before the
// call has been written. It never blocks.
func (s *Session) CloseAfterFlush() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.Closed() {
		return
	}
	select {
	case s.out <- nil:
	default:
		go s.Close()
	}
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.closed }

func (s *Session) writeLoop() {
	for {
		select {
		case frame := <-s.out:
			if frame == nil {
				s.Close()
				return
			}
			if d, ok := s.transport.(writeDeadliner); ok && s.opts.WriteTimeout > 0 {
				_ = d.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			}
			if _, err := s.transport.Write(frame); err != nil {
				s.logger.Debug("write failed", zap.Error(err))
				s.Close()
				return
			}
		case <-s.closed:
			return
		}
	}
}
