package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/protocol"
)

const readChunk = 4096

// Handler receives session lifecycle events and decoded frames.
type Handler interface {
	// Opened is called once per session before any frame is delivered.
	Opened(s *Session)
	// HandleFrame is called on the session's read goroutine for each complete
	// frame, in receipt order. It must not block on world state.
	HandleFrame(s *Session, f protocol.Frame)
}

// Serve reads from the session transport until it fails, ctx is cancelled,
// or a protocol error is found, delivering frames to h. The session is
// closed when Serve returns.
//
// Postcondition: s.Closed() is true.
func Serve(ctx context.Context, s *Session, h Handler) error {
	defer s.Close()

	stop := context.AfterFunc(ctx, s.Close)
	defer stop()

	h.Opened(s)

	buf := make([]byte, readChunk)
	for {
		n, err := s.transport.Read(buf)
		if n > 0 {
			s.Feed(buf[:n])
			if perr := drain(s, h); perr != nil {
				s.logger.Warn("protocol error, closing session", zap.Error(perr))
				return perr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || s.Closed() {
				return nil
			}
			return fmt.Errorf("reading session %d: %w", s.id, err)
		}
	}
}

func drain(s *Session, h Handler) error {
	for {
		f, err := s.PollFrame()
		if errors.Is(err, protocol.ErrIncomplete) {
			return nil
		}
		if err != nil {
			return err
		}
		h.HandleFrame(s, f)
	}
}
