package network

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Acceptor listens for binary-protocol clients on a TCP port and serves each
// connection as a Session.
type Acceptor struct {
	addr    string
	opts    Options
	handler Handler
	logger  *zap.Logger

	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewAcceptor creates a TCP acceptor for addr.
//
// Precondition: handler and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with Start.
func NewAcceptor(addr string, opts Options, handler Handler, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		addr:    addr,
		opts:    opts,
		handler: handler,
		logger:  logger,
		quit:    make(chan struct{}),
	}
}

// Start listens and accepts connections until Stop is called or ctx ends.
//
// Precondition: The acceptor must not already be running.
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) Start(ctx context.Context) error {
	start := time.Now()

	listener, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.addr, err)
	}

	a.mu.Lock()
	a.listener = listener
	a.running = true
	a.mu.Unlock()

	a.logger.Info("tcp acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-a.quit:
			cancel()
		case <-ctx.Done():
			listener.Close()
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-a.quit:
				return nil
			case <-ctx.Done():
				return nil
			default:
				a.logger.Error("accepting connection", zap.Error(err))
				continue
			}
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		a.wg.Add(1)
		go a.handleConn(ctx, conn)
	}
}

func (a *Acceptor) handleConn(ctx context.Context, raw net.Conn) {
	defer a.wg.Done()
	start := time.Now()

	sess := NewSession(raw, a.logger, a.opts)
	sess.Logger().Info("client connected", zap.String("transport", "tcp"))

	if err := Serve(ctx, sess, a.handler); err != nil {
		sess.Logger().Debug("session ended", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	sess.Logger().Info("session ended cleanly", zap.Duration("duration", time.Since(start)))
}

// Stop closes the listener and waits for every session goroutine to exit.
//
// Postcondition: All connections are closed and goroutines have exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.quit)
	if a.listener != nil {
		a.listener.Close()
	}
	a.mu.Unlock()

	a.wg.Wait()
	a.logger.Info("tcp acceptor stopped")
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the acceptor is currently accepting connections.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
