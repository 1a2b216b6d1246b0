package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsTransport carries the frame byte stream over binary WebSocket messages.
// Each Write becomes one message; Read concatenates message bodies, so a
// frame may span messages or share one with its neighbours.
type wsTransport struct {
	conn   *websocket.Conn
	reader io.Reader
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Read(p []byte) (int, error) {
	for {
		if t.reader == nil {
			kind, r, err := t.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if kind != websocket.BinaryMessage {
				continue
			}
			t.reader = r
		}
		n, err := t.reader.Read(p)
		if errors.Is(err, io.EOF) {
			t.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (t *wsTransport) Write(p []byte) (int, error) {
	if err := t.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *wsTransport) Close() error { return t.conn.Close() }

func (t *wsTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

func (t *wsTransport) SetWriteDeadline(d time.Time) error { return t.conn.SetWriteDeadline(d) }

// WebSocketAcceptor serves browser clients by upgrading HTTP requests on
// Path and speaking the same framed protocol inside binary messages.
type WebSocketAcceptor struct {
	addr     string
	path     string
	opts     Options
	handler  Handler
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewWebSocketAcceptor creates a WebSocket acceptor for addr serving path.
// Cross-origin upgrades are allowed; authentication happens in-protocol.
//
// Precondition: handler and logger must be non-nil.
func NewWebSocketAcceptor(addr, path string, opts Options, handler Handler, logger *zap.Logger) *WebSocketAcceptor {
	return &WebSocketAcceptor{
		addr:    addr,
		path:    path,
		opts:    opts,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readChunk,
			WriteBufferSize: readChunk,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Start serves HTTP until Stop is called or ctx ends.
func (a *WebSocketAcceptor) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.addr, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc(a.path, a.serveUpgrade)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	a.mu.Lock()
	a.server = srv
	a.listener = listener
	a.cancel = cancel
	a.mu.Unlock()

	a.logger.Info("websocket acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", a.path),
	)

	stop := context.AfterFunc(ctx, func() { _ = srv.Close() })
	defer stop()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket: %w", err)
	}
	return nil
}

func (a *WebSocketAcceptor) serveUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Debug("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	a.wg.Add(1)
	defer a.wg.Done()

	start := time.Now()
	sess := NewSession(newWSTransport(conn), a.logger, a.opts)
	sess.Logger().Info("client connected", zap.String("transport", "websocket"))
	if err := Serve(r.Context(), sess, a.handler); err != nil {
		sess.Logger().Debug("session ended", zap.Error(err), zap.Duration("duration", time.Since(start)))
	}
}

// Stop closes the HTTP server and waits for upgraded sessions to end.
// Hijacked WebSocket connections are not tracked by http.Server, so they are
// closed through their request contexts.
func (a *WebSocketAcceptor) Stop() {
	a.mu.Lock()
	srv, cancel := a.server, a.cancel
	a.mu.Unlock()
	if srv == nil {
		return
	}
	cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = srv.Close()
	a.wg.Wait()
	a.logger.Info("websocket acceptor stopped")
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (a *WebSocketAcceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}
