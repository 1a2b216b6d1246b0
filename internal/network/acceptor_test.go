package network_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/subjugate/internal/network"
	"github.com/cory-johannsen/subjugate/internal/protocol"
)

// pongHandler answers every Ping with a Pong and records what it saw.
type pongHandler struct {
	mu     sync.Mutex
	opened int
	frames []protocol.Frame
}

func (h *pongHandler) Opened(*network.Session) {
	h.mu.Lock()
	h.opened++
	h.mu.Unlock()
}

func (h *pongHandler) HandleFrame(s *network.Session, f protocol.Frame) {
	h.mu.Lock()
	h.frames = append(h.frames, f)
	h.mu.Unlock()
	if f.Type == protocol.Ping {
		var hb protocol.Heartbeat
		_ = hb.UnmarshalBinary(f.Payload)
		_ = s.Send(protocol.Pong, hb)
	}
}

func (h *pongHandler) frameCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames)
}

func TestAcceptor_ServesFrames(t *testing.T) {
	h := &pongHandler{}
	acc := network.NewAcceptor("127.0.0.1:0", network.Options{WriteTimeout: time.Second}, h, zaptest.NewLogger(t))

	errCh := make(chan error, 1)
	go func() { errCh <- acc.Start(context.Background()) }()
	require.Eventually(t, func() bool { return acc.IsRunning() && acc.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	conn, err := net.DialTimeout("tcp", acc.Addr(), 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	frame, err := protocol.EncodeMessage(protocol.Ping, protocol.Heartbeat{UnixMillis: 1234}, 0)
	require.NoError(t, err)
	// split the frame across two writes to exercise reassembly
	_, err = conn.Write(frame[:5])
	require.NoError(t, err)
	_, err = conn.Write(frame[5:])
	require.NoError(t, err)

	f := readFrame(t, conn)
	assert.Equal(t, protocol.Pong, f.Type)
	var hb protocol.Heartbeat
	require.NoError(t, hb.UnmarshalBinary(f.Payload))
	assert.Equal(t, int64(1234), hb.UnixMillis)

	acc.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("acceptor did not stop")
	}
	assert.False(t, acc.IsRunning())
}

func TestAcceptor_ClosesOnProtocolError(t *testing.T) {
	h := &pongHandler{}
	acc := network.NewAcceptor("127.0.0.1:0", network.Options{}, h, zaptest.NewLogger(t))
	go func() { _ = acc.Start(context.Background()) }()
	defer acc.Stop()
	require.Eventually(t, func() bool { return acc.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	conn, err := net.DialTimeout("tcp", acc.Addr(), 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	frame, err := protocol.Encode(protocol.ChatMessage, []byte("corrupt me"), 0)
	require.NoError(t, err)
	frame[len(frame)-1]++
	_, err = conn.Write(frame)
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err, "server must close the connection")
	assert.Zero(t, h.frameCount())
}

func TestWebSocketAcceptor_ServesFrames(t *testing.T) {
	h := &pongHandler{}
	acc := network.NewWebSocketAcceptor("127.0.0.1:0", "/ws", network.Options{}, h, zaptest.NewLogger(t))
	go func() { _ = acc.Start(context.Background()) }()
	defer acc.Stop()
	require.Eventually(t, func() bool { return acc.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+acc.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	frame, err := protocol.EncodeMessage(protocol.Ping, protocol.Heartbeat{UnixMillis: 99}, 0)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)

	f, _, err := protocol.Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, protocol.Pong, f.Type)
	assert.Equal(t, 1, h.frameCount())
}
