package network_test

import (
	"bytes"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/subjugate/internal/network"
	"github.com/cory-johannsen/subjugate/internal/protocol"
)

func newPipeSession(t *testing.T, opts network.Options) (*network.Session, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	s := network.NewSession(server, zap.NewNop(), opts)
	t.Cleanup(func() {
		s.Close()
		client.Close()
	})
	return s, client
}

func readFrame(t *testing.T, c net.Conn) protocol.Frame {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	hdr := make([]byte, protocol.HeaderSize)
	_, err := io.ReadFull(c, hdr)
	require.NoError(t, err)
	length := int(hdr[2])<<24 | int(hdr[3])<<16 | int(hdr[4])<<8 | int(hdr[5])
	body := make([]byte, length)
	_, err = io.ReadFull(c, body)
	require.NoError(t, err)
	f, _, err := protocol.Decode(append(hdr, body...))
	require.NoError(t, err)
	return f
}

func TestSession_PollFrameWaitsForFullFrame(t *testing.T) {
	s, _ := newPipeSession(t, network.Options{})
	frame, err := protocol.EncodeMessage(protocol.MoveRequest, protocol.Move{X: 1, Y: 2, Z: 3}, 5)
	require.NoError(t, err)

	s.Feed(frame[:protocol.HeaderSize+3])
	_, err = s.PollFrame()
	assert.ErrorIs(t, err, protocol.ErrIncomplete)
	assert.Equal(t, protocol.HeaderSize+3, s.Buffered())

	s.Feed(frame[protocol.HeaderSize+3:])
	f, err := s.PollFrame()
	require.NoError(t, err)
	assert.Equal(t, protocol.MoveRequest, f.Type)
	assert.Equal(t, uint32(5), s.LastInboundSequence())
	assert.Zero(t, s.Buffered())
}

func TestSession_PollFrameReportsCorruption(t *testing.T) {
	s, _ := newPipeSession(t, network.Options{})
	frame, err := protocol.Encode(protocol.ChatMessage, []byte("hello"), 1)
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0x01

	s.Feed(frame)
	_, err = s.PollFrame()
	assert.ErrorIs(t, err, protocol.ErrChecksumMismatch)
}

func TestProperty_ReassemblyIsChunkingIndependent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, 8).Draw(rt, "count")
		var stream []byte
		var want [][]byte
		for i := 0; i < count; i++ {
			p := rapid.SliceOfN(rapid.Byte(), 0, 700).Draw(rt, "payload")
			f, err := protocol.Encode(protocol.ChatMessage, p, uint32(i))
			if err != nil {
				rt.Fatal(err)
			}
			stream = append(stream, f...)
			want = append(want, p)
		}

		server, client := net.Pipe()
		defer client.Close()
		s := network.NewSession(server, zap.NewNop(), network.Options{})
		defer s.Close()

		var got [][]byte
		for len(stream) > 0 {
			n := rapid.IntRange(1, len(stream)).Draw(rt, "chunk")
			s.Feed(stream[:n])
			stream = stream[n:]
			for {
				f, err := s.PollFrame()
				if err != nil {
					if protocol.Fatal(err) {
						rt.Fatalf("unexpected error: %v", err)
					}
					break
				}
				got = append(got, f.Payload)
			}
		}
		if len(got) != len(want) {
			rt.Fatalf("got %d frames, want %d", len(got), len(want))
		}
		for i := range want {
			if !bytes.Equal(got[i], want[i]) {
				rt.Fatalf("frame %d payload mismatch", i)
			}
		}
	})
}

func TestSession_SendAssignsIncreasingSequence(t *testing.T) {
	s, client := newPipeSession(t, network.Options{SendQueue: 8})

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Send(protocol.Pong, protocol.Heartbeat{UnixMillis: int64(i)}))
	}
	for i := 0; i < 3; i++ {
		f := readFrame(t, client)
		assert.Equal(t, protocol.Pong, f.Type)
		assert.Equal(t, uint32(i), f.Sequence)
	}
	assert.Equal(t, uint32(3), s.NextSequence())
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	s, _ := newPipeSession(t, network.Options{})
	var calls atomic.Int32
	s.OnClose(func(*network.Session) { calls.Add(1) })

	s.Close()
	s.Close()
	assert.True(t, s.Closed())
	assert.Equal(t, int32(1), calls.Load())

	late := false
	s.OnClose(func(*network.Session) { late = true })
	assert.True(t, late, "callbacks registered after close run immediately")

	assert.ErrorIs(t, s.Send(protocol.Ping, protocol.Heartbeat{}), network.ErrSessionClosed)
}

func TestSession_CloseAfterFlushDeliversQueuedFrames(t *testing.T) {
	s, client := newPipeSession(t, network.Options{})
	require.NoError(t, s.Send(protocol.ErrorMessage, protocol.ErrorNotice{Code: "invalid_token"}))
	s.CloseAfterFlush()

	f := readFrame(t, client)
	assert.Equal(t, protocol.ErrorMessage, f.Type)
	assert.Eventually(t, s.Closed, time.Second, 5*time.Millisecond)
}

func TestSession_IdleUsesLastInbound(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	s, _ := newPipeSession(t, network.Options{Now: clock})

	assert.False(t, s.Idle(now.Add(119*time.Second), 120*time.Second))
	assert.True(t, s.Idle(now.Add(121*time.Second), 120*time.Second))

	now = now.Add(100 * time.Second)
	s.Feed([]byte{0})
	assert.False(t, s.Idle(now.Add(119*time.Second), 120*time.Second))
}

func TestSession_SlowConsumerIsClosed(t *testing.T) {
	s, _ := newPipeSession(t, network.Options{SendQueue: 1})

	var err error
	for i := 0; i < 10 && err == nil; i++ {
		err = s.Send(protocol.Pong, protocol.Heartbeat{})
	}
	assert.ErrorIs(t, err, network.ErrSendQueueFull)
	assert.Eventually(t, s.Closed, time.Second, 5*time.Millisecond)
}

func TestSession_Bindings(t *testing.T) {
	s, _ := newPipeSession(t, network.Options{})
	s.Bind(42, true)
	s.SetPlayer(7)
	assert.Equal(t, int64(42), s.AccountID())
	assert.True(t, s.Admin())
	assert.Equal(t, uint64(7), s.PlayerID())
	assert.NotEmpty(t, s.RemoteAddr())
}
