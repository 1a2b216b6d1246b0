package testutil

import (
	"encoding"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/subjugate/internal/network"
	"github.com/cory-johannsen/subjugate/internal/protocol"
)

// Recorder collects every frame a server-side session writes to its peer.
type Recorder struct {
	mu     sync.Mutex
	frames []protocol.Frame
	t      *testing.T
}

// NewPipeSession returns a session backed by an in-memory pipe whose peer
// end is drained into a Recorder.
//
// Postcondition: The session and pipe are closed when the test ends.
func NewPipeSession(t *testing.T, opts network.Options) (*network.Session, *Recorder) {
	t.Helper()
	server, client := net.Pipe()
	s := network.NewSession(server, zap.NewNop(), opts)
	r := &Recorder{t: t}
	go r.read(client)
	t.Cleanup(func() {
		s.Close()
		client.Close()
	})
	return s, r
}

func (r *Recorder) read(c net.Conn) {
	var buf []byte
	tmp := make([]byte, 4096)
	for {
		n, err := c.Read(tmp)
		buf = append(buf, tmp[:n]...)
		for {
			f, used, derr := protocol.Decode(buf)
			if derr != nil {
				if !errors.Is(derr, protocol.ErrIncomplete) {
					return
				}
				break
			}
			buf = buf[used:]
			r.mu.Lock()
			r.frames = append(r.frames, f)
			r.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// Frames returns every frame received so far.
func (r *Recorder) Frames() []protocol.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Frame(nil), r.frames...)
}

// Of returns the frames of type pt received so far.
func (r *Recorder) Of(pt protocol.PacketType) []protocol.Frame {
	var out []protocol.Frame
	for _, f := range r.Frames() {
		if f.Type == pt {
			out = append(out, f)
		}
	}
	return out
}

// Reset forgets every frame received so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.frames = nil
	r.mu.Unlock()
}

// Wait blocks until at least n frames of type pt arrived, failing the test
// after timeout.
func (r *Recorder) Wait(pt protocol.PacketType, n int, timeout time.Duration) []protocol.Frame {
	r.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		got := r.Of(pt)
		if len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			r.t.Fatalf("want %d %s frames, got %d within %s", n, pt, len(got), timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Expect waits for the first frame of type pt and unmarshals it into m.
func (r *Recorder) Expect(pt protocol.PacketType, m encoding.BinaryUnmarshaler, timeout time.Duration) {
	r.t.Helper()
	f := r.Wait(pt, 1, timeout)[0]
	if err := m.UnmarshalBinary(f.Payload); err != nil {
		r.t.Fatalf("unmarshalling %s: %v", pt, err)
	}
}

// Last waits for a frame of type pt and unmarshals the most recent one into m.
func (r *Recorder) Last(pt protocol.PacketType, m encoding.BinaryUnmarshaler, timeout time.Duration) {
	r.t.Helper()
	got := r.Wait(pt, 1, timeout)
	if err := m.UnmarshalBinary(got[len(got)-1].Payload); err != nil {
		r.t.Fatalf("unmarshalling %s: %v", pt, err)
	}
}

// Never asserts that no frame of type pt arrives within window.
func (r *Recorder) Never(pt protocol.PacketType, window time.Duration) {
	r.t.Helper()
	time.Sleep(window)
	if got := r.Of(pt); len(got) > 0 {
		r.t.Fatalf("unexpected %d %s frames", len(got), pt)
	}
}
