package testutil

import (
	"encoding"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/cory-johannsen/subjugate/internal/protocol"
)

// Client is a binary-protocol test client for integration testing.
type Client struct {
	conn net.Conn
	buf  []byte
	seq  uint32
	t    *testing.T
}

// NewClient dials the given address and returns a test client.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected Client or fails the test.
func NewClient(t *testing.T, addr string) *Client {
	t.Helper()
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}
	t.Cleanup(func() { conn.Close() })

	t.Logf("client connected to %s [%s]", addr, time.Since(start))
	return &Client{conn: conn, t: t}
}

// Send encodes m as a frame of type pt and writes it.
func (c *Client) Send(pt protocol.PacketType, m encoding.BinaryMarshaler) {
	c.t.Helper()
	frame, err := protocol.EncodeMessage(pt, m, c.seq)
	if err != nil {
		c.t.Fatalf("encoding %s: %v", pt, err)
	}
	c.seq++
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.conn.Write(frame); err != nil {
		c.t.Fatalf("sending %s: %v", pt, err)
	}
}

// Next reads the next frame, failing the test after timeout.
func (c *Client) Next(timeout time.Duration) protocol.Frame {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	tmp := make([]byte, 4096)
	for {
		f, n, err := protocol.Decode(c.buf)
		if err == nil {
			c.buf = c.buf[n:]
			return f
		}
		if !errors.Is(err, protocol.ErrIncomplete) {
			c.t.Fatalf("decoding frame: %v", err)
		}
		n, rerr := c.conn.Read(tmp)
		c.buf = append(c.buf, tmp[:n]...)
		if rerr != nil {
			c.t.Fatalf("reading frame: %v", rerr)
		}
	}
}

// Expect reads frames until one of type pt arrives and unmarshals it into m.
func (c *Client) Expect(pt protocol.PacketType, m encoding.BinaryUnmarshaler, timeout time.Duration) {
	c.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		f := c.Next(time.Until(deadline))
		if f.Type != pt {
			continue
		}
		if err := m.UnmarshalBinary(f.Payload); err != nil {
			c.t.Fatalf("unmarshalling %s: %v", pt, err)
		}
		return
	}
	c.t.Fatalf("no %s within %s", pt, timeout)
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.conn.Close()
}
