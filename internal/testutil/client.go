// Package testutil provides helpers for integration tests that talk to a
// running server over TCP.
package testutil

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/cory-johannsen/tictactoe/internal/protocol"
)

// DefaultTimeout bounds every read and write made by a Client.
const DefaultTimeout = 2 * time.Second

// Client is a line-protocol test client.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	t      *testing.T
}

// Dial connects to addr and returns a test client. The connection is closed
// when the test ends.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected Client or fails the test.
func Dial(t *testing.T, addr string) *Client {
	t.Helper()
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}
	t.Cleanup(func() {
		conn.Close()
	})

	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		t:      t,
	}
}

// Send encodes msg and writes it as one frame.
func (c *Client) Send(msg protocol.Message) {
	c.t.Helper()
	frame, err := protocol.Encode(msg)
	if err != nil {
		c.t.Fatalf("encoding %s: %v", msg.Type(), err)
	}
	c.SendRaw(frame)
}

// SendRaw writes b unchanged.
func (c *Client) SendRaw(b []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(DefaultTimeout))
	if _, err := c.conn.Write(b); err != nil {
		c.t.Fatalf("sending %q: %v", b, err)
	}
}

// Next reads and decodes the next frame.
//
// Postcondition: Returns the decoded message, or fails the test on timeout or
// a frame that does not decode.
func (c *Client) Next() protocol.Message {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(DefaultTimeout))
	line, err := c.reader.ReadBytes(protocol.Delimiter)
	if err != nil {
		c.t.Fatalf("reading frame: got %q, error: %v", line, err)
	}
	msg, err := protocol.Decode(line)
	if err != nil {
		c.t.Fatalf("decoding frame %q: %v", line, err)
	}
	return msg
}

// WaitClosed discards frames until the server closes the connection.
//
// Postcondition: Returns once the connection is closed, or fails the test if it
// is still open after DefaultTimeout.
func (c *Client) WaitClosed() {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(DefaultTimeout))
	for {
		if _, err := c.reader.ReadBytes(protocol.Delimiter); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				c.t.Fatalf("connection still open after %s", DefaultTimeout)
			}
			return
		}
	}
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.conn.Close()
}

// Expect reads the next frame and requires it to be a T.
func Expect[T protocol.Message](c *Client) T {
	c.t.Helper()
	msg := c.Next()
	v, ok := msg.(T)
	if !ok {
		var zero T
		c.t.Fatalf("expected %s, got %s: %+v", zero.Type(), msg.Type(), msg)
	}
	return v
}
