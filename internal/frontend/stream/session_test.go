package stream

import (
	"bufio"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tictactoe/internal/protocol"
)

// recorder is a Dispatcher that records every message it receives.
type recorder struct {
	mu   sync.Mutex
	msgs []protocol.Message
	ch   chan protocol.Message
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan protocol.Message, 128)}
}

func (r *recorder) Dispatch(_ *Session, msg protocol.Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	select {
	case r.ch <- msg:
	default:
	}
}

func (r *recorder) all() []protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Message(nil), r.msgs...)
}

func (r *recorder) count(typ protocol.Type) int {
	n := 0
	for _, m := range r.all() {
		if m.Type() == typ {
			n++
		}
	}
	return n
}

func (r *recorder) next(t *testing.T) protocol.Message {
	t.Helper()
	select {
	case m := <-r.ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message dispatched")
		return nil
	}
}

func newPipeSession(t *testing.T, opts SessionOptions, d Dispatcher) (*Session, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })
	return NewSession("p1", server, opts, d, zaptest.NewLogger(t)), client
}

func mustEncode(t require.TestingT, msg protocol.Message) []byte {
	frame, err := protocol.Encode(msg)
	require.NoError(t, err)
	return frame
}

func TestSession_FeedPartialFrames(t *testing.T) {
	rec := newRecorder()
	s, _ := newPipeSession(t, SessionOptions{}, rec)

	frame := mustEncode(t, protocol.JoinGame{GameID: "g1", PlayerName: "Alice"})
	s.Feed(frame[:5])
	assert.Empty(t, rec.all())
	s.Feed(frame[5:20])
	assert.Empty(t, rec.all())
	s.Feed(append(frame[20:], mustEncode(t, protocol.ListGames{})...))

	msgs := rec.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, protocol.JoinGame{GameID: "g1", PlayerName: "Alice"}, msgs[0])
	assert.Equal(t, protocol.ListGames{}, msgs[1])
	assert.Empty(t, s.buf)
}

func TestSession_FeedDropsMalformedAndContinues(t *testing.T) {
	rec := newRecorder()
	s, _ := newPipeSession(t, SessionOptions{}, rec)

	s.Feed([]byte("not json\n{\"type\":\"NOPE\"}\n"))
	s.Feed(mustEncode(t, protocol.QuitGame{}))

	assert.Equal(t, []protocol.Message{protocol.QuitGame{}}, rec.all())
}

func TestSession_StartDispatchesAndDisconnectsOnEOF(t *testing.T) {
	rec := newRecorder()
	s, client := newPipeSession(t, SessionOptions{}, rec)
	s.Start()
	s.Start()

	_, err := client.Write(mustEncode(t, protocol.ListGames{}))
	require.NoError(t, err)
	assert.Equal(t, protocol.ListGames{}, rec.next(t))

	require.NoError(t, client.Close())
	assert.Equal(t, protocol.Disconnect{}, rec.next(t))

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop")
	}
	assert.False(t, s.Active())
	assert.Equal(t, 1, rec.count(protocol.TypeDisconnect))
}

func TestSession_WaitReturnsAfterDisconnectDispatched(t *testing.T) {
	rec := newRecorder()
	s, client := newPipeSession(t, SessionOptions{}, rec)
	s.Start()
	require.NoError(t, client.Close())

	waited := make(chan struct{})
	go func() {
		s.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return")
	}
	assert.Equal(t, 1, rec.count(protocol.TypeDisconnect))
}

func TestSession_SendWritesFrame(t *testing.T) {
	rec := newRecorder()
	s, client := newPipeSession(t, SessionOptions{WriteTimeout: time.Second}, rec)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Send(protocol.Error{Message: "Not your turn"}) }()

	line, err := bufio.NewReader(client).ReadBytes(protocol.Delimiter)
	require.NoError(t, err)
	require.NoError(t, <-errCh)

	msg, err := protocol.Decode(line)
	require.NoError(t, err)
	assert.Equal(t, protocol.Error{Message: "Not your turn"}, msg)
}

func TestSession_SendAfterStop(t *testing.T) {
	rec := newRecorder()
	s, _ := newPipeSession(t, SessionOptions{}, rec)
	s.Stop()
	assert.ErrorIs(t, s.Send(protocol.ListGames{}), ErrSessionClosed)
}

func TestSession_WriteTimeoutClosesConnection(t *testing.T) {
	rec := newRecorder()
	s, _ := newPipeSession(t, SessionOptions{WriteTimeout: 20 * time.Millisecond}, rec)
	s.Start()

	// Nobody reads the client end, so the pipe write stalls until the deadline.
	err := s.Send(protocol.ListGames{})
	require.Error(t, err)

	assert.Equal(t, protocol.Disconnect{}, rec.next(t))
}

func TestSession_StopIsIdempotentUnderConcurrency(t *testing.T) {
	rec := newRecorder()
	s, _ := newPipeSession(t, SessionOptions{}, rec)
	s.Start()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Stop()
		}()
	}
	wg.Wait()

	assert.Equal(t, protocol.Disconnect{}, rec.next(t))
	// Give the receive loop time to observe the closed pipe and call Stop again.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count(protocol.TypeDisconnect))
}

func TestSession_HandshakeTimeout(t *testing.T) {
	rec := newRecorder()
	s, _ := newPipeSession(t, SessionOptions{HandshakeTimeout: 30 * time.Millisecond}, rec)
	s.Start()

	assert.Equal(t, protocol.Disconnect{}, rec.next(t))
	assert.False(t, s.Active())
}

func TestSession_HandshakeDeadlineClearedAfterFirstFrame(t *testing.T) {
	rec := newRecorder()
	s, client := newPipeSession(t, SessionOptions{HandshakeTimeout: 50 * time.Millisecond}, rec)
	s.Start()

	_, err := client.Write(mustEncode(t, protocol.ListGames{}))
	require.NoError(t, err)
	assert.Equal(t, protocol.ListGames{}, rec.next(t))

	time.Sleep(150 * time.Millisecond)
	assert.True(t, s.Active(), "idle session must survive once the handshake completed")
	assert.Equal(t, 0, rec.count(protocol.TypeDisconnect))
}

func TestSession_GameID(t *testing.T) {
	s, _ := newPipeSession(t, SessionOptions{}, newRecorder())
	assert.Empty(t, s.GameID())
	s.SetGameID("g1")
	assert.Equal(t, "g1", s.GameID())
	assert.Equal(t, "p1", s.ID())

	s.SetGameID("g2")
	s.ClearGameID("g1")
	assert.Equal(t, "g2", s.GameID(), "a stale clear keeps the newer room")
	s.ClearGameID("g2")
	assert.Empty(t, s.GameID())
}

// Property: however a stream of frames is chopped into reads, Feed dispatches
// exactly the encoded messages, in order.
func TestPropertyFeed_ReassemblesArbitrarySplits(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		names := rapid.SliceOfN(rapid.StringMatching(`[A-Za-z0-9 \n"{}]{0,12}`), 1, 8).Draw(rt, "names")
		var stream []byte
		var want []protocol.Message
		for i, name := range names {
			msg := protocol.JoinGame{GameID: string(rune('a' + i)), PlayerName: name}
			want = append(want, msg)
			frame, err := protocol.Encode(msg)
			require.NoError(rt, err)
			stream = append(stream, frame...)
		}

		rec := newRecorder()
		server, client := net.Pipe()
		defer client.Close()
		s := NewSession("p", server, SessionOptions{}, rec, zap.NewNop())

		for len(stream) > 0 {
			n := rapid.IntRange(1, len(stream)).Draw(rt, "chunk")
			s.Feed(stream[:n])
			stream = stream[n:]
		}
		assert.Equal(rt, want, rec.all())
	})
}
