package stream

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tictactoe/internal/protocol"
)

// ErrSessionClosed is returned by writes on a stopped session.
var ErrSessionClosed = errors.New("session closed")

const readBufferSize = 4096

// Dispatcher receives every decoded message of a session, on the session's own
// receive goroutine. After the connection ends it receives exactly one
// protocol.Disconnect.
type Dispatcher interface {
	Dispatch(s *Session, msg protocol.Message)
}

// SessionOptions holds per-connection timeouts.
type SessionOptions struct {
	// HandshakeTimeout bounds the wait for the first complete frame. Zero disables it.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds every frame write. Zero disables it.
	WriteTimeout time.Duration
}

// Session owns one client connection: it frames inbound bytes into messages,
// hands them to a Dispatcher and writes outbound frames.
type Session struct {
	id         string
	raw        net.Conn
	opts       SessionOptions
	dispatcher Dispatcher
	logger     *zap.Logger

	// buf holds bytes of a frame whose delimiter has not arrived yet. Only the
	// receive loop touches it.
	buf       []byte
	handshook bool

	writeMu sync.Mutex

	started atomic.Bool
	stopped atomic.Bool
	done    chan struct{}
	exited  chan struct{}

	gameMu sync.RWMutex
	gameID string
}

// NewSession wraps raw for the player identified by id.
//
// Precondition: raw, dispatcher and logger must be non-nil; id must be non-empty.
// Postcondition: Returns an idle session; call Start to begin reading.
func NewSession(id string, raw net.Conn, opts SessionOptions, dispatcher Dispatcher, logger *zap.Logger) *Session {
	return &Session{
		id:         id,
		raw:        raw,
		opts:       opts,
		dispatcher: dispatcher,
		logger:     logger.With(zap.String("player_id", id)),
		done:       make(chan struct{}),
		exited:     make(chan struct{}),
	}
}

// ID returns the player id bound to this connection.
func (s *Session) ID() string { return s.id }

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() net.Addr { return s.raw.RemoteAddr() }

// Done is closed once the session has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the receive loop has returned. The loop's disconnect has
// been dispatched by then.
//
// Precondition: Start must have been called.
func (s *Session) Wait() { <-s.exited }

// Active reports whether the session has not been stopped.
func (s *Session) Active() bool { return !s.stopped.Load() }

// GameID returns the room this session is associated with, or "". It is set
// after a successful join and cleared when the player leaves or the room
// finishes, so an empty value means the player is in no room and requests that
// need one can be answered without consulting the registry.
func (s *Session) GameID() string {
	s.gameMu.RLock()
	defer s.gameMu.RUnlock()
	return s.gameID
}

// SetGameID records the room this session is associated with.
func (s *Session) SetGameID(gameID string) {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()
	s.gameID = gameID
}

// ClearGameID drops the room association if it is still gameID. A session that
// has already moved on to another room keeps its new association.
func (s *Session) ClearGameID(gameID string) {
	s.gameMu.Lock()
	defer s.gameMu.Unlock()
	if s.gameID == gameID {
		s.gameID = ""
	}
}

// Start launches the receive loop. Calling it again has no effect.
func (s *Session) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	if s.opts.HandshakeTimeout > 0 {
		_ = s.raw.SetReadDeadline(time.Now().Add(s.opts.HandshakeTimeout))
	}
	go s.receiveLoop()
	s.logger.Info("session started", zap.Stringer("remote_addr", s.raw.RemoteAddr()))
}

func (s *Session) receiveLoop() {
	defer close(s.exited)
	defer s.Stop()

	chunk := make([]byte, readBufferSize)
	for {
		n, err := s.raw.Read(chunk)
		if n > 0 {
			s.Feed(chunk[:n])
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.logger.Info("client closed connection")
			case errors.Is(err, net.ErrClosed) || s.stopped.Load():
				s.logger.Debug("connection closed locally")
			default:
				s.logger.Warn("read failed", zap.Error(err))
			}
			return
		}
	}
}

// Feed appends data to the pending buffer and dispatches every complete frame it
// now holds. Bytes after the last delimiter are kept for the next call. A frame
// that fails to decode is logged and dropped.
//
// Precondition: Feed must not be called concurrently; the receive loop is its
// only caller once Start has run.
func (s *Session) Feed(data []byte) {
	s.buf = append(s.buf, data...)

	consumed := 0
	for {
		idx := bytes.IndexByte(s.buf[consumed:], protocol.Delimiter)
		if idx < 0 {
			break
		}
		frame := s.buf[consumed : consumed+idx]
		consumed += idx + 1

		msg, err := protocol.Decode(frame)
		if err != nil {
			s.logger.Warn("dropping malformed frame",
				zap.Int("bytes", len(frame)),
				zap.Error(err),
			)
			continue
		}
		s.completeHandshake()
		s.logger.Debug("received message", zap.String("type", string(msg.Type())))
		s.dispatcher.Dispatch(s, msg)
	}

	if consumed > 0 {
		s.buf = append(s.buf[:0], s.buf[consumed:]...)
	}
}

func (s *Session) completeHandshake() {
	if s.handshook {
		return
	}
	s.handshook = true
	if s.opts.HandshakeTimeout > 0 {
		_ = s.raw.SetReadDeadline(time.Time{})
	}
}

// Send encodes msg and writes it synchronously.
//
// Postcondition: Returns nil once the frame is written, or the failure. A failed
// write closes the connection so the receive loop ends and disconnect cleanup runs.
func (s *Session) Send(msg protocol.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		s.logger.Error("encoding message", zap.String("type", string(msg.Type())), zap.Error(err))
		return err
	}
	return s.WriteFrame(frame)
}

// WriteFrame writes an already encoded frame. See Send.
func (s *Session) WriteFrame(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.stopped.Load() {
		return ErrSessionClosed
	}
	if s.opts.WriteTimeout > 0 {
		_ = s.raw.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	}
	if _, err := s.raw.Write(frame); err != nil {
		s.logger.Warn("write failed", zap.Error(err))
		_ = s.raw.Close()
		return fmt.Errorf("writing to %s: %w", s.id, err)
	}
	return nil
}

// Stop closes the connection and dispatches a synthetic protocol.Disconnect.
// Only the first call has any effect.
func (s *Session) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	close(s.done)
	if err := s.raw.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Debug("closing connection", zap.Error(err))
	}
	s.dispatcher.Dispatch(s, protocol.Disconnect{})
	s.logger.Info("session stopped")
}
