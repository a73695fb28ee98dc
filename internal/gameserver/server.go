// Package gameserver routes client requests to the game registry and publishes
// the resulting room state to every member of the room.
package gameserver

import (
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tictactoe/internal/frontend/stream"
	"github.com/cory-johannsen/tictactoe/internal/game/board"
	"github.com/cory-johannsen/tictactoe/internal/game/registry"
	"github.com/cory-johannsen/tictactoe/internal/game/room"
	"github.com/cory-johannsen/tictactoe/internal/protocol"
)

// DefaultNumPlayers is used when CREATE_GAME omits num_players.
const DefaultNumPlayers = 2

// Validation messages sent to the requester.
const (
	msgInvalidPlayerCount = "Invalid number of players (2-10)"
	msgGameIDRequired     = "Game ID required"
	msgRowColRequired     = "Row and column required"
	msgUnexpectedMessage  = "Unexpected message type"
)

// Stats extends the registry counts with the number of connected clients.
type Stats struct {
	registry.Stats
	ConnectedClients int
}

// Server owns the session table and drives the registry on behalf of clients.
// It is the stream.ConnHandler and stream.Dispatcher of the process.
type Server struct {
	games       *registry.Manager
	opts        stream.SessionOptions
	logger      *zap.Logger
	newPlayerID func() string

	mu       sync.RWMutex
	sessions map[string]*stream.Session
}

// NewServer creates a Server backed by games.
//
// Precondition: games and logger must be non-nil.
func NewServer(games *registry.Manager, opts stream.SessionOptions, logger *zap.Logger) *Server {
	return &Server{
		games:       games,
		opts:        opts,
		logger:      logger,
		newPlayerID: registry.NewID,
		sessions:    make(map[string]*stream.Session),
	}
}

// ServeConn binds conn to a fresh player id and serves it until the client goes
// away or ctx is cancelled.
//
// Postcondition: The session has stopped, its disconnect has been handled and
// it is no longer registered.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	sess := s.register(conn)
	sess.Start()

	select {
	case <-sess.Done():
	case <-ctx.Done():
		sess.Stop()
	}
	sess.Wait()
}

func (s *Server) register(conn net.Conn) *stream.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newPlayerID()
	for s.sessions[id] != nil {
		id = s.newPlayerID()
	}
	sess := stream.NewSession(id, conn, s.opts, s, s.logger)
	s.sessions[id] = sess
	return sess
}

func (s *Server) unregister(sess *stream.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sess.ID()] == sess {
		delete(s.sessions, sess.ID())
	}
}

func (s *Server) session(playerID string) (*stream.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[playerID]
	return sess, ok
}

// Dispatch handles one client message. It runs on the sender's receive goroutine.
func (s *Server) Dispatch(sess *stream.Session, msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.CreateGame:
		s.handleCreateGame(sess, m)
	case protocol.JoinGame:
		s.handleJoinGame(sess, m)
	case protocol.ListGames:
		s.reply(sess, gameList(s.games.ListAvailable()))
	case protocol.MakeMove:
		s.handleMakeMove(sess, m)
	case protocol.QuitGame:
		if sess.GameID() != "" {
			s.leave(sess)
		}
	case protocol.Disconnect:
		s.handleDisconnect(sess)
	default:
		s.logger.Warn("unexpected message from client",
			zap.String("player_id", sess.ID()),
			zap.String("type", string(msg.Type())),
		)
		s.reply(sess, protocol.Error{Message: msgUnexpectedMessage})
	}
}

func (s *Server) handleCreateGame(sess *stream.Session, m protocol.CreateGame) {
	n := DefaultNumPlayers
	if m.NumPlayers != nil {
		n = *m.NumPlayers
	}
	if n < board.MinPlayers || n > board.MaxPlayers {
		s.reply(sess, protocol.Error{Message: msgInvalidPlayerCount})
		return
	}

	summary, err := s.games.CreateGame(n)
	if err != nil {
		s.replyError(sess, err)
		return
	}
	s.reply(sess, protocol.GameCreated{GameID: summary.GameID, NumPlayers: summary.NumPlayers})
}

func (s *Server) handleJoinGame(sess *stream.Session, m protocol.JoinGame) {
	if m.GameID == "" {
		s.reply(sess, protocol.Error{Message: msgGameIDRequired})
		return
	}
	name := m.PlayerName
	if name == "" {
		name = "Player-" + sess.ID()[:4]
	}

	u, err := s.games.JoinGame(m.GameID, sess.ID(), name)
	if err != nil {
		s.replyError(sess, err)
		return
	}
	u.Wait()

	sess.SetGameID(m.GameID)
	s.reply(sess, protocol.GameJoined{
		GameID:   m.GameID,
		PlayerID: sess.ID(),
		Symbol:   string(u.Player.Symbol),
	})
	recipients := activeMembers(u.Snapshot)
	s.broadcast(recipients, gameState(u.Snapshot))
	s.broadcast(recipients, protocol.PlayerJoined{Player: playerInfo(u.Player)})
	u.Release()

	// The connection may have dropped while the join was in flight, after its
	// disconnect already found no room to leave.
	if !sess.Active() {
		s.leave(sess)
	}
}

func (s *Server) handleMakeMove(sess *stream.Session, m protocol.MakeMove) {
	if m.Row == nil || m.Col == nil {
		s.reply(sess, protocol.Error{Message: msgRowColRequired})
		return
	}
	if sess.GameID() == "" {
		s.replyError(sess, room.ErrNotInGame)
		return
	}

	u, err := s.games.MakeMove(sess.ID(), *m.Row, *m.Col)
	if err != nil {
		s.replyError(sess, err)
		return
	}
	u.Wait()
	defer u.Release()

	recipients := activeMembers(u.Snapshot)
	s.broadcast(recipients, gameState(u.Snapshot))
	if u.Finished {
		s.broadcast(recipients, gameOver(u.Snapshot))
		s.clearGameIDs(u.Snapshot)
	}
}

// leave takes the session's player out of their room and tells the room. The
// registry decides whether the player is in a room; disconnects always ask it.
func (s *Server) leave(sess *stream.Session) {
	u := s.games.LeaveGame(sess.ID())
	if u == nil {
		return
	}
	u.Wait()
	defer u.Release()
	sess.ClearGameID(u.Snapshot.GameID)
	if u.Deleted {
		s.logger.Info("all players left game", zap.String("game_id", u.Snapshot.GameID))
		return
	}

	// The departing player hears about their own departure too.
	recipients := append(activeMembers(u.Snapshot), sess.ID())
	s.broadcast(recipients, protocol.PlayerLeft{PlayerID: sess.ID()})
	s.broadcast(recipients, gameState(u.Snapshot))
	if u.Finished {
		s.broadcast(recipients, gameOver(u.Snapshot))
		s.clearGameIDs(u.Snapshot)
	}
}

func (s *Server) handleDisconnect(sess *stream.Session) {
	s.logger.Info("client disconnecting", zap.String("player_id", sess.ID()))
	s.leave(sess)
	s.unregister(sess)
	sess.Stop()
}

// clearGameIDs drops the room association of every member of a finished room.
func (s *Server) clearGameIDs(snap room.Snapshot) {
	for _, p := range snap.Players {
		if sess, ok := s.session(p.ID); ok {
			sess.ClearGameID(snap.GameID)
		}
	}
}

func activeMembers(snap room.Snapshot) []string {
	ids := make([]string, 0, len(snap.Players))
	for _, p := range snap.Players {
		if p.Active {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (s *Server) reply(sess *stream.Session, msg protocol.Message) {
	if err := sess.Send(msg); err != nil {
		s.logger.Debug("reply not delivered",
			zap.String("player_id", sess.ID()),
			zap.String("type", string(msg.Type())),
			zap.Error(err),
		)
	}
}

func (s *Server) replyError(sess *stream.Session, err error) {
	var ruleErr *room.Error
	if !errors.As(err, &ruleErr) {
		s.logger.Error("request failed",
			zap.String("player_id", sess.ID()),
			zap.Error(err),
		)
	}
	s.reply(sess, protocol.Error{Message: err.Error()})
}

// broadcast encodes msg once and writes it to every listed player that has a
// live session. A failed write is logged and the rest still receive the frame.
func (s *Server) broadcast(playerIDs []string, msg protocol.Message) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		s.logger.Error("encoding broadcast", zap.String("type", string(msg.Type())), zap.Error(err))
		return
	}

	targets := make([]*stream.Session, 0, len(playerIDs))
	s.mu.RLock()
	for _, id := range playerIDs {
		if sess, ok := s.sessions[id]; ok && sess.Active() {
			targets = append(targets, sess)
		}
	}
	s.mu.RUnlock()

	for _, sess := range targets {
		if err := sess.WriteFrame(frame); err != nil {
			s.logger.Warn("broadcast not delivered",
				zap.String("player_id", sess.ID()),
				zap.String("type", string(msg.Type())),
				zap.Error(err),
			)
		}
	}
}

// Stats returns registry counts and the number of connected clients.
func (s *Server) Stats() Stats {
	s.mu.RLock()
	clients := len(s.sessions)
	s.mu.RUnlock()
	return Stats{Stats: s.games.Stats(), ConnectedClients: clients}
}

// Shutdown stops every connected session. Each stop runs the normal disconnect path.
func (s *Server) Shutdown() {
	s.mu.RLock()
	sessions := make([]*stream.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	for _, sess := range sessions {
		sess.Stop()
	}
	s.logger.Info("sessions stopped", zap.Int("count", len(sessions)))
}
