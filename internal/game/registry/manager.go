// Package registry tracks every game room and which room each player is in.
package registry

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tictactoe/internal/game/room"
)

// IDLength is the length of generated game ids.
const IDLength = 8

// NewID returns a short random token cut from a UUID.
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:IDLength]
}

type entry struct {
	game *room.Game

	// issued is the next publication ticket. It is only touched under the
	// registry lock.
	issued uint64

	// published is the ticket whose turn it is to publish.
	pubMu     sync.Mutex
	pubCond   *sync.Cond
	published uint64
}

func newEntry(g *room.Game) *entry {
	e := &entry{game: g}
	e.pubCond = sync.NewCond(&e.pubMu)
	return e
}

func (e *entry) await(ticket uint64) {
	e.pubMu.Lock()
	for e.published != ticket {
		e.pubCond.Wait()
	}
	e.pubMu.Unlock()
}

func (e *entry) advance(ticket uint64) {
	e.pubMu.Lock()
	e.published = ticket + 1
	e.pubMu.Unlock()
	e.pubCond.Broadcast()
}

// Update is the result of a mutating registry call. It carries the room's next
// publication ticket: the caller calls Wait, publishes the update and calls
// Release. Wait returns only after every earlier update of the same room has
// been released, so each room's updates go out in mutation order. Waiting never
// holds the registry lock, so other rooms are unaffected.
type Update struct {
	// Snapshot is the room state right after the mutation.
	Snapshot room.Snapshot
	// Player is the roster entry that joined, moved or left.
	Player room.PlayerView
	// Finished is true when this call moved the game to FINISHED.
	Finished bool
	// Deleted is true when the room was removed because no active player
	// remains; there is nobody left to publish to.
	Deleted bool

	entry       *entry
	ticket      uint64
	waitOnce    sync.Once
	releaseOnce sync.Once
}

// Wait blocks until it is this update's turn to be published. Calling it more
// than once is safe.
func (u *Update) Wait() {
	if u == nil || u.entry == nil {
		return
	}
	u.waitOnce.Do(func() { u.entry.await(u.ticket) })
}

// Release ends this update's publication and lets the room's next update
// proceed. It waits for its own turn first if Wait was not called. Calling it
// more than once is safe.
func (u *Update) Release() {
	if u == nil || u.entry == nil {
		return
	}
	u.releaseOnce.Do(func() {
		u.Wait()
		u.entry.advance(u.ticket)
	})
}

// Stats counts registry contents.
type Stats struct {
	TotalGames   int
	WaitingGames int
	ActiveGames  int
	// CompletedGames counts games that finished since the registry was created.
	CompletedGames int
	// TotalPlayers counts players mapped to a room.
	TotalPlayers int
}

// Manager is the registry of rooms. A player is in at most one room at a time.
// All methods are safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	games      map[string]*entry
	playerGame map[string]string // player id → game id
	completed  int
	newID      func() string
	logger     *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithIDGenerator replaces the game id generator.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

// NewManager creates an empty registry.
//
// Precondition: logger must be non-nil.
func NewManager(logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		games:      make(map[string]*entry),
		playerGame: make(map[string]string),
		newID:      NewID,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// publish issues e's next publication ticket and builds the update. The
// registry lock must be held.
func (m *Manager) publish(e *entry, u *Update) *Update {
	u.Snapshot = e.game.Snapshot()
	u.entry = e
	u.ticket = e.issued
	e.issued++
	return u
}

// CreateGame registers a new WAITING room.
//
// Precondition: numPlayers is in range; callers validate it before calling.
// Postcondition: Returns the new room's summary, or the construction error.
func (m *Manager) CreateGame(numPlayers int) (room.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.newID()
	for attempt := 0; m.games[id] != nil; attempt++ {
		if attempt > 16 {
			id = NewID()
		} else {
			id = m.newID()
		}
	}
	g, err := room.New(id, numPlayers)
	if err != nil {
		return room.Summary{}, err
	}
	m.games[id] = newEntry(g)

	m.logger.Info("game created",
		zap.String("game_id", id),
		zap.Int("num_players", numPlayers),
	)
	return g.Summary(), nil
}

// JoinGame adds the player to gameID's roster. A stale mapping to a missing or
// finished room is dropped first.
//
// Postcondition: On success the player maps to gameID and the returned Update
// carries the room's next publication ticket. On error nothing changed.
func (m *Manager) JoinGame(gameID, playerID, name string) (*Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.games[gameID]
	if !ok {
		return nil, room.ErrGameNotFound
	}
	if e.game.Status() != room.StatusWaiting {
		return nil, room.ErrGameAlreadyStarted
	}
	if oldID, mapped := m.playerGame[playerID]; mapped {
		old, exists := m.games[oldID]
		if exists && old.game.Status() != room.StatusFinished {
			return nil, room.ErrPlayerAlreadyInGame
		}
		delete(m.playerGame, playerID)
		m.logger.Info("released stale player mapping",
			zap.String("player_id", playerID),
			zap.String("game_id", oldID),
		)
	}

	p, err := e.game.AddPlayer(playerID, name)
	if err != nil {
		return nil, err
	}
	m.playerGame[playerID] = gameID

	m.logger.Info("player joined game",
		zap.String("player_id", playerID),
		zap.String("game_id", gameID),
		zap.String("symbol", string(p.Symbol)),
		zap.String("status", string(e.game.Status())),
	)
	return m.publish(e, &Update{Player: p}), nil
}

// LeaveGame takes the player out of their room. A room left with no active
// players is deleted; a PLAYING room left with one active player is abandoned,
// removed, and every remaining mapping to it is released.
//
// Postcondition: Returns nil if the player was in no room. Otherwise the
// returned Update carries a publication ticket unless Deleted is set.
func (m *Manager) LeaveGame(playerID string) *Update {
	m.mu.Lock()
	defer m.mu.Unlock()

	gameID, ok := m.playerGame[playerID]
	if !ok {
		return nil
	}
	delete(m.playerGame, playerID)

	e, ok := m.games[gameID]
	if !ok {
		return nil
	}

	before := e.game.Status()
	p, ok := e.game.RemovePlayer(playerID)
	if !ok {
		return nil
	}
	u := &Update{
		Player:   p,
		Finished: before != room.StatusFinished && e.game.Status() == room.StatusFinished,
	}

	m.logger.Info("player left game",
		zap.String("player_id", playerID),
		zap.String("game_id", gameID),
		zap.Int("active_players", e.game.ActivePlayerCount()),
		zap.Bool("finished", u.Finished),
	)

	if e.game.ActivePlayerCount() == 0 {
		u.Snapshot = e.game.Snapshot()
		u.Deleted = true
		if u.Finished {
			m.completed++
		}
		m.deleteGame(gameID)
		return u
	}
	if u.Finished {
		m.retire(gameID)
	}
	return m.publish(e, u)
}

// MakeMove plays (row, col) for the player in their current room. When the move
// finishes the game the room is removed and every participant's mapping is
// released.
//
// Postcondition: On success the returned Update carries the room's next
// publication ticket. On error nothing changed.
func (m *Manager) MakeMove(playerID string, row, col int) (*Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gameID, ok := m.playerGame[playerID]
	if !ok {
		return nil, room.ErrNotInGame
	}
	e, ok := m.games[gameID]
	if !ok {
		return nil, room.ErrNotInGame
	}
	p, ok := e.game.Player(playerID)
	if !ok {
		return nil, room.ErrNotInGame
	}

	if err := e.game.MakeMove(playerID, row, col); err != nil {
		m.logger.Debug("move rejected",
			zap.String("player_id", playerID),
			zap.String("game_id", gameID),
			zap.Int("row", row),
			zap.Int("col", col),
			zap.Error(err),
		)
		return nil, err
	}

	u := &Update{Player: p}
	if e.game.Status() == room.StatusFinished {
		u.Finished = true
		m.retire(gameID)
		o, _ := e.game.Outcome()
		m.logger.Info("game finished",
			zap.String("game_id", gameID),
			zap.Stringer("outcome", o.Kind),
		)
	}
	return m.publish(e, u), nil
}

// releasePlayers drops every mapping that points at g. The registry lock must be held.
func (m *Manager) releasePlayers(g *room.Game) {
	for _, p := range g.Players() {
		if m.playerGame[p.ID] == g.ID() {
			delete(m.playerGame, p.ID)
		}
	}
}

// retire drops a finished room and releases all its players so they can join
// new rooms at once. The registry lock must be held.
func (m *Manager) retire(gameID string) {
	m.completed++
	m.deleteGame(gameID)
}

// deleteGame removes the room and any mapping to it. The registry lock must be held.
func (m *Manager) deleteGame(gameID string) {
	e, ok := m.games[gameID]
	if !ok {
		return
	}
	m.releasePlayers(e.game)
	delete(m.games, gameID)
	m.logger.Info("game removed", zap.String("game_id", gameID))
}

// ListAvailable returns a summary of every WAITING room.
func (m *Manager) ListAvailable() []room.Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]room.Summary, 0, len(m.games))
	for _, e := range m.games {
		if e.game.Status() == room.StatusWaiting {
			out = append(out, e.game.Summary())
		}
	}
	return out
}

// Game returns a snapshot of the room with the given id.
func (m *Manager) Game(gameID string) (room.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.games[gameID]
	if !ok {
		return room.Snapshot{}, false
	}
	return e.game.Snapshot(), true
}

// PlayerGame returns the id of the room the player is mapped to.
func (m *Manager) PlayerGame(playerID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.playerGame[playerID]
	return id, ok
}

// Stats returns registry counts.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		TotalGames:     len(m.games),
		CompletedGames: m.completed,
		TotalPlayers:   len(m.playerGame),
	}
	for _, e := range m.games {
		switch e.game.Status() {
		case room.StatusWaiting:
			s.WaitingGames++
		case room.StatusPlaying:
			s.ActiveGames++
		}
	}
	return s
}
