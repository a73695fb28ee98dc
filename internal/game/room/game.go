// Package room implements a single game room: its roster, turn order, board and
// the WAITING → PLAYING → FINISHED state machine.
package room

import (
	"fmt"

	"github.com/cory-johannsen/tictactoe/internal/game/board"
)

// Status is the lifecycle phase of a game. Transitions only move forward.
type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusPlaying  Status = "PLAYING"
	StatusFinished Status = "FINISHED"
)

// OutcomeKind says how a finished game ended.
type OutcomeKind int

const (
	OutcomeWin OutcomeKind = iota
	OutcomeDraw
	OutcomeAbandoned
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeWin:
		return "win"
	case OutcomeDraw:
		return "draw"
	case OutcomeAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome exists only for a finished game. Winner is set iff Kind is OutcomeWin.
type Outcome struct {
	Kind   OutcomeKind
	Winner *PlayerView
}

// Game is one room. It is not safe for concurrent use; the registry serializes
// every call.
type Game struct {
	id         string
	numPlayers int
	players    []*Player
	current    int
	board      *board.Board
	status     Status
	outcome    *Outcome
}

// New creates a WAITING game for numPlayers players.
//
// Precondition: numPlayers must be in [board.MinPlayers, board.MaxPlayers].
// Postcondition: Returns a game with an empty roster and an empty (numPlayers+1)² board.
func New(id string, numPlayers int) (*Game, error) {
	b, err := board.New(numPlayers)
	if err != nil {
		return nil, err
	}
	return &Game{
		id:         id,
		numPlayers: numPlayers,
		board:      b,
		status:     StatusWaiting,
	}, nil
}

// ID returns the game identifier.
func (g *Game) ID() string { return g.id }

// NumPlayers returns the target roster size.
func (g *Game) NumPlayers() int { return g.numPlayers }

// Status returns the current phase.
func (g *Game) Status() Status { return g.status }

// Outcome returns how the game ended; ok is false until the game is FINISHED.
func (g *Game) Outcome() (Outcome, bool) {
	if g.outcome == nil {
		return Outcome{}, false
	}
	return *g.outcome, true
}

func (g *Game) finish(o Outcome) {
	g.status = StatusFinished
	g.outcome = &o
}

func (g *Game) find(playerID string) (int, *Player) {
	for i, p := range g.players {
		if p.ID == playerID {
			return i, p
		}
	}
	return -1, nil
}

// Player returns the roster entry for playerID.
func (g *Game) Player(playerID string) (PlayerView, bool) {
	_, p := g.find(playerID)
	if p == nil {
		return PlayerView{}, false
	}
	return p.view(), true
}

// Players returns the roster in join order.
func (g *Game) Players() []PlayerView {
	out := make([]PlayerView, len(g.players))
	for i, p := range g.players {
		out[i] = p.view()
	}
	return out
}

// ActivePlayerCount returns how many roster entries have not left.
func (g *Game) ActivePlayerCount() int {
	n := 0
	for _, p := range g.players {
		if p.Active {
			n++
		}
	}
	return n
}

func (g *Game) nextSymbol() board.Symbol {
	used := make(map[board.Symbol]bool, len(g.players))
	for _, p := range g.players {
		used[p.Symbol] = true
	}
	for _, s := range Symbols {
		if !used[s] {
			return s
		}
	}
	return ""
}

// AddPlayer appends a player to the roster with the first symbol no roster entry
// holds. The game starts as soon as the roster is complete.
//
// Postcondition: Returns the new roster entry, or ErrGameAlreadyStarted,
// ErrPlayerAlreadyInGame or ErrGameFull without side effects.
func (g *Game) AddPlayer(playerID, name string) (PlayerView, error) {
	if g.status != StatusWaiting {
		return PlayerView{}, ErrGameAlreadyStarted
	}
	if _, p := g.find(playerID); p != nil {
		return PlayerView{}, ErrPlayerAlreadyInGame
	}
	if len(g.players) >= g.numPlayers {
		return PlayerView{}, ErrGameFull
	}

	p := &Player{ID: playerID, Name: name, Symbol: g.nextSymbol(), Active: true}
	g.players = append(g.players, p)
	if len(g.players) == g.numPlayers {
		g.status = StatusPlaying
		g.current = 0
	}
	return p.view(), nil
}

// RemovePlayer takes playerID out of play. Before the game starts the entry is
// dropped from the roster, freeing its slot and symbol. Once started the entry
// stays on the roster marked inactive, and the game is abandoned when at most one
// active player remains.
//
// Postcondition: Returns the departed entry and true, or false if playerID is not on the roster.
func (g *Game) RemovePlayer(playerID string) (PlayerView, bool) {
	i, p := g.find(playerID)
	if p == nil {
		return PlayerView{}, false
	}

	if g.status == StatusWaiting {
		g.players = append(g.players[:i], g.players[i+1:]...)
		p.Active = false
		return p.view(), true
	}

	p.Active = false
	if g.status == StatusPlaying && g.ActivePlayerCount() <= 1 {
		g.finish(Outcome{Kind: OutcomeAbandoned})
	}
	return p.view(), true
}

// currentPlayer returns the roster entry whose turn it is, advancing the stored
// index past inactive entries.
func (g *Game) currentPlayer() *Player {
	if g.status != StatusPlaying || len(g.players) == 0 {
		return nil
	}
	for attempts := 0; attempts < len(g.players); attempts++ {
		p := g.players[g.current]
		if p.Active {
			return p
		}
		g.current = (g.current + 1) % len(g.players)
	}
	return nil
}

// CurrentPlayer returns the player whose turn it is; ok is false when the game is
// not PLAYING or nobody is active.
func (g *Game) CurrentPlayer() (PlayerView, bool) {
	p := g.currentPlayer()
	if p == nil {
		return PlayerView{}, false
	}
	return p.view(), true
}

// MakeMove places playerID's symbol at (row, col) and resolves the turn.
//
// Postcondition: On error neither the board nor the turn pointer changed. On
// success the game is either FINISHED (win or draw) or the turn has passed to the
// next roster slot.
func (g *Game) MakeMove(playerID string, row, col int) error {
	if g.status != StatusPlaying {
		return ErrGameNotInProgress
	}
	current := g.currentPlayer()
	if current == nil || current.ID != playerID {
		return ErrNotYourTurn
	}
	if !g.board.Place(row, col, current.Symbol) {
		return ErrInvalidMove
	}

	if _, won := g.board.CheckWinner(row, col); won {
		w := current.view()
		g.finish(Outcome{Kind: OutcomeWin, Winner: &w})
		return nil
	}
	if g.board.IsFull() {
		g.finish(Outcome{Kind: OutcomeDraw})
		return nil
	}

	g.current = (g.current + 1) % len(g.players)
	return nil
}

// Summary is the compact listing form of a game.
type Summary struct {
	GameID             string
	NumPlayers         int
	CurrentPlayerCount int
	Status             Status
	IsDraw             bool
}

// Snapshot is a detached copy of the full room state.
type Snapshot struct {
	Summary
	Board              board.State
	Players            []PlayerView
	CurrentPlayerIndex int
	// CurrentPlayerID is empty when nobody is to move.
	CurrentPlayerID string
	Outcome         *Outcome
}

// Winner returns the winning player, if the game was won.
func (s Snapshot) Winner() *PlayerView {
	if s.Outcome == nil {
		return nil
	}
	return s.Outcome.Winner
}

// ActivePlayerCount counts the active entries in the snapshot roster.
func (s Snapshot) ActivePlayerCount() int {
	n := 0
	for _, p := range s.Players {
		if p.Active {
			n++
		}
	}
	return n
}

// Summary returns the listing form of the game.
func (g *Game) Summary() Summary {
	isDraw := g.outcome != nil && g.outcome.Kind == OutcomeDraw
	return Summary{
		GameID:             g.id,
		NumPlayers:         g.numPlayers,
		CurrentPlayerCount: len(g.players),
		Status:             g.status,
		IsDraw:             isDraw,
	}
}

// Snapshot returns the full room state.
func (g *Game) Snapshot() Snapshot {
	s := Snapshot{
		Summary: g.Summary(),
		Board:   g.board.State(),
		Players: g.Players(),
	}
	if p := g.currentPlayer(); p != nil {
		s.CurrentPlayerID = p.ID
	}
	s.CurrentPlayerIndex = g.current
	if g.outcome != nil {
		o := *g.outcome
		if o.Winner != nil {
			w := *o.Winner
			o.Winner = &w
		}
		s.Outcome = &o
	}
	return s
}
