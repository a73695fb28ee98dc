package room

import "github.com/cory-johannsen/tictactoe/internal/game/board"

// Symbols is the mark alphabet, handed out in join order.
var Symbols = [board.MaxPlayers]board.Symbol{"X", "O", "Δ", "□", "◇", "★", "♠", "♣", "♥", "♦"}

// Player is a roster entry. Two players are the same player iff their IDs match.
type Player struct {
	ID     string
	Name   string
	Symbol board.Symbol
	// Active is false once the player has left a game that already started.
	Active bool
}

// PlayerView is a value copy of a roster entry.
type PlayerView struct {
	ID     string
	Name   string
	Symbol board.Symbol
	Active bool
}

func (p *Player) view() PlayerView {
	return PlayerView{ID: p.ID, Name: p.Name, Symbol: p.Symbol, Active: p.Active}
}
