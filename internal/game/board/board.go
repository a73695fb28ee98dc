// Package board implements the square playing grid shared by a game room.
package board

import (
	"errors"
	"fmt"
)

// MinPlayers and MaxPlayers bound the roster size a board can be built for.
const (
	MinPlayers = 2
	MaxPlayers = 10
)

// ErrPlayerCount is returned when a board is requested for an unsupported roster size.
var ErrPlayerCount = errors.New("number of players must be between 2 and 10")

// Symbol is the mark a player places on the board. The zero value is an empty cell.
type Symbol string

// direction is a unit step along one of the four undirected lines through a cell.
type direction struct{ dr, dc int }

var directions = [...]direction{
	{0, 1},  // horizontal
	{1, 0},  // vertical
	{1, 1},  // diagonal
	{1, -1}, // anti-diagonal
}

// Board is an N×N grid where N is the roster size plus one. A run of N identical
// symbols wins.
//
// Board is not safe for concurrent use; the owning room serializes access.
type Board struct {
	numPlayers int
	size       int
	winLength  int
	grid       [][]Symbol
	moveCount  int
}

// New creates an empty board sized for numPlayers.
//
// Precondition: numPlayers must be in [MinPlayers, MaxPlayers].
// Postcondition: Returns a board with Size() == WinLength() == numPlayers+1, or ErrPlayerCount.
func New(numPlayers int) (*Board, error) {
	if numPlayers < MinPlayers || numPlayers > MaxPlayers {
		return nil, fmt.Errorf("%w: got %d", ErrPlayerCount, numPlayers)
	}
	size := numPlayers + 1
	grid := make([][]Symbol, size)
	for i := range grid {
		grid[i] = make([]Symbol, size)
	}
	return &Board{
		numPlayers: numPlayers,
		size:       size,
		winLength:  size,
		grid:       grid,
	}, nil
}

// Size returns the side length of the grid.
func (b *Board) Size() int { return b.size }

// WinLength returns the run length required to win.
func (b *Board) WinLength() int { return b.winLength }

// MoveCount returns the number of occupied cells.
func (b *Board) MoveCount() int { return b.moveCount }

func (b *Board) inBounds(row, col int) bool {
	return row >= 0 && row < b.size && col >= 0 && col < b.size
}

// Cell returns the symbol at (row, col) and whether the cell is occupied.
// Out-of-bounds coordinates report an empty cell.
func (b *Board) Cell(row, col int) (Symbol, bool) {
	if !b.inBounds(row, col) {
		return "", false
	}
	s := b.grid[row][col]
	return s, s != ""
}

// IsValidMove reports whether (row, col) is on the board and empty.
func (b *Board) IsValidMove(row, col int) bool {
	return b.inBounds(row, col) && b.grid[row][col] == ""
}

// Place writes symbol at (row, col).
//
// Postcondition: Returns false without mutating the board if the target is invalid.
func (b *Board) Place(row, col int, symbol Symbol) bool {
	if symbol == "" || !b.IsValidMove(row, col) {
		return false
	}
	b.grid[row][col] = symbol
	b.moveCount++
	return true
}

// CheckWinner scans the four lines through the just-played cell and reports the
// symbol there if any line holds a contiguous run of at least WinLength copies.
//
// Precondition: (row, col) must be the coordinates of the move just made.
func (b *Board) CheckWinner(row, col int) (Symbol, bool) {
	symbol, ok := b.Cell(row, col)
	if !ok {
		return "", false
	}
	for _, d := range directions {
		count := 1
		for r, c := row+d.dr, col+d.dc; b.inBounds(r, c) && b.grid[r][c] == symbol; r, c = r+d.dr, c+d.dc {
			count++
		}
		for r, c := row-d.dr, col-d.dc; b.inBounds(r, c) && b.grid[r][c] == symbol; r, c = r-d.dr, c-d.dc {
			count++
		}
		if count >= b.winLength {
			return symbol, true
		}
	}
	return "", false
}

// IsFull reports whether every cell is occupied.
func (b *Board) IsFull() bool {
	return b.moveCount == b.size*b.size
}

// State is a detached copy of the board for serialization. Empty cells are nil.
type State struct {
	NumPlayers int
	Size       int
	WinLength  int
	MoveCount  int
	Grid       [][]*Symbol
}

// State returns a deep copy of the board.
func (b *Board) State() State {
	grid := make([][]*Symbol, b.size)
	for r := range grid {
		grid[r] = make([]*Symbol, b.size)
		for c, s := range b.grid[r] {
			if s != "" {
				s := s
				grid[r][c] = &s
			}
		}
	}
	return State{
		NumPlayers: b.numPlayers,
		Size:       b.size,
		WinLength:  b.winLength,
		MoveCount:  b.moveCount,
		Grid:       grid,
	}
}
