package room

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tictactoe/internal/game/board"
)

func newFullGame(t require.TestingT, n int) *Game {
	g, err := New("g1", n)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := g.AddPlayer(fmt.Sprintf("p%d", i), fmt.Sprintf("Player %d", i))
		require.NoError(t, err)
	}
	return g
}

func TestNew_BoardScalesWithRoster(t *testing.T) {
	for n := board.MinPlayers; n <= board.MaxPlayers; n++ {
		g, err := New("g", n)
		require.NoError(t, err)
		snap := g.Snapshot()
		assert.Equal(t, n+1, snap.Board.Size)
		assert.Equal(t, n+1, snap.Board.WinLength)
		assert.Equal(t, StatusWaiting, g.Status())
	}
}

func TestNew_InvalidPlayerCount(t *testing.T) {
	_, err := New("g", 1)
	assert.ErrorIs(t, err, board.ErrPlayerCount)
}

func TestAddPlayer_AssignsSymbolsAndStarts(t *testing.T) {
	g, _ := New("g", 3)

	p0, err := g.AddPlayer("a", "Alice")
	require.NoError(t, err)
	assert.Equal(t, board.Symbol("X"), p0.Symbol)
	assert.True(t, p0.Active)

	p1, err := g.AddPlayer("b", "Bob")
	require.NoError(t, err)
	assert.Equal(t, board.Symbol("O"), p1.Symbol)
	assert.Equal(t, StatusWaiting, g.Status())

	p2, err := g.AddPlayer("c", "Carol")
	require.NoError(t, err)
	assert.Equal(t, board.Symbol("Δ"), p2.Symbol)
	assert.Equal(t, StatusPlaying, g.Status())

	cur, ok := g.CurrentPlayer()
	require.True(t, ok)
	assert.Equal(t, "a", cur.ID)
}

func TestAddPlayer_Rejections(t *testing.T) {
	g, _ := New("g", 2)
	_, err := g.AddPlayer("a", "Alice")
	require.NoError(t, err)

	_, err = g.AddPlayer("a", "Alice again")
	assert.ErrorIs(t, err, ErrPlayerAlreadyInGame)

	_, err = g.AddPlayer("b", "Bob")
	require.NoError(t, err)

	before := g.Snapshot()
	_, err = g.AddPlayer("c", "Carol")
	assert.ErrorIs(t, err, ErrGameAlreadyStarted)
	assert.Equal(t, before, g.Snapshot(), "rejected join must not change the game")
}

func TestRemovePlayer_WaitingFreesSlotAndSymbol(t *testing.T) {
	g, _ := New("g", 3)
	_, _ = g.AddPlayer("a", "Alice")
	_, _ = g.AddPlayer("b", "Bob")

	left, ok := g.RemovePlayer("a")
	require.True(t, ok)
	assert.False(t, left.Active)
	assert.Equal(t, StatusWaiting, g.Status())
	assert.Len(t, g.Players(), 1)

	p, err := g.AddPlayer("c", "Carol")
	require.NoError(t, err)
	assert.Equal(t, board.Symbol("X"), p.Symbol, "first unused symbol is handed out again")
}

func TestRemovePlayer_Unknown(t *testing.T) {
	g, _ := New("g", 2)
	_, ok := g.RemovePlayer("nobody")
	assert.False(t, ok)
}

func TestRemovePlayer_TwoPlayerGameIsAbandoned(t *testing.T) {
	g := newFullGame(t, 2)
	_, ok := g.RemovePlayer("p1")
	require.True(t, ok)

	assert.Equal(t, StatusFinished, g.Status())
	o, ok := g.Outcome()
	require.True(t, ok)
	assert.Equal(t, OutcomeAbandoned, o.Kind)
	assert.Nil(t, o.Winner)
	assert.Equal(t, 1, g.ActivePlayerCount())
	assert.ErrorIs(t, g.MakeMove("p0", 0, 0), ErrGameNotInProgress)
}

func TestRemovePlayer_LargerGameContinuesAndSkipsInactive(t *testing.T) {
	g := newFullGame(t, 3)
	require.NoError(t, g.MakeMove("p0", 0, 0))

	_, ok := g.RemovePlayer("p1")
	require.True(t, ok)
	assert.Equal(t, StatusPlaying, g.Status())

	cur, ok := g.CurrentPlayer()
	require.True(t, ok)
	assert.Equal(t, "p2", cur.ID, "inactive p1 is skipped")
	assert.ErrorIs(t, g.MakeMove("p1", 1, 1), ErrNotYourTurn)

	require.NoError(t, g.MakeMove("p2", 1, 1))
	cur, _ = g.CurrentPlayer()
	assert.Equal(t, "p0", cur.ID)

	_, _ = g.RemovePlayer("p2")
	assert.Equal(t, StatusFinished, g.Status())
	o, _ := g.Outcome()
	assert.Equal(t, OutcomeAbandoned, o.Kind)
}

func TestMakeMove_WinOnDiagonal(t *testing.T) {
	g := newFullGame(t, 2)
	require.NoError(t, g.MakeMove("p0", 0, 0))
	require.NoError(t, g.MakeMove("p1", 0, 1))
	require.NoError(t, g.MakeMove("p0", 1, 1))
	require.NoError(t, g.MakeMove("p1", 0, 2))
	require.NoError(t, g.MakeMove("p0", 2, 2))

	assert.Equal(t, StatusFinished, g.Status())
	snap := g.Snapshot()
	require.NotNil(t, snap.Winner())
	assert.Equal(t, board.Symbol("X"), snap.Winner().Symbol)
	assert.False(t, snap.IsDraw)
	assert.Empty(t, snap.CurrentPlayerID)

	assert.ErrorIs(t, g.MakeMove("p1", 2, 0), ErrGameNotInProgress)
}

func TestMakeMove_Draw(t *testing.T) {
	g := newFullGame(t, 2)
	// X O X / X O O / O X X in an order that never completes a line early.
	moves := []struct {
		player   string
		row, col int
	}{
		{"p0", 0, 0}, {"p1", 0, 1}, {"p0", 0, 2},
		{"p1", 1, 1}, {"p0", 1, 0}, {"p1", 1, 2},
		{"p0", 2, 1}, {"p1", 2, 0}, {"p0", 2, 2},
	}
	for i, m := range moves {
		require.NoError(t, g.MakeMove(m.player, m.row, m.col), "move %d", i)
		if i < len(moves)-1 {
			require.Equal(t, StatusPlaying, g.Status(), "move %d", i)
		}
	}
	o, ok := g.Outcome()
	require.True(t, ok)
	assert.Equal(t, OutcomeDraw, o.Kind)
	assert.Nil(t, o.Winner)
	assert.True(t, g.Summary().IsDraw)
}

func TestMakeMove_WinOnLastCellIsNotADraw(t *testing.T) {
	g := newFullGame(t, 2)
	// X O X / O X O / O X X: the ninth move fills the board and completes the diagonal.
	moves := []struct {
		player   string
		row, col int
	}{
		{"p0", 0, 0}, {"p1", 0, 1}, {"p0", 0, 2},
		{"p1", 1, 0}, {"p0", 1, 1}, {"p1", 1, 2},
		{"p0", 2, 1}, {"p1", 2, 0}, {"p0", 2, 2},
	}
	for i, m := range moves {
		require.NoError(t, g.MakeMove(m.player, m.row, m.col), "move %d", i)
		if i < len(moves)-1 {
			require.Equal(t, StatusPlaying, g.Status(), "move %d", i)
		}
	}

	snap := g.Snapshot()
	assert.Equal(t, 9, snap.Board.MoveCount)
	assert.False(t, snap.IsDraw)
	o, ok := g.Outcome()
	require.True(t, ok)
	assert.Equal(t, OutcomeWin, o.Kind)
	require.NotNil(t, o.Winner)
	assert.Equal(t, "p0", o.Winner.ID)
	assert.False(t, g.Summary().IsDraw)
}

func TestMakeMove_OutOfBoundsLeavesStateUntouched(t *testing.T) {
	g := newFullGame(t, 2)
	before := g.Snapshot()

	err := g.MakeMove("p0", 5, 0)
	assert.ErrorIs(t, err, ErrInvalidMove)
	assert.Equal(t, "Invalid move", err.Error())
	assert.Equal(t, before, g.Snapshot())
}

func TestMakeMove_NotPlayingYet(t *testing.T) {
	g, _ := New("g", 2)
	_, _ = g.AddPlayer("a", "Alice")
	assert.ErrorIs(t, g.MakeMove("a", 0, 0), ErrGameNotInProgress)
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ErrNotYourTurn)
	assert.True(t, errors.Is(err, ErrNotYourTurn))
	assert.False(t, errors.Is(err, ErrInvalidMove))

	var re *Error
	require.True(t, errors.As(err, &re))
	assert.Equal(t, CodeNotYourTurn, re.Code)
}

// Property: a move is accepted iff it is the mover's turn and the target cell is
// empty and on the board; rejected moves change nothing.
func TestPropertyMakeMove_AcceptIffLegal(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(board.MinPlayers, 4).Draw(rt, "numPlayers")
		g := newFullGame(rt, n)
		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps && g.Status() == StatusPlaying; i++ {
			mover := fmt.Sprintf("p%d", rapid.IntRange(0, n-1).Draw(rt, "mover"))
			row := rapid.IntRange(-1, n+1).Draw(rt, "row")
			col := rapid.IntRange(-1, n+1).Draw(rt, "col")

			before := g.Snapshot()
			cur, _ := g.CurrentPlayer()
			legal := cur.ID == mover && row >= 0 && row <= n && col >= 0 && col <= n &&
				before.Board.Grid[row][col] == nil

			err := g.MakeMove(mover, row, col)
			if legal {
				require.NoError(rt, err)
				after := g.Snapshot()
				assert.Equal(rt, before.Board.MoveCount+1, after.Board.MoveCount)
				if after.Outcome != nil && after.Outcome.Kind == OutcomeWin {
					assert.False(rt, after.IsDraw, "a win is never also a draw")
				}
			} else {
				require.Error(rt, err)
				assert.Equal(rt, before, g.Snapshot())
			}
		}
	})
}

// Property: turn order cycles through active players only.
func TestPropertyCurrentPlayer_SkipsInactive(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(3, board.MaxPlayers).Draw(rt, "numPlayers")
		g := newFullGame(rt, n)
		leavers := rapid.IntRange(0, n-2).Draw(rt, "leavers")
		for i := 0; i < leavers; i++ {
			_, _ = g.RemovePlayer(fmt.Sprintf("p%d", rapid.IntRange(0, n-1).Draw(rt, "leaver")))
		}
		if g.Status() != StatusPlaying {
			return
		}
		for i := 0; i < 2*n; i++ {
			cur, ok := g.CurrentPlayer()
			require.True(rt, ok)
			assert.True(rt, cur.Active)
			snap := g.Snapshot()
			assert.Equal(rt, cur.ID, snap.Players[snap.CurrentPlayerIndex].ID)
			// Advance the turn without touching the board.
			g.current = (g.current + 1) % len(g.players)
		}
	})
}
