package gameserver

import (
	"github.com/cory-johannsen/tictactoe/internal/game/room"
	"github.com/cory-johannsen/tictactoe/internal/protocol"
)

// AbandonReason is the GAME_OVER reason for a game ended by departures.
const AbandonReason = "Other players left the game"

func playerInfo(p room.PlayerView) protocol.PlayerInfo {
	return protocol.PlayerInfo{
		PlayerID: p.ID,
		Name:     p.Name,
		Symbol:   string(p.Symbol),
		IsActive: p.Active,
	}
}

func gameSummary(s room.Summary) protocol.GameSummary {
	return protocol.GameSummary{
		GameID:             s.GameID,
		NumPlayers:         s.NumPlayers,
		CurrentPlayerCount: s.CurrentPlayerCount,
		State:              string(s.Status),
		IsDraw:             s.IsDraw,
	}
}

func gameList(summaries []room.Summary) protocol.GameList {
	games := make([]protocol.GameSummary, 0, len(summaries))
	for _, s := range summaries {
		games = append(games, gameSummary(s))
	}
	return protocol.GameList{Games: games}
}

func gameState(s room.Snapshot) protocol.GameState {
	grid := make([][]*string, len(s.Board.Grid))
	for r, row := range s.Board.Grid {
		grid[r] = make([]*string, len(row))
		for c, sym := range row {
			if sym != nil {
				v := string(*sym)
				grid[r][c] = &v
			}
		}
	}

	players := make([]protocol.PlayerInfo, 0, len(s.Players))
	for _, p := range s.Players {
		players = append(players, playerInfo(p))
	}

	st := protocol.GameState{
		GameID:             s.GameID,
		NumPlayers:         s.NumPlayers,
		CurrentPlayerCount: s.CurrentPlayerCount,
		State:              string(s.Status),
		IsDraw:             s.IsDraw,
		Board: protocol.BoardInfo{
			NumPlayers: s.Board.NumPlayers,
			Size:       s.Board.Size,
			Grid:       grid,
			WinLength:  s.Board.WinLength,
			MoveCount:  s.Board.MoveCount,
		},
		Players:            players,
		CurrentPlayerIndex: s.CurrentPlayerIndex,
		CurrentPlayerID:    s.CurrentPlayerID,
	}
	if w := s.Winner(); w != nil {
		info := playerInfo(*w)
		st.Winner = &info
	}
	return st
}

// gameOver renders the outcome of a finished snapshot.
//
// Precondition: s.Outcome must be non-nil.
func gameOver(s room.Snapshot) protocol.GameOver {
	switch s.Outcome.Kind {
	case room.OutcomeDraw:
		return protocol.GameOver{IsDraw: true}
	case room.OutcomeWin:
		info := playerInfo(*s.Outcome.Winner)
		return protocol.GameOver{Winner: &info}
	default:
		return protocol.GameOver{Abandoned: true, Reason: AbandonReason}
	}
}
