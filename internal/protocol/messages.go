package protocol

// Type is the wire tag of a message.
type Type string

// Client → server.
const (
	TypeCreateGame Type = "CREATE_GAME"
	TypeJoinGame   Type = "JOIN_GAME"
	TypeListGames  Type = "LIST_GAMES"
	TypeMakeMove   Type = "MAKE_MOVE"
	TypeQuitGame   Type = "QUIT_GAME"
	TypeDisconnect Type = "DISCONNECT"
)

// Server → client.
const (
	TypeGameCreated  Type = "GAME_CREATED"
	TypeGameJoined   Type = "GAME_JOINED"
	TypeGameList     Type = "GAME_LIST"
	TypeGameState    Type = "GAME_STATE"
	TypeGameOver     Type = "GAME_OVER"
	TypePlayerJoined Type = "PLAYER_JOINED"
	TypePlayerLeft   Type = "PLAYER_LEFT"
	TypeError        Type = "ERROR"
)

// Message is one entry of the closed message catalog. The unexported method keeps
// the set of implementations inside this package.
type Message interface {
	Type() Type
	message()
}

// CreateGame asks the server to open a room. A nil NumPlayers means 2.
type CreateGame struct {
	NumPlayers *int `json:"num_players,omitempty"`
}

type JoinGame struct {
	GameID     string `json:"game_id"`
	PlayerName string `json:"player_name,omitempty"`
}

type ListGames struct{}

// MakeMove places the sender's symbol. Nil coordinates are a validation error.
type MakeMove struct {
	Row *int `json:"row"`
	Col *int `json:"col"`
}

type QuitGame struct{}

// Disconnect is sent by a client that is leaving, and synthesized by a session
// whose connection has ended.
type Disconnect struct{}

type GameCreated struct {
	GameID     string `json:"game_id"`
	NumPlayers int    `json:"num_players"`
}

type GameJoined struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
	Symbol   string `json:"symbol"`
}

// GameSummary is a room listing entry.
type GameSummary struct {
	GameID             string `json:"game_id"`
	NumPlayers         int    `json:"num_players"`
	CurrentPlayerCount int    `json:"current_player_count"`
	State              string `json:"state,omitempty"`
	IsDraw             bool   `json:"is_draw"`
}

type GameList struct {
	Games []GameSummary `json:"games"`
}

type PlayerInfo struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	IsActive bool   `json:"is_active"`
}

// BoardInfo carries the grid; empty cells are null.
type BoardInfo struct {
	NumPlayers int         `json:"num_players"`
	Size       int         `json:"size"`
	Grid       [][]*string `json:"grid"`
	WinLength  int         `json:"win_length"`
	MoveCount  int         `json:"move_count"`
}

type GameState struct {
	GameID             string       `json:"game_id"`
	NumPlayers         int          `json:"num_players"`
	CurrentPlayerCount int          `json:"current_player_count"`
	State              string       `json:"state"`
	IsDraw             bool         `json:"is_draw"`
	Board              BoardInfo    `json:"board"`
	Players            []PlayerInfo `json:"players"`
	CurrentPlayerIndex int          `json:"current_player_index"`
	CurrentPlayerID    string       `json:"current_player_id,omitempty"`
	Winner             *PlayerInfo  `json:"winner,omitempty"`
}

type GameOver struct {
	IsDraw    bool        `json:"is_draw"`
	Winner    *PlayerInfo `json:"winner,omitempty"`
	Abandoned bool        `json:"abandoned,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

type PlayerJoined struct {
	Player PlayerInfo `json:"player"`
}

type PlayerLeft struct {
	PlayerID string `json:"player_id"`
}

type Error struct {
	Message string `json:"message"`
}

func (CreateGame) Type() Type   { return TypeCreateGame }
func (JoinGame) Type() Type     { return TypeJoinGame }
func (ListGames) Type() Type    { return TypeListGames }
func (MakeMove) Type() Type     { return TypeMakeMove }
func (QuitGame) Type() Type     { return TypeQuitGame }
func (Disconnect) Type() Type   { return TypeDisconnect }
func (GameCreated) Type() Type  { return TypeGameCreated }
func (GameJoined) Type() Type   { return TypeGameJoined }
func (GameList) Type() Type     { return TypeGameList }
func (GameState) Type() Type    { return TypeGameState }
func (GameOver) Type() Type     { return TypeGameOver }
func (PlayerJoined) Type() Type { return TypePlayerJoined }
func (PlayerLeft) Type() Type   { return TypePlayerLeft }
func (Error) Type() Type        { return TypeError }

func (CreateGame) message()   {}
func (JoinGame) message()     {}
func (ListGames) message()    {}
func (MakeMove) message()     {}
func (QuitGame) message()     {}
func (Disconnect) message()   {}
func (GameCreated) message()  {}
func (GameJoined) message()   {}
func (GameList) message()     {}
func (GameState) message()    {}
func (GameOver) message()     {}
func (PlayerJoined) message() {}
func (PlayerLeft) message()   {}
func (Error) message()        {}
