package room

// Code classifies a game-rule rejection.
type Code string

const (
	CodeGameNotFound        Code = "GameNotFound"
	CodeGameAlreadyStarted  Code = "GameAlreadyStarted"
	CodeGameFull            Code = "GameFull"
	CodePlayerAlreadyInGame Code = "PlayerAlreadyInGame"
	CodeGameNotInProgress   Code = "GameNotInProgress"
	CodeNotYourTurn         Code = "NotYourTurn"
	CodeInvalidMove         Code = "InvalidMove"
	CodeNotInGame           Code = "NotInGame"
)

// Error is a game-rule rejection. Message is the text shown to the player.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error with the same Code, so errors.Is works against the
// package-level values below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrGameNotFound        = &Error{Code: CodeGameNotFound, Message: "Game not found"}
	ErrGameAlreadyStarted  = &Error{Code: CodeGameAlreadyStarted, Message: "Game already started"}
	ErrGameFull            = &Error{Code: CodeGameFull, Message: "Game is full"}
	ErrPlayerAlreadyInGame = &Error{Code: CodePlayerAlreadyInGame, Message: "Player already in a game"}
	ErrGameNotInProgress   = &Error{Code: CodeGameNotInProgress, Message: "Game is not in progress"}
	ErrNotYourTurn         = &Error{Code: CodeNotYourTurn, Message: "Not your turn"}
	ErrInvalidMove         = &Error{Code: CodeInvalidMove, Message: "Invalid move"}
	ErrNotInGame           = &Error{Code: CodeNotInGame, Message: "Not in a game"}
)
