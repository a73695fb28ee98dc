// Package protocol defines the line-delimited JSON wire format spoken between
// game clients and the server.
//
// Every frame is a JSON object {"type": <Type>, "data": {...}} followed by a single
// '\n'. JSON string escaping guarantees the delimiter never occurs inside a body.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Delimiter terminates every frame.
const Delimiter byte = '\n'

// ErrProtocol classifies every decode failure. Callers drop the offending frame.
var ErrProtocol = errors.New("protocol error")

type envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

var decoders = map[Type]func(json.RawMessage) (Message, error){
	TypeCreateGame:   decodeAs[CreateGame],
	TypeJoinGame:     decodeAs[JoinGame],
	TypeListGames:    decodeAs[ListGames],
	TypeMakeMove:     decodeAs[MakeMove],
	TypeQuitGame:     decodeAs[QuitGame],
	TypeDisconnect:   decodeAs[Disconnect],
	TypeGameCreated:  decodeAs[GameCreated],
	TypeGameJoined:   decodeAs[GameJoined],
	TypeGameList:     decodeAs[GameList],
	TypeGameState:    decodeAs[GameState],
	TypeGameOver:     decodeAs[GameOver],
	TypePlayerJoined: decodeAs[PlayerJoined],
	TypePlayerLeft:   decodeAs[PlayerLeft],
	TypeError:        decodeAs[Error],
}

func decodeAs[T Message](data json.RawMessage) (Message, error) {
	var m T
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Encode serializes msg into a delimiter-terminated frame.
//
// Postcondition: The returned frame contains exactly one Delimiter, as its last byte.
func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", msg.Type(), err)
	}
	frame, err := json.Marshal(envelope{Type: msg.Type(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", msg.Type(), err)
	}
	return append(frame, Delimiter), nil
}

// Decode parses one frame. A trailing delimiter and surrounding whitespace are
// ignored.
//
// Postcondition: Returns the typed message, or an error wrapping ErrProtocol.
func Decode(frame []byte) (Message, error) {
	body := bytes.TrimSpace(frame)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrProtocol)
	}
	if bytes.IndexByte(body, Delimiter) >= 0 {
		return nil, fmt.Errorf("%w: delimiter inside frame body", ErrProtocol)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed body: %v", ErrProtocol, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing message type", ErrProtocol)
	}
	decode, ok := decoders[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown message type %q", ErrProtocol, env.Type)
	}
	msg, err := decode(env.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrProtocol, env.Type, err)
	}
	return msg, nil
}
