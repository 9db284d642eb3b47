package session

import "fmt"

// RoomState models the interview room join flow as an explicit state
// machine: a session is created Idle, moves to Lobby while the client
// prepares, and only a Joined session may exchange messages or save.
type RoomState string

const (
	RoomIdle   RoomState = "idle"
	RoomLobby  RoomState = "lobby"
	RoomJoined RoomState = "joined"
)

// InvalidTransitionError reports a room transition the state machine does
// not allow.
type InvalidTransitionError struct {
	From   RoomState
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("room transition %q not allowed from state %q", e.Action, e.From)
}

func enterLobby(from RoomState) (RoomState, error) {
	if from != RoomIdle {
		return from, &InvalidTransitionError{From: from, Action: "enter_lobby"}
	}
	return RoomLobby, nil
}

func join(from RoomState) (RoomState, error) {
	if from != RoomLobby {
		return from, &InvalidTransitionError{From: from, Action: "join"}
	}
	return RoomJoined, nil
}

func leave(from RoomState) (RoomState, error) {
	// Leaving is always allowed; it resets the room.
	return RoomIdle, nil
}
