// internal/race/errors.go
package race

import (
	"errors"

	"github.com/thitainfo/typer-service/internal/store"
)

// Controller-level failures. Roster/capacity failures come from the store
// package; together they form the full error taxonomy surfaced to clients.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("invalid state")
	ErrChallengeExpired = errors.New("challenge has expired")
)

// clientMessage maps an operation failure to the unicast error message, or
// reports that the failure is swallowed (room legitimately gone mid-flight,
// persistence hiccups). Messages mirror what clients already display.
func clientMessage(ev Event, err error) (string, bool) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		switch ev.(type) {
		case AcceptChallenge:
			return "Challenge not found", true
		case JoinRoom, StartRace:
			return "Room not found", true
		default:
			return "", false
		}
	case errors.Is(err, store.ErrRoomFull):
		return "Room is full", true
	case errors.Is(err, store.ErrUsernameTaken):
		return "Username already taken in this room", true
	case errors.Is(err, store.ErrRaceInProgress):
		return "Race has already started or finished", true
	case errors.Is(err, ErrForbidden):
		return "Only host can start the race", true
	case errors.Is(err, ErrChallengeExpired):
		return "Challenge has expired", true
	case errors.Is(err, ErrInvalidState):
		if _, ok := ev.(AcceptChallenge); ok {
			return "Challenge has already been accepted", true
		}
		return "Race has already started", true
	case errors.Is(err, ErrInvalidInput):
		if _, ok := ev.(JoinRoom); ok {
			return "Room ID and username required", true
		}
		return "Invalid request", true
	default:
		return "", false
	}
}
