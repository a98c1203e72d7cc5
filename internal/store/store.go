// internal/store/store.go
package store

import (
	"context"
	"errors"
	"time"

	"github.com/thitainfo/typer-service/internal/models"
)

// Roster and status invariants are enforced at the storage layer as
// conditional updates rather than check-then-act reads, so that two events
// racing on the same room cannot both pass a guard. The sentinel errors below
// report which condition failed.
var (
	ErrNotFound       = errors.New("not found")
	ErrRoomFull       = errors.New("room is full")
	ErrUsernameTaken  = errors.New("username already taken in this room")
	ErrRaceInProgress = errors.New("race has already started or finished")
)

// RoomStore is the document-store contract for race rooms. Implementations
// must make AppendPlayer, BeginStarting, MarkStarted and FinishRoom atomic
// conditional updates.
type RoomStore interface {
	InsertRoom(ctx context.Context, room *models.Room) error
	FindRoom(ctx context.Context, roomID string) (*models.Room, error)

	// AppendPlayer adds p to the roster iff the room is waiting, below
	// capacity, and p.Username is not already taken. Returns the updated room.
	AppendPlayer(ctx context.Context, roomID string, p models.Player) (*models.Room, error)

	// RemovePlayer is idempotent; removing an absent player is not an error.
	// Returns the updated room, or ErrNotFound if the room does not exist.
	RemovePlayer(ctx context.Context, roomID, socketID string) (*models.Room, error)

	// RemovePlayerEverywhere pulls socketID from every room containing it and
	// returns the updated rooms, for re-broadcast.
	RemovePlayerEverywhere(ctx context.Context, socketID string) ([]*models.Room, error)

	// SetPlayerProgress overwrites the matching player's telemetry snapshot
	// and returns the updated room. ErrNotFound if room or player is gone.
	SetPlayerProgress(ctx context.Context, roomID, socketID string, u models.ProgressUpdate) (*models.Room, error)

	// SetPlayerFinished marks the player finished with the reported metrics,
	// unconditionally with respect to room status, and returns the updated room.
	SetPlayerFinished(ctx context.Context, roomID, socketID string, f models.FinishUpdate, at time.Time) (*models.Room, error)

	// BeginStarting transitions waiting -> starting. Returns false if the room
	// is not waiting (so a second start-race cannot preempt a countdown).
	BeginStarting(ctx context.Context, roomID string) (bool, error)

	// MarkStarted transitions starting -> active and stamps startedAt.
	MarkStarted(ctx context.Context, roomID string, at time.Time) (bool, error)

	// FinishRoom performs the winner-declaration write: sets status=finished,
	// finishedAt and the winner fields iff status is not already finished.
	// Returns the room as of the transition and whether this call won the
	// race to transition it. Pass empty winner fields for a timeout finish.
	FinishRoom(ctx context.Context, roomID, winnerID, winnerName string, at time.Time) (*models.Room, bool, error)
}

// ChallengeStore persists challenge documents.
type ChallengeStore interface {
	InsertChallenge(ctx context.Context, ch *models.Challenge) error
	FindChallenge(ctx context.Context, challengeID string) (*models.Challenge, error)

	// AcceptChallenge transitions pending -> accepted and records the opponent.
	// Returns false if the challenge was not pending.
	AcceptChallenge(ctx context.Context, challengeID, opponentID, opponentName string) (*models.Challenge, bool, error)

	CompleteChallenge(ctx context.Context, challengeID string) error
}

// ResultStore persists immutable race results and serves the history view.
type ResultStore interface {
	InsertRaceResult(ctx context.Context, res *models.RaceResult) error
	RecentResults(ctx context.Context, limit int) ([]models.RaceResult, error)
}
