// internal/race/progress.go
package race

import (
	"context"
	"errors"

	"github.com/thitainfo/typer-service/internal/models"
	"github.com/thitainfo/typer-service/internal/store"
)

// Tracker applies self-reported per-player telemetry. Reports arrive roughly
// every 500ms per client and must stay cheap: one positional write, no
// validation against the text, no finish arbitration. Even when the snapshot
// carries finished=true, declaring a winner is the controller's job on the
// explicit finish event.
type Tracker struct {
	rooms store.RoomStore
}

func NewTracker(rooms store.RoomStore) *Tracker {
	return &Tracker{rooms: rooms}
}

// Report overwrites the player's snapshot and returns the updated room, or
// (nil, nil) when the room or player no longer exists. A report can
// legitimately arrive after its sender left.
func (t *Tracker) Report(ctx context.Context, roomID, socketID string, u models.ProgressUpdate) (*models.Room, error) {
	if roomID == "" {
		return nil, nil
	}
	room, err := t.rooms.SetPlayerProgress(ctx, roomID, socketID, u)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}
