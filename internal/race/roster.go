// internal/race/roster.go
package race

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"

	"github.com/thitainfo/typer-service/internal/models"
	"github.com/thitainfo/typer-service/internal/store"
)

// Roster maintains room membership. Capacity and username-uniqueness are
// enforced by the store's conditional append, not by a read here, so two
// near-simultaneous joins cannot both slip past a guard.
type Roster struct {
	rooms store.RoomStore
	clock clockwork.Clock
}

func NewRoster(rooms store.RoomStore, clock clockwork.Clock) *Roster {
	return &Roster{rooms: rooms, clock: clock}
}

// Join appends a fresh player record and returns the updated room for
// broadcast.
func (ro *Roster) Join(ctx context.Context, roomID, socketID, username string) (*models.Room, models.Player, error) {
	if roomID == "" || username == "" {
		return nil, models.Player{}, ErrInvalidInput
	}
	p := models.NewPlayer(socketID, username, ro.clock.Now())
	room, err := ro.rooms.AppendPlayer(ctx, roomID, p)
	if err != nil {
		return nil, models.Player{}, err
	}
	return room, p, nil
}

// Leave removes the player if present. Removal is idempotent; a second call
// for the same socket finds nothing to remove and still succeeds. A room left
// with zero players stays in place so its code remains resolvable.
func (ro *Roster) Leave(ctx context.Context, roomID, socketID string) (*models.Room, error) {
	room, err := ro.rooms.RemovePlayer(ctx, roomID, socketID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return room, err
}

// IsHost reports whether socketID created the room.
func (ro *Roster) IsHost(room *models.Room, socketID string) bool {
	return room.HostID == socketID
}
