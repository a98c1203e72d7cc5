// internal/race/reconciler.go
package race

import (
	"context"

	"github.com/thitainfo/typer-service/internal/models"
	"github.com/thitainfo/typer-service/internal/store"
)

// Reconciler cleans up after a dropped connection: the departed socket is
// pulled from every room that still lists it, and each affected room is
// returned for re-broadcast. hostId is never reassigned; a waiting room
// whose host disconnected can no longer be started, which is accepted.
// Running twice for the same socket is harmless; the second pass finds no
// matching player.
type Reconciler struct {
	rooms store.RoomStore
}

func NewReconciler(rooms store.RoomStore) *Reconciler {
	return &Reconciler{rooms: rooms}
}

func (rc *Reconciler) Disconnect(ctx context.Context, socketID string) ([]*models.Room, error) {
	return rc.rooms.RemovePlayerEverywhere(ctx, socketID)
}
