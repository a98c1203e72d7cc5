// internal/race/registry_test.go
package race

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thitainfo/typer-service/internal/models"
	"github.com/thitainfo/typer-service/internal/store"
)

func TestCreateRoomDefaults(t *testing.T) {
	mem := store.NewMemory()
	r := NewRegistry(mem, clockwork.NewFakeClock())

	room, err := r.CreateRoom(context.Background(), "host-1", "", 0)
	require.NoError(t, err)

	assert.Len(t, room.RoomID, 6)
	for _, c := range room.RoomID {
		assert.Contains(t, roomCodeAlphabet, string(c))
	}
	assert.Equal(t, "host-1", room.HostID)
	assert.NotEmpty(t, room.Text)
	assert.Equal(t, models.StatusWaiting, room.Status)
	assert.Equal(t, 10, room.MaxPlayers)
	assert.Empty(t, room.Players)
}

func TestCreateRoomRequiresHost(t *testing.T) {
	r := NewRegistry(store.NewMemory(), clockwork.NewFakeClock())
	_, err := r.CreateRoom(context.Background(), "", "text", 5)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateRoomRetriesOnCollision(t *testing.T) {
	mem := store.NewMemory()
	r := NewRegistry(mem, clockwork.NewFakeClock())

	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	i := 0
	r.codeFn = func() string {
		code := codes[i]
		i++
		return code
	}

	first, err := r.CreateRoom(context.Background(), "h1", "text", 2)
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.RoomID)

	second, err := r.CreateRoom(context.Background(), "h2", "text", 2)
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", second.RoomID)
}

func TestCreateChallengeRoom(t *testing.T) {
	mem := store.NewMemory()
	fc := clockwork.NewFakeClock()
	r := NewRegistry(mem, fc)

	ch := &models.Challenge{
		ChallengeID:  "challenge_123_abcdefghi",
		ChallengerID: "sock-1",
		Text:         "race me",
	}
	room, err := r.CreateChallengeRoom(context.Background(), ch)
	require.NoError(t, err)

	assert.Equal(t, "challenge_challenge_123_abcdefghi", room.RoomID)
	assert.Equal(t, "sock-1", room.HostID)
	assert.Equal(t, 2, room.MaxPlayers)
	assert.Equal(t, ch.ChallengeID, room.ChallengeID)
	assert.Equal(t, "race me", room.Text)
}

func TestValidateJoinable(t *testing.T) {
	mem := store.NewMemory()
	fc := clockwork.NewFakeClock()
	r := NewRegistry(mem, fc)
	ctx := context.Background()

	room, err := r.CreateRoom(ctx, "h1", "text", 1)
	require.NoError(t, err)

	got, err := r.ValidateJoinable(ctx, room.RoomID)
	require.NoError(t, err)
	assert.Equal(t, room.RoomID, got.RoomID)

	_, err = r.ValidateJoinable(ctx, "NOSUCH")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = mem.AppendPlayer(ctx, room.RoomID, models.NewPlayer("s1", "alice", fc.Now()))
	require.NoError(t, err)
	_, err = r.ValidateJoinable(ctx, room.RoomID)
	assert.ErrorIs(t, err, store.ErrRoomFull)

	ok, err := mem.BeginStarting(ctx, room.RoomID)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = r.ValidateJoinable(ctx, room.RoomID)
	assert.ErrorIs(t, err, store.ErrRaceInProgress)
}
