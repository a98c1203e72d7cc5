// internal/race/registry.go
package race

import (
	"context"
	"errors"
	"math/rand"

	"github.com/jonboulle/clockwork"

	"github.com/thitainfo/typer-service/internal/models"
	"github.com/thitainfo/typer-service/internal/store"
	"github.com/thitainfo/typer-service/internal/texts"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 6

	defaultMaxPlayers = 10
)

// Registry allocates unique room codes and persists initial room documents.
type Registry struct {
	rooms store.RoomStore
	clock clockwork.Clock

	// codeFn draws a candidate room code; replaceable in tests to force
	// collisions.
	codeFn func() string
}

func NewRegistry(rooms store.RoomStore, clock clockwork.Clock) *Registry {
	return &Registry{
		rooms:  rooms,
		clock:  clock,
		codeFn: randomRoomCode,
	}
}

func randomRoomCode() string {
	b := make([]byte, roomCodeLength)
	for i := range b {
		b[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return string(b)
}

// CreateRoom allocates a free room code and inserts a waiting room with an
// empty roster. An empty text gets a random passage from the server-side
// pool. Collisions re-draw with no retry bound; at 36^6 codes they are rare.
func (r *Registry) CreateRoom(ctx context.Context, hostID, text string, maxPlayers int) (*models.Room, error) {
	if hostID == "" {
		return nil, ErrInvalidInput
	}
	if text == "" {
		text = texts.Random()
	}
	if maxPlayers <= 0 {
		maxPlayers = defaultMaxPlayers
	}

	for {
		code := r.codeFn()
		_, err := r.rooms.FindRoom(ctx, code)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		room := &models.Room{
			RoomID:     code,
			HostID:     hostID,
			Text:       text,
			Status:     models.StatusWaiting,
			MaxPlayers: maxPlayers,
			Players:    []models.Player{},
			CreatedAt:  r.clock.Now(),
		}
		if err := r.rooms.InsertRoom(ctx, room); err != nil {
			return nil, err
		}
		return room, nil
	}
}

// CreateChallengeRoom synthesizes the two-player room an accepted challenge
// races in. The room id is derived from the challenge id, the challenger is
// host.
func (r *Registry) CreateChallengeRoom(ctx context.Context, ch *models.Challenge) (*models.Room, error) {
	room := &models.Room{
		RoomID:      "challenge_" + ch.ChallengeID,
		HostID:      ch.ChallengerID,
		Text:        ch.Text,
		Status:      models.StatusWaiting,
		MaxPlayers:  2,
		Players:     []models.Player{},
		ChallengeID: ch.ChallengeID,
		CreatedAt:   r.clock.Now(),
	}
	if err := r.rooms.InsertRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// GetRoom looks up a room by code.
func (r *Registry) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	return r.rooms.FindRoom(ctx, roomID)
}

// ValidateJoinable returns the room if a new player could join it right now:
// it exists, is still waiting, and has a free slot.
func (r *Registry) ValidateJoinable(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := r.rooms.FindRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status != models.StatusWaiting {
		return nil, store.ErrRaceInProgress
	}
	if len(room.Players) >= room.MaxPlayers {
		return nil, store.ErrRoomFull
	}
	return room, nil
}
