// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/thitainfo/typer-service/internal/models"
)

// Memory is an in-memory implementation of RoomStore, ChallengeStore and
// ResultStore with the same conditional-update semantics as the Mongo
// implementation. It backs the engine tests and local development without a
// database.
type Memory struct {
	mu         sync.Mutex
	rooms      map[string]*models.Room
	challenges map[string]*models.Challenge
	results    []models.RaceResult
}

func NewMemory() *Memory {
	return &Memory{
		rooms:      make(map[string]*models.Room),
		challenges: make(map[string]*models.Challenge),
	}
}

func cloneRoom(r *models.Room) *models.Room {
	cp := *r
	cp.Players = make([]models.Player, len(r.Players))
	copy(cp.Players, r.Players)
	return &cp
}

func cloneChallenge(c *models.Challenge) *models.Challenge {
	cp := *c
	return &cp
}

func (m *Memory) InsertRoom(ctx context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rooms[room.RoomID]; exists {
		return fmt.Errorf("room %s already exists", room.RoomID)
	}
	m.rooms[room.RoomID] = cloneRoom(room)
	return nil
}

func (m *Memory) FindRoom(ctx context.Context, roomID string) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRoom(room), nil
}

func (m *Memory) AppendPlayer(ctx context.Context, roomID string, p models.Player) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	if room.Status != models.StatusWaiting {
		return nil, ErrRaceInProgress
	}
	if len(room.Players) >= room.MaxPlayers {
		return nil, ErrRoomFull
	}
	for i := range room.Players {
		if room.Players[i].Username == p.Username {
			return nil, ErrUsernameTaken
		}
	}
	room.Players = append(room.Players, p)
	return cloneRoom(room), nil
}

func (m *Memory) RemovePlayer(ctx context.Context, roomID, socketID string) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	removePlayerLocked(room, socketID)
	return cloneRoom(room), nil
}

func removePlayerLocked(room *models.Room, socketID string) bool {
	for i := range room.Players {
		if room.Players[i].SocketID == socketID {
			room.Players = append(room.Players[:i], room.Players[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Memory) RemovePlayerEverywhere(ctx context.Context, socketID string) ([]*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, room := range m.rooms {
		if room.FindPlayer(socketID) != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	updated := make([]*models.Room, 0, len(ids))
	for _, id := range ids {
		room := m.rooms[id]
		removePlayerLocked(room, socketID)
		updated = append(updated, cloneRoom(room))
	}
	return updated, nil
}

func (m *Memory) SetPlayerProgress(ctx context.Context, roomID, socketID string, u models.ProgressUpdate) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	p := room.FindPlayer(socketID)
	if p == nil {
		return nil, ErrNotFound
	}
	p.Progress = u.Progress
	p.WPM = u.WPM
	p.Accuracy = u.Accuracy
	p.Errors = u.Errors
	p.Finished = u.Finished
	return cloneRoom(room), nil
}

func (m *Memory) SetPlayerFinished(ctx context.Context, roomID, socketID string, f models.FinishUpdate, at time.Time) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	p := room.FindPlayer(socketID)
	if p == nil {
		return nil, ErrNotFound
	}
	finishedAt := at
	p.Finished = true
	p.FinishedAt = &finishedAt
	p.Progress = 100
	p.WPM = f.WPM
	p.Accuracy = f.Accuracy
	p.Errors = f.Errors
	p.Time = f.Time
	return cloneRoom(room), nil
}

func (m *Memory) BeginStarting(ctx context.Context, roomID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return false, ErrNotFound
	}
	if room.Status != models.StatusWaiting {
		return false, nil
	}
	room.Status = models.StatusStarting
	return true, nil
}

func (m *Memory) MarkStarted(ctx context.Context, roomID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return false, ErrNotFound
	}
	if room.Status != models.StatusStarting {
		return false, nil
	}
	startedAt := at
	room.Status = models.StatusActive
	room.StartedAt = &startedAt
	return true, nil
}

func (m *Memory) FinishRoom(ctx context.Context, roomID, winnerID, winnerName string, at time.Time) (*models.Room, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, false, ErrNotFound
	}
	if room.Status == models.StatusFinished {
		return cloneRoom(room), false, nil
	}
	finishedAt := at
	room.Status = models.StatusFinished
	room.FinishedAt = &finishedAt
	if winnerID != "" {
		room.WinnerID = winnerID
		room.WinnerName = winnerName
	}
	return cloneRoom(room), true, nil
}

func (m *Memory) InsertChallenge(ctx context.Context, ch *models.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.challenges[ch.ChallengeID]; exists {
		return fmt.Errorf("challenge %s already exists", ch.ChallengeID)
	}
	m.challenges[ch.ChallengeID] = cloneChallenge(ch)
	return nil
}

func (m *Memory) FindChallenge(ctx context.Context, challengeID string) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[challengeID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneChallenge(ch), nil
}

func (m *Memory) AcceptChallenge(ctx context.Context, challengeID, opponentID, opponentName string) (*models.Challenge, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[challengeID]
	if !ok {
		return nil, false, ErrNotFound
	}
	if ch.Status != models.ChallengePending {
		return cloneChallenge(ch), false, nil
	}
	ch.Status = models.ChallengeAccepted
	ch.OpponentID = opponentID
	ch.OpponentName = opponentName
	return cloneChallenge(ch), true, nil
}

func (m *Memory) CompleteChallenge(ctx context.Context, challengeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.challenges[challengeID]; ok {
		ch.Status = models.ChallengeCompleted
	}
	return nil
}

func (m *Memory) InsertRaceResult(ctx context.Context, res *models.RaceResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *res
	cp.Players = make([]models.Player, len(res.Players))
	copy(cp.Players, res.Players)
	m.results = append(m.results, cp)
	return nil
}

func (m *Memory) RecentResults(ctx context.Context, limit int) ([]models.RaceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.results)
	if limit > n {
		limit = n
	}
	out := make([]models.RaceResult, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.results[i])
	}
	return out, nil
}
