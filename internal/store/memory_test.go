// internal/store/memory_test.go
package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thitainfo/typer-service/internal/models"
)

func seedRoom(t *testing.T, m *Memory, maxPlayers int) *models.Room {
	t.Helper()
	room := &models.Room{
		RoomID:     "ROOM01",
		HostID:     "host",
		Text:       "text",
		Status:     models.StatusWaiting,
		MaxPlayers: maxPlayers,
		Players:    []models.Player{},
		CreatedAt:  time.Now(),
	}
	require.NoError(t, m.InsertRoom(context.Background(), room))
	return room
}

func TestInsertRoomDuplicate(t *testing.T) {
	m := NewMemory()
	seedRoom(t, m, 4)
	err := m.InsertRoom(context.Background(), &models.Room{RoomID: "ROOM01"})
	assert.Error(t, err)
}

func TestAppendPlayerGuards(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedRoom(t, m, 2)
	now := time.Now()

	_, err := m.AppendPlayer(ctx, "ROOM01", models.NewPlayer("s1", "alice", now))
	require.NoError(t, err)

	// duplicate username
	_, err = m.AppendPlayer(ctx, "ROOM01", models.NewPlayer("s2", "alice", now))
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = m.AppendPlayer(ctx, "ROOM01", models.NewPlayer("s2", "bob", now))
	require.NoError(t, err)

	// capacity
	_, err = m.AppendPlayer(ctx, "ROOM01", models.NewPlayer("s3", "carol", now))
	assert.ErrorIs(t, err, ErrRoomFull)

	_, err = m.AppendPlayer(ctx, "NOSUCH", models.NewPlayer("s3", "carol", now))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendPlayerRejectsNonWaiting(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedRoom(t, m, 4)

	ok, err := m.BeginStarting(ctx, "ROOM01")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = m.AppendPlayer(ctx, "ROOM01", models.NewPlayer("s1", "alice", time.Now()))
	assert.ErrorIs(t, err, ErrRaceInProgress)
}

func TestConcurrentAppendRespectsCapacity(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedRoom(t, m, 5)

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := string(rune('a' + i))
			_, errs[i] = m.AppendPlayer(ctx, "ROOM01", models.NewPlayer(name, name, time.Now()))
		}(i)
	}
	wg.Wait()

	joined := 0
	for _, err := range errs {
		if err == nil {
			joined++
		}
	}
	assert.Equal(t, 5, joined)

	room, err := m.FindRoom(ctx, "ROOM01")
	require.NoError(t, err)
	assert.Len(t, room.Players, 5)
}

func TestStatusTransitions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedRoom(t, m, 4)

	ok, err := m.MarkStarted(ctx, "ROOM01", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "cannot activate a room that is not starting")

	ok, err = m.BeginStarting(ctx, "ROOM01")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.BeginStarting(ctx, "ROOM01")
	require.NoError(t, err)
	assert.False(t, ok, "starting is one-shot")

	at := time.Now()
	ok, err = m.MarkStarted(ctx, "ROOM01", at)
	require.NoError(t, err)
	assert.True(t, ok)

	room, err := m.FindRoom(ctx, "ROOM01")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, room.Status)
	require.NotNil(t, room.StartedAt)
	assert.Equal(t, at.Unix(), room.StartedAt.Unix())
}

func TestFinishRoomExactlyOnce(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedRoom(t, m, 4)

	_, err := m.AppendPlayer(ctx, "ROOM01", models.NewPlayer("s1", "alice", time.Now()))
	require.NoError(t, err)

	room, won, err := m.FinishRoom(ctx, "ROOM01", "s1", "alice", time.Now())
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, models.StatusFinished, room.Status)
	assert.Equal(t, "alice", room.WinnerName)

	room, won, err = m.FinishRoom(ctx, "ROOM01", "s2", "bob", time.Now())
	require.NoError(t, err)
	assert.False(t, won)
	assert.Equal(t, "alice", room.WinnerName, "winner is immutable")

	_, _, err = m.FinishRoom(ctx, "NOSUCH", "s1", "alice", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentFinishSingleWinner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedRoom(t, m, 10)

	var wg sync.WaitGroup
	wins := make([]bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, won, err := m.FinishRoom(ctx, "ROOM01", "s", "p", time.Now())
			require.NoError(t, err)
			wins[i] = won
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, w := range wins {
		if w {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestSetPlayerProgressAndFinish(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedRoom(t, m, 4)
	_, err := m.AppendPlayer(ctx, "ROOM01", models.NewPlayer("s1", "alice", time.Now()))
	require.NoError(t, err)

	room, err := m.SetPlayerProgress(ctx, "ROOM01", "s1", models.ProgressUpdate{Progress: 50, WPM: 70, Accuracy: 96, Errors: 2})
	require.NoError(t, err)
	p := room.FindPlayer("s1")
	require.NotNil(t, p)
	assert.Equal(t, 50.0, p.Progress)
	assert.False(t, p.Finished)

	at := time.Now()
	room, err = m.SetPlayerFinished(ctx, "ROOM01", "s1", models.FinishUpdate{WPM: 72, Accuracy: 97, Errors: 2, Time: 40.5}, at)
	require.NoError(t, err)
	p = room.FindPlayer("s1")
	require.NotNil(t, p)
	assert.True(t, p.Finished)
	assert.Equal(t, 100.0, p.Progress)
	assert.Equal(t, 40.5, p.Time)
	require.NotNil(t, p.FinishedAt)

	_, err = m.SetPlayerProgress(ctx, "ROOM01", "ghost", models.ProgressUpdate{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemovePlayerEverywhere(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	for _, id := range []string{"AAAAAA", "BBBBBB"} {
		require.NoError(t, m.InsertRoom(ctx, &models.Room{
			RoomID: id, HostID: "h", Status: models.StatusWaiting, MaxPlayers: 4,
			Players: []models.Player{}, CreatedAt: now,
		}))
		_, err := m.AppendPlayer(ctx, id, models.NewPlayer("s1", "alice", now))
		require.NoError(t, err)
	}

	rooms, err := m.RemovePlayerEverywhere(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "AAAAAA", rooms[0].RoomID)
	for _, r := range rooms {
		assert.Nil(t, r.FindPlayer("s1"))
	}

	// Idempotent.
	rooms, err = m.RemovePlayerEverywhere(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestRecentResultsNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, m.InsertRaceResult(ctx, &models.RaceResult{
			RoomID:     string(rune('A' + i)),
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	results, err := m.RecentResults(ctx, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "C", results[0].RoomID)
	assert.Equal(t, "B", results[1].RoomID)
}

func TestChallengeAcceptCAS(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.InsertChallenge(ctx, &models.Challenge{
		ChallengeID: "challenge_1_abc",
		Status:      models.ChallengePending,
	}))

	ch, ok, err := m.AcceptChallenge(ctx, "challenge_1_abc", "s2", "bob")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.ChallengeAccepted, ch.Status)

	_, ok, err = m.AcceptChallenge(ctx, "challenge_1_abc", "s3", "carol")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.CompleteChallenge(ctx, "challenge_1_abc"))
	got, err := m.FindChallenge(ctx, "challenge_1_abc")
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeCompleted, got.Status)
}
