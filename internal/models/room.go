// internal/models/room.go
package models

import "time"

// RoomStatus tracks the lifecycle of a race room. Transitions only move
// forward: waiting -> starting -> active -> finished.
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusStarting RoomStatus = "starting"
	StatusActive   RoomStatus = "active"
	StatusFinished RoomStatus = "finished"
)

// Room is a typing-race session keyed by a short code. It is the unit of
// shared mutable state; only the race controller transitions Status.
type Room struct {
	RoomID      string     `bson:"roomId" json:"roomId"`
	HostID      string     `bson:"hostId" json:"hostId"`
	Text        string     `bson:"text" json:"text"`
	Status      RoomStatus `bson:"status" json:"status"`
	MaxPlayers  int        `bson:"maxPlayers" json:"maxPlayers"`
	Players     []Player   `bson:"players" json:"players"`
	WinnerID    string     `bson:"winnerId,omitempty" json:"winnerId,omitempty"`
	WinnerName  string     `bson:"winnerName,omitempty" json:"winnerName,omitempty"`
	ChallengeID string     `bson:"challengeId,omitempty" json:"challengeId,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	StartedAt   *time.Time `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	FinishedAt  *time.Time `bson:"finishedAt,omitempty" json:"finishedAt,omitempty"`
}

// Player is a member of a room's roster. SocketID is the opaque connection
// identifier and is unique within the room, as is Username.
type Player struct {
	SocketID   string     `bson:"socketId" json:"socketId"`
	Username   string     `bson:"username" json:"username"`
	Progress   float64    `bson:"progress" json:"progress"`
	WPM        float64    `bson:"wpm" json:"wpm"`
	Accuracy   float64    `bson:"accuracy" json:"accuracy"`
	Errors     int        `bson:"errors" json:"errors"`
	Finished   bool       `bson:"finished" json:"finished"`
	Time       float64    `bson:"time,omitempty" json:"time,omitempty"`
	JoinedAt   time.Time  `bson:"joinedAt" json:"joinedAt"`
	FinishedAt *time.Time `bson:"finishedAt,omitempty" json:"finishedAt,omitempty"`
}

// NewPlayer returns the roster entry appended on join.
func NewPlayer(socketID, username string, now time.Time) Player {
	return Player{
		SocketID: socketID,
		Username: username,
		Progress: 0,
		WPM:      0,
		Accuracy: 100,
		Errors:   0,
		Finished: false,
		JoinedAt: now,
	}
}

// FindPlayer returns the roster entry for socketID, or nil.
func (r *Room) FindPlayer(socketID string) *Player {
	for i := range r.Players {
		if r.Players[i].SocketID == socketID {
			return &r.Players[i]
		}
	}
	return nil
}

// ProgressUpdate is a self-reported telemetry snapshot. Fields overwrite the
// player's previous snapshot wholesale.
type ProgressUpdate struct {
	Progress float64
	WPM      float64
	Accuracy float64
	Errors   int
	Finished bool
}

// FinishUpdate carries the client-reported metrics attached to a finish event.
type FinishUpdate struct {
	WPM      float64
	Accuracy float64
	Errors   int
	Time     float64
}

// RaceResult is the immutable record persisted when a race reaches finished.
// WinnerID is empty when the race ended by timeout with no finisher.
type RaceResult struct {
	RoomID     string    `bson:"roomId" json:"roomId"`
	Players    []Player  `bson:"players" json:"players"`
	WinnerID   string    `bson:"winnerId,omitempty" json:"winnerId,omitempty"`
	WinnerName string    `bson:"winnerName,omitempty" json:"winnerName,omitempty"`
	FinishedAt time.Time `bson:"finishedAt" json:"finishedAt"`
}
