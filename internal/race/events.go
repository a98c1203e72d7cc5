// internal/race/events.go
package race

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thitainfo/typer-service/internal/models"
)

// Outbound event names on the broadcast gateway.
const (
	EventJoinedRoom        = "joined-room"
	EventRoomUpdate        = "room-update"
	EventRaceCountdown     = "race-countdown"
	EventRaceStarted       = "race-started"
	EventRaceFinished      = "race-finished"
	EventChallengeAccepted = "challenge-accepted"
	EventError             = "error"
)

// Event is the closed set of inbound client actions. The transport decodes
// wire messages into one of these variants and feeds them to
// Controller.Handle, which gives the dispatcher an exhaustive type switch
// instead of string-keyed callbacks.
type Event interface{ isEvent() }

type JoinRoom struct {
	RoomID   string
	Username string
}

type LeaveRoom struct {
	RoomID string
}

type PlayerProgress struct {
	RoomID   string
	Progress float64
	WPM      float64
	Accuracy float64
	Errors   int
	Finished bool
}

type PlayerFinished struct {
	RoomID   string
	WPM      float64
	Accuracy float64
	Errors   int
	Time     float64
}

type StartRace struct {
	RoomID string
}

type AcceptChallenge struct {
	ChallengeID string
	Username    string
}

func (JoinRoom) isEvent()        {}
func (LeaveRoom) isEvent()       {}
func (PlayerProgress) isEvent()  {}
func (PlayerFinished) isEvent()  {}
func (StartRace) isEvent()       {}
func (AcceptChallenge) isEvent() {}

// Outbound payload shapes.

type ErrorPayload struct {
	Message string `json:"message"`
}

type JoinedRoomPayload struct {
	RoomID string        `json:"roomId"`
	Player models.Player `json:"player"`
}

type CountdownPayload struct {
	Countdown int `json:"countdown"`
}

type RaceStartedPayload struct {
	StartedAt time.Time `json:"startedAt"`
}

type RaceFinishedPayload struct {
	RoomID  string          `json:"roomId"`
	Results []models.Player `json:"results"`
	Winner  *models.Player  `json:"winner"`
}

type ChallengeAcceptedPayload struct {
	ChallengeID string `json:"challengeId"`
	RoomID      string `json:"roomId"`
}

// Handle is the single entry point for inbound events. User-visible failures
// are unicast to the requesting connection; everything else is logged and
// dropped, leaving room state as of the last successful write.
func (c *Controller) Handle(ctx context.Context, socketID string, ev Event) {
	var err error
	switch e := ev.(type) {
	case JoinRoom:
		err = c.Join(ctx, socketID, e)
	case LeaveRoom:
		err = c.Leave(ctx, socketID, e.RoomID)
	case PlayerProgress:
		err = c.Progress(ctx, socketID, e)
	case PlayerFinished:
		err = c.Finish(ctx, socketID, e)
	case StartRace:
		err = c.StartRace(ctx, socketID, e.RoomID)
	case AcceptChallenge:
		err = c.Accept(ctx, socketID, e)
	}
	if err == nil {
		return
	}
	if msg, visible := clientMessage(ev, err); visible {
		c.gateway.EmitToConn(socketID, EventError, ErrorPayload{Message: msg})
		return
	}
	c.log.WithFields(logrus.Fields{
		"socketId": socketID,
		"event":    eventName(ev),
	}).WithError(err).Error("event handling failed")
}

func eventName(ev Event) string {
	switch ev.(type) {
	case JoinRoom:
		return "join-room"
	case LeaveRoom:
		return "leave-room"
	case PlayerProgress:
		return "player-progress"
	case PlayerFinished:
		return "player-finished"
	case StartRace:
		return "start-race"
	case AcceptChallenge:
		return "accept-challenge"
	default:
		return "unknown"
	}
}
