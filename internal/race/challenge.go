// internal/race/challenge.go
package race

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thitainfo/typer-service/internal/models"
	"github.com/thitainfo/typer-service/internal/texts"
)

const challengeTTL = 24 * time.Hour

// newChallengeID builds ids like challenge_1735689600123_k3j9x2m4q. The
// millisecond prefix keeps ids sortable, the random suffix makes collisions
// within the same millisecond implausible.
func newChallengeID(now time.Time) string {
	const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"
	var sb strings.Builder
	for i := 0; i < 9; i++ {
		sb.WriteByte(base36[rand.Intn(len(base36))])
	}
	return fmt.Sprintf("challenge_%d_%s", now.UnixMilli(), sb.String())
}

// CreateChallenge mints a pending head-to-head invite. The returned link is
// what the challenger shares; resolving it shows the challenge page, accepting
// happens over the socket.
func (c *Controller) CreateChallenge(ctx context.Context, challengerID, challengerName, text, baseURL string) (*models.Challenge, error) {
	if challengerID == "" || challengerName == "" {
		return nil, ErrInvalidInput
	}
	if text == "" {
		text = texts.Random()
	}
	now := c.clock.Now()
	ch := &models.Challenge{
		ChallengeID:    newChallengeID(now),
		ChallengerID:   challengerID,
		ChallengerName: challengerName,
		Status:         models.ChallengePending,
		Text:           text,
		CreatedAt:      now,
		ExpiresAt:      now.Add(challengeTTL),
	}
	ch.ChallengeLink = baseURL + "/typer/challenge/" + ch.ChallengeID
	if err := c.challenges.InsertChallenge(ctx, ch); err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{
		"challengeId": ch.ChallengeID,
		"challenger":  challengerName,
	}).Info("challenge created")
	return ch, nil
}

// GetChallenge resolves a challenge link.
func (c *Controller) GetChallenge(ctx context.Context, challengeID string) (*models.Challenge, error) {
	return c.challenges.FindChallenge(ctx, challengeID)
}

// Accept claims a pending challenge for the accepting connection. The
// pending->accepted transition is a conditional update, so of two simultaneous
// acceptors exactly one gets the room; the loser sees InvalidState. Both
// parties are told the room id; they join it like any other room.
func (c *Controller) Accept(ctx context.Context, socketID string, ev AcceptChallenge) error {
	if ev.ChallengeID == "" || ev.Username == "" {
		return ErrInvalidInput
	}
	ch, err := c.challenges.FindChallenge(ctx, ev.ChallengeID)
	if err != nil {
		return err
	}
	if ch.Expired(c.clock.Now()) {
		return ErrChallengeExpired
	}
	ch, ok, err := c.challenges.AcceptChallenge(ctx, ev.ChallengeID, socketID, ev.Username)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidState
	}
	room, err := c.registry.CreateChallengeRoom(ctx, ch)
	if err != nil {
		return err
	}
	payload := ChallengeAcceptedPayload{ChallengeID: ch.ChallengeID, RoomID: room.RoomID}
	c.gateway.EmitToConn(ch.ChallengerID, EventChallengeAccepted, payload)
	c.gateway.EmitToConn(socketID, EventChallengeAccepted, payload)
	c.log.WithFields(logrus.Fields{
		"challengeId": ch.ChallengeID,
		"roomId":      room.RoomID,
	}).Info("challenge accepted")
	return nil
}
