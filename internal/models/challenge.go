// internal/models/challenge.go
package models

import "time"

// ChallengeStatus tracks a challenge's lifecycle: pending -> accepted ->
// completed. Acceptance spawns a two-player room.
type ChallengeStatus string

const (
	ChallengePending   ChallengeStatus = "pending"
	ChallengeAccepted  ChallengeStatus = "accepted"
	ChallengeCompleted ChallengeStatus = "completed"
)

// Challenge is a deferred, link-shareable room-creation trigger. It expires
// 24 hours after creation if never accepted.
type Challenge struct {
	ChallengeID    string          `bson:"challengeId" json:"challengeId"`
	ChallengerID   string          `bson:"challengerId" json:"challengerId"`
	ChallengerName string          `bson:"challengerName" json:"challengerName"`
	ChallengeLink  string          `bson:"challengeLink,omitempty" json:"challengeLink,omitempty"`
	OpponentID     string          `bson:"opponentId,omitempty" json:"opponentId,omitempty"`
	OpponentName   string          `bson:"opponentName,omitempty" json:"opponentName,omitempty"`
	Status         ChallengeStatus `bson:"status" json:"status"`
	Text           string          `bson:"text" json:"text"`
	CreatedAt      time.Time       `bson:"createdAt" json:"createdAt"`
	ExpiresAt      time.Time       `bson:"expiresAt" json:"expiresAt"`
}

// Expired reports whether the challenge is past its TTL at the given instant.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
