// internal/store/mongo.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/thitainfo/typer-service/internal/models"
)

// Mongo implements RoomStore, ChallengeStore and ResultStore on a MongoDB
// database. Room documents live in typer_rooms, challenges in
// typer_challenges, immutable results in typer_race_results.
type Mongo struct {
	client     *mongo.Client
	rooms      *mongo.Collection
	challenges *mongo.Collection
	results    *mongo.Collection
}

// Connect dials MongoDB and ensures the unique code indexes exist.
func Connect(ctx context.Context, uri, dbName string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(dbName)
	m := &Mongo{
		client:     client,
		rooms:      db.Collection("typer_rooms"),
		challenges: db.Collection("typer_challenges"),
		results:    db.Collection("typer_race_results"),
	}

	unique := options.Index().SetUnique(true)
	if _, err := m.rooms.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "roomId", Value: 1}}, Options: unique,
	}); err != nil {
		return nil, fmt.Errorf("ensure roomId index: %w", err)
	}
	if _, err := m.challenges.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "challengeId", Value: 1}}, Options: unique,
	}); err != nil {
		return nil, fmt.Errorf("ensure challengeId index: %w", err)
	}
	return m, nil
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) InsertRoom(ctx context.Context, room *models.Room) error {
	_, err := m.rooms.InsertOne(ctx, room)
	return err
}

func (m *Mongo) FindRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := m.rooms.FindOne(ctx, bson.M{"roomId": roomID}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (m *Mongo) AppendPlayer(ctx context.Context, roomID string, p models.Player) (*models.Room, error) {
	filter := bson.M{
		"roomId":           roomID,
		"status":           models.StatusWaiting,
		"players.username": bson.M{"$ne": p.Username},
		"$expr":            bson.M{"$lt": bson.A{bson.M{"$size": "$players"}, "$maxPlayers"}},
	}
	update := bson.M{"$push": bson.M{"players": p}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var room models.Room
	err := m.rooms.FindOneAndUpdate(ctx, filter, update, opts).Decode(&room)
	if err == nil {
		return &room, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// The guarded update matched nothing; re-read to report which invariant
	// blocked the join.
	current, ferr := m.FindRoom(ctx, roomID)
	if ferr != nil {
		return nil, ferr
	}
	switch {
	case current.Status != models.StatusWaiting:
		return nil, ErrRaceInProgress
	case len(current.Players) >= current.MaxPlayers:
		return nil, ErrRoomFull
	default:
		return nil, ErrUsernameTaken
	}
}

func (m *Mongo) RemovePlayer(ctx context.Context, roomID, socketID string) (*models.Room, error) {
	update := bson.M{"$pull": bson.M{"players": bson.M{"socketId": socketID}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var room models.Room
	err := m.rooms.FindOneAndUpdate(ctx, bson.M{"roomId": roomID}, update, opts).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (m *Mongo) RemovePlayerEverywhere(ctx context.Context, socketID string) ([]*models.Room, error) {
	cursor, err := m.rooms.Find(ctx, bson.M{"players.socketId": socketID})
	if err != nil {
		return nil, err
	}
	var occupied []models.Room
	if err := cursor.All(ctx, &occupied); err != nil {
		return nil, err
	}

	updated := make([]*models.Room, 0, len(occupied))
	for i := range occupied {
		room, err := m.RemovePlayer(ctx, occupied[i].RoomID, socketID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return updated, err
		}
		updated = append(updated, room)
	}
	return updated, nil
}

func (m *Mongo) SetPlayerProgress(ctx context.Context, roomID, socketID string, u models.ProgressUpdate) (*models.Room, error) {
	filter := bson.M{"roomId": roomID, "players.socketId": socketID}
	update := bson.M{"$set": bson.M{
		"players.$.progress": u.Progress,
		"players.$.wpm":      u.WPM,
		"players.$.accuracy": u.Accuracy,
		"players.$.errors":   u.Errors,
		"players.$.finished": u.Finished,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var room models.Room
	err := m.rooms.FindOneAndUpdate(ctx, filter, update, opts).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (m *Mongo) SetPlayerFinished(ctx context.Context, roomID, socketID string, f models.FinishUpdate, at time.Time) (*models.Room, error) {
	filter := bson.M{"roomId": roomID, "players.socketId": socketID}
	update := bson.M{"$set": bson.M{
		"players.$.finished":   true,
		"players.$.finishedAt": at,
		"players.$.progress":   100.0,
		"players.$.wpm":        f.WPM,
		"players.$.accuracy":   f.Accuracy,
		"players.$.errors":     f.Errors,
		"players.$.time":       f.Time,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var room models.Room
	err := m.rooms.FindOneAndUpdate(ctx, filter, update, opts).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (m *Mongo) BeginStarting(ctx context.Context, roomID string) (bool, error) {
	res, err := m.rooms.UpdateOne(ctx,
		bson.M{"roomId": roomID, "status": models.StatusWaiting},
		bson.M{"$set": bson.M{"status": models.StatusStarting}},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		if _, ferr := m.FindRoom(ctx, roomID); ferr != nil {
			return false, ferr
		}
		return false, nil
	}
	return true, nil
}

func (m *Mongo) MarkStarted(ctx context.Context, roomID string, at time.Time) (bool, error) {
	res, err := m.rooms.UpdateOne(ctx,
		bson.M{"roomId": roomID, "status": models.StatusStarting},
		bson.M{"$set": bson.M{"status": models.StatusActive, "startedAt": at}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (m *Mongo) FinishRoom(ctx context.Context, roomID, winnerID, winnerName string, at time.Time) (*models.Room, bool, error) {
	set := bson.M{"status": models.StatusFinished, "finishedAt": at}
	if winnerID != "" {
		set["winnerId"] = winnerID
		set["winnerName"] = winnerName
	}
	filter := bson.M{"roomId": roomID, "status": bson.M{"$ne": models.StatusFinished}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var room models.Room
	err := m.rooms.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&room)
	if err == nil {
		return &room, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	// Either the room is gone or another finisher already closed the race.
	current, ferr := m.FindRoom(ctx, roomID)
	if ferr != nil {
		return nil, false, ferr
	}
	return current, false, nil
}

func (m *Mongo) InsertChallenge(ctx context.Context, ch *models.Challenge) error {
	_, err := m.challenges.InsertOne(ctx, ch)
	return err
}

func (m *Mongo) FindChallenge(ctx context.Context, challengeID string) (*models.Challenge, error) {
	var ch models.Challenge
	err := m.challenges.FindOne(ctx, bson.M{"challengeId": challengeID}).Decode(&ch)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (m *Mongo) AcceptChallenge(ctx context.Context, challengeID, opponentID, opponentName string) (*models.Challenge, bool, error) {
	filter := bson.M{"challengeId": challengeID, "status": models.ChallengePending}
	update := bson.M{"$set": bson.M{
		"status":       models.ChallengeAccepted,
		"opponentId":   opponentID,
		"opponentName": opponentName,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ch models.Challenge
	err := m.challenges.FindOneAndUpdate(ctx, filter, update, opts).Decode(&ch)
	if err == nil {
		return &ch, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	current, ferr := m.FindChallenge(ctx, challengeID)
	if ferr != nil {
		return nil, false, ferr
	}
	return current, false, nil
}

func (m *Mongo) CompleteChallenge(ctx context.Context, challengeID string) error {
	_, err := m.challenges.UpdateOne(ctx,
		bson.M{"challengeId": challengeID},
		bson.M{"$set": bson.M{"status": models.ChallengeCompleted}},
	)
	return err
}

func (m *Mongo) InsertRaceResult(ctx context.Context, res *models.RaceResult) error {
	_, err := m.results.InsertOne(ctx, res)
	return err
}

func (m *Mongo) RecentResults(ctx context.Context, limit int) ([]models.RaceResult, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "finishedAt", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := m.results.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var results []models.RaceResult
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}
