// internal/race/controller.go
package race

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/thitainfo/typer-service/internal/broadcast"
	"github.com/thitainfo/typer-service/internal/models"
	"github.com/thitainfo/typer-service/internal/store"
)

// ResultQueue receives a copy of every finished race for asynchronous
// processing (the historian pipeline). Optional; a nil queue disables it.
type ResultQueue interface {
	PublishRaceResult(ctx context.Context, res *models.RaceResult) error
}

// Config wires a Controller. Rooms, Gateway, Clock and Logger are required;
// the rest degrade gracefully when nil.
type Config struct {
	Rooms      store.RoomStore
	Challenges store.ChallengeStore
	Results    store.ResultStore
	Gateway    broadcast.Gateway
	Clock      clockwork.Clock
	Logger     *logrus.Logger
	Queue      ResultQueue

	// RaceTimeout force-finishes a race that is still active this long after
	// startedAt. Defaults to 5 minutes.
	RaceTimeout time.Duration
	// CountdownFrom is the first countdown tick. Defaults to 3.
	CountdownFrom int
}

// Controller owns room status transitions: the start countdown, first
// finisher arbitration, and the race timeout. All other mutations are
// delegated to the registry, roster and tracker; the controller is the only
// component that moves Status forward.
type Controller struct {
	registry   *Registry
	roster     *Roster
	tracker    *Tracker
	reconciler *Reconciler

	rooms      store.RoomStore
	challenges store.ChallengeStore
	results    store.ResultStore
	gateway    broadcast.Gateway
	clock      clockwork.Clock
	log        *logrus.Logger
	queue      ResultQueue

	raceTimeout   time.Duration
	countdownFrom int

	mu       sync.Mutex
	timeouts map[string]clockwork.Timer
}

func NewController(cfg Config) *Controller {
	if cfg.RaceTimeout <= 0 {
		cfg.RaceTimeout = 5 * time.Minute
	}
	if cfg.CountdownFrom <= 0 {
		cfg.CountdownFrom = 3
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Controller{
		registry:      NewRegistry(cfg.Rooms, cfg.Clock),
		roster:        NewRoster(cfg.Rooms, cfg.Clock),
		tracker:       NewTracker(cfg.Rooms),
		reconciler:    NewReconciler(cfg.Rooms),
		rooms:         cfg.Rooms,
		challenges:    cfg.Challenges,
		results:       cfg.Results,
		gateway:       cfg.Gateway,
		clock:         cfg.Clock,
		log:           cfg.Logger,
		queue:         cfg.Queue,
		raceTimeout:   cfg.RaceTimeout,
		countdownFrom: cfg.CountdownFrom,
		timeouts:      make(map[string]clockwork.Timer),
	}
}

// Registry exposes room creation/lookup for the HTTP surface.
func (c *Controller) Registry() *Registry { return c.registry }

// Join adds the player, subscribes the connection to the room's broadcast
// group and acks the joiner.
func (c *Controller) Join(ctx context.Context, socketID string, ev JoinRoom) error {
	room, player, err := c.roster.Join(ctx, ev.RoomID, socketID, ev.Username)
	if err != nil {
		return err
	}
	c.gateway.Subscribe(ev.RoomID, socketID)
	c.gateway.EmitToRoom(ev.RoomID, EventRoomUpdate, room)
	c.gateway.EmitToConn(socketID, EventJoinedRoom, JoinedRoomPayload{RoomID: ev.RoomID, Player: player})
	return nil
}

// Leave removes the player and re-broadcasts if the room still exists.
func (c *Controller) Leave(ctx context.Context, socketID, roomID string) error {
	if roomID == "" {
		return nil
	}
	room, err := c.roster.Leave(ctx, roomID, socketID)
	c.gateway.Unsubscribe(roomID, socketID)
	if err != nil {
		return err
	}
	if room != nil {
		c.gateway.EmitToRoom(roomID, EventRoomUpdate, room)
	}
	return nil
}

// Progress applies a telemetry snapshot and re-broadcasts the room.
func (c *Controller) Progress(ctx context.Context, socketID string, ev PlayerProgress) error {
	room, err := c.tracker.Report(ctx, ev.RoomID, socketID, models.ProgressUpdate{
		Progress: ev.Progress,
		WPM:      ev.WPM,
		Accuracy: ev.Accuracy,
		Errors:   ev.Errors,
		Finished: ev.Finished,
	})
	if err != nil {
		return err
	}
	if room != nil {
		c.gateway.EmitToRoom(ev.RoomID, EventRoomUpdate, room)
	}
	return nil
}

// StartRace begins the countdown. Host-only; the waiting->starting transition
// is a conditional update, so a second start while a countdown is running
// fails InvalidState rather than spawning a second countdown.
func (c *Controller) StartRace(ctx context.Context, socketID, roomID string) error {
	room, err := c.rooms.FindRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !c.roster.IsHost(room, socketID) {
		return ErrForbidden
	}
	ok, err := c.rooms.BeginStarting(ctx, roomID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidState
	}
	go c.runCountdown(roomID)
	return nil
}

// runCountdown broadcasts one tick per second so every subscriber sees the
// same sequence, then flips the room active and arms the race timeout.
func (c *Controller) runCountdown(roomID string) {
	ctx := context.Background()
	for i := c.countdownFrom; i >= 1; i-- {
		c.gateway.EmitToRoom(roomID, EventRaceCountdown, CountdownPayload{Countdown: i})
		c.clock.Sleep(time.Second)
	}

	now := c.clock.Now()
	ok, err := c.rooms.MarkStarted(ctx, roomID, now)
	if err != nil {
		c.log.WithField("roomId", roomID).WithError(err).Error("failed to activate race")
		return
	}
	if !ok {
		return
	}
	c.gateway.EmitToRoom(roomID, EventRaceStarted, RaceStartedPayload{StartedAt: now})

	c.mu.Lock()
	c.timeouts[roomID] = c.clock.AfterFunc(c.raceTimeout, func() {
		c.timeoutRace(roomID)
	})
	c.mu.Unlock()
}

func (c *Controller) cancelTimeout(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timeouts[roomID]; ok {
		t.Stop()
		delete(c.timeouts, roomID)
	}
}

// timeoutRace force-finishes a race nobody completed in time. The same
// conditional finish write used for winner declaration guards against a stale
// timer firing after a normal finish: if the race is already finished this is
// a no-op. Players still unfinished stay finished=false (DNF) and no winner
// is declared.
func (c *Controller) timeoutRace(roomID string) {
	ctx := context.Background()

	c.mu.Lock()
	delete(c.timeouts, roomID)
	c.mu.Unlock()

	room, won, err := c.rooms.FinishRoom(ctx, roomID, "", "", c.clock.Now())
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.WithField("roomId", roomID).WithError(err).Error("race timeout failed")
		}
		return
	}
	if !won {
		return
	}
	c.log.WithField("roomId", roomID).Info("race timed out")
	c.gateway.EmitToRoom(roomID, EventRaceFinished, RaceFinishedPayload{
		RoomID:  roomID,
		Results: room.Players,
		Winner:  nil,
	})
	c.persistResult(ctx, room)
}

// Finish records the reporting player's result unconditionally, then races
// the conditional finish write. Exactly one finisher per room wins that
// write and runs the winner sequence; everyone after only updates their own
// record and re-broadcasts.
func (c *Controller) Finish(ctx context.Context, socketID string, ev PlayerFinished) error {
	if ev.RoomID == "" {
		return nil
	}
	now := c.clock.Now()
	room, err := c.rooms.SetPlayerFinished(ctx, ev.RoomID, socketID, models.FinishUpdate{
		WPM:      ev.WPM,
		Accuracy: ev.Accuracy,
		Errors:   ev.Errors,
		Time:     ev.Time,
	}, now)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	player := room.FindPlayer(socketID)
	if player == nil {
		return nil
	}

	room, won, err := c.rooms.FinishRoom(ctx, ev.RoomID, socketID, player.Username, now)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !won {
		// Late finisher: personal result recorded above, no second winner
		// declaration.
		c.gateway.EmitToRoom(ev.RoomID, EventRoomUpdate, room)
		return nil
	}

	c.cancelTimeout(ev.RoomID)
	winner := room.FindPlayer(socketID)
	c.log.WithFields(logrus.Fields{
		"roomId":   ev.RoomID,
		"winnerId": socketID,
	}).Info("race finished")
	c.gateway.EmitToRoom(ev.RoomID, EventRaceFinished, RaceFinishedPayload{
		RoomID:  ev.RoomID,
		Results: room.Players,
		Winner:  winner,
	})
	c.persistResult(ctx, room)
	return nil
}

// persistResult writes the immutable race record and feeds the historian
// queue. Failures are logged and dropped; the broadcast already happened and
// room state is authoritative.
func (c *Controller) persistResult(ctx context.Context, room *models.Room) {
	finishedAt := c.clock.Now()
	if room.FinishedAt != nil {
		finishedAt = *room.FinishedAt
	}
	res := &models.RaceResult{
		RoomID:     room.RoomID,
		Players:    room.Players,
		WinnerID:   room.WinnerID,
		WinnerName: room.WinnerName,
		FinishedAt: finishedAt,
	}
	if c.results != nil {
		if err := c.results.InsertRaceResult(ctx, res); err != nil {
			c.log.WithField("roomId", room.RoomID).WithError(err).Error("failed to persist race result")
		}
	}
	if c.queue != nil {
		if err := c.queue.PublishRaceResult(ctx, res); err != nil {
			c.log.WithField("roomId", room.RoomID).WithError(err).Warn("failed to enqueue race result")
		}
	}
	if room.ChallengeID != "" && c.challenges != nil {
		if err := c.challenges.CompleteChallenge(ctx, room.ChallengeID); err != nil {
			c.log.WithField("challengeId", room.ChallengeID).WithError(err).Warn("failed to complete challenge")
		}
	}
}

// Disconnect reconciles room state after a connection drop and re-broadcasts
// every affected room.
func (c *Controller) Disconnect(ctx context.Context, socketID string) {
	rooms, err := c.reconciler.Disconnect(ctx, socketID)
	if err != nil {
		c.log.WithField("socketId", socketID).WithError(err).Error("disconnect reconciliation failed")
	}
	for _, room := range rooms {
		c.gateway.EmitToRoom(room.RoomID, EventRoomUpdate, room)
	}
}
