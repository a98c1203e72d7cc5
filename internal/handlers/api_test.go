// internal/handlers/api_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/thitainfo/typer-service/internal/auth"
	"github.com/thitainfo/typer-service/internal/broadcast"
	"github.com/thitainfo/typer-service/internal/models"
	"github.com/thitainfo/typer-service/internal/race"
	"github.com/thitainfo/typer-service/internal/store"
)

func newTestServer() (*TyperServer, *store.Memory) {
	auth.Init() // ephemeral keys, no files needed
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	mem := store.NewMemory()
	hub := broadcast.NewHub(logger)
	ctrl := race.NewController(race.Config{
		Rooms:      mem,
		Challenges: mem,
		Results:    mem,
		Gateway:    hub,
		Clock:      clockwork.NewFakeClock(),
		Logger:     logger,
	})
	return NewTyperServer(ctrl, hub, mem, mem, logger, "http://localhost:3000"), mem
}

// TestCreateRoom checks that /api/typer/create-room builds a waiting room and
// sets an identity cookie for a cookie-less caller.
func TestCreateRoom(t *testing.T) {
	srv, _ := newTestServer()

	body := `{"maxPlayers":4}`
	req := httptest.NewRequest("POST", "/api/typer/create-room", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	CreateRoomHandler(srv).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var room models.Room
	if err := json.Unmarshal(w.Body.Bytes(), &room); err != nil {
		t.Fatalf("failed to decode room: %v", err)
	}
	if len(room.RoomID) != 6 {
		t.Fatalf("expected 6-char room code, got %q", room.RoomID)
	}
	if room.Status != models.StatusWaiting {
		t.Fatalf("expected waiting room, got %s", room.Status)
	}
	if room.MaxPlayers != 4 {
		t.Fatalf("expected maxPlayers 4, got %d", room.MaxPlayers)
	}
	if room.Text == "" {
		t.Fatalf("room has no text")
	}
	if room.HostID == "" {
		t.Fatalf("room has no host")
	}

	found := false
	for _, c := range w.Result().Cookies() {
		if c.Name == "typer_token" && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected typer_token cookie to be set")
	}
}

// TestCreateRoomKeepsIdentity checks that an existing cookie pins the host id.
func TestCreateRoomKeepsIdentity(t *testing.T) {
	srv, _ := newTestServer()

	token, _ := auth.CreateConnectionToken("conn-abc")
	req := httptest.NewRequest("POST", "/api/typer/create-room", bytes.NewBufferString(`{}`))
	req.Header.Set("Cookie", "typer_token="+token)
	w := httptest.NewRecorder()

	CreateRoomHandler(srv).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var room models.Room
	if err := json.Unmarshal(w.Body.Bytes(), &room); err != nil {
		t.Fatalf("failed to decode room: %v", err)
	}
	if room.HostID != "conn-abc" {
		t.Fatalf("expected host conn-abc, got %q", room.HostID)
	}
}

func TestJoinRoomCheck(t *testing.T) {
	srv, mem := newTestServer()

	room, err := srv.Controller.Registry().CreateRoom(context.Background(), "h1", "text", 1)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	check := func(roomID string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"roomId": roomID})
		req := httptest.NewRequest("POST", "/api/typer/join-room", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		JoinRoomHandler(srv).ServeHTTP(w, req)
		return w
	}

	if w := check(room.RoomID); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for joinable room, got %d", w.Code)
	}
	if w := check("NOSUCH"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown room, got %d", w.Code)
	}

	// Fill the single slot, expect conflict.
	if _, err := mem.AppendPlayer(context.Background(), room.RoomID, models.NewPlayer("s1", "alice", time.Now())); err != nil {
		t.Fatalf("append player: %v", err)
	}
	if w := check(room.RoomID); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for full room, got %d", w.Code)
	}
}

func TestGetRoom(t *testing.T) {
	srv, _ := newTestServer()

	room, err := srv.Controller.Registry().CreateRoom(context.Background(), "h1", "text", 2)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	r := httptest.NewRequest("GET", "/api/typer/room/"+room.RoomID, nil)
	w := httptest.NewRecorder()
	GetRoomHandler(srv).ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	r = httptest.NewRequest("GET", "/api/typer/room/NOSUCH", nil)
	w = httptest.NewRecorder()
	GetRoomHandler(srv).ServeHTTP(w, r)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCreateAndGetChallenge(t *testing.T) {
	srv, _ := newTestServer()

	body := `{"challengerName":"alice"}`
	r := httptest.NewRequest("POST", "/api/typer/create-challenge", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	CreateChallengeHandler(srv).ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var ch models.Challenge
	if err := json.Unmarshal(w.Body.Bytes(), &ch); err != nil {
		t.Fatalf("failed to decode challenge: %v", err)
	}
	if ch.ChallengeID == "" || ch.ChallengeLink == "" {
		t.Fatalf("challenge missing id or link: %+v", ch)
	}
	if ch.Status != models.ChallengePending {
		t.Fatalf("expected pending challenge, got %s", ch.Status)
	}

	r = httptest.NewRequest("GET", "/api/typer/challenge/"+ch.ChallengeID, nil)
	w = httptest.NewRecorder()
	GetChallengeHandler(srv).ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	// Missing name is rejected.
	r = httptest.NewRequest("POST", "/api/typer/create-challenge", bytes.NewBufferString(`{}`))
	w = httptest.NewRecorder()
	CreateChallengeHandler(srv).ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing challengerName, got %d", w.Code)
	}
}

func TestHistory(t *testing.T) {
	srv, mem := newTestServer()

	for i := 0; i < 3; i++ {
		if err := mem.InsertRaceResult(context.Background(), &models.RaceResult{RoomID: "R", WinnerName: "alice"}); err != nil {
			t.Fatalf("insert result: %v", err)
		}
	}

	r := httptest.NewRequest("GET", "/api/typer/history?limit=2", nil)
	w := httptest.NewRecorder()
	HistoryHandler(srv).ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var results []models.RaceResult
	if err := json.Unmarshal(w.Body.Bytes(), &results); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestDecodeEvent(t *testing.T) {
	in := inboundMessage{Event: "join-room", Data: []byte(`{"roomId":"ABC123","username":"alice"}`)}
	ev, ok := decodeEvent(in)
	if !ok {
		t.Fatalf("join-room did not decode")
	}
	join, isJoin := ev.(race.JoinRoom)
	if !isJoin || join.RoomID != "ABC123" || join.Username != "alice" {
		t.Fatalf("bad decode: %+v", ev)
	}

	in = inboundMessage{Event: "player-progress", Data: []byte(`{"roomId":"ABC123","progress":55.5,"wpm":80,"accuracy":97,"errors":2}`)}
	ev, ok = decodeEvent(in)
	if !ok {
		t.Fatalf("player-progress did not decode")
	}
	prog := ev.(race.PlayerProgress)
	if prog.Progress != 55.5 || prog.WPM != 80 {
		t.Fatalf("bad progress decode: %+v", prog)
	}

	if _, ok := decodeEvent(inboundMessage{Event: "mystery"}); ok {
		t.Fatalf("unknown event must not decode")
	}
}
