// internal/handlers/api.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/thitainfo/typer-service/internal/cache"
	"github.com/thitainfo/typer-service/internal/race"
	"github.com/thitainfo/typer-service/internal/store"
)

type createRoomRequest struct {
	HostID     string `json:"hostId"`
	Text       string `json:"text"`
	MaxPlayers int    `json:"maxPlayers"`
}

// CreateRoomHandler allocates a room code and returns the new room. The host
// defaults to the caller's connection identity so the browser that created
// the room can later start it over the socket.
func CreateRoomHandler(s *TyperServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connID, err := EnsureConnectionID(w, r)
		if err != nil {
			http.Error(w, "failed to establish identity", http.StatusInternalServerError)
			return
		}

		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			http.Error(w, "bad create-room payload", http.StatusBadRequest)
			return
		}
		if req.HostID == "" {
			req.HostID = connID
		}

		room, err := s.Controller.Registry().CreateRoom(r.Context(), req.HostID, req.Text, req.MaxPlayers)
		if err != nil {
			s.Logger.WithError(err).Error("create room failed")
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(room)
	}
}

type joinRoomRequest struct {
	RoomID string `json:"roomId"`
}

// JoinRoomHandler is the pre-join check: it verifies the room can accept a new
// player right now. The actual join happens over the socket.
func JoinRoomHandler(s *TyperServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req joinRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RoomID == "" {
			http.Error(w, "missing roomId", http.StatusBadRequest)
			return
		}

		room, err := s.Controller.Registry().ValidateJoinable(r.Context(), req.RoomID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, "room not found", http.StatusNotFound)
			return
		case errors.Is(err, store.ErrRoomFull):
			http.Error(w, "room is full", http.StatusConflict)
			return
		case errors.Is(err, store.ErrRaceInProgress):
			http.Error(w, "race has already started", http.StatusConflict)
			return
		case err != nil:
			http.Error(w, "failed to check room", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(room)
	}
}

// GetRoomHandler returns a room snapshot by code.
func GetRoomHandler(s *TyperServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := strings.TrimPrefix(r.URL.Path, "/api/typer/room/")
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		room, err := s.Controller.Registry().GetRoom(r.Context(), roomID)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "failed to fetch room", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(room)
	}
}

type createChallengeRequest struct {
	ChallengerName string `json:"challengerName"`
	Text           string `json:"text"`
}

// CreateChallengeHandler mints a shareable head-to-head invite link.
func CreateChallengeHandler(s *TyperServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connID, err := EnsureConnectionID(w, r)
		if err != nil {
			http.Error(w, "failed to establish identity", http.StatusInternalServerError)
			return
		}

		var req createChallengeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChallengerName == "" {
			http.Error(w, "missing challengerName", http.StatusBadRequest)
			return
		}

		ch, err := s.Controller.CreateChallenge(r.Context(), connID, req.ChallengerName, req.Text, s.BaseURL)
		if errors.Is(err, race.ErrInvalidInput) {
			http.Error(w, "invalid challenge request", http.StatusBadRequest)
			return
		}
		if err != nil {
			s.Logger.WithError(err).Error("create challenge failed")
			http.Error(w, "failed to create challenge", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ch)
	}
}

// GetChallengeHandler resolves a challenge link to its details.
func GetChallengeHandler(s *TyperServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		challengeID := strings.TrimPrefix(r.URL.Path, "/api/typer/challenge/")
		if challengeID == "" {
			http.Error(w, "missing challenge id", http.StatusBadRequest)
			return
		}

		ch, err := s.Controller.GetChallenge(r.Context(), challengeID)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "challenge not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "failed to fetch challenge", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ch)
	}
}

// HistoryHandler returns the most recent finished races.
func HistoryHandler(s *TyperServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryLimit(r, 20, 100)
		results, err := s.Results.RecentResults(r.Context(), limit)
		if err != nil {
			s.Logger.WithError(err).Error("history query failed")
			http.Error(w, "failed to fetch history", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(results)
	}
}

// LeaderboardHandler returns the best-WPM leaderboard from Redis. Responds
// 503 when the leaderboard backend is not configured.
func LeaderboardHandler(s *TyperServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cache.Rdb == nil {
			http.Error(w, "leaderboard unavailable", http.StatusServiceUnavailable)
			return
		}
		limit := queryLimit(r, 10, 100)
		entries, err := cache.TopWPM(r.Context(), int64(limit))
		if err != nil {
			s.Logger.WithError(err).Error("leaderboard query failed")
			http.Error(w, "failed to fetch leaderboard", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	}
}

func queryLimit(r *http.Request, def, max int) int {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
