// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/thitainfo/typer-service/internal/broadcast"
	"github.com/thitainfo/typer-service/internal/middleware"
	"github.com/thitainfo/typer-service/internal/race"
)

// inboundMessage is the wire shape of every client action.
type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// TyperWSHandler upgrades the connection and runs the read/write pumps.
// Identity is resolved before the upgrade so a fresh cookie can ride the
// handshake response.
func TyperWSHandler(s *TyperServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr

		connID, err := EnsureConnectionID(w, r)
		if err != nil {
			s.Logger.WithError(err).Warn("connection identity failed")
			http.Error(w, "failed to establish identity", http.StatusInternalServerError)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"typer"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			s.Logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "typer" {
			c.Close(BadSubprotocolError, "client must speak the typer subprotocol")
			return
		}

		middleware.LogWebSocketConnect(s.Logger, remoteAddr, connID)

		conn := s.Hub.Register(connID)
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go writePump(ctx, c, conn, s.Logger)

		readErr := readPump(ctx, c, s, connID)

		// Reconcile rooms before dropping the hub registration so departure
		// broadcasts still reach the remaining members.
		s.Controller.Disconnect(context.Background(), connID)
		s.Hub.Deregister(connID)
		middleware.LogWebSocketDisconnect(s.Logger, remoteAddr, connID, readErr)
	}
}

// readPump decodes inbound messages and feeds them to the controller. Returns
// the terminal read error, nil for a clean close.
func readPump(ctx context.Context, c *websocket.Conn, s *TyperServer, connID string) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				return nil
			}
			if strings.Contains(err.Error(), "context canceled") {
				return nil
			}
			return err
		}

		if typ != websocket.MessageText {
			s.Logger.Warnf("socket %s: ignoring non-text message type %d", connID, typ)
			continue
		}

		var in inboundMessage
		if err := json.Unmarshal(msg, &in); err != nil {
			s.Hub.EmitToConn(connID, race.EventError, race.ErrorPayload{Message: "Invalid JSON format"})
			continue
		}

		ev, ok := decodeEvent(in)
		if !ok {
			s.Logger.WithFields(logrus.Fields{
				"socketId": connID,
				"event":    in.Event,
			}).Warn("unknown event")
			s.Hub.EmitToConn(connID, race.EventError, race.ErrorPayload{Message: "Unknown event: " + in.Event})
			continue
		}

		s.Controller.Handle(ctx, connID, ev)
	}
}

// decodeEvent maps a wire message to a typed controller event. Missing or
// malformed data fields decode to zero values; the controller rejects those
// through its own validation.
func decodeEvent(in inboundMessage) (race.Event, bool) {
	unmarshal := func(v interface{}) {
		if len(in.Data) > 0 {
			_ = json.Unmarshal(in.Data, v)
		}
	}

	switch in.Event {
	case "join-room":
		var d struct {
			RoomID   string `json:"roomId"`
			Username string `json:"username"`
		}
		unmarshal(&d)
		return race.JoinRoom{RoomID: d.RoomID, Username: d.Username}, true
	case "leave-room":
		var d struct {
			RoomID string `json:"roomId"`
		}
		unmarshal(&d)
		return race.LeaveRoom{RoomID: d.RoomID}, true
	case "player-progress":
		var d struct {
			RoomID   string  `json:"roomId"`
			Progress float64 `json:"progress"`
			WPM      float64 `json:"wpm"`
			Accuracy float64 `json:"accuracy"`
			Errors   int     `json:"errors"`
			Finished bool    `json:"finished"`
		}
		unmarshal(&d)
		return race.PlayerProgress{
			RoomID:   d.RoomID,
			Progress: d.Progress,
			WPM:      d.WPM,
			Accuracy: d.Accuracy,
			Errors:   d.Errors,
			Finished: d.Finished,
		}, true
	case "player-finished":
		var d struct {
			RoomID   string  `json:"roomId"`
			WPM      float64 `json:"wpm"`
			Accuracy float64 `json:"accuracy"`
			Errors   int     `json:"errors"`
			Time     float64 `json:"time"`
		}
		unmarshal(&d)
		return race.PlayerFinished{
			RoomID:   d.RoomID,
			WPM:      d.WPM,
			Accuracy: d.Accuracy,
			Errors:   d.Errors,
			Time:     d.Time,
		}, true
	case "start-race":
		var d struct {
			RoomID string `json:"roomId"`
		}
		unmarshal(&d)
		return race.StartRace{RoomID: d.RoomID}, true
	case "accept-challenge":
		var d struct {
			ChallengeID string `json:"challengeId"`
			Username    string `json:"username"`
		}
		unmarshal(&d)
		return race.AcceptChallenge{ChallengeID: d.ChallengeID, Username: d.Username}, true
	default:
		return nil, false
	}
}

// writePump drains the hub-side channel onto the socket and keeps the
// connection alive with periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *broadcast.Conn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-conn.Out:
			if !ok {
				// Hub closed the channel; this registration was replaced or
				// deregistered.
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				logger.Warnf("socket %s: failed to marshal outgoing msg: %v", conn.SocketID, err)
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("socket %s: write failed: %v", conn.SocketID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("socket %s: ping failed: %v. Assuming disconnect.", conn.SocketID, err)
				return
			}
		}
	}
}
