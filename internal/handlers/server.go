// internal/handlers/server.go
package handlers

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/thitainfo/typer-service/internal/broadcast"
	"github.com/thitainfo/typer-service/internal/race"
	"github.com/thitainfo/typer-service/internal/store"
)

// TyperServer bundles what the HTTP and WebSocket handlers need: the race
// controller for all room mutations, the hub for connection management, and
// the stores the read-only endpoints query directly.
type TyperServer struct {
	Mutex      sync.Mutex
	Controller *race.Controller
	Hub        *broadcast.Hub
	Challenges store.ChallengeStore
	Results    store.ResultStore
	Logger     *logrus.Logger

	// BaseURL prefixes generated challenge links, e.g. "https://example.com".
	BaseURL string
}

func NewTyperServer(ctrl *race.Controller, hub *broadcast.Hub, challenges store.ChallengeStore, results store.ResultStore, logger *logrus.Logger, baseURL string) *TyperServer {
	return &TyperServer{
		Controller: ctrl,
		Hub:        hub,
		Challenges: challenges,
		Results:    results,
		Logger:     logger,
		BaseURL:    baseURL,
	}
}
