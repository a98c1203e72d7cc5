// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/thitainfo/typer-service/internal/auth"
	"github.com/thitainfo/typer-service/internal/broadcast"
	"github.com/thitainfo/typer-service/internal/cache"
	"github.com/thitainfo/typer-service/internal/handlers"
	"github.com/thitainfo/typer-service/internal/middleware"
	"github.com/thitainfo/typer-service/internal/race"
	"github.com/thitainfo/typer-service/internal/store"
)

func main() {
	auth.Init()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	// Room/challenge/result persistence. Without MONGO_URL everything lives
	// in process memory, which is fine for a single-node deployment.
	var (
		rooms      store.RoomStore
		challenges store.ChallengeStore
		results    store.ResultStore
	)
	if uri := os.Getenv("MONGO_URL"); uri != "" {
		dbName := os.Getenv("DB_NAME")
		if dbName == "" {
			dbName = "typer"
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		m, err := store.Connect(ctx, uri, dbName)
		cancel()
		if err != nil {
			log.Fatalf("mongo connect failed: %v", err)
		}
		defer m.Close(context.Background())
		rooms, challenges, results = m, m, m
		logger.Info("Connected to MongoDB")
	} else {
		mem := store.NewMemory()
		rooms, challenges, results = mem, mem, mem
		logger.Warn("MONGO_URL not set, using in-memory store")
	}

	// Result queue for the historian, best effort.
	var queue race.ResultQueue
	if os.Getenv("REDIS_ADDR") != "" {
		if err := cache.ConnectRedis(); err != nil {
			logger.WithError(err).Warn("redis unavailable, historian queue disabled")
		} else {
			queue = cache.Queue{}
			logger.Info("Connected to Redis")
		}
	}

	hub := broadcast.NewHub(logger)
	ctrl := race.NewController(race.Config{
		Rooms:      rooms,
		Challenges: challenges,
		Results:    results,
		Gateway:    hub,
		Logger:     logger,
		Queue:      queue,
	})

	baseURL := os.Getenv("PUBLIC_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	srv := handlers.NewTyperServer(ctrl, hub, challenges, results, logger, baseURL)

	mux := http.NewServeMux()

	withLog := middleware.LogMiddleware(logger)
	logged := func(h http.Handler) http.Handler {
		return middleware.CORSMiddleware(withLog(h))
	}

	// room endpoints
	mux.Handle("/api/typer/create-room", logged(handlers.CreateRoomHandler(srv)))
	mux.Handle("/api/typer/join-room", logged(handlers.JoinRoomHandler(srv)))
	mux.Handle("/api/typer/room/", logged(handlers.GetRoomHandler(srv)))

	// challenge endpoints
	mux.Handle("/api/typer/create-challenge", logged(handlers.CreateChallengeHandler(srv)))
	mux.Handle("/api/typer/challenge/", logged(handlers.GetChallengeHandler(srv)))

	// reporting
	mux.Handle("/api/typer/history", logged(handlers.HistoryHandler(srv)))
	mux.Handle("/api/typer/leaderboard", logged(handlers.LeaderboardHandler(srv)))

	// race websocket
	mux.Handle("/ws", http.HandlerFunc(handlers.TyperWSHandler(srv)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
