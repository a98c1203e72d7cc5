// cmd/historian/main.go is an asynchronous archival service that pops
// finished race results from a Redis queue and persists them to PostgreSQL,
// folding each result into the Redis leaderboards along the way.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/thitainfo/typer-service/internal/cache"
	"github.com/thitainfo/typer-service/internal/database"
	"github.com/thitainfo/typer-service/internal/models"
)

// HistorianService encapsulates the Redis + DB logic for archiving race
// results in batches.
type HistorianService struct {
	batchSize  int
	flushDelay time.Duration

	batchMu  sync.Mutex
	batch    []*models.RaceResult
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewHistorianService constructs a HistorianService from environment variables or defaults.
func NewHistorianService() *HistorianService {
	batchSize := getEnvInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := getEnvInt("HISTORIAN_FLUSH_MS", 500)

	ctx, cancel := context.WithCancel(context.Background())
	return &HistorianService{
		batchSize:  batchSize,
		flushDelay: time.Duration(flushMs) * time.Millisecond,
		batch:      make([]*models.RaceResult, 0, batchSize),
		ctx:        ctx,
		cancelFn:   cancel,
	}
}

// Run connects the backends and starts the queue drain loop.
func (hs *HistorianService) Run() {
	if err := cache.ConnectRedis(); err != nil {
		log.Fatalf("redis connect failed: %v", err)
	}
	database.ConnectDB()

	go hs.readRedisLoop()

	log.Println("typer-historian service started.")
	<-hs.ctx.Done()
	log.Println("typer-historian shutting down.")
	hs.flushBatchToDB()
}

// readRedisLoop continuously pops results from the Redis queue, accumulating
// them in a batch and flushing on size or a timer.
func (hs *HistorianService) readRedisLoop() {
	ticker := time.NewTicker(hs.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			hs.flushBatchToDB()

		default:
			// BLPop with a 3-second timeout so that context cancellation is handled.
			res, err := cache.PopRaceResult(hs.ctx, 3*time.Second)
			if err != nil {
				if hs.ctx.Err() != nil {
					return
				}
				log.Printf("[ERROR] pop race result: %v\n", err)
				continue
			}
			if res == nil {
				continue
			}
			hs.appendToBatch(res)
		}
	}
}

// appendToBatch adds a result to the in-memory batch and flushes if the threshold is reached.
func (hs *HistorianService) appendToBatch(res *models.RaceResult) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	hs.batch = append(hs.batch, res)
	if len(hs.batch) >= hs.batchSize {
		hs.flushBatchToDBLocked()
	}
}

func (hs *HistorianService) flushBatchToDB() {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.flushBatchToDBLocked()
}

// flushBatchToDBLocked archives the current batch in a single transaction and
// folds it into the leaderboards. Caller holds batchMu.
func (hs *HistorianService) flushBatchToDBLocked() {
	if len(hs.batch) == 0 {
		return
	}
	batchCopy := make([]*models.RaceResult, len(hs.batch))
	copy(batchCopy, hs.batch)
	hs.batch = hs.batch[:0]

	ctx := context.Background()
	if err := database.ArchiveRaceResults(ctx, database.DB, batchCopy); err != nil {
		log.Printf("[ERROR] flushBatchToDB: %v\n", err)
		return
	}
	for _, res := range batchCopy {
		if err := cache.RecordLeaderboard(ctx, res); err != nil {
			log.Printf("[ERROR] leaderboard update for room %s: %v\n", res.RoomID, err)
		}
	}
	log.Printf("Archived %d race results.\n", len(batchCopy))
}

// Stop gracefully stops the historian service.
func (hs *HistorianService) Stop() {
	hs.cancelFn()
}

func main() {
	hs := NewHistorianService()
	go hs.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	hs.Stop()
	log.Println("Historian shutdown complete.")
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
