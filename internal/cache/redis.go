// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thitainfo/typer-service/internal/models"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// DefaultQueueName is the Redis list (queue) name for finished race results.
var DefaultQueueName = "typer_race_results"

// Leaderboard sorted-set keys. best_wpm keeps each player's highest recorded
// WPM (ZADD GT), wins counts first-place finishes.
const (
	LeaderboardWPMKey  = "typer:leaderboard:best_wpm"
	LeaderboardWinsKey = "typer:leaderboard:wins"
)

// ConnectRedis initializes the global Redis client with environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis() error {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// Queue adapts the global client to the controller's result queue. A separate
// historian process drains the list into Postgres.
type Queue struct{}

// PublishRaceResult serializes the result to JSON and pushes it to the Redis
// queue. This does not block the calling logic beyond a quick network send.
func (Queue) PublishRaceResult(ctx context.Context, res *models.RaceResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal RaceResult: %w", err)
	}

	queueName := getEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName)
	if err := Rdb.RPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", queueName, err)
	}
	return nil
}

// PopRaceResult blocks up to timeout waiting for a queued result. Returns
// (nil, nil) on timeout so pollers can loop.
func PopRaceResult(ctx context.Context, timeout time.Duration) (*models.RaceResult, error) {
	queueName := getEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName)
	vals, err := Rdb.BLPop(ctx, timeout, queueName).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to BLPop from Redis list '%s': %w", queueName, err)
	}
	// BLPop returns [key, value].
	if len(vals) != 2 {
		return nil, nil
	}
	var res models.RaceResult
	if err := json.Unmarshal([]byte(vals[1]), &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal RaceResult: %w", err)
	}
	return &res, nil
}

// LeaderboardEntry is one row of a leaderboard read.
type LeaderboardEntry struct {
	Username string  `json:"username"`
	Score    float64 `json:"score"`
}

// RecordLeaderboard folds a finished race into the leaderboard sets: every
// finisher's best WPM is raised if beaten, the winner's win count increments.
func RecordLeaderboard(ctx context.Context, res *models.RaceResult) error {
	for _, p := range res.Players {
		if !p.Finished {
			continue
		}
		if err := Rdb.ZAddGT(ctx, LeaderboardWPMKey, redis.Z{Score: p.WPM, Member: p.Username}).Err(); err != nil {
			return fmt.Errorf("failed to update best_wpm leaderboard: %w", err)
		}
	}
	if res.WinnerName != "" {
		if err := Rdb.ZIncrBy(ctx, LeaderboardWinsKey, 1, res.WinnerName).Err(); err != nil {
			return fmt.Errorf("failed to update wins leaderboard: %w", err)
		}
	}
	return nil
}

// TopWPM returns the highest best-WPM entries, best first.
func TopWPM(ctx context.Context, limit int64) ([]LeaderboardEntry, error) {
	zs, err := Rdb.ZRevRangeWithScores(ctx, LeaderboardWPMKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read best_wpm leaderboard: %w", err)
	}
	out := make([]LeaderboardEntry, 0, len(zs))
	for _, z := range zs {
		name, _ := z.Member.(string)
		out = append(out, LeaderboardEntry{Username: name, Score: z.Score})
	}
	return out, nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
