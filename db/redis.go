package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"goTradeServer/config"
	"goTradeServer/round"

	"github.com/redis/go-redis/v9"
)

var (
	// RedisClient is the global Redis client instance
	RedisClient *redis.Client
)

// InitRedis initializes the Redis client connection
func InitRedis() error {
	log.Println("🔌 Connecting to Redis...")

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "localhost:6379"
	}

	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			redisDB = db
		}
	}

	RedisClient = redis.NewClient(&redis.Options{
		Addr:         redisURL,
		Password:     redisPassword,
		DB:           redisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := RedisClient.Ping(ctx).Err(); err != nil {
		RedisClient = nil
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("✅ Redis connected successfully - URL: %s", redisURL)
	return nil
}

// CloseRedis closes the Redis connection
func CloseRedis() error {
	if RedisClient != nil {
		log.Println("🔌 Closing Redis connection...")
		return RedisClient.Close()
	}
	return nil
}

/* =========================
   OPEN POSITION FUNCTIONS (Hash Map Structure)
   Redis Key: position:{roundId} -> Hash{player: position JSON}
========================= */

// StoreOpenPosition caches an open position so a restarted API worker can
// still show it. The round registry stays the source of truth.
func StoreOpenPosition(ctx context.Context, roundID string, pos *round.Position) error {
	if RedisClient == nil {
		log.Println("⚠️  Redis not initialized, skipping position caching")
		return nil
	}

	hashKey := fmt.Sprintf(config.RedisPositionKey, roundID)

	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}

	if err := RedisClient.HSet(ctx, hashKey, pos.Player, data).Err(); err != nil {
		return fmt.Errorf("failed to store position: %w", err)
	}

	RedisClient.Expire(ctx, hashKey, config.PositionTTL)

	log.Printf("✅ Stored position - Round: %s, Player: %s, %s %.4f @ %.4f",
		roundID, pos.Player, pos.Direction, pos.Size, pos.EntryPrice)
	return nil
}

// GetOpenPosition retrieves a cached open position, nil if none.
func GetOpenPosition(ctx context.Context, roundID, player string) (*round.Position, error) {
	if RedisClient == nil {
		return nil, nil
	}

	hashKey := fmt.Sprintf(config.RedisPositionKey, roundID)

	data, err := RedisClient.HGet(ctx, hashKey, player).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	var pos round.Position
	if err := json.Unmarshal([]byte(data), &pos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal position: %w", err)
	}
	return &pos, nil
}

// DeleteOpenPosition removes a position from the cache after it closes.
func DeleteOpenPosition(ctx context.Context, roundID, player string) error {
	if RedisClient == nil {
		return nil
	}

	hashKey := fmt.Sprintf(config.RedisPositionKey, roundID)

	if err := RedisClient.HDel(ctx, hashKey, player).Err(); err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}

	log.Printf("🗑️  Deleted position - Round: %s, Player: %s", roundID, player)
	return nil
}

// GetActivePlayers returns all players with a cached position in a round.
func GetActivePlayers(ctx context.Context, roundID string) ([]string, error) {
	if RedisClient == nil {
		return []string{}, nil
	}

	hashKey := fmt.Sprintf(config.RedisPositionKey, roundID)

	players, err := RedisClient.HKeys(ctx, hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get active players: %w", err)
	}
	return players, nil
}

// CleanupRound removes all cached positions for a settled round.
func CleanupRound(ctx context.Context, roundID string) error {
	if RedisClient == nil {
		return nil
	}

	hashKey := fmt.Sprintf(config.RedisPositionKey, roundID)

	count, _ := RedisClient.HLen(ctx, hashKey).Result()

	if err := RedisClient.Del(ctx, hashKey).Err(); err != nil {
		return fmt.Errorf("failed to cleanup round: %w", err)
	}

	log.Printf("🧹 Cleaned up round %s (%d positions)", roundID, count)
	return nil
}

/* =========================
   ROUND RESULT SNAPSHOT
========================= */

// StoreRoundResult caches a settled round's replay result for the verify
// endpoint. Always re-derivable from (seed, config); the cache only saves
// recomputation.
func StoreRoundResult(ctx context.Context, roundID string, result any) error {
	if RedisClient == nil {
		log.Println("⚠️  Redis not initialized, skipping round result caching")
		return nil
	}

	key := fmt.Sprintf(config.RedisRoundResultKey, roundID)

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal round result: %w", err)
	}

	if err := RedisClient.Set(ctx, key, data, config.RoundResultTTL).Err(); err != nil {
		return fmt.Errorf("failed to store round result: %w", err)
	}
	return nil
}

// GetRoundResult retrieves a cached round result into out, reporting whether
// it was present.
func GetRoundResult(ctx context.Context, roundID string, out any) (bool, error) {
	if RedisClient == nil {
		return false, nil
	}

	key := fmt.Sprintf(config.RedisRoundResultKey, roundID)

	data, err := RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get round result: %w", err)
	}

	if err := json.Unmarshal([]byte(data), out); err != nil {
		return false, fmt.Errorf("failed to unmarshal round result: %w", err)
	}
	return true, nil
}

/* =========================
   HEALTH CHECK
========================= */

// HealthCheck performs a Redis health check
func HealthCheck(ctx context.Context) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return RedisClient.Ping(ctx).Err()
}
