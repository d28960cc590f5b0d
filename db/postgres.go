package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"goTradeServer/game"
	"goTradeServer/round"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// PostgresPool is the global PostgreSQL connection pool
	PostgresPool *pgxpool.Pool
)

// RoundHistoryRecord is the persisted terminal state of a round. The seed is
// stored only once the round has settled, at which point it is public.
type RoundHistoryRecord struct {
	RoundID            string           `json:"roundId"`
	ServerSeed         string           `json:"serverSeed"`
	ServerSeedHash     string           `json:"serverSeedHash"`
	Config             game.RoundConfig `json:"config"`
	Status             string           `json:"status"`
	FinalClose         float64          `json:"finalClose"`
	LiquidationIndices []int            `json:"liquidationIndices"`
	CreatedAt          time.Time        `json:"createdAt"`
}

// InitPostgres initializes the PostgreSQL connection pool
func InitPostgres() error {
	log.Println("🔌 Connecting to PostgreSQL...")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 5 * time.Minute

	PostgresPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := PostgresPool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ PostgreSQL connected successfully")

	if err := InitSchema(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// ClosePostgres closes the PostgreSQL connection pool
func ClosePostgres() {
	if PostgresPool != nil {
		log.Println("🔌 Closing PostgreSQL connection...")
		PostgresPool.Close()
	}
}

// InitSchema creates the database tables if they don't exist
func InitSchema(ctx context.Context) error {
	log.Println("📋 Initializing database schema...")

	roundHistorySchema := `
	CREATE TABLE IF NOT EXISTS round_history (
		id SERIAL PRIMARY KEY,
		round_id TEXT NOT NULL UNIQUE,
		server_seed TEXT NOT NULL,
		server_seed_hash TEXT NOT NULL,
		config JSONB NOT NULL,
		status TEXT NOT NULL,
		final_close DOUBLE PRECISION NOT NULL,
		liquidation_indices JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_round_history_round_id ON round_history(round_id);
	CREATE INDEX IF NOT EXISTS idx_round_history_created_at ON round_history(created_at DESC);
	`

	if _, err := PostgresPool.Exec(ctx, roundHistorySchema); err != nil {
		return fmt.Errorf("failed to create round_history table: %w", err)
	}

	tradesSchema := `
	CREATE TABLE IF NOT EXISTS trades (
		id SERIAL PRIMARY KEY,
		round_id TEXT NOT NULL,
		player TEXT NOT NULL,
		direction TEXT NOT NULL,
		size DOUBLE PRECISION NOT NULL,
		leverage DOUBLE PRECISION NOT NULL,
		entry_index INT NOT NULL,
		entry_price DOUBLE PRECISION NOT NULL,
		exit_index INT,
		exit_price DOUBLE PRECISION,
		gross_pnl DOUBLE PRECISION,
		fee DOUBLE PRECISION,
		net_pnl DOUBLE PRECISION,
		liquidated BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'open',
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		closed_at TIMESTAMP,
		UNIQUE(round_id, player)
	);

	CREATE INDEX IF NOT EXISTS idx_trades_round_id ON trades(round_id);
	CREATE INDEX IF NOT EXISTS idx_trades_player ON trades(player);
	CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);
	`

	if _, err := PostgresPool.Exec(ctx, tradesSchema); err != nil {
		return fmt.Errorf("failed to create trades table: %w", err)
	}

	walletPnLSchema := `
	CREATE TABLE IF NOT EXISTS wallet_pnl (
		wallet_address TEXT PRIMARY KEY,
		amount DOUBLE PRECISION NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_wallet_pnl_amount ON wallet_pnl(amount DESC);
	`

	if _, err := PostgresPool.Exec(ctx, walletPnLSchema); err != nil {
		return fmt.Errorf("failed to create wallet_pnl table: %w", err)
	}

	log.Println("✅ Database schema initialized")
	return nil
}

/* =========================
   ROUND HISTORY
========================= */

// StoreRoundHistory persists a settled round. The stored (seed, config) pair
// is all an auditor needs to re-derive the full path.
func StoreRoundHistory(ctx context.Context, record *RoundHistoryRecord) error {
	if PostgresPool == nil {
		log.Println("⚠️  PostgreSQL not initialized, skipping round history storage")
		return nil
	}

	configJSON, err := json.Marshal(record.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal round config: %w", err)
	}
	liqJSON, err := json.Marshal(record.LiquidationIndices)
	if err != nil {
		return fmt.Errorf("failed to marshal liquidation indices: %w", err)
	}

	query := `
		INSERT INTO round_history
		(round_id, server_seed, server_seed_hash, config, status, final_close, liquidation_indices, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (round_id) DO NOTHING
	`

	_, err = PostgresPool.Exec(
		ctx,
		query,
		record.RoundID,
		record.ServerSeed,
		record.ServerSeedHash,
		configJSON,
		record.Status,
		record.FinalClose,
		liqJSON,
		record.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to store round history: %w", err)
	}

	log.Printf("✅ Stored round history - Round: %s, Final: %.4f, Liquidations: %d",
		record.RoundID, record.FinalClose, len(record.LiquidationIndices))
	return nil
}

// GetRoundHistory retrieves one round's history by round ID, nil if unknown.
func GetRoundHistory(ctx context.Context, roundID string) (*RoundHistoryRecord, error) {
	if PostgresPool == nil {
		return nil, nil
	}

	query := `
		SELECT round_id, server_seed, server_seed_hash, config, status, final_close, liquidation_indices, created_at
		FROM round_history
		WHERE round_id = $1
	`

	var record RoundHistoryRecord
	var configJSON, liqJSON []byte

	err := PostgresPool.QueryRow(ctx, query, roundID).Scan(
		&record.RoundID,
		&record.ServerSeed,
		&record.ServerSeedHash,
		&configJSON,
		&record.Status,
		&record.FinalClose,
		&liqJSON,
		&record.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round history: %w", err)
	}

	if err := json.Unmarshal(configJSON, &record.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal round config: %w", err)
	}
	if err := json.Unmarshal(liqJSON, &record.LiquidationIndices); err != nil {
		return nil, fmt.Errorf("failed to unmarshal liquidation indices: %w", err)
	}

	return &record, nil
}

// GetRecentRoundHistory retrieves the N most recent settled rounds.
func GetRecentRoundHistory(ctx context.Context, limit int) ([]*RoundHistoryRecord, error) {
	if PostgresPool == nil {
		return []*RoundHistoryRecord{}, nil
	}

	query := `
		SELECT round_id, server_seed, server_seed_hash, config, status, final_close, liquidation_indices, created_at
		FROM round_history
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := PostgresPool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query round history: %w", err)
	}
	defer rows.Close()

	var records []*RoundHistoryRecord
	for rows.Next() {
		var record RoundHistoryRecord
		var configJSON, liqJSON []byte

		if err := rows.Scan(
			&record.RoundID,
			&record.ServerSeed,
			&record.ServerSeedHash,
			&configJSON,
			&record.Status,
			&record.FinalClose,
			&liqJSON,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal(configJSON, &record.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal round config: %w", err)
		}
		if err := json.Unmarshal(liqJSON, &record.LiquidationIndices); err != nil {
			return nil, fmt.Errorf("failed to unmarshal liquidation indices: %w", err)
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

/* =========================
   TRADES
========================= */

// StoreTradeOpen records a newly opened position.
func StoreTradeOpen(ctx context.Context, roundID string, pos *round.Position) error {
	if PostgresPool == nil {
		log.Println("⚠️  PostgreSQL not initialized, skipping trade storage")
		return nil
	}

	query := `
		INSERT INTO trades
		(round_id, player, direction, size, leverage, entry_index, entry_price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'open', $8)
		ON CONFLICT (round_id, player) DO NOTHING
	`

	_, err := PostgresPool.Exec(
		ctx,
		query,
		roundID,
		pos.Player,
		string(pos.Direction),
		pos.Size,
		pos.Leverage,
		pos.EntryIndex,
		pos.EntryPrice,
		pos.OpenedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to store trade: %w", err)
	}

	log.Printf("✅ Stored trade open - Round: %s, Player: %s, %s %.4f @ %.4f",
		roundID, pos.Player, pos.Direction, pos.Size, pos.EntryPrice)
	return nil
}

// UpdateTradeClose records a settlement against the open trade row.
func UpdateTradeClose(ctx context.Context, roundID string, s *round.Settlement) error {
	if PostgresPool == nil {
		log.Println("⚠️  PostgreSQL not initialized, skipping trade update")
		return nil
	}

	status := "closed"
	if s.Liquidated {
		status = "liquidated"
	}

	query := `
		UPDATE trades
		SET exit_index = $1,
		    exit_price = $2,
		    gross_pnl = $3,
		    fee = $4,
		    net_pnl = $5,
		    liquidated = $6,
		    status = $7,
		    closed_at = NOW()
		WHERE round_id = $8 AND player = $9 AND status = 'open'
	`

	result, err := PostgresPool.Exec(
		ctx,
		query,
		s.ExitIndex,
		s.ExitPrice,
		s.GrossPnl,
		s.Fee,
		s.NetPnl,
		s.Liquidated,
		status,
		roundID,
		s.Player,
	)

	if err != nil {
		return fmt.Errorf("failed to update trade: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("no open trade found for player %s in round %s", s.Player, roundID)
	}

	log.Printf("✅ Updated trade close - Round: %s, Player: %s, Net: %+.4f, Liquidated: %v",
		roundID, s.Player, s.NetPnl, s.Liquidated)
	return nil
}

/* =========================
   WALLET PNL
========================= */

// WalletPnLRecord represents a wallet's cumulative PnL
type WalletPnLRecord struct {
	WalletAddress string  `json:"walletAddress"`
	Amount        float64 `json:"amount"`
	Rank          int     `json:"rank,omitempty"`
}

// ApplyWalletPnL adds a settlement delta to a wallet's cumulative PnL (upsert).
func ApplyWalletPnL(ctx context.Context, walletAddress string, delta float64) error {
	if PostgresPool == nil {
		log.Println("⚠️  PostgreSQL not initialized, skipping PnL update")
		return nil
	}

	query := `
		INSERT INTO wallet_pnl (wallet_address, amount)
		VALUES ($1, $2)
		ON CONFLICT (wallet_address) DO UPDATE
		SET amount = wallet_pnl.amount + $2
	`

	_, err := PostgresPool.Exec(ctx, query, walletAddress, delta)
	if err != nil {
		return fmt.Errorf("failed to apply wallet PnL: %w", err)
	}

	log.Printf("📈 Applied %+.4f to wallet %s PnL", delta, walletAddress)
	return nil
}

// GetWalletPnLLeaderboard returns top N wallets sorted by PnL descending
func GetWalletPnLLeaderboard(ctx context.Context, limit int) ([]*WalletPnLRecord, error) {
	if PostgresPool == nil {
		return []*WalletPnLRecord{}, nil
	}

	query := `
		SELECT wallet_address, amount,
		       ROW_NUMBER() OVER (ORDER BY amount DESC) as rank
		FROM wallet_pnl
		ORDER BY amount DESC
		LIMIT $1
	`

	rows, err := PostgresPool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var records []*WalletPnLRecord
	for rows.Next() {
		var record WalletPnLRecord
		if err := rows.Scan(&record.WalletAddress, &record.Amount, &record.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// GetWalletPnLRank returns a specific wallet's rank and PnL
func GetWalletPnLRank(ctx context.Context, walletAddress string) (*WalletPnLRecord, error) {
	if PostgresPool == nil {
		return nil, nil
	}

	query := `
		SELECT wallet_address, amount, rank FROM (
			SELECT wallet_address, amount,
			       ROW_NUMBER() OVER (ORDER BY amount DESC) as rank
			FROM wallet_pnl
		) ranked
		WHERE wallet_address = $1
	`

	var record WalletPnLRecord
	err := PostgresPool.QueryRow(ctx, query, walletAddress).Scan(
		&record.WalletAddress,
		&record.Amount,
		&record.Rank,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet rank: %w", err)
	}

	return &record, nil
}

/* =========================
   HEALTH CHECK
========================= */

// HealthCheckPostgres performs a PostgreSQL health check
func HealthCheckPostgres(ctx context.Context) error {
	if PostgresPool == nil {
		return fmt.Errorf("PostgreSQL connection pool not initialized")
	}
	return PostgresPool.Ping(ctx)
}
