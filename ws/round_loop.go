package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"goTradeServer/config"
	"goTradeServer/db"
	"goTradeServer/game"
	"goTradeServer/round"
)

// RoundSummary is what past rounds look like to clients: enough to render
// history and to verify fairness, nothing that is not reproducible.
type RoundSummary struct {
	RoundID            string    `json:"roundId"`
	ServerSeed         string    `json:"serverSeed"`
	ServerSeedHash     string    `json:"serverSeedHash"`
	FinalClose         float64   `json:"finalClose"`
	LiquidationIndices []int     `json:"liquidationIndices"`
	Timestamp          time.Time `json:"timestamp"`
}

var (
	roundHistory      []RoundSummary
	roundHistoryMutex sync.RWMutex

	liveRound      *round.Round
	liveCandles    []game.Candle
	liveRoundMutex sync.RWMutex
)

// CurrentRoundID returns the ID of the live round, or "" between rounds.
func CurrentRoundID() string {
	liveRoundMutex.RLock()
	defer liveRoundMutex.RUnlock()
	if liveRound == nil {
		return ""
	}
	return liveRound.ID
}

// GetRoundHistory returns a copy of recent round summaries, oldest first.
func GetRoundHistory() []RoundSummary {
	roundHistoryMutex.RLock()
	defer roundHistoryMutex.RUnlock()

	history := make([]RoundSummary, len(roundHistory))
	copy(history, roundHistory)
	return history
}

// currentRoundSnapshot builds a catch-up message for late subscribers.
func currentRoundSnapshot() map[string]interface{} {
	liveRoundMutex.RLock()
	defer liveRoundMutex.RUnlock()

	if liveRound == nil {
		return nil
	}

	candles := make([]game.Candle, len(liveCandles))
	copy(candles, liveCandles)

	return map[string]interface{}{
		"type": "round_snapshot",
		"data": map[string]interface{}{
			"roundId":        liveRound.ID,
			"serverSeedHash": liveRound.SeedHash,
			"status":         liveRound.Status(),
			"candles":        candles,
			"config":         liveRound.Config,
		},
	}
}

func setLiveRound(r *round.Round) {
	liveRoundMutex.Lock()
	liveRound = r
	liveCandles = liveCandles[:0]
	liveRoundMutex.Unlock()
}

func appendLiveCandle(c game.Candle) {
	liveRoundMutex.Lock()
	liveCandles = append(liveCandles, c)
	liveRoundMutex.Unlock()
}

// RunRoundLoop drives back-to-back rounds forever: commit the seed hash,
// count down, stream one candle per interval, settle, reveal the seed,
// persist the record, wait, repeat. Call once from main after SetController.
func RunRoundLoop(ctrl *round.Controller) {
	log.Println("🎰 Round loop started")

	for {
		runOneRound(ctrl)
		time.Sleep(config.RoundEndWaitDuration)
	}
}

func runOneRound(ctrl *round.Controller) {
	cfg := config.DefaultRoundConfig()

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	r, err := ctrl.StartRound(startCtx, cfg)
	cancel()
	if err != nil {
		log.Printf("❌ Failed to start round: %v", err)
		return
	}

	setLiveRound(r)

	// Commitment goes out before any candle exists
	roundBroadcast <- map[string]interface{}{
		"type": "round_start",
		"data": map[string]interface{}{
			"roundId":        r.ID,
			"serverSeedHash": r.SeedHash,
			"provenance":     r.Provenance,
			"initialPrice":   cfg.InitialPrice,
			"totalCandles":   cfg.TotalCandles,
			"intervalMs":     cfg.CandleIntervalMs,
		},
	}

	// Countdown: 3, 2, 1
	for i := 3; i > 0; i-- {
		roundBroadcast <- map[string]interface{}{
			"type": "countdown",
			"data": map[string]interface{}{
				"countdown": i,
			},
		}
		time.Sleep(config.CountdownDuration / 3)
	}

	// Timing checks measure elapsed stream time, so the round clock starts
	// at the first candle, after the countdown
	r.BeginStreaming(time.Now())

	ticker := time.NewTicker(time.Duration(cfg.CandleIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for index := 0; index < cfg.TotalCandles; index++ {
		candle, err := r.Candle(index)
		if err != nil {
			log.Printf("❌ Candle derivation failed at index %d: %v", index, err)
			break
		}

		appendLiveCandle(candle)

		roundBroadcast <- map[string]interface{}{
			"type": "candle",
			"data": map[string]interface{}{
				"roundId": r.ID,
				"candle":  candle,
			},
		}

		if candle.IsLiquidation {
			log.Printf("💥 Liquidation candle at index %d (round %s)", index, r.ID)
		}

		<-ticker.C
	}

	// Settle: force-close any open position at the final candle and
	// cross-check the streamed path against a fresh replay
	settleCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	forced, err := ctrl.SettleRound(settleCtx, r.ID)
	cancel()
	if err != nil {
		log.Printf("❌ Round %s settlement failed: %v", r.ID, err)
	}
	if forced != nil {
		log.Printf("⏱️  Force-closed position at round end - Player: %s, net PnL %.4f",
			forced.Player, forced.NetPnl)

		go func() {
			storeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := db.UpdateTradeClose(storeCtx, r.ID, forced); err != nil {
				log.Printf("⚠️  Failed to update forced trade in PostgreSQL: %v", err)
			}
			if err := db.ApplyWalletPnL(storeCtx, forced.Player, forced.NetPnl); err != nil {
				log.Printf("⚠️  Failed to update wallet PnL: %v", err)
			}
		}()
	}

	status := r.Status()

	seed, revealErr := ctrl.Reveal(r.ID)
	if revealErr != nil {
		log.Printf("❌ Seed reveal refused for round %s: %v", r.ID, revealErr)
		return
	}

	result := game.ReplayRound(seed, cfg)

	// Reveal goes out after settlement so the commitment stays binding
	roundBroadcast <- map[string]interface{}{
		"type": "round_end",
		"data": map[string]interface{}{
			"roundId":            r.ID,
			"serverSeed":         seed,
			"serverSeedHash":     r.SeedHash,
			"status":             status,
			"finalClose":         result.FinalClose,
			"liquidationIndices": result.LiquidationIndices,
		},
	}

	summary := RoundSummary{
		RoundID:            r.ID,
		ServerSeed:         seed,
		ServerSeedHash:     r.SeedHash,
		FinalClose:         result.FinalClose,
		LiquidationIndices: result.LiquidationIndices,
		Timestamp:          time.Now(),
	}

	roundHistoryMutex.Lock()
	roundHistory = append(roundHistory, summary)
	if len(roundHistory) > config.MaxRoundHistory {
		roundHistory = roundHistory[len(roundHistory)-config.MaxRoundHistory:]
	}
	roundHistoryMutex.Unlock()

	// Persist the auditable record
	go func() {
		storeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		record := &db.RoundHistoryRecord{
			RoundID:            r.ID,
			ServerSeed:         seed,
			ServerSeedHash:     r.SeedHash,
			Config:             cfg,
			Status:             string(status),
			FinalClose:         result.FinalClose,
			LiquidationIndices: result.LiquidationIndices,
			CreatedAt:          time.Now(),
		}
		if err := db.StoreRoundHistory(storeCtx, record); err != nil {
			log.Printf("⚠️  Failed to store round history in PostgreSQL: %v", err)
		}
		if err := db.StoreRoundResult(storeCtx, r.ID, summary); err != nil {
			log.Printf("⚠️  Failed to cache round result in Redis: %v", err)
		}
		if err := db.CleanupRound(storeCtx, r.ID); err != nil {
			log.Printf("⚠️  Failed to cleanup Redis: %v", err)
		}
	}()

	log.Printf("🎲 Round %s finished - Final close: %.4f, Liquidations: %d, Status: %s",
		r.ID, result.FinalClose, len(result.LiquidationIndices), status)

	setLiveRound(nil)

	// Evict the settled round once its record is durable
	ctrl.DropRound(r.ID)

	// Broadcast refreshed history so all clients stay in sync
	roundBroadcast <- map[string]interface{}{
		"type":    "round_history",
		"history": GetRoundHistory(),
	}
}
