package ws

import (
	"context"
	"fmt"
	"log"
	"time"

	"goTradeServer/config"
	"goTradeServer/db"
	"goTradeServer/round"
)

// OpenTrade validates and opens a position on the live round. Shared by the
// WebSocket handler and the REST API so both paths enforce identical checks.
func OpenTrade(ctx context.Context, player string, dir round.Direction, size, leverage float64, claimedIndex int, claimedPrice float64) (string, *round.Position, error) {
	ctrl := getController()
	if ctrl == nil {
		return "", nil, fmt.Errorf("trading unavailable")
	}

	if player == "" {
		return "", nil, fmt.Errorf("player address is required")
	}
	if dir != round.Long && dir != round.Short {
		return "", nil, fmt.Errorf("direction must be LONG or SHORT")
	}
	if size < config.MinPositionSize {
		return "", nil, fmt.Errorf("position size below minimum %.3f", config.MinPositionSize)
	}
	if leverage <= 0 {
		leverage = 1.0
	}
	if leverage > config.MaxLeverage {
		return "", nil, fmt.Errorf("leverage above maximum %.0fx", config.MaxLeverage)
	}

	roundID := CurrentRoundID()
	if roundID == "" {
		return "", nil, round.ErrNoActiveRound
	}

	pos, err := ctrl.OpenPosition(ctx, roundID, player, dir, size, leverage, claimedIndex, claimedPrice)
	if err != nil {
		return "", nil, err
	}

	log.Printf("📈 Position opened - Player: %s, %s %.4f @ %.4f (candle %d, %.0fx)",
		player, pos.Direction, pos.Size, pos.EntryPrice, pos.EntryIndex, pos.Leverage)

	// Persist asynchronously, the in-memory round stays authoritative
	go func() {
		storeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := db.StoreOpenPosition(storeCtx, roundID, pos); err != nil {
			log.Printf("⚠️  Failed to store position in Redis: %v", err)
		}
		if err := db.StoreTradeOpen(storeCtx, roundID, pos); err != nil {
			log.Printf("⚠️  Failed to store trade in PostgreSQL: %v", err)
		}
	}()

	roundBroadcast <- map[string]interface{}{
		"type":    "player_position",
		"roundId": roundID,
		"player":  player,
		"status":  "open",
	}

	return roundID, pos, nil
}

// CloseTrade settles the player's open position at their claimed candle.
func CloseTrade(ctx context.Context, player string, claimedIndex int, claimedPrice float64) (string, *round.Settlement, error) {
	ctrl := getController()
	if ctrl == nil {
		return "", nil, fmt.Errorf("trading unavailable")
	}

	if player == "" {
		return "", nil, fmt.Errorf("player address is required")
	}

	roundID := CurrentRoundID()
	if roundID == "" {
		return "", nil, round.ErrNoActiveRound
	}

	settlement, err := ctrl.ClosePosition(ctx, roundID, player, claimedIndex, claimedPrice)
	if err != nil {
		return "", nil, err
	}

	if settlement.Liquidated {
		log.Printf("💥 Position liquidated - Player: %s, candle %d, loss %.4f",
			player, settlement.LiquidationIndex, settlement.Size)
	} else {
		log.Printf("💰 Position closed - Player: %s, exit %.4f (candle %d), net PnL %.4f",
			player, settlement.ExitPrice, settlement.ExitIndex, settlement.NetPnl)
	}

	go func() {
		storeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := db.DeleteOpenPosition(storeCtx, roundID, player); err != nil {
			log.Printf("⚠️  Failed to delete position from Redis: %v", err)
		}
		if err := db.UpdateTradeClose(storeCtx, roundID, settlement); err != nil {
			log.Printf("⚠️  Failed to update trade in PostgreSQL: %v", err)
		}
		if err := db.ApplyWalletPnL(storeCtx, settlement.Player, settlement.NetPnl); err != nil {
			log.Printf("⚠️  Failed to update wallet PnL: %v", err)
		}
	}()

	roundBroadcast <- map[string]interface{}{
		"type":       "player_settled",
		"roundId":    roundID,
		"player":     player,
		"liquidated": settlement.Liquidated,
		"netPnl":     settlement.NetPnl,
	}

	return roundID, settlement, nil
}
