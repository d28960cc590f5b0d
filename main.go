package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"goTradeServer/api"
	"goTradeServer/config"
	"goTradeServer/contract"
	"goTradeServer/db"
	"goTradeServer/round"
	"goTradeServer/ws"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables")
	} else {
		log.Println("✅ Loaded environment variables from .env")
	}

	// Initialize database connections (InitPostgres also runs the schema)
	if err := db.InitPostgres(); err != nil {
		log.Printf("⚠️  Warning: PostgreSQL initialization failed: %v", err)
		log.Println("   Round history and leaderboard features will be disabled")
	}
	defer db.ClosePostgres()

	if err := db.InitRedis(); err != nil {
		log.Printf("⚠️  Warning: Redis initialization failed: %v", err)
		log.Println("   Position caching will be disabled")
	}
	defer db.CloseRedis()

	// Funds ledger: on-chain escrow when configured, in-memory otherwise
	var funds round.FundsLedger
	escrowContract, err := contract.NewEscrowContract()
	if err != nil {
		log.Printf("⚠️  Warning: Escrow contract initialization failed: %v", err)
		log.Println("   Falling back to in-memory ledger (dev mode)")
		funds = round.NewMemoryLedger(config.DevStartingBalance)
	} else {
		defer escrowContract.Close()
		relayer := contract.NewRelayer(escrowContract)
		if err := relayer.CheckBalance(context.Background()); err != nil {
			log.Printf("⚠️  Warning: %v", err)
		}
		escrowLedger := contract.NewEscrowLedger(escrowContract, relayer)
		api.SetEscrowLedger(escrowLedger)
		funds = escrowLedger
	}

	// Round controller: seed commitment, trade verification, settlement
	ledger := round.NewLedger(funds, config.PriceTolerance, config.TimingSlackCandles, config.TradingFeeRate)
	controller := round.NewController(round.ServerSeedSource{}, funds, ledger)
	ws.SetController(controller)
	api.SetController(controller)

	// Drive back-to-back rounds
	go ws.RunRoundLoop(controller)

	// WebSocket endpoint
	http.HandleFunc("/ws", ws.HandleWS)

	// API endpoints
	http.HandleFunc("/api/health", api.HandleHealthCheck)
	http.HandleFunc("/api/round/current", api.HandleCurrentRound)
	http.HandleFunc("/api/round/candle", api.HandleGetCandle)
	http.HandleFunc("/api/round/history", api.HandleRoundHistory)
	http.HandleFunc("/api/position/open", api.HandleOpenPosition)
	http.HandleFunc("/api/position/close", api.HandleClosePosition)
	http.HandleFunc("/api/verify", api.HandleVerifyRound)
	http.HandleFunc("/api/leaderboard", api.HandleGetLeaderboard)
	http.HandleFunc("/api/wallet/balance", api.HandleGetBalance)
	http.HandleFunc("/api/wallet/sync", api.HandleSyncDeposit)
	http.HandleFunc("/api/wallet/withdraw", api.HandleWithdraw)
	http.HandleFunc("/api/admin/abort", api.HandleAbortRound)

	addr := "0.0.0.0:" + config.ServerPort
	log.Printf("🚀 Server starting on %s", addr)
	log.Println("")
	log.Println("📡 WebSocket Endpoint:")
	log.Println("   ws://localhost:8080/ws")
	log.Println("   - Subscribe to 'round' for live candles + history")
	log.Println("   - Send 'open_position' / 'close_position' to trade")
	log.Println("")
	log.Println("🔌 API Endpoints:")
	log.Println("   GET  /api/health - Health check (Redis + PostgreSQL)")
	log.Println("   GET  /api/round/current - Live round commitment + config")
	log.Println("   GET  /api/round/candle?index=N - Re-derive one candle")
	log.Println("   GET  /api/round/history - Settled rounds with revealed seeds")
	log.Println("   POST /api/position/open - Open a verified position")
	log.Println("   POST /api/position/close - Close and settle a position")
	log.Println("   POST /api/verify - Replay a round from its seed")
	log.Println("   GET  /api/leaderboard - Wallet PnL leaderboard")
	log.Println("   POST /api/wallet/withdraw - On-chain payout via relayer")
	log.Println("   POST /api/admin/abort - Abort the live round (operator)")
	log.Println("")

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal("❌ Server error:", err)
	}
}
