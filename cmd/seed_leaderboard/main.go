package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"goTradeServer/db"
)

// Dev helper: seeds wallet_pnl with test traders so the leaderboard endpoint
// has data to show before any real rounds settle.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env not found")
	}

	if os.Getenv("DATABASE_URL") == "" {
		log.Fatal("DATABASE_URL not set")
	}

	if err := db.InitPostgres(); err != nil {
		log.Fatalf("Failed to init postgres: %v", err)
	}
	defer db.ClosePostgres()

	ctx := context.Background()

	testWallets := []struct {
		addr   string
		netPnl float64
	}{
		{"0x1234567890123456789012345678901234567890", 42.1750},
		{"0xABCDEF0123456789ABCDEF0123456789ABCDEF01", 18.5025},
		{"0x9876543210987654321098765432109876543210", 12.0400},
		{"0xDEADBEEF00000000000000000000000DEADBEEF", 7.3300},
		{"0xCAFEBABE00000000000000000000000CAFEBABE", 2.8075},
		{"0xFEEDFACE00000000000000000000000FEEDFACE", -0.9450},
		{"0xBAADF00D00000000000000000000000BAADF00D", -4.2000},
		{"0x8BADF00D00000000000000000000000000000000", -11.6125},
	}

	fmt.Println("Seeding leaderboard with test traders...")

	for _, w := range testWallets {
		db.PostgresPool.Exec(ctx, "DELETE FROM wallet_pnl WHERE wallet_address = $1", w.addr)

		if err := db.ApplyWalletPnL(ctx, w.addr, w.netPnl); err != nil {
			log.Printf("Failed to seed %s: %v", w.addr[:10], err)
		} else {
			fmt.Printf("  %s... -> %+.4f\n", w.addr[:10], w.netPnl)
		}
	}

	fmt.Println("\nDone! Verifying leaderboard query...")

	records, err := db.GetWalletPnLLeaderboard(ctx, 20)
	if err != nil {
		log.Fatalf("Failed to get leaderboard: %v", err)
	}

	fmt.Printf("\nLeaderboard (%d entries):\n", len(records))
	for _, r := range records {
		fmt.Printf("  #%d %s... %+.4f\n", r.Rank, r.WalletAddress[:10], r.Amount)
	}
}
