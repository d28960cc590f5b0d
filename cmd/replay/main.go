package main

import (
	"flag"
	"fmt"
	"log"

	"goTradeServer/config"
	"goTradeServer/crypto"
	"goTradeServer/game"
)

// Replay tool: re-derives a full round from a disclosed seed so anyone can
// audit a settled round offline. With -hash it also checks the commitment.
func main() {
	seed := flag.String("seed", "", "disclosed server seed (hex)")
	hash := flag.String("hash", "", "published seed hash to verify against (optional)")
	every := flag.Int("every", 10, "print one candle every N indices")
	flag.Parse()

	if *seed == "" {
		log.Fatal("usage: replay -seed <hex> [-hash <hex>] [-every N]")
	}

	if *hash != "" {
		if !crypto.VerifySeed(*seed, *hash) {
			log.Fatalf("❌ Seed does NOT match commitment %s", *hash)
		}
		fmt.Printf("✅ Seed matches commitment %s\n\n", *hash)
	} else {
		fmt.Printf("Commitment for this seed: %s\n\n", crypto.HashSeed(*seed))
	}

	cfg := config.DefaultRoundConfig()
	result := game.ReplayRound(*seed, cfg)

	fmt.Printf("%-6s %-10s %-10s %-10s %-10s %s\n", "index", "open", "high", "low", "close", "liq")
	for _, c := range result.Candles {
		if c.Index%*every != 0 && !c.IsLiquidation && c.Index != cfg.TotalCandles-1 {
			continue
		}
		marker := ""
		if c.IsLiquidation {
			marker = "💥"
		}
		fmt.Printf("%-6d %-10.4f %-10.4f %-10.4f %-10.4f %s\n",
			c.Index, c.Open, c.High, c.Low, c.Close, marker)
	}

	fmt.Println()
	fmt.Printf("Final close: %.4f\n", result.FinalClose)
	fmt.Printf("Liquidation indices: %v\n", result.LiquidationIndices)
}
