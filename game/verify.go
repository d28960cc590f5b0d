package game

// ReplayRound re-derives a full round from its seed and config. Given the
// same inputs it always returns the same candle sequence and the same
// liquidation-index set, which is what makes a disclosed seed auditable.
func ReplayRound(seed string, cfg RoundConfig) RoundResult {
	path := NewPath(seed, cfg)

	candles := make([]Candle, cfg.TotalCandles)
	var liquidations []int
	for i := 0; i < cfg.TotalCandles; i++ {
		c, _ := path.Candle(i)
		candles[i] = c
		if c.IsLiquidation {
			liquidations = append(liquidations, i)
		}
	}

	res := RoundResult{
		Candles:            candles,
		LiquidationIndices: liquidations,
		Seed:               seed,
	}
	if cfg.TotalCandles > 0 {
		res.FinalClose = candles[cfg.TotalCandles-1].Close
	}
	return res
}

// VerifyFinalClose re-derives the final close for a disclosed seed. Used at
// settlement to cross-check the live path before paying out.
func VerifyFinalClose(seed string, cfg RoundConfig) float64 {
	return ReplayRound(seed, cfg).FinalClose
}
