package game

import (
	"math"
	"testing"
)

func testConfig() RoundConfig {
	return RoundConfig{
		InitialPrice:     100.0,
		TotalCandles:     470,
		CandleIntervalMs: 64,

		DriftPerCandle:      0.0,
		VolatilityPerCandle: 0.02,

		JumpUpProbability:   0.004,
		JumpUpMin:           0.03,
		JumpUpMax:           0.12,
		JumpDownProbability: 0.004,
		JumpDownMin:         0.03,
		JumpDownMax:         0.12,

		WickFactor:       0.7,
		MinPriceFloor:    0.01,
		LiquidationFloor: 0.05,

		LiquidationGraceCandles: 150,
		LiquidationRampCandles:  75,
		BaseLiquidationChance:   0.0003,
		MaxLiquidationChance:    0.01,
	}
}

func TestGenerateCandleDeterminism(t *testing.T) {
	cfg := testConfig()
	seed := "deterministic-test-seed"

	t.Run("SameInputsSameCandle", func(t *testing.T) {
		for _, index := range []int{0, 1, 42, 150, 469} {
			a, err := GenerateCandle(seed, cfg, index)
			if err != nil {
				t.Fatalf("GenerateCandle failed at %d: %v", index, err)
			}
			b, err := GenerateCandle(seed, cfg, index)
			if err != nil {
				t.Fatalf("GenerateCandle failed at %d: %v", index, err)
			}
			if a != b {
				t.Errorf("candle %d not reproducible: %+v vs %+v", index, a, b)
			}
		}
	})

	t.Run("PathMatchesScratchDerivation", func(t *testing.T) {
		path := NewPath(seed, cfg)
		for _, index := range []int{469, 150, 42, 1, 0} {
			fromPath, err := path.Candle(index)
			if err != nil {
				t.Fatalf("path candle failed at %d: %v", index, err)
			}
			fromScratch, err := GenerateCandle(seed, cfg, index)
			if err != nil {
				t.Fatalf("scratch candle failed at %d: %v", index, err)
			}
			if fromPath != fromScratch {
				t.Errorf("memoized candle %d diverges: %+v vs %+v", index, fromPath, fromScratch)
			}
		}
	})

	t.Run("DifferentSeedsDifferentPaths", func(t *testing.T) {
		a, _ := GenerateCandle("seed-a", cfg, 10)
		b, _ := GenerateCandle("seed-b", cfg, 10)
		if a.Close == b.Close && a.High == b.High && a.Low == b.Low {
			t.Errorf("different seeds produced identical candle: %+v", a)
		}
	})

	t.Run("IndexOutOfRange", func(t *testing.T) {
		if _, err := GenerateCandle(seed, cfg, -1); err == nil {
			t.Error("expected error for index -1")
		}
		if _, err := GenerateCandle(seed, cfg, cfg.TotalCandles); err == nil {
			t.Errorf("expected error for index %d", cfg.TotalCandles)
		}
	})
}

func TestCandleInvariants(t *testing.T) {
	cfg := testConfig()
	seed := "invariant-test-seed"
	path := NewPath(seed, cfg)

	prevClose := cfg.InitialPrice
	for i := 0; i < cfg.TotalCandles; i++ {
		c, err := path.Candle(i)
		if err != nil {
			t.Fatalf("candle %d: %v", i, err)
		}

		if c.Open != prevClose {
			t.Errorf("candle %d open %.10f != previous close %.10f", i, c.Open, prevClose)
		}
		if c.Close < cfg.MinPriceFloor {
			t.Errorf("candle %d close %.10f below floor %.10f", i, c.Close, cfg.MinPriceFloor)
		}
		if c.Low < cfg.MinPriceFloor-1e-15 && !c.IsLiquidation {
			t.Errorf("candle %d low %.10f below floor", i, c.Low)
		}
		if !c.IsLiquidation {
			if c.High < math.Max(c.Open, c.Close) {
				t.Errorf("candle %d high %.10f below body top", i, c.High)
			}
			if c.Low > math.Min(c.Open, c.Close) {
				t.Errorf("candle %d low %.10f above body bottom", i, c.Low)
			}
		} else {
			if c.Close != cfg.LiquidationFloor {
				t.Errorf("liquidation candle %d close %.10f, want floor %.10f", i, c.Close, cfg.LiquidationFloor)
			}
			if c.Low > c.Close {
				t.Errorf("liquidation candle %d low %.10f above close", i, c.Low)
			}
		}

		prevClose = c.Close
	}
}

func TestGracePeriodHasNoLiquidations(t *testing.T) {
	cfg := testConfig()

	// Deterministic across any seed: risk is forced to zero inside the grace
	// window, so the flag can never fire there.
	for _, seed := range []string{"grace-a", "grace-b", "grace-c"} {
		path := NewPath(seed, cfg)
		for i := 0; i < cfg.LiquidationGraceCandles; i++ {
			c, err := path.Candle(i)
			if err != nil {
				t.Fatalf("candle %d: %v", i, err)
			}
			if c.IsLiquidation {
				t.Errorf("seed %q: liquidation at index %d inside grace period", seed, i)
			}
		}
	}
}

func TestTrendUp(t *testing.T) {
	cfg := testConfig()
	path := NewPath("trend-test-seed", cfg)

	t.Run("IndexZeroDefaultsUp", func(t *testing.T) {
		up, err := path.TrendUp(0, 30)
		if err != nil {
			t.Fatal(err)
		}
		if !up {
			t.Error("index 0 with no lookback should report up")
		}
	})

	t.Run("MatchesCloseComparison", func(t *testing.T) {
		cur, _ := path.Candle(200)
		ref, _ := path.Candle(170)
		up, err := path.TrendUp(200, 30)
		if err != nil {
			t.Fatal(err)
		}
		if up != (cur.Close >= ref.Close) {
			t.Errorf("TrendUp=%v but closes are %.6f vs %.6f", up, cur.Close, ref.Close)
		}
	})
}

func TestHasLiquidationBetween(t *testing.T) {
	cfg := testConfig()
	seed := "liq-scan-seed"
	path := NewPath(seed, cfg)
	result := ReplayRound(seed, cfg)

	found, index, err := path.HasLiquidationBetween(0, cfg.TotalCandles-1)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.LiquidationIndices) == 0 {
		if found {
			t.Errorf("scan found liquidation at %d but replay found none", index)
		}
		return
	}
	if !found {
		t.Fatalf("replay has liquidations %v but scan found none", result.LiquidationIndices)
	}
	if index != result.LiquidationIndices[0] {
		t.Errorf("scan returned %d, replay's first is %d", index, result.LiquidationIndices[0])
	}
}
