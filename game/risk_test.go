package game

import (
	"math"
	"testing"
)

func TestLiquidationRiskGracePeriod(t *testing.T) {
	cfg := testConfig()

	// Even a maximally risky position carries zero risk inside the grace window.
	heavy := &PositionRisk{
		HoldCandles:  400,
		SizeFraction: 1.0,
		Leverage:     20.0,
		PnlFraction:  2.0,
		AgainstTrend: true,
	}

	for _, index := range []int{0, 1, cfg.LiquidationGraceCandles - 1} {
		if risk := LiquidationRisk(cfg, index, heavy); risk != 0 {
			t.Errorf("index %d inside grace: risk = %v, want 0", index, risk)
		}
		if prob := LiquidationProbability("any-seed", cfg, index, heavy); prob != 0 {
			t.Errorf("index %d inside grace: probability = %v, want 0", index, prob)
		}
	}
}

func TestLiquidationRiskRamp(t *testing.T) {
	cfg := testConfig()
	grace := cfg.LiquidationGraceCandles
	ramp := cfg.LiquidationRampCandles

	t.Run("ZeroAtRampStart", func(t *testing.T) {
		if risk := LiquidationRisk(cfg, grace, nil); risk != 0 {
			t.Errorf("risk at ramp start = %v, want 0", risk)
		}
	})

	t.Run("HalfwayThroughRamp", func(t *testing.T) {
		risk := LiquidationRisk(cfg, grace+ramp/2, nil)
		want := cfg.BaseLiquidationChance * float64(ramp/2) / float64(ramp)
		if math.Abs(risk-want) > 1e-15 {
			t.Errorf("risk halfway = %v, want %v", risk, want)
		}
	})

	t.Run("FullBaseAfterRamp", func(t *testing.T) {
		if risk := LiquidationRisk(cfg, grace+ramp, nil); risk != cfg.BaseLiquidationChance {
			t.Errorf("risk after ramp = %v, want %v", risk, cfg.BaseLiquidationChance)
		}
	})
}

func TestLiquidationRiskMonotonicity(t *testing.T) {
	cfg := testConfig()
	index := cfg.LiquidationGraceCandles + cfg.LiquidationRampCandles + 50
	base := LiquidationRisk(cfg, index, nil)

	cases := []struct {
		name string
		pos  PositionRisk
	}{
		{"LongHold", PositionRisk{HoldCandles: PositionGraceCandles + 100, Leverage: 1}},
		{"LargeSize", PositionRisk{SizeFraction: 0.9, Leverage: 1}},
		{"HighLeverage", PositionRisk{Leverage: 10}},
		{"LargeProfit", PositionRisk{PnlFraction: 0.8, Leverage: 1}},
		{"AgainstTrend", PositionRisk{AgainstTrend: true, Leverage: 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			risk := LiquidationRisk(cfg, index, &tc.pos)
			if risk <= base {
				t.Errorf("%s risk %v not above base %v", tc.name, risk, base)
			}
		})
	}

	t.Run("BenignPositionAddsNothing", func(t *testing.T) {
		benign := &PositionRisk{HoldCandles: 10, SizeFraction: 0.1, Leverage: 2, PnlFraction: 0.05}
		if risk := LiquidationRisk(cfg, index, benign); risk != base {
			t.Errorf("benign position risk %v, want base %v", risk, base)
		}
	})

	t.Run("HoldingLongerNeverLowersRisk", func(t *testing.T) {
		prev := 0.0
		for hold := 0; hold <= 400; hold += 20 {
			pos := &PositionRisk{HoldCandles: hold, Leverage: 1}
			risk := LiquidationRisk(cfg, index, pos)
			if risk < prev {
				t.Fatalf("risk dropped from %v to %v at hold %d", prev, risk, hold)
			}
			prev = risk
		}
	})
}

func TestLiquidationRiskCaps(t *testing.T) {
	cfg := testConfig()
	index := cfg.LiquidationGraceCandles + cfg.LiquidationRampCandles + 50

	extreme := &PositionRisk{
		HoldCandles:  100000,
		SizeFraction: 50.0,
		Leverage:     1000.0,
		PnlFraction:  100.0,
		AgainstTrend: true,
	}

	risk := LiquidationRisk(cfg, index, extreme)
	ceiling := cfg.BaseLiquidationChance + TimeRiskCap + SizeRiskCap + LeverageRiskCap + GreedRiskCap + TrendRiskPenalty
	if risk > ceiling+1e-15 {
		t.Errorf("summed risk %v exceeds per-term caps total %v", risk, ceiling)
	}
}

func TestLiquidationProbabilityCeiling(t *testing.T) {
	cfg := testConfig()
	cfg.BaseLiquidationChance = 1.0 // force the multiplier product above the cap
	index := cfg.LiquidationGraceCandles + cfg.LiquidationRampCandles + 10

	prob := LiquidationProbability("cap-test-seed", cfg, index, nil)
	if prob != cfg.MaxLiquidationChance {
		t.Errorf("probability %v, want global ceiling %v", prob, cfg.MaxLiquidationChance)
	}
}

func TestRiskMultiplierBounds(t *testing.T) {
	for index := 0; index < 1000; index++ {
		rs := DeriveRiskStream("multiplier-seed", index)
		mult := RiskMultiplierMin + rs.Multiplier*RiskMultiplierSpan
		if mult < RiskMultiplierMin || mult >= RiskMultiplierMin+RiskMultiplierSpan {
			t.Fatalf("multiplier %v out of [%v, %v) at index %d",
				mult, RiskMultiplierMin, RiskMultiplierMin+RiskMultiplierSpan, index)
		}
	}
}

// A position layers extra risk against the same per-index sample, so it can
// add liquidations relative to the base path but never remove one.
func TestPositionOnlyAddsLiquidations(t *testing.T) {
	cfg := testConfig()
	seed := "monotone-liq-seed"

	pos := &PositionRisk{
		HoldCandles:  PositionGraceCandles + 200,
		SizeFraction: 0.95,
		Leverage:     15,
		PnlFraction:  0.9,
		AgainstTrend: true,
	}

	for index := 0; index < cfg.TotalCandles; index++ {
		baseLiq := SampleLiquidation(seed, cfg, index, nil)
		posLiq := SampleLiquidation(seed, cfg, index, pos)
		if baseLiq && !posLiq {
			t.Fatalf("index %d: base path liquidates but the riskier position does not", index)
		}
	}
}

func TestDeterministicStreams(t *testing.T) {
	t.Run("PriceLaneStable", func(t *testing.T) {
		a := DerivePriceStream("stream-seed", 17)
		b := DerivePriceStream("stream-seed", 17)
		if a != b {
			t.Errorf("price stream not reproducible: %+v vs %+v", a, b)
		}
	})

	t.Run("LanesIndependent", func(t *testing.T) {
		price := DerivePriceStream("stream-seed", 17)
		risk := DeriveRiskStream("stream-seed", 17)
		if price.Base == risk.Multiplier {
			t.Error("price and risk lanes collide for the same index")
		}
	})

	t.Run("UniformsInRange", func(t *testing.T) {
		for i := 0; i < 500; i++ {
			ps := DerivePriceStream("range-seed", i)
			for _, v := range []float64{ps.Base, ps.Jump, ps.JumpSize, ps.Wick} {
				if v < 0 || v >= 1 {
					t.Fatalf("uniform %v out of [0,1) at index %d", v, i)
				}
			}
		}
	})
}
