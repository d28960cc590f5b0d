package game

import "math"

// Canonical risk-model defaults. The historical tuning documents disagreed on
// several of these values; this set is the one the simulator was balanced
// against and is the single source of truth here.
const (
	// Time risk: no extra risk until the position has been held this long,
	// then super-linear growth.
	PositionGraceCandles = 60
	TimeRiskDivisor      = 200.0
	TimeRiskExponent     = 1.8
	TimeRiskScale        = 0.006
	TimeRiskCap          = 0.004

	// Size risk: kicks in above 70% of balance.
	SizeRiskThreshold = 0.7
	SizeRiskSlope     = 0.0005
	SizeRiskCap       = 0.0005

	// Leverage risk: linear above 5x.
	LeverageRiskThreshold = 5.0
	LeverageRiskSlope     = 0.0002
	LeverageRiskCap       = 0.001

	// Greed risk: kicks in above 30% unrealized profit.
	GreedRiskThreshold = 0.3
	GreedRiskSlope     = 0.001
	GreedRiskCap       = 0.0008

	// Flat penalty for fighting the recent trend.
	TrendRiskPenalty     = 0.0002
	TrendLookbackCandles = 30

	// Bounded random multiplier applied to the summed risk: [0.7, 1.5).
	RiskMultiplierMin  = 0.7
	RiskMultiplierSpan = 0.8
)

// PositionRisk describes the attributes of an open position that raise its
// liquidation risk. A nil PositionRisk means no position is open.
type PositionRisk struct {
	HoldCandles  int     // candles since entry
	SizeFraction float64 // position size as a fraction of balance at entry
	Leverage     float64
	PnlFraction  float64 // unrealized profit as a fraction of position size
	AgainstTrend bool    // direction opposes the recent price trend
}

// LiquidationRisk returns the summed, pre-multiplier risk for one candle.
// Grace period forces it to zero regardless of position state; the ramp
// period scales the base chance linearly up from zero.
func LiquidationRisk(cfg RoundConfig, index int, pos *PositionRisk) float64 {
	if index < cfg.LiquidationGraceCandles {
		return 0
	}

	base := cfg.BaseLiquidationChance
	sinceGrace := index - cfg.LiquidationGraceCandles
	if cfg.LiquidationRampCandles > 0 && sinceGrace < cfg.LiquidationRampCandles {
		base *= float64(sinceGrace) / float64(cfg.LiquidationRampCandles)
	}

	total := base
	if pos == nil {
		return total
	}

	// Time risk: super-linear growth past the position's own grace window.
	if pos.HoldCandles > PositionGraceCandles {
		excess := float64(pos.HoldCandles-PositionGraceCandles) / TimeRiskDivisor
		total += math.Min(TimeRiskCap, math.Pow(excess, TimeRiskExponent)*TimeRiskScale)
	}

	// Size risk: linear in the excess balance fraction.
	if pos.SizeFraction > SizeRiskThreshold {
		total += math.Min(SizeRiskCap, (pos.SizeFraction-SizeRiskThreshold)*SizeRiskSlope)
	}

	// Leverage risk: linear above the threshold.
	if pos.Leverage > LeverageRiskThreshold {
		total += math.Min(LeverageRiskCap, (pos.Leverage-LeverageRiskThreshold)*LeverageRiskSlope)
	}

	// Greed risk: linear in the excess profit fraction.
	if pos.PnlFraction > GreedRiskThreshold {
		total += math.Min(GreedRiskCap, (pos.PnlFraction-GreedRiskThreshold)*GreedRiskSlope)
	}

	if pos.AgainstTrend {
		total += TrendRiskPenalty
	}

	return total
}

// LiquidationProbability applies the seeded bounded multiplier and the global
// ceiling. Deterministic: the multiplier comes from the candle's risk lane,
// not a fresh random call.
func LiquidationProbability(seed string, cfg RoundConfig, index int, pos *PositionRisk) float64 {
	risk := LiquidationRisk(cfg, index, pos)
	if risk == 0 {
		return 0
	}

	rs := DeriveRiskStream(seed, index)
	mult := RiskMultiplierMin + rs.Multiplier*RiskMultiplierSpan
	prob := risk * mult

	if prob > cfg.MaxLiquidationChance {
		prob = cfg.MaxLiquidationChance
	}
	return prob
}

// SampleLiquidation draws the Bernoulli outcome for one candle from the risk
// lane. The same sample scalar serves both the candle-level flag (nil
// position) and the position-layered check: raising the probability can only
// turn a non-liquidation into a liquidation, never the reverse.
func SampleLiquidation(seed string, cfg RoundConfig, index int, pos *PositionRisk) bool {
	prob := LiquidationProbability(seed, cfg, index, pos)
	if prob == 0 {
		return false
	}
	return DeriveRiskStream(seed, index).Sample < prob
}
