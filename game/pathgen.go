package game

import (
	"fmt"
	"math"
	"sync"
)

// buildCandle computes the candle at `index` given the previous candle's
// close. The liquidation override runs strictly after the wick math so the
// wick computation never sees the reset close.
func buildCandle(seed string, cfg RoundConfig, index int, prevClose float64) Candle {
	ps := DerivePriceStream(seed, index)

	// Jumps and the base return are mutually exclusive per candle.
	var ret float64
	switch {
	case ps.Jump < cfg.JumpUpProbability:
		ret = cfg.JumpUpMin + ps.JumpSize*(cfg.JumpUpMax-cfg.JumpUpMin)
	case ps.Jump < cfg.JumpUpProbability+cfg.JumpDownProbability:
		ret = -(cfg.JumpDownMin + ps.JumpSize*(cfg.JumpDownMax-cfg.JumpDownMin))
	default:
		ret = cfg.DriftPerCandle + cfg.VolatilityPerCandle*(2*ps.Base-1)
	}

	open := prevClose
	closePrice := open * (1 + ret)
	if closePrice < cfg.MinPriceFloor {
		closePrice = cfg.MinPriceFloor
	}

	body := math.Abs(closePrice - open)
	high := math.Max(open, closePrice) + ps.Wick*cfg.WickFactor*body
	low := math.Min(open, closePrice) - (1-ps.Wick)*cfg.WickFactor*body
	if low < cfg.MinPriceFloor {
		low = cfg.MinPriceFloor
	}

	c := Candle{
		Index: index,
		Open:  open,
		High:  high,
		Low:   low,
		Close: closePrice,
	}

	// The candle-level flag samples the position-independent probability, so
	// the liquidation-index set stays a pure function of (seed, config).
	if SampleLiquidation(seed, cfg, index, nil) {
		c.Close = cfg.LiquidationFloor
		c.IsLiquidation = true
		if c.Low > c.Close {
			c.Low = c.Close
		}
	}

	return c
}

// GenerateCandle derives the candle at `index` from scratch, re-deriving all
// prior closes. Pure and total for 0 <= index < cfg.TotalCandles: the same
// (seed, config, index) produces a bit-identical candle on every run and
// platform. For repeated access use a Path, which memoizes prior closes.
func GenerateCandle(seed string, cfg RoundConfig, index int) (Candle, error) {
	if index < 0 || index >= cfg.TotalCandles {
		return Candle{}, fmt.Errorf("candle index %d out of range [0, %d)", index, cfg.TotalCandles)
	}

	prev := cfg.InitialPrice
	var c Candle
	for i := 0; i <= index; i++ {
		c = buildCandle(seed, cfg, i, prev)
		prev = c.Close
	}
	return c, nil
}

// Path memoizes one round's candles. The cache is purely an optimization:
// every cached candle equals what GenerateCandle would return for the same
// (seed, config, index). Safe for concurrent use.
type Path struct {
	seed string
	cfg  RoundConfig

	mu      sync.Mutex
	candles []Candle
}

func NewPath(seed string, cfg RoundConfig) *Path {
	return &Path{
		seed:    seed,
		cfg:     cfg,
		candles: make([]Candle, 0, cfg.TotalCandles),
	}
}

func (p *Path) Seed() string        { return p.seed }
func (p *Path) Config() RoundConfig { return p.cfg }

// Candle returns the memoized candle at `index`, deriving any missing
// predecessors in order.
func (p *Path) Candle(index int) (Candle, error) {
	if index < 0 || index >= p.cfg.TotalCandles {
		return Candle{}, fmt.Errorf("candle index %d out of range [0, %d)", index, p.cfg.TotalCandles)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i := len(p.candles); i <= index; i++ {
		prev := p.cfg.InitialPrice
		if i > 0 {
			prev = p.candles[i-1].Close
		}
		p.candles = append(p.candles, buildCandle(p.seed, p.cfg, i, prev))
	}
	return p.candles[index], nil
}

// HasLiquidationBetween reports whether any candle in [from, to] carries the
// liquidation flag. Bounds are clamped to the round.
func (p *Path) HasLiquidationBetween(from, to int) (bool, int, error) {
	if from < 0 {
		from = 0
	}
	if to >= p.cfg.TotalCandles {
		to = p.cfg.TotalCandles - 1
	}
	for i := from; i <= to; i++ {
		c, err := p.Candle(i)
		if err != nil {
			return false, 0, err
		}
		if c.IsLiquidation {
			return true, i, nil
		}
	}
	return false, 0, nil
}

// TrendUp reports whether price is above its level `lookback` candles ago.
// Used for the trend-alignment risk term.
func (p *Path) TrendUp(index, lookback int) (bool, error) {
	if index-lookback < 0 {
		lookback = index
	}
	if lookback == 0 {
		return true, nil
	}
	cur, err := p.Candle(index)
	if err != nil {
		return false, err
	}
	ref, err := p.Candle(index - lookback)
	if err != nil {
		return false, err
	}
	return cur.Close >= ref.Close, nil
}
