package round

import (
	"context"
	"fmt"
	"math"
	"time"

	"goTradeServer/game"
)

// FundsLedger is the external collaborator that actually moves money. The
// core treats every call as fallible and idempotent-by-key; retries with
// backoff happen at the boundary (the relayer), never by mutating
// already-applied core state.
type FundsLedger interface {
	Balance(ctx context.Context, player string) (float64, error)
	Lock(ctx context.Context, player string, amount float64) error
	Release(ctx context.Context, player string, amount float64) error
	Settle(ctx context.Context, player string, delta float64) error
}

// Ledger is the sole authority for what counts as a valid trade. Every
// client-claimed price is recomputed from (seed, index) and compared; the
// client's number is never trusted directly.
type Ledger struct {
	funds          FundsLedger
	now            func() time.Time
	priceTolerance float64
	timingSlack    int // allowed distance between claimed index and round clock
	feeRate        float64
}

func NewLedger(funds FundsLedger, priceTolerance float64, timingSlack int, feeRate float64) *Ledger {
	return &Ledger{
		funds:          funds,
		now:            time.Now,
		priceTolerance: priceTolerance,
		timingSlack:    timingSlack,
		feeRate:        feeRate,
	}
}

// SetClock overrides the time source. Test hook.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// checkTiming rejects claims too far from the server's notion of elapsed
// round time: a future candle or a stale past one signals replay or
// clock-skew abuse.
func (l *Ledger) checkTiming(r *Round, claimedIndex int) error {
	if claimedIndex < 0 || claimedIndex >= r.Config.TotalCandles {
		return ErrTimingViolation
	}
	expected := r.clock(l.now())
	if diff := claimedIndex - expected; diff > l.timingSlack || diff < -l.timingSlack {
		return ErrTimingViolation
	}
	return nil
}

// verifyPrice recomputes the candle at claimedIndex and compares closes.
// The tolerance absorbs float round-trip noise, never real discrepancies.
func (l *Ledger) verifyPrice(r *Round, claimedIndex int, claimedPrice float64) (game.Candle, error) {
	c, err := r.path.Candle(claimedIndex)
	if err != nil {
		return game.Candle{}, ErrTimingViolation
	}
	if math.Abs(c.Close-claimedPrice) > l.priceTolerance {
		return game.Candle{}, ErrPriceMismatch
	}
	return c, nil
}

// OpenPosition validates and opens the round's single position, locking
// margin with the funds ledger. The recorded entry price is the
// server-verified close, not the client's claim.
func (l *Ledger) OpenPosition(ctx context.Context, r *Round, player string, dir Direction, size, leverage float64, claimedIndex int, claimedPrice float64) (*Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusActive {
		return nil, ErrRoundNotActive
	}
	if r.position != nil {
		return nil, ErrPositionAlreadyOpen
	}
	if err := l.checkTiming(r, claimedIndex); err != nil {
		return nil, err
	}

	candle, err := l.verifyPrice(r, claimedIndex, claimedPrice)
	if err != nil {
		return nil, err
	}

	balance, err := l.funds.Balance(ctx, player)
	if err != nil {
		return nil, fmt.Errorf("funds ledger balance check failed: %w", err)
	}
	if size > balance {
		return nil, ErrInsufficientBalance
	}
	if err := l.funds.Lock(ctx, player, size); err != nil {
		return nil, fmt.Errorf("failed to lock margin: %w", err)
	}

	sizeFraction := 0.0
	if balance > 0 {
		sizeFraction = size / balance
	}

	r.position = &Position{
		Player:       player,
		Direction:    dir,
		Size:         size,
		Leverage:     leverage,
		SizeFraction: sizeFraction,
		EntryPrice:   candle.Close,
		EntryIndex:   claimedIndex,
		OpenedAt:     l.now(),
	}
	p := *r.position
	return &p, nil
}

// ClosePosition validates a voluntary close. If any candle between entry and
// the claimed exit liquidates the position, the close is forced as a
// full-loss liquidation regardless of the claimed price.
func (l *Ledger) ClosePosition(ctx context.Context, r *Round, player string, claimedIndex int, claimedPrice float64) (*Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusActive {
		return nil, ErrRoundNotActive
	}
	pos := r.position
	if pos == nil || pos.Player != player {
		return nil, ErrNoOpenPosition
	}
	if err := l.checkTiming(r, claimedIndex); err != nil {
		return nil, err
	}
	if claimedIndex < pos.EntryIndex {
		return nil, ErrTimingViolation
	}

	candle, err := l.verifyPrice(r, claimedIndex, claimedPrice)
	if err != nil {
		return nil, err
	}

	return l.settleLocked(ctx, r, pos, candle)
}

// settleLocked closes pos at exit candle, applying the liquidation scan.
// Caller holds r.mu.
func (l *Ledger) settleLocked(ctx context.Context, r *Round, pos *Position, exit game.Candle) (*Settlement, error) {
	liqIndex, liquidated, err := l.scanLiquidations(r, pos, exit.Index)
	if err != nil {
		return nil, err
	}

	s := &Settlement{
		Player:     pos.Player,
		Direction:  pos.Direction,
		Size:       pos.Size,
		Leverage:   pos.Leverage,
		EntryIndex: pos.EntryIndex,
		EntryPrice: pos.EntryPrice,
		SettledAt:  l.now(),
	}

	if liquidated {
		// Liquidation always overrides a voluntary close: full position loss.
		liqCandle, err := r.path.Candle(liqIndex)
		if err != nil {
			return nil, err
		}
		s.ExitIndex = liqIndex
		s.ExitPrice = liqCandle.Close
		s.GrossPnl = -pos.Size
		s.NetPnl = -pos.Size
		s.Liquidated = true
		s.LiquidationIndex = liqIndex
	} else {
		s.ExitIndex = exit.Index
		s.ExitPrice = exit.Close
		s.GrossPnl = pos.Size * pos.Leverage * pos.Direction.Sign() * (exit.Close - pos.EntryPrice) / pos.EntryPrice
		s.Fee = pos.Size * l.feeRate
		s.NetPnl = s.GrossPnl - s.Fee
	}

	if err := l.funds.Release(ctx, pos.Player, pos.Size); err != nil {
		return nil, fmt.Errorf("failed to release margin: %w", err)
	}
	if err := l.funds.Settle(ctx, pos.Player, s.NetPnl); err != nil {
		return nil, fmt.Errorf("failed to settle pnl: %w", err)
	}

	r.position = nil
	r.closed = append(r.closed, s)
	return s, nil
}

// scanLiquidations walks every candle the position was open at and returns
// the first index that liquidates it. Candle-level flags fire from the base
// probability alone; an open position layers its time/size/leverage/greed/
// trend risk on top against the same per-index sample, so a position can only
// add liquidations, never remove one.
func (l *Ledger) scanLiquidations(r *Round, pos *Position, exitIndex int) (int, bool, error) {
	cfg := r.Config
	for i := pos.EntryIndex; i <= exitIndex; i++ {
		c, err := r.path.Candle(i)
		if err != nil {
			return 0, false, err
		}
		if c.IsLiquidation {
			return i, true, nil
		}

		risk, err := l.positionRiskAt(r, pos, i)
		if err != nil {
			return 0, false, err
		}
		if game.SampleLiquidation(r.Seed, cfg, i, risk) {
			return i, true, nil
		}
	}
	return 0, false, nil
}

// positionRiskAt builds the risk attributes for pos at candle index.
func (l *Ledger) positionRiskAt(r *Round, pos *Position, index int) (*game.PositionRisk, error) {
	c, err := r.path.Candle(index)
	if err != nil {
		return nil, err
	}

	pnlFraction := pos.Leverage * pos.Direction.Sign() * (c.Close - pos.EntryPrice) / pos.EntryPrice

	trendUp, err := r.path.TrendUp(index, game.TrendLookbackCandles)
	if err != nil {
		return nil, err
	}
	againstTrend := (pos.Direction == Long && !trendUp) || (pos.Direction == Short && trendUp)

	return &game.PositionRisk{
		HoldCandles:  index - pos.EntryIndex,
		SizeFraction: pos.SizeFraction,
		Leverage:     pos.Leverage,
		PnlFraction:  pnlFraction,
		AgainstTrend: againstTrend,
	}, nil
}

// forceClose settles a still-open position at the final candle during round
// settlement. Liquidation rules still apply across the full hold range.
func (l *Ledger) forceClose(ctx context.Context, r *Round) (*Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos := r.position
	if pos == nil {
		return nil, nil
	}
	final, err := r.path.Candle(r.Config.TotalCandles - 1)
	if err != nil {
		return nil, err
	}
	return l.settleLocked(ctx, r, pos, final)
}
