package round

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"goTradeServer/game"
)

// SeedSource supplies a committed, unpredictable seed before a round starts.
// Provenance (e.g. a transaction hash) is stored for later audit but never
// participates in candle arithmetic.
type SeedSource interface {
	GetSeed(ctx context.Context) (seed, hash, provenance string, err error)
}

// Controller orchestrates round lifecycle and is the boundary between the
// core and external collaborators. Rounds are passed around as explicit
// handles keyed by ID; there is no process-wide "current round".
type Controller struct {
	seeds  SeedSource
	funds  FundsLedger
	ledger *Ledger
	now    func() time.Time

	mu     sync.RWMutex
	rounds map[string]*Round
}

func NewController(seeds SeedSource, funds FundsLedger, ledger *Ledger) *Controller {
	return &Controller{
		seeds:  seeds,
		funds:  funds,
		ledger: ledger,
		now:    time.Now,
		rounds: make(map[string]*Round),
	}
}

// SetClock overrides the time source. Test hook.
func (c *Controller) SetClock(now func() time.Time) {
	c.now = now
	c.ledger.SetClock(now)
}

// StartRound requests a seed, registers the round and transitions it to
// active. The seed stays undisclosed until settlement; only its commitment
// hash is public while the round runs.
func (c *Controller) StartRound(ctx context.Context, cfg game.RoundConfig) (*Round, error) {
	if cfg.TotalCandles <= 0 || cfg.InitialPrice <= 0 || cfg.CandleIntervalMs <= 0 {
		return nil, fmt.Errorf("invalid round config: candles=%d price=%.4f interval=%dms",
			cfg.TotalCandles, cfg.InitialPrice, cfg.CandleIntervalMs)
	}

	seed, hash, provenance, err := c.seeds.GetSeed(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed source failed: %w", err)
	}

	now := c.now()
	r := &Round{
		ID:         now.Format("20060102-150405.000"),
		Seed:       seed,
		SeedHash:   hash,
		Provenance: provenance,
		Config:     cfg,
		StartedAt:  now,
		status:     StatusActive,
		path:       game.NewPath(seed, cfg),
	}

	c.mu.Lock()
	c.rounds[r.ID] = r
	c.mu.Unlock()

	log.Printf("🎲 Round started - ID: %s, Candles: %d, SeedHash: %s…", r.ID, cfg.TotalCandles, hash[:16])
	return r, nil
}

// GetRound returns the round handle for an ID.
func (c *Controller) GetRound(roundID string) (*Round, error) {
	c.mu.RLock()
	r, ok := c.rounds[roundID]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrNoActiveRound
	}
	return r, nil
}

// GetCandle recomputes the candle at index for a round. Idempotent.
func (c *Controller) GetCandle(roundID string, index int) (game.Candle, error) {
	r, err := c.GetRound(roundID)
	if err != nil {
		return game.Candle{}, err
	}
	return r.Candle(index)
}

// GetRoundStatus returns the round's lifecycle state.
func (c *Controller) GetRoundStatus(roundID string) (Status, error) {
	r, err := c.GetRound(roundID)
	if err != nil {
		return "", err
	}
	return r.Status(), nil
}

// OpenPosition verifies and opens a trade on the round.
func (c *Controller) OpenPosition(ctx context.Context, roundID, player string, dir Direction, size, leverage float64, claimedIndex int, claimedPrice float64) (*Position, error) {
	r, err := c.GetRound(roundID)
	if err != nil {
		return nil, err
	}
	return c.ledger.OpenPosition(ctx, r, player, dir, size, leverage, claimedIndex, claimedPrice)
}

// ClosePosition verifies and closes the round's open trade.
func (c *Controller) ClosePosition(ctx context.Context, roundID, player string, claimedIndex int, claimedPrice float64) (*Settlement, error) {
	r, err := c.GetRound(roundID)
	if err != nil {
		return nil, err
	}
	return c.ledger.ClosePosition(ctx, r, player, claimedIndex, claimedPrice)
}

// SettleRound ends the round: no more opens are accepted, any still-open
// position is force-closed at the final candle, and the final close is
// cross-checked against an independent replay before the round completes.
// A replay mismatch marks the round disputed instead of completing it.
func (c *Controller) SettleRound(ctx context.Context, roundID string) (*Settlement, error) {
	r, err := c.GetRound(roundID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.status != StatusActive {
		r.mu.Unlock()
		return nil, ErrRoundNotActive
	}
	r.status = StatusSettling
	r.mu.Unlock()

	settlement, err := c.ledger.forceClose(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("force close at settlement failed: %w", err)
	}

	// Cross-check: the live path's final close must equal an independent
	// replay from (seed, config). These can only disagree on an
	// implementation bug, and that must never be silently tolerated.
	liveFinal, err := r.Candle(r.Config.TotalCandles - 1)
	if err != nil {
		return nil, err
	}
	replayFinal := game.VerifyFinalClose(r.Seed, r.Config)

	r.mu.Lock()
	if math.Abs(liveFinal.Close-replayFinal) > 0 {
		r.status = StatusDisputed
		r.mu.Unlock()
		log.Printf("❌ Round %s disputed - live close %.10f vs replay %.10f", r.ID, liveFinal.Close, replayFinal)
		return settlement, ErrDeterminismViolation
	}
	r.status = StatusCompleted
	r.mu.Unlock()

	log.Printf("✅ Round settled - ID: %s, Final: %.4f", r.ID, liveFinal.Close)
	return settlement, nil
}

// AbortRound stops a round (e.g. the funds collaborator is unreachable). No
// further trades are accepted, but the candle history stays reproducible from
// (seed, config) for audit. Locked margin is released, not settled.
func (c *Controller) AbortRound(ctx context.Context, roundID string) error {
	r, err := c.GetRound(roundID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == StatusCompleted || r.status == StatusDisputed {
		return ErrRoundNotActive
	}
	if r.position != nil {
		if err := c.funds.Release(ctx, r.position.Player, r.position.Size); err != nil {
			return fmt.Errorf("failed to release margin on abort: %w", err)
		}
		r.position = nil
	}
	r.status = StatusAborted
	log.Printf("⚠️  Round aborted - ID: %s", r.ID)
	return nil
}

// Reveal discloses the seed of a finished round for external auditing.
func (c *Controller) Reveal(roundID string) (seed string, err error) {
	r, err := c.GetRound(roundID)
	if err != nil {
		return "", err
	}
	switch r.Status() {
	case StatusCompleted, StatusDisputed, StatusAborted:
		return r.Seed, nil
	default:
		return "", ErrRoundNotActive
	}
}

// DropRound removes a finished round from the registry.
func (c *Controller) DropRound(roundID string) {
	c.mu.Lock()
	delete(c.rounds, roundID)
	c.mu.Unlock()
}
