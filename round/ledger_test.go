package round

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"goTradeServer/crypto"
	"goTradeServer/game"
)

func roundTestConfig() game.RoundConfig {
	return game.RoundConfig{
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

func newTestRound(seed string, cfg game.RoundConfig, startedAt time.Time) *Round {
	return &Round{
		ID:        "test-round",
		Seed:      seed,
		SeedHash:  crypto.HashSeed(seed),
		Config:    cfg,
		StartedAt: startedAt,
		status:    StatusActive,
		path:      game.NewPath(seed, cfg),
	}
}

// clockAt pins the ledger clock to the moment candle `index` is live.
func clockAt(l *Ledger, r *Round, index int) {
	at := r.StartedAt.Add(time.Duration(int64(index)*r.Config.CandleIntervalMs) * time.Millisecond)
	l.SetClock(func() time.Time { return at })
}

func trueClose(t *testing.T, r *Round, index int) float64 {
	t.Helper()
	c, err := r.path.Candle(index)
	if err != nil {
		t.Fatalf("candle %d: %v", index, err)
	}
	return c.Close
}

func TestOpenPositionVerification(t *testing.T) {
	ctx := context.Background()
	cfg := roundTestConfig()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newFixture := func() (*Ledger, *MemoryLedger, *Round) {
		funds := NewMemoryLedger(100.0)
		l := NewLedger(funds, 1e-9, 30, 0.002)
		r := newTestRound("open-verify-seed", cfg, start)
		clockAt(l, r, 0)
		return l, funds, r
	}

	t.Run("RejectsWrongPrice", func(t *testing.T) {
		l, _, r := newFixture()
		claimed := trueClose(t, r, 0) + 0.5
		_, err := l.OpenPosition(ctx, r, "alice", Long, 10, 1, 0, claimed)
		if !errors.Is(err, ErrPriceMismatch) {
			t.Fatalf("err = %v, want ErrPriceMismatch", err)
		}
		if r.OpenPosition() != nil {
			t.Error("rejected open left a position behind")
		}
	})

	t.Run("AcceptsTrueClose", func(t *testing.T) {
		l, funds, r := newFixture()
		want := trueClose(t, r, 0)
		pos, err := l.OpenPosition(ctx, r, "alice", Long, 10, 1, 0, want)
		if err != nil {
			t.Fatalf("open failed: %v", err)
		}
		if pos.EntryPrice != want {
			t.Errorf("entry price %.10f, want server-derived %.10f", pos.EntryPrice, want)
		}
		if pos.SizeFraction != 0.1 {
			t.Errorf("size fraction %v, want 0.1", pos.SizeFraction)
		}

		// Margin is locked, not spent
		available, _ := funds.Balance(ctx, "alice")
		if available != 90.0 {
			t.Errorf("available balance %v after lock, want 90", available)
		}
	})

	t.Run("ToleranceAbsorbsFloatNoise", func(t *testing.T) {
		l, _, r := newFixture()
		claimed := trueClose(t, r, 0) + 1e-12
		if _, err := l.OpenPosition(ctx, r, "alice", Long, 10, 1, 0, claimed); err != nil {
			t.Fatalf("open with sub-tolerance delta failed: %v", err)
		}
	})

	t.Run("SinglePositionRule", func(t *testing.T) {
		l, _, r := newFixture()
		price := trueClose(t, r, 0)
		if _, err := l.OpenPosition(ctx, r, "alice", Long, 10, 1, 0, price); err != nil {
			t.Fatal(err)
		}
		_, err := l.OpenPosition(ctx, r, "bob", Short, 5, 1, 0, price)
		if !errors.Is(err, ErrPositionAlreadyOpen) {
			t.Fatalf("err = %v, want ErrPositionAlreadyOpen", err)
		}
	})

	t.Run("RejectsInsufficientBalance", func(t *testing.T) {
		l, _, r := newFixture()
		price := trueClose(t, r, 0)
		_, err := l.OpenPosition(ctx, r, "alice", Long, 500, 1, 0, price)
		if !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("err = %v, want ErrInsufficientBalance", err)
		}
	})

	t.Run("RejectsFarFutureCandle", func(t *testing.T) {
		l, _, r := newFixture()
		price := trueClose(t, r, 100)
		_, err := l.OpenPosition(ctx, r, "alice", Long, 10, 1, 100, price)
		if !errors.Is(err, ErrTimingViolation) {
			t.Fatalf("err = %v, want ErrTimingViolation", err)
		}
	})

	t.Run("RejectsIndexOutOfRange", func(t *testing.T) {
		l, _, r := newFixture()
		_, err := l.OpenPosition(ctx, r, "alice", Long, 10, 1, cfg.TotalCandles, 1.0)
		if !errors.Is(err, ErrTimingViolation) {
			t.Fatalf("err = %v, want ErrTimingViolation", err)
		}
	})

	t.Run("RejectsInactiveRound", func(t *testing.T) {
		l, _, r := newFixture()
		r.status = StatusCompleted
		_, err := l.OpenPosition(ctx, r, "alice", Long, 10, 1, 0, trueClose(t, r, 0))
		if !errors.Is(err, ErrRoundNotActive) {
			t.Fatalf("err = %v, want ErrRoundNotActive", err)
		}
	})
}

func TestCloseInsideGraceSettlesWithoutLiquidation(t *testing.T) {
	ctx := context.Background()
	cfg := roundTestConfig()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	run := func(t *testing.T, dir Direction, leverage float64) *Settlement {
		funds := NewMemoryLedger(100.0)
		l := NewLedger(funds, 1e-9, 30, 0.002)
		r := newTestRound("grace-close-seed", cfg, start)

		clockAt(l, r, 0)
		entry := trueClose(t, r, 0)
		if _, err := l.OpenPosition(ctx, r, "alice", dir, 10, leverage, 0, entry); err != nil {
			t.Fatalf("open failed: %v", err)
		}

		clockAt(l, r, 4)
		exit := trueClose(t, r, 4)
		s, err := l.ClosePosition(ctx, r, "alice", 4, exit)
		if err != nil {
			t.Fatalf("close failed: %v", err)
		}

		// Candles 0..4 are deep inside the grace window: liquidation is
		// impossible no matter what the position looks like.
		if s.Liquidated {
			t.Fatalf("liquidated inside grace period at index %d", s.LiquidationIndex)
		}

		wantGross := 10 * leverage * dir.Sign() * (exit - entry) / entry
		wantNet := wantGross - 10*0.002
		if math.Abs(s.GrossPnl-wantGross) > 1e-12 {
			t.Errorf("gross pnl %v, want %v", s.GrossPnl, wantGross)
		}
		if math.Abs(s.NetPnl-wantNet) > 1e-12 {
			t.Errorf("net pnl %v, want %v", s.NetPnl, wantNet)
		}

		available, _ := funds.Balance(ctx, "alice")
		if math.Abs(available-(100+wantNet)) > 1e-12 {
			t.Errorf("balance %v after settlement, want %v", available, 100+wantNet)
		}

		if r.OpenPosition() != nil {
			t.Error("position still open after settlement")
		}
		if len(r.Settlements()) != 1 {
			t.Errorf("settlement count %d, want 1", len(r.Settlements()))
		}
		return s
	}

	t.Run("Long1x", func(t *testing.T) { run(t, Long, 1) })
	t.Run("Short1x", func(t *testing.T) { run(t, Short, 1) })
	t.Run("Long10x", func(t *testing.T) {
		s := run(t, Long, 10)
		base := 10 * 1.0 * (s.ExitPrice - s.EntryPrice) / s.EntryPrice
		if math.Abs(s.GrossPnl-10*base) > 1e-9 {
			t.Errorf("leverage did not scale pnl: gross %v, 1x base %v", s.GrossPnl, base)
		}
	})
}

func TestCloseRejections(t *testing.T) {
	ctx := context.Background()
	cfg := roundTestConfig()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	funds := NewMemoryLedger(100.0)
	l := NewLedger(funds, 1e-9, 30, 0.002)
	r := newTestRound("close-reject-seed", cfg, start)
	clockAt(l, r, 0)

	t.Run("NoOpenPosition", func(t *testing.T) {
		_, err := l.ClosePosition(ctx, r, "alice", 0, trueClose(t, r, 0))
		if !errors.Is(err, ErrNoOpenPosition) {
			t.Fatalf("err = %v, want ErrNoOpenPosition", err)
		}
	})

	if _, err := l.OpenPosition(ctx, r, "alice", Long, 10, 1, 0, trueClose(t, r, 0)); err != nil {
		t.Fatal(err)
	}

	t.Run("WrongPlayer", func(t *testing.T) {
		_, err := l.ClosePosition(ctx, r, "bob", 0, trueClose(t, r, 0))
		if !errors.Is(err, ErrNoOpenPosition) {
			t.Fatalf("err = %v, want ErrNoOpenPosition", err)
		}
	})

	t.Run("WrongExitPrice", func(t *testing.T) {
		clockAt(l, r, 4)
		_, err := l.ClosePosition(ctx, r, "alice", 4, trueClose(t, r, 4)+1.0)
		if !errors.Is(err, ErrPriceMismatch) {
			t.Fatalf("err = %v, want ErrPriceMismatch", err)
		}
	})

	t.Run("PositionSurvivesRejectedClose", func(t *testing.T) {
		if r.OpenPosition() == nil {
			t.Fatal("position gone after rejected closes")
		}
	})
}

func TestLiquidationOverridesVoluntaryClose(t *testing.T) {
	ctx := context.Background()

	// No grace and a base chance far above the ceiling: every candle's
	// probability saturates at the cap, for the bare path and for any open
	// position alike, so the first liquidation index is exact.
	cfg := roundTestConfig()
	cfg.TotalCandles = 50
	cfg.LiquidationGraceCandles = 0
	cfg.LiquidationRampCandles = 0
	cfg.BaseLiquidationChance = 1.0
	cfg.MaxLiquidationChance = 0.5

	seed := "forced-liquidation-seed"
	result := game.ReplayRound(seed, cfg)
	if len(result.LiquidationIndices) == 0 {
		t.Fatal("expected liquidations with a 50% per-candle chance")
	}
	firstLiq := result.LiquidationIndices[0]

	exit := firstLiq + 2
	if exit > cfg.TotalCandles-1 {
		exit = cfg.TotalCandles - 1
	}

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	funds := NewMemoryLedger(100.0)
	// Slack spans the whole round so timing never interferes here.
	l := NewLedger(funds, 1e-9, cfg.TotalCandles, 0.002)
	r := newTestRound(seed, cfg, start)
	clockAt(l, r, 0)

	if _, err := l.OpenPosition(ctx, r, "alice", Long, 10, 1, 0, trueClose(t, r, 0)); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	clockAt(l, r, exit)
	s, err := l.ClosePosition(ctx, r, "alice", exit, trueClose(t, r, exit))
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if !s.Liquidated {
		t.Fatal("voluntary close was honored across a liquidation candle")
	}
	if s.LiquidationIndex != firstLiq {
		t.Errorf("liquidation index %d, want first flagged %d", s.LiquidationIndex, firstLiq)
	}
	if s.ExitPrice != cfg.LiquidationFloor {
		t.Errorf("exit price %v, want liquidation floor %v", s.ExitPrice, cfg.LiquidationFloor)
	}
	if s.NetPnl != -10 {
		t.Errorf("net pnl %v, want full loss -10", s.NetPnl)
	}
	if s.Fee != 0 {
		t.Errorf("fee %v on liquidation, want 0", s.Fee)
	}

	available, _ := funds.Balance(ctx, "alice")
	if math.Abs(available-90.0) > 1e-12 {
		t.Errorf("balance %v after liquidation, want 90", available)
	}
}

func TestCloseBeforeEntryRejected(t *testing.T) {
	ctx := context.Background()
	cfg := roundTestConfig()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	funds := NewMemoryLedger(100.0)
	l := NewLedger(funds, 1e-9, 30, 0.002)
	r := newTestRound("pre-entry-close-seed", cfg, start)

	clockAt(l, r, 10)
	if _, err := l.OpenPosition(ctx, r, "alice", Long, 10, 1, 10, trueClose(t, r, 10)); err != nil {
		t.Fatal(err)
	}

	_, err := l.ClosePosition(ctx, r, "alice", 5, trueClose(t, r, 5))
	if !errors.Is(err, ErrTimingViolation) {
		t.Fatalf("err = %v, want ErrTimingViolation", err)
	}
}

// A round is created before its countdown, but candles only stream after it.
// The clock must follow the stream: a trade claiming the candle the server
// just broadcast is honest and must pass the timing check.
func TestClockFollowsStreamStart(t *testing.T) {
	ctx := context.Background()
	cfg := roundTestConfig()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	countdown := 5 * time.Second

	funds := NewMemoryLedger(100.0)
	l := NewLedger(funds, 1e-9, 30, 0.002)
	r := newTestRound("stream-anchor-seed", cfg, created)

	// Candle 35 goes out at streamStart + 35 intervals
	streamStart := created.Add(countdown)
	liveAt := streamStart.Add(time.Duration(35*cfg.CandleIntervalMs) * time.Millisecond)
	l.SetClock(func() time.Time { return liveAt })

	t.Run("CreationAnchoredClockRejectsStreamedCandle", func(t *testing.T) {
		_, err := l.OpenPosition(ctx, r, "alice", Long, 10, 1, 35, trueClose(t, r, 35))
		if !errors.Is(err, ErrTimingViolation) {
			t.Fatalf("err = %v, want ErrTimingViolation while clock still counts the countdown", err)
		}
	})

	t.Run("StreamAnchoredClockAcceptsStreamedCandle", func(t *testing.T) {
		r.BeginStreaming(streamStart)

		pos, err := l.OpenPosition(ctx, r, "alice", Long, 10, 1, 35, trueClose(t, r, 35))
		if err != nil {
			t.Fatalf("open at just-streamed candle failed: %v", err)
		}
		if pos.EntryIndex != 35 {
			t.Errorf("entry index %d, want 35", pos.EntryIndex)
		}
	})

	t.Run("SlackStillBoundsClaims", func(t *testing.T) {
		_, err := l.ClosePosition(ctx, r, "alice", 35+31, trueClose(t, r, 35+31))
		if !errors.Is(err, ErrTimingViolation) {
			t.Fatalf("err = %v, want ErrTimingViolation for a claim beyond the window", err)
		}
	})
}
