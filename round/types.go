package round

import (
	"sync"
	"time"

	"goTradeServer/game"
)

// Direction of a position.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Sign returns +1 for LONG, -1 for SHORT.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// Status is the round lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSettling  Status = "settling"
	StatusCompleted Status = "completed"
	StatusDisputed  Status = "disputed"
	StatusAborted   Status = "aborted"
)

// Position is the single open trade of a round. Created only by the verifier,
// always with the server-verified entry price.
type Position struct {
	Player       string    `json:"player"`
	Direction    Direction `json:"direction"`
	Size         float64   `json:"size"`     // margin locked, in game currency
	Leverage     float64   `json:"leverage"`
	SizeFraction float64   `json:"sizeFraction"` // size / balance at entry
	EntryPrice   float64   `json:"entryPrice"`
	EntryIndex   int       `json:"entryIndex"`
	OpenedAt     time.Time `json:"openedAt"`
}

// Settlement is the terminal record of a closed position.
type Settlement struct {
	Player           string    `json:"player"`
	Direction        Direction `json:"direction"`
	Size             float64   `json:"size"`
	Leverage         float64   `json:"leverage"`
	EntryIndex       int       `json:"entryIndex"`
	EntryPrice       float64   `json:"entryPrice"`
	ExitIndex        int       `json:"exitIndex"`
	ExitPrice        float64   `json:"exitPrice"`
	GrossPnl         float64   `json:"grossPnl"`
	Fee              float64   `json:"fee"`
	NetPnl           float64   `json:"netPnl"`
	Liquidated       bool      `json:"liquidated"`
	LiquidationIndex int       `json:"liquidationIndex,omitempty"`
	SettledAt        time.Time `json:"settledAt"`
}

// Round owns the authoritative seed and configuration for one game round.
// All trade access is serialized through mu; the candle path itself is safe
// for concurrent reads.
type Round struct {
	ID         string           `json:"id"`
	Seed       string           `json:"-"` // disclosed only after settlement
	SeedHash   string           `json:"serverSeedHash"`
	Provenance string           `json:"provenance,omitempty"`
	Config     game.RoundConfig `json:"config"`
	StartedAt  time.Time        `json:"startedAt"`

	mu       sync.Mutex
	status   Status
	path     *game.Path
	position *Position
	closed   []*Settlement
}

// Status returns the current lifecycle state.
func (r *Round) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// OpenPosition returns a copy of the open position, or nil.
func (r *Round) OpenPosition() *Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.position == nil {
		return nil
	}
	p := *r.position
	return &p
}

// Settlements returns the round's closed trades, oldest first.
func (r *Round) Settlements() []*Settlement {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Settlement, len(r.closed))
	copy(out, r.closed)
	return out
}

// BeginStreaming re-anchors the round clock to the moment the first candle
// goes out. StartRound stamps creation time, but timing checks compare client
// claims against the stream, so the clock must measure from stream start, not
// from creation (a countdown runs in between).
func (r *Round) BeginStreaming(now time.Time) {
	r.mu.Lock()
	r.StartedAt = now
	r.mu.Unlock()
}

// Candle re-derives the candle at index from the round's own path cache.
// Idempotent and always recomputable, even after the round ends.
func (r *Round) Candle(index int) (game.Candle, error) {
	return r.path.Candle(index)
}

// clock returns the candle index the server expects at time now.
func (r *Round) clock(now time.Time) int {
	elapsed := now.Sub(r.StartedAt).Milliseconds()
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / r.Config.CandleIntervalMs)
}
