package round

import "errors"

// Rejection reasons returned by the verifier and controller. Each is a
// distinct value so callers can tell a fraud/desync signal (price mismatch,
// timing violation) apart from ordinary business-rule failures.
var (
	// ErrPriceMismatch means the client's claimed price disagrees with the
	// server's recomputed candle beyond tolerance. Treated as a fraud attempt
	// or desync; the request is rejected without side effects.
	ErrPriceMismatch = errors.New("claimed price does not match recomputed candle")

	// ErrNoActiveRound means the round ID is unknown.
	ErrNoActiveRound = errors.New("no active round")

	// ErrRoundNotActive means the round exists but is not accepting trades.
	ErrRoundNotActive = errors.New("round is not active")

	// ErrPositionAlreadyOpen enforces the single-position model.
	ErrPositionAlreadyOpen = errors.New("a position is already open for this round")

	// ErrNoOpenPosition means a close was requested with nothing open.
	ErrNoOpenPosition = errors.New("no open position for this round")

	// ErrInsufficientBalance means required margin exceeds available balance.
	ErrInsufficientBalance = errors.New("insufficient balance for required margin")

	// ErrTimingViolation means the claimed candle index is too far from the
	// server's round clock (possible replay or clock-skew abuse).
	ErrTimingViolation = errors.New("claimed candle index outside timing window")

	// ErrDeterminismViolation means a re-derived value disagreed with the
	// live path. Indicates an implementation bug; the round is disputed, not
	// silently settled.
	ErrDeterminismViolation = errors.New("replay disagrees with live path")
)
