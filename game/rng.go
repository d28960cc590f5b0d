package game

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Stream lane labels. Every candle index owns two independent deterministic
// streams: "price" drives the OHLC math, "risk" drives liquidation sampling.
// Keeping them in separate lanes means price generation and risk sampling can
// run on different goroutines without fighting over stream offsets.
const (
	lanePrice = "price"
	laneRisk  = "risk"
)

// PriceStream holds the four uniform values in [0,1) that drive one candle.
type PriceStream struct {
	Base     float64 // zero-centered base return perturbation
	Jump     float64 // jump selector
	JumpSize float64 // jump magnitude within the configured range
	Wick     float64 // wick split between high and low
}

// RiskStream holds the two uniform values in [0,1) for liquidation sampling.
type RiskStream struct {
	Multiplier float64 // bounded random risk multiplier sample
	Sample     float64 // Bernoulli sample for the liquidation outcome
}

// deriveDigest hashes seed, candle index and lane label into 32 bytes.
// Same labeled-string scheme as the seed commitment: sha256 over
// "{seed}-{index}-{lane}".
func deriveDigest(seed string, index int, lane string) [32]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%s-%d-%s", seed, index, lane)))
}

// uniform maps 8 bytes to a float64 in [0,1) using the top 53 bits,
// so the value is exact in IEEE-754 double precision on every platform.
func uniform(b []byte) float64 {
	u := binary.BigEndian.Uint64(b)
	return float64(u>>11) / (1 << 53)
}

// DerivePriceStream returns the price-lane uniforms for one candle index.
// Pure: same (seed, index) always yields the same four values.
func DerivePriceStream(seed string, index int) PriceStream {
	h := deriveDigest(seed, index, lanePrice)
	return PriceStream{
		Base:     uniform(h[0:8]),
		Jump:     uniform(h[8:16]),
		JumpSize: uniform(h[16:24]),
		Wick:     uniform(h[24:32]),
	}
}

// DeriveRiskStream returns the risk-lane uniforms for one candle index.
func DeriveRiskStream(seed string, index int) RiskStream {
	h := deriveDigest(seed, index, laneRisk)
	return RiskStream{
		Multiplier: uniform(h[0:8]),
		Sample:     uniform(h[8:16]),
	}
}
