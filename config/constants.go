package config

import (
	"math/big"
	"time"

	"goTradeServer/game"
)

/* =========================
   NETWORK CONFIGURATION
========================= */

const (
	// Mantle Sepolia Testnet
	MantleSepoliaRPC = "https://rpc.sepolia.mantle.xyz"
	MantleChainID    = 5003
)

/* =========================
   ROUND CONFIGURATION
========================= */

const (
	// 30-second rounds at ~15.6 candles/sec
	RoundDurationCandles = 470
	CandleIntervalMs     = 64
	InitialPrice         = 100.0
	MinPriceFloor        = 0.01
	LiquidationFloor     = 0.05

	// Price path shape
	DriftPerCandle      = 0.0   // zero drift keeps the path directionally fair
	VolatilityPerCandle = 0.02  // ±2% base moves
	JumpUpProbability   = 0.004 // rare positive jumps
	JumpUpMin           = 0.03
	JumpUpMax           = 0.12
	JumpDownProbability = 0.004
	JumpDownMin         = 0.03
	JumpDownMax         = 0.12
	WickFactor          = 0.7

	// Liquidation schedule
	LiquidationGraceCandles = 150 // 10 seconds of guaranteed safety
	LiquidationRampCandles  = 75  // 5 seconds ramping up to base chance
	BaseLiquidationChance   = 0.0003
	MaxLiquidationChance    = 0.01 // global 1% ceiling per candle

	// Round timing
	CountdownDuration   = 5 * time.Second
	RoundEndWaitDuration = 10 * time.Second
	MaxRoundHistory     = 50
)

// DefaultRoundConfig returns the canonical round parameters. Every value is
// configuration, never hardcoded inside the generator or risk engine.
func DefaultRoundConfig() game.RoundConfig {
	return game.RoundConfig{
		InitialPrice:     InitialPrice,
		TotalCandles:     RoundDurationCandles,
		CandleIntervalMs: CandleIntervalMs,

		DriftPerCandle:      DriftPerCandle,
		VolatilityPerCandle: VolatilityPerCandle,

		JumpUpProbability:   JumpUpProbability,
		JumpUpMin:           JumpUpMin,
		JumpUpMax:           JumpUpMax,
		JumpDownProbability: JumpDownProbability,
		JumpDownMin:         JumpDownMin,
		JumpDownMax:         JumpDownMax,

		WickFactor:       WickFactor,
		MinPriceFloor:    MinPriceFloor,
		LiquidationFloor: LiquidationFloor,

		LiquidationGraceCandles: LiquidationGraceCandles,
		LiquidationRampCandles:  LiquidationRampCandles,
		BaseLiquidationChance:   BaseLiquidationChance,
		MaxLiquidationChance:    MaxLiquidationChance,
	}
}

/* =========================
   TRADING CONFIGURATION
========================= */

const (
	// Verification
	PriceTolerance      = 1e-9 // absorbs float round-trip noise, nothing more
	TimingSlackCandles  = 30   // ~2 seconds of allowed clock skew

	// Fees and sizing
	TradingFeeRate    = 0.002 // 0.2% of position size
	PositionSizeRatio = 0.2   // default stake fraction per trade
	MaxLeverage       = 20.0
	MinPositionSize   = 0.001

	// Seed balance for the in-memory ledger when no escrow is configured
	DevStartingBalance = 100.0
)

/* =========================
   REDIS TTL CONFIGURATION
========================= */

const (
	// Open position TTL (covers a full round plus settlement)
	// Key: position:{roundId} -> Hash{player: position JSON}
	PositionTTL = 1 * time.Hour

	// Settled round snapshot TTL
	// Key: round:result:{roundId}
	RoundResultTTL = 2 * time.Hour
)

/* =========================
   REDIS KEY PATTERNS
========================= */

const (
	RedisPositionKey    = "position:%s"     // position:{roundId} (HASH)
	RedisRoundResultKey = "round:result:%s" // round:result:{roundId}
)

/* =========================
   POSTGRESQL CONFIGURATION
========================= */

const (
	MaxOpenConns    = 25
	MaxIdleConns    = 5
	ConnMaxLifetime = 5 * time.Minute
)

/* =========================
   RELAYER CONFIGURATION
========================= */

const (
	RelayerGasLimit    = 150000
	RelayerMaxGasPrice = 10000000000 // 10 Gwei

	MaxRetries         = 3
	RetryDelay         = 2 * time.Second
	TransactionTimeout = 30 * time.Second
)

/* =========================
   API CONFIGURATION
========================= */

const (
	ServerPort = "8080"
	ServerHost = "0.0.0.0"

	AllowOrigin = "*"
)

/* =========================
   WEBSOCKET CONFIGURATION
========================= */

const (
	WSReadDeadline  = 60 * time.Second
	WSWriteDeadline = 10 * time.Second
	WSPingInterval  = 30 * time.Second

	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024

	MaxMessageSize = 512 * 1024 // 512KB
)

/* =========================
   VALIDATION CONSTANTS
========================= */

var (
	// Decimal precision for on-chain amounts
	DecimalPrecision = big.NewInt(1e18)
)

const (
	// Stake bounds (in wei, 18 decimals)
	MinStakeAmount = 1000000000000000      // 0.001 MNT
	MaxStakeAmount = 100000000000000000000 // 100 MNT
)

/* =========================
   HELPER FUNCTIONS
========================= */

// WeiToMNT converts wei (uint256) to MNT (float64)
func WeiToMNT(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	weiFloat := new(big.Float).SetInt(wei)
	divisor := new(big.Float).SetFloat64(1e18)
	result := new(big.Float).Quo(weiFloat, divisor)
	mnt, _ := result.Float64()
	return mnt
}

// MNTToWei converts MNT (float64) to wei (*big.Int)
func MNTToWei(mnt float64) *big.Int {
	weiFloat := new(big.Float).SetFloat64(mnt * 1e18)
	wei, _ := weiFloat.Int(nil)
	return wei
}
