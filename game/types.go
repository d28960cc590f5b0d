package game

// Candle is one OHLC sample at a discrete round index. Candles are derived,
// never stored as independent truth: the same (seed, config, index) always
// re-derives the same candle.
type Candle struct {
	Index         int     `json:"index"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	IsLiquidation bool    `json:"isLiquidation"`
}

// RoundConfig parameterizes one round's price path and liquidation schedule.
// Immutable for the life of a round; stored next to the seed so any party can
// recompute the path.
type RoundConfig struct {
	InitialPrice     float64 `json:"initialPrice"`
	TotalCandles     int     `json:"totalCandles"`
	CandleIntervalMs int64   `json:"candleIntervalMs"`

	DriftPerCandle      float64 `json:"driftPerCandle"`
	VolatilityPerCandle float64 `json:"volatilityPerCandle"`

	JumpUpProbability   float64 `json:"jumpUpProbability"`
	JumpUpMin           float64 `json:"jumpUpMin"`
	JumpUpMax           float64 `json:"jumpUpMax"`
	JumpDownProbability float64 `json:"jumpDownProbability"`
	JumpDownMin         float64 `json:"jumpDownMin"`
	JumpDownMax         float64 `json:"jumpDownMax"`

	WickFactor       float64 `json:"wickFactor"`
	MinPriceFloor    float64 `json:"minPriceFloor"`
	LiquidationFloor float64 `json:"liquidationFloor"`

	LiquidationGraceCandles int     `json:"liquidationGraceCandles"`
	LiquidationRampCandles  int     `json:"liquidationRampCandles"`
	BaseLiquidationChance   float64 `json:"baseLiquidationChance"`
	MaxLiquidationChance    float64 `json:"maxLiquidationChance"`
}

// RoundResult is a full deterministic replay of one round.
type RoundResult struct {
	Candles            []Candle `json:"candles"`
	LiquidationIndices []int    `json:"liquidationIndices"`
	FinalClose         float64  `json:"finalClose"`
	Seed               string   `json:"serverSeed"`
}
