package models

// RiskContext is an ephemeral snapshot of account state and configured
// limits, supplied fresh per evaluation. It carries no identity.
type RiskContext struct {
	Symbol       string
	Exchange     string
	PnL          float64 // realized, today
	Exposure     float64 // current absolute notional, including the proposed action
	Leverage     float64
	MaxDailyLoss float64
	MaxExposure  float64
	MaxLeverage  float64
	FeedStale    bool
}

// RiskVerdict is the outcome of running the rule pack over one context.
// Adjusted is an extension point for rules that shrink an action rather
// than block it; the shipped rules only allow or block.
type RiskVerdict struct {
	Allow    bool
	Reason   string // empty when allowed
	Adjusted *Action
}
