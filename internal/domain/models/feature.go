package models

// Market regime labels.
const (
	RegimeTrendingUp   = "trending_up"
	RegimeTrendingDown = "trending_down"
	RegimeRanging      = "ranging"
	RegimeVolatile     = "volatile"
)

// FeatureVector is one computed feature snapshot anchored at the last
// bar of a window. Values may be NaN to denote "undefined for this
// window"; consumers must check before use. Built fresh per call, no
// identity beyond its timestamp.
type FeatureVector struct {
	Timestamp int64
	Exchange  string
	Symbol    string
	Timeframe string
	Features  map[string]float64
	Regime    string // one of the Regime* constants, empty if unclassified
}

// Get returns the named feature and whether it is present.
func (fv *FeatureVector) Get(name string) (float64, bool) {
	v, ok := fv.Features[name]
	return v, ok
}
