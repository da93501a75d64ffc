package features

import (
	"math"

	"AlphaPipe/internal/domain/models"
)

// Classify labels the market regime from final feature values. Pure
// function: volatility normalized by mean price decides VOLATILE first,
// then trend strength splits TRENDING_UP/DOWN from RANGING. NaN inputs
// never satisfy a threshold, so degraded windows land in RANGING.
func Classify(trendStrength, volatility, meanClose float64, cfg Config) string {
	if meanClose > 0 && !math.IsNaN(volatility) && volatility/meanClose > cfg.VolatileVolRatio {
		return models.RegimeVolatile
	}
	if !math.IsNaN(trendStrength) && math.Abs(trendStrength) > cfg.TrendThreshold {
		if trendStrength > 0 {
			return models.RegimeTrendingUp
		}
		return models.RegimeTrendingDown
	}
	return models.RegimeRanging
}
