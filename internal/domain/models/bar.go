package models

import (
	"fmt"
	"time"
)

// Bar is a single OHLCV bar for one symbol/timeframe. Bars are immutable
// once produced; the caller owns the stream and delivers them in
// non-decreasing timestamp order.
type Bar struct {
	Timestamp int64 // unix seconds
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Exchange  string
	Symbol    string
	Timeframe string
}

// Time returns the bar timestamp as time.Time.
func (b *Bar) Time() time.Time { return time.Unix(b.Timestamp, 0) }

// Validate checks the bar contract. Violations are fatal for the caller:
// the error names the offending field and value so upstream can log and
// halt instead of trading on bad data.
func (b *Bar) Validate() error {
	if b == nil {
		return fmt.Errorf("bar is nil")
	}
	if b.Symbol == "" {
		return fmt.Errorf("bar symbol: empty")
	}
	if b.Timestamp <= 0 {
		return fmt.Errorf("bar timestamp: %d (must be > 0)", b.Timestamp)
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("bar ohlc: o=%v h=%v l=%v c=%v (must be > 0)", b.Open, b.High, b.Low, b.Close)
	}
	if b.High < b.Open || b.High < b.Close {
		return fmt.Errorf("bar high: %v (must be >= max(open, close))", b.High)
	}
	if b.Low > b.Open || b.Low > b.Close {
		return fmt.Errorf("bar low: %v (must be <= min(open, close))", b.Low)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar volume: %v (must be >= 0)", b.Volume)
	}
	return nil
}
