package market

import (
	"fmt"
	"time"
)

// Candle is one OHLCV bar. Times are Unix milliseconds.
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

// Date returns the bar's close time as a UTC timestamp.
func (c Candle) Date() time.Time {
	return time.UnixMilli(c.CloseTime).UTC()
}

func (c Candle) validate() error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("non-positive price at %d", c.OpenTime)
	}
	lo, hi := c.Open, c.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	if c.Low > lo || c.High < hi {
		return fmt.Errorf("ohlc bounds violated at %d: low=%.4f high=%.4f open=%.4f close=%.4f",
			c.OpenTime, c.Low, c.High, c.Open, c.Close)
	}
	return nil
}

// ValidateSeries checks ordering, duplicate timestamps and per-bar OHLC
// bounds. An empty series is ErrNoData.
func ValidateSeries(candles []Candle) error {
	if len(candles) == 0 {
		return ErrNoData
	}
	prev := int64(-1)
	for i, c := range candles {
		if err := c.validate(); err != nil {
			return err
		}
		if c.OpenTime <= prev {
			return fmt.Errorf("series not strictly ascending at index %d (open_time=%d)", i, c.OpenTime)
		}
		prev = c.OpenTime
	}
	return nil
}

// Closes extracts the close column.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts the volume column.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}
