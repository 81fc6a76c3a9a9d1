package marketdata

import (
	"context"

	"shadowtrade/internal/market"
)

// FetchRequest describes one remote candle request.
type FetchRequest struct {
	Symbol   string
	Interval string
	Start    int64 // Unix ms
	End      int64 // Unix ms, 0 means open-ended
	Limit    int
}

// Source abstracts a remote candle provider.
type Source interface {
	Fetch(ctx context.Context, req FetchRequest) ([]market.Candle, error)
	Name() string
}
