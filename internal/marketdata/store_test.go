package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowtrade/internal/market"
)

const dayMs = int64(24 * time.Hour / time.Millisecond)

func testCandle(openTime int64, close float64) market.Candle {
	return market.Candle{
		OpenTime:  openTime,
		CloseTime: openTime + dayMs - 1,
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    100,
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertAndRangeCandles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	candles := []market.Candle{
		testCandle(0, 10),
		testCandle(dayMs, 11),
		testCandle(2*dayMs, 12),
	}
	n, err := s.InsertCandles(ctx, "AAPL", "1d", candles)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.RangeCandles(ctx, "AAPL", "1d", 0, 2*dayMs)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 11.0, got[1].Close)
}

func TestInsertUpsertsByOpenTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.InsertCandles(ctx, "AAPL", "1d", []market.Candle{testCandle(0, 10)})
	require.NoError(t, err)
	_, err = s.InsertCandles(ctx, "AAPL", "1d", []market.Candle{testCandle(0, 99)})
	require.NoError(t, err)

	got, err := s.RangeCandles(ctx, "AAPL", "1d", 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 99.0, got[0].Close)
}

func TestRangeCandlesEmptyIsNoData(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RangeCandles(context.Background(), "AAPL", "1d", 0, dayMs)
	assert.ErrorIs(t, err, market.ErrNoData)
}

func TestManifestTracksRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.InsertCandles(ctx, "msft", "1d", []market.Candle{
		testCandle(dayMs, 20),
		testCandle(3*dayMs, 21),
	})
	require.NoError(t, err)

	m, err := s.Manifest(ctx, "MSFT", "1d")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", m.Symbol)
	assert.Equal(t, int64(2), m.Rows)
	assert.Equal(t, dayMs, m.MinTime)
	assert.Equal(t, 3*dayMs, m.MaxTime)
	assert.Greater(t, m.LastSyncAt, int64(0))
}

func TestCheckIntegrityFindsGaps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tf, _ := ParseTimeframe("1d")
	_, err := s.InsertCandles(ctx, "AAPL", "1d", []market.Candle{
		testCandle(0, 10),
		testCandle(3*dayMs, 13),
	})
	require.NoError(t, err)

	report, err := s.CheckIntegrity(ctx, "AAPL", "1d", tf, 0, 4*dayMs)
	require.NoError(t, err)
	assert.Equal(t, int64(5), report.Expected)
	assert.Equal(t, int64(2), report.Present)
	require.Len(t, report.Gaps, 2)
	assert.Equal(t, Gap{From: dayMs, To: 2 * dayMs}, report.Gaps[0])
	assert.Equal(t, Gap{From: 4 * dayMs, To: 4 * dayMs}, report.Gaps[1])
	assert.False(t, report.Complete())
}

func TestCheckIntegrityComplete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tf, _ := ParseTimeframe("1d")
	_, err := s.InsertCandles(ctx, "AAPL", "1d", []market.Candle{
		testCandle(0, 10),
		testCandle(dayMs, 11),
	})
	require.NoError(t, err)

	report, err := s.CheckIntegrity(ctx, "AAPL", "1d", tf, 0, dayMs)
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.Empty(t, report.Gaps)
}
