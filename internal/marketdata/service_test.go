package marketdata

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowtrade/internal/market"
)

// fakeSource serves a fixed grid of daily bars.
type fakeSource struct {
	calls atomic.Int64
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(_ context.Context, req FetchRequest) ([]market.Candle, error) {
	f.calls.Add(1)
	var out []market.Candle
	for ts := req.Start; ts <= req.End && len(out) < req.Limit; ts += dayMs {
		out = append(out, testCandle(ts, 100+float64(ts/dayMs)))
	}
	return out, nil
}

func newTestService(t *testing.T, src Source) (*Service, *Store) {
	t.Helper()
	store := newTestStore(t)
	svc, err := NewService(ServiceConfig{
		Store:           store,
		Sources:         map[string]Source{"fake": src},
		DefaultExchange: "fake",
		RateLimitPerMin: 60000,
		MaxBatch:        500,
	})
	require.NoError(t, err)
	return svc, store
}

func waitForJob(t *testing.T, svc *Service, id string) FetchJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := svc.JobSnapshot(id)
		require.True(t, ok)
		if job.Status == JobStatusDone || job.Status == JobStatusFailed || job.Status == JobStatusPartial {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not finish in time")
	return FetchJob{}
}

func TestSubmitFetchDownloadsGaps(t *testing.T) {
	src := &fakeSource{}
	svc, store := newTestService(t, src)

	job, err := svc.SubmitFetch(FetchParams{Symbol: "AAPL", Timeframe: "1d", Start: 0, End: 4 * dayMs})
	require.NoError(t, err)
	final := waitForJob(t, svc, job.ID)
	assert.Equal(t, JobStatusDone, final.Status)
	assert.Empty(t, final.Missing)

	got, err := store.RangeCandles(context.Background(), "AAPL", "1d", 0, 4*dayMs)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestSubmitFetchSkipsCompleteRange(t *testing.T) {
	src := &fakeSource{}
	svc, store := newTestService(t, src)

	_, err := store.InsertCandles(context.Background(), "AAPL", "1d", []market.Candle{
		testCandle(0, 10), testCandle(dayMs, 11),
	})
	require.NoError(t, err)

	job, err := svc.SubmitFetch(FetchParams{Symbol: "AAPL", Timeframe: "1d", Start: 0, End: dayMs})
	require.NoError(t, err)
	assert.Equal(t, JobStatusDone, job.Status)
	assert.Equal(t, int64(0), src.calls.Load(), "complete range must not hit the source")
}

func TestSubmitFetchValidation(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{})

	_, err := svc.SubmitFetch(FetchParams{Timeframe: "1d", Start: 0, End: dayMs})
	assert.Error(t, err, "missing symbol")

	_, err = svc.SubmitFetch(FetchParams{Symbol: "AAPL", Timeframe: "13m", Start: 0, End: dayMs})
	assert.Error(t, err, "bad timeframe")

	_, err = svc.SubmitFetch(FetchParams{Symbol: "AAPL", Timeframe: "1d", Start: 0, End: 0})
	assert.Error(t, err, "empty range")

	_, err = svc.SubmitFetch(FetchParams{Symbol: "AAPL", Timeframe: "1d", Exchange: "nyse", Start: 0, End: dayMs})
	assert.Error(t, err, "unknown source")
}
