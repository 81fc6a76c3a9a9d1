package backtest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"shadowtrade/internal/logger"
	"shadowtrade/internal/marketdata"
	"shadowtrade/internal/strategy"
)

// RunServiceConfig wires the run service.
type RunServiceConfig struct {
	Market         *marketdata.Service
	Results        *ResultStore
	Profiles       *strategy.ProfileRegistry
	DefaultCapital float64
	MaxConcurrent  int
}

// RunService accepts backtest submissions over HTTP, executes them in
// the background against locally stored candles, and persists every
// run with its full trade log and equity curve.
type RunService struct {
	market         *marketdata.Service
	results        *ResultStore
	profiles       *strategy.ProfileRegistry
	defaultCapital float64

	sem     chan struct{}
	baseCtx context.Context
}

func NewRunService(cfg RunServiceConfig) (*RunService, error) {
	if cfg.Market == nil {
		return nil, fmt.Errorf("market data service required")
	}
	if cfg.Results == nil {
		return nil, fmt.Errorf("result store required")
	}
	capital := cfg.DefaultCapital
	if capital <= 0 {
		capital = 100000
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &RunService{
		market:         cfg.Market,
		results:        cfg.Results,
		profiles:       cfg.Profiles,
		defaultCapital: capital,
		sem:            make(chan struct{}, maxConcurrent),
		baseCtx:        context.Background(),
	}, nil
}

// SetContext injects the host context so queued runs stop with the
// application.
func (s *RunService) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

func (s *RunService) ctx() context.Context {
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

// StartRun validates a submission, records it as pending and executes
// it in the background. The returned Run carries the assigned id.
func (s *RunService) StartRun(req RunRequest) (Run, error) {
	tf, err := marketdata.ParseTimeframe(req.Timeframe)
	if err != nil {
		return Run{}, err
	}
	start, end := tf.AlignRange(req.StartTS, req.EndTS)
	if start == end {
		return Run{}, fmt.Errorf("start/end must span at least one bar")
	}
	kind, params, err := s.resolveStrategy(req)
	if err != nil {
		return Run{}, err
	}
	capital := req.InitialCapital
	if capital <= 0 {
		capital = s.defaultCapital
	}

	run := Run{
		ID:       uuid.NewString(),
		Symbol:   strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Strategy: string(kind),
		Profile:  strings.TrimSpace(req.Profile),
		Status:   RunStatusPending,
		Config: RunConfig{
			Symbol:         strings.ToUpper(strings.TrimSpace(req.Symbol)),
			Timeframe:      tf.Key,
			Strategy:       string(kind),
			Profile:        strings.TrimSpace(req.Profile),
			Params:         params,
			StartTS:        start,
			EndTS:          end,
			InitialCapital: capital,
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.results.InsertRun(s.ctx(), run); err != nil {
		return Run{}, err
	}
	logger.Infof("[backtest] run %s submitted: %s %s %s [%d,%d]",
		run.ID, run.Symbol, run.Config.Timeframe, run.Strategy, start, end)

	go s.execute(run)
	return run, nil
}

func (s *RunService) resolveStrategy(req RunRequest) (strategy.Kind, strategy.Params, error) {
	if profile := strings.TrimSpace(req.Profile); profile != "" {
		if s.profiles == nil {
			return "", nil, fmt.Errorf("profiles are not configured")
		}
		kind, params, err := s.profiles.Resolve(profile)
		if err != nil {
			return "", nil, err
		}
		explicit, err := strategy.CoerceParams(req.Params)
		if err != nil {
			return "", nil, err
		}
		for k, v := range explicit {
			params[k] = v
		}
		return kind, params, nil
	}
	kind, err := strategy.ParseKind(req.Strategy)
	if err != nil {
		return "", nil, err
	}
	explicit, err := strategy.CoerceParams(req.Params)
	if err != nil {
		return "", nil, err
	}
	return kind, strategy.Merge(kind, explicit), nil
}

func (s *RunService) execute(run Run) {
	select {
	case s.sem <- struct{}{}:
	case <-s.ctx().Done():
		s.fail(run.ID, "service shutting down")
		return
	}
	defer func() { <-s.sem }()

	ctx := s.ctx()
	if err := s.results.UpdateRunSummary(ctx, run.ID, RunStatusRunning, Stats{}, ""); err != nil {
		logger.Errorf("[backtest] run %s: mark running failed: %v", run.ID, err)
	}

	cfg := run.Config
	if err := s.ensureCandles(ctx, run.ID, cfg); err != nil {
		s.fail(run.ID, fmt.Sprintf("ensure candles: %v", err))
		return
	}
	candles, err := s.market.RangeCandles(ctx, cfg.Symbol, cfg.Timeframe, cfg.StartTS, cfg.EndTS)
	if err != nil {
		s.fail(run.ID, fmt.Sprintf("load candles: %v", err))
		return
	}
	engine, err := NewEngine(candles, cfg.InitialCapital)
	if err != nil {
		s.fail(run.ID, err.Error())
		return
	}
	result, err := engine.Run(cfg.Strategy, cfg.Params)
	if err != nil {
		s.fail(run.ID, err.Error())
		return
	}

	if err := s.results.InsertTrades(ctx, run.ID, result.Trades); err != nil {
		s.fail(run.ID, fmt.Sprintf("persist trades: %v", err))
		return
	}
	if err := s.results.InsertEquity(ctx, run.ID, result.EquityCurve); err != nil {
		s.fail(run.ID, fmt.Sprintf("persist equity: %v", err))
		return
	}
	stats := Stats{
		FinalEquity: result.FinalEquity,
		TotalReturn: result.TotalReturn,
		MaxDrawdown: result.MaxDrawdown,
		SharpeRatio: result.SharpeRatio,
		TotalTrades: result.TotalTrades,
		WinRate:     result.WinRate,
		AvgWin:      result.AvgWin,
		AvgLoss:     result.AvgLoss,
	}
	if err := s.results.UpdateRunSummary(ctx, run.ID, RunStatusDone, stats, ""); err != nil {
		logger.Errorf("[backtest] run %s: mark done failed: %v", run.ID, err)
		return
	}
	logger.Infof("[backtest] run %s done: bars=%d trades=%d return=%.4f",
		run.ID, engine.Bars(), stats.TotalTrades, stats.TotalReturn)
}

// ensureCandles downloads the run's range before the engine reads it.
// A fetch that ends failed or partial is logged but not fatal here;
// RangeCandles is the authority on whether the data suffices.
func (s *RunService) ensureCandles(ctx context.Context, runID string, cfg RunConfig) error {
	job, err := s.market.SubmitFetch(marketdata.FetchParams{
		Symbol:    cfg.Symbol,
		Timeframe: cfg.Timeframe,
		Start:     cfg.StartTS,
		End:       cfg.EndTS,
	})
	if err != nil {
		logger.Warnf("[backtest] run %s: fetch submit failed, using local data only: %v", runID, err)
		return nil
	}
	if job.Status == marketdata.JobStatusDone {
		return nil
	}
	final, err := s.market.WaitJob(ctx, job.ID)
	if err != nil {
		return err
	}
	if final.Status != marketdata.JobStatusDone {
		logger.Warnf("[backtest] run %s: fetch ended %s: %s", runID, final.Status, final.Message)
	}
	return nil
}

func (s *RunService) fail(runID, message string) {
	if err := s.results.UpdateRunSummary(s.ctx(), runID, RunStatusFailed, Stats{}, message); err != nil {
		logger.Errorf("[backtest] run %s: mark failed failed: %v", runID, err)
	}
	logger.Warnf("[backtest] run %s failed: %s", runID, message)
}

// GetRun loads one persisted run.
func (s *RunService) GetRun(ctx context.Context, id string) (Run, error) {
	return s.results.GetRun(ctx, id)
}

// ListRuns returns recent runs, newest first.
func (s *RunService) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	return s.results.ListRuns(ctx, limit)
}

// Trades returns a run's persisted fills.
func (s *RunService) Trades(ctx context.Context, runID string, limit int) ([]Trade, error) {
	return s.results.ListTrades(ctx, runID, limit)
}

// Equity returns a run's persisted equity curve.
func (s *RunService) Equity(ctx context.Context, runID string, limit int) ([]EquityPoint, error) {
	return s.results.ListEquity(ctx, runID, limit)
}
