package config

// Config is the top-level configuration of the platform.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Data     DataConfig     `mapstructure:"data"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Trader   TraderConfig   `mapstructure:"trader"`
	CRM      CRMConfig      `mapstructure:"crm"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// DataConfig controls the candle warehouse and its remote sources.
type DataConfig struct {
	Dir           string        `mapstructure:"dir"`
	Exchange      string        `mapstructure:"exchange"` // "alpaca" | "binance"
	MaxBatch      int           `mapstructure:"max_batch"`
	RatePerSec    float64       `mapstructure:"rate_per_sec"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	Alpaca        AlpacaConfig  `mapstructure:"alpaca"`
	Binance       BinanceConfig `mapstructure:"binance"`
}

type AlpacaConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	BaseURL   string `mapstructure:"base_url"`
	Feed      string `mapstructure:"feed"` // "iex" | "sip"
}

type BinanceConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

type BacktestConfig struct {
	ResultsDir     string  `mapstructure:"results_dir"`
	DefaultCapital float64 `mapstructure:"default_capital"`
	MaxConcurrent  int     `mapstructure:"max_concurrent"`
}

type StrategyConfig struct {
	ProfilesPath string `mapstructure:"profiles_path"`
}

// TraderConfig lists the paper trading bots to run.
type TraderConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Bots    []BotConfig `mapstructure:"bots"`
}

type BotConfig struct {
	Symbol         string             `mapstructure:"symbol"`
	Timeframe      string             `mapstructure:"timeframe"`
	Strategy       string             `mapstructure:"strategy"`
	Params         map[string]float64 `mapstructure:"params"`
	Lookback       int                `mapstructure:"lookback"`
	InitialCapital float64            `mapstructure:"initial_capital"`
	AccountID      int64              `mapstructure:"account_id"`
	OffsetSeconds  int                `mapstructure:"offset_seconds"`
	RunImmediately bool               `mapstructure:"run_immediately"`
}

type CRMConfig struct {
	DBPath string `mapstructure:"db_path"`
}
