package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Topics       struct {
			Bars     string `yaml:"bars"`
			Features string `yaml:"features"`
			Signals  string `yaml:"signals"`
			Actions  string `yaml:"actions"`
			Verdicts string `yaml:"verdicts"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Outbox   string `yaml:"outbox"` // queue name for allowed actions
	} `yaml:"redis"`
	Feed struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Exchange       string        `yaml:"exchange"`
		Symbols        []string      `yaml:"symbols"`
		Timeframe      string        `yaml:"timeframe"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		StaleAfter     time.Duration `yaml:"stale_after"`
	} `yaml:"feed"`
	Account struct {
		ServiceURL string        `yaml:"service_url"`
		Timeout    time.Duration `yaml:"timeout"`
		CacheTTL   time.Duration `yaml:"cache_ttl"`
	} `yaml:"account"`
	Pipeline struct {
		Features struct {
			Window           int     `yaml:"window"`
			RSIPeriod        int     `yaml:"rsi_period"`
			ATRPeriod        int     `yaml:"atr_period"`
			MACDFast         int     `yaml:"macd_fast"`
			MACDSlow         int     `yaml:"macd_slow"`
			MACDSignal       int     `yaml:"macd_signal"`
			VolatileVolRatio float64 `yaml:"volatile_vol_ratio"`
			TrendThreshold   float64 `yaml:"trend_threshold"`
		} `yaml:"features"`
		AR4 struct {
			FitWindow   int     `yaml:"fit_window"`
			MinRSquared float64 `yaml:"min_r_squared"`
			HorizonSec  int     `yaml:"horizon_sec"`
		} `yaml:"ar4"`
		MACD struct {
			MinHistogram  float64 `yaml:"min_histogram"`
			HorizonSec    int     `yaml:"horizon_sec"`
			CrossoverMode bool    `yaml:"crossover_mode"`
		} `yaml:"macd"`
		Policy struct {
			EnterThreshold   float64 `yaml:"enter_threshold"`
			ExitThreshold    float64 `yaml:"exit_threshold"`
			SizingMode       string  `yaml:"sizing_mode"`
			FixedNotional    float64 `yaml:"fixed_notional"`
			SizingMultiplier float64 `yaml:"sizing_multiplier"`
			ATRTPMultiplier  float64 `yaml:"atr_tp_multiplier"`
			ATRSLMultiplier  float64 `yaml:"atr_sl_multiplier"`
			MaxSize          float64 `yaml:"max_size"`
		} `yaml:"policy"`
		Risk struct {
			MaxDailyLoss float64 `yaml:"max_daily_loss"`
			MaxExposure  float64 `yaml:"max_exposure"`
			MaxLeverage  float64 `yaml:"max_leverage"`
		} `yaml:"risk"`
	} `yaml:"pipeline"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Feed.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("ACCOUNT_SERVICE_URL"); v != "" {
		c.Account.ServiceURL = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("feed.symbols cannot be empty")
	}
	if c.Feed.WebSocketURL == "" {
		return fmt.Errorf("feed.websocket_url is required")
	}
	p := c.Pipeline.Policy
	if p.EnterThreshold != 0 && p.ExitThreshold != 0 && p.EnterThreshold < p.ExitThreshold {
		return fmt.Errorf("pipeline.policy: enter_threshold %v below exit_threshold %v", p.EnterThreshold, p.ExitThreshold)
	}
	return nil
}
