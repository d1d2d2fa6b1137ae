package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"autotrader/pkg/crypto"
)

func validConfig() *Config {
	cfg := &Config{
		Server:   ServerConfig{Port: 8080, Host: "0.0.0.0"},
		Database: DatabaseConfig{Port: 5432},
		Exchange: ExchangeConfig{Paper: true},
		Decision: DecisionConfig{Provider: "rules"},
		Trading:  defaultTradingConfig(),
	}
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(cfg *Config)
		expectedField string
	}{
		{
			name:   "valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:          "bad server port",
			mutate:        func(cfg *Config) { cfg.Server.Port = 0 },
			expectedField: "SERVER_PORT",
		},
		{
			name:          "encryption key wrong length",
			mutate:        func(cfg *Config) { cfg.Security.EncryptionKey = "short" },
			expectedField: "ENCRYPTION_KEY",
		},
		{
			name: "live trading without api keys",
			mutate: func(cfg *Config) {
				cfg.Exchange.Paper = false
			},
			expectedField: "BYBIT_API_KEY",
		},
		{
			name: "claude provider without api key",
			mutate: func(cfg *Config) {
				cfg.Decision.Provider = "claude"
			},
			expectedField: "ANTHROPIC_API_KEY",
		},
		{
			name:          "unknown provider",
			mutate:        func(cfg *Config) { cfg.Decision.Provider = "oracle" },
			expectedField: "DECISION_PROVIDER",
		},
		{
			name:          "no symbols",
			mutate:        func(cfg *Config) { cfg.Trading.Symbols = nil },
			expectedField: "symbols",
		},
		{
			name:          "symbol with invalid characters",
			mutate:        func(cfg *Config) { cfg.Trading.Symbols = []string{"BTC USDT!"} },
			expectedField: "symbols",
		},
		{
			name:          "position size above 100 percent",
			mutate:        func(cfg *Config) { cfg.Trading.PositionSizePercent = 150 },
			expectedField: "position_size_percent",
		},
		{
			name:          "negative daily loss limit",
			mutate:        func(cfg *Config) { cfg.Trading.Risk.MaxDailyLoss = -1 },
			expectedField: "risk.max_daily_loss",
		},
		{
			// Аварийный порог должен быть шире обычного лимита позиции
			name: "emergency threshold below position loss",
			mutate: func(cfg *Config) {
				cfg.Trading.Risk.MaxPositionLossPercent = 10
				cfg.Trading.Risk.EmergencyStopLossPercent = 8
			},
			expectedField: "risk.emergency_stop_loss_percent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.expectedField == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.expectedField {
				t.Errorf("expected field %q, got %q", tt.expectedField, cfgErr.Field)
			}
		})
	}
}

func TestLoadTradingFile(t *testing.T) {
	yamlContent := `
symbols: [SOLUSDT]
position_size_percent: 15
monitoring_interval: 45s
risk:
  max_daily_loss: 100
  max_daily_trades: 5
  max_position_loss_percent: 4
  emergency_stop_loss_percent: 7
  trade_cooldown: 10m
news_sources:
  - name: coindesk
    url: https://www.coindesk.com
    headline_selector: "h2.headline"
`

	path := filepath.Join(t.TempDir(), "trading.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg := validConfig()
	if err := cfg.loadTradingFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Trading.Symbols) != 1 || cfg.Trading.Symbols[0] != "SOLUSDT" {
		t.Errorf("symbols not loaded: %v", cfg.Trading.Symbols)
	}
	if cfg.Trading.PositionSizePercent != 15 {
		t.Errorf("expected position size 15, got %v", cfg.Trading.PositionSizePercent)
	}
	if cfg.Trading.MonitoringInterval.Std() != 45*time.Second {
		t.Errorf("expected 45s interval, got %v", cfg.Trading.MonitoringInterval)
	}
	if cfg.Trading.Risk.TradeCooldown.Std() != 10*time.Minute {
		t.Errorf("expected 10m cooldown, got %v", cfg.Trading.Risk.TradeCooldown)
	}
	if len(cfg.Trading.News) != 1 || cfg.Trading.News[0].Name != "coindesk" {
		t.Errorf("news sources not loaded: %+v", cfg.Trading.News)
	}
}

func TestDecryptCredentials(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef"
	encrypted, err := crypto.EncryptWithKeyString("real-api-key", key)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	cfg := validConfig()
	cfg.Security.EncryptionKey = key
	cfg.Exchange.APIKey = "enc:" + encrypted
	cfg.Exchange.APISecret = "plain-secret"

	if err := cfg.decryptCredentials(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Exchange.APIKey != "real-api-key" {
		t.Errorf("api key not decrypted: %q", cfg.Exchange.APIKey)
	}
	if cfg.Exchange.APISecret != "plain-secret" {
		t.Errorf("plain value must pass through unchanged: %q", cfg.Exchange.APISecret)
	}
}

func TestDecryptCredentialsWithoutKey(t *testing.T) {
	cfg := validConfig()
	cfg.Exchange.APIKey = "enc:whatever"

	err := cfg.decryptCredentials()

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Field != "BYBIT_API_KEY" {
		t.Errorf("expected field BYBIT_API_KEY, got %q", cfgErr.Field)
	}
}

func TestLoadTradingFileMissing(t *testing.T) {
	cfg := validConfig()
	err := cfg.loadTradingFile("/nonexistent/trading.yaml")

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Field != "TRADING_CONFIG" {
		t.Errorf("expected field TRADING_CONFIG, got %q", cfgErr.Field)
	}
}
