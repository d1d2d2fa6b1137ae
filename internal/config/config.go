package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"autotrader/pkg/crypto"
	"autotrader/pkg/utils"
)

// Duration - time.Duration с поддержкой yaml значений вида "45s", "10m"
type Duration time.Duration

// UnmarshalYAML разбирает строку длительности
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std возвращает стандартный time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ConfigError - ошибка конфигурации. Фатальна: обнаруживается
// на старте, до открытия сессии и до первого ордера.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Exchange ExchangeConfig
	Decision DecisionConfig
	Trading  TradingConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера (dashboard + metrics)
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	EncryptionKey     string // AES-256 ключ для хранения API ключей
	DashboardUser     string
	DashboardPassword string
}

// ExchangeConfig - настройки подключения к бирже
type ExchangeConfig struct {
	APIKey    string
	APISecret string
	Demo      bool   // торговля на demo окружении
	Paper     bool   // paper trading без обращений к бирже
	BaseURL   string // переопределение endpoint (пусто = по Demo)
}

// DecisionConfig - настройки провайдера торговых решений
type DecisionConfig struct {
	Provider        string // claude, rules
	AnthropicAPIKey string
	Model           string
	Timeout         time.Duration
}

// TradingConfig - торговые параметры и лимиты риска.
// Загружается из YAML файла (TRADING_CONFIG), чтобы лимиты можно
// было менять без пересборки.
type TradingConfig struct {
	Symbols             []string `yaml:"symbols"`
	PositionSizePercent float64  `yaml:"position_size_percent"`
	MinBalance          float64  `yaml:"min_balance"`
	MonitoringInterval  Duration `yaml:"monitoring_interval"`
	NewsInterval        Duration `yaml:"news_interval"`
	CooldownAfterClose  Duration `yaml:"cooldown_after_close"`
	RetentionDays       int      `yaml:"retention_days"`

	Risk RiskLimits   `yaml:"risk"`
	News []NewsSource `yaml:"news_sources"`
}

// RiskLimits - настраиваемые лимиты риск-контроля
type RiskLimits struct {
	MaxDailyLoss             float64  `yaml:"max_daily_loss"` // USD
	MaxDailyTrades           int      `yaml:"max_daily_trades"`
	MaxPositionLossPercent   float64  `yaml:"max_position_loss_percent"`   // % от цены входа
	EmergencyStopLossPercent float64  `yaml:"emergency_stop_loss_percent"` // % аварийного закрытия
	TradeCooldown            Duration `yaml:"trade_cooldown"`
}

// NewsSource - источник новостей для анализа сентимента
type NewsSource struct {
	Name             string `yaml:"name"`
	URL              string `yaml:"url"`
	HeadlineSelector string `yaml:"headline_selector"`
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию: .env файл (если есть), переменные
// окружения и YAML файл торговых параметров.
func Load() (*Config, error) {
	// .env опционален: в production переменные задаются окружением
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "autotrader"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey:     getEnv("ENCRYPTION_KEY", ""),
			DashboardUser:     getEnv("DASHBOARD_USER", ""),
			DashboardPassword: getEnv("DASHBOARD_PASSWORD", ""),
		},
		Exchange: ExchangeConfig{
			APIKey:    getEnv("BYBIT_API_KEY", ""),
			APISecret: getEnv("BYBIT_API_SECRET", ""),
			Demo:      getEnvAsBool("BYBIT_DEMO", true),
			Paper:     getEnvAsBool("PAPER_TRADING", false),
			BaseURL:   getEnv("BYBIT_BASE_URL", ""),
		},
		Decision: DecisionConfig{
			Provider:        getEnv("DECISION_PROVIDER", "claude"),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			Model:           getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			Timeout:         getEnvAsDuration("DECISION_TIMEOUT", 30*time.Second),
		},
		Trading: defaultTradingConfig(),
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	tradingPath := getEnv("TRADING_CONFIG", "")
	if tradingPath != "" {
		if err := cfg.loadTradingFile(tradingPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.decryptCredentials(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// encPrefix помечает значение, зашифрованное AES-256-GCM.
// Значения без префикса используются как есть.
const encPrefix = "enc:"

// decryptCredentials расшифровывает ключи API, сохраненные
// в зашифрованном виде (значения с префиксом "enc:").
// Требует заданного ENCRYPTION_KEY.
func (c *Config) decryptCredentials() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"BYBIT_API_KEY", &c.Exchange.APIKey},
		{"BYBIT_API_SECRET", &c.Exchange.APISecret},
		{"ANTHROPIC_API_KEY", &c.Decision.AnthropicAPIKey},
	}

	for _, f := range fields {
		if !strings.HasPrefix(*f.value, encPrefix) {
			continue
		}
		if c.Security.EncryptionKey == "" {
			return &ConfigError{Field: f.name, Reason: "encrypted value requires ENCRYPTION_KEY"}
		}
		plain, err := crypto.DecryptWithKeyString(
			strings.TrimPrefix(*f.value, encPrefix),
			c.Security.EncryptionKey,
		)
		if err != nil {
			return &ConfigError{Field: f.name, Reason: fmt.Sprintf("decrypt failed: %v", err)}
		}
		*f.value = plain
	}

	return nil
}

// defaultTradingConfig возвращает торговые параметры по умолчанию
func defaultTradingConfig() TradingConfig {
	return TradingConfig{
		Symbols:             []string{"BTCUSDT", "ETHUSDT"},
		PositionSizePercent: 10,
		MinBalance:          10,
		MonitoringInterval:  Duration(30 * time.Second),
		NewsInterval:        Duration(5 * time.Minute),
		CooldownAfterClose:  Duration(1 * time.Minute),
		RetentionDays:       90,
		Risk: RiskLimits{
			MaxDailyLoss:             50,
			MaxDailyTrades:           10,
			MaxPositionLossPercent:   5,
			EmergencyStopLossPercent: 8,
			TradeCooldown:            Duration(5 * time.Minute),
		},
	}
}

// loadTradingFile читает YAML файл торговых параметров поверх дефолтов
func (c *Config) loadTradingFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Field: "TRADING_CONFIG", Reason: err.Error()}
	}

	if err := yaml.Unmarshal(data, &c.Trading); err != nil {
		return &ConfigError{Field: "TRADING_CONFIG", Reason: fmt.Sprintf("invalid yaml: %v", err)}
	}

	return nil
}

// Validate проверяет конфигурацию. Любая ошибка фатальна на старте.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ConfigError{Field: "SERVER_PORT", Reason: fmt.Sprintf("must be between 1 and 65535, got %d", c.Server.Port)}
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return &ConfigError{Field: "DB_PORT", Reason: fmt.Sprintf("must be between 1 and 65535, got %d", c.Database.Port)}
	}

	// ENCRYPTION_KEY обязателен: API ключи хранятся только шифрованными
	if c.Security.EncryptionKey != "" && len(c.Security.EncryptionKey) != 32 {
		return &ConfigError{Field: "ENCRYPTION_KEY", Reason: "must be exactly 32 bytes for AES-256"}
	}

	if !c.Exchange.Paper {
		if err := utils.ValidateAPIKey(c.Exchange.APIKey); err != nil {
			return &ConfigError{Field: "BYBIT_API_KEY", Reason: fmt.Sprintf("required unless PAPER_TRADING=true: %v", err)}
		}
		if err := utils.ValidateAPISecret(c.Exchange.APISecret); err != nil {
			return &ConfigError{Field: "BYBIT_API_SECRET", Reason: fmt.Sprintf("required unless PAPER_TRADING=true: %v", err)}
		}
	}

	switch c.Decision.Provider {
	case "claude":
		if c.Decision.AnthropicAPIKey == "" {
			return &ConfigError{Field: "ANTHROPIC_API_KEY", Reason: "required for provider \"claude\""}
		}
	case "rules":
	default:
		return &ConfigError{Field: "DECISION_PROVIDER", Reason: fmt.Sprintf("unknown provider %q", c.Decision.Provider)}
	}

	if len(c.Trading.Symbols) == 0 {
		return &ConfigError{Field: "symbols", Reason: "at least one trading symbol required"}
	}
	for i, symbol := range c.Trading.Symbols {
		if err := utils.ValidateSymbol(symbol); err != nil {
			return &ConfigError{Field: "symbols", Reason: err.Error()}
		}
		c.Trading.Symbols[i] = utils.NormalizeSymbol(symbol)
	}
	if err := utils.ValidatePercentage(c.Trading.PositionSizePercent); err != nil {
		return &ConfigError{Field: "position_size_percent", Reason: err.Error()}
	}
	if c.Trading.MonitoringInterval <= 0 {
		return &ConfigError{Field: "monitoring_interval", Reason: "must be positive"}
	}
	if c.Trading.NewsInterval <= 0 {
		return &ConfigError{Field: "news_interval", Reason: "must be positive"}
	}

	return c.Trading.Risk.Validate()
}

// Validate проверяет лимиты риск-контроля
func (r RiskLimits) Validate() error {
	if r.MaxDailyLoss <= 0 {
		return &ConfigError{Field: "risk.max_daily_loss", Reason: "must be positive"}
	}
	if r.MaxDailyTrades <= 0 {
		return &ConfigError{Field: "risk.max_daily_trades", Reason: "must be positive"}
	}
	if r.MaxPositionLossPercent <= 0 || r.MaxPositionLossPercent > 50 {
		return &ConfigError{Field: "risk.max_position_loss_percent", Reason: fmt.Sprintf("must be in (0, 50], got %v", r.MaxPositionLossPercent)}
	}
	if r.EmergencyStopLossPercent <= r.MaxPositionLossPercent {
		return &ConfigError{Field: "risk.emergency_stop_loss_percent", Reason: "must be greater than max_position_loss_percent"}
	}
	if r.TradeCooldown < 0 {
		return &ConfigError{Field: "risk.trade_cooldown", Reason: "cannot be negative"}
	}
	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
