package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Scraper   ScraperConfig
	Market    MarketConfig
	API       APIConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database specific configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ScraperConfig holds data-source and retry configuration
type ScraperConfig struct {
	LiveURL            string
	GainersPath        string
	LosersPath         string
	HTMLURL            string
	RequestTimeout     time.Duration
	MaxAttempts        int
	Backoff            time.Duration
	InsecureSkipVerify bool
	DuplicatePolicy    string
	SyntheticFallback  bool
	CronKey            string
}

// MarketConfig holds the trading calendar configuration
type MarketConfig struct {
	Timezone       string
	TradingDays    []string
	OpenTime       string
	CloseTime      string
	ClosingWindow  time.Duration
	BucketInterval time.Duration
}

// APIConfig holds read-endpoint configuration
type APIConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// SchedulerConfig holds the in-process scrape loop configuration
type SchedulerConfig struct {
	Enabled bool
	Spec    string
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads the configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Environment variables override
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.idleTimeout", "120s")

	// Database defaults
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", "30m")

	// Scraper defaults
	v.SetDefault("scraper.liveURL", "https://www.nepalstock.com.np")
	v.SetDefault("scraper.gainersPath", "/api/nots/top-ten/top-gainer")
	v.SetDefault("scraper.losersPath", "/api/nots/top-ten/top-loser")
	v.SetDefault("scraper.htmlURL", "https://merolagani.com/LatestMarket.aspx")
	v.SetDefault("scraper.requestTimeout", "15s")
	v.SetDefault("scraper.maxAttempts", 3)
	v.SetDefault("scraper.backoff", "2s")
	v.SetDefault("scraper.insecureSkipVerify", false)
	v.SetDefault("scraper.duplicatePolicy", "skip")
	v.SetDefault("scraper.syntheticFallback", true)
	v.SetDefault("scraper.cronKey", "")

	// Market calendar defaults: NEPSE trades Sunday-Thursday, 11:00-15:00 NPT
	v.SetDefault("market.timezone", "Asia/Kathmandu")
	v.SetDefault("market.tradingDays", []string{"sunday", "monday", "tuesday", "wednesday", "thursday"})
	v.SetDefault("market.openTime", "11:00")
	v.SetDefault("market.closeTime", "15:00")
	v.SetDefault("market.closingWindow", "2h")
	v.SetDefault("market.bucketInterval", "5m")

	// API defaults
	v.SetDefault("api.defaultPageSize", 50)
	v.SetDefault("api.maxPageSize", 200)

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.spec", "*/5 * * * *")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
