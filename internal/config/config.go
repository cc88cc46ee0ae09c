package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all static configuration for the application. Runtime
// strategy parameters live in models.BotConfig and are mutable through the
// engine; everything here is fixed for the life of the process.
type Config struct {
	Delta    Delta    `mapstructure:"delta"`
	Engine   Engine   `mapstructure:"engine"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
}

// Delta holds the configuration for the Delta Exchange API.
type Delta struct {
	BaseURL        string  `mapstructure:"base_url"`
	ApiKey         string  `mapstructure:"apiKey"`
	ApiSecret      string  `mapstructure:"apiSecret"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Engine holds timing knobs for the trading engine's loops.
type Engine struct {
	// PriceTickSeconds is the interval of the price-monitor loop.
	PriceTickSeconds int `mapstructure:"price_tick_seconds"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")

	// Allow environment variables to override config file, e.g.
	// DELTA_APIKEY overrides delta.apiKey.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("delta.base_url", "https://api.delta.exchange")
	viper.SetDefault("delta.rate_limit", 10)      // requests per second
	viper.SetDefault("delta.rate_limit_burst", 5) // burst size
	viper.SetDefault("engine.price_tick_seconds", 5)
	viper.SetDefault("server.port", 3001)
	viper.SetDefault("database.dsn", "straddle.db")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
