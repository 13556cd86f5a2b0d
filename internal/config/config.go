/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the bills-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	BillEventQueue             string `mapstructure:"BILL_EVENT_QUEUE"`
	WalletEventQueue           string `mapstructure:"WALLET_EVENT_QUEUE"`
	RedbillerEnv               string `mapstructure:"REDBILLER_ENV"`
	RedbillerBaseURL           string `mapstructure:"REDBILLER_BASE_URL"`
	RedbillerPrivateKey        string `mapstructure:"REDBILLER_PRIVATE_KEY"`
	RedbillerTimeoutSeconds    int    `mapstructure:"REDBILLER_TIMEOUT_SECONDS"`
	RedbillerRetries           int    `mapstructure:"REDBILLER_RETRIES"`
	JWTSecret                  string `mapstructure:"JWT_SECRET"`
	PlanFreshnessHours         int    `mapstructure:"PLAN_FRESHNESS_HOURS"`
	PurchaseRateLimitPerMinute int    `mapstructure:"PURCHASE_RATE_LIMIT_PER_MINUTE"`
	WalletCurrency             string `mapstructure:"WALLET_CURRENCY"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "paynest:rate_limit")
	viper.SetDefault("BILL_EVENT_QUEUE", "bills_service.purchase_updates")
	viper.SetDefault("WALLET_EVENT_QUEUE", "bills_service.wallet_updates")
	viper.SetDefault("REDBILLER_ENV", "live")
	viper.SetDefault("REDBILLER_TIMEOUT_SECONDS", 25)
	viper.SetDefault("REDBILLER_RETRIES", 2)
	viper.SetDefault("PLAN_FRESHNESS_HOURS", 24)
	viper.SetDefault("PURCHASE_RATE_LIMIT_PER_MINUTE", 20)
	viper.SetDefault("WALLET_CURRENCY", "NGN")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "BILLS_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("BILL_EVENT_QUEUE")
	_ = viper.BindEnv("WALLET_EVENT_QUEUE")
	_ = viper.BindEnv("REDBILLER_ENV")
	_ = viper.BindEnv("REDBILLER_BASE_URL")
	_ = viper.BindEnv("REDBILLER_PRIVATE_KEY", "REDBILLER_PRIVATE_KEY", "REDBILLER_PRIVATE_KEY_LIVE")
	_ = viper.BindEnv("REDBILLER_TIMEOUT_SECONDS")
	_ = viper.BindEnv("REDBILLER_RETRIES")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("PLAN_FRESHNESS_HOURS")
	_ = viper.BindEnv("PURCHASE_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("WALLET_CURRENCY")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "paynest:rate_limit"
	}

	config.RedbillerEnv = strings.ToLower(strings.TrimSpace(config.RedbillerEnv))
	if config.RedbillerEnv != "live" && config.RedbillerEnv != "test" {
		log.Printf("level=warn component=config msg=\"unknown REDBILLER_ENV; defaulting to live\" value=%q", config.RedbillerEnv)
		config.RedbillerEnv = "live"
	}
	config.RedbillerBaseURL = strings.TrimRight(strings.TrimSpace(config.RedbillerBaseURL), "/")

	if config.RedbillerTimeoutSeconds <= 0 {
		config.RedbillerTimeoutSeconds = 25
	}
	if config.RedbillerRetries < 0 {
		config.RedbillerRetries = 0
	}
	if config.PlanFreshnessHours <= 0 {
		config.PlanFreshnessHours = 24
	}
	if config.PurchaseRateLimitPerMinute <= 0 {
		config.PurchaseRateLimitPerMinute = 20
	}
	config.WalletCurrency = strings.ToUpper(strings.TrimSpace(config.WalletCurrency))
	if config.WalletCurrency == "" {
		config.WalletCurrency = "NGN"
	}

	return
}
