package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port string
	Mode string

	// Database configuration
	DatabaseURL string

	// Redis configuration
	RedisURL string

	// Merchant API authentication
	APIKey string

	// Public base URL the banks redirect back to, e.g. https://shop.example.com
	CallbackBaseURL string

	// Webhook configuration (notify the merchant backend on final status)
	WebhookCallbackURL string
	WebhookSecret      string

	// Brevo email configuration (operator alerts)
	BrevoAPIKey    string
	BrevoFromEmail string
	AlertToEmail   string

	ServiceName string

	// TTL of the per-record verification lock
	VerifyLockTTLSeconds int

	// Bank credentials: bank type -> choose identifier -> settings
	BankGateways map[string]map[string]map[string]string
}

var AppConfig *Config

func InitConfig() error {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		// Ignore error if .env file doesn't exist
	}

	AppConfig = &Config{
		Port:                 getEnv("PORT", "8080"),
		Mode:                 getEnv("GIN_MODE", "debug"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisURL:             getEnv("REDIS_URL", "redis://localhost:6379/0"),
		APIKey:               getEnv("API_KEY", ""),
		CallbackBaseURL:      getEnv("CALLBACK_BASE_URL", "http://localhost:8080"),
		WebhookCallbackURL:   getEnv("WEBHOOK_CALLBACK_URL", ""),
		WebhookSecret:        getEnv("WEBHOOK_SECRET", ""),
		BrevoAPIKey:          getEnv("BREVO_API_KEY", ""),
		BrevoFromEmail:       getEnv("BREVO_FROM_EMAIL", ""),
		AlertToEmail:         getEnv("ALERT_TO_EMAIL", ""),
		ServiceName:          getEnv("SERVICE_NAME", "Bank Gateway Service"),
		VerifyLockTTLSeconds: getEnvInt("VERIFY_LOCK_TTL_SECONDS", 120),
	}

	gateways, err := loadBankGateways()
	if err != nil {
		return err
	}
	AppConfig.BankGateways = gateways

	return nil
}

// loadBankGateways builds the per-bank credential map. BANK_GATEWAYS holds a
// JSON object of bank type -> identifier -> settings for multi-merchant
// deployments; the flat PEC_PIN / SEPEHR_TERMINAL_ID variables bind the
// default identifier "1".
func loadBankGateways() (map[string]map[string]map[string]string, error) {
	gateways := make(map[string]map[string]map[string]string)

	if raw := os.Getenv("BANK_GATEWAYS"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &gateways); err != nil {
			return nil, fmt.Errorf("failed to parse BANK_GATEWAYS: %w", err)
		}
	}

	if pin := os.Getenv("PEC_PIN"); pin != "" {
		setDefaultGateway(gateways, "PEC", map[string]string{"PIN": pin})
	}
	if terminalID := os.Getenv("SEPEHR_TERMINAL_ID"); terminalID != "" {
		setDefaultGateway(gateways, "SEPEHR", map[string]string{"TERMINAL_ID": terminalID})
	}

	return gateways, nil
}

func setDefaultGateway(gateways map[string]map[string]map[string]string, bankType string, settings map[string]string) {
	if gateways[bankType] == nil {
		gateways[bankType] = make(map[string]map[string]string)
	}
	if gateways[bankType]["1"] == nil {
		gateways[bankType]["1"] = settings
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
