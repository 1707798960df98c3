package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                    string
	DBUrl                   string
	JWTSecret               string
	AppEnv                  string
	StripeSecretKey         string
	StripeWebhookSecret     string
	CheckoutSuccessURL      string
	FirebaseCredentialsFile string
	PlatformFee             float64
	SchedulerInterval       time.Duration
	ReportWindow            time.Duration
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	platformFee, err := getEnvFloat("PLATFORM_FEE", 0)
	if err != nil {
		return nil, err
	}
	schedulerInterval, err := getEnvDuration("SCHEDULER_INTERVAL", 10*time.Second)
	if err != nil {
		return nil, err
	}
	reportWindow, err := getEnvDuration("REPORT_WINDOW", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:                    getEnv("PORT", "8080"),
		DBUrl:                   getEnv("DB_URL", ""),
		JWTSecret:               jwtSecret,
		AppEnv:                  normalizeEnv(getEnv("APP_ENV", "production")),
		StripeSecretKey:         getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:     getEnv("STRIPE_WEBHOOK_SECRET", ""),
		CheckoutSuccessURL:      getEnv("CHECKOUT_SUCCESS_URL", ""),
		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		PlatformFee:             platformFee,
		SchedulerInterval:       schedulerInterval,
		ReportWindow:            reportWindow,
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 10s or 24h: %w", key, err)
	}
	return parsed, nil
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}
