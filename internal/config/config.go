package config

import (
	"os"
	"strconv"
)

type PremiumServiceConfig struct {
	Port        string
	PostgresCfg PostgresConfig
	RedisCfg    RedisConfig
	RabbitMQCfg RabbitMQConfig
	EsewaCfg    EsewaConfig
	KhaltiCfg   KhaltiConfig
	ProfileCfg  ProfileServiceConfig
	FrontendCfg FrontendConfig
	RenewalCfg  RenewalConfig
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	Username string
	Password string
	Host     string
	Port     string
}

type EsewaConfig struct {
	ProductCode string
	SecretKey   string
	FormURL     string
	StatusURL   string
	SuccessURL  string
	FailureURL  string
}

type KhaltiConfig struct {
	SecretKey  string
	BaseURL    string
	ReturnURL  string
	WebsiteURL string
}

type ProfileServiceConfig struct {
	BaseURL string
	APIKey  string
}

type FrontendConfig struct {
	PaymentSuccessURL string
	PaymentFailureURL string
}

type RenewalConfig struct {
	// GraceDays is how long past the due date a lapsed renewal may still be
	// paid. At exactly due+grace renewal is still allowed.
	GraceDays int
	// GatewayTimeoutSeconds bounds outbound verification/lookup calls.
	GatewayTimeoutSeconds int
	SweepCronSpec         string
}

func New() *PremiumServiceConfig {
	return &PremiumServiceConfig{
		Port: getEnvOrDefault("PORT", "8089"),
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "premium_service"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RedisCfg: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       0,
		},
		RabbitMQCfg: RabbitMQConfig{
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Host:     getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
		},
		EsewaCfg: EsewaConfig{
			ProductCode: getEnvOrDefault("ESEWA_PRODUCT_CODE", "EPAYTEST"),
			SecretKey:   getEnvOrDefault("ESEWA_SECRET_KEY", ""),
			FormURL:     getEnvOrDefault("ESEWA_FORM_URL", "https://rc-epay.esewa.com.np/api/epay/main/v2/form"),
			StatusURL:   getEnvOrDefault("ESEWA_STATUS_URL", "https://rc.esewa.com.np/api/epay/transaction/status/"),
			SuccessURL:  getEnvOrDefault("ESEWA_SUCCESS_URL", "http://localhost:8089/premium/public/api/v1/payments/esewa/success"),
			FailureURL:  getEnvOrDefault("ESEWA_FAILURE_URL", "http://localhost:8089/premium/public/api/v1/payments/esewa/failure"),
		},
		KhaltiCfg: KhaltiConfig{
			SecretKey:  getEnvOrDefault("KHALTI_SECRET_KEY", ""),
			BaseURL:    getEnvOrDefault("KHALTI_BASE_URL", "https://a.khalti.com/api/v2"),
			ReturnURL:  getEnvOrDefault("KHALTI_RETURN_URL", "http://localhost:8089/premium/public/api/v1/payments/khalti/return"),
			WebsiteURL: getEnvOrDefault("KHALTI_WEBSITE_URL", "http://localhost:3000"),
		},
		ProfileCfg: ProfileServiceConfig{
			BaseURL: getEnvOrDefault("PROFILE_SERVICE_URL", "http://localhost:8087"),
			APIKey:  getEnvOrDefault("PROFILE_SERVICE_API_KEY", ""),
		},
		FrontendCfg: FrontendConfig{
			PaymentSuccessURL: getEnvOrDefault("FRONTEND_PAYMENT_SUCCESS_URL", "http://localhost:3000/payment/success"),
			PaymentFailureURL: getEnvOrDefault("FRONTEND_PAYMENT_FAILURE_URL", "http://localhost:3000/payment/failure"),
		},
		RenewalCfg: RenewalConfig{
			GraceDays:             getEnvIntOrDefault("RENEWAL_GRACE_DAYS", 15),
			GatewayTimeoutSeconds: getEnvIntOrDefault("GATEWAY_TIMEOUT_SECONDS", 10),
			SweepCronSpec:         getEnvOrDefault("RENEWAL_SWEEP_CRON", "@daily"),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
