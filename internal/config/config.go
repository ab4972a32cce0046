package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime settings. Every field maps to an environment
// variable; defaults target local development against the eSewa sandbox.
type Config struct {
	AppPort     string
	DatabaseURL string

	JWTSecret string
	JWTExpire time.Duration

	EsewaMerchantID string
	EsewaBaseURL    string
	AppBaseURL      string
	TeaUnitPrice    float64
	MinTipAmount    float64

	RabbitMQURL string

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}

// Load reads configuration from environment variables via Viper.
func Load() *Config {
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("JWT_SECRET", "change-me-in-production")
	viper.SetDefault("JWT_EXPIRE_HOURS", 24)
	viper.SetDefault("ESEWA_MERCHANT_ID", "EPAYTEST")
	viper.SetDefault("ESEWA_BASE_URL", "https://uat.esewa.com.np")
	viper.SetDefault("APP_BASE_URL", "http://localhost:3000")
	viper.SetDefault("TEA_UNIT_PRICE", 10.0)
	viper.SetDefault("MIN_TIP_AMOUNT", 10.0)
	viper.SetDefault("RABBITMQ_URL", "")
	viper.SetDefault("S3_ENDPOINT", "")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("S3_BUCKET", "buymeatea-media")
	viper.SetDefault("S3_ACCESS_KEY", "")
	viper.SetDefault("S3_SECRET_KEY", "")
	viper.AutomaticEnv()

	return &Config{
		AppPort:         viper.GetString("APP_PORT"),
		DatabaseURL:     viper.GetString("DATABASE_URL"),
		JWTSecret:       viper.GetString("JWT_SECRET"),
		JWTExpire:       time.Duration(viper.GetInt("JWT_EXPIRE_HOURS")) * time.Hour,
		EsewaMerchantID: viper.GetString("ESEWA_MERCHANT_ID"),
		EsewaBaseURL:    viper.GetString("ESEWA_BASE_URL"),
		AppBaseURL:      viper.GetString("APP_BASE_URL"),
		TeaUnitPrice:    viper.GetFloat64("TEA_UNIT_PRICE"),
		MinTipAmount:    viper.GetFloat64("MIN_TIP_AMOUNT"),
		RabbitMQURL:     viper.GetString("RABBITMQ_URL"),
		S3Endpoint:      viper.GetString("S3_ENDPOINT"),
		S3Region:        viper.GetString("S3_REGION"),
		S3Bucket:        viper.GetString("S3_BUCKET"),
		S3AccessKey:     viper.GetString("S3_ACCESS_KEY"),
		S3SecretKey:     viper.GetString("S3_SECRET_KEY"),
	}
}
