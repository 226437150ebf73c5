package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort      string
	AppMode      string
	LogMode      string
	PublicAppURL string

	StoreDriver string
	DBHost      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBPort      string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	Broker  string
	NatsURL string

	JWTSecret string

	MailProvider   string
	MailFrom       string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	AWSRegion      string
	AWSAccessKey   string
	AWSSecretKey   string
	AWSSESEndpoint string

	EscalationInterval    time.Duration
	EscalationDelay       time.Duration
	EscalationSendTimeout time.Duration
	EscalationBatch       int
	EscalationClaimLease  time.Duration

	MessageRateLimit int
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	BrokerRedis = "redis"
	BrokerNATS  = "nats"

	MailProviderSES  = "ses"
	MailProviderSMTP = "smtp"
	MailProviderLog  = "log"
)

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:      getEnv("APP_PORT", "8080"),
		AppMode:      getEnv("APP_MODE", "debug"),
		LogMode:      getEnv("LOG_MODE", "development"),
		PublicAppURL: getEnv("PUBLIC_APP_URL", "http://localhost:3000"),

		StoreDriver: getEnv("STORE_DRIVER", StoreDriverPostgres),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "postgres"),
		DBName:      getEnv("DB_NAME", "campus_relay"),
		DBPort:      getEnv("DB_PORT", "5432"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		Broker:  getEnv("BROKER", BrokerRedis),
		NatsURL: getEnv("NATS_URL", "nats://localhost:4222"),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),

		MailProvider:   getEnv("MAIL_PROVIDER", MailProviderLog),
		MailFrom:       getEnv("MAIL_FROM", "no-reply@campus.local"),
		SMTPHost:       getEnv("SMTP_HOST", "localhost"),
		SMTPPort:       getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:       getEnv("SMTP_USER", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKey:   getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSSESEndpoint: getEnv("AWS_SES_ENDPOINT", ""),

		EscalationInterval:    getEnvAsDuration("ESCALATION_INTERVAL", time.Minute),
		EscalationDelay:       getEnvAsDuration("ESCALATION_DELAY", 10*time.Minute),
		EscalationSendTimeout: getEnvAsDuration("ESCALATION_SEND_TIMEOUT", 15*time.Second),
		EscalationBatch:       getEnvAsInt("ESCALATION_BATCH", 100),
		EscalationClaimLease:  getEnvAsDuration("ESCALATION_CLAIM_LEASE", 5*time.Minute),

		MessageRateLimit: getEnvAsInt("MESSAGE_RATE_LIMIT", 60),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return fallback
}
