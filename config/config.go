package config

import (
	"time"
)

type AppConfig struct {
	APIPort       string `env:"PORT,required" envDefault:"12222"`
	APIKey        string `env:"API_KEY,required"`
	InboundAPIKey string `env:"INBOUND_API_KEY"`
	RabbitMQURL   string `env:"RABBITMQ_URL"`
	RedisURL      string `env:"REDIS_URL"`
}

type DatabaseConfig struct {
	Host            string `env:"POSTGRES_HOST,required"`
	Port            string `env:"POSTGRES_PORT,required"`
	User            string `env:"POSTGRES_USER,required"`
	DBName          string `env:"POSTGRES_DB_NAME,required"`
	Password        string `env:"POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"POSTGRES_DB_MAX_CONN" envDefault:"25"`
	MaxIdleConn     int    `env:"POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"POSTGRES_SSL_MODE" envDefault:"require"`
}

type StorageConfig struct {
	Provider        string        `env:"STORAGE_PROVIDER" envDefault:"r2"`
	AccountID       string        `env:"CLOUDFLARE_R2_ACCOUNT_ID"`
	AWSRegion       string        `env:"AWS_REGION" envDefault:"eu-west-1"`
	AccessKeyID     string        `env:"STORAGE_ACCESS_KEY_ID,required"`
	AccessKeySecret string        `env:"STORAGE_ACCESS_KEY_SECRET,required"`
	DocumentBucket  string        `env:"BUCKET_NAME_PET_DOCUMENTS" envDefault:"pet-documents"`
	SignedURLTTL    time.Duration `env:"STORAGE_SIGNED_URL_TTL" envDefault:"1h"`
}

type MailgunConfig struct {
	WebhookSigningKey string        `env:"MAILGUN_WEBHOOK_SIGNING_KEY,required"`
	ReplayWindow      time.Duration `env:"MAILGUN_REPLAY_WINDOW" envDefault:"900s"`
}

type OracleConfig struct {
	ApiKey  string        `env:"GEMINI_API_KEY,required"`
	Model   string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	Url     string        `env:"GEMINI_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	Timeout time.Duration `env:"GEMINI_TIMEOUT" envDefault:"90s"`
}

// ValidationConfig holds the pet identity matching thresholds.
type ValidationConfig struct {
	NameSimilarityThreshold  float64 `env:"PET_NAME_SIMILARITY_THRESHOLD" envDefault:"0.70"`
	BreedSimilarityThreshold float64 `env:"PET_BREED_SIMILARITY_THRESHOLD" envDefault:"0.70"`
	AgeToleranceYears        float64 `env:"PET_AGE_TOLERANCE_YEARS" envDefault:"1.0"`
	MinAttributeMatches      int     `env:"PET_MIN_ATTRIBUTE_MATCHES" envDefault:"3"`
}

type IdempotencyConfig struct {
	StaleAfter time.Duration `env:"IDEMPOTENCY_STALE_AFTER" envDefault:"10m"`
	Retention  time.Duration `env:"IDEMPOTENCY_RETENTION" envDefault:"720h"`
}

// SenderConfig controls the domain reputation lookup attached to approval
// requests for unknown senders.
type SenderConfig struct {
	ReputationEnabled bool          `env:"SENDER_REPUTATION_ENABLED" envDefault:"true"`
	ReputationTimeout time.Duration `env:"SENDER_REPUTATION_TIMEOUT" envDefault:"10s"`
}
