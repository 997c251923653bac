package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/tracing"
)

type Config struct {
	AppConfig         *AppConfig
	Logger            *logger.Config
	Tracing           *tracing.JaegerConfig
	DatabaseConfig    *DatabaseConfig
	StorageConfig     *StorageConfig
	MailgunConfig     *MailgunConfig
	OracleConfig      *OracleConfig
	ValidationConfig  *ValidationConfig
	IdempotencyConfig *IdempotencyConfig
	SenderConfig      *SenderConfig
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:         &AppConfig{},
		Logger:            &logger.Config{},
		Tracing:           &tracing.JaegerConfig{},
		DatabaseConfig:    &DatabaseConfig{},
		StorageConfig:     &StorageConfig{},
		MailgunConfig:     &MailgunConfig{},
		OracleConfig:      &OracleConfig{},
		ValidationConfig:  &ValidationConfig{},
		IdempotencyConfig: &IdempotencyConfig{},
		SenderConfig:      &SenderConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		return nil, err
	}

	return config, nil
}
