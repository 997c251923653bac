package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/pawpal/petmail/config"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/repository"
	"github.com/pawpal/petmail/services/ai"
	"github.com/pawpal/petmail/services/approvals"
	"github.com/pawpal/petmail/services/email_filter"
	"github.com/pawpal/petmail/services/email_processor"
	"github.com/pawpal/petmail/services/idempotency"
	"github.com/pawpal/petmail/services/notifications"
	"github.com/pawpal/petmail/services/ocr"
	"github.com/pawpal/petmail/services/parser"
	"github.com/pawpal/petmail/services/persistence"
	"github.com/pawpal/petmail/services/pets"
	"github.com/pawpal/petmail/services/sender"
	"github.com/pawpal/petmail/services/signature"
	"github.com/pawpal/petmail/services/storage"
	"github.com/pawpal/petmail/services/validation"
)

type Services struct {
	SignatureVerifier  interfaces.SignatureVerifier
	EmailParser        interfaces.EmailParser
	EmailProcessor     interfaces.EmailProcessor
	ApprovalService    interfaces.ApprovalService
	StorageService     interfaces.StorageService
	DocumentUploader   interfaces.DocumentUploader
	NotificationSender interfaces.NotificationSender
	Janitor            *idempotency.Janitor
	// Redis is nil when REDIS_URL is unset or unreachable.
	Redis              *redis.Client

	notificationSink interfaces.NotificationSink
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	// token replay cache
	var tokenCache signature.TokenCache
	var redisClient *redis.Client
	if cfg.AppConfig.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.AppConfig.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "invalid REDIS_URL")
		}
		redisClient = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Warnf("redis unavailable, webhook token replay cache disabled: %v", err)
			redisClient.Close()
			redisClient = nil
		} else {
			tokenCache = signature.NewRedisTokenCache(redisClient, 2*cfg.MailgunConfig.ReplayWindow)
		}
	}

	// notifications
	var sink interfaces.NotificationSink
	if cfg.AppConfig.RabbitMQURL != "" {
		publisher, err := notifications.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, log, notifications.DefaultPublisherConfig())
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect notification publisher")
		}
		sink = publisher
	} else {
		log.Warn("RABBITMQ_URL not set, push notifications are only logged")
		sink = notifications.NewLogSink(log)
	}
	notifier := notifications.NewNotificationSender(repos.PushNotificationRepository, sink, log)

	// storage
	storageService := storage.NewStorageServiceFromConfig(cfg.StorageConfig)
	bucket := cfg.StorageConfig.DocumentBucket
	uploader := storage.NewDocumentUploader(storageService, bucket)

	var reputation interfaces.SenderReputation
	if cfg.SenderConfig.ReputationEnabled {
		reputation = sender.NewDomainReputation(cfg.SenderConfig.ReputationTimeout, log)
	}

	// oracle backed components
	oracle := ai.NewGeminiOracle(cfg.OracleConfig)

	processor := email_processor.NewEmailProcessor(email_processor.Dependencies{
		Pets:       pets.NewPetLookup(repos.PetRepository),
		Filter:     email_filter.NewAutomatedMailFilter(),
		Senders:    sender.NewSenderVerifier(repos.PetSenderRepository, repos.PendingApprovalRepository, storageService, bucket, notifier, reputation, log),
		Lock:       idempotency.NewIdempotencyLock(repos.ProcessedEmailRepository, cfg.IdempotencyConfig.StaleAfter, log),
		Classifier: ai.NewDocumentClassifier(oracle, log),
		Validator:  validation.NewPetIdentityValidator(cfg.ValidationConfig, ai.NewPetIdentityExtractor(oracle), log),
		Uploader:   uploader,
		OCR:        ocr.NewOCRDispatcher(storageService, oracle, log),
		Persister:  persistence.NewRecordPersister(repos.HealthRecordRepository, log),
		History:    repos.PetEmailRepository,
		Notifier:   notifier,
	}, log)

	services := Services{
		SignatureVerifier:  signature.NewSignatureVerifier(cfg.MailgunConfig, tokenCache, log),
		EmailParser:        parser.NewEmailParser(log),
		EmailProcessor:     processor,
		ApprovalService:    approvals.NewApprovalService(repos.PendingApprovalRepository, repos.PetSenderRepository, storageService, bucket, processor, log),
		StorageService:     storageService,
		DocumentUploader:   uploader,
		NotificationSender: notifier,
		Janitor:            idempotency.NewJanitor(repos.ProcessedEmailRepository, cfg.IdempotencyConfig.Retention, cfg.IdempotencyConfig.StaleAfter, log),
		Redis:              redisClient,
		notificationSink:   sink,
	}

	return &services, nil
}

// Close releases broker and cache connections.
func (s *Services) Close() error {
	var err error
	if s.notificationSink != nil {
		err = s.notificationSink.Close()
	}
	if s.Redis != nil {
		if closeErr := s.Redis.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
