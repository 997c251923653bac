package handlers

import (
	"github.com/pawpal/petmail/config"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/services"
)

type APIHandlers struct {
	Webhooks  *WebhookHandler
	Approvals *ApprovalsHandler
	Documents *DocumentsHandler
}

func InitHandlers(s *services.Services, storageConfig *config.StorageConfig, log logger.Logger) *APIHandlers {
	return &APIHandlers{
		Webhooks:  NewWebhookHandler(s.SignatureVerifier, s.EmailParser, s.EmailProcessor, log),
		Approvals: NewApprovalsHandler(s.ApprovalService, log),
		Documents: NewDocumentsHandler(s.StorageService, storageConfig.DocumentBucket, storageConfig.SignedURLTTL, log),
	}
}
