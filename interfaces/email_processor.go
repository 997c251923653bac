package interfaces

import (
	"context"
	"mime/multipart"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/models"
)

type SignatureVerifier interface {
	Verify(ctx context.Context, timestamp, token, signature string) bool
	Consume(ctx context.Context, token string)
}

type EmailParser interface {
	ParseMailgunForm(ctx context.Context, form *multipart.Form) (*dto.ParsedEmail, error)
	ParseRawMIME(ctx context.Context, raw []byte) (*dto.ParsedEmail, error)
}

type PetLookup interface {
	FindPetByEmail(ctx context.Context, aliasAddress string) (*models.Pet, error)
}

type AutomatedMailFilter interface {
	IsAutomated(ctx context.Context, email *dto.ParsedEmail) (bool, string)
}

type SenderVerifier interface {
	VerifySender(ctx context.Context, pet *models.Pet, senderEmail string) (enum.SenderStatus, error)
	RequestApproval(ctx context.Context, pet *models.Pet, email *dto.ParsedEmail, messageKey string) (*models.PendingApproval, bool, error)
}

type LockResult struct {
	Acquired bool
	Status   enum.ProcessingStatus
}

// SenderReputation rates the domain of a sender the owner has not seen yet.
// A nil result means the lookup could not finish.
type SenderReputation interface {
	Score(ctx context.Context, domain string) *dto.SenderReputation
}

type IdempotencyLock interface {
	Acquire(ctx context.Context, messageKey, petID string, attachmentCount int) (LockResult, error)
	MarkCompleted(ctx context.Context, messageKey string, success bool, attachmentCount int) error
}

type RecordPersister interface {
	Save(ctx context.Context, documentType enum.DocumentType, pet *models.Pet, storagePath string, data interface{}) dto.SaveResult
}

type EmailProcessor interface {
	Process(ctx context.Context, email *dto.ParsedEmail) (*dto.PipelineResponse, error)
}

type ApprovalService interface {
	ListPending(ctx context.Context, petID string) ([]*models.PendingApproval, error)
	Approve(ctx context.Context, approvalID string) (*dto.ApprovalDecision, error)
	Reject(ctx context.Context, approvalID string) (*dto.ApprovalDecision, error)
}
