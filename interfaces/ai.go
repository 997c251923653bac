package interfaces

import (
	"context"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/models"
)

// InlineDocument is binary content sent alongside an oracle prompt.
type InlineDocument struct {
	MimeType string
	Data     []byte
}

// Oracle sends a prompt with an optional document and decodes the JSON
// answer, which must match schema, into out.
type Oracle interface {
	GenerateJSON(ctx context.Context, prompt string, document *InlineDocument, schema map[string]any, out any) error
}

type DocumentClassifier interface {
	Classify(ctx context.Context, attachment *dto.ParsedAttachment, subject, body string) dto.DocumentClassification
}

type PetIdentityExtractor interface {
	ExtractPetInfo(ctx context.Context, attachment *dto.ParsedAttachment, subject string) (*dto.ExtractedPetInfo, error)
}

type PetIdentityValidator interface {
	Validate(ctx context.Context, pet *models.Pet, attachment *dto.ParsedAttachment, subject string) *dto.PetValidationResult
}

type OCRDispatcher interface {
	TriggerOCR(ctx context.Context, documentType enum.DocumentType, bucket, path string) dto.OCRResult
}
