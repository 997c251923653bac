package interfaces

import (
	"context"
	"time"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/models"
)

// StorageService addresses objects by bucket and path only.
type StorageService interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Delete(ctx context.Context, bucket, key string) error
	SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

type DocumentUploader interface {
	Bucket() string
	UploadDocument(ctx context.Context, pet *models.Pet, documentType enum.DocumentType, attachment *dto.ParsedAttachment) (string, error)
}
