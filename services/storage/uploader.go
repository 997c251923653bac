package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/enum"
	petmailerrors "github.com/pawpal/petmail/internal/errors"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/internal/utils"
)

const maxPathAttempts = 5

type documentUploader struct {
	storage interfaces.StorageService
	bucket  string
	now     func() time.Time
}

func NewDocumentUploader(storage interfaces.StorageService, bucket string) interfaces.DocumentUploader {
	return &documentUploader{storage: storage, bucket: bucket, now: utils.Now}
}

func (u *documentUploader) Bucket() string {
	return u.bucket
}

// UploadDocument writes the attachment under the owner's prefix and returns
// its path. Existing objects are never overwritten: on a collision the
// timestamp is bumped.
func (u *documentUploader) UploadDocument(ctx context.Context, pet *models.Pet, documentType enum.DocumentType, attachment *dto.ParsedAttachment) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "documentUploader.UploadDocument")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagPet(span, pet.ID)

	if len(attachment.Content) == 0 {
		return "", errors.New("attachment has no content")
	}

	timestamp := u.now().UnixMilli()
	for attempt := 0; attempt < maxPathAttempts; attempt++ {
		path := DocumentPath(pet, documentType, timestamp+int64(attempt), attachment.Filename)

		exists, err := u.storage.Exists(ctx, u.bucket, path)
		if err != nil {
			tracing.TraceErr(span, err)
			return "", errors.Wrap(err, "failed to check object")
		}
		if exists {
			continue
		}

		if err := u.storage.Upload(ctx, u.bucket, path, attachment.Content, attachment.MimeType); err != nil {
			tracing.TraceErr(span, err)
			return "", errors.Wrap(err, "failed to upload document")
		}
		span.LogKV("path", path)
		return path, nil
	}

	tracing.TraceErr(span, petmailerrors.ErrObjectExists)
	return "", petmailerrors.ErrObjectExists
}

// DocumentPath builds {user_id}/pet_{name}_{id}/{documentType}/{timestamp}_{filename}.
func DocumentPath(pet *models.Pet, documentType enum.DocumentType, timestamp int64, filename string) string {
	return fmt.Sprintf("%s/%s/%s/%d_%s",
		utils.SanitizePathSegment(pet.UserID),
		PetFolder(pet),
		documentType,
		timestamp,
		utils.SanitizePathSegment(filename),
	)
}

func PetFolder(pet *models.Pet) string {
	return fmt.Sprintf("pet_%s_%s", strings.ToLower(utils.SanitizePathSegment(pet.Name)), utils.SanitizePathSegment(pet.ID))
}

// BelongsToUser reports whether path lives under the user's prefix.
func BelongsToUser(path, userID string) bool {
	if userID == "" || strings.Contains(path, "..") {
		return false
	}
	return strings.HasPrefix(path, utils.SanitizePathSegment(userID)+"/")
}
