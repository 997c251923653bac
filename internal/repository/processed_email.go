package repository

import (
	"context"
	"errors"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/internal/utils"
)

type processedEmailRepository struct {
	db *gorm.DB
}

func NewProcessedEmailRepository(db *gorm.DB) interfaces.ProcessedEmailRepository {
	return &processedEmailRepository{db: db}
}

// Insert relies on the unique index on message_key. A concurrent or earlier
// insert for the same key yields ErrDuplicate.
func (r *processedEmailRepository) Insert(ctx context.Context, record *models.ProcessedEmail) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "processedEmailRepository.Insert")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if record == nil || record.MessageKey == "" {
		return ErrInvalidInput
	}
	span.SetTag(tracing.SpanTagMessageKey, record.MessageKey)

	now := utils.Now()
	if record.Status == "" {
		record.Status = enum.ProcessingInFlight
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = now
	}
	record.CreatedAt = now
	record.UpdatedAt = now

	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil {
		if isUniqueViolation(err) {
			span.SetTag("duplicate", true)
			return ErrDuplicate
		}
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *processedEmailRepository) GetByMessageKey(ctx context.Context, messageKey string) (*models.ProcessedEmail, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "processedEmailRepository.GetByMessageKey")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagMessageKey, messageKey)

	var record models.ProcessedEmail
	if err := r.db.WithContext(ctx).Where("message_key = ?", messageKey).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &record, nil
}

// Reclaim takes over a processing record whose holder started before
// staleBefore. The conditional update makes it safe against a concurrent
// reclaim: only one caller sees a row affected.
func (r *processedEmailRepository) Reclaim(ctx context.Context, messageKey string, staleBefore time.Time) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "processedEmailRepository.Reclaim")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagMessageKey, messageKey)

	now := utils.Now()
	result := r.db.WithContext(ctx).
		Model(&models.ProcessedEmail{}).
		Where("message_key = ? AND status = ? AND started_at < ?", messageKey, enum.ProcessingInFlight, staleBefore).
		Updates(map[string]interface{}{
			"started_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *processedEmailRepository) MarkCompleted(ctx context.Context, messageKey string, success bool, attachmentCount int) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "processedEmailRepository.MarkCompleted")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag(tracing.SpanTagMessageKey, messageKey)

	now := utils.Now()
	err := r.db.WithContext(ctx).
		Model(&models.ProcessedEmail{}).
		Where("message_key = ?", messageKey).
		Updates(map[string]interface{}{
			"status":           enum.ProcessingCompleted,
			"success":          success,
			"attachment_count": attachmentCount,
			"completed_at":     now,
			"updated_at":       now,
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *processedEmailRepository) DeleteCompletedBefore(ctx context.Context, before time.Time) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "processedEmailRepository.DeleteCompletedBefore")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Where("status = ? AND completed_at < ?", enum.ProcessingCompleted, before).
		Delete(&models.ProcessedEmail{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *processedEmailRepository) CountStale(ctx context.Context, staleBefore time.Time) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "processedEmailRepository.CountStale")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProcessedEmail{}).
		Where("status = ? AND started_at < ?", enum.ProcessingInFlight, staleBefore).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return count, nil
}
