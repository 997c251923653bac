package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/internal/utils"
)

type pushNotificationRepository struct {
	db *gorm.DB
}

func NewPushNotificationRepository(db *gorm.DB) interfaces.PushNotificationRepository {
	return &pushNotificationRepository{db: db}
}

func (r *pushNotificationRepository) Create(ctx context.Context, notification *models.PushNotification) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pushNotificationRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if notification == nil || notification.UserID == "" {
		return ErrInvalidInput
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = utils.Now()
	}

	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// MarkDelivered records the sink outcome on an outbox row.
func (r *pushNotificationRepository) MarkDelivered(ctx context.Context, id string, deliveryErr error) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pushNotificationRepository.MarkDelivered")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	updates := map[string]interface{}{"delivered": deliveryErr == nil}
	if deliveryErr != nil {
		updates["error"] = utils.Truncate(deliveryErr.Error(), 1000)
	}

	err := r.db.WithContext(ctx).
		Model(&models.PushNotification{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
