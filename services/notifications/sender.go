package notifications

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/tracing"
)

type notificationSender struct {
	outbox interfaces.PushNotificationRepository
	sink   interfaces.NotificationSink
	log    logger.Logger
}

func NewNotificationSender(outbox interfaces.PushNotificationRepository, sink interfaces.NotificationSink, log logger.Logger) interfaces.NotificationSender {
	return &notificationSender{outbox: outbox, sink: sink, log: log}
}

// Send logs the notification to the outbox, then hands it to the sink.
func (s *notificationSender) Send(ctx context.Context, notification dto.Notification) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "notificationSender.Send")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagPet(span, notification.PetID)
	span.LogKV("kind", notification.Kind)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("notification send panicked: %v", r)
			tracing.TraceErr(span, err)
			s.log.Error(err)
		}
	}()

	data := make(models.JSONMap, len(notification.Data))
	for k, v := range notification.Data {
		data[k] = v
	}
	record := &models.PushNotification{
		UserID: notification.UserID,
		PetID:  notification.PetID,
		Kind:   notification.Kind,
		Title:  notification.Title,
		Body:   notification.Body,
		Data:   data,
	}
	logged := true
	if err := s.outbox.Create(ctx, record); err != nil {
		logged = false
		tracing.TraceErr(span, err)
		s.log.Warnf("failed to log %s notification for user %s: %v", notification.Kind, notification.UserID, err)
	}

	deliveryErr := s.sink.Deliver(ctx, notification)
	if deliveryErr != nil {
		tracing.TraceErr(span, deliveryErr)
		s.log.Warnf("failed to deliver %s notification for user %s: %v", notification.Kind, notification.UserID, deliveryErr)
	}

	if logged {
		if err := s.outbox.MarkDelivered(ctx, record.ID, deliveryErr); err != nil {
			s.log.Warnf("failed to update notification %s: %v", record.ID, err)
		}
	}
}
