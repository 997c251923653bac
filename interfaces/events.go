package interfaces

import (
	"context"

	"github.com/pawpal/petmail/dto"
)

// NotificationSink delivers a push notification to the user's devices.
type NotificationSink interface {
	Deliver(ctx context.Context, notification dto.Notification) error
	Close() error
}

// NotificationSender is best effort: failures are logged, never returned.
type NotificationSender interface {
	Send(ctx context.Context, notification dto.Notification)
}
