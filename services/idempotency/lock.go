package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/repository"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/internal/utils"
)

const DefaultStaleAfter = 10 * time.Minute

type idempotencyLock struct {
	processed  interfaces.ProcessedEmailRepository
	staleAfter time.Duration
	log        logger.Logger
	now        func() time.Time
}

func NewIdempotencyLock(processed interfaces.ProcessedEmailRepository, staleAfter time.Duration, log logger.Logger) interfaces.IdempotencyLock {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &idempotencyLock{processed: processed, staleAfter: staleAfter, log: log, now: utils.Now}
}

// Acquire inserts a processing row for messageKey. The unique constraint on
// the key makes the insert the only point of mutual exclusion. A processing
// row older than staleAfter is taken over by a conditional update. Database
// errors other than the conflict let the caller proceed.
func (l *idempotencyLock) Acquire(ctx context.Context, messageKey, petID string, attachmentCount int) (interfaces.LockResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "idempotencyLock.Acquire")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagPet(span, petID)

	err := l.processed.Insert(ctx, &models.ProcessedEmail{
		MessageKey:      messageKey,
		PetID:           petID,
		AttachmentCount: attachmentCount,
		StartedAt:       l.now(),
	})
	if err == nil {
		span.LogKV("acquired", true)
		return interfaces.LockResult{Acquired: true, Status: enum.ProcessingInFlight}, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		tracing.TraceErr(span, err)
		l.log.Warnf("idempotency insert failed for %s, processing anyway: %v", messageKey, err)
		return interfaces.LockResult{Acquired: true, Status: enum.ProcessingInFlight}, nil
	}

	existing, err := l.processed.GetByMessageKey(ctx, messageKey)
	if err != nil || existing == nil {
		// the row was there a moment ago; report it as in flight
		if err != nil {
			tracing.TraceErr(span, err)
		}
		return interfaces.LockResult{Acquired: false, Status: enum.ProcessingInFlight}, nil
	}

	if existing.Status == enum.ProcessingInFlight && existing.StartedAt.Before(l.now().Add(-l.staleAfter)) {
		reclaimed, err := l.processed.Reclaim(ctx, messageKey, l.now().Add(-l.staleAfter))
		if err != nil {
			tracing.TraceErr(span, err)
		}
		if reclaimed {
			l.log.Warnf("reclaimed stale lock for %s started at %s", messageKey, existing.StartedAt.Format(time.RFC3339))
			span.LogKV("acquired", true, "reclaimed", true)
			return interfaces.LockResult{Acquired: true, Status: enum.ProcessingInFlight}, nil
		}
	}

	span.LogKV("acquired", false, "status", existing.Status)
	return interfaces.LockResult{Acquired: false, Status: existing.Status}, nil
}

func (l *idempotencyLock) MarkCompleted(ctx context.Context, messageKey string, success bool, attachmentCount int) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "idempotencyLock.MarkCompleted")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("success", success, "attachmentCount", attachmentCount)

	if err := l.processed.MarkCompleted(ctx, messageKey, success, attachmentCount); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
