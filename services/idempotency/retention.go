package idempotency

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/internal/utils"
)

const DefaultRetention = 30 * 24 * time.Hour

// Janitor keeps the processed_emails table bounded and reports locks that
// were never completed.
type Janitor struct {
	processed  interfaces.ProcessedEmailRepository
	retention  time.Duration
	staleAfter time.Duration
	log        logger.Logger
	now        func() time.Time
}

func NewJanitor(processed interfaces.ProcessedEmailRepository, retention, staleAfter time.Duration, log logger.Logger) *Janitor {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Janitor{
		processed:  processed,
		retention:  retention,
		staleAfter: staleAfter,
		log:        log,
		now:        utils.Now,
	}
}

// Purge deletes completed rows older than the retention period. Rows still
// processing are never touched.
func (j *Janitor) Purge(ctx context.Context) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Janitor.Purge")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	cutoff := j.now().Add(-j.retention)
	span.LogKV("cutoff", cutoff.Format(time.RFC3339))

	deleted, err := j.processed.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, errors.Wrap(err, "failed to purge processed emails")
	}
	span.LogKV("deleted", deleted)
	j.log.Infof("purged %d processed email records completed before %s", deleted, cutoff.Format(time.RFC3339))
	return deleted, nil
}

// ReportStale counts processing rows that outlived staleAfter. They are
// reclaimed on the next delivery of the same message.
func (j *Janitor) ReportStale(ctx context.Context) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Janitor.ReportStale")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	stale, err := j.processed.CountStale(ctx, j.now().Add(-j.staleAfter))
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, errors.Wrap(err, "failed to count stale locks")
	}
	span.LogKV("stale", stale)
	if stale > 0 {
		j.log.Warnf("%d idempotency locks have been processing for longer than %s", stale, j.staleAfter)
	}
	return stale, nil
}
