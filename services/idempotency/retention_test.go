package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/models"
)

type failingProcessed struct {
	*memoryProcessed
}

func (failingProcessed) DeleteCompletedBefore(context.Context, time.Time) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestJanitor_PurgeKeepsRecentAndInFlightRows(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-48 * time.Hour)
	recent := now.Add(-time.Hour)

	repo := newMemoryProcessed()
	repo.rows["old"] = &models.ProcessedEmail{MessageKey: "old", Status: enum.ProcessingCompleted, StartedAt: old, CompletedAt: &old}
	repo.rows["recent"] = &models.ProcessedEmail{MessageKey: "recent", Status: enum.ProcessingCompleted, StartedAt: recent, CompletedAt: &recent}
	repo.rows["running"] = &models.ProcessedEmail{MessageKey: "running", Status: enum.ProcessingInFlight, StartedAt: old}

	janitor := NewJanitor(repo, 24*time.Hour, time.Minute, testLogger())
	janitor.now = func() time.Time { return now }

	deleted, err := janitor.Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.NotContains(t, repo.rows, "old")
	assert.Contains(t, repo.rows, "recent")
	assert.Contains(t, repo.rows, "running")
}

func TestJanitor_ReportStale(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	repo := newMemoryProcessed()
	repo.rows["stuck"] = &models.ProcessedEmail{MessageKey: "stuck", Status: enum.ProcessingInFlight, StartedAt: now.Add(-time.Hour)}
	repo.rows["fresh"] = &models.ProcessedEmail{MessageKey: "fresh", Status: enum.ProcessingInFlight, StartedAt: now.Add(-time.Minute)}

	janitor := NewJanitor(repo, 0, 10*time.Minute, testLogger())
	janitor.now = func() time.Time { return now }

	stale, err := janitor.ReportStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stale)
	assert.Equal(t, DefaultRetention, janitor.retention)
}

func TestJanitor_PurgeWrapsRepositoryError(t *testing.T) {
	janitor := NewJanitor(failingProcessed{newMemoryProcessed()}, time.Hour, time.Minute, testLogger())

	_, err := janitor.Purge(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to purge processed emails")
	assert.Contains(t, err.Error(), "connection reset")
}
