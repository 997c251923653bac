package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/repository"
)

// memoryProcessed mimics the unique constraint and the conditional updates.
type memoryProcessed struct {
	mu        sync.Mutex
	rows      map[string]*models.ProcessedEmail
	insertErr error
}

func newMemoryProcessed() *memoryProcessed {
	return &memoryProcessed{rows: map[string]*models.ProcessedEmail{}}
}

func (m *memoryProcessed) Insert(_ context.Context, record *models.ProcessedEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.rows[record.MessageKey]; ok {
		return repository.ErrDuplicate
	}
	copied := *record
	copied.Status = enum.ProcessingInFlight
	m.rows[record.MessageKey] = &copied
	return nil
}

func (m *memoryProcessed) GetByMessageKey(_ context.Context, key string) (*models.ProcessedEmail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (m *memoryProcessed) Reclaim(_ context.Context, key string, staleBefore time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key]
	if !ok || row.Status != enum.ProcessingInFlight || !row.StartedAt.Before(staleBefore) {
		return false, nil
	}
	row.StartedAt = time.Now()
	return true, nil
}

func (m *memoryProcessed) MarkCompleted(_ context.Context, key string, success bool, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	row.Status = enum.ProcessingCompleted
	row.Success = success
	row.AttachmentCount = count
	row.CompletedAt = &now
	return nil
}

func (m *memoryProcessed) DeleteCompletedBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for key, row := range m.rows {
		if row.Status == enum.ProcessingCompleted && row.CompletedAt != nil && row.CompletedAt.Before(before) {
			delete(m.rows, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memoryProcessed) CountStale(_ context.Context, staleBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, row := range m.rows {
		if row.Status == enum.ProcessingInFlight && row.StartedAt.Before(staleBefore) {
			count++
		}
	}
	return count, nil
}

func testLogger() logger.Logger {
	l := logger.NewAppLogger(&logger.Config{DevMode: true})
	l.InitLogger()
	return l
}

func TestAcquire_SecondCallSeesStatus(t *testing.T) {
	repo := newMemoryProcessed()
	lock := NewIdempotencyLock(repo, time.Minute, testLogger())
	ctx := context.Background()

	first, err := lock.Acquire(ctx, "m1|pet_1", "pet_1", 1)
	require.NoError(t, err)
	assert.True(t, first.Acquired)

	second, err := lock.Acquire(ctx, "m1|pet_1", "pet_1", 1)
	require.NoError(t, err)
	assert.False(t, second.Acquired)
	assert.Equal(t, enum.ProcessingInFlight, second.Status)

	require.NoError(t, lock.MarkCompleted(ctx, "m1|pet_1", true, 1))

	third, err := lock.Acquire(ctx, "m1|pet_1", "pet_1", 1)
	require.NoError(t, err)
	assert.False(t, third.Acquired)
	assert.Equal(t, enum.ProcessingCompleted, third.Status)
}

func TestAcquire_ConcurrentDuplicatesHaveOneWinner(t *testing.T) {
	repo := newMemoryProcessed()
	lock := NewIdempotencyLock(repo, time.Minute, testLogger())

	const callers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := lock.Acquire(context.Background(), "m1|pet_1", "pet_1", 1)
			assert.NoError(t, err)
			if res.Acquired {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, acquired)
}

func TestAcquire_ReclaimsStaleLock(t *testing.T) {
	repo := newMemoryProcessed()
	repo.rows["m1|pet_1"] = &models.ProcessedEmail{MessageKey: "m1|pet_1", Status: enum.ProcessingInFlight, StartedAt: time.Now().Add(-time.Hour)}
	lock := NewIdempotencyLock(repo, 10*time.Minute, testLogger())

	res, err := lock.Acquire(context.Background(), "m1|pet_1", "pet_1", 1)
	require.NoError(t, err)
	assert.True(t, res.Acquired)

	res, err = lock.Acquire(context.Background(), "m1|pet_1", "pet_1", 1)
	require.NoError(t, err)
	assert.False(t, res.Acquired)
}

func TestAcquire_CompletedIsNeverReclaimed(t *testing.T) {
	repo := newMemoryProcessed()
	repo.rows["m1|pet_1"] = &models.ProcessedEmail{MessageKey: "m1|pet_1", Status: enum.ProcessingCompleted, StartedAt: time.Now().Add(-time.Hour)}
	lock := NewIdempotencyLock(repo, 10*time.Minute, testLogger())

	res, err := lock.Acquire(context.Background(), "m1|pet_1", "pet_1", 1)
	require.NoError(t, err)
	assert.False(t, res.Acquired)
	assert.Equal(t, enum.ProcessingCompleted, res.Status)
}

func TestAcquire_FailsOpenOnDatabaseError(t *testing.T) {
	repo := newMemoryProcessed()
	repo.insertErr = errors.New("connection refused")
	lock := NewIdempotencyLock(repo, time.Minute, testLogger())

	res, err := lock.Acquire(context.Background(), "m1|pet_1", "pet_1", 1)
	require.NoError(t, err)
	assert.True(t, res.Acquired)
}
