package sender

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/models"
)

type memorySenders struct {
	statuses map[string]enum.SenderStatus
	err      error
}

func (m *memorySenders) GetStatus(_ context.Context, petID, email string) (enum.SenderStatus, error) {
	if m.err != nil {
		return enum.SenderUnknown, m.err
	}
	if s, ok := m.statuses[petID+"/"+email]; ok {
		return s, nil
	}
	return enum.SenderUnknown, nil
}

func (m *memorySenders) Upsert(_ context.Context, petID, email string, status enum.SenderStatus) error {
	m.statuses[petID+"/"+email] = status
	return nil
}

type memoryApprovals struct {
	mu    sync.Mutex
	byKey map[string]*models.PendingApproval
}

func (m *memoryApprovals) CreateIfAbsent(_ context.Context, a *models.PendingApproval) (*models.PendingApproval, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byKey[a.MessageKey]; ok {
		return existing, false, nil
	}
	m.byKey[a.MessageKey] = a
	return a, true, nil
}

func (m *memoryApprovals) GetByID(context.Context, string) (*models.PendingApproval, error) {
	return nil, nil
}

func (m *memoryApprovals) ListPendingByPet(context.Context, string) ([]*models.PendingApproval, error) {
	return nil, nil
}

func (m *memoryApprovals) Resolve(context.Context, string, enum.ApprovalStatus) (bool, error) {
	return false, nil
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    bool
}

func (s *memoryStorage) Upload(_ context.Context, bucket, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("storage unavailable")
	}
	s.objects[bucket+"/"+key] = data
	return nil
}

func (s *memoryStorage) Download(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[bucket+"/"+key], nil
}

func (s *memoryStorage) Exists(context.Context, string, string) (bool, error) { return false, nil }

func (s *memoryStorage) Delete(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, bucket+"/"+key)
	return nil
}

func (s *memoryStorage) SignedURL(context.Context, string, string, time.Duration) (string, error) {
	return "", nil
}

type countingNotifier struct {
	mu   sync.Mutex
	sent []dto.Notification
}

func (n *countingNotifier) Send(_ context.Context, notification dto.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

func testLogger() logger.Logger {
	l := logger.NewAppLogger(&logger.Config{DevMode: true})
	l.InitLogger()
	return l
}

var luna = &models.Pet{ID: "pet_1", UserID: "user_1", Name: "Luna"}

func newEmail() *dto.ParsedEmail {
	return &dto.ParsedEmail{
		From:        &dto.Address{Name: "Dr Vet", Email: "Vet@Clinic.com"},
		Recipient:   "luna-x7k2@pets.example.com",
		Subject:     "Blood work",
		MessageID:   "<m1@clinic.com>",
		Attachments: []dto.ParsedAttachment{{Filename: "cbc.pdf", MimeType: "application/pdf", Content: []byte("%PDF-1.4")}},
	}
}

func TestVerifySender(t *testing.T) {
	senders := &memorySenders{statuses: map[string]enum.SenderStatus{
		"pet_1/vet@clinic.com": enum.SenderWhitelisted,
		"pet_1/spam@junk.com":  enum.SenderBlocked,
		"pet_2/vet@clinic.com": enum.SenderBlocked,
	}}
	v := NewSenderVerifier(senders, &memoryApprovals{}, &memoryStorage{}, "docs", &countingNotifier{}, nil, testLogger())

	status, err := v.VerifySender(context.Background(), luna, "Dr Vet <VET@clinic.com>")
	require.NoError(t, err)
	assert.Equal(t, enum.SenderWhitelisted, status)

	status, err = v.VerifySender(context.Background(), luna, "spam@junk.com")
	require.NoError(t, err)
	assert.Equal(t, enum.SenderBlocked, status)

	status, err = v.VerifySender(context.Background(), luna, "stranger@elsewhere.com")
	require.NoError(t, err)
	assert.Equal(t, enum.SenderUnknown, status)

	senders.err = errors.New("db down")
	_, err = v.VerifySender(context.Background(), luna, "vet@clinic.com")
	assert.Error(t, err)
}

func TestRequestApproval_ParksEmailAndNotifiesOnce(t *testing.T) {
	approvals := &memoryApprovals{byKey: map[string]*models.PendingApproval{}}
	storage := &memoryStorage{objects: map[string][]byte{}}
	notifier := &countingNotifier{}
	v := NewSenderVerifier(&memorySenders{}, approvals, storage, "docs", notifier, nil, testLogger())

	approval, created, err := v.RequestApproval(context.Background(), luna, newEmail(), "m1@clinic.com|pet_1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "vet@clinic.com", approval.SenderEmail)
	assert.Equal(t, enum.ApprovalPending, approval.Status)
	assert.Equal(t, "user_1/pending/"+approval.ID+".json", approval.PayloadPath)

	raw, ok := storage.objects["docs/"+approval.PayloadPath]
	require.True(t, ok)
	var parked dto.ParsedEmail
	require.NoError(t, json.Unmarshal(raw, &parked))
	assert.Equal(t, "<m1@clinic.com>", parked.MessageID)
	assert.Equal(t, []byte("%PDF-1.4"), parked.Attachments[0].Content)

	again, created, err := v.RequestApproval(context.Background(), luna, newEmail(), "m1@clinic.com|pet_1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, approval.ID, again.ID)
	assert.Len(t, storage.objects, 1)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, enum.NotificationApprovalRequested, notifier.sent[0].Kind)
}

func TestRequestApproval_ConcurrentDeliveries(t *testing.T) {
	approvals := &memoryApprovals{byKey: map[string]*models.PendingApproval{}}
	storage := &memoryStorage{objects: map[string][]byte{}}
	notifier := &countingNotifier{}
	v := NewSenderVerifier(&memorySenders{}, approvals, storage, "docs", notifier, nil, testLogger())

	var wg sync.WaitGroup
	ids := make([]string, 2)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			approval, _, err := v.RequestApproval(context.Background(), luna, newEmail(), "m1@clinic.com|pet_1")
			assert.NoError(t, err)
			ids[i] = approval.ID
		}(i)
	}
	wg.Wait()

	assert.Equal(t, ids[0], ids[1])
	assert.Len(t, approvals.byKey, 1)
	assert.Len(t, notifier.sent, 1)
	assert.Len(t, storage.objects, 1)
}

func TestRequestApproval_StorageFailureStillRecords(t *testing.T) {
	approvals := &memoryApprovals{byKey: map[string]*models.PendingApproval{}}
	v := NewSenderVerifier(&memorySenders{}, approvals, &memoryStorage{objects: map[string][]byte{}, fail: true}, "docs", &countingNotifier{}, nil, testLogger())

	approval, created, err := v.RequestApproval(context.Background(), luna, newEmail(), "m1@clinic.com|pet_1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Empty(t, approval.PayloadPath)
}

type recordingReputation struct {
	mu      sync.Mutex
	domains []string
}

func (r *recordingReputation) Score(_ context.Context, domain string) *dto.SenderReputation {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domains = append(r.domains, domain)
	return &dto.SenderReputation{Domain: domain, DomainAgePenalty: 60, Score: 40}
}

func TestRequestApproval_AttachesSenderReputation(t *testing.T) {
	approvals := &memoryApprovals{byKey: map[string]*models.PendingApproval{}}
	notifier := &countingNotifier{}
	reputation := &recordingReputation{}
	v := NewSenderVerifier(&memorySenders{}, approvals, &memoryStorage{objects: map[string][]byte{}}, "docs", notifier, reputation, testLogger())

	_, created, err := v.RequestApproval(context.Background(), luna, newEmail(), "m1@clinic.com|pet_1")
	require.NoError(t, err)
	require.True(t, created)
	_, created, err = v.RequestApproval(context.Background(), luna, newEmail(), "m1@clinic.com|pet_1")
	require.NoError(t, err)
	require.False(t, created)

	assert.Equal(t, []string{"clinic.com"}, reputation.domains)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "clinic.com", notifier.sent[0].Data["senderDomain"])
	assert.Equal(t, "40", notifier.sent[0].Data["reputationScore"])
	assert.Equal(t, "60", notifier.sent[0].Data["domainAgePenalty"])
}
