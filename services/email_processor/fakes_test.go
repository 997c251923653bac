package email_processor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/repository"
	"github.com/pawpal/petmail/services/email_filter"
	"github.com/pawpal/petmail/services/idempotency"
	"github.com/pawpal/petmail/services/notifications"
	"github.com/pawpal/petmail/services/persistence"
	"github.com/pawpal/petmail/services/pets"
	"github.com/pawpal/petmail/services/sender"
	"github.com/pawpal/petmail/services/storage"
)

// store is an in-memory stand-in for every table the pipeline touches.
type store struct {
	mu            sync.Mutex
	pets          map[string]*models.Pet
	senders       map[string]enum.SenderStatus
	approvals     map[string]*models.PendingApproval
	processed     map[string]*models.ProcessedEmail
	history       map[string]*models.PetEmail
	labResults    []*models.LabResult
	vaccinations  []*models.Vaccination
	medications   []*models.Medication
	notifications []*models.PushNotification
	seq           int
}

func newStore() *store {
	return &store{
		pets:      map[string]*models.Pet{},
		senders:   map[string]enum.SenderStatus{},
		approvals: map[string]*models.PendingApproval{},
		processed: map[string]*models.ProcessedEmail{},
		history:   map[string]*models.PetEmail{},
	}
}

func (s *store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%d", prefix, s.seq)
}

func (s *store) domainRows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.labResults) + len(s.vaccinations) + len(s.medications)
}

type petRepo struct{ *store }

func (r petRepo) GetByEmailID(_ context.Context, emailID string) (*models.Pet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pet := range r.pets {
		if pet.EmailID == emailID {
			return pet, nil
		}
	}
	return nil, nil
}

func (r petRepo) GetByID(_ context.Context, id string) (*models.Pet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pets[id], nil
}

type senderRepo struct{ *store }

func (r senderRepo) GetStatus(_ context.Context, petID, email string) (enum.SenderStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if status, ok := r.senders[petID+"/"+email]; ok {
		return status, nil
	}
	return enum.SenderUnknown, nil
}

func (r senderRepo) Upsert(_ context.Context, petID, email string, status enum.SenderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[petID+"/"+email] = status
	return nil
}

type approvalRepo struct{ *store }

func (r approvalRepo) CreateIfAbsent(_ context.Context, a *models.PendingApproval) (*models.PendingApproval, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.approvals {
		if existing.MessageKey == a.MessageKey {
			return existing, false, nil
		}
	}
	r.approvals[a.ID] = a
	return a, true, nil
}

func (r approvalRepo) GetByID(_ context.Context, id string) (*models.PendingApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.approvals[id], nil
}

func (r approvalRepo) ListPendingByPet(_ context.Context, petID string) ([]*models.PendingApproval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PendingApproval
	for _, a := range r.approvals {
		if a.PetID == petID && a.Status == enum.ApprovalPending {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r approvalRepo) Resolve(_ context.Context, id string, status enum.ApprovalStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.approvals[id]
	if !ok || a.Status != enum.ApprovalPending {
		return false, nil
	}
	a.Status = status
	return true, nil
}

type processedRepo struct{ *store }

func (r processedRepo) Insert(_ context.Context, record *models.ProcessedEmail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.processed[record.MessageKey]; ok {
		return repository.ErrDuplicate
	}
	copied := *record
	copied.Status = enum.ProcessingInFlight
	r.processed[record.MessageKey] = &copied
	return nil
}

func (r processedRepo) GetByMessageKey(_ context.Context, key string) (*models.ProcessedEmail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.processed[key]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, nil
}

func (r processedRepo) Reclaim(context.Context, string, time.Time) (bool, error) {
	return false, nil
}

func (r processedRepo) MarkCompleted(_ context.Context, key string, success bool, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.processed[key]
	if !ok {
		return repository.ErrNotFound
	}
	row.Status = enum.ProcessingCompleted
	row.Success = success
	row.AttachmentCount = count
	return nil
}

func (r processedRepo) DeleteCompletedBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r processedRepo) CountStale(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type historyRepo struct{ *store }

func (r historyRepo) Create(_ context.Context, e *models.PetEmail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.history[e.MessageKey]; !ok {
		r.history[e.MessageKey] = e
	}
	return nil
}

func (r historyRepo) ListByPet(context.Context, string, int) ([]*models.PetEmail, error) {
	return nil, nil
}

type recordRepo struct{ *store }

func (r recordRepo) CreateMedication(_ context.Context, m *models.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = r.nextID("med")
	r.medications = append(r.medications, m)
	return nil
}

func (r recordRepo) CreateLabResult(_ context.Context, m *models.LabResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = r.nextID("lab")
	r.labResults = append(r.labResults, m)
	return nil
}

func (r recordRepo) CreateClinicalExam(context.Context, *models.ClinicalExam) error {
	return nil
}

func (r recordRepo) CreateVaccination(_ context.Context, m *models.Vaccination) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = r.nextID("vax")
	r.vaccinations = append(r.vaccinations, m)
	return nil
}

func (r recordRepo) CreateBillingInvoice(context.Context, *models.BillingInvoice) error {
	return nil
}

func (r recordRepo) CreateTravelCertificate(context.Context, *models.TravelCertificate) error {
	return nil
}

type outboxRepo struct{ *store }

func (r outboxRepo) Create(_ context.Context, n *models.PushNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = r.nextID("ntf")
	r.notifications = append(r.notifications, n)
	return nil
}

func (r outboxRepo) MarkDelivered(context.Context, string, error) error {
	return nil
}

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryObjects) Upload(_ context.Context, bucket, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = data
	return nil
}

func (m *memoryObjects) Download(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("no object %s", key)
	}
	return data, nil
}

func (m *memoryObjects) Exists(_ context.Context, bucket, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[bucket+"/"+key]
	return ok, nil
}

func (m *memoryObjects) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+"/"+key)
	return nil
}

func (m *memoryObjects) SignedURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://storage.test/" + bucket + "/" + key, nil
}

// filenameClassifier reads the document type from the file name, e.g.
// "lab_results-cbc.pdf".
type filenameClassifier struct{}

func (filenameClassifier) Classify(_ context.Context, a *dto.ParsedAttachment, _, _ string) dto.DocumentClassification {
	for _, t := range enum.AllDocumentTypes {
		if strings.HasPrefix(a.Filename, string(t)) {
			return dto.DocumentClassification{Type: t, Confidence: 90}
		}
	}
	return dto.DocumentClassification{Type: enum.DocumentIrrelevant}
}

// markerValidator rejects files whose name contains "other-pet".
type markerValidator struct{}

func (markerValidator) Validate(_ context.Context, _ *models.Pet, a *dto.ParsedAttachment, _ string) *dto.PetValidationResult {
	if strings.Contains(a.Filename, "other-pet") {
		return &dto.PetValidationResult{IsValid: false, Method: enum.ValidationMicrochip, SkipReason: enum.SkipMicrochipMismatch, Message: "microchip does not match"}
	}
	return &dto.PetValidationResult{IsValid: true, Method: enum.ValidationMicrochip, MatchCount: 1}
}

// scriptedOCR returns canned data per document type and panics or fails on
// request.
type scriptedOCR struct {
	mu      sync.Mutex
	calls   int
	panicOn string
	failOn  string
}

func (o *scriptedOCR) TriggerOCR(_ context.Context, documentType enum.DocumentType, _, path string) dto.OCRResult {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()
	if o.panicOn != "" && strings.Contains(path, o.panicOn) {
		panic("extractor crashed")
	}
	if o.failOn != "" && strings.Contains(path, o.failOn) {
		return dto.OCRResult{Success: false, Error: "oracle timeout"}
	}
	switch documentType {
	case enum.DocumentLabResults:
		return dto.OCRResult{Success: true, Data: &dto.LabResultsData{TestName: "CBC", TestDate: "2024-05-30", Results: []dto.LabValue{{Name: "WBC", Value: "7.2"}}}}
	case enum.DocumentVaccinations:
		return dto.OCRResult{Success: true, Data: &dto.VaccinationsData{Vaccinations: []dto.VaccinationEntry{{VaccineName: "Rabies", AdministeredDate: "2024-03-01"}}}}
	case enum.DocumentMedications:
		return dto.OCRResult{Success: true, Data: &dto.MedicationsData{Medications: []dto.MedicationEntry{{Name: "Meloxicam"}}}}
	}
	return dto.OCRResult{Success: false, Error: "unmapped"}
}

type sinkRecorder struct {
	mu   sync.Mutex
	sent []dto.Notification
}

func (s *sinkRecorder) Deliver(_ context.Context, n dto.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *sinkRecorder) Close() error { return nil }

func (s *sinkRecorder) kinds() []enum.NotificationKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]enum.NotificationKind, 0, len(s.sent))
	for _, n := range s.sent {
		out = append(out, n.Kind)
	}
	return out
}

type harness struct {
	store     *store
	objects   *memoryObjects
	ocr       *scriptedOCR
	sink      *sinkRecorder
	processor interfaces.EmailProcessor
}

const testBucket = "pet-documents"

func testLogger() logger.Logger {
	l := logger.NewAppLogger(&logger.Config{DevMode: true})
	l.InitLogger()
	return l
}

func newHarness() *harness {
	s := newStore()
	s.pets["pet_1"] = &models.Pet{ID: "pet_1", UserID: "user_1", Name: "Luna", EmailID: "luna-x7k2", MicrochipNumber: "985112003456789"}
	s.senders["pet_1/vet@clinic.com"] = enum.SenderWhitelisted
	s.senders["pet_1/spam@junk.com"] = enum.SenderBlocked

	log := testLogger()
	objects := &memoryObjects{objects: map[string][]byte{}}
	ocr := &scriptedOCR{}
	sink := &sinkRecorder{}
	notifier := notifications.NewNotificationSender(outboxRepo{s}, sink, log)

	processor := NewEmailProcessor(Dependencies{
		Pets:       pets.NewPetLookup(petRepo{s}),
		Filter:     email_filter.NewAutomatedMailFilter(),
		Senders:    sender.NewSenderVerifier(senderRepo{s}, approvalRepo{s}, objects, testBucket, notifier, nil, log),
		Lock:       idempotency.NewIdempotencyLock(processedRepo{s}, time.Minute, log),
		Classifier: filenameClassifier{},
		Validator:  markerValidator{},
		Uploader:   storage.NewDocumentUploader(objects, testBucket),
		OCR:        ocr,
		Persister:  persistence.NewRecordPersister(recordRepo{s}, log),
		History:    historyRepo{s},
		Notifier:   notifier,
	}, log)

	return &harness{store: s, objects: objects, ocr: ocr, sink: sink, processor: processor}
}

func pdf(name string) dto.ParsedAttachment {
	content := []byte("%PDF-1.4 " + name)
	return dto.ParsedAttachment{Filename: name, MimeType: "application/pdf", Size: int64(len(content)), Content: content}
}

func inbound(from string, attachments ...dto.ParsedAttachment) *dto.ParsedEmail {
	return &dto.ParsedEmail{
		From:        &dto.Address{Name: "Clinic", Email: from},
		To:          []dto.Address{{Email: "luna-x7k2@pets.example.com"}},
		Recipient:   "luna-x7k2@pets.example.com",
		Subject:     "Luna's results",
		MessageID:   "<abc123@clinic.com>",
		TextBody:    "Please find attached.\n\nOn Mon, Jun 3, 2024 Owner wrote:\n> thanks",
		Attachments: attachments,
	}
}
