package interfaces

import (
	"context"
	"time"

	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/models"
)

type PetRepository interface {
	GetByEmailID(ctx context.Context, emailID string) (*models.Pet, error)
	GetByID(ctx context.Context, id string) (*models.Pet, error)
}

type PetSenderRepository interface {
	GetStatus(ctx context.Context, petID, senderEmail string) (enum.SenderStatus, error)
	Upsert(ctx context.Context, petID, senderEmail string, status enum.SenderStatus) error
}

type PendingApprovalRepository interface {
	// CreateIfAbsent returns the stored approval for the message key and
	// whether this call created it.
	CreateIfAbsent(ctx context.Context, approval *models.PendingApproval) (*models.PendingApproval, bool, error)
	GetByID(ctx context.Context, id string) (*models.PendingApproval, error)
	ListPendingByPet(ctx context.Context, petID string) ([]*models.PendingApproval, error)
	Resolve(ctx context.Context, id string, status enum.ApprovalStatus) (bool, error)
}

type ProcessedEmailRepository interface {
	Insert(ctx context.Context, record *models.ProcessedEmail) error
	GetByMessageKey(ctx context.Context, messageKey string) (*models.ProcessedEmail, error)
	Reclaim(ctx context.Context, messageKey string, staleBefore time.Time) (bool, error)
	MarkCompleted(ctx context.Context, messageKey string, success bool, attachmentCount int) error
	DeleteCompletedBefore(ctx context.Context, before time.Time) (int64, error)
	CountStale(ctx context.Context, staleBefore time.Time) (int64, error)
}

type PetEmailRepository interface {
	Create(ctx context.Context, email *models.PetEmail) error
	ListByPet(ctx context.Context, petID string, limit int) ([]*models.PetEmail, error)
}

type HealthRecordRepository interface {
	CreateMedication(ctx context.Context, record *models.Medication) error
	CreateLabResult(ctx context.Context, record *models.LabResult) error
	CreateClinicalExam(ctx context.Context, record *models.ClinicalExam) error
	CreateVaccination(ctx context.Context, record *models.Vaccination) error
	CreateBillingInvoice(ctx context.Context, record *models.BillingInvoice) error
	CreateTravelCertificate(ctx context.Context, record *models.TravelCertificate) error
}

type PushNotificationRepository interface {
	Create(ctx context.Context, notification *models.PushNotification) error
	MarkDelivered(ctx context.Context, id string, deliveryErr error) error
}
