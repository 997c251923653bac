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

type healthRecordRepository struct {
	db *gorm.DB
}

func NewHealthRecordRepository(db *gorm.DB) interfaces.HealthRecordRepository {
	return &healthRecordRepository{db: db}
}

func (r *healthRecordRepository) create(ctx context.Context, operation string, base *models.RecordBase, record interface{}) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "healthRecordRepository."+operation)
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if base.PetID == "" || base.DocumentPath == "" {
		return ErrInvalidInput
	}
	tracing.TagPet(span, base.PetID)
	if base.CreatedAt.IsZero() {
		base.CreatedAt = utils.Now()
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEntity(span, base.ID)
	return nil
}

func (r *healthRecordRepository) CreateMedication(ctx context.Context, record *models.Medication) error {
	return r.create(ctx, "CreateMedication", &record.RecordBase, record)
}

func (r *healthRecordRepository) CreateLabResult(ctx context.Context, record *models.LabResult) error {
	return r.create(ctx, "CreateLabResult", &record.RecordBase, record)
}

func (r *healthRecordRepository) CreateClinicalExam(ctx context.Context, record *models.ClinicalExam) error {
	return r.create(ctx, "CreateClinicalExam", &record.RecordBase, record)
}

func (r *healthRecordRepository) CreateVaccination(ctx context.Context, record *models.Vaccination) error {
	return r.create(ctx, "CreateVaccination", &record.RecordBase, record)
}

func (r *healthRecordRepository) CreateBillingInvoice(ctx context.Context, record *models.BillingInvoice) error {
	return r.create(ctx, "CreateBillingInvoice", &record.RecordBase, record)
}

func (r *healthRecordRepository) CreateTravelCertificate(ctx context.Context, record *models.TravelCertificate) error {
	return r.create(ctx, "CreateTravelCertificate", &record.RecordBase, record)
}
