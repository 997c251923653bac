package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/internal/utils"
)

type petSenderRepository struct {
	db *gorm.DB
}

func NewPetSenderRepository(db *gorm.DB) interfaces.PetSenderRepository {
	return &petSenderRepository{db: db}
}

// GetStatus returns SenderUnknown when the sender has no row for the pet.
func (r *petSenderRepository) GetStatus(ctx context.Context, petID, senderEmail string) (enum.SenderStatus, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "petSenderRepository.GetStatus")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagPet(span, petID)

	if petID == "" || senderEmail == "" {
		return enum.SenderUnknown, ErrInvalidInput
	}

	var sender models.PetSender
	err := r.db.WithContext(ctx).
		Where("pet_id = ? AND sender_email = ?", petID, utils.NormalizeEmailAddress(senderEmail)).
		First(&sender).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return enum.SenderUnknown, nil
		}
		tracing.TraceErr(span, err)
		return enum.SenderUnknown, err
	}

	switch sender.Status {
	case enum.SenderWhitelisted, enum.SenderBlocked:
		return sender.Status, nil
	default:
		return enum.SenderUnknown, nil
	}
}

func (r *petSenderRepository) Upsert(ctx context.Context, petID, senderEmail string, status enum.SenderStatus) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "petSenderRepository.Upsert")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagPet(span, petID)

	if petID == "" || senderEmail == "" {
		return ErrInvalidInput
	}

	now := utils.Now()
	sender := &models.PetSender{
		PetID:       petID,
		SenderEmail: utils.NormalizeEmailAddress(senderEmail),
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pet_id"}, {Name: "sender_email"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(sender).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
