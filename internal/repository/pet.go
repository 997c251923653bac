package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/tracing"
)

type petRepository struct {
	db *gorm.DB
}

func NewPetRepository(db *gorm.DB) interfaces.PetRepository {
	return &petRepository{db: db}
}

// GetByEmailID returns nil, nil when no pet owns the alias.
func (r *petRepository) GetByEmailID(ctx context.Context, emailID string) (*models.Pet, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "petRepository.GetByEmailID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.LogKV("emailId", emailID)

	emailID = strings.ToLower(strings.TrimSpace(emailID))
	if emailID == "" {
		return nil, ErrInvalidInput
	}

	var pet models.Pet
	err := r.db.WithContext(ctx).
		Where("email_id = ?", emailID).
		First(&pet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &pet, nil
}

func (r *petRepository) GetByID(ctx context.Context, id string) (*models.Pet, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "petRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagPet(span, id)

	var pet models.Pet
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&pet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &pet, nil
}
