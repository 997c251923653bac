package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/internal/utils"
)

type petEmailRepository struct {
	db *gorm.DB
}

func NewPetEmailRepository(db *gorm.DB) interfaces.PetEmailRepository {
	return &petEmailRepository{db: db}
}

// Create stores the history entry once per message key; replays are ignored.
func (r *petEmailRepository) Create(ctx context.Context, email *models.PetEmail) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "petEmailRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if email == nil || email.PetID == "" || email.MessageKey == "" {
		return ErrInvalidInput
	}
	tracing.TagPet(span, email.PetID)

	if email.CreatedAt.IsZero() {
		email.CreatedAt = utils.Now()
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "message_key"}}, DoNothing: true}).
		Create(email).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *petEmailRepository) ListByPet(ctx context.Context, petID string, limit int) ([]*models.PetEmail, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "petEmailRepository.ListByPet")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagPet(span, petID)

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var emails []*models.PetEmail
	err := r.db.WithContext(ctx).
		Where("pet_id = ?", petID).
		Order("created_at DESC").
		Limit(limit).
		Find(&emails).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return emails, nil
}
