package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/internal/utils"
)

type pendingApprovalRepository struct {
	db *gorm.DB
}

func NewPendingApprovalRepository(db *gorm.DB) interfaces.PendingApprovalRepository {
	return &pendingApprovalRepository{db: db}
}

func (r *pendingApprovalRepository) CreateIfAbsent(ctx context.Context, approval *models.PendingApproval) (*models.PendingApproval, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingApprovalRepository.CreateIfAbsent")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if approval == nil || approval.MessageKey == "" {
		return nil, false, ErrInvalidInput
	}
	if approval.Status == "" {
		approval.Status = enum.ApprovalPending
	}

	err := r.db.WithContext(ctx).Create(approval).Error
	if err == nil {
		tracing.TagEntity(span, approval.ID)
		return approval, true, nil
	}
	if !isUniqueViolation(err) {
		tracing.TraceErr(span, err)
		return nil, false, err
	}

	span.SetTag("duplicate", true)
	var existing models.PendingApproval
	if err := r.db.WithContext(ctx).Where("message_key = ?", approval.MessageKey).First(&existing).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, false, err
	}
	return &existing, false, nil
}

func (r *pendingApprovalRepository) GetByID(ctx context.Context, id string) (*models.PendingApproval, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingApprovalRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var approval models.PendingApproval
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&approval).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &approval, nil
}

func (r *pendingApprovalRepository) ListPendingByPet(ctx context.Context, petID string) ([]*models.PendingApproval, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingApprovalRepository.ListPendingByPet")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagPet(span, petID)

	var approvals []*models.PendingApproval
	err := r.db.WithContext(ctx).
		Where("pet_id = ? AND status = ?", petID, enum.ApprovalPending).
		Order("created_at DESC").
		Find(&approvals).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return approvals, nil
}

// Resolve moves a pending approval to its final status. It reports false when
// the approval was already resolved by someone else.
func (r *pendingApprovalRepository) Resolve(ctx context.Context, id string, status enum.ApprovalStatus) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "pendingApprovalRepository.Resolve")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	if status != enum.ApprovalApproved && status != enum.ApprovalRejected {
		return false, ErrInvalidInput
	}

	now := utils.Now()
	result := r.db.WithContext(ctx).
		Model(&models.PendingApproval{}).
		Where("id = ? AND status = ?", id, enum.ApprovalPending).
		Updates(map[string]interface{}{
			"status":      status,
			"resolved_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
