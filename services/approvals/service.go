package approvals

import (
	"context"
	"encoding/json"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/enum"
	petmailerrors "github.com/pawpal/petmail/internal/errors"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/tracing"
)

type approvalService struct {
	approvals interfaces.PendingApprovalRepository
	senders   interfaces.PetSenderRepository
	storage   interfaces.StorageService
	bucket    string
	processor interfaces.EmailProcessor
	log       logger.Logger
}

func NewApprovalService(
	approvals interfaces.PendingApprovalRepository,
	senders interfaces.PetSenderRepository,
	storage interfaces.StorageService,
	bucket string,
	processor interfaces.EmailProcessor,
	log logger.Logger,
) interfaces.ApprovalService {
	return &approvalService{
		approvals: approvals,
		senders:   senders,
		storage:   storage,
		bucket:    bucket,
		processor: processor,
		log:       log,
	}
}

func (s *approvalService) ListPending(ctx context.Context, petID string) ([]*models.PendingApproval, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "approvalService.ListPending")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagPet(span, petID)

	pending, err := s.approvals.ListPendingByPet(ctx, petID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return pending, nil
}

// Approve whitelists the sender and runs the parked email through the
// pipeline under its original message key.
func (s *approvalService) Approve(ctx context.Context, approvalID string) (*dto.ApprovalDecision, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "approvalService.Approve")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, approvalID)

	approval, err := s.resolve(ctx, approvalID, enum.SenderWhitelisted, enum.ApprovalApproved)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	decision := &dto.ApprovalDecision{
		ApprovalID:  approval.ID,
		Status:      enum.ApprovalApproved,
		SenderEmail: approval.SenderEmail,
	}

	email, err := s.loadParkedEmail(ctx, approval)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Warnf("approval %s: %v", approval.ID, err)
		return decision, nil
	}

	response, err := s.processor.Process(ctx, email)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("reprocessing approval %s failed: %v", approval.ID, err)
		decision.Reprocessed = &dto.PipelineResponse{
			Success:    false,
			Status:     enum.PipelineFailed,
			Message:    err.Error(),
			PetID:      approval.PetID,
			MessageKey: approval.MessageKey,
		}
		return decision, nil
	}
	decision.Reprocessed = response

	if response.Success {
		s.discardParkedEmail(ctx, approval)
	}
	return decision, nil
}

// Reject blocks the sender for the pet. The parked email is dropped.
func (s *approvalService) Reject(ctx context.Context, approvalID string) (*dto.ApprovalDecision, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "approvalService.Reject")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, approvalID)

	approval, err := s.resolve(ctx, approvalID, enum.SenderBlocked, enum.ApprovalRejected)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	s.discardParkedEmail(ctx, approval)

	return &dto.ApprovalDecision{
		ApprovalID:  approval.ID,
		Status:      enum.ApprovalRejected,
		SenderEmail: approval.SenderEmail,
	}, nil
}

func (s *approvalService) resolve(ctx context.Context, approvalID string, senderStatus enum.SenderStatus, approvalStatus enum.ApprovalStatus) (*models.PendingApproval, error) {
	approval, err := s.approvals.GetByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if approval == nil {
		return nil, petmailerrors.ErrApprovalNotFound
	}
	if approval.Status != enum.ApprovalPending {
		return nil, petmailerrors.ErrApprovalAlreadyResolved
	}

	if err := s.senders.Upsert(ctx, approval.PetID, approval.SenderEmail, senderStatus); err != nil {
		return nil, errors.Wrap(err, "failed to update sender status")
	}

	resolved, err := s.approvals.Resolve(ctx, approval.ID, approvalStatus)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve approval")
	}
	if !resolved {
		return nil, petmailerrors.ErrApprovalAlreadyResolved
	}

	s.log.Infof("sender %s %s for pet %s", approval.SenderEmail, senderStatus, approval.PetID)
	approval.Status = approvalStatus
	return approval, nil
}

func (s *approvalService) loadParkedEmail(ctx context.Context, approval *models.PendingApproval) (*dto.ParsedEmail, error) {
	if approval.PayloadPath == "" {
		return nil, petmailerrors.ErrApprovalPayloadMissing
	}
	raw, err := s.storage.Download(ctx, s.bucket, approval.PayloadPath)
	if err != nil {
		return nil, errors.Wrap(petmailerrors.ErrApprovalPayloadMissing, err.Error())
	}
	var email dto.ParsedEmail
	if err := json.Unmarshal(raw, &email); err != nil {
		return nil, errors.Wrap(err, "parked email is not valid json")
	}
	return &email, nil
}

func (s *approvalService) discardParkedEmail(ctx context.Context, approval *models.PendingApproval) {
	if approval.PayloadPath == "" {
		return
	}
	if err := s.storage.Delete(ctx, s.bucket, approval.PayloadPath); err != nil {
		s.log.Warnf("failed to delete parked email %s: %v", approval.PayloadPath, err)
	}
}
