package sender

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/internal/utils"
	"github.com/pawpal/petmail/services/notifications"
)

type senderVerifier struct {
	senders    interfaces.PetSenderRepository
	approvals  interfaces.PendingApprovalRepository
	storage    interfaces.StorageService
	bucket     string
	notifier   interfaces.NotificationSender
	reputation interfaces.SenderReputation
	log        logger.Logger
}

func NewSenderVerifier(
	senders interfaces.PetSenderRepository,
	approvals interfaces.PendingApprovalRepository,
	storage interfaces.StorageService,
	bucket string,
	notifier interfaces.NotificationSender,
	reputation interfaces.SenderReputation,
	log logger.Logger,
) interfaces.SenderVerifier {
	return &senderVerifier{
		senders:    senders,
		approvals:  approvals,
		storage:    storage,
		bucket:     bucket,
		notifier:   notifier,
		reputation: reputation,
		log:        log,
	}
}

// PendingPayloadPath is where an email from an unknown sender is parked until
// the owner decides.
func PendingPayloadPath(userID, approvalID string) string {
	return fmt.Sprintf("%s/pending/%s.json", utils.SanitizePathSegment(userID), approvalID)
}

// VerifySender never promotes a sender; only the owner does.
func (s *senderVerifier) VerifySender(ctx context.Context, pet *models.Pet, senderEmail string) (enum.SenderStatus, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "senderVerifier.VerifySender")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagPet(span, pet.ID)

	status, err := s.senders.GetStatus(ctx, pet.ID, utils.NormalizeEmailAddress(senderEmail))
	if err != nil {
		tracing.TraceErr(span, err)
		return enum.SenderUnknown, errors.Wrap(err, "failed to read sender status")
	}
	span.LogKV("status", status)
	return status, nil
}

// RequestApproval parks the email and records a pending approval for its
// message key. Duplicate deliveries get the existing approval back and
// notify nobody.
func (s *senderVerifier) RequestApproval(ctx context.Context, pet *models.Pet, email *dto.ParsedEmail, messageKey string) (*models.PendingApproval, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "senderVerifier.RequestApproval")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagPet(span, pet.ID)

	approval := &models.PendingApproval{
		ID:          utils.GenerateNanoIDWithPrefix("appr", 16),
		PetID:       pet.ID,
		UserID:      pet.UserID,
		SenderEmail: utils.NormalizeEmailAddress(email.SenderAddress()),
		MessageKey:  messageKey,
		Recipient:   email.RecipientAddress(),
		Subject:     utils.Truncate(email.Subject, 1000),
		Status:      enum.ApprovalPending,
	}

	parked := s.park(ctx, approval, email)
	if parked {
		approval.PayloadPath = PendingPayloadPath(pet.UserID, approval.ID)
	}

	stored, created, err := s.approvals.CreateIfAbsent(ctx, approval)
	if err != nil {
		tracing.TraceErr(span, err)
		s.discard(ctx, approval, parked)
		return nil, false, errors.Wrap(err, "failed to record pending approval")
	}
	span.LogKV("approvalId", stored.ID, "created", created)

	if !created {
		s.discard(ctx, approval, parked)
		return stored, false, nil
	}

	s.log.Infof("sender %s awaiting approval for pet %s (approval %s)", stored.SenderEmail, pet.ID, stored.ID)
	s.notifier.Send(ctx, *notifications.ApprovalRequested(pet, stored, s.rate(ctx, stored.SenderEmail)))
	return stored, true, nil
}

// rate is only worth the lookups for the request that created the approval.
func (s *senderVerifier) rate(ctx context.Context, senderEmail string) *dto.SenderReputation {
	if s.reputation == nil {
		return nil
	}
	reputation := s.reputation.Score(ctx, utils.ExtractDomainFromEmail(senderEmail))
	if reputation != nil {
		s.log.Infof("sender domain %s reputation score %d", reputation.Domain, reputation.Score)
	}
	return reputation
}

func (s *senderVerifier) park(ctx context.Context, approval *models.PendingApproval, email *dto.ParsedEmail) bool {
	payload, err := json.Marshal(email)
	if err != nil {
		s.log.Errorf("failed to serialize email %s: %v", approval.MessageKey, err)
		return false
	}
	path := PendingPayloadPath(approval.UserID, approval.ID)
	if err := s.storage.Upload(ctx, s.bucket, path, payload, "application/json"); err != nil {
		s.log.Errorf("failed to park email %s at %s: %v", approval.MessageKey, path, err)
		return false
	}
	return true
}

// discard removes a payload parked by a request that lost the insert race.
func (s *senderVerifier) discard(ctx context.Context, approval *models.PendingApproval, parked bool) {
	if !parked {
		return
	}
	path := PendingPayloadPath(approval.UserID, approval.ID)
	if err := s.storage.Delete(ctx, s.bucket, path); err != nil {
		s.log.Warnf("failed to remove orphan payload %s: %v", path, err)
	}
}
