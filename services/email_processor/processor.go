package email_processor

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/lib/pq"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/enum"
	petmailerrors "github.com/pawpal/petmail/internal/errors"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/internal/utils"
	"github.com/pawpal/petmail/services/notifications"
)

type Dependencies struct {
	Pets       interfaces.PetLookup
	Filter     interfaces.AutomatedMailFilter
	Senders    interfaces.SenderVerifier
	Lock       interfaces.IdempotencyLock
	Classifier interfaces.DocumentClassifier
	Validator  interfaces.PetIdentityValidator
	Uploader   interfaces.DocumentUploader
	OCR        interfaces.OCRDispatcher
	Persister  interfaces.RecordPersister
	History    interfaces.PetEmailRepository
	Notifier   interfaces.NotificationSender
}

type emailProcessor struct {
	Dependencies
	log logger.Logger
}

func NewEmailProcessor(deps Dependencies, log logger.Logger) interfaces.EmailProcessor {
	return &emailProcessor{Dependencies: deps, log: log}
}

// Process runs one inbound email through sender verification, the
// idempotency lock and the attachment loop. Returned errors are request
// level; attachment problems are reported in the response.
func (p *emailProcessor) Process(ctx context.Context, email *dto.ParsedEmail) (*dto.PipelineResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailProcessor.Process")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if email == nil {
		return nil, petmailerrors.ErrUnparseablePayload
	}

	recipient := email.RecipientAddress()
	if recipient == "" {
		return nil, petmailerrors.ErrMissingRecipient
	}

	pet, err := p.Pets.FindPetByEmail(ctx, recipient)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if pet == nil {
		p.log.Infof("no pet for recipient %s", recipient)
		return nil, petmailerrors.ErrPetNotFound
	}
	tracing.TagPet(span, pet.ID)

	senderEmail := utils.NormalizeEmailAddress(email.SenderAddress())
	if senderEmail == "" {
		return nil, petmailerrors.ErrMissingSender
	}

	messageID := utils.NormalizeMessageID(email.MessageID)
	if messageID == "" {
		return nil, petmailerrors.ErrMissingMessageID
	}
	messageKey := utils.BuildMessageKey(messageID, pet.ID)
	span.SetTag(tracing.SpanTagMessageKey, messageKey)

	ctx = utils.WithPet(ctx, pet.ID, pet.UserID)
	ctx = utils.WithMessageKey(ctx, messageKey)
	log := p.log.With(zap.String("message_key", messageKey), zap.String("pet_id", pet.ID))

	response := &dto.PipelineResponse{PetID: pet.ID, MessageKey: messageKey}

	if p.Filter != nil {
		if automated, reason := p.Filter.IsAutomated(ctx, email); automated {
			log.Infof("ignoring automated email from %s: %s", senderEmail, reason)
			response.Success = true
			response.Status = enum.PipelineIgnored
			response.Message = reason
			return response, nil
		}
	}

	status, err := p.Senders.VerifySender(ctx, pet, senderEmail)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	switch status {
	case enum.SenderBlocked:
		log.Infof("dropping email from blocked sender %s", senderEmail)
		response.Success = true
		response.Status = enum.PipelineBlocked
		response.Message = "sender is blocked for this pet"
		return response, nil
	case enum.SenderUnknown:
		approval, created, err := p.Senders.RequestApproval(ctx, pet, email, messageKey)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		log.Infof("sender %s awaiting approval %s (new=%t)", senderEmail, approval.ID, created)
		response.Success = true
		response.Status = enum.PipelinePendingApproval
		response.ApprovalID = approval.ID
		response.Message = "sender approval requested from the owner"
		return response, nil
	}

	lock, err := p.Lock.Acquire(ctx, messageKey, pet.ID, len(email.Attachments))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if !lock.Acquired {
		response.Success = true
		if lock.Status == enum.ProcessingCompleted {
			response.Status = enum.PipelineAlreadyProcessed
			response.Message = "email already processed"
		} else {
			response.Status = enum.PipelineInProgress
			response.Message = "email is currently being processed"
		}
		log.Infof("skipping duplicate delivery: %s", response.Status)
		return response, nil
	}

	return p.processLocked(ctx, log, pet, email, response), nil
}

// processLocked owns the lock for messageKey and always releases it by
// marking the row completed, panics included.
func (p *emailProcessor) processLocked(ctx context.Context, log logger.Logger, pet *models.Pet, email *dto.ParsedEmail, response *dto.PipelineResponse) (result *dto.PipelineResponse) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailProcessor.processLocked")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	result = response
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("pipeline panic: %v", r)
			tracing.TraceErr(span, err)
			log.Errorf("%v\n%s", err, debug.Stack())
			result = &dto.PipelineResponse{
				Success:     false,
				Status:      enum.PipelineFailed,
				Message:     "unexpected error while processing email",
				PetID:       response.PetID,
				MessageKey:  response.MessageKey,
				Attachments: response.Attachments,
			}
			p.Notifier.Send(ctx, *notifications.ProcessingFailed(pet, response.MessageKey, email.Subject))
		}
		if err := p.Lock.MarkCompleted(ctx, result.MessageKey, result.Success, len(email.Attachments)); err != nil {
			tracing.TraceErr(span, err)
			log.Errorf("failed to mark %s completed: %v", result.MessageKey, err)
		}
	}()

	p.saveHistory(ctx, log, pet, email, response.MessageKey)

	if len(email.Attachments) == 0 {
		response.Success = true
		response.Status = enum.PipelineNoAttachments
		response.Message = "email has no attachments"
		return response
	}

	body := emailBody(email)
	processed := make([]dto.ProcessedAttachment, 0, len(email.Attachments))
	for i := range email.Attachments {
		processed = append(processed, p.processAttachmentSafely(ctx, log, pet, email.Subject, body, &email.Attachments[i]))
	}
	response.Attachments = processed

	inserted, skipped, failed := 0, 0, 0
	for _, a := range processed {
		switch {
		case a.DBInserted:
			inserted++
		case a.Skipped:
			skipped++
		default:
			failed++
		}
	}
	span.LogKV("inserted", inserted, "skipped", skipped, "failed", failed)

	switch {
	case failed == 0:
		response.Success = true
		response.Status = enum.PipelineCompleted
	case inserted > 0:
		response.Success = true
		response.Status = enum.PipelinePartial
	default:
		response.Success = false
		response.Status = enum.PipelineFailed
	}
	response.Message = fmt.Sprintf("%d saved, %d skipped, %d failed", inserted, skipped, failed)
	log.Infof("processed %d attachments: %s", len(processed), response.Message)

	if n := notifications.RecordsCreated(pet, response.MessageKey, processed); n != nil {
		p.Notifier.Send(ctx, *n)
	}
	if n := notifications.DocumentsSkipped(pet, response.MessageKey, processed); n != nil {
		p.Notifier.Send(ctx, *n)
	}
	if response.Status == enum.PipelineFailed {
		p.Notifier.Send(ctx, *notifications.ProcessingFailed(pet, response.MessageKey, email.Subject))
	}

	return response
}

// processAttachmentSafely keeps a panic in one attachment from touching its
// siblings.
func (p *emailProcessor) processAttachmentSafely(ctx context.Context, log logger.Logger, pet *models.Pet, subject, body string, attachment *dto.ParsedAttachment) (result dto.ProcessedAttachment) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("attachment %s panicked: %v\n%s", attachment.Filename, r, debug.Stack())
			result.DBInserted = false
			result.Skipped = false
			result.Error = fmt.Sprintf("unexpected error: %v", r)
		}
	}()
	return p.processAttachment(ctx, log, pet, subject, body, attachment)
}

func (p *emailProcessor) processAttachment(ctx context.Context, log logger.Logger, pet *models.Pet, subject, body string, attachment *dto.ParsedAttachment) dto.ProcessedAttachment {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailProcessor.processAttachment")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("filename", attachment.Filename, "mimeType", attachment.MimeType, "size", attachment.Size)

	log = log.With(zap.String("attachment", attachment.Filename))
	result := dto.ProcessedAttachment{
		Filename: attachment.Filename,
		MimeType: attachment.MimeType,
		Size:     attachment.Size,
	}

	if !utils.IsSupportedDocumentType(attachment.MimeType) {
		result.Skipped = true
		result.SkipReason = string(enum.SkipUnsupportedType)
		log.Infof("skipping unsupported type %s", attachment.MimeType)
		return result
	}

	classification := p.Classifier.Classify(ctx, attachment, subject, body)
	result.Classification = &classification
	if classification.Type == enum.DocumentIrrelevant {
		result.Skipped = true
		result.SkipReason = string(enum.SkipIrrelevant)
		log.Infof("not a health document (confidence %d)", classification.Confidence)
		return result
	}
	log = log.With(zap.String("document_type", string(classification.Type)))

	validation := p.Validator.Validate(ctx, pet, attachment, subject)
	result.Validation = validation
	if validation == nil || !validation.IsValid {
		result.Skipped = true
		result.SkipReason = string(enum.SkipValidationError)
		if validation != nil && validation.SkipReason != "" {
			result.SkipReason = string(validation.SkipReason)
		}
		log.Infof("identity check failed: %s", result.SkipReason)
		return result
	}

	storagePath, err := p.Uploader.UploadDocument(ctx, pet, classification.Type, attachment)
	if err != nil {
		tracing.TraceErr(span, err)
		result.Error = errors.Wrap(err, "upload failed").Error()
		log.Warnf("upload failed: %v", err)
		return result
	}
	result.StoragePath = storagePath

	ocr := p.OCR.TriggerOCR(ctx, classification.Type, p.Uploader.Bucket(), storagePath)
	result.OCR = &ocr
	if !ocr.Success {
		result.Error = "extraction failed: " + ocr.Error
		log.Warnf("extraction failed: %s", ocr.Error)
		return result
	}

	saved := p.Persister.Save(ctx, classification.Type, pet, storagePath, ocr.Data)
	result.DBInserted = saved.Success
	result.DBRecordIDs = saved.RecordIDs
	if !saved.Success {
		result.Error = "database insert failed: " + saved.Error
		log.Warnf("no rows saved: %s", saved.Error)
		return result
	}
	log.Infof("saved %d records (%d dropped)", len(saved.RecordIDs), saved.Dropped)
	return result
}

func (p *emailProcessor) saveHistory(ctx context.Context, log logger.Logger, pet *models.Pet, email *dto.ParsedEmail, messageKey string) {
	fromName := ""
	if email.From != nil {
		fromName = email.From.Name
	}
	entry := &models.PetEmail{
		PetID:           pet.ID,
		UserID:          pet.UserID,
		MessageKey:      messageKey,
		FromAddress:     utils.NormalizeEmailAddress(email.SenderAddress()),
		FromName:        fromName,
		ToAddresses:     pq.StringArray(dto.AddressList(email.To)),
		CcAddresses:     pq.StringArray(dto.AddressList(email.Cc)),
		Subject:         utils.Truncate(email.Subject, 1000),
		BodyText:        emailBody(email),
		SentAt:          email.Date,
		AttachmentCount: len(email.Attachments),
	}
	if err := p.History.Create(ctx, entry); err != nil {
		log.Warnf("failed to save email history: %v", err)
	}
}

// emailBody is the new content of the email without the quoted reply chain.
func emailBody(email *dto.ParsedEmail) string {
	if email.StrippedText != "" {
		return email.StrippedText
	}
	return utils.StripQuotedReply(email.TextBody)
}
