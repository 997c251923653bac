package notifications

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/models"
)

var recordLabels = map[enum.DocumentType]string{
	enum.DocumentMedications:       "medication",
	enum.DocumentLabResults:        "lab result",
	enum.DocumentClinicalExams:     "clinical exam",
	enum.DocumentVaccinations:      "vaccination",
	enum.DocumentBillingInvoice:    "invoice",
	enum.DocumentTravelCertificate: "travel certificate",
}

// CountLabel renders "1 new lab result" or "3 new vaccinations".
func CountLabel(documentType enum.DocumentType, count int) string {
	label, ok := recordLabels[documentType]
	if !ok {
		label = "record"
	}
	if count != 1 {
		label += "s"
	}
	return fmt.Sprintf("%d new %s", count, label)
}

// RecordsCreated summarizes the rows persisted from one email. Nil when
// nothing was persisted.
func RecordsCreated(pet *models.Pet, messageKey string, attachments []dto.ProcessedAttachment) *dto.Notification {
	counts := make(map[enum.DocumentType]int)
	total := 0
	for _, a := range attachments {
		if !a.DBInserted || a.Classification == nil {
			continue
		}
		counts[a.Classification.Type] += len(a.DBRecordIDs)
		total += len(a.DBRecordIDs)
	}
	if total == 0 {
		return nil
	}

	parts := make([]string, 0, len(counts))
	for _, documentType := range enum.AllDocumentTypes {
		if n := counts[documentType]; n > 0 {
			parts = append(parts, CountLabel(documentType, n))
		}
	}

	return &dto.Notification{
		UserID: pet.UserID,
		PetID:  pet.ID,
		Kind:   enum.NotificationRecordsCreated,
		Title:  fmt.Sprintf("%s's health records updated", pet.Name),
		Body:   fmt.Sprintf("Added %s from email.", strings.Join(parts, ", ")),
		Data: map[string]string{
			"messageKey": messageKey,
			"records":    strconv.Itoa(total),
		},
	}
}

// DocumentsSkipped lists attachments the owner may want to look at: those
// rejected by identity validation. Irrelevant documents are not reported.
func DocumentsSkipped(pet *models.Pet, messageKey string, attachments []dto.ProcessedAttachment) *dto.Notification {
	var lines []string
	for _, a := range attachments {
		if !a.Skipped || a.SkipReason == string(enum.SkipIrrelevant) || a.SkipReason == string(enum.SkipUnsupportedType) {
			continue
		}
		reason := a.SkipReason
		if a.Validation != nil && a.Validation.Message != "" {
			reason = a.Validation.Message
		}
		lines = append(lines, fmt.Sprintf("%s: %s", a.Filename, reason))
	}
	if len(lines) == 0 {
		return nil
	}

	noun := "document"
	if len(lines) != 1 {
		noun = "documents"
	}
	return &dto.Notification{
		UserID: pet.UserID,
		PetID:  pet.ID,
		Kind:   enum.NotificationDocumentsSkipped,
		Title:  fmt.Sprintf("%d %s not added to %s's records", len(lines), noun, pet.Name),
		Body:   strings.Join(lines, "\n"),
		Data: map[string]string{
			"messageKey": messageKey,
			"skipped":    strconv.Itoa(len(lines)),
		},
	}
}

func ProcessingFailed(pet *models.Pet, messageKey, subject string) *dto.Notification {
	body := "We could not read the documents in an email sent to " + pet.Name + "."
	if subject != "" {
		body = fmt.Sprintf("We could not read the documents in %q.", subject)
	}
	return &dto.Notification{
		UserID: pet.UserID,
		PetID:  pet.ID,
		Kind:   enum.NotificationProcessingFailed,
		Title:  fmt.Sprintf("Email for %s failed to process", pet.Name),
		Body:   body,
		Data:   map[string]string{"messageKey": messageKey},
	}
}

// ApprovalRequested asks the owner about a new sender. A reputation, when
// known, travels in the data so the app can flag risky domains.
func ApprovalRequested(pet *models.Pet, approval *models.PendingApproval, reputation *dto.SenderReputation) *dto.Notification {
	body := fmt.Sprintf("%s sent an email to %s. Approve the sender to import its documents.", approval.SenderEmail, pet.Name)
	if approval.Subject != "" {
		body = fmt.Sprintf("%s sent %q to %s. Approve the sender to import its documents.", approval.SenderEmail, approval.Subject, pet.Name)
	}
	data := map[string]string{
		"approvalId":  approval.ID,
		"senderEmail": approval.SenderEmail,
		"messageKey":  approval.MessageKey,
	}
	if reputation != nil {
		data["senderDomain"] = reputation.Domain
		data["reputationScore"] = strconv.Itoa(reputation.Score)
		data["domainAgePenalty"] = strconv.Itoa(reputation.DomainAgePenalty)
		data["blacklistPenaltyPct"] = strconv.Itoa(reputation.BlacklistPenaltyPct)
	}
	return &dto.Notification{
		UserID: pet.UserID,
		PetID:  pet.ID,
		Kind:   enum.NotificationApprovalRequested,
		Title:  "New sender for " + pet.Name,
		Body:   body,
		Data:   data,
	}
}
