package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/opentracing/opentracing-go"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/internal/utils"
)

const classifyPrompt = `You are sorting documents a veterinary clinic emailed to a pet owner.
Classify the attached document into exactly one category:
- medications: prescriptions, medication schedules, dosage instructions
- lab_results: blood work, urinalysis, pathology, any laboratory report
- clinical_exams: consultation notes, physical exam findings, discharge summaries, imaging reports
- vaccinations: vaccination records or certificates
- billing_invoice: invoices, receipts, estimates
- travel_certificate: pet passports, health certificates for travel
- irrelevant: anything else, including marketing, newsletters, logos and signatures

Email subject: %s
Email body (may be truncated):
%s

Answer with the category, a confidence from 0 to 100 and a one sentence reasoning.`

var classificationSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"type": map[string]any{
			"type": "STRING",
			"enum": documentTypeNames(),
		},
		"confidence": map[string]any{"type": "INTEGER"},
		"reasoning":  map[string]any{"type": "STRING"},
	},
	"required": []string{"type", "confidence", "reasoning"},
}

type classificationAnswer struct {
	Type       string `json:"type"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

type documentClassifier struct {
	oracle interfaces.Oracle
	log    logger.Logger
}

func NewDocumentClassifier(oracle interfaces.Oracle, log logger.Logger) interfaces.DocumentClassifier {
	return &documentClassifier{oracle: oracle, log: log}
}

// Classify never fails: oracle problems degrade to irrelevant with zero
// confidence so the attachment is skipped instead of aborting the email.
func (c *documentClassifier) Classify(ctx context.Context, attachment *dto.ParsedAttachment, subject, body string) dto.DocumentClassification {
	span, ctx := opentracing.StartSpanFromContext(ctx, "documentClassifier.Classify")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("filename", attachment.Filename, "mimeType", attachment.MimeType)

	if !utils.IsSupportedDocumentType(attachment.MimeType) {
		return dto.DocumentClassification{
			Type:       enum.DocumentIrrelevant,
			Confidence: 0,
			Reasoning:  fmt.Sprintf("unsupported file type %s", attachment.MimeType),
		}
	}

	prompt := fmt.Sprintf(classifyPrompt, subject, utils.Truncate(body, 2000))
	var answer classificationAnswer
	err := c.oracle.GenerateJSON(ctx, prompt, &interfaces.InlineDocument{MimeType: attachment.MimeType, Data: attachment.Content}, classificationSchema, &answer)
	if err != nil {
		tracing.TraceErr(span, err)
		c.log.Warnf("classification failed for %s: %v", attachment.Filename, err)
		return dto.DocumentClassification{
			Type:       enum.DocumentIrrelevant,
			Confidence: 0,
			Reasoning:  "classification failed: " + err.Error(),
		}
	}

	docType, ok := enum.ParseDocumentType(strings.ToLower(strings.TrimSpace(answer.Type)))
	if !ok {
		c.log.Warnf("classifier returned unknown type %q for %s", answer.Type, attachment.Filename)
		return dto.DocumentClassification{
			Type:       enum.DocumentIrrelevant,
			Confidence: 0,
			Reasoning:  fmt.Sprintf("unknown document type %q", answer.Type),
		}
	}

	result := dto.DocumentClassification{
		Type:       docType,
		Confidence: clampConfidence(answer.Confidence),
		Reasoning:  answer.Reasoning,
	}
	span.LogKV("type", result.Type, "confidence", result.Confidence)
	return result
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

func documentTypeNames() []string {
	names := make([]string, 0, len(enum.AllDocumentTypes))
	for _, t := range enum.AllDocumentTypes {
		names = append(names, t.String())
	}
	return names
}
