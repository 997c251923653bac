package dto

import "github.com/pawpal/petmail/internal/enum"

type DocumentClassification struct {
	Type       enum.DocumentType `json:"type"`
	Confidence int               `json:"confidence"`
	Reasoning  string            `json:"reasoning"`
}

// ExtractedPetInfo is what the identity oracle read off a document. Nil
// fields were not found.
type ExtractedPetInfo struct {
	Microchip  *string `json:"microchip,omitempty"`
	Name       *string `json:"name,omitempty"`
	Age        *string `json:"age,omitempty"`
	Breed      *string `json:"breed,omitempty"`
	Gender     *string `json:"gender,omitempty"`
	Confidence int     `json:"confidence"`
}

func (e *ExtractedPetInfo) HasAny() bool {
	if e == nil {
		return false
	}
	for _, v := range []*string{e.Microchip, e.Name, e.Age, e.Breed, e.Gender} {
		if v != nil && *v != "" {
			return true
		}
	}
	return false
}

type MatchDetail struct {
	Field     string  `json:"field"`
	Extracted string  `json:"extracted"`
	Expected  string  `json:"expected"`
	Matched   bool    `json:"matched"`
	Score     float64 `json:"score,omitempty"`
}

type PetValidationResult struct {
	IsValid       bool                  `json:"isValid"`
	Method        enum.ValidationMethod `json:"method"`
	ExtractedInfo *ExtractedPetInfo     `json:"extractedInfo,omitempty"`
	MatchDetails  []MatchDetail         `json:"matchDetails"`
	MatchCount    int                   `json:"matchCount"`
	SkipReason    enum.SkipReason       `json:"skipReason,omitempty"`
	Message       string                `json:"message,omitempty"`
}

type ProcessedAttachment struct {
	Filename       string                  `json:"filename"`
	MimeType       string                  `json:"mimeType"`
	Size           int64                   `json:"size"`
	Classification *DocumentClassification `json:"classification,omitempty"`
	Validation     *PetValidationResult    `json:"validation,omitempty"`
	StoragePath    string                  `json:"storagePath,omitempty"`
	OCR            *OCRResult              `json:"ocr,omitempty"`
	DBInserted     bool                    `json:"dbInserted"`
	DBRecordIDs    []string                `json:"dbRecordIds,omitempty"`
	Skipped        bool                    `json:"skipped"`
	SkipReason     string                  `json:"skipReason,omitempty"`
	Error          string                  `json:"error,omitempty"`
}

// Failed reports an attachment that was neither skipped nor persisted.
func (p *ProcessedAttachment) Failed() bool {
	return !p.Skipped && !p.DBInserted
}

type SaveResult struct {
	Success   bool     `json:"success"`
	RecordIDs []string `json:"recordIds"`
	Dropped   int      `json:"dropped"`
	Error     string   `json:"error,omitempty"`
}

type PipelineResponse struct {
	Success     bool                  `json:"success"`
	Status      enum.PipelineStatus   `json:"status"`
	Message     string                `json:"message,omitempty"`
	PetID       string                `json:"petId,omitempty"`
	MessageKey  string                `json:"messageKey,omitempty"`
	ApprovalID  string                `json:"approvalId,omitempty"`
	Attachments []ProcessedAttachment `json:"attachments,omitempty"`
}

type Notification struct {
	UserID string                `json:"userId"`
	PetID  string                `json:"petId"`
	Kind   enum.NotificationKind `json:"kind"`
	Title  string                `json:"title"`
	Body   string                `json:"body"`
	Data   map[string]string     `json:"data,omitempty"`
}
