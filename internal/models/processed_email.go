package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/utils"
)

// ProcessedEmail is the idempotency record. The unique index on MessageKey is
// the only cross-invocation lock the pipeline relies on.
type ProcessedEmail struct {
	ID              string                `gorm:"column:id;type:varchar(50);primaryKey"`
	MessageKey      string                `gorm:"column:message_key;type:varchar(600);uniqueIndex;not null"`
	Status          enum.ProcessingStatus `gorm:"column:status;type:varchar(20);index;not null"`
	PetID           string                `gorm:"column:pet_id;type:varchar(50);index"`
	AttachmentCount int                   `gorm:"column:attachment_count"`
	Success         bool                  `gorm:"column:success"`
	StartedAt       time.Time             `gorm:"column:started_at;type:timestamp;not null"`
	CompletedAt     *time.Time            `gorm:"column:completed_at;type:timestamp;index"`
	CreatedAt       time.Time             `gorm:"column:created_at;type:timestamp"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;type:timestamp"`
}

func (ProcessedEmail) TableName() string {
	return "processed_emails"
}

func (e *ProcessedEmail) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("pe", 16)
	}
	return nil
}

// PetEmail is the conversation history entry for an accepted inbound email.
type PetEmail struct {
	ID              string         `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	PetID           string         `gorm:"column:pet_id;type:varchar(50);index;not null" json:"petId"`
	UserID          string         `gorm:"column:user_id;type:varchar(255);not null" json:"userId"`
	MessageKey      string         `gorm:"column:message_key;type:varchar(600);uniqueIndex;not null" json:"messageKey"`
	FromAddress     string         `gorm:"column:from_address;type:varchar(255);index" json:"fromAddress"`
	FromName        string         `gorm:"column:from_name;type:varchar(255)" json:"fromName"`
	ToAddresses     pq.StringArray `gorm:"column:to_addresses;type:text[]" json:"toAddresses"`
	CcAddresses     pq.StringArray `gorm:"column:cc_addresses;type:text[]" json:"ccAddresses"`
	Subject         string         `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	BodyText        string         `gorm:"column:body_text;type:text" json:"bodyText"`
	SentAt          string         `gorm:"column:sent_at;type:varchar(100)" json:"sentAt"`
	AttachmentCount int            `gorm:"column:attachment_count" json:"attachmentCount"`
	CreatedAt       time.Time      `gorm:"column:created_at;type:timestamp" json:"createdAt"`
}

func (PetEmail) TableName() string {
	return "pet_emails"
}

func (e *PetEmail) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("pmail", 16)
	}
	return nil
}
