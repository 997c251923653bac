package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/utils"
)

// PetSender is one entry of a pet's sender allow/deny list. Senders with no
// row are unknown.
type PetSender struct {
	ID          string            `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	PetID       string            `gorm:"column:pet_id;type:varchar(50);not null;uniqueIndex:idx_pet_sender,priority:1" json:"petId"`
	SenderEmail string            `gorm:"column:sender_email;type:varchar(255);not null;uniqueIndex:idx_pet_sender,priority:2" json:"senderEmail"`
	Status      enum.SenderStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	CreatedAt   time.Time         `gorm:"column:created_at;type:timestamp" json:"createdAt"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (PetSender) TableName() string {
	return "pet_senders"
}

func (m *PetSender) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("sndr", 16)
	}
	return nil
}

// PendingApproval parks an email from an unknown sender until the owner
// approves or rejects the sender. One per message key.
type PendingApproval struct {
	ID          string              `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	PetID       string              `gorm:"column:pet_id;type:varchar(50);index;not null" json:"petId"`
	UserID      string              `gorm:"column:user_id;type:varchar(255);not null" json:"userId"`
	SenderEmail string              `gorm:"column:sender_email;type:varchar(255);not null" json:"senderEmail"`
	MessageKey  string              `gorm:"column:message_key;type:varchar(600);uniqueIndex;not null" json:"messageKey"`
	Recipient   string              `gorm:"column:recipient;type:varchar(255)" json:"recipient"`
	Subject     string              `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	PayloadPath string              `gorm:"column:payload_path;type:varchar(1000)" json:"payloadPath"`
	Status      enum.ApprovalStatus `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	ResolvedAt  *time.Time          `gorm:"column:resolved_at;type:timestamp" json:"resolvedAt,omitempty"`
	CreatedAt   time.Time           `gorm:"column:created_at;type:timestamp" json:"createdAt"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (PendingApproval) TableName() string {
	return "pending_sender_approvals"
}

func (m *PendingApproval) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("appr", 16)
	}
	return nil
}
