package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/utils"
)

// PushNotification is the outbox log of every notification handed to the sink.
type PushNotification struct {
	ID        string                `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID    string                `gorm:"column:user_id;type:varchar(255);index;not null" json:"userId"`
	PetID     string                `gorm:"column:pet_id;type:varchar(50);index" json:"petId"`
	Kind      enum.NotificationKind `gorm:"column:kind;type:varchar(50);not null" json:"kind"`
	Title     string                `gorm:"column:title;type:varchar(255)" json:"title"`
	Body      string                `gorm:"column:body;type:text" json:"body"`
	Data      JSONMap               `gorm:"column:data;type:jsonb" json:"data"`
	Delivered bool                  `gorm:"column:delivered" json:"delivered"`
	Error     string                `gorm:"column:error;type:text" json:"error,omitempty"`
	CreatedAt time.Time             `gorm:"column:created_at;type:timestamp" json:"createdAt"`
}

func (PushNotification) TableName() string {
	return "push_notifications"
}

func (n *PushNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = utils.GenerateNanoIDWithPrefix("ntf", 16)
	}
	return nil
}
