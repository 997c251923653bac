package models

import (
	"time"
)

// Pet is owned by the mobile app; this service only reads it.
type Pet struct {
	ID              string     `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID          string     `gorm:"column:user_id;type:varchar(255);index;not null" json:"userId"`
	Name            string     `gorm:"column:name;type:varchar(255);not null" json:"name"`
	EmailID         string     `gorm:"column:email_id;type:varchar(255);uniqueIndex;not null" json:"emailId"`
	AnimalType      string     `gorm:"column:animal_type;type:varchar(50)" json:"animalType"`
	Breed           string     `gorm:"column:breed;type:varchar(255)" json:"breed"`
	DateOfBirth     *time.Time `gorm:"column:date_of_birth;type:date" json:"dateOfBirth,omitempty"`
	Sex             string     `gorm:"column:sex;type:varchar(50)" json:"sex,omitempty"`
	MicrochipNumber string     `gorm:"column:microchip_number;type:varchar(64)" json:"microchipNumber,omitempty"`
	CreatedAt       time.Time  `gorm:"column:created_at;type:timestamp" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (Pet) TableName() string {
	return "pets"
}
