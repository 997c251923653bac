package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/pawpal/petmail/config"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/models"
)

type Repositories struct {
	PetRepository              interfaces.PetRepository
	PetSenderRepository        interfaces.PetSenderRepository
	PendingApprovalRepository  interfaces.PendingApprovalRepository
	ProcessedEmailRepository   interfaces.ProcessedEmailRepository
	PetEmailRepository         interfaces.PetEmailRepository
	HealthRecordRepository     interfaces.HealthRecordRepository
	PushNotificationRepository interfaces.PushNotificationRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		PetRepository:              NewPetRepository(db),
		PetSenderRepository:        NewPetSenderRepository(db),
		PendingApprovalRepository:  NewPendingApprovalRepository(db),
		ProcessedEmailRepository:   NewProcessedEmailRepository(db),
		PetEmailRepository:         NewPetEmailRepository(db),
		HealthRecordRepository:     NewHealthRecordRepository(db),
		PushNotificationRepository: NewPushNotificationRepository(db),
	}
}

func MigrateDB(dbConfig *config.DatabaseConfig, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	err = db.AutoMigrate(
		&models.Pet{},
		&models.PetSender{},
		&models.PendingApproval{},
		&models.ProcessedEmail{},
		&models.PetEmail{},
		&models.Medication{},
		&models.LabResult{},
		&models.ClinicalExam{},
		&models.Vaccination{},
		&models.BillingInvoice{},
		&models.TravelCertificate{},
		&models.PushNotification{},
	)

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return err
}
