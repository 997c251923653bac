package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(nil))
}

func TestProcessedEmailRepository_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProcessedEmailRepository(db)

	mock.ExpectExec(`INSERT INTO "processed_emails"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	record := &models.ProcessedEmail{MessageKey: "abc@mail|pet_1", PetID: "pet_1", AttachmentCount: 2}
	err := repo.Insert(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, enum.ProcessingInFlight, record.Status)
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.StartedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessedEmailRepository_InsertDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProcessedEmailRepository(db)

	mock.ExpectExec(`INSERT INTO "processed_emails"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Insert(context.Background(), &models.ProcessedEmail{MessageKey: "abc@mail|pet_1"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessedEmailRepository_InsertRequiresKey(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewProcessedEmailRepository(db)

	err := repo.Insert(context.Background(), &models.ProcessedEmail{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProcessedEmailRepository_Reclaim(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "stale lock is taken over", affected: 1, want: true},
		{name: "fresh or completed lock is left alone", affected: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewProcessedEmailRepository(db)

			mock.ExpectExec(`UPDATE "processed_emails" SET .* WHERE .*message_key = \$\d+ AND status = \$\d+ AND started_at < \$\d+`).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.Reclaim(context.Background(), "abc@mail|pet_1", time.Now().Add(-10*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestProcessedEmailRepository_MarkCompleted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProcessedEmailRepository(db)

	mock.ExpectExec(`UPDATE "processed_emails" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkCompleted(context.Background(), "abc@mail|pet_1", true, 3)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessedEmailRepository_GetByMessageKeyNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProcessedEmailRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "processed_emails" WHERE message_key = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "message_key", "status"}))

	record, err := repo.GetByMessageKey(context.Background(), "missing|pet_1")
	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcessedEmailRepository_GetByMessageKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProcessedEmailRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "processed_emails" WHERE message_key = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "message_key", "status", "pet_id"}).
			AddRow("pe_1", "abc@mail|pet_1", "completed", "pet_1"))

	record, err := repo.GetByMessageKey(context.Background(), "abc@mail|pet_1")
	require.NoError(t, err)
	assert.Equal(t, enum.ProcessingCompleted, record.Status)
	assert.Equal(t, "pet_1", record.PetID)
}

func TestProcessedEmailRepository_DeleteCompletedBefore(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProcessedEmailRepository(db)

	mock.ExpectExec(`DELETE FROM "processed_emails" WHERE .*status = \$1 AND completed_at < \$2`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := repo.DeleteCompletedBefore(context.Background(), time.Now().Add(-720*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}

func TestProcessedEmailRepository_CountStale(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProcessedEmailRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "processed_emails"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountStale(context.Background(), time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestPetRepository_GetByEmailID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPetRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "pets" WHERE email_id = \$1`).
		WithArgs("max.k7f2", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "email_id", "breed", "microchip_number"}).
			AddRow("pet_1", "user_1", "Max", "max.k7f2", "Labrador Retriever", "985112345678903"))

	pet, err := repo.GetByEmailID(context.Background(), " Max.K7F2 ")
	require.NoError(t, err)
	require.NotNil(t, pet)
	assert.Equal(t, "pet_1", pet.ID)
	assert.Equal(t, "985112345678903", pet.MicrochipNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPetRepository_GetByEmailIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPetRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "pets"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	pet, err := repo.GetByEmailID(context.Background(), "nobody")
	assert.NoError(t, err)
	assert.Nil(t, pet)
}

func TestPetSenderRepository_GetStatus(t *testing.T) {
	tests := []struct {
		name string
		rows *sqlmock.Rows
		want enum.SenderStatus
	}{
		{
			name: "whitelisted sender",
			rows: sqlmock.NewRows([]string{"id", "pet_id", "sender_email", "status"}).
				AddRow("sndr_1", "pet_1", "vet@clinic.com", "whitelisted"),
			want: enum.SenderWhitelisted,
		},
		{
			name: "blocked sender",
			rows: sqlmock.NewRows([]string{"id", "pet_id", "sender_email", "status"}).
				AddRow("sndr_1", "pet_1", "vet@clinic.com", "blocked"),
			want: enum.SenderBlocked,
		},
		{
			name: "no row means unknown",
			rows: sqlmock.NewRows([]string{"id"}),
			want: enum.SenderUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewPetSenderRepository(db)

			mock.ExpectQuery(`SELECT \* FROM "pet_senders" WHERE .*pet_id = \$1 AND sender_email = \$2`).
				WillReturnRows(tt.rows)

			status, err := repo.GetStatus(context.Background(), "pet_1", "Vet@Clinic.com")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestPetSenderRepository_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPetSenderRepository(db)

	mock.ExpectExec(`INSERT INTO "pet_senders" .* ON CONFLICT \("pet_id","sender_email"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), "pet_1", "vet@clinic.com", enum.SenderWhitelisted)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingApprovalRepository_CreateIfAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPendingApprovalRepository(db)

	mock.ExpectExec(`INSERT INTO "pending_sender_approvals"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	approval, created, err := repo.CreateIfAbsent(context.Background(), &models.PendingApproval{
		PetID:       "pet_1",
		UserID:      "user_1",
		SenderEmail: "new@clinic.com",
		MessageKey:  "abc@mail|pet_1",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, enum.ApprovalPending, approval.Status)
	assert.NotEmpty(t, approval.ID)
}

func TestPendingApprovalRepository_CreateIfAbsentDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPendingApprovalRepository(db)

	mock.ExpectExec(`INSERT INTO "pending_sender_approvals"`).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery(`SELECT \* FROM "pending_sender_approvals" WHERE message_key = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "pet_id", "message_key", "status"}).
			AddRow("appr_existing", "pet_1", "abc@mail|pet_1", "pending"))

	approval, created, err := repo.CreateIfAbsent(context.Background(), &models.PendingApproval{
		PetID:       "pet_1",
		SenderEmail: "new@clinic.com",
		MessageKey:  "abc@mail|pet_1",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "appr_existing", approval.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingApprovalRepository_Resolve(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPendingApprovalRepository(db)

	mock.ExpectExec(`UPDATE "pending_sender_approvals" SET .* WHERE .*id = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	resolved, err := repo.Resolve(context.Background(), "appr_1", enum.ApprovalApproved)
	require.NoError(t, err)
	assert.False(t, resolved)

	_, err = repo.Resolve(context.Background(), "appr_1", enum.ApprovalPending)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPetEmailRepository_CreateIgnoresReplay(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPetEmailRepository(db)

	mock.ExpectExec(`INSERT INTO "pet_emails" .* ON CONFLICT \("message_key"\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), &models.PetEmail{
		PetID:      "pet_1",
		UserID:     "user_1",
		MessageKey: "abc@mail|pet_1",
		Subject:    "Lab results",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthRecordRepository_CreateLabResult(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHealthRecordRepository(db)

	mock.ExpectExec(`INSERT INTO "lab_results"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	record := &models.LabResult{
		RecordBase: models.RecordBase{PetID: "pet_1", UserID: "user_1", DocumentPath: "user_1/pet_max_pet_1/lab_results/1_cbc.pdf"},
		TestName:   "CBC",
		Results:    models.JSONList{{"name": "WBC", "value": "7.2"}},
	}
	require.NoError(t, repo.CreateLabResult(context.Background(), record))
	assert.NotEmpty(t, record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthRecordRepository_RejectsMissingPath(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewHealthRecordRepository(db)

	err := repo.CreateVaccination(context.Background(), &models.Vaccination{
		RecordBase:  models.RecordBase{PetID: "pet_1"},
		VaccineName: "Rabies",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPushNotificationRepository_CreateAndMarkDelivered(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPushNotificationRepository(db)

	mock.ExpectExec(`INSERT INTO "push_notifications"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "push_notifications" SET .*"delivered"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	notification := &models.PushNotification{UserID: "user_1", Kind: enum.NotificationRecordsCreated, Title: "Luna"}
	require.NoError(t, repo.Create(context.Background(), notification))
	assert.NotEmpty(t, notification.ID)
	require.NoError(t, repo.MarkDelivered(context.Background(), notification.ID, nil))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.ErrorIs(t, repo.Create(context.Background(), &models.PushNotification{}), ErrInvalidInput)
}
