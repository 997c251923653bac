package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pawpal/petmail/internal/utils"
)

// RecordBase carries the columns shared by every extracted health record.
type RecordBase struct {
	ID           string    `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	PetID        string    `gorm:"column:pet_id;type:varchar(50);index;not null" json:"petId"`
	UserID       string    `gorm:"column:user_id;type:varchar(255);not null" json:"userId"`
	DocumentPath string    `gorm:"column:document_path;type:varchar(1000);not null" json:"documentPath"`
	Source       string    `gorm:"column:source;type:varchar(50)" json:"source"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamp" json:"createdAt"`
}

func (b *RecordBase) ensureID(prefix string) {
	if b.ID == "" {
		b.ID = utils.GenerateNanoIDWithPrefix(prefix, 16)
	}
}

type Medication struct {
	RecordBase
	Name         string     `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Dosage       string     `gorm:"column:dosage;type:varchar(255)" json:"dosage,omitempty"`
	Frequency    string     `gorm:"column:frequency;type:varchar(255)" json:"frequency,omitempty"`
	Route        string     `gorm:"column:route;type:varchar(100)" json:"route,omitempty"`
	StartDate    *time.Time `gorm:"column:start_date;type:date" json:"startDate,omitempty"`
	EndDate      *time.Time `gorm:"column:end_date;type:date" json:"endDate,omitempty"`
	PrescribedBy string     `gorm:"column:prescribed_by;type:varchar(255)" json:"prescribedBy,omitempty"`
	Instructions string     `gorm:"column:instructions;type:text" json:"instructions,omitempty"`
}

func (Medication) TableName() string { return "medications" }

func (m *Medication) BeforeCreate(tx *gorm.DB) error {
	m.ensureID("med")
	return nil
}

type LabResult struct {
	RecordBase
	TestName     string     `gorm:"column:test_name;type:varchar(255);not null" json:"testName"`
	TestDate     *time.Time `gorm:"column:test_date;type:date" json:"testDate,omitempty"`
	LabName      string     `gorm:"column:lab_name;type:varchar(255)" json:"labName,omitempty"`
	Veterinarian string     `gorm:"column:veterinarian;type:varchar(255)" json:"veterinarian,omitempty"`
	Results      JSONList   `gorm:"column:results;type:jsonb" json:"results"`
	Notes        string     `gorm:"column:notes;type:text" json:"notes,omitempty"`
}

func (LabResult) TableName() string { return "lab_results" }

func (m *LabResult) BeforeCreate(tx *gorm.DB) error {
	m.ensureID("lab")
	return nil
}

type ClinicalExam struct {
	RecordBase
	ExamDate     *time.Time       `gorm:"column:exam_date;type:date;not null" json:"examDate"`
	ExamType     string           `gorm:"column:exam_type;type:varchar(255)" json:"examType,omitempty"`
	ClinicName   string           `gorm:"column:clinic_name;type:varchar(255)" json:"clinicName,omitempty"`
	Veterinarian string           `gorm:"column:veterinarian;type:varchar(255)" json:"veterinarian,omitempty"`
	Findings     string           `gorm:"column:findings;type:text" json:"findings,omitempty"`
	Diagnosis    string           `gorm:"column:diagnosis;type:text" json:"diagnosis,omitempty"`
	Treatment    string           `gorm:"column:treatment;type:text" json:"treatment,omitempty"`
	WeightKg     *decimal.Decimal `gorm:"column:weight_kg;type:numeric(8,2)" json:"weightKg,omitempty"`
	Notes        string           `gorm:"column:notes;type:text" json:"notes,omitempty"`
}

func (ClinicalExam) TableName() string { return "clinical_exams" }

func (m *ClinicalExam) BeforeCreate(tx *gorm.DB) error {
	m.ensureID("exam")
	return nil
}

type Vaccination struct {
	RecordBase
	VaccineName      string     `gorm:"column:vaccine_name;type:varchar(255);not null" json:"vaccineName"`
	AdministeredDate *time.Time `gorm:"column:administered_date;type:date;not null" json:"administeredDate"`
	NextDueDate      *time.Time `gorm:"column:next_due_date;type:date" json:"nextDueDate,omitempty"`
	BatchNumber      string     `gorm:"column:batch_number;type:varchar(100)" json:"batchNumber,omitempty"`
	Manufacturer     string     `gorm:"column:manufacturer;type:varchar(255)" json:"manufacturer,omitempty"`
	Veterinarian     string     `gorm:"column:veterinarian;type:varchar(255)" json:"veterinarian,omitempty"`
	ClinicName       string     `gorm:"column:clinic_name;type:varchar(255)" json:"clinicName,omitempty"`
}

func (Vaccination) TableName() string { return "vaccinations" }

func (m *Vaccination) BeforeCreate(tx *gorm.DB) error {
	m.ensureID("vax")
	return nil
}

type BillingInvoice struct {
	RecordBase
	InvoiceNumber string          `gorm:"column:invoice_number;type:varchar(100)" json:"invoiceNumber,omitempty"`
	InvoiceDate   *time.Time      `gorm:"column:invoice_date;type:date;not null" json:"invoiceDate"`
	ClinicName    string          `gorm:"column:clinic_name;type:varchar(255)" json:"clinicName,omitempty"`
	TotalAmount   decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null" json:"totalAmount"`
	Currency      string          `gorm:"column:currency;type:varchar(3)" json:"currency,omitempty"`
	LineItems     JSONList        `gorm:"column:line_items;type:jsonb" json:"lineItems"`
}

func (BillingInvoice) TableName() string { return "billing_invoices" }

func (m *BillingInvoice) BeforeCreate(tx *gorm.DB) error {
	m.ensureID("inv")
	return nil
}

type TravelCertificate struct {
	RecordBase
	CertificateNumber  string     `gorm:"column:certificate_number;type:varchar(100)" json:"certificateNumber,omitempty"`
	CertificateType    string     `gorm:"column:certificate_type;type:varchar(255)" json:"certificateType,omitempty"`
	IssueDate          *time.Time `gorm:"column:issue_date;type:date;not null" json:"issueDate"`
	ExpiryDate         *time.Time `gorm:"column:expiry_date;type:date" json:"expiryDate,omitempty"`
	DestinationCountry string     `gorm:"column:destination_country;type:varchar(100)" json:"destinationCountry,omitempty"`
	IssuingVet         string     `gorm:"column:issuing_vet;type:varchar(255)" json:"issuingVet,omitempty"`
}

func (TravelCertificate) TableName() string { return "travel_certificates" }

func (m *TravelCertificate) BeforeCreate(tx *gorm.DB) error {
	m.ensureID("trvl")
	return nil
}
