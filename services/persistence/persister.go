package persistence

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/models"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/internal/utils"
)

const recordSource = "email"

var (
	ErrUnexpectedData = errors.New("extracted data does not match document type")
	ErrNoValidRecords = errors.New("no extracted entry had the required fields")

	nonNumeric = regexp.MustCompile(`[^0-9.\-]`)
)

type recordPersister struct {
	records interfaces.HealthRecordRepository
	log     logger.Logger
}

func NewRecordPersister(records interfaces.HealthRecordRepository, log logger.Logger) interfaces.RecordPersister {
	return &recordPersister{records: records, log: log}
}

// batch accumulates the outcome of inserting one document's entries.
type batch struct {
	ids     []string
	dropped int
	lastErr error
}

func (b *batch) add(id string, err error) {
	if err != nil {
		b.dropped++
		b.lastErr = err
		return
	}
	b.ids = append(b.ids, id)
}

func (b *batch) drop() {
	b.dropped++
}

func (b *batch) result() dto.SaveResult {
	res := dto.SaveResult{Success: len(b.ids) > 0, RecordIDs: b.ids, Dropped: b.dropped}
	if !res.Success {
		if b.lastErr != nil {
			res.Error = b.lastErr.Error()
		} else {
			res.Error = ErrNoValidRecords.Error()
		}
	}
	return res
}

// Save writes every usable entry of data into the table for documentType.
// Entries missing required fields are dropped one by one; the rest are kept.
func (p *recordPersister) Save(ctx context.Context, documentType enum.DocumentType, pet *models.Pet, storagePath string, data interface{}) dto.SaveResult {
	span, ctx := opentracing.StartSpanFromContext(ctx, "recordPersister.Save")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagPet(span, pet.ID)
	span.LogKV("documentType", documentType, "path", storagePath)

	base := func() models.RecordBase {
		return models.RecordBase{PetID: pet.ID, UserID: pet.UserID, DocumentPath: storagePath, Source: recordSource}
	}

	var b batch
	switch documentType {
	case enum.DocumentMedications:
		d, ok := data.(*dto.MedicationsData)
		if !ok {
			return p.unexpected(span, documentType, data)
		}
		p.saveMedications(ctx, &b, base, d)
	case enum.DocumentLabResults:
		d, ok := data.(*dto.LabResultsData)
		if !ok {
			return p.unexpected(span, documentType, data)
		}
		p.saveLabResult(ctx, &b, base, storagePath, d)
	case enum.DocumentClinicalExams:
		d, ok := data.(*dto.ClinicalExamsData)
		if !ok {
			return p.unexpected(span, documentType, data)
		}
		p.saveClinicalExams(ctx, &b, base, d)
	case enum.DocumentVaccinations:
		d, ok := data.(*dto.VaccinationsData)
		if !ok {
			return p.unexpected(span, documentType, data)
		}
		p.saveVaccinations(ctx, &b, base, d)
	case enum.DocumentBillingInvoice:
		d, ok := data.(*dto.BillingInvoiceData)
		if !ok {
			return p.unexpected(span, documentType, data)
		}
		p.saveBillingInvoice(ctx, &b, base, d)
	case enum.DocumentTravelCertificate:
		d, ok := data.(*dto.TravelCertificateData)
		if !ok {
			return p.unexpected(span, documentType, data)
		}
		p.saveTravelCertificate(ctx, &b, base, d)
	default:
		err := fmt.Errorf("no table for document type %q", documentType)
		tracing.TraceErr(span, err)
		return dto.SaveResult{Success: false, Error: err.Error()}
	}

	if b.lastErr != nil {
		tracing.TraceErr(span, b.lastErr)
		p.log.Warnf("some %s rows for pet %s failed to insert: %v", documentType, pet.ID, b.lastErr)
	}
	if b.dropped > 0 {
		p.log.Infof("dropped %d incomplete %s entries from %s", b.dropped, documentType, storagePath)
	}
	span.LogKV("inserted", len(b.ids), "dropped", b.dropped)
	return b.result()
}

func (p *recordPersister) unexpected(span opentracing.Span, documentType enum.DocumentType, data interface{}) dto.SaveResult {
	err := errors.Wrapf(ErrUnexpectedData, "%s got %T", documentType, data)
	tracing.TraceErr(span, err)
	return dto.SaveResult{Success: false, Error: err.Error()}
}

func (p *recordPersister) saveMedications(ctx context.Context, b *batch, base func() models.RecordBase, d *dto.MedicationsData) {
	for _, entry := range d.Medications {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			b.drop()
			continue
		}
		record := &models.Medication{
			RecordBase:   base(),
			Name:         name,
			Dosage:       strings.TrimSpace(entry.Dosage),
			Frequency:    strings.TrimSpace(entry.Frequency),
			Route:        strings.TrimSpace(entry.Route),
			StartDate:    utils.ParseDate(entry.StartDate),
			EndDate:      utils.ParseDate(entry.EndDate),
			PrescribedBy: strings.TrimSpace(entry.PrescribedBy),
			Instructions: strings.TrimSpace(entry.Instructions),
		}
		p.insert(b, func() (string, error) {
			err := p.records.CreateMedication(ctx, record)
			return record.ID, err
		})
	}
}

// saveLabResult stores the whole panel as one row. The document name stands
// in for a missing test name.
func (p *recordPersister) saveLabResult(ctx context.Context, b *batch, base func() models.RecordBase, storagePath string, d *dto.LabResultsData) {
	if len(d.Results) == 0 && strings.TrimSpace(d.TestName) == "" {
		b.drop()
		return
	}
	testName := strings.TrimSpace(d.TestName)
	if testName == "" {
		testName = documentName(storagePath)
	}

	results := make(models.JSONList, 0, len(d.Results))
	for _, value := range d.Results {
		if strings.TrimSpace(value.Name) == "" {
			continue
		}
		results = append(results, models.JSONMap{
			"name":           value.Name,
			"value":          value.Value,
			"unit":           value.Unit,
			"referenceRange": value.ReferenceRange,
			"flag":           value.Flag,
		})
	}

	record := &models.LabResult{
		RecordBase:   base(),
		TestName:     testName,
		TestDate:     utils.ParseDate(d.TestDate),
		LabName:      strings.TrimSpace(d.LabName),
		Veterinarian: strings.TrimSpace(d.Veterinarian),
		Results:      results,
		Notes:        strings.TrimSpace(d.Notes),
	}
	p.insert(b, func() (string, error) {
		err := p.records.CreateLabResult(ctx, record)
		return record.ID, err
	})
}

func (p *recordPersister) saveClinicalExams(ctx context.Context, b *batch, base func() models.RecordBase, d *dto.ClinicalExamsData) {
	for _, entry := range d.Exams {
		examDate := utils.ParseDate(entry.ExamDate)
		if examDate == nil {
			b.drop()
			continue
		}
		record := &models.ClinicalExam{
			RecordBase:   base(),
			ExamDate:     examDate,
			ExamType:     strings.TrimSpace(entry.ExamType),
			ClinicName:   strings.TrimSpace(entry.ClinicName),
			Veterinarian: strings.TrimSpace(entry.Veterinarian),
			Findings:     strings.TrimSpace(entry.Findings),
			Diagnosis:    strings.TrimSpace(entry.Diagnosis),
			Treatment:    strings.TrimSpace(entry.Treatment),
			Notes:        strings.TrimSpace(entry.Notes),
		}
		if entry.WeightKg > 0 {
			weight := decimal.NewFromFloat(entry.WeightKg).Round(2)
			record.WeightKg = &weight
		}
		p.insert(b, func() (string, error) {
			err := p.records.CreateClinicalExam(ctx, record)
			return record.ID, err
		})
	}
}

func (p *recordPersister) saveVaccinations(ctx context.Context, b *batch, base func() models.RecordBase, d *dto.VaccinationsData) {
	for _, entry := range d.Vaccinations {
		name := strings.TrimSpace(entry.VaccineName)
		administered := utils.ParseDate(entry.AdministeredDate)
		if name == "" || administered == nil {
			b.drop()
			continue
		}
		record := &models.Vaccination{
			RecordBase:       base(),
			VaccineName:      name,
			AdministeredDate: administered,
			NextDueDate:      utils.ParseDate(entry.NextDueDate),
			BatchNumber:      strings.TrimSpace(entry.BatchNumber),
			Manufacturer:     strings.TrimSpace(entry.Manufacturer),
			Veterinarian:     strings.TrimSpace(entry.Veterinarian),
			ClinicName:       strings.TrimSpace(entry.ClinicName),
		}
		p.insert(b, func() (string, error) {
			err := p.records.CreateVaccination(ctx, record)
			return record.ID, err
		})
	}
}

func (p *recordPersister) saveBillingInvoice(ctx context.Context, b *batch, base func() models.RecordBase, d *dto.BillingInvoiceData) {
	invoiceDate := utils.ParseDate(d.InvoiceDate)
	total, ok := ParseAmount(d.TotalAmount)
	if invoiceDate == nil || !ok {
		b.drop()
		return
	}

	lineItems := make(models.JSONList, 0, len(d.LineItems))
	for _, item := range d.LineItems {
		if strings.TrimSpace(item.Description) == "" {
			continue
		}
		line := models.JSONMap{"description": item.Description, "quantity": item.Quantity}
		if amount, ok := ParseAmount(item.Amount); ok {
			line["amount"] = amount.StringFixed(2)
		}
		lineItems = append(lineItems, line)
	}

	record := &models.BillingInvoice{
		RecordBase:    base(),
		InvoiceNumber: strings.TrimSpace(d.InvoiceNumber),
		InvoiceDate:   invoiceDate,
		ClinicName:    strings.TrimSpace(d.ClinicName),
		TotalAmount:   total,
		Currency:      strings.ToUpper(utils.Truncate(strings.TrimSpace(d.Currency), 3)),
		LineItems:     lineItems,
	}
	p.insert(b, func() (string, error) {
		err := p.records.CreateBillingInvoice(ctx, record)
		return record.ID, err
	})
}

func (p *recordPersister) saveTravelCertificate(ctx context.Context, b *batch, base func() models.RecordBase, d *dto.TravelCertificateData) {
	issued := utils.ParseDate(d.IssueDate)
	if issued == nil {
		b.drop()
		return
	}
	record := &models.TravelCertificate{
		RecordBase:         base(),
		CertificateNumber:  strings.TrimSpace(d.CertificateNumber),
		CertificateType:    strings.TrimSpace(d.CertificateType),
		IssueDate:          issued,
		ExpiryDate:         utils.ParseDate(d.ExpiryDate),
		DestinationCountry: strings.TrimSpace(d.DestinationCountry),
		IssuingVet:         strings.TrimSpace(d.IssuingVet),
	}
	p.insert(b, func() (string, error) {
		err := p.records.CreateTravelCertificate(ctx, record)
		return record.ID, err
	})
}

func (p *recordPersister) insert(b *batch, create func() (string, error)) {
	id, err := create()
	b.add(id, err)
}

// ParseAmount reads a money string such as "$1,234.50" or "EUR 80".
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	// "80,50" with no dot is a decimal comma
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") && len(s)-strings.Index(s, ",") == 3 {
		s = strings.Replace(s, ",", ".", 1)
	}
	s = nonNumeric.ReplaceAllString(s, "")
	if s == "" || s == "." || s == "-" {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return amount.Round(2), true
}

func documentName(storagePath string) string {
	name := path.Base(storagePath)
	if idx := strings.Index(name, "_"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	if strings.TrimSpace(name) == "" {
		return "Lab results"
	}
	return name
}
