package ocr

import (
	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/internal/enum"
)

const promptHeader = `Extract structured data from the attached veterinary document.
Copy values exactly as written. Dates must be formatted YYYY-MM-DD. Use an empty string for anything missing.
`

func str() map[string]any { return map[string]any{"type": "STRING"} }

func object(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "OBJECT", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func array(items map[string]any) map[string]any {
	return map[string]any{"type": "ARRAY", "items": items}
}

type extractor struct {
	prompt    string
	schema    map[string]any
	newTarget func() interface{}
}

// routes maps every extractable document type to its prompt and schema.
var routes = map[enum.DocumentType]extractor{
	enum.DocumentMedications: {
		prompt: promptHeader + `List every medication prescribed or dispensed.`,
		schema: object(map[string]any{
			"medications": array(object(map[string]any{
				"name": str(), "dosage": str(), "frequency": str(), "route": str(),
				"startDate": str(), "endDate": str(), "prescribedBy": str(), "instructions": str(),
			}, "name")),
		}, "medications"),
		newTarget: func() interface{} { return &dto.MedicationsData{} },
	},
	enum.DocumentLabResults: {
		prompt: promptHeader + `Report the test panel name, the date, the laboratory and every measured value with its unit, reference range and flag (H, L or empty).`,
		schema: object(map[string]any{
			"testName": str(), "testDate": str(), "labName": str(), "veterinarian": str(), "notes": str(),
			"results": array(object(map[string]any{
				"name": str(), "value": str(), "unit": str(), "referenceRange": str(), "flag": str(),
			}, "name", "value")),
		}, "testName", "results"),
		newTarget: func() interface{} { return &dto.LabResultsData{} },
	},
	enum.DocumentClinicalExams: {
		prompt: promptHeader + `List every consultation or examination in the document with its findings, diagnosis and treatment. weightKg is a number, 0 when missing.`,
		schema: object(map[string]any{
			"exams": array(object(map[string]any{
				"examDate": str(), "examType": str(), "clinicName": str(), "veterinarian": str(),
				"findings": str(), "diagnosis": str(), "treatment": str(), "notes": str(),
				"weightKg": map[string]any{"type": "NUMBER"},
			}, "examDate")),
		}, "exams"),
		newTarget: func() interface{} { return &dto.ClinicalExamsData{} },
	},
	enum.DocumentVaccinations: {
		prompt: promptHeader + `List every vaccine administered with the date given and the next due date.`,
		schema: object(map[string]any{
			"vaccinations": array(object(map[string]any{
				"vaccineName": str(), "administeredDate": str(), "nextDueDate": str(),
				"batchNumber": str(), "manufacturer": str(), "veterinarian": str(), "clinicName": str(),
			}, "vaccineName", "administeredDate")),
		}, "vaccinations"),
		newTarget: func() interface{} { return &dto.VaccinationsData{} },
	},
	enum.DocumentBillingInvoice: {
		prompt: promptHeader + `Report the invoice number, date, clinic, the grand total as a plain decimal number, the ISO 4217 currency code and each line item.`,
		schema: object(map[string]any{
			"invoiceNumber": str(), "invoiceDate": str(), "clinicName": str(), "totalAmount": str(), "currency": str(),
			"lineItems": array(object(map[string]any{
				"description": str(), "quantity": str(), "amount": str(),
			}, "description")),
		}, "invoiceDate", "totalAmount"),
		newTarget: func() interface{} { return &dto.BillingInvoiceData{} },
	},
	enum.DocumentTravelCertificate: {
		prompt: promptHeader + `Report the certificate number and type, issue and expiry dates, destination country and issuing veterinarian.`,
		schema: object(map[string]any{
			"certificateNumber": str(), "certificateType": str(), "issueDate": str(),
			"expiryDate": str(), "destinationCountry": str(), "issuingVet": str(),
		}, "issueDate"),
		newTarget: func() interface{} { return &dto.TravelCertificateData{} },
	},
}
