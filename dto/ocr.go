package dto

// OCRResult wraps the typed payload returned by one extraction oracle. Data
// holds one of the *Data types below.
type OCRResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type MedicationEntry struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Route        string `json:"route"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	PrescribedBy string `json:"prescribedBy"`
	Instructions string `json:"instructions"`
}

type MedicationsData struct {
	Medications []MedicationEntry `json:"medications"`
}

type LabValue struct {
	Name           string `json:"name"`
	Value          string `json:"value"`
	Unit           string `json:"unit"`
	ReferenceRange string `json:"referenceRange"`
	Flag           string `json:"flag"`
}

type LabResultsData struct {
	TestName     string     `json:"testName"`
	TestDate     string     `json:"testDate"`
	LabName      string     `json:"labName"`
	Veterinarian string     `json:"veterinarian"`
	Results      []LabValue `json:"results"`
	Notes        string     `json:"notes"`
}

type ClinicalExamEntry struct {
	ExamDate     string  `json:"examDate"`
	ExamType     string  `json:"examType"`
	ClinicName   string  `json:"clinicName"`
	Veterinarian string  `json:"veterinarian"`
	Findings     string  `json:"findings"`
	Diagnosis    string  `json:"diagnosis"`
	Treatment    string  `json:"treatment"`
	WeightKg     float64 `json:"weightKg"`
	Notes        string  `json:"notes"`
}

type ClinicalExamsData struct {
	Exams []ClinicalExamEntry `json:"exams"`
}

type VaccinationEntry struct {
	VaccineName      string `json:"vaccineName"`
	AdministeredDate string `json:"administeredDate"`
	NextDueDate      string `json:"nextDueDate"`
	BatchNumber      string `json:"batchNumber"`
	Manufacturer     string `json:"manufacturer"`
	Veterinarian     string `json:"veterinarian"`
	ClinicName       string `json:"clinicName"`
}

type VaccinationsData struct {
	Vaccinations []VaccinationEntry `json:"vaccinations"`
}

type InvoiceLineItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Amount      string `json:"amount"`
}

type BillingInvoiceData struct {
	InvoiceNumber string            `json:"invoiceNumber"`
	InvoiceDate   string            `json:"invoiceDate"`
	ClinicName    string            `json:"clinicName"`
	TotalAmount   string            `json:"totalAmount"`
	Currency      string            `json:"currency"`
	LineItems     []InvoiceLineItem `json:"lineItems"`
}

type TravelCertificateData struct {
	CertificateNumber  string `json:"certificateNumber"`
	CertificateType    string `json:"certificateType"`
	IssueDate          string `json:"issueDate"`
	ExpiryDate         string `json:"expiryDate"`
	DestinationCountry string `json:"destinationCountry"`
	IssuingVet         string `json:"issuingVet"`
}
