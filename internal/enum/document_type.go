package enum

type DocumentType string

const (
	DocumentMedications       DocumentType = "medications"
	DocumentLabResults        DocumentType = "lab_results"
	DocumentClinicalExams     DocumentType = "clinical_exams"
	DocumentVaccinations      DocumentType = "vaccinations"
	DocumentBillingInvoice    DocumentType = "billing_invoice"
	DocumentTravelCertificate DocumentType = "travel_certificate"
	DocumentIrrelevant        DocumentType = "irrelevant"
)

func (t DocumentType) String() string {
	return string(t)
}

// AllDocumentTypes lists every classification label the oracle may return.
var AllDocumentTypes = []DocumentType{
	DocumentMedications,
	DocumentLabResults,
	DocumentClinicalExams,
	DocumentVaccinations,
	DocumentBillingInvoice,
	DocumentTravelCertificate,
	DocumentIrrelevant,
}

func ParseDocumentType(s string) (DocumentType, bool) {
	for _, t := range AllDocumentTypes {
		if string(t) == s {
			return t, true
		}
	}
	return DocumentIrrelevant, false
}
