package enum

type SenderStatus string

const (
	SenderUnknown     SenderStatus = "unknown"
	SenderWhitelisted SenderStatus = "whitelisted"
	SenderBlocked     SenderStatus = "blocked"
)

func (t SenderStatus) String() string {
	return string(t)
}

type ProcessingStatus string

const (
	ProcessingInFlight  ProcessingStatus = "processing"
	ProcessingCompleted ProcessingStatus = "completed"
)

func (t ProcessingStatus) String() string {
	return string(t)
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

func (t ApprovalStatus) String() string {
	return string(t)
}

// PipelineStatus is the outcome reported back to the mail provider.
type PipelineStatus string

const (
	PipelineCompleted        PipelineStatus = "completed"
	PipelinePartial          PipelineStatus = "partial"
	PipelineFailed           PipelineStatus = "failed"
	PipelineNoAttachments    PipelineStatus = "no_attachments"
	PipelineBlocked          PipelineStatus = "blocked"
	PipelinePendingApproval  PipelineStatus = "pending_approval"
	PipelineAlreadyProcessed PipelineStatus = "already_processed"
	PipelineInProgress       PipelineStatus = "processing"
	PipelineRejected         PipelineStatus = "rejected"
	PipelineIgnored          PipelineStatus = "ignored"
)

func (t PipelineStatus) String() string {
	return string(t)
}

type ValidationMethod string

const (
	ValidationMicrochip  ValidationMethod = "microchip"
	ValidationAttributes ValidationMethod = "attributes"
	ValidationNone       ValidationMethod = "none"
)

type SkipReason string

const (
	SkipIrrelevant         SkipReason = "irrelevant_document"
	SkipNoPetInfo          SkipReason = "no_pet_info"
	SkipMicrochipMismatch  SkipReason = "microchip_mismatch"
	SkipAttributesMismatch SkipReason = "attributes_mismatch"
	SkipValidationError    SkipReason = "validation_error"
	SkipUnsupportedType    SkipReason = "unsupported_file_type"
)

type NotificationKind string

const (
	NotificationRecordsCreated    NotificationKind = "records_created"
	NotificationDocumentsSkipped  NotificationKind = "documents_skipped"
	NotificationProcessingFailed  NotificationKind = "processing_failed"
	NotificationApprovalRequested NotificationKind = "sender_approval_requested"
)
