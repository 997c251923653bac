package errors

import "github.com/pkg/errors"

var (
	// request-aborting errors
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrUnparseablePayload = errors.New("unable to parse inbound email payload")
	ErrMissingRecipient   = errors.New("no recipient address")
	ErrMissingSender      = errors.New("no sender address")
	ErrMissingMessageID   = errors.New("no message identifier")
	ErrPetNotFound        = errors.New("pet not found for recipient")

	// approval errors
	ErrApprovalNotFound        = errors.New("pending approval not found")
	ErrApprovalAlreadyResolved = errors.New("pending approval already resolved")
	ErrApprovalPayloadMissing  = errors.New("pending approval has no stored email")

	// storage errors
	ErrObjectExists    = errors.New("object already exists")
	ErrForeignDocument = errors.New("document does not belong to user")
)
