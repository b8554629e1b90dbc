package form

import (
	"errors"

	"github.com/ardanlabs/tipjar/foundation/validate"
)

// Set of user facing messages.
const (
	MsgInvalid       = "please connect, enter your name and a valid amount"
	MsgSelfTip       = "the beneficiary cannot tip themselves"
	MsgNoBeneficiary = "unable to confirm the beneficiary, try again"
	MsgFallback      = "transaction failed"
)

// ValidationError is returned when a submission is attempted while the form
// is not in a submittable state. No network call was made.
type ValidationError struct {
	Message string
	Fields  validate.FieldErrors
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	return ve.Message
}

// IsValidationError checks if an error of type ValidationError exists.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// =============================================================================

// SubmissionError is returned when the ledger collaborator rejected the
// submission. The form fields are left untouched.
type SubmissionError struct {
	Message string
	Err     error
}

// NewSubmissionError wraps the collaborator error, preferring its short
// message when it provides one.
func NewSubmissionError(err error) *SubmissionError {
	return &SubmissionError{
		Message: ShortMessage(err),
		Err:     err,
	}
}

// Error implements the error interface.
func (se *SubmissionError) Error() string {
	return se.Message
}

// Unwrap returns the collaborator error.
func (se *SubmissionError) Unwrap() error {
	return se.Err
}

// IsSubmissionError checks if an error of type SubmissionError exists.
func IsSubmissionError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}

// shortMessager is implemented by collaborator errors that carry a concise
// message meant for users.
type shortMessager interface {
	ShortMessage() string
}

// ShortMessage returns the message to show for a collaborator error: its
// short message if it has one, its full text otherwise, and a generic
// fallback when both are empty.
func ShortMessage(err error) string {
	if err == nil {
		return MsgFallback
	}

	var sm shortMessager
	if errors.As(err, &sm) {
		if msg := sm.ShortMessage(); msg != "" {
			return msg
		}
	}

	if msg := err.Error(); msg != "" {
		return msg
	}

	return MsgFallback
}
