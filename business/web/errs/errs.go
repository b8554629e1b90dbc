// Package errs provides types and support related to web v1 functionality.
package errs

import (
	"errors"
	"net/http"

	"github.com/ardanlabs/tipjar/foundation/tipjar/form"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
)

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted is used to pass an error during the request through the
// application with web specific context.
type Trusted struct {
	Err    error
	Status int
	Fields map[string]string
}

// NewTrusted wraps a provided error with an HTTP status code. This
// function should be used when handlers encounter expected errors.
func NewTrusted(err error, status int) error {
	return &Trusted{Err: err, Status: status}
}

// Error implements the error interface. It uses the default message of the
// wrapped error. This is what will be shown in the services' logs.
func (re *Trusted) Error() string {
	return re.Err.Error()
}

// Unwrap returns the wrapped error.
func (re *Trusted) Unwrap() error {
	return re.Err
}

// IsTrusted checks if an error of type Trusted exists.
func IsTrusted(err error) bool {
	var re *Trusted
	return errors.As(err, &re)
}

// GetTrusted returns a copy of the Trusted pointer.
func GetTrusted(err error) *Trusted {
	var re *Trusted
	if !errors.As(err, &re) {
		return nil
	}
	return re
}

// FromTipJar maps the tip jar error taxonomy onto trusted web errors:
// validation errors are 400, ledger rejections are 502 and a missing ledger
// configuration is 503. Any other error is returned as is.
func FromTipJar(err error) error {
	if err == nil {
		return nil
	}

	var verr *form.ValidationError
	var serr *form.SubmissionError

	switch {
	case errors.Is(err, ledger.ErrNotConfigured):
		return NewTrusted(err, http.StatusServiceUnavailable)

	case errors.As(err, &verr):
		tr := Trusted{Err: verr, Status: http.StatusBadRequest}
		if len(verr.Fields) > 0 {
			tr.Fields = verr.Fields.Fields()
		}
		return &tr

	case errors.As(err, &serr):
		return NewTrusted(serr, http.StatusBadGateway)
	}

	return err
}
