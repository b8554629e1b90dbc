package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ardanlabs/tipjar/foundation/validate"
)

// maxBody caps the size of a decoded request document.
const maxBody = 64 << 10

// Decode reads the body of an HTTP request looking for a JSON document. The
// body is decoded into the provided value.
//
// If the provided value is a struct then it is checked for validation tags.
func Decode(w http.ResponseWriter, r *http.Request, val any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(val); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	if err := validate.Check(val); err != nil {
		return err
	}

	return nil
}

// Query returns the named query parameter from the request.
func Query(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}
