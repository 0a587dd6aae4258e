/*
Package req provides helpers for HTTP request parsing and data binding.

It wraps JSON decoding with content type and body shape checks so handlers
receive either a populated struct or a ready-to-send CustomError.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"parley/internal/pkg/errs"
)

// MaxJSONBodySize caps the request body (1 MB) accepted by BindJSON,
// enforced via http.MaxBytesReader.
const MaxJSONBodySize int64 = 1 << 20

// BindJSON binds the JSON body of the request to the destination struct dst.
// Unknown fields and trailing content are rejected.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.New(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.New(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.New(errs.ErrExtraContentInBody)
	}

	return nil
}
