/*
Package resp provides helpers for writing standardized HTTP JSON responses.

Every response carries a business code, a message, and an optional data
payload, so REST clients can branch on the code without inspecting HTTP
status alone.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
)

// JSONResponse is the envelope returned by every REST endpoint.
type JSONResponse struct {
	// Code is the business status code (0 for success, see the errs package
	// for the error code table).
	Code int `json:"code"`

	// Message is the client-facing status description or error message.
	Message string `json:"message"`

	// Data is the optional response payload.
	Data any `json:"data,omitempty"`
}

// RespondJSON sets the JSON content type and writes the payload with the
// given HTTP status.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(
			err,
			"Error encoding JSON response",
			"http_status", httpStatus,
		)

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	w.Write(response)
}

// RespondSuccess sends an HTTP 200 response wrapping data in the standard
// envelope.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	res := JSONResponse{
		Code:    0,
		Message: "success",
		Data:    data,
	}
	RespondJSON(w, r, http.StatusOK, res)
}

// RespondError sends the HTTP response for a CustomError, mapping its code
// and message into the standard envelope.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.New(errs.ErrUnknown)
	}

	res := JSONResponse{
		Code:    customErr.Code,
		Message: customErr.Message,
		Data:    nil,
	}
	RespondJSON(w, r, customErr.Status, res)
}
