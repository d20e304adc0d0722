// Package httpx provides the HTTP surface for the CourseLens API: JSON
// helpers, the per-browser-client registry, guard middleware, and handlers.
package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"

	apperrors "github.com/courselens/courselens-api/internal/errors"
)

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError to adhere to the ≤3 params guideline.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	body := map[string]string{"error": p.ErrCode, "message": p.Err.Error()}
	if field := apperrors.GetField(p.Err); field != "" {
		body["field"] = field
	}
	WriteJSON(w, p.Code, body)
}

// WriteAppError maps an application error to an HTTP status code and writes
// the JSON error response. Unknown errors are reported as 500 without leaking
// their message.
func WriteAppError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	status, known := statusForCode[code]
	if !known {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: string(apperrors.ErrCodeInternal),
			Err:     apperrors.Internal("internal server error"),
		})
		return
	}
	WriteError(w, ErrorParams{Code: status, ErrCode: string(code), Err: err})
}

//nolint:gochecknoglobals // read-only lookup table
var statusForCode = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeNotFound:        http.StatusNotFound,
	apperrors.ErrCodeConflict:        http.StatusConflict,
	apperrors.ErrCodeValidation:      http.StatusBadRequest,
	apperrors.ErrCodeUnauthenticated: http.StatusUnauthorized,
	apperrors.ErrCodeForbidden:       http.StatusForbidden,
	apperrors.ErrCodeForeignKey:      http.StatusConflict,
	apperrors.ErrCodeTimeout:         http.StatusGatewayTimeout,
	apperrors.ErrCodeCanceled:        http.StatusServiceUnavailable,
	apperrors.ErrCodeInconsistent:    http.StatusInternalServerError,
}
