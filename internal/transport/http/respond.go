package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "certtrust/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies; every write endpoint carries small
// JSON documents, never file content.
const maxBodyBytes = 1 << 20

// errorEnvelope is the JSON error shape every endpoint returns. Details
// carries machine-readable context such as the indicator ids blocking a
// stage gate.
type errorEnvelope struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := err.Error()
	var de *dErrors.Error
	if errors.As(err, &de) {
		message = de.Message
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), errorEnvelope{
		Error:   string(code),
		Message: message,
		Details: dErrors.DetailsOf(err),
	})
}

// decodeJSON parses the request body into dst, writing a bad-request
// response on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed JSON body"))
		return false
	}
	return true
}
