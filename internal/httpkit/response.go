// Package httpkit has the small JSON helpers shared by HTTP handlers.
package httpkit

import (
	"encoding/json"
	"net/http"

	"github.com/ivlev/daybyday/internal/pkg/errors"
)

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// DecodeJSON decodes the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.WrapWithCode(err, errors.CodeValidation, "http.decode", "request body is not valid JSON")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteErr(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	var env ErrorEnvelope
	env.Error.Code = code
	env.Error.Message = msg
	env.Error.Details = details
	WriteJSON(w, status, env)
}

// WriteError writes err as a coded envelope. Only the public message and
// the string-valued fields leave the process.
func WriteError(w http.ResponseWriter, err error) {
	var details map[string]any
	for k, v := range errors.GetFields(err) {
		if s, ok := v.(string); ok {
			if details == nil {
				details = make(map[string]any)
			}
			details[k] = s
		}
	}
	WriteErr(w, errors.GetHTTPStatus(err), string(errors.GetCode(err)), publicText(err), details)
}

func publicText(err error) string {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
