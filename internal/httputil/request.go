package httputil

import (
	"encoding/json"
	"io"
	"net/http"
)

const maxJSONBody = 1 << 20

// Validatable is implemented by request payloads
type Validatable interface {
	Validate() error
}

// DecodeJSON reads a JSON object from the request body into dst and validates
// it. An absent or empty object is rejected with "missing fields".
func DecodeJSON(r *http.Request, dst Validatable) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		return WrapError(http.StatusBadRequest, "invalid request body", err)
	}

	var fields map[string]json.RawMessage
	if len(body) == 0 || json.Unmarshal(body, &fields) != nil {
		if len(body) == 0 {
			return NewError(http.StatusBadRequest, "missing fields")
		}
		return NewError(http.StatusBadRequest, "invalid request body")
	}
	if len(fields) == 0 {
		return NewError(http.StatusBadRequest, "missing fields")
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return WrapError(http.StatusBadRequest, "invalid request body", err)
	}

	if err := dst.Validate(); err != nil {
		return WrapError(http.StatusBadRequest, err.Error(), err)
	}

	return nil
}
