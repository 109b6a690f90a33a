package api

import (
	"github.com/danielgtaylor/huma/v2"
)

// APIError is the error body shape every failure response uses:
// {"error": "...", "details": "...", "userId": "..."}. The error string is
// always present and human-readable; details and userId appear only on
// profile-lookup failures. An empty-object error body is never valid.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Details string `json:"details,omitempty"`
	UserID  string `json:"userId,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) GetStatus() int {
	return e.Status
}

func init() {
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		if len(errs) > 0 && msg == "" {
			msg = errs[0].Error()
		}
		return &APIError{
			Status:  status,
			Message: msg,
		}
	}
}
