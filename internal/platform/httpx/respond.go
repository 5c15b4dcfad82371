// Package httpx provides JSON and RFC7807 problem responses.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// ErrorStatus maps a sentinel error onto an HTTP status.
type ErrorStatus struct {
	Err    error
	Status int
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}

// RespondError writes the first matching mapping as a problem. Unmatched
// errors become a 500 without leaking the error text.
func RespondError(w http.ResponseWriter, r *http.Request, err error, mappings ...ErrorStatus) {
	for _, m := range mappings {
		if errors.Is(err, m.Err) {
			Problem(w, r, m.Status, err.Error())
			return
		}
	}
	Problem(w, r, http.StatusInternalServerError, "")
}
