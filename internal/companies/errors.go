package companies

import "errors"

var (
	// ErrNotFound indicates the company does not exist.
	ErrNotFound = errors.New("company not found")
	// ErrInvalidID indicates a non-positive company identifier.
	ErrInvalidID = errors.New("invalid company ID")
	// ErrCompanyInUse indicates other records still reference the company.
	ErrCompanyInUse = errors.New("company still referenced")
)

// APIError carries the problem details returned by a remote companies API.
type APIError struct {
	Status int
	Title  string
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return "companies api: " + e.Title + ": " + e.Detail
	}
	return "companies api: " + e.Title
}

// Is lets callers match remote failures against the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == 404
	case ErrCompanyInUse:
		return e.Status == 409
	case ErrInvalidID:
		return e.Status == 400
	}
	return false
}
