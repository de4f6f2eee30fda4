package vacancies

import "errors"

var (
	// ErrCatalogUnavailable is returned when the catalog source is missing or malformed.
	ErrCatalogUnavailable = errors.New("vacancy catalog unavailable")
	// ErrNotFound is returned when no vacancy carries the requested name.
	ErrNotFound = errors.New("vacancy not found")
)
