package weather

import (
	"errors"
	"fmt"
)

// Sentinel errors for the expected failure modes of the pipeline. Callers
// classify with errors.Is; programming errors are never modeled this way.
var (
	// ErrNetwork covers failed requests, non-2xx responses, and response
	// bodies that could not be decoded. All three are retried identically.
	ErrNetwork = errors.New("network error")

	// ErrParse covers structurally invalid provider documents.
	ErrParse = errors.New("parse error")

	// ErrNoData means no fetch succeeded and no cached entry exists.
	ErrNoData = errors.New("no weather data available")
)

// NetworkError wraps an underlying transport or decode failure.
func NetworkError(err error) error {
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// ParseError wraps a structural validation failure.
func ParseError(msg string) error {
	return fmt.Errorf("%w: %s", ErrParse, msg)
}

// NoDataError wraps the last fetch error when the cache is empty too.
func NoDataError(last error) error {
	if last == nil {
		return ErrNoData
	}
	return fmt.Errorf("%w: %v", ErrNoData, last)
}
