package ingest

import (
	"errors"
	"fmt"
)

// ErrNoOrganization is returned when a provider instance cannot be
// mapped to any active integration. Multi-tenant ambiguity is a hard
// error here, never an implicit default organization.
var ErrNoOrganization = errors.New("no organization resolvable for provider instance")

// ParseError reports a structurally unrecognized or incomplete provider
// payload. The webhook call still succeeds; only business processing of
// the payload is skipped.
type ParseError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s payload: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s payload: %s", e.Provider, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError builds a ParseError for the given provider.
func NewParseError(provider, reason string, err error) *ParseError {
	return &ParseError{Provider: provider, Reason: reason, Err: err}
}

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
