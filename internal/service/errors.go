package service

import (
	"errors"
	"fmt"
)

var (
	ErrEntryNotFound   = errors.New("entry not found")
	ErrDuplicateSlug   = errors.New("Error: this title is already in use.")
	ErrMalformedSearch = errors.New("malformed search query")
)

// Field names reported by ValidationError.
const (
	FieldTitle   = "title"
	FieldContent = "content"
	FieldSlug    = "slug"
)

// ValidationError lists the entry fields that failed validation.
type ValidationError struct {
	Fields []string
	// ReservedSlug is set when the slug collides with a site page.
	ReservedSlug string
}

// Error returns the message shown to the author.
func (e *ValidationError) Error() string {
	if e.Has(FieldTitle) || e.Has(FieldContent) || len(e.Fields) == 0 {
		return "Title and Content are required."
	}
	if e.ReservedSlug != "" {
		return fmt.Sprintf("The slug %q is reserved. Choose a different title or slug.", e.ReservedSlug)
	}
	return "Title must contain at least one letter or number."
}

// Has reports whether field failed validation.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// IsValidationError unwraps err into a *ValidationError.
func IsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
