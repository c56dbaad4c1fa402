// Package errors provides the error kinds returned by the catalog.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when caller input violates a precondition.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrBookNotFound is returned when a book expected to exist does not.
	ErrBookNotFound = errors.New("book not found")
	// ErrBookAlreadyExists is returned when a book with the same ISBN is already stored.
	ErrBookAlreadyExists = errors.New("book already exists")
	// ErrLookupFailed marks failures of the external metadata lookup. It never reaches API callers.
	ErrLookupFailed = errors.New("metadata lookup failed")
)

// InvalidArgument wraps ErrInvalidArgument with a message.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// BookNotFound wraps ErrBookNotFound naming the ISBN.
func BookNotFound(isbn string) error {
	return fmt.Errorf("%w: book with ISBN %s not found", ErrBookNotFound, isbn)
}

// BookAlreadyExists wraps ErrBookAlreadyExists naming the ISBN.
func BookAlreadyExists(isbn string) error {
	return fmt.Errorf("%w: a book with ISBN %s already exists", ErrBookAlreadyExists, isbn)
}
