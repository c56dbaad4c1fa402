// Package store provides the persistence contract of the catalog and its implementations.
package store

import (
	"context"

	"github.com/abgdnv/bookstore/internal/catalog/store/db"
)

// Filter narrows FindAll. Zero value matches every book.
type Filter struct {
	// Kind restricts the result to one book type.
	Kind string
}

// BookStore is an interface for book storage operations.
// Implementations must reject a second book with an ISBN that is already stored.
type BookStore interface {
	// FindAll returns the books matching filter.
	// Returns an empty slice if no books exist.
	FindAll(ctx context.Context, filter Filter) ([]db.Book, error)

	// FindByISBN retrieves a single book by its ISBN.
	// Returns ErrBookNotFound if no book exists with the given ISBN.
	FindByISBN(ctx context.Context, isbn string) (*db.Book, error)

	// FindByAuthor returns the books whose author equals author exactly.
	FindByAuthor(ctx context.Context, author string) ([]db.Book, error)

	// Save inserts the book when its ID is uuid.Nil and updates it otherwise.
	// The stored book, with its assigned ID, is returned.
	// Returns ErrBookAlreadyExists on a duplicate ISBN and ErrBookNotFound when updating a missing book.
	Save(ctx context.Context, book *db.Book) (*db.Book, error)

	// Delete removes the book.
	// Returns ErrBookNotFound if the book does not exist.
	Delete(ctx context.Context, book *db.Book) error
}
