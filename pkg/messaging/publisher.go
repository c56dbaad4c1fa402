// Package messaging defines the events the catalog emits and the publisher contract.
package messaging

import (
	"context"
)

const (
	// BooksSubjects matches every catalog book subject, used as the stream filter.
	BooksSubjects       = "catalog.books.>"
	BooksAddedSubject   = "catalog.books.added"
	BooksUpdatedSubject = "catalog.books.updated"
	BooksRemovedSubject = "catalog.books.removed"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
