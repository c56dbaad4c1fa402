package store

import (
	"context"
	"sync"
	"time"

	catalogerrors "github.com/abgdnv/bookstore/internal/catalog/errors"
	"github.com/abgdnv/bookstore/internal/catalog/store/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// InMemoryStore implements BookStore using an in-memory map keyed by ISBN.
// Books are returned in insertion order.
type InMemoryStore struct {
	mu    sync.RWMutex
	books map[string]db.Book
	order []string
	now   func() time.Time
}

// NewInMemoryStore creates a new, empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		books: make(map[string]db.Book),
		now:   time.Now,
	}
}

// Ping always succeeds.
func (s *InMemoryStore) Ping(context.Context) error {
	return nil
}

func (s *InMemoryStore) FindAll(_ context.Context, filter Filter) ([]db.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]db.Book, 0, len(s.order))
	for _, isbn := range s.order {
		b := s.books[isbn]
		if filter.Kind != "" && b.BookType != filter.Kind {
			continue
		}
		list = append(list, b)
	}
	return list, nil
}

func (s *InMemoryStore) FindByISBN(_ context.Context, isbn string) (*db.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[isbn]
	if !ok {
		return nil, catalogerrors.BookNotFound(isbn)
	}
	return &b, nil
}

func (s *InMemoryStore) FindByAuthor(_ context.Context, author string) ([]db.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]db.Book, 0)
	for _, isbn := range s.order {
		if b := s.books[isbn]; b.Author == author {
			list = append(list, b)
		}
	}
	return list, nil
}

// Save stores a copy of book. The ISBN uniqueness check and the write happen under one lock.
func (s *InMemoryStore) Save(_ context.Context, book *db.Book) (*db.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := pgtype.Timestamptz{Time: s.now().UTC(), Valid: true}
	stored := *book

	if stored.ID == uuid.Nil {
		if _, exists := s.books[stored.Isbn]; exists {
			return nil, catalogerrors.BookAlreadyExists(stored.Isbn)
		}
		stored.ID = uuid.New()
		stored.CreatedAt = ts
		stored.UpdatedAt = ts
		s.books[stored.Isbn] = stored
		s.order = append(s.order, stored.Isbn)
		return &stored, nil
	}

	existing, ok := s.findByIDLocked(stored.ID)
	if !ok {
		return nil, catalogerrors.BookNotFound(stored.Isbn)
	}
	// isbn and type are immutable once stored
	existing.Title = stored.Title
	existing.Author = stored.Author
	existing.Stock = stored.Stock
	existing.UpdatedAt = ts
	s.books[existing.Isbn] = existing
	return &existing, nil
}

func (s *InMemoryStore) Delete(_ context.Context, book *db.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.findByIDLocked(book.ID)
	if !ok {
		return catalogerrors.BookNotFound(book.Isbn)
	}
	delete(s.books, existing.Isbn)
	for i, isbn := range s.order {
		if isbn == existing.Isbn {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *InMemoryStore) findByIDLocked(id uuid.UUID) (db.Book, bool) {
	for _, b := range s.books {
		if b.ID == id {
			return b, true
		}
	}
	return db.Book{}, false
}
