// Package service provides the catalog business logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	catalogerrors "github.com/abgdnv/bookstore/internal/catalog/errors"
	"github.com/abgdnv/bookstore/internal/catalog/lookup"
	"github.com/abgdnv/bookstore/internal/catalog/store"
	"github.com/abgdnv/bookstore/internal/catalog/store/db"
	"github.com/abgdnv/bookstore/pkg/messaging"
	"github.com/abgdnv/bookstore/pkg/messaging/events"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CatalogService defines the methods for managing the book catalog.
type CatalogService interface {
	// GetAll returns every book in store order.
	GetAll(ctx context.Context) ([]BookDto, error)

	// FindByKind returns the books of one kind.
	// Returns ErrInvalidArgument for an unknown kind.
	FindByKind(ctx context.Context, kind string) ([]BookDto, error)

	// FindByISBN looks the book up locally and, on a miss, in the external metadata lookup.
	// A book found externally is saved to the store before it is returned, so this
	// read may write. found is false when neither source knows the ISBN; lookup
	// failures are logged and reported as not found.
	FindByISBN(ctx context.Context, isbn string) (book *BookDto, found bool, err error)

	// AddNew stores a new book and returns it with its assigned ID.
	// Returns ErrBookAlreadyExists if the ISBN is taken.
	AddNew(ctx context.Context, book *BookCreateDto) (*BookDto, error)

	// FindByAuthor returns the books whose author matches exactly.
	FindByAuthor(ctx context.Context, author string) ([]BookDto, error)

	// Update merges the non-nil fields of patch into the stored book.
	// Returns ErrBookNotFound if no book has the ISBN.
	Update(ctx context.Context, isbn string, patch *BookPatchDto) (*BookDto, error)

	// Delete removes the book.
	// Returns ErrBookNotFound if no book has the ISBN.
	Delete(ctx context.Context, isbn string) error
}

// MetadataLookup fetches descriptive data for an ISBN. A nil result without error means unknown.
type MetadataLookup interface {
	Lookup(ctx context.Context, isbn string) (*lookup.Metadata, error)
}

// Service implements CatalogService.
type Service struct {
	store     store.BookStore
	lookup    MetadataLookup
	publisher messaging.Publisher
	logger    *slog.Logger
	now       func() time.Time

	booksAdded     metric.Int64Counter
	lookupFailures metric.Int64Counter
}

// Option configures optional collaborators of Service.
type Option func(*Service)

// WithLookup enables the external metadata fallback of FindByISBN.
func WithLookup(l MetadataLookup) Option {
	return func(s *Service) { s.lookup = l }
}

// WithPublisher publishes catalog change events.
func WithPublisher(p messaging.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService creates a new Service backed by bookStore.
func NewService(bookStore store.BookStore, logger *slog.Logger, opts ...Option) *Service {
	meter := otel.Meter("catalog-service")
	booksAdded, err := meter.Int64Counter("books_added", metric.WithDescription("Total number of books added to the catalog"))
	if err != nil {
		panic(fmt.Sprintf("failed to create books_added counter: %v", err))
	}
	lookupFailures, err := meter.Int64Counter("metadata_lookup_failures", metric.WithDescription("Total number of failed metadata lookups"))
	if err != nil {
		panic(fmt.Sprintf("failed to create metadata_lookup_failures counter: %v", err))
	}
	s := &Service{
		store:          bookStore,
		logger:         logger.With("component", "catalog_service"),
		now:            time.Now,
		booksAdded:     booksAdded,
		lookupFailures: lookupFailures,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) GetAll(ctx context.Context) ([]BookDto, error) {
	books, err := s.store.FindAll(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	return toDtos(books), nil
}

func (s *Service) FindByKind(ctx context.Context, kind string) ([]BookDto, error) {
	if !IsValidKind(kind) {
		return nil, catalogerrors.InvalidArgument("unknown book kind %q", kind)
	}
	books, err := s.store.FindAll(ctx, store.Filter{Kind: kind})
	if err != nil {
		return nil, err
	}
	return toDtos(books), nil
}

func (s *Service) FindByISBN(ctx context.Context, isbn string) (*BookDto, bool, error) {
	isbn, err := requireISBN(isbn)
	if err != nil {
		return nil, false, err
	}

	book, err := s.store.FindByISBN(ctx, isbn)
	if err == nil {
		return toDto(book), true, nil
	}
	if !errors.Is(err, catalogerrors.ErrBookNotFound) {
		return nil, false, err
	}
	if s.lookup == nil {
		return nil, false, nil
	}
	return s.findExternally(ctx, isbn)
}

// findExternally asks the metadata lookup for isbn and saves a usable answer.
func (s *Service) findExternally(ctx context.Context, isbn string) (*BookDto, bool, error) {
	md, err := s.lookup.Lookup(ctx, isbn)
	if err != nil {
		s.logger.WarnContext(ctx, "metadata lookup failed", slog.String("isbn", isbn), slog.Any("error", err))
		s.lookupFailures.Add(ctx, 1)
		return nil, false, nil
	}
	if md == nil || strings.TrimSpace(md.Title) == "" {
		s.logger.DebugContext(ctx, "no metadata found", slog.String("isbn", isbn))
		return nil, false, nil
	}
	kind, ok := inferKind(md)
	if !ok {
		s.logger.InfoContext(ctx, "metadata has no format information", slog.String("isbn", isbn))
		return nil, false, nil
	}

	saved, err := s.store.Save(ctx, &db.Book{
		Isbn:     isbn,
		Title:    strings.TrimSpace(md.Title),
		Author:   strings.Join(md.Authors, ", "),
		Stock:    0,
		BookType: kind,
	})
	if errors.Is(err, catalogerrors.ErrBookAlreadyExists) {
		// a concurrent request stored it first
		existing, findErr := s.store.FindByISBN(ctx, isbn)
		if findErr != nil {
			return nil, false, findErr
		}
		return toDto(existing), true, nil
	}
	if err != nil {
		return nil, false, err
	}

	s.logger.InfoContext(ctx, "book imported from metadata lookup", slog.String("isbn", isbn), slog.String("kind", kind))
	s.booksAdded.Add(ctx, 1, metric.WithAttributes(attribute.String("source", "lookup")))
	s.publish(ctx, events.BookAddedEvent{BookEvent: s.bookEvent(saved)})
	return toDto(saved), true, nil
}

// inferKind derives the kind from the shape of the metadata: digital formats
// mean ebook, a page count or physical format means physical copy.
func inferKind(md *lookup.Metadata) (string, bool) {
	switch {
	case len(md.EbookFormats) > 0:
		return KindEbook, true
	case md.NumberOfPages > 0 || strings.TrimSpace(md.PhysicalFormat) != "":
		return KindPhysicalCopy, true
	}
	return "", false
}

func (s *Service) AddNew(ctx context.Context, book *BookCreateDto) (*BookDto, error) {
	if book == nil {
		return nil, catalogerrors.InvalidArgument("book must not be nil")
	}
	isbn, err := requireISBN(book.ISBN)
	if err != nil {
		return nil, err
	}
	if err := validateCreate(book); err != nil {
		return nil, err
	}

	_, err = s.store.FindByISBN(ctx, isbn)
	if err == nil {
		return nil, catalogerrors.BookAlreadyExists(isbn)
	}
	if !errors.Is(err, catalogerrors.ErrBookNotFound) {
		return nil, err
	}

	saved, err := s.store.Save(ctx, &db.Book{
		ID:       uuid.Nil,
		Isbn:     isbn,
		Title:    book.Title,
		Author:   book.Author,
		Stock:    book.Stock,
		BookType: book.Kind,
	})
	if err != nil {
		return nil, err
	}

	s.booksAdded.Add(ctx, 1, metric.WithAttributes(attribute.String("source", "api")))
	s.publish(ctx, events.BookAddedEvent{BookEvent: s.bookEvent(saved)})
	return toDto(saved), nil
}

func validateCreate(book *BookCreateDto) error {
	switch {
	case strings.TrimSpace(book.Title) == "":
		return catalogerrors.InvalidArgument("title must not be blank")
	case strings.TrimSpace(book.Author) == "":
		return catalogerrors.InvalidArgument("author must not be blank")
	case book.Stock < 0:
		return catalogerrors.InvalidArgument("stock must not be negative")
	case !IsValidKind(book.Kind):
		return catalogerrors.InvalidArgument("unknown book kind %q", book.Kind)
	}
	return nil
}

func (s *Service) FindByAuthor(ctx context.Context, author string) ([]BookDto, error) {
	if strings.TrimSpace(author) == "" {
		return nil, catalogerrors.InvalidArgument("author must not be blank")
	}
	books, err := s.store.FindByAuthor(ctx, author)
	if err != nil {
		return nil, err
	}
	return toDtos(books), nil
}

func (s *Service) Update(ctx context.Context, isbn string, patch *BookPatchDto) (*BookDto, error) {
	isbn, err := requireISBN(isbn)
	if err != nil {
		return nil, err
	}
	if patch == nil {
		return nil, catalogerrors.InvalidArgument("patch must not be nil")
	}
	if patch.ID != nil {
		return nil, catalogerrors.InvalidArgument("id cannot be updated")
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	book, err := s.store.FindByISBN(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if patch.Kind != nil && *patch.Kind != book.BookType {
		return nil, catalogerrors.InvalidArgument("type cannot be updated")
	}
	if patch.ISBN != nil && strings.TrimSpace(*patch.ISBN) != book.Isbn {
		return nil, catalogerrors.InvalidArgument("isbn cannot be updated")
	}

	if patch.Title != nil {
		book.Title = *patch.Title
	}
	if patch.Author != nil {
		book.Author = *patch.Author
	}
	if patch.Stock != nil {
		book.Stock = *patch.Stock
	}

	updated, err := s.store.Save(ctx, book)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.BookUpdatedEvent{BookEvent: s.bookEvent(updated)})
	return toDto(updated), nil
}

func validatePatch(patch *BookPatchDto) error {
	switch {
	case patch.Title != nil && strings.TrimSpace(*patch.Title) == "":
		return catalogerrors.InvalidArgument("title must not be blank")
	case patch.Author != nil && strings.TrimSpace(*patch.Author) == "":
		return catalogerrors.InvalidArgument("author must not be blank")
	case patch.Stock != nil && *patch.Stock < 0:
		return catalogerrors.InvalidArgument("stock must not be negative")
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, isbn string) error {
	isbn, err := requireISBN(isbn)
	if err != nil {
		return err
	}

	book, err := s.store.FindByISBN(ctx, isbn)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, book); err != nil {
		return err
	}

	s.publish(ctx, events.BookRemovedEvent{BookEvent: s.bookEvent(book)})
	return nil
}

// requireISBN trims isbn and rejects a blank value.
func requireISBN(isbn string) (string, error) {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return "", catalogerrors.InvalidArgument("isbn must not be blank")
	}
	return isbn, nil
}

func (s *Service) bookEvent(book *db.Book) events.BookEvent {
	return events.BookEvent{
		ISBN:       book.Isbn,
		Kind:       book.BookType,
		Stock:      book.Stock,
		OccurredAt: s.now().UTC(),
	}
}

// publish sends event if a publisher is configured. Failures are only logged.
func (s *Service) publish(ctx context.Context, event messaging.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event", slog.String("subject", event.Subject()), slog.Any("error", err))
	}
}
