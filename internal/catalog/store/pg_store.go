package store

import (
	"context"
	"errors"
	"fmt"

	catalogerrors "github.com/abgdnv/bookstore/internal/catalog/errors"
	"github.com/abgdnv/bookstore/internal/catalog/store/db"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	tableBooks  = "books"
	colBookType = "book_type"

	// uniqueViolation is the postgres SQLSTATE for unique_violation.
	uniqueViolation = "23505"
)

var bookColumns = []any{"id", "isbn", "title", "author", "stock", colBookType, "created_at", "updated_at"}

// PgStore implements BookStore using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
	q  *db.Queries
	qb goqu.DialectWrapper
}

// NewPgStore creates a new instance of BookStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{
		db: dbp,
		q:  db.New(dbp),
		qb: goqu.Dialect("postgres"),
	}
}

// Ping checks that the database is reachable.
func (p *PgStore) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// FindAll retrieves the books matching filter ordered by creation time.
func (p *PgStore) FindAll(ctx context.Context, filter Filter) ([]db.Book, error) {
	query, args, err := p.findAllQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to build find all query: %w", err)
	}
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find all books: %w", err)
	}
	defer rows.Close()

	books := make([]db.Book, 0)
	for rows.Next() {
		var b db.Book
		if err := rows.Scan(&b.ID, &b.Isbn, &b.Title, &b.Author, &b.Stock, &b.BookType, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate books: %w", err)
	}
	return books, nil
}

func (p *PgStore) findAllQuery(filter Filter) (string, []any, error) {
	ds := p.qb.From(tableBooks).
		Select(bookColumns...).
		Order(goqu.I("created_at").Asc(), goqu.I("id").Asc())
	if filter.Kind != "" {
		ds = ds.Where(goqu.Ex{colBookType: filter.Kind})
	}
	return ds.Prepared(true).ToSQL()
}

// FindByISBN retrieves a book by its ISBN.
// Returns ErrBookNotFound if no book exists with the given ISBN.
func (p *PgStore) FindByISBN(ctx context.Context, isbn string) (*db.Book, error) {
	book, err := p.q.FindByISBN(ctx, isbn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalogerrors.BookNotFound(isbn)
		}
		return nil, fmt.Errorf("failed to find book by ISBN: %w", err)
	}
	return &book, nil
}

// FindByAuthor retrieves the books of author.
func (p *PgStore) FindByAuthor(ctx context.Context, author string) ([]db.Book, error) {
	books, err := p.q.FindByAuthor(ctx, author)
	if err != nil {
		return nil, fmt.Errorf("failed to find books by author: %w", err)
	}
	if books == nil {
		books = make([]db.Book, 0)
	}
	return books, nil
}

// Save inserts or updates the book depending on whether it already has an ID.
func (p *PgStore) Save(ctx context.Context, book *db.Book) (*db.Book, error) {
	if book.ID == uuid.Nil {
		created, err := p.q.Create(ctx, db.CreateParams{
			Isbn:     book.Isbn,
			Title:    book.Title,
			Author:   book.Author,
			Stock:    book.Stock,
			BookType: book.BookType,
		})
		if err != nil {
			if isUniqueViolation(err) {
				return nil, catalogerrors.BookAlreadyExists(book.Isbn)
			}
			return nil, fmt.Errorf("failed to create book: %w", err)
		}
		return &created, nil
	}

	updated, err := p.q.Update(ctx, db.UpdateParams{
		ID:     book.ID,
		Title:  book.Title,
		Author: book.Author,
		Stock:  book.Stock,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalogerrors.BookNotFound(book.Isbn)
		}
		return nil, fmt.Errorf("failed to update book: %w", err)
	}
	return &updated, nil
}

// Delete removes the book by its ID.
// Returns ErrBookNotFound if nothing was deleted.
func (p *PgStore) Delete(ctx context.Context, book *db.Book) error {
	count, err := p.q.Delete(ctx, book.ID)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	if count == 0 {
		return catalogerrors.BookNotFound(book.Isbn)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
