package service

import (
	"github.com/abgdnv/bookstore/internal/catalog/store/db"
	"github.com/google/uuid"
)

const (
	KindEbook        = "ebook"
	KindPhysicalCopy = "physical-copy"
	// legacy kinds, accepted and stored as-is
	KindPaperback = "paperback"
	KindHardcover = "hardcover"
)

// IsValidKind reports whether kind is one of the known book kinds.
func IsValidKind(kind string) bool {
	switch kind {
	case KindEbook, KindPhysicalCopy, KindPaperback, KindHardcover:
		return true
	}
	return false
}

// BookDto represents the data transfer object for a book.
type BookDto struct {
	ID     uuid.UUID `json:"id"`
	ISBN   string    `json:"isbn"`
	Title  string    `json:"title"`
	Author string    `json:"author"`
	Stock  int32     `json:"stock"`
	Kind   string    `json:"kind"`
}

// BookCreateDto represents the data transfer object for adding a new book.
type BookCreateDto struct {
	ISBN   string `json:"isbn" validate:"required"`
	Title  string `json:"title" validate:"required"`
	Author string `json:"author" validate:"required"`
	Stock  int32  `json:"stock" validate:"min=0"`
	Kind   string `json:"kind" validate:"required,oneof=ebook physical-copy paperback hardcover"`
}

// BookPatchDto carries a partial update. Nil fields leave the stored value unchanged.
// ID, ISBN and Kind are identity fields: they may only be present when they match the stored book,
// and ID never may.
type BookPatchDto struct {
	ID     *uuid.UUID `json:"id,omitempty"`
	ISBN   *string    `json:"isbn,omitempty"`
	Title  *string    `json:"title,omitempty"`
	Author *string    `json:"author,omitempty"`
	Stock  *int32     `json:"stock,omitempty" validate:"omitempty,min=0"`
	Kind   *string    `json:"kind,omitempty"`
}

func toDto(book *db.Book) *BookDto {
	if book == nil {
		return nil
	}
	return &BookDto{
		ID:     book.ID,
		ISBN:   book.Isbn,
		Title:  book.Title,
		Author: book.Author,
		Stock:  book.Stock,
		Kind:   book.BookType,
	}
}

func toDtos(books []db.Book) []BookDto {
	dtos := make([]BookDto, len(books))
	for i := range books {
		dtos[i] = *toDto(&books[i])
	}
	return dtos
}
