// Package rest provides HTTP handlers for the book catalog.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	catalogerrors "github.com/abgdnv/bookstore/internal/catalog/errors"
	"github.com/abgdnv/bookstore/internal/catalog/service"
	"github.com/abgdnv/bookstore/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	service  service.CatalogService
	validate *validator.Validate
	logger   *slog.Logger
	// guard protects the mutating routes; nil leaves them open.
	guard func(http.Handler) http.Handler
}

// NewHandler creates a new Handler. guard, when not nil, wraps POST, PATCH, PUT and DELETE.
func NewHandler(service service.CatalogService, guard func(http.Handler) http.Handler, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
		guard:    guard,
	}
}

// RegisterRoutes registers the HTTP routes for the catalog service.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/books", func(r chi.Router) {
		r.Get("/", h.GetAll)
		r.Get("/author/{author}", h.FindByAuthor)
		r.Get("/{isbn}", h.FindByISBN)

		r.Group(func(r chi.Router) {
			if h.guard != nil {
				r.Use(h.guard)
			}
			r.Post("/", h.AddNew)
			r.Patch("/{isbn}", h.Update)
			r.Put("/{isbn}", h.Update)
			r.Delete("/{isbn}", h.Delete)
		})
	})
	r.Get("/healthz", h.HealthCheck)
}

// GetAll lists every book, or the books of one kind when the kind query parameter is set.
func (h *Handler) GetAll(w http.ResponseWriter, r *http.Request) {
	var (
		list []service.BookDto
		err  error
	)
	if kind := r.URL.Query().Get("kind"); kind != "" {
		h.logger.DebugContext(r.Context(), "Received request to find books by kind", "kind", kind)
		list, err = h.service.FindByKind(r.Context(), kind)
	} else {
		h.logger.DebugContext(r.Context(), "Received request to find all books")
		list, err = h.service.GetAll(r.Context())
	}
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to fetch books")
		return
	}
	h.logger.DebugContext(r.Context(), "Successfully retrieved book list", "count", len(list))
	web.RespondJSON(w, h.logger, http.StatusOK, list)
}

// FindByISBN retrieves a book by its ISBN, consulting the external metadata lookup on a local miss.
func (h *Handler) FindByISBN(w http.ResponseWriter, r *http.Request) {
	isbn := chi.URLParam(r, "isbn")
	h.logger.DebugContext(r.Context(), "Received request to find book by ISBN", "isbn", isbn)

	found, ok, err := h.service.FindByISBN(r.Context(), isbn)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to retrieve book with ISBN %s", isbn))
		return
	}
	if !ok {
		h.logger.InfoContext(r.Context(), "Book not found", "isbn", isbn)
		web.RespondError(w, h.logger, http.StatusNotFound, fmt.Sprintf("Book with ISBN %s not found", isbn))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, found)
}

// FindByAuthor lists the books of an author. The match is exact and case-sensitive.
func (h *Handler) FindByAuthor(w http.ResponseWriter, r *http.Request) {
	author := chi.URLParam(r, "author")
	h.logger.DebugContext(r.Context(), "Received request to find books by author", "author", author)

	list, err := h.service.FindByAuthor(r.Context(), author)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to fetch books")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, list)
}

// AddNew handles the creation of a new book.
func (h *Handler) AddNew(w http.ResponseWriter, r *http.Request) {
	var createDto service.BookCreateDto
	if !h.decode(w, r, &createDto) {
		return
	}
	h.logger.DebugContext(r.Context(), "Received request to add book", "isbn", createDto.ISBN)

	created, err := h.service.AddNew(r.Context(), &createDto)
	if err != nil {
		h.respondServiceError(w, r, err, "Failed to add book")
		return
	}
	h.logger.InfoContext(r.Context(), "Book added successfully", slog.String("isbn", created.ISBN), slog.String("ID", created.ID.String()))
	web.RespondJSON(w, h.logger, http.StatusCreated, created)
}

// Update applies a partial update to the book with the ISBN from the path.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	isbn := chi.URLParam(r, "isbn")
	var patch service.BookPatchDto
	if !h.decode(w, r, &patch) {
		return
	}
	h.logger.DebugContext(r.Context(), "Received request to update book", "isbn", isbn)

	updated, err := h.service.Update(r.Context(), isbn, &patch)
	if err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to update book with ISBN %s", isbn))
		return
	}
	h.logger.InfoContext(r.Context(), "Book updated successfully", slog.String("isbn", updated.ISBN))
	web.RespondJSON(w, h.logger, http.StatusOK, updated)
}

// Delete removes the book with the ISBN from the path.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	isbn := chi.URLParam(r, "isbn")
	h.logger.DebugContext(r.Context(), "Received request to delete book", "isbn", isbn)

	if err := h.service.Delete(r.Context(), isbn); err != nil {
		h.respondServiceError(w, r, err, fmt.Sprintf("Failed to delete book with ISBN %s", isbn))
		return
	}
	h.logger.InfoContext(r.Context(), "Book deleted successfully", slog.String("isbn", isbn))
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// decode reads the JSON body into dst and validates it. On failure the response is written
// and false is returned.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.logger.WarnContext(r.Context(), "Validation errors occurred", "error", err)
		web.RespondValidationError(w, h.logger, err)
		return false
	}
	return true
}

// respondServiceError maps catalog errors to HTTP status codes. Unknown errors become 500 with
// fallback as message.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, catalogerrors.ErrInvalidArgument):
		h.logger.WarnContext(r.Context(), "Invalid argument", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalogerrors.ErrBookNotFound):
		h.logger.WarnContext(r.Context(), "Book not found", "error", err)
		web.RespondError(w, h.logger, http.StatusNotFound, err.Error())
	case errors.Is(err, catalogerrors.ErrBookAlreadyExists):
		h.logger.WarnContext(r.Context(), "Book already exists", "error", err)
		web.RespondError(w, h.logger, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), fallback, "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, fallback)
	}
}
