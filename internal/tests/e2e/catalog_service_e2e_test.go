// Package e2e provides end-to-end tests for the catalog service.
// The suite starts PostgreSQL with testcontainers-go, applies the migrations through the application
// setup and serves the real HTTP handler from an httptest.Server. OpenLibrary is replaced by a local
// fake so the write-through lookup can be observed.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abgdnv/bookstore/internal/catalog/app"
	"github.com/abgdnv/bookstore/internal/catalog/config"
	"github.com/abgdnv/bookstore/internal/catalog/service"
	pkgconfig "github.com/abgdnv/bookstore/pkg/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// skipE2ETests is the environment variable that can be set to skip E2E tests.
const skipE2ETests = "CATALOG_SVC_SKIP_E2E_TESTS"

const booksURL = "/books"

// CatalogServiceE2ESuite is a test suite for end-to-end tests of the catalog service.
type CatalogServiceE2ESuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	closeStore  func()
	openLibrary *httptest.Server
	lookups     atomic.Int32
	server      *httptest.Server
	httpClient  *http.Client
	logger      *slog.Logger
	ctx         context.Context
}

// fakeOpenLibrary knows a single ebook, Effective Java.
func (s *CatalogServiceE2ESuite) fakeOpenLibrary() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/books", func(w http.ResponseWriter, r *http.Request) {
		s.lookups.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("bibkeys") != "ISBN:9780134685991" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"ISBN:9780134685991":{"title":"Effective Java","authors":[{"name":"Joshua Bloch"}],` +
			`"ebooks":[{"availability":"full","formats":{"epub":{"url":"https://example.org/ej.epub"}}}]}}`))
	})
	mux.HandleFunc("GET /isbn/{file}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return mux
}

// SetupSuite starts PostgreSQL and the fake OpenLibrary, then wires the application like main does.
func (s *CatalogServiceE2ESuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("catalog"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	s.dbPool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to create pgx pool")
	for i := range 10 {
		s.logger.Info("Pinging E2E PostgreSQL database", "attempt", i+1)
		err = s.dbPool.Ping(s.ctx)
		if err == nil {
			break
		}
		time.Sleep(time.Second * 2)
	}
	require.NoError(s.T(), err, "Failed to connect to PostgreSQL after retries")

	s.openLibrary = httptest.NewServer(s.fakeOpenLibrary())

	wd, _ := os.Getwd()
	cfg := config.Config{
		Database: pkgconfig.DatabaseConfig{
			URL:        connStr,
			Timeout:    10 * time.Second,
			Migrations: filepath.Join(wd, "..", "..", "..", "deploy", "migrations", "catalog_service"),
		},
		Lookup: config.LookupConfig{
			Enabled: true,
			BaseURL: s.openLibrary.URL,
			Timeout: 5 * time.Second,
			CircuitBreaker: pkgconfig.CircuitBreakerConfig{
				ConsecutiveFailures: 5,
				ErrorRatePercent:    50,
				OpenTimeout:         time.Minute,
			},
		},
	}
	require.NoError(s.T(), cfg.Lookup.Validate())

	bookStore, closeStore, err := app.SetupStore(s.ctx, cfg, s.logger)
	require.NoError(s.T(), err, "Failed to set up the store")
	s.closeStore = closeStore

	deps := app.SetupDependencies(bookStore, s.logger, service.WithLookup(app.NewLookup(cfg.Lookup, s.logger)))
	s.server = httptest.NewServer(app.SetupHttpHandler(deps))
	s.httpClient = s.server.Client()
	s.logger.Info("E2E test server started", "url", s.server.URL)
}

// TearDownSuite cleans up resources after all tests in the suite have run.
func (s *CatalogServiceE2ESuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.openLibrary != nil {
		s.openLibrary.Close()
	}
	if s.closeStore != nil {
		s.closeStore()
	}
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("Failed to terminate E2E PostgreSQL container", "error", err)
		}
	}
}

// SetupTest empties the books table and resets the lookup counter.
func (s *CatalogServiceE2ESuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE books")
	require.NoError(s.T(), err, "Failed to truncate books table")
	s.lookups.Store(0)
}

func TestCatalogServiceE2E(t *testing.T) {
	if os.Getenv(skipE2ETests) == "1" {
		t.Skip("Skipping E2E tests based on " + skipE2ETests + " env var")
	}
	suite.Run(t, new(CatalogServiceE2ESuite))
}

// --------------------------------------------------------------------------
// ---------- Payload structures and Helper methods for E2E tests -----------
// --------------------------------------------------------------------------

type createBookPayload struct {
	ISBN   string `json:"isbn"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Stock  int32  `json:"stock"`
	Kind   string `json:"kind"`
}

var orwell = createBookPayload{ISBN: "978-0451524935", Title: "1984", Author: "George Orwell", Stock: 150, Kind: service.KindPhysicalCopy}

func (s *CatalogServiceE2ESuite) addBook(payload createBookPayload) (service.BookDto, int) {
	s.T().Helper()
	body, code := s.doRequest(http.MethodPost, s.server.URL+booksURL, payload)
	return s.decodeBook(body, code), code
}

func (s *CatalogServiceE2ESuite) findByISBN(isbn string) (service.BookDto, int) {
	s.T().Helper()
	body, code := s.doRequest(http.MethodGet, s.server.URL+booksURL+"/"+isbn, nil)
	return s.decodeBook(body, code), code
}

func (s *CatalogServiceE2ESuite) patchBook(isbn string, patch map[string]any) (service.BookDto, int) {
	s.T().Helper()
	body, code := s.doRequest(http.MethodPatch, s.server.URL+booksURL+"/"+isbn, patch)
	return s.decodeBook(body, code), code
}

func (s *CatalogServiceE2ESuite) listBooks(path string) ([]service.BookDto, int) {
	s.T().Helper()
	body, code := s.doRequest(http.MethodGet, s.server.URL+path, nil)
	var books []service.BookDto
	if code == http.StatusOK {
		require.NoError(s.T(), json.Unmarshal(body, &books), "Failed to decode book list response")
	}
	return books, code
}

func (s *CatalogServiceE2ESuite) decodeBook(body []byte, code int) service.BookDto {
	s.T().Helper()
	var book service.BookDto
	if code == http.StatusOK || code == http.StatusCreated {
		require.NoError(s.T(), json.Unmarshal(body, &book), "Failed to decode book response")
	}
	return book
}

// doRequest sends payload as JSON and returns the response body and status code.
func (s *CatalogServiceE2ESuite) doRequest(method, url string, payload any) ([]byte, int) {
	s.T().Helper()
	var body io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		require.NoError(s.T(), err)
		body = bytes.NewBuffer(payloadBytes)
	}

	req, err := http.NewRequestWithContext(s.ctx, method, url, body)
	require.NoError(s.T(), err, "Failed to create HTTP request")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err, "HTTP request failed")
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err, "Failed to read response body")
	return bodyBytes, resp.StatusCode
}

// --------------------------------------------------------------
// ---------------------- E2E test methods ----------------------
// --------------------------------------------------------------

func (s *CatalogServiceE2ESuite) TestAddNew_ThenFindByISBN_E2E() {
	// given
	created, code := s.addBook(orwell)
	s.Require().Equal(http.StatusCreated, code)

	// when
	found, code := s.findByISBN(orwell.ISBN)

	// then
	s.Require().Equal(http.StatusOK, code)
	s.Equal(created, found)
	s.NotEmpty(found.ID.String())
	s.Equal(orwell.Title, found.Title)
	s.Equal(orwell.Author, found.Author)
	s.Equal(orwell.Stock, found.Stock)
	s.Equal(orwell.Kind, found.Kind)
	s.Zero(s.lookups.Load(), "local hit must not reach the lookup")
}

func (s *CatalogServiceE2ESuite) TestAddNew_Duplicate_E2E() {
	// given
	_, code := s.addBook(orwell)
	s.Require().Equal(http.StatusCreated, code)
	before, _ := s.listBooks(booksURL)

	// when
	other := orwell
	other.Title = "Animal Farm"
	_, code = s.addBook(other)

	// then
	s.Equal(http.StatusConflict, code)
	after, _ := s.listBooks(booksURL)
	s.Equal(before, after)
}

func (s *CatalogServiceE2ESuite) TestAddNew_Validation_E2E() {
	testCases := []struct {
		name    string
		payload createBookPayload
	}{
		{name: "blank isbn", payload: createBookPayload{ISBN: " ", Title: "t", Author: "a", Kind: service.KindEbook}},
		{name: "missing title", payload: createBookPayload{ISBN: "1", Author: "a", Kind: service.KindEbook}},
		{name: "negative stock", payload: createBookPayload{ISBN: "1", Title: "t", Author: "a", Stock: -1, Kind: service.KindEbook}},
		{name: "unknown kind", payload: createBookPayload{ISBN: "1", Title: "t", Author: "a", Kind: "audiobook"}},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, code := s.addBook(tc.payload)
			s.Equal(http.StatusBadRequest, code)
		})
	}
	books, _ := s.listBooks(booksURL)
	s.Empty(books)
}

func (s *CatalogServiceE2ESuite) TestFindByISBN_WriteThroughFromLookup_E2E() {
	// when
	first, code := s.findByISBN("978-0134685991")

	// then
	s.Require().Equal(http.StatusOK, code)
	s.Equal("978-0134685991", first.ISBN)
	s.Equal("Effective Java", first.Title)
	s.Equal("Joshua Bloch", first.Author)
	s.Equal(int32(0), first.Stock)
	s.Equal(service.KindEbook, first.Kind)
	s.Equal(int32(1), s.lookups.Load())

	// served locally the second time
	second, code := s.findByISBN("978-0134685991")
	s.Require().Equal(http.StatusOK, code)
	s.Equal(first, second)
	s.Equal(int32(1), s.lookups.Load())

	ebooks, code := s.listBooks(booksURL + "?kind=ebook")
	s.Require().Equal(http.StatusOK, code)
	s.Len(ebooks, 1)
}

func (s *CatalogServiceE2ESuite) TestFindByISBN_UnknownEverywhere_E2E() {
	// when
	_, code := s.findByISBN("978-0000000000")

	// then
	s.Equal(http.StatusNotFound, code)
	s.Equal(int32(1), s.lookups.Load())
	books, _ := s.listBooks(booksURL)
	s.Empty(books)
}

func (s *CatalogServiceE2ESuite) TestFindByISBN_Blank_E2E() {
	_, code := s.findByISBN("%20")
	s.Equal(http.StatusBadRequest, code)
	s.Zero(s.lookups.Load())
}

func (s *CatalogServiceE2ESuite) TestFindByAuthor_E2E() {
	// given
	for _, b := range []createBookPayload{
		{ISBN: "978-0441013593", Title: "Dune", Author: "Frank Herbert", Stock: 4, Kind: service.KindPhysicalCopy},
		{ISBN: "978-0441172719", Title: "Dune Messiah", Author: "Frank Herbert", Stock: 2, Kind: service.KindEbook},
		orwell,
	} {
		_, code := s.addBook(b)
		s.Require().Equal(http.StatusCreated, code)
	}

	// when
	books, code := s.listBooks(booksURL + "/author/Frank%20Herbert")

	// then
	s.Require().Equal(http.StatusOK, code)
	s.Require().Len(books, 2)
	for _, b := range books {
		s.Equal("Frank Herbert", b.Author)
	}
}

func (s *CatalogServiceE2ESuite) TestUpdate_E2E() {
	// given
	created, code := s.addBook(orwell)
	s.Require().Equal(http.StatusCreated, code)

	// when: only stock
	updated, code := s.patchBook(orwell.ISBN, map[string]any{"stock": 7})

	// then
	s.Require().Equal(http.StatusOK, code)
	s.Equal(int32(7), updated.Stock)
	s.Equal(created.Title, updated.Title)
	s.Equal(created.Author, updated.Author)
	s.Equal(created.ID, updated.ID)

	// when: only title
	updated, code = s.patchBook(orwell.ISBN, map[string]any{"title": "Nineteen Eighty-Four"})

	// then
	s.Require().Equal(http.StatusOK, code)
	s.Equal("Nineteen Eighty-Four", updated.Title)
	s.Equal(int32(7), updated.Stock)
	s.Equal(created.Author, updated.Author)

	testCases := []struct {
		name         string
		isbn         string
		patch        map[string]any
		expectedCode int
	}{
		{name: "id is immutable", isbn: orwell.ISBN, patch: map[string]any{"id": created.ID.String()}, expectedCode: http.StatusBadRequest},
		{name: "kind is immutable", isbn: orwell.ISBN, patch: map[string]any{"kind": service.KindEbook}, expectedCode: http.StatusBadRequest},
		{name: "isbn is immutable", isbn: orwell.ISBN, patch: map[string]any{"isbn": "978-0000000000"}, expectedCode: http.StatusBadRequest},
		{name: "negative stock", isbn: orwell.ISBN, patch: map[string]any{"stock": -1}, expectedCode: http.StatusBadRequest},
		{name: "missing book", isbn: "978-0000000000", patch: map[string]any{"stock": 1}, expectedCode: http.StatusNotFound},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, code := s.patchBook(tc.isbn, tc.patch)
			s.Equal(tc.expectedCode, code)
		})
	}

	found, _ := s.findByISBN(orwell.ISBN)
	s.Equal(updated, found, "rejected patches must not change the book")
}

func (s *CatalogServiceE2ESuite) TestDelete_E2E() {
	// given
	_, code := s.addBook(orwell)
	s.Require().Equal(http.StatusCreated, code)
	deleteURL := fmt.Sprintf("%s%s/%s", s.server.URL, booksURL, orwell.ISBN)

	// when
	_, code = s.doRequest(http.MethodDelete, deleteURL, nil)

	// then
	s.Equal(http.StatusNoContent, code)
	_, code = s.doRequest(http.MethodDelete, deleteURL, nil)
	s.Equal(http.StatusNotFound, code)
	books, _ := s.listBooks(booksURL)
	s.Empty(books)
}
