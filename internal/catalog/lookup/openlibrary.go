// Package lookup fetches book metadata from OpenLibrary.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	catalogerrors "github.com/abgdnv/bookstore/internal/catalog/errors"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://openlibrary.org"

var isbnReplacer = strings.NewReplacer("-", "", " ", "")

// Metadata is the descriptive data known about an ISBN.
type Metadata struct {
	Title   string
	Authors []string
	// EbookFormats lists the digital formats offered for the edition, e.g. "epub" or "pdf".
	EbookFormats   []string
	NumberOfPages  int
	PhysicalFormat string
}

// Config configures an OpenLibraryClient.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// RatePerSecond limits outgoing requests. Zero disables the limit.
	RatePerSecond float64
	Burst         int
}

// OpenLibraryClient looks up books by ISBN. Every lookup waits for the rate limiter and runs
// through the circuit breaker; a missing book is not an error.
type OpenLibraryClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker[*Metadata]
	logger    *slog.Logger
}

// NewOpenLibraryClient creates a client. breaker may be nil.
func NewOpenLibraryClient(cfg Config, breaker *gobreaker.CircuitBreaker[*Metadata], logger *slog.Logger) *OpenLibraryClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &OpenLibraryClient{
		baseURL:   baseURL,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   limiter,
		breaker:   breaker,
		logger:    logger.With("component", "openlibrary"),
	}
}

// Lookup returns the metadata for isbn, or nil when OpenLibrary does not know it.
// Failures are wrapped in ErrLookupFailed. Hyphens and spaces in isbn are ignored.
func (c *OpenLibraryClient) Lookup(ctx context.Context, isbn string) (*Metadata, error) {
	isbn = isbnReplacer.Replace(isbn)
	if c.breaker == nil {
		return c.lookup(ctx, isbn)
	}
	md, err := c.breaker.Execute(func() (*Metadata, error) {
		return c.lookup(ctx, isbn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", catalogerrors.ErrLookupFailed, err)
	}
	return md, err
}

func (c *OpenLibraryClient) lookup(ctx context.Context, isbn string) (*Metadata, error) {
	md, err := c.fetchBookData(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if md != nil && (len(md.EbookFormats) > 0 || md.NumberOfPages > 0) {
		return md, nil
	}

	// the data api knows no pages or formats for some editions, the edition record may
	edition, err := c.fetchEdition(ctx, isbn)
	if err != nil {
		if md != nil {
			c.logger.DebugContext(ctx, "edition enrichment failed", "isbn", isbn, "error", err)
			return md, nil
		}
		return nil, err
	}
	if edition == nil {
		return md, nil
	}
	if md == nil {
		return edition, nil
	}
	md.NumberOfPages = edition.NumberOfPages
	md.PhysicalFormat = edition.PhysicalFormat
	if md.Title == "" {
		md.Title = edition.Title
	}
	return md, nil
}

type openLibraryBook struct {
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	NumberOfPages int `json:"number_of_pages"`
	Ebooks        []struct {
		Availability string                     `json:"availability"`
		Formats      map[string]json.RawMessage `json:"formats"`
	} `json:"ebooks"`
}

type openLibraryEdition struct {
	Title          string `json:"title"`
	NumberOfPages  int    `json:"number_of_pages"`
	PhysicalFormat string `json:"physical_format"`
}

// fetchBookData queries the books data api. Returns nil when the ISBN is unknown.
func (c *OpenLibraryClient) fetchBookData(ctx context.Context, isbn string) (*Metadata, error) {
	key := "ISBN:" + isbn
	endpoint := fmt.Sprintf("%s/api/books?bibkeys=%s&format=json&jscmd=data", c.baseURL, url.QueryEscape(key))

	var result map[string]openLibraryBook
	found, err := c.getJSON(ctx, endpoint, &result)
	if err != nil || !found {
		return nil, err
	}
	book, ok := result[key]
	if !ok {
		return nil, nil
	}

	md := &Metadata{
		Title:         book.Title,
		NumberOfPages: book.NumberOfPages,
	}
	for _, a := range book.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			md.Authors = append(md.Authors, name)
		}
	}
	formats := make(map[string]struct{})
	for _, e := range book.Ebooks {
		for f := range e.Formats {
			formats[f] = struct{}{}
		}
	}
	for f := range formats {
		md.EbookFormats = append(md.EbookFormats, f)
	}
	sort.Strings(md.EbookFormats)
	return md, nil
}

// fetchEdition queries the edition record. Returns nil when the ISBN is unknown.
func (c *OpenLibraryClient) fetchEdition(ctx context.Context, isbn string) (*Metadata, error) {
	endpoint := fmt.Sprintf("%s/isbn/%s.json", c.baseURL, url.PathEscape(isbn))

	var edition openLibraryEdition
	found, err := c.getJSON(ctx, endpoint, &edition)
	if err != nil || !found {
		return nil, err
	}
	return &Metadata{
		Title:          edition.Title,
		NumberOfPages:  edition.NumberOfPages,
		PhysicalFormat: edition.PhysicalFormat,
	}, nil
}

// getJSON decodes the response of a GET into out. found is false on 404.
func (c *OpenLibraryClient) getJSON(ctx context.Context, endpoint string, out any) (found bool, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("%w: rate limit wait failed: %w", catalogerrors.ErrLookupFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("%w: failed to create request: %w", catalogerrors.ErrLookupFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: OpenLibrary request failed: %w", catalogerrors.ErrLookupFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("%w: OpenLibrary returned status %s", catalogerrors.ErrLookupFailed, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("%w: failed to decode OpenLibrary response: %w", catalogerrors.ErrLookupFailed, err)
	}
	return true, nil
}
