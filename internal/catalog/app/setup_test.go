package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abgdnv/bookstore/internal/catalog/config"
	pkgconfig "github.com/abgdnv/bookstore/pkg/config"
	"github.com/abgdnv/bookstore/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSetupStore_InMemory(t *testing.T) {
	// given
	cfg := config.Config{Database: pkgconfig.DatabaseConfig{InMemory: true}}

	// when
	st, cleanup, err := SetupStore(context.Background(), cfg, discardLogger)

	// then
	require.NoError(t, err)
	defer cleanup()
	assert.NoError(t, st.Ping(context.Background()))
}

func TestNewLookup_Disabled(t *testing.T) {
	assert.Nil(t, NewLookup(config.LookupConfig{}, discardLogger))
}

func TestIsLookupSuccessful(t *testing.T) {
	assert.True(t, isLookupSuccessful(nil))
	assert.True(t, isLookupSuccessful(context.Canceled))
	assert.False(t, isLookupSuccessful(context.DeadlineExceeded))
	assert.False(t, isLookupSuccessful(io.EOF))
}

func TestSetupHttpHandler(t *testing.T) {
	// given
	st, _, err := SetupStore(context.Background(), config.Config{Database: pkgconfig.DatabaseConfig{InMemory: true}}, discardLogger)
	require.NoError(t, err)
	deps := SetupDependencies(st, discardLogger)
	deps.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("books_added_total 1"))
	})
	deps.MetricsPath = "/metrics"
	srv := httptest.NewServer(SetupHttpHandler(deps))
	defer srv.Close()
	client := &http.Client{Timeout: 5 * time.Second}

	// when
	created, err := client.Post(srv.URL+"/books", "application/json", strings.NewReader(
		`{"isbn":"978-0451524935","title":"1984","author":"George Orwell","stock":150,"kind":"physical-copy"}`))
	require.NoError(t, err)
	_ = created.Body.Close()
	metrics, err := client.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(metrics.Body)
	_ = metrics.Body.Close()
	health, err := client.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = health.Body.Close()

	// then
	assert.Equal(t, http.StatusCreated, created.StatusCode)
	assert.NotEmpty(t, created.Header.Get(web.XRequestId))
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
	assert.Contains(t, string(body), "books_added_total")
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
