package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dirnet/pkg/directory"
	"dirnet/pkg/types"
)

func testServer(t *testing.T, registrars ...RouteRegistrar) http.Handler {
	t.Helper()
	srv := New(&Config{
		ListenAddr: ":0",
		Log:        zap.NewNop(),
	}, registrars...)
	return srv.srv.Handler
}

// emptyDirectory talks to an unreachable relay, so every read degrades
// to an empty result.
func emptyDirectory() *directory.Directory {
	return directory.New([]string{"ws://127.0.0.1:1"}, 500*time.Millisecond, zap.NewNop())
}

func TestHealthEndpoints(t *testing.T) {
	h := testServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDrainAndUndrain(t *testing.T) {
	h := testServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/drain", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/undrain", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListServices_EmptyNetwork(t *testing.T) {
	h := testServer(t, NewDirectoryHandler(emptyDirectory(), nil, zap.NewNop()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/services", nil))

	require.Equal(t, http.StatusOK, rec.Code, "an empty network is a valid, empty answer")
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestListServices_BadParams(t *testing.T) {
	h := testServer(t, NewDirectoryHandler(emptyDirectory(), nil, zap.NewNop()))

	for _, target := range []string{
		"/api/v1/services?max_price=abc",
		"/api/v1/services?min_trust=abc",
		"/api/v1/services?limit=abc",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestGetService_NotFound(t *testing.T) {
	h := testServer(t, NewDirectoryHandler(emptyDirectory(), nil, zap.NewNop()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/services/owner123/name", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublishService_InvalidBody(t *testing.T) {
	h := testServer(t, NewDirectoryHandler(emptyDirectory(), nil, zap.NewNop()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/services", strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Well-formed JSON but an unverifiable record is also rejected.
	body, _ := json.Marshal(types.Record{ID: "bogus", Kind: types.KindServiceListing})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/services", strings.NewReader(string(body))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveService_NoKey(t *testing.T) {
	h := testServer(t, NewDirectoryHandler(emptyDirectory(), nil, zap.NewNop()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/services/someid", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
