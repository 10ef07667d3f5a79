package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthOptions() *AuthOptions {
	return &AuthOptions{
		AuthSecret:       "0123456789abcdef0123456789abcdef",
		AuthIssuer:       "http://localhost:8888/openid",
		AuthAudience:     "embedded",
		AuthScope:        "read",
		AuthClientID:     "client",
		AuthClientSecret: "secret",
		AuthTokenTTL:     time.Hour,
	}
}

func newTestRouter(t *testing.T, prefix string) (http.Handler, *bytes.Buffer) {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	metriks := metrics.NewSet()
	auth := testAuthOptions()

	contacts, err := NewContactsService(&ContactsOptions{ContactsSeed: true, ContactsIDs: "monotonic"})
	require.NoError(t, err)
	issuer, err := NewIssuer(auth, metriks, logger)
	require.NoError(t, err)

	return NewRouter(&RouterOptions{EndpointsPrefix: prefix}, auth,
		BuildInfo{Title: "test", Version: "1.0.0", Revision: "abc"},
		contacts, issuer, metriks, logger), logs
}

func serve(h http.Handler, method, target string, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func fetchToken(t *testing.T, h http.Handler, prefix string) string {
	t.Helper()
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"client"},
		"client_secret": {"secret"},
	}
	rec := serve(h, http.MethodPost, prefix+"/openid/connect/token", form.Encode(),
		"Content-Type", "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.AccessToken
}

func TestRouter_HealthEndpoints(t *testing.T) {
	h, _ := newTestRouter(t, "")

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/liveness", "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/readiness", "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/openapi.json", "").Code)
}

func TestRouter_ContactsFlow(t *testing.T) {
	h, logs := newTestRouter(t, "")

	rec := serve(h, http.MethodGet, "/contacts", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	auth := "Bearer " + fetchToken(t, h, "")

	rec = serve(h, http.MethodGet, "/", "", "Authorization", auth)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello world!", rec.Body.String())

	rec = serve(h, http.MethodGet, "/hello/you", "", "Authorization", auth)
	assert.Equal(t, "Hello, you", rec.Body.String())

	for _, path := range []string{"/nope", "/contacts/1/extra"} {
		rec = serve(h, http.MethodGet, path, "", "Authorization", auth)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"), path)
	}

	rec = serve(h, http.MethodGet, "/contacts", "", "Authorization", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 5)

	rec = serve(h, http.MethodPost, "/contacts", `{"name":"Six","address":"6 Main St","city":"Test"}`,
		"Authorization", auth, "Content-Type", "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/contacts/6", rec.Header().Get("Location"))

	rec = serve(h, http.MethodGet, "/contacts/6", "", "Authorization", auth)
	assert.JSONEq(t, `{"id":6,"name":"Six","address":"6 Main St","city":"Test"}`, rec.Body.String())

	rec = serve(h, http.MethodDelete, "/contacts/6", "", "Authorization", auth)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(h, http.MethodDelete, "/contacts/6", "", "Authorization", auth, "X-Request-Id", "req-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-Id"))

	assert.Contains(t, logs.String(), `"x-request-id":"req-1"`)
	assert.Contains(t, logs.String(), `"level":"WARN","msg":"error occurred"`)
	assert.Contains(t, logs.String(), `"client_id":"client"`)

	rec = serve(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `build_info{goversion="`)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="DELETE",path="/contacts/{id}",status="404"} 1`)
	assert.Contains(t, rec.Body.String(), "identity_tokens_issued_total 1")
}

func TestRouter_Prefix(t *testing.T) {
	h, _ := newTestRouter(t, "/api")
	auth := "Bearer " + fetchToken(t, h, "/api")

	rec := serve(h, http.MethodPost, "/api/contacts", `{"name":"Six"}`,
		"Authorization", auth, "Content-Type", "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/contacts/6", rec.Header().Get("Location"))

	rec = serve(h, http.MethodGet, "/api/contacts/6", "", "Authorization", auth)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, http.MethodGet, "/api/", "", "Authorization", auth)
	assert.Equal(t, "Hello world!", rec.Body.String())

	rec = serve(h, http.MethodGet, "/api/nope", "", "Authorization", auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))

	_, api := humatest.New(t)
	api.UseMiddleware(ctxlog{}.loggerMiddleware(logger), ctxlog{}.recoverMiddleware(logger))
	huma.Get(api, "/panic", func(context.Context, *struct{}) (*struct{}, error) {
		panic("boom")
	})

	resp := api.Get("/panic")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, logs.String(), "panic occurred")
	assert.Contains(t, logs.String(), "recovered=boom")
}

func TestErrorHandlerLevels(t *testing.T) {
	tests := []struct {
		err       error
		wantLevel string
	}{
		{errors.New("plain"), "ERROR"},
		{huma.Error500InternalServerError("server"), "ERROR"},
		{huma.Error404NotFound("missing"), "WARN"},
		{huma.NewError(http.StatusNotModified, "cached"), "INFO"},
	}
	for _, tt := range tests {
		logs := &bytes.Buffer{}
		handler := ctxlog{}.errorHandler(slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
		handler(context.Background(), tt.err)
		assert.Contains(t, logs.String(), "level="+tt.wantLevel, tt.err.Error())
	}
}

func TestNewContactsService_InvalidPolicy(t *testing.T) {
	_, err := NewContactsService(&ContactsOptions{ContactsIDs: "random"})
	assert.Error(t, err)
}

func TestNewIssuer_RandomKey(t *testing.T) {
	logs := &bytes.Buffer{}
	auth := testAuthOptions()
	auth.AuthSecret = ""

	issuer, err := NewIssuer(auth, nil, slog.New(slog.NewTextHandler(logs, nil)))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "no auth secret configured")
	assert.Equal(t, "http://localhost:8888/openid", issuer.Issuer())
}
