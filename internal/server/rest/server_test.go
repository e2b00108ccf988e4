package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

// ---- fakes ----

type verifyCall struct {
	username string
	image    []byte
}

type fakeAuth struct {
	token    *models.Token
	err      error
	gotCreds models.UserCredentials
	gotHdr   string
	verified chan verifyCall
}

func (f *fakeAuth) Register(ctx context.Context, creds models.UserCredentials) (*models.Token, error) {
	f.gotCreds = creds
	return f.token, f.err
}

func (f *fakeAuth) Authenticate(ctx context.Context, creds models.UserCredentials, bearerHeader string) (*models.Token, error) {
	f.gotCreds = creds
	f.gotHdr = bearerHeader
	return f.token, f.err
}

func (f *fakeAuth) CheckToken(ctx context.Context, bearerHeader string) error {
	f.gotHdr = bearerHeader
	return f.err
}

func (f *fakeAuth) Verify(ctx context.Context, username string, image []byte) {
	f.verified <- verifyCall{username: username, image: image}
}

type fakeProbe struct{ ok bool }

func (f fakeProbe) Check(context.Context) bool { return f.ok }

type recordedAuth struct {
	status metrics.AuthStatus
	labels metrics.Labels
}

type fakeMetrics struct {
	mu        sync.Mutex
	ready     []metrics.Labels
	requests  []metrics.Labels
	durations int
	auths     []recordedAuth
}

func (m *fakeMetrics) IncReadyCount(_ context.Context, l metrics.Labels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = append(m.ready, l)
}

func (m *fakeMetrics) IncRequestCount(_ context.Context, l metrics.Labels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, l)
}

func (m *fakeMetrics) ObserveDuration(context.Context, metrics.Labels, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations++
}

func (m *fakeMetrics) ObserveAuth(_ context.Context, status metrics.AuthStatus, l metrics.Labels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auths = append(m.auths, recordedAuth{status: status, labels: l})
}

// ---- helpers ----

func newTestServer(svc *fakeAuth, probe fakeProbe, mc metrics.Client) *HTTPServer {
	if svc.verified == nil {
		svc.verified = make(chan verifyCall, 1)
	}
	return NewHTTPServer("127.0.0.1:0", nopLogger{}, svc, probe, mc)
}

func do(t *testing.T, s *HTTPServer, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body, authHeader string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set(common.AuthorizationHeaderName, authHeader)
	}
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

const validCreds = `{"username":"alice","password":"password1"}`

func testToken() *models.Token {
	return &models.Token{
		Subject:      "alice",
		IssuedAt:     time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		EncodedToken: "enc",
	}
}

// ---- /register ----

func TestRegister(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
	}{
		{"ok", validCreds, nil, http.StatusOK},
		{"malformed json", `{"username":`, nil, http.StatusUnprocessableEntity},
		{"short password", `{"username":"alice","password":"short"}`, nil, http.StatusUnprocessableEntity},
		{"long username", fmt.Sprintf(`{"username":"%s","password":"password1"}`, strings.Repeat("a", 51)), nil, http.StatusUnprocessableEntity},
		{"service error", validCreds, fmt.Errorf("%w: db down", common.ErrorInternal), http.StatusInternalServerError},
		{"duplicate", validCreds, fmt.Errorf("%w: %w", common.ErrorInternal, common.ErrorAlreadyExists), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuth{token: testToken(), err: tt.svcErr}
			s := newTestServer(svc, fakeProbe{ok: true}, nil)

			rec := do(t, s, jsonRequest(http.MethodPost, "/register", tt.body, ""))
			assert.Equal(t, tt.wantStatus, rec.Code)

			body := decodeBody(t, rec)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "alice", body["subject"])
				assert.Equal(t, "enc", body["encoded_token"])
				assert.Equal(t, "2024-01-01T12:00:00Z", body["issued_at"])
			} else {
				assert.NotEmpty(t, body["detail"])
			}
		})
	}
}

// ---- /login ----

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		svcErr     error
		wantStatus int
	}{
		{"ok", nil, http.StatusOK},
		{"user not found", fmt.Errorf("%w: alice not found in db", common.ErrorNotFound), http.StatusNotFound},
		{"bad password", fmt.Errorf("%w: bad password", common.ErrorUnauthorized), http.StatusUnauthorized},
		{"missing bearer", fmt.Errorf("%w: Bearer not found", common.ErrorUnauthorized), http.StatusUnauthorized},
		{"undecodable token", fmt.Errorf("%w: bad signature", common.ErrorUnprocessable), http.StatusServiceUnavailable},
		{"infrastructure", fmt.Errorf("%w: cache down", common.ErrorInternal), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuth{token: testToken(), err: tt.svcErr}
			s := newTestServer(svc, fakeProbe{ok: true}, nil)

			rec := do(t, s, jsonRequest(http.MethodPost, "/login", validCreds, "Bearer abc"))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "Bearer abc", svc.gotHdr)
			assert.Equal(t, "alice", svc.gotCreds.UserName)
		})
	}
}

func TestLogin_BindErrorSkipsService(t *testing.T) {
	svc := &fakeAuth{token: testToken()}
	s := newTestServer(svc, fakeProbe{ok: true}, nil)

	rec := do(t, s, jsonRequest(http.MethodPost, "/login", `{"username":"alice"}`, "Bearer abc"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, svc.gotCreds.UserName)
}

func TestLogin_AbsentHeaderPassedAsEmpty(t *testing.T) {
	svc := &fakeAuth{err: fmt.Errorf("%w: Bearer not found", common.ErrorUnauthorized)}
	s := newTestServer(svc, fakeProbe{ok: true}, nil)

	rec := do(t, s, jsonRequest(http.MethodPost, "/login", validCreds, ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "", svc.gotHdr)
	assert.Equal(t, "user alice unauthorized", decodeBody(t, rec)["detail"])
}

// ---- /check_token ----

func TestCheckToken(t *testing.T) {
	tests := []struct {
		name       string
		svcErr     error
		wantStatus int
		wantBody   map[string]any
	}{
		{"ok", nil, http.StatusOK, map[string]any{"message": "ok"}},
		{"miss", common.ErrorNotFound, http.StatusNotFound, map[string]any{"detail": "token not found"}},
		{"expired", common.ErrorUnauthorized, http.StatusUnauthorized, map[string]any{"detail": "token expired"}},
		{"unprocessable", common.ErrorUnprocessable, http.StatusUnprocessableEntity, map[string]any{"detail": "unprocessable token"}},
		{"infrastructure", common.ErrorInternal, http.StatusServiceUnavailable, map[string]any{"detail": "server error"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuth{err: tt.svcErr}
			s := newTestServer(svc, fakeProbe{ok: true}, nil)

			rec := do(t, s, jsonRequest(http.MethodPost, "/check_token", "", "Bearer tok"))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, decodeBody(t, rec))
			assert.Equal(t, "Bearer tok", svc.gotHdr)
		})
	}
}

// ---- /verify ----

func multipartRequest(t *testing.T, username string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if username != "" {
		require.NoError(t, w.WriteField("username", username))
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "face.jpg")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/verify", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestVerify_AcceptsAndBackgrounds(t *testing.T) {
	svc := &fakeAuth{}
	s := newTestServer(svc, fakeProbe{ok: true}, nil)

	rec := do(t, s, multipartRequest(t, "alice", []byte("jpeg-bytes")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"message": "ok"}, decodeBody(t, rec))

	select {
	case call := <-svc.verified:
		assert.Equal(t, "alice", call.username)
		assert.Equal(t, []byte("jpeg-bytes"), call.image)
	case <-time.After(2 * time.Second):
		t.Fatal("Verify was not called")
	}
}

func TestVerify_MissingFields(t *testing.T) {
	tests := []struct {
		name     string
		username string
		image    []byte
	}{
		{"no username", "", []byte("x")},
		{"no image", "alice", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuth{}
			s := newTestServer(svc, fakeProbe{ok: true}, nil)

			rec := do(t, s, multipartRequest(t, tt.username, tt.image))
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Empty(t, svc.verified)
		})
	}
}

// ---- /healthz ----

func TestHealthz(t *testing.T) {
	s := newTestServer(&fakeAuth{}, fakeProbe{ok: true}, nil)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz/up", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"message": "service is up"}, decodeBody(t, rec))

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/healthz/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"message": "service is ready"}, decodeBody(t, rec))

	s = newTestServer(&fakeAuth{}, fakeProbe{ok: false}, nil)
	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/healthz/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, map[string]any{"detail": "kafka is unavailable"}, decodeBody(t, rec))

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/healthz/up", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "liveness does not depend on the broker")
}

// ---- middleware ----

func TestRequestID(t *testing.T) {
	s := newTestServer(&fakeAuth{}, fakeProbe{ok: true}, nil)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz/up", nil))
	assert.Len(t, rec.Header().Get(common.RequestIDHeaderName), 36)

	req := httptest.NewRequest(http.MethodGet, "/healthz/up", nil)
	req.Header.Set(common.RequestIDHeaderName, "given-id")
	rec = do(t, s, req)
	assert.Equal(t, "given-id", rec.Header().Get(common.RequestIDHeaderName))
}

func TestMetrics(t *testing.T) {
	mc := &fakeMetrics{}
	svc := &fakeAuth{token: testToken()}
	s := newTestServer(svc, fakeProbe{ok: false}, mc)

	do(t, s, jsonRequest(http.MethodPost, "/login", validCreds, "Bearer abc"))
	svc.err = common.ErrorUnauthorized
	do(t, s, jsonRequest(http.MethodPost, "/login", validCreds, "Bearer abc"))
	do(t, s, jsonRequest(http.MethodPost, "/register", `{}`, ""))
	do(t, s, httptest.NewRequest(http.MethodGet, "/healthz/ready", nil))
	do(t, s, httptest.NewRequest(http.MethodGet, "/healthz/up", nil))

	require.Len(t, mc.auths, 3)
	assert.Equal(t, metrics.AuthSuccess, mc.auths[0].status)
	assert.Equal(t, metrics.Labels{Method: "POST", Service: ServiceName, Endpoint: "/login", Status: "200"}, mc.auths[0].labels)
	assert.Equal(t, metrics.AuthFailure, mc.auths[1].status)
	assert.Equal(t, "401", mc.auths[1].labels.Status)
	assert.Equal(t, metrics.AuthFailure, mc.auths[2].status)
	assert.Equal(t, "/register", mc.auths[2].labels.Endpoint)

	require.Len(t, mc.ready, 1)
	assert.Equal(t, "503", mc.ready[0].Status)

	assert.Len(t, mc.requests, 5)
	assert.Equal(t, 5, mc.durations)
}

// ---- Run ----

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := NewHTTPServer(addr, nopLogger{}, &fakeAuth{}, fakeProbe{ok: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/healthz/up")
		if err == nil {
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never answered: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	s := NewHTTPServer("127.0.0.1:99999", nopLogger{}, &fakeAuth{}, fakeProbe{ok: true}, nil)

	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}
