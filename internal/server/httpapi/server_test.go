package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/buffermesh/buffermesh/internal/common"
	"github.com/buffermesh/buffermesh/internal/logging"
	"github.com/buffermesh/buffermesh/internal/server/auth"
	"github.com/buffermesh/buffermesh/internal/server/models"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeVerifier struct{}

func (fakeVerifier) VerifyAccessToken(ctx context.Context, token string) (string, error) {
	if token == "valid" {
		return "client-1", nil
	}
	return "", common.ErrInvalidToken
}

type fakeAuthAPI struct{}

func (fakeAuthAPI) Register(ctx context.Context, email, password string) (*models.Client, error) {
	if email == "taken@b.c" {
		return nil, common.ErrorAlreadyExists
	}
	return &models.Client{UID: "client-1", Email: email}, nil
}

func (fakeAuthAPI) AuthorizeByEmail(ctx context.Context, email, password string) (*auth.TokenPair, error) {
	if password != "pw" {
		return nil, common.ErrorUnauthorized
	}
	return &auth.TokenPair{AccessToken: "a", RefreshToken: "r"}, nil
}

func (fakeAuthAPI) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	if refreshToken != "r" {
		return nil, common.ErrTokenNotFound
	}
	return &auth.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil
}

func (fakeAuthAPI) Logout(ctx context.Context, refreshToken string) error { return nil }

type fakeBufferAPI struct{}

func (fakeBufferAPI) Create(ctx context.Context, clientUID, name, deviceUID string) (*models.Buffer, error) {
	return &models.Buffer{UID: "b1", ClientUID: clientUID, Name: name, DeviceUID: deviceUID}, nil
}

func (fakeBufferAPI) Get(ctx context.Context, clientUID, bufferUID string) (*models.Buffer, error) {
	switch bufferUID {
	case "b1":
		return &models.Buffer{UID: "b1", ClientUID: clientUID, Name: "inbox"}, nil
	case "foreign":
		return nil, common.ErrorForbidden
	default:
		return nil, common.ErrorNotFound
	}
}

func (fakeBufferAPI) List(ctx context.Context, clientUID string) ([]*models.Buffer, error) {
	return []*models.Buffer{{UID: "b1", ClientUID: clientUID}}, nil
}

func (fakeBufferAPI) Delete(ctx context.Context, clientUID, bufferUID string) error { return nil }

type fakeMessageAPI struct {
	lastDelete bool
	lastOffset int
	lastLimit  int
}

func (f *fakeMessageAPI) AddMessage(ctx context.Context, clientUID, bufferUID, content, contentType, attachmentKey string) (*models.Message, error) {
	if contentType != models.ContentTypeOutgoing && contentType != models.ContentTypeIncoming {
		return nil, common.ErrorInvalidContentType
	}
	return &models.Message{UID: "m1", BufferUID: bufferUID, Content: content, ContentType: contentType}, nil
}

func (f *fakeMessageAPI) GetMessagesByBuffer(ctx context.Context, clientUID, bufferUID string, deleteOnGet bool, offset, limit int) ([]*models.Message, error) {
	f.lastDelete, f.lastOffset, f.lastLimit = deleteOnGet, offset, limit
	return []*models.Message{{UID: "m1", BufferUID: bufferUID}}, nil
}

func (f *fakeMessageAPI) GetMessagesByScheme(ctx context.Context, clientUID, schemeUID string, deleteOnGet bool, offset, limit int) ([]*models.Message, error) {
	return nil, nil
}

func (f *fakeMessageAPI) GetMessagesByDevice(ctx context.Context, clientUID, deviceUID string, deleteOnGet bool, offset, limit int) ([]*models.Message, error) {
	return nil, nil
}

func (f *fakeMessageAPI) GetAttachmentUploadURL(ctx context.Context) (string, string, error) {
	return "k1", "http://signed/put", nil
}

func (f *fakeMessageAPI) GetAttachmentDownloadURL(ctx context.Context, key string) (string, error) {
	return "http://signed/get", nil
}

type fakeHealth struct {
	down map[string]bool
}

func (f *fakeHealth) CheckHealth(ctx context.Context, service string) error {
	if f.down[service] {
		return common.ErrCallTimeout
	}
	return nil
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *fakeMessageAPI) {
	t.Helper()
	messages := &fakeMessageAPI{}
	base := []Option{
		WithAuth(fakeAuthAPI{}),
		WithBuffers(fakeBufferAPI{}),
		WithMessages(messages),
	}
	return NewServer(":0", fakeVerifier{}, testLogger(), append(base, opts...)...), messages
}

func doRequest(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func TestBearerMiddleware(t *testing.T) {
	s, _ := newTestServer(t)

	if rec := doRequest(t, s, http.MethodGet, "/api/buffers", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/api/buffers", "bogus", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/api/buffers", "valid", ""); rec.Code != http.StatusOK {
		t.Fatalf("valid token: status %d", rec.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/register", "", `{"email":"a@b.c","password":"pw"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}

	if rec := doRequest(t, s, http.MethodPost, "/api/register", "", `{"email":"taken@b.c","password":"pw"}`); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/login", "", `{"email":"a@b.c","password":"pw"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d", rec.Code)
	}
	var pair tokenPairResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &pair); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("incomplete pair: %+v", pair)
	}

	if rec := doRequest(t, s, http.MethodPost, "/api/login", "", `{"email":"a@b.c","password":"nope"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: status %d", rec.Code)
	}

	if rec := doRequest(t, s, http.MethodPost, "/api/login", "", `{"email":"a@b.c"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing field: status %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	s, _ := newTestServer(t)

	if rec := doRequest(t, s, http.MethodGet, "/api/buffers/missing", "valid", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("not found: status %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/api/buffers/foreign", "valid", ""); rec.Code != http.StatusForbidden {
		t.Fatalf("forbidden: status %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodPost, "/api/token/refresh", "", `{"refresh_token":"revoked"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked refresh: status %d", rec.Code)
	}
}

func TestMessageQueryParams(t *testing.T) {
	s, messages := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/buffers/b1/messages?delete=true&offset=4&limit=2", "valid", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !messages.lastDelete || messages.lastOffset != 4 || messages.lastLimit != 2 {
		t.Fatalf("params not passed through: delete=%v offset=%d limit=%d",
			messages.lastDelete, messages.lastOffset, messages.lastLimit)
	}

	// Defaults: keep everything, no paging.
	rec = doRequest(t, s, http.MethodGet, "/api/buffers/b1/messages", "valid", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if messages.lastDelete || messages.lastOffset != 0 || messages.lastLimit != -1 {
		t.Fatalf("defaults wrong: delete=%v offset=%d limit=%d",
			messages.lastDelete, messages.lastOffset, messages.lastLimit)
	}

	if rec := doRequest(t, s, http.MethodGet, "/api/buffers/b1/messages?offset=x", "valid", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad offset: status %d", rec.Code)
	}
}

func TestAddMessage(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/buffers/b1/messages", "valid",
		`{"content":"hello","content_type":"OUTGOING"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}

	if rec := doRequest(t, s, http.MethodPost, "/api/buffers/b1/messages", "valid",
		`{"content":"hello","content_type":"SIDEWAYS"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad content type: status %d", rec.Code)
	}
}

func TestAttachmentEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/attachments/upload-url", "valid", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("upload url: status %d", rec.Code)
	}
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if out["key"] == "" || out["url"] == "" {
		t.Fatalf("incomplete response: %v", out)
	}

	if rec := doRequest(t, s, http.MethodGet, "/api/attachments/download-url", "valid", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing key: status %d", rec.Code)
	}
	if rec := doRequest(t, s, http.MethodGet, "/api/attachments/download-url?key=k1", "valid", ""); rec.Code != http.StatusOK {
		t.Fatalf("download url: status %d", rec.Code)
	}
}

func TestHealthAggregation(t *testing.T) {
	s, _ := newTestServer(t, WithHealth(&fakeHealth{}, []string{"auth", "buffer"}))
	if rec := doRequest(t, s, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthy: status %d", rec.Code)
	}

	s, _ = newTestServer(t, WithHealth(&fakeHealth{down: map[string]bool{"buffer": true}}, []string{"auth", "buffer"}))
	rec := doRequest(t, s, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded: status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "degraded") {
		t.Fatalf("body %s", rec.Body.String())
	}
}
