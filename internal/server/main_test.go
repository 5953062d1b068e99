package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"shapeit/internal/config"
	"shapeit/internal/models"
	"shapeit/internal/service"
	"shapeit/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testSessionSecret  = "server-test-session-secret-0123456789"
	testProviderSecret = "bridge-secret"
)

type testEnv struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
	cfg *config.Config
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Port:                 "0",
		Env:                  "test",
		SessionSecret:        testSessionSecret,
		SessionTTLHours:      1,
		ProviderSharedSecret: testProviderSecret,
		FeatureFlags:         "image_uploads=on",
		BlobDir:              t.TempDir(),
		BlobPublicBaseURL:    "http://localhost:8375",
		BlobMaxUploadSizeMB:  1,
		GitHubAPIURL:         "http://127.0.0.1:1",
		GitHubUserAgent:      "shapeit-test",
		GitHubTimeoutSeconds: 1,
		FeedPageSize:         20,
	}
}

func newTestEnv(t *testing.T, tweak ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig(t)
	for _, f := range tweak {
		f(cfg)
	}

	db := testutil.NewTestDB(t)
	mr, rdb := testutil.NewTestRedis(t)

	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	return &testEnv{srv: srv, app: srv.App(), db: db, mr: mr, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

// signIn goes through the provider bridge and returns the session token and user.
func (e *testEnv) signIn(t *testing.T, identity service.ProviderIdentity) (string, *models.User) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/provider", mustJSON(t, identity))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(ProviderSecretHeader, testProviderSecret)

	resp, raw := e.send(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var out SignInResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	require.NotEmpty(t, out.Token)
	return out.Token, out.User
}

func (e *testEnv) createPost(t *testing.T, token, content string) models.FeedPost {
	t.Helper()
	resp, raw := e.do(t, http.MethodPost, "/api/posts", token, map[string]string{"content": content})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var post models.FeedPost
	require.NoError(t, json.Unmarshal(raw, &post))
	return post
}

func mustJSON(t *testing.T, v any) io.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func decodeError(t *testing.T, raw []byte) models.ErrorResponse {
	t.Helper()
	var out models.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}
