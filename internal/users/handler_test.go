package users

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-starter/internal/auth"
	_ "github.com/odyssey-erp/odyssey-starter/testing"
)

type recordingNotifier struct {
	sent []UserResponse
	err  error
}

func (n *recordingNotifier) EnqueueWelcome(_ context.Context, user UserResponse) error {
	n.sent = append(n.sent, user)
	return n.err
}

func newTestServer(t *testing.T, welcome WelcomeNotifier) *httptest.Server {
	t.Helper()
	return serveEnv(t, openTestDB(t), welcome)
}

func serveEnv(t *testing.T, env testEnv, welcome WelcomeNotifier) *httptest.Server {
	t.Helper()
	tokens, err := auth.NewTokenIssuer("test-secret", "odyssey-starter", time.Hour)
	require.NoError(t, err)
	provider := NewProvider(env.sessions, auth.NewPasswordHasher(bcrypt.MinCost), tokens)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, provider, auth.Middleware{Tokens: tokens}.RequireBearer, welcome)

	r := chi.NewRouter()
	r.Route("/api/v1", h.MountRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string, header ...string) (*http.Response, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

const aliceJSON = `{"username":"alice","email":"alice@example.com","full_name":"Alice A","password":"secret"}`

func TestCreateUserScenario(t *testing.T) {
	welcome := &recordingNotifier{}
	srv := newTestServer(t, welcome)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/users/", aliceJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.IsType(t, float64(0), body["id"])
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "alice@example.com", body["email"])
	assert.Equal(t, "Alice A", body["full_name"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "hashed_password")
	require.Len(t, welcome.sent, 1)
	assert.Equal(t, "alice", welcome.sent[0].Username)

	resp, body = do(t, http.MethodPost, srv.URL+"/api/v1/users/", aliceJSON)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email already registered", body["detail"])
	assert.Len(t, welcome.sent, 1)
}

func TestCreateUserWithoutTrailingSlash(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, _ := do(t, http.MethodPost, srv.URL+"/api/v1/users", aliceJSON)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCreateUserEnqueueFailureIsNotFatal(t *testing.T) {
	srv := newTestServer(t, &recordingNotifier{err: errors.New("redis down")})
	resp, _ := do(t, http.MethodPost, srv.URL+"/api/v1/users/", aliceJSON)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCreateUserValidation(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/users/", `{"username":"al","email":"nope","password":"123"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errs, "username")
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/users/", `{"username":`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/users/", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCreateUserPasswordLimitIsBytes(t *testing.T) {
	srv := newTestServer(t, nil)

	long := strings.Repeat("é", 40)
	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/users/",
		`{"username":"alice","email":"alice@example.com","password":"`+long+`"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "must be at most 72 bytes", errs["password"])

	fits := strings.Repeat("é", 36)
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/users/",
		`{"username":"alice","email":"alice@example.com","password":"`+fits+`"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCreateUserRejectsBlankFields(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/users/",
		`{"username":"    ","email":"   ","password":"secret"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "field required", errs["username"])
	assert.Equal(t, "field required", errs["email"])

	resp, body = do(t, http.MethodPost, srv.URL+"/api/v1/users/",
		`{"username":"  al  ","email":"al@example.com","password":"secret"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	errs, _ = body["errors"].(map[string]any)
	assert.Contains(t, errs, "username")

	resp, body = do(t, http.MethodPost, srv.URL+"/api/v1/users/",
		`{"username":"  carol ","email":" Carol@Example.com ","password":"secret"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "carol", body["username"])
	assert.Equal(t, "carol@example.com", body["email"])
}

func TestStorageFailureIsOpaque500(t *testing.T) {
	env := openTestDB(t)
	srv := serveEnv(t, env, nil)
	require.NoError(t, env.db.Close())

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/v1/users/1", ""},
		{http.MethodPost, "/api/v1/users/", aliceJSON},
		{http.MethodPost, "/api/v1/login/", `{"username":"alice","password":"secret"}`},
	} {
		resp, body := do(t, tc.method, srv.URL+tc.path, tc.body)
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode, tc.path)
		assert.Equal(t, "Internal Error", body["title"])
		assert.NotContains(t, body, "detail")
	}
}

func TestGetUser(t *testing.T) {
	srv := newTestServer(t, nil)
	_, created := do(t, http.MethodPost, srv.URL+"/api/v1/users/", aliceJSON)
	id := int64(created["id"].(float64))

	resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/users/"+jsonNumber(id), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "Alice A", body["full_name"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/v1/users/999999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/v1/users/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginAndMe(t *testing.T) {
	srv := newTestServer(t, nil)
	do(t, http.MethodPost, srv.URL+"/api/v1/users/", aliceJSON)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/login/", `{"username":"alice","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
	assert.Equal(t, "incorrect username or password", body["detail"])

	resp, body = do(t, http.MethodPost, srv.URL+"/api/v1/login/", `{"username":"alice","password":"secret"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "bearer", body["token_type"])
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)

	resp, body = do(t, http.MethodGet, srv.URL+"/api/v1/users/me", "", "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["username"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/v1/users/me", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/login", `{"username":"alice","password":"secret"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListUsersEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	do(t, http.MethodPost, srv.URL+"/api/v1/users/", aliceJSON)
	do(t, http.MethodPost, srv.URL+"/api/v1/users/", `{"username":"bobby","email":"bob@example.com","password":"secret"}`)

	resp, err := http.Get(srv.URL + "/api/v1/users/?skip=1&limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []UserResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "bobby", list[0].Username)

	bad, _ := do(t, http.MethodGet, srv.URL+"/api/v1/users/?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestHello(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/hello", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hello, World!", body["message"])
}

func jsonNumber(id int64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}
