package chats

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/odyssey-starter/testing"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, NewProvider(openTestDB(t)))
	r := chi.NewRouter()
	r.Route("/api/v1", h.MountRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, method, url, body string, out any) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestChatEndpoints(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/v1"

	var created ChatDetailResponse
	resp := call(t, http.MethodPost, base+"/chats/", `{}`, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Chat "+created.ID.String(), created.Title)
	assert.Empty(t, created.Messages)

	var msg MessageResponse
	resp = call(t, http.MethodPost, base+"/messages/",
		`{"chat_id":"`+created.ID.String()+`","content":"hello","is_from_ai":false}`, &msg)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, created.ID, msg.ChatID)
	assert.Equal(t, "hello", msg.Content)

	var detail ChatDetailResponse
	resp = call(t, http.MethodGet, base+"/chats/"+created.ID.String(), "", &detail)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, detail.Messages, 1)

	var msgs []MessageResponse
	resp = call(t, http.MethodGet, base+"/chats/"+created.ID.String()+"/messages/?limit=10", "", &msgs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, msgs, 1)

	var renamed ChatResponse
	resp = call(t, http.MethodPut, base+"/chats/"+created.ID.String(), `{"title":"Work"}`, &renamed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Work", renamed.Title)

	var list []ChatResponse
	resp = call(t, http.MethodGet, base+"/chats", "", &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)
	assert.Equal(t, "Work", list[0].Title)

	var deleted DeleteResponse
	resp = call(t, http.MethodDelete, base+"/chats/"+created.ID.String(), "", &deleted)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, deleted.Success)

	var problem map[string]any
	resp = call(t, http.MethodGet, base+"/chats/"+created.ID.String(), "", &problem)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "chat not found", problem["detail"])
}

func TestChatEndpointErrors(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/v1"

	resp := call(t, http.MethodGet, base+"/chats/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = call(t, http.MethodGet, base+"/chats/?skip=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = call(t, http.MethodDelete, base+"/chats/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var problem map[string]any
	resp = call(t, http.MethodPost, base+"/messages", `{"chat_id":"nope","content":""}`, &problem)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	errs, ok := problem["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errs, "chat_id")
	assert.Contains(t, errs, "content")

	resp = call(t, http.MethodPost, base+"/messages",
		`{"chat_id":"`+uuid.NewString()+`","content":"orphan"}`, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = call(t, http.MethodPost, base+"/chats/", `{"title":"`+strings.Repeat("x", 256)+`"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}
