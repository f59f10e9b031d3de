package line

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Method   string
	Path     string
	Auth     string
	RetryKey string
	Body     map[string]any
}

type requestLog struct {
	mu       sync.Mutex
	requests []capturedRequest
}

func (l *requestLog) add(req capturedRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, req)
}

func (l *requestLog) all() []capturedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]capturedRequest(nil), l.requests...)
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *requestLog) {
	t.Helper()
	captured := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := capturedRequest{
			Method:   r.Method,
			Path:     r.URL.EscapedPath(),
			Auth:     r.Header.Get("Authorization"),
			RetryKey: r.Header.Get("X-Line-Retry-Key"),
		}
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			assert.NoError(t, json.Unmarshal(data, &req.Body))
		}
		captured.add(req)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL+"/", "token-123", srv.Client())
	require.NoError(t, err)
	return client, captured
}

func ok(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{}`))
}

func TestClient_Send(t *testing.T) {
	client, captured := newTestServer(t, ok)

	require.NoError(t, client.Send(context.Background(), "G1", "hello"))

	requests := captured.all()
	require.Len(t, requests, 1)
	req := requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v2/bot/message/push", req.Path)
	assert.Equal(t, "Bearer token-123", req.Auth)
	assert.Equal(t, "G1", req.Body["to"])

	messages, ok := req.Body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	message := messages[0].(map[string]any)
	assert.Equal(t, "text", message["type"])
	assert.Equal(t, "hello", message["text"])

	_, err := uuid.Parse(req.RetryKey)
	assert.NoError(t, err, "push carries a retry key")
}

func TestClient_SendRetryKeys(t *testing.T) {
	client, captured := newTestServer(t, ok)

	require.NoError(t, client.Send(context.Background(), "G1", "one"))
	require.NoError(t, client.Send(context.Background(), "G1", "two"))

	requests := captured.all()
	require.Len(t, requests, 2)
	assert.NotEqual(t, requests[0].RetryKey, requests[1].RetryKey)
}

func TestClient_SendTruncates(t *testing.T) {
	client, captured := newTestServer(t, ok)

	require.NoError(t, client.Send(context.Background(), "G1", strings.Repeat("a", MaxTextLength+1)))

	message := captured.all()[0].Body["messages"].([]any)[0].(map[string]any)
	assert.Equal(t, MaxTextLength, utf8.RuneCountInString(message["text"].(string)))
}

func TestClient_Reply(t *testing.T) {
	client, captured := newTestServer(t, ok)

	require.NoError(t, client.Reply(context.Background(), "rt-1", "pong"))

	req := captured.all()[0]
	assert.Equal(t, "/v2/bot/message/reply", req.Path)
	assert.Equal(t, "rt-1", req.Body["replyToken"])
}

func TestClient_Kick(t *testing.T) {
	client, captured := newTestServer(t, ok)

	require.NoError(t, client.Kick(context.Background(), "G1", "U/1"))

	req := captured.all()[0]
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/v2/bot/group/G1/members/U%2F1", req.Path)
	assert.Nil(t, req.Body)
}

func TestClient_DisplayName(t *testing.T) {
	client, captured := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"userId":"U1","displayName":"Mallory","pictureUrl":"https://example.com/p.png"}`))
	})

	name, err := client.DisplayName(context.Background(), "G1", "U1")
	require.NoError(t, err)
	assert.Equal(t, "Mallory", name)
	assert.Equal(t, "/v2/bot/group/G1/member/U1", captured.all()[0].Path)
}

func TestClient_APIError(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Not allowed to kick"}`))
	})

	err := client.Kick(context.Background(), "G1", "U1")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "Not allowed to kick", apiErr.Message)

	_, err = client.DisplayName(context.Background(), "G1", "U1")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "Not allowed to kick", apiErr.Message)

	err = client.Send(context.Background(), "G1", "hello")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)

	err = client.Reply(context.Background(), "rt-1", "pong")
	require.ErrorAs(t, err, &apiErr)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client, err := NewClient(srv.URL, "token-123", srv.Client())
	require.NoError(t, err)
	srv.Close()

	err = client.Send(context.Background(), "G1", "hello")
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))

	long := strings.Repeat("警", MaxTextLength+10)
	out := truncate(long, MaxTextLength)
	assert.Equal(t, MaxTextLength, utf8.RuneCountInString(out))
	assert.True(t, strings.HasSuffix(out, "…"))
}
