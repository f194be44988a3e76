package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/pain-radar/internal/config"
	"github.com/fairyhunter13/pain-radar/internal/domain"
)

func aiTestConfig(baseURL string) config.Config {
	return config.Config{
		AppEnv:             "test",
		OpenAIBaseURL:      baseURL,
		OpenAIAPIKey:       "test-key",
		OpenAIModel:        "gpt-4o",
		AIRetryMaxAttempts: 3,
		AIMaxTokens:        4096,
	}
}

func chatFixture(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func TestChatJSON_Success(t *testing.T) {
	var gotReq chatRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(chatFixture(`{"ok":true}`)))
	}))
	defer srv.Close()

	c := NewClient(aiTestConfig(srv.URL))
	content, err := c.ChatJSON(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, content)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-4o", gotReq.Model)
	assert.InDelta(t, 0.2, gotReq.Temperature, 1e-9)
	require.NotNil(t, gotReq.ResponseFormat)
	assert.Equal(t, "json_object", gotReq.ResponseFormat.Type)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
}

func TestChatJSON_MissingAPIKey(t *testing.T) {
	cfg := aiTestConfig("http://localhost:0")
	cfg.OpenAIAPIKey = ""
	c := NewClient(cfg)
	_, err := c.ChatJSON(context.Background(), "s", "u")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestChatJSON_HTTPErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(aiTestConfig(srv.URL))
	_, err := c.ChatJSON(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "HTTP-level failures are not retried")
}

func TestChatJSON_ServerErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(aiTestConfig(srv.URL))
	_, err := c.ChatJSON(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatJSON_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(aiTestConfig(srv.URL))
	_, err := c.ChatJSON(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty choices")
}

func TestChatJSON_ConnectionErrorRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatFixture("ok")))
	}))
	addr := srv.URL
	srv.Close()

	c := NewClient(aiTestConfig(addr))
	start := time.Now()
	_, err := c.ChatJSON(context.Background(), "s", "u")
	require.Error(t, err)
	// Three attempts with 10ms test backoff means at least two waits.
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}
