package textai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"bookforge/internal/config"
	"bookforge/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.AI{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
		Model:   "test-model",
	}, nil)
	require.NoError(t, err)
	return client
}

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	err := json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	require.NoError(t, err)
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(config.AI{BaseURL: "http://localhost"}, nil)
	require.ErrorIs(t, err, services.ErrConfiguration)
}

func TestCompleteSendsChatRequest(t *testing.T) {
	var seen chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		chatReply(t, w, "  cleaned text  ")
	})

	reply, err := client.Complete(context.Background(), "system prompt", "user text")
	require.NoError(t, err)
	require.Equal(t, "  cleaned text  ", reply)

	require.Equal(t, "test-model", seen.Model)
	require.Len(t, seen.Messages, 2)
	require.Equal(t, "system", seen.Messages[0].Role)
	require.Equal(t, "system prompt", seen.Messages[0].Content)
	require.Equal(t, "user text", seen.Messages[1].Content)
}

func TestCompleteRetriesTransientFailures(t *testing.T) {
	if testing.Short() {
		t.Skip("retry backoff sleeps")
	}
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
			return
		}
		chatReply(t, w, "second try")
	})

	reply, err := client.Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	require.Equal(t, "second try", reply)
	require.Equal(t, 2, attempts)
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	_, err := client.Complete(context.Background(), "s", "u")
	require.ErrorIs(t, err, services.ErrExternalTool)
	require.Equal(t, 1, attempts)
}

func TestCompleteSurfacesEndpointError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		err := json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "model not found"},
		})
		require.NoError(t, err)
	})

	_, err := client.Complete(context.Background(), "s", "u")
	require.ErrorIs(t, err, services.ErrExternalTool)
	require.Contains(t, err.Error(), "model not found")
}
