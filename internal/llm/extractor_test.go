package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:   srv.URL,
		APIKey:    "test-key",
		Model:     "test-model",
		MaxTokens: 1024,
	})
}

func messagesReply(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	resp := map[string]any{
		"stop_reason": "end_turn",
		"content":     []map[string]any{{"type": "text", "text": text}},
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestExtractPrograms(t *testing.T) {
	t.Parallel()

	var gotVersion, gotKey string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		gotVersion = r.Header.Get("Anthropic-Version")
		gotKey = r.Header.Get("X-API-Key")
		messagesReply(t, w, "```json\n{\"programs\":[{\"name\":\"Youth Soccer\",\"type\":\"soccer\",\"registration_status\":\"open\",\"spots_available\":4}],\"errors\":[]}\n```")
	})

	ext := NewExtractor(client)
	out, err := ext.ExtractPrograms(context.Background(), "https://city.example.com", "--- Page: x ---\ncontent")
	require.NoError(t, err)
	require.Len(t, out.Programs, 1)
	require.Equal(t, "Youth Soccer", out.Programs[0].Name)
	require.Equal(t, "open", out.Programs[0].RegistrationStatus)
	require.NotNil(t, out.Programs[0].SpotsAvailable)
	require.Equal(t, 4, *out.Programs[0].SpotsAvailable)
	require.Equal(t, apiVersion, gotVersion)
	require.Equal(t, "test-key", gotKey)
}

func TestExtractProgramsSkipsNamelessEntries(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		messagesReply(t, w, `{"programs":[{"name":""},{"name":"Lap Swim"}],"errors":[{"reason":"table unreadable"}]}`)
	})

	out, err := NewExtractor(client).ExtractPrograms(context.Background(), "https://x", "text")
	require.NoError(t, err)
	require.Len(t, out.Programs, 1)
	require.Equal(t, "Lap Swim", out.Programs[0].Name)
	require.Len(t, out.Errors, 1)
}

func TestExtractProgramsServiceError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"quota exhausted"}}`))
	})

	_, err := NewExtractor(client).ExtractPrograms(context.Background(), "https://x", "text")
	require.Error(t, err)
	require.Contains(t, err.Error(), "quota exhausted")
}

func TestExtractProgramsUnrecoverableOutput(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		messagesReply(t, w, "Sorry, I cannot help with that.")
	})

	_, err := NewExtractor(client).ExtractPrograms(context.Background(), "https://x", "text")
	require.ErrorIs(t, err, ErrUnparseable)
}
