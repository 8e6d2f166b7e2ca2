package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slant/internal/config"
	"slant/internal/game"
)

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	err := json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	require.NoError(t, err)
}

func newTestLLM(t *testing.T, handler http.HandlerFunc) (*LLM, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	llm, err := NewLLM(config.OracleConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "test-model",
	}, nil)
	require.NoError(t, err)
	return llm, server
}

func TestLLMIsAligned(t *testing.T) {
	var requests atomic.Int64
	llm, _ := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		chatReply(t, w, `{"assessment": {"is_post_aligned": true, "reason": "fits the vibe"}}`)
	})

	aligned, err := llm.IsAligned(context.Background(), "nice weather today", "everyday chatter")
	require.NoError(t, err)
	assert.True(t, aligned)

	// Identical input is served from the cache.
	aligned, err = llm.IsAligned(context.Background(), "nice weather today", "everyday chatter")
	require.NoError(t, err)
	assert.True(t, aligned)
	assert.Equal(t, int64(1), requests.Load())
}

func TestLLMIsAlignedWrappedJSON(t *testing.T) {
	llm, _ := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "Sure, here is the verdict:\n"+
			`{"assessment": {"is_post_aligned": false, "reason": "off-topic"}}`+"\nHope that helps!")
	})

	aligned, err := llm.IsAligned(context.Background(), "buy my crypto", "everyday chatter")
	require.NoError(t, err)
	assert.False(t, aligned)
}

func TestLLMDominantGroup(t *testing.T) {
	llm, _ := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"assessment": {"dominant_group": "Casual users", "tone_summary": "relaxed"}}`)
	})

	got, err := llm.DominantGroup(context.Background(), []string{"hello"}, map[string]string{"Casual users": "daily life"})
	require.NoError(t, err)
	assert.Equal(t, "Casual users", got)
}

func TestLLMDominantGroupEmptyNameFails(t *testing.T) {
	llm, _ := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"assessment": {"dominant_group": "", "tone_summary": ""}}`)
	})

	_, err := llm.DominantGroup(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestLLMDecide(t *testing.T) {
	llm, _ := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"action": {"action_type": "reply", "post_id": 3, "message": "@User2 agreed"}}`)
	})

	action, err := llm.Decide(context.Background(), ActorView{Username: "User1", Group: "Casual users"})
	require.NoError(t, err)
	assert.Equal(t, game.ActionReply, action.Type)
	assert.Equal(t, float64(3), action.PostID)
	assert.Equal(t, "@User2 agreed", action.Message)
}

func TestLLMRetriesServerErrors(t *testing.T) {
	var requests atomic.Int64
	llm, _ := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		chatReply(t, w, `{"assessment": {"is_post_aligned": true, "reason": ""}}`)
	})

	aligned, err := llm.IsAligned(context.Background(), "retry me", "everyday chatter")
	require.NoError(t, err)
	assert.True(t, aligned)
	assert.Equal(t, int64(3), requests.Load())
}

func TestLLMClientErrorIsPermanent(t *testing.T) {
	var requests atomic.Int64
	llm, _ := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	})

	_, err := llm.IsAligned(context.Background(), "hello", "everyday chatter")
	require.Error(t, err)
	assert.Equal(t, int64(1), requests.Load(), "4xx must not be retried")
}

func TestLLMMalformedReply(t *testing.T) {
	llm, _ := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "I cannot answer that")
	})

	_, err := llm.IsAligned(context.Background(), "hello", "everyday chatter")
	require.Error(t, err)
	assert.Contains(t, fmt.Sprint(err), "malformed oracle reply")
}
