package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req api.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Messages) != 1 || len(req.Messages[0].Images) != 1 {
			http.Error(w, "expected one message with one image", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.ChatResponse{
			Model:   req.Model,
			Message: api.Message{Role: "assistant", Content: content},
			Done:    true,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url")
	assert.Error(t, err)
}

func TestAnalyzeImage(t *testing.T) {
	srv := newTestServer(t, `{"labels":[{"name":"cat","confidence":88,"instances":[{"box":{"x":0.1,"y":0.1,"w":0.2,"h":0.2},"confidence":85}]}]}`)

	c, err := NewClient(srv.URL + "/api/chat")
	require.NoError(t, err)

	img := base64.StdEncoding.EncodeToString([]byte("fake-jpeg"))
	labels, err := c.AnalyzeImage(context.Background(), "llava", "find labels", img)
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.Equal(t, "cat", labels[0].Name)
	assert.InDelta(t, 85, labels[0].Instances[0].Confidence, 1e-9)
}

func TestAnalyzeImageNonJSON(t *testing.T) {
	srv := newTestServer(t, "a cat sitting on a sofa")

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	img := base64.StdEncoding.EncodeToString([]byte("fake-jpeg"))
	_, err = c.AnalyzeImage(context.Background(), "llava", "find labels", img)
	assert.Error(t, err)
}

func TestSimpleQueryBadBase64(t *testing.T) {
	srv := newTestServer(t, "ok")

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.SimpleQuery(context.Background(), "llava", "hi", "%%%")
	assert.Error(t, err)
}
