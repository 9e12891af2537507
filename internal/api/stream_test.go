package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converse-ai/converse/pkg/types"
)

// chunkReader yields its input in fixed-size chunks to exercise carry-over
// across arbitrary read boundaries.
type chunkReader struct {
	data []byte
	size int
	off  int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	end := r.off + r.size
	if end > len(r.data) {
		end = len(r.data)
	}
	n := copy(p, r.data[r.off:end])
	r.off += n
	return n, nil
}

func collectTokens(t *testing.T, raw string, chunkSize int) []string {
	t.Helper()
	var tokens []string
	err := decodeFrames(context.Background(), &chunkReader{data: []byte(raw), size: chunkSize},
		func(token string) { tokens = append(tokens, token) })
	require.NoError(t, err)
	return tokens
}

func TestDecodeFrames_Basic(t *testing.T) {
	raw := "data: {\"content\":\"Hi\"}\n" +
		"data: {\"content\":\" there\"}\n" +
		"data: [DONE]\n"

	tokens := collectTokens(t, raw, 4096)
	assert.Equal(t, []string{"Hi", " there"}, tokens)
}

func TestDecodeFrames_ArbitraryChunkBoundaries(t *testing.T) {
	raw := "data: {\"content\":\"Hello\"}\n" +
		"data: {\"content\":\", \"}\n" +
		"data: {\"content\":\"world\"}\n" +
		"data: [DONE]\n"

	// Every chunk size must produce the same ordered concatenation.
	for size := 1; size <= len(raw); size++ {
		tokens := collectTokens(t, raw, size)
		assert.Equal(t, "Hello, world", strings.Join(tokens, ""), "chunk size %d", size)
	}
}

func TestDecodeFrames_MultiByteRuneSplit(t *testing.T) {
	raw := "data: {\"content\":\"héllo — 世界\"}\ndata: [DONE]\n"

	// Chunk size 1 splits every multi-byte sequence.
	tokens := collectTokens(t, raw, 1)
	assert.Equal(t, "héllo — 世界", strings.Join(tokens, ""))
}

func TestDecodeFrames_MalformedFramesSkipped(t *testing.T) {
	raw := "data: {\"content\":\"a\"}\n" +
		"data: {not json at all\n" +
		"\n" +
		": heartbeat comment\n" +
		"data: {\"content\":\"b\"}\n" +
		"data: [DONE]\n"

	tokens := collectTokens(t, raw, 7)
	assert.Equal(t, []string{"a", "b"}, tokens)
}

func TestDecodeFrames_EOFWithoutSentinel(t *testing.T) {
	raw := "data: {\"content\":\"partial\"}\n"

	tokens := collectTokens(t, raw, 4096)
	assert.Equal(t, []string{"partial"}, tokens)
}

func TestDecodeFrames_NoTokensAfterDone(t *testing.T) {
	raw := "data: {\"content\":\"a\"}\n" +
		"data: [DONE]\n" +
		"data: {\"content\":\"late\"}\n"

	tokens := collectTokens(t, raw, 4096)
	assert.Equal(t, []string{"a"}, tokens)
}

func TestStreamClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chat", r.URL.Path)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"content\":\"Hi\"}\n")
		fmt.Fprint(w, "data: {\"content\":\" there\"}\n")
		fmt.Fprint(w, "data: [DONE]\n")
	}))
	defer srv.Close()

	client := NewStreamClient(srv.URL, "")
	var got strings.Builder
	err := client.Chat(context.Background(), &types.ChatRequest{
		Messages: []types.Message{{Role: types.RoleUser, Content: "Hello"}},
		Model:    "test",
	}, func(token string) { got.WriteString(token) })

	require.NoError(t, err)
	assert.Equal(t, "Hi there", got.String())
}

func TestStreamClient_Chat_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewStreamClient(srv.URL, "")
	err := client.Chat(context.Background(), &types.ChatRequest{Model: "test"}, func(string) {})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
}
