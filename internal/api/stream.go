package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/converse-ai/converse/internal/logging"
	"github.com/converse-ai/converse/pkg/types"
)

// doneSentinel terminates the token stream.
var doneSentinel = []byte("[DONE]")

// TokenFunc receives each decoded token payload in arrival order.
type TokenFunc func(token string)

// StreamClient talks to the streaming chat endpoint. The response is a
// sequence of newline-delimited frames `data: {"content": <string>}`
// terminated by `data: [DONE]`.
type StreamClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewStreamClient creates a stream client for the given backend.
func NewStreamClient(baseURL, apiKey string) *StreamClient {
	return &StreamClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			// No overall timeout: streams are long-lived. Cancellation
			// comes from the request context.
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// Chat opens the streaming request and invokes onToken for every frame
// until the [DONE] sentinel. Malformed frames are skipped, not fatal. On
// error after partial content, the returned error is a *StreamError
// carrying what was already streamed.
func (c *StreamClient) Chat(ctx context.Context, req *types.ChatRequest, onToken TokenFunc) error {
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	return decodeFrames(ctx, resp.Body, onToken)
}

// decodeFrames reads the token stream. Chunk boundaries may split frames
// or multi-byte characters, so bytes are accumulated until a full line is
// available before decoding.
func decodeFrames(ctx context.Context, r io.Reader, onToken TokenFunc) error {
	log := logging.Component("stream")

	var partial strings.Builder
	var carry []byte
	buf := make([]byte, 4096)

	flushLines := func(data []byte, final bool) error {
		carry = append(carry, data...)
		for {
			i := bytes.IndexByte(carry, '\n')
			if i < 0 {
				if final && len(carry) > 0 {
					line := carry
					carry = nil
					return handleLine(line, onToken, &partial, log)
				}
				return nil
			}
			line := carry[:i]
			carry = carry[i+1:]
			if err := handleLine(line, onToken, &partial, log); err != nil {
				return err
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return &StreamError{Partial: partial.String(), Err: ctx.Err()}
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			if ferr := flushLines(buf[:n], false); ferr != nil {
				if ferr == errStreamDone {
					return nil
				}
				return ferr
			}
		}
		if err == io.EOF {
			if ferr := flushLines(nil, true); ferr != nil && ferr != errStreamDone {
				return ferr
			}
			return nil
		}
		if err != nil {
			return &StreamError{Partial: partial.String(), Err: err}
		}
	}
}

// errStreamDone is the internal signal that the [DONE] sentinel arrived.
var errStreamDone = fmt.Errorf("stream done")

// handleLine decodes a single frame line. Blank lines and unknown fields
// are tolerated; malformed JSON is skipped.
func handleLine(line []byte, onToken TokenFunc, partial *strings.Builder, log zerolog.Logger) error {
	line = bytes.TrimRight(line, "\r")
	if len(bytes.TrimSpace(line)) == 0 {
		return nil
	}

	data, ok := bytes.CutPrefix(line, []byte("data:"))
	if !ok {
		return nil // Ignore non-data fields (id:, event:, comments)
	}
	data = bytes.TrimSpace(data)

	if bytes.Equal(data, doneSentinel) {
		return errStreamDone
	}

	var frame types.StreamFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Debug().Msg("skipping malformed frame")
		return nil
	}
	if frame.Content != "" {
		partial.WriteString(frame.Content)
		onToken(frame.Content)
	}
	return nil
}
