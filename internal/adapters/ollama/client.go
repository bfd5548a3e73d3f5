package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chatbot-api/internal/domain"
	"chatbot-api/internal/infra/metrics"
)

const defaultTimeout = 20 * time.Second

// FallbackReply is returned when the stream produced no usable text.
const FallbackReply = "I did not understand."

// Client consumes the streamed /api/generate endpoint.
type Client struct {
	http    *http.Client
	baseURL string
	model   string
	log     zerolog.Logger
}

var _ domain.Generator = (*Client)(nil)

// NewClient creates an inference client for the given base URL and model.
func NewClient(baseURL, model string, timeout time.Duration, logger zerolog.Logger) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		model:   model,
		log:     logger,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// streamChunk is one newline-delimited record of the generate stream.
type streamChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends the prompt and reassembles the reply from the token stream.
// A chunk that fails to decode is skipped; the stream keeps going.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}
	endpoint := c.baseURL + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("ollama", "generate", c.model, start, err)
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("%w: unexpected status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
		metrics.ObserveNetworkRequest("ollama", "generate", c.model, start, err)
		return "", err
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			c.log.Warn().Err(err).Str("chunk", truncate(line, 200)).Msg("ollama: skipping malformed stream chunk")
			metrics.StreamChunksSkipped.Inc()
			continue
		}
		full.WriteString(chunk.Response)
	}
	if err := scanner.Err(); err != nil {
		metrics.ObserveNetworkRequest("ollama", "generate", c.model, start, err)
		return "", fmt.Errorf("%w: read stream: %v", domain.ErrUpstreamUnavailable, err)
	}

	metrics.ObserveNetworkRequest("ollama", "generate", c.model, start, nil)
	metrics.ObserveLLMGeneration(c.model, time.Since(start))

	if full.Len() == 0 {
		return FallbackReply, nil
	}
	return full.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
