package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chatbot-api/internal/domain"
)

func newStreamServer(t *testing.T, lines []string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(status)
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n"))
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}))
}

func TestGenerateAccumulatesChunks(t *testing.T) {
	srv := newStreamServer(t, []string{
		`{"response":"Hello"}`,
		`{"response":", "}`,
		`{"response":"world"}`,
		`{"response":"","done":true}`,
	}, http.StatusOK)
	defer srv.Close()

	client := NewClient(srv.URL, "llama3", time.Second, zerolog.Nop())
	got, err := client.Generate(context.Background(), "user: hi")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "Hello, world" {
		t.Fatalf("expected Hello, world, got %q", got)
	}
}

func TestGenerateSkipsMalformedChunks(t *testing.T) {
	srv := newStreamServer(t, []string{
		`{"response":"a"}`,
		`garbage`,
		`{"response":"b"}`,
	}, http.StatusOK)
	defer srv.Close()

	var logBuf bytes.Buffer
	client := NewClient(srv.URL, "llama3", time.Second, zerolog.New(&logBuf))
	got, err := client.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "ab" {
		t.Fatalf("expected ab, got %q", got)
	}
	warnings := strings.Count(logBuf.String(), "skipping malformed stream chunk")
	if warnings != 1 {
		t.Fatalf("expected exactly one warning, got %d: %s", warnings, logBuf.String())
	}
}

func TestGenerateEmptyStreamFallback(t *testing.T) {
	srv := newStreamServer(t, nil, http.StatusOK)
	defer srv.Close()

	client := NewClient(srv.URL, "llama3", time.Second, zerolog.Nop())
	got, err := client.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != FallbackReply {
		t.Fatalf("expected fallback %q, got %q", FallbackReply, got)
	}
}

func TestGenerateAllChunksMalformedFallback(t *testing.T) {
	srv := newStreamServer(t, []string{"junk", "{broken"}, http.StatusOK)
	defer srv.Close()

	client := NewClient(srv.URL, "llama3", time.Second, zerolog.Nop())
	got, err := client.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != FallbackReply {
		t.Fatalf("expected fallback %q, got %q", FallbackReply, got)
	}
}

func TestGenerateNon2xxStatus(t *testing.T) {
	srv := newStreamServer(t, nil, http.StatusInternalServerError)
	defer srv.Close()

	client := NewClient(srv.URL, "llama3", time.Second, zerolog.Nop())
	_, err := client.Generate(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
}

func TestGenerateConnectionError(t *testing.T) {
	srv := newStreamServer(t, nil, http.StatusOK)
	srv.Close()

	client := NewClient(srv.URL, "llama3", time.Second, zerolog.Nop())
	_, err := client.Generate(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
}

func TestGenerateCancelledContext(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := NewClient(srv.URL, "llama3", time.Second, zerolog.Nop())
	_, err := client.Generate(ctx, "prompt")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable on cancel, got %v", err)
	}
}
