package planner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OllamaBackend calls a local Ollama server's streaming generate
// endpoint, accumulating the NDJSON response chunks the way
// _call_ollama's requests.post(..., stream=True) loop does. No example
// repo in the corpus ships an Ollama client, so this talks to Ollama's
// documented HTTP API directly over net/http rather than adopting an
// unrelated library just to say a dependency was used.
type OllamaBackend struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	client  *http.Client
}

func NewOllamaBackend(baseURL, model string, timeout time.Duration) *OllamaBackend {
	return &OllamaBackend{BaseURL: baseURL, Model: model, Timeout: timeout, client: &http.Client{}}
}

type ollamaChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (b *OllamaBackend) Call(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":  b.Model,
		"prompt": prompt,
		"stream": true,
	})
	if err != nil {
		return "", fmt.Errorf("planner: ollama backend: encode request: %w", err)
	}

	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, b.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("planner: ollama backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("planner: ollama backend: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("planner: ollama backend: unexpected status %d", resp.StatusCode)
	}

	var out bytes.Buffer
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var chunk ollamaChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		out.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("planner: ollama backend: read stream: %w", err)
	}

	return out.String(), nil
}

func (b *OllamaBackend) Name() string { return "ollama" }
