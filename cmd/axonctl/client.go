package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// adminClient is a thin wrapper over the orchestrator's admin HTTP surface
// (GET/POST /v1/...). Address and bearer token come from environment
// variables so axonctl never needs a config file of its own.
type adminClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAdminClient() (*adminClient, error) {
	addr := os.Getenv("AXONCTL_ADDR")
	if addr == "" {
		addr = "http://localhost:8081"
	}
	token := os.Getenv("AXONCTL_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("AXONCTL_TOKEN is required (bearer token for the orchestrator admin API)")
	}
	return &adminClient{
		baseURL: strings.TrimSuffix(addr, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *adminClient) do(method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = strings.NewReader(string(b))
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("orchestrator returned %s: %s", resp.Status, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func printJSON(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to format output:", err)
		return
	}
	fmt.Println(string(b))
}
