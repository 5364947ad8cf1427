package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"merklelog/internal/domain"
)

// RootClient fetches the log's current (root, size) over HTTP. It is the
// watcher's only inbound dependency on the service.
type RootClient struct {
	base   string
	client *http.Client
}

func NewRootClient(baseURL string, timeout time.Duration) (*RootClient, error) {
	if baseURL == "" {
		return nil, errors.New("base url is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RootClient{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (c *RootClient) FetchRoot(ctx context.Context) (domain.RootResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/root", nil)
	if err != nil {
		return domain.RootResponse{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.RootResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.RootResponse{}, fmt.Errorf("unexpected status %d from %s/root", resp.StatusCode, c.base)
	}
	var out domain.RootResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.RootResponse{}, fmt.Errorf("decode root response: %w", err)
	}
	return out, nil
}
