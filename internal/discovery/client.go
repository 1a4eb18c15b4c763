package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LF-108/BestNotes/internal/registry"
)

// defaultLookupTimeout bounds a resolve round trip so a joining client
// never hangs on a dead discovery service.
const defaultLookupTimeout = 5 * time.Second

// Client queries a discovery service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a discovery client for the given base URL
// (e.g. "http://example.com:9000"). Timeout zero uses the default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Resolve looks up a host username and returns its session endpoint.
// Unknown hosts yield registry.ErrHostNotFound.
func (c *Client) Resolve(ctx context.Context, username string) (registry.Registration, error) {
	var reg registry.Registration
	endpoint := c.baseURL + "/resolve/" + url.PathEscape(username)
	if err := c.get(ctx, endpoint, &reg); err != nil {
		return registry.Registration{}, err
	}
	return reg, nil
}

// Hosts lists the currently registered host names.
func (c *Client) Hosts(ctx context.Context) ([]string, error) {
	var data struct {
		Hosts []string `json:"hosts"`
	}
	if err := c.get(ctx, c.baseURL+"/hosts", &data); err != nil {
		return nil, err
	}
	return data.Hosts, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("discovery request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return registry.ErrHostNotFound
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("discovery response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		return fmt.Errorf("discovery error: %s", env.Error)
	}
	return json.Unmarshal(env.Data, out)
}
