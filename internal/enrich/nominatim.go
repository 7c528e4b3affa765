package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Nominatim's usage policy caps clients at one request per second and
// requires an identifying User-Agent.
const nominatimMinInterval = time.Second

// NominatimClient reverse-geocodes coordinates into a display name.
type NominatimClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// NewNominatimClient creates a rate-limited Nominatim client. The userAgent
// is mandatory.
func NewNominatimClient(baseURL, userAgent string) (*NominatimClient, error) {
	if strings.TrimSpace(userAgent) == "" {
		return nil, errors.New("nominatim: user agent is required by the usage policy")
	}
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	return &NominatimClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *NominatimClient) waitForSlot(ctx context.Context) error {
	c.mu.Lock()
	wait := nominatimMinInterval - time.Since(c.lastRequest)
	if wait < 0 {
		wait = 0
	}
	c.lastRequest = time.Now().Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReverseGeocode resolves (lat, lon) to a human-readable place name.
func (c *NominatimClient) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	if err := c.waitForSlot(ctx); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("format", "jsonv2")
	params.Set("zoom", "14")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/reverse?%s", c.baseURL, params.Encode()), nil)
	if err != nil {
		return "", fmt.Errorf("nominatim: new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("nominatim: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("nominatim: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("nominatim: decode response: %w", err)
	}
	return parsed.DisplayName, nil
}
