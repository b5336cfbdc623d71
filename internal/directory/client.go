// Package directory consumes the class/course directory service. The
// directory owns course, class, and enrollment records; this service only
// reads class metadata to validate trigger requests and derive rooms.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

// Sentinel errors for directory client failures.
var (
	ErrClassNotFound        = errors.New("class not found")
	ErrDirectoryUnreachable = errors.New("directory unreachable")
	ErrDirectoryTimeout     = errors.New("directory request timeout")
)

// Client is the interface for reading the class directory.
type Client interface {
	GetClass(ctx context.Context, classID string) (*models.Class, error)
}

// HTTPClient implements Client using the directory's HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new directory HTTP client.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) GetClass(ctx context.Context, classID string) (*models.Class, error) {
	u := fmt.Sprintf("%s/api/v1/classes/%s", c.baseURL, url.PathEscape(classID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrClassNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrDirectoryUnreachable, resp.StatusCode)
	}

	var body struct {
		Data models.Class `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding directory response: %w", err)
	}
	if body.Data.ID == "" {
		return nil, fmt.Errorf("directory returned empty class record")
	}

	return &body.Data, nil
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrDirectoryTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrDirectoryUnreachable, err)
}
