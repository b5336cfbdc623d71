// Package youtube implements models.VideoProvider against the YouTube Data
// API v3 search endpoint.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/debabrata-png/aipaathsala1-sub000/internal/config"
	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

const searchTimeout = 30 * time.Second

// Provider implements models.VideoProvider using the YouTube Data API.
type Provider struct {
	cfg    config.YouTubeConfig
	client *http.Client
}

func NewProvider(cfg config.YouTubeConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: searchTimeout},
	}
}

func (p *Provider) Name() string { return "youtube" }

// Search queries for educational videos matching the class topic and returns
// the top-ranked result. The query is biased toward lecture content.
func (p *Provider) Search(ctx context.Context, topic string) (models.Video, error) {
	params := url.Values{
		"part":              {"snippet"},
		"q":                 {topic + " lecture"},
		"type":              {"video"},
		"videoEmbeddable":   {"true"},
		"safeSearch":        {"strict"},
		"maxResults":        {"5"},
		"order":             {"relevance"},
		"regionCode":        {p.cfg.Region},
		"relevanceLanguage": {"en"},
		"key":               {p.cfg.APIKey},
	}

	u := fmt.Sprintf("%s/search?%s", p.cfg.BaseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.Video{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return models.Video{}, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Video{}, fmt.Errorf("%w: status %d", models.ErrProviderUnavailable, resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Video{}, fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}

	for _, item := range body.Items {
		if item.ID.VideoID == "" {
			continue
		}
		return models.Video{
			ID:          item.ID.VideoID,
			Title:       item.Snippet.Title,
			URL:         "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			Channel:     item.Snippet.ChannelTitle,
			Description: item.Snippet.Description,
		}, nil
	}

	return models.Video{}, models.ErrNoVideoFound
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
}

var _ models.VideoProvider = (*Provider)(nil)
