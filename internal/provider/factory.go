// Package provider constructs the external AI collaborators: the
// video-search provider and the content-analysis provider.
package provider

import (
	"fmt"

	"github.com/debabrata-png/aipaathsala1-sub000/internal/config"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/provider/mock"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/provider/ollama"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/provider/openai"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/provider/youtube"
	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

// NewVideoProvider constructs the configured video-search provider.
// Called once at server startup.
func NewVideoProvider(cfg config.VideoConfig) (models.VideoProvider, error) {
	switch cfg.Provider {
	case "youtube":
		return youtube.NewProvider(cfg.YouTube), nil
	case "mock":
		return mock.NewVideoProvider(), nil
	default:
		return nil, fmt.Errorf("unknown video provider %q: must be one of youtube, mock", cfg.Provider)
	}
}

// NewContentProvider constructs the configured content-analysis provider.
func NewContentProvider(cfg config.ContentConfig) (models.ContentProvider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "mock":
		return mock.NewContentProvider(), nil
	default:
		return nil, fmt.Errorf("unknown content provider %q: must be one of openai, ollama, mock", cfg.Provider)
	}
}
