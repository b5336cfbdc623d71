// Package ollama implements models.ContentProvider against a local Ollama
// instance using the generate API with JSON-format output.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/debabrata-png/aipaathsala1-sub000/internal/config"
	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

// Provider implements models.ContentProvider using Ollama.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

func NewProvider(cfg config.OllamaConfig) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "ollama" }

func (p *Provider) Analyze(ctx context.Context, video models.Video, topic string) (models.ClassAnalysis, error) {
	prompt := fmt.Sprintf(`Analyze this lecture video for a class on %q.
Video title: %s
Video description: %s
Reply with a JSON object: {"summary": string, "discussion_points": [string], "learning_objectives": [string]}.`,
		topic, video.Title, video.Description)

	var out struct {
		Summary            string   `json:"summary"`
		DiscussionPoints   []string `json:"discussion_points"`
		LearningObjectives []string `json:"learning_objectives"`
	}
	if err := p.generateJSON(ctx, prompt, &out); err != nil {
		return models.ClassAnalysis{}, err
	}
	if out.Summary == "" {
		return models.ClassAnalysis{}, fmt.Errorf("%w: empty summary", models.ErrInvalidResponse)
	}

	return models.ClassAnalysis{
		Topic:              topic,
		Video:              video,
		Summary:            out.Summary,
		DiscussionPoints:   out.DiscussionPoints,
		LearningObjectives: out.LearningObjectives,
		Model:              p.cfg.Model,
	}, nil
}

func (p *Provider) SynthesizeAssignment(ctx context.Context, analysis models.ClassAnalysis) (models.Assignment, error) {
	prompt := fmt.Sprintf(`Create a student assignment for a class on %q.
Content summary: %s
Learning objectives: %s
Reply with a JSON object: {"title": string, "instructions": string, "questions": [string], "due_guidance": string}.`,
		analysis.Topic, analysis.Summary, strings.Join(analysis.LearningObjectives, "; "))

	var out models.Assignment
	if err := p.generateJSON(ctx, prompt, &out); err != nil {
		return models.Assignment{}, err
	}
	if out.Title == "" || out.Instructions == "" {
		return models.Assignment{}, fmt.Errorf("%w: incomplete assignment", models.ErrInvalidResponse)
	}
	return out, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (p *Provider) generateJSON(ctx context.Context, prompt string, out any) error {
	reqBody, err := json.Marshal(generateRequest{
		Model:  p.cfg.Model,
		Prompt: prompt,
		Format: "json",
		Stream: false,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	u := p.cfg.BaseURL + "/api/generate"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", models.ErrProviderUnavailable, resp.StatusCode)
	}

	var gen generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}

	if err := json.Unmarshal([]byte(gen.Response), out); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	return nil
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
}

var _ models.ContentProvider = (*Provider)(nil)
