// Package openai implements models.ContentProvider using the OpenAI chat
// completions API with JSON-mode responses.
package openai

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

// Provider implements models.ContentProvider using OpenAI.
type Provider struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	// No client-level timeout: callers bound requests per pipeline stage
	// through the context.
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "openai" }

const analyzeSystemPrompt = `You are an instructional designer. Given a lecture video and a class topic,
produce a JSON object with fields: "summary" (string, plain language, <= 200 words),
"discussion_points" (array of 3-5 strings) and "learning_objectives" (array of 3-5 strings).
Respond with JSON only.`

func (p *Provider) Analyze(ctx context.Context, video models.Video, topic string) (models.ClassAnalysis, error) {
	user := fmt.Sprintf("Class topic: %s\nVideo title: %s\nVideo channel: %s\nVideo description: %s",
		topic, video.Title, video.Channel, video.Description)

	var out struct {
		Summary            string   `json:"summary"`
		DiscussionPoints   []string `json:"discussion_points"`
		LearningObjectives []string `json:"learning_objectives"`
	}
	if err := p.completeJSON(ctx, analyzeSystemPrompt, user, &out); err != nil {
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

const synthesizeSystemPrompt = `You are an instructional designer. Given a content analysis of a lecture video,
produce a JSON object describing a student assignment with fields: "title" (string),
"instructions" (string), "questions" (array of 3-6 strings) and "due_guidance" (string).
Respond with JSON only.`

func (p *Provider) SynthesizeAssignment(ctx context.Context, analysis models.ClassAnalysis) (models.Assignment, error) {
	user := fmt.Sprintf("Topic: %s\nSummary: %s\nLearning objectives: %s",
		analysis.Topic, analysis.Summary, strings.Join(analysis.LearningObjectives, "; "))

	var out models.Assignment
	if err := p.completeJSON(ctx, synthesizeSystemPrompt, user, &out); err != nil {
		return models.Assignment{}, err
	}
	if out.Title == "" || out.Instructions == "" {
		return models.Assignment{}, fmt.Errorf("%w: incomplete assignment", models.ErrInvalidResponse)
	}
	return out, nil
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// completeJSON runs one chat completion and unmarshals the JSON content into out.
func (p *Provider) completeJSON(ctx context.Context, system, user string, out any) error {
	reqBody, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
		Temperature:    0.3,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	u := p.cfg.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", models.ErrProviderUnavailable, resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	if len(chat.Choices) == 0 {
		return fmt.Errorf("%w: no choices", models.ErrInvalidResponse)
	}

	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), out); err != nil {
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
