package mock

import (
	"context"

	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

// VideoProvider satisfies models.VideoProvider for testing and local dev.
type VideoProvider struct {
	Name_      string
	SearchFunc func(ctx context.Context, topic string) (models.Video, error)
}

func (m *VideoProvider) Name() string { return m.Name_ }

func (m *VideoProvider) Search(ctx context.Context, topic string) (models.Video, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, topic)
	}
	return models.Video{}, nil
}

// NewVideoProvider returns a VideoProvider with sensible default responses.
func NewVideoProvider() *VideoProvider {
	return &VideoProvider{
		Name_: "mock",
		SearchFunc: func(_ context.Context, topic string) (models.Video, error) {
			return models.Video{
				ID:      "mock-video-1",
				Title:   "Lecture: " + topic,
				URL:     "https://videos.example.com/mock-video-1",
				Channel: "Mock University",
			}, nil
		},
	}
}

// ContentProvider satisfies models.ContentProvider for testing and local dev.
type ContentProvider struct {
	Name_          string
	AnalyzeFunc    func(ctx context.Context, video models.Video, topic string) (models.ClassAnalysis, error)
	SynthesizeFunc func(ctx context.Context, analysis models.ClassAnalysis) (models.Assignment, error)
}

func (m *ContentProvider) Name() string { return m.Name_ }

func (m *ContentProvider) Analyze(ctx context.Context, video models.Video, topic string) (models.ClassAnalysis, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, video, topic)
	}
	return models.ClassAnalysis{}, nil
}

func (m *ContentProvider) SynthesizeAssignment(ctx context.Context, analysis models.ClassAnalysis) (models.Assignment, error) {
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, analysis)
	}
	return models.Assignment{}, nil
}

// NewContentProvider returns a ContentProvider with sensible default responses.
func NewContentProvider() *ContentProvider {
	return &ContentProvider{
		Name_: "mock",
		AnalyzeFunc: func(_ context.Context, video models.Video, topic string) (models.ClassAnalysis, error) {
			return models.ClassAnalysis{
				Topic:              topic,
				Video:              video,
				Summary:            "Mock analysis summary for " + topic,
				DiscussionPoints:   []string{"Key idea one", "Key idea two"},
				LearningObjectives: []string{"Understand " + topic},
				Model:              "mock-v1",
			}, nil
		},
		SynthesizeFunc: func(_ context.Context, analysis models.ClassAnalysis) (models.Assignment, error) {
			return models.Assignment{
				Title:        "Assignment: " + analysis.Topic,
				Instructions: "Watch the selected video and answer the questions below.",
				Questions:    []string{"Summarize the main argument.", "Relate it to the class topic."},
				DueGuidance:  "Before the next scheduled class",
			}, nil
		},
	}
}

// NewFailingVideoProvider returns a VideoProvider that always returns the given error.
func NewFailingVideoProvider(err error) *VideoProvider {
	return &VideoProvider{
		Name_: "mock-failing",
		SearchFunc: func(_ context.Context, _ string) (models.Video, error) {
			return models.Video{}, err
		},
	}
}

// NewFailingContentProvider returns a ContentProvider that always returns the given error.
func NewFailingContentProvider(err error) *ContentProvider {
	return &ContentProvider{
		Name_: "mock-failing",
		AnalyzeFunc: func(_ context.Context, _ models.Video, _ string) (models.ClassAnalysis, error) {
			return models.ClassAnalysis{}, err
		},
		SynthesizeFunc: func(_ context.Context, _ models.ClassAnalysis) (models.Assignment, error) {
			return models.Assignment{}, err
		},
	}
}

// NewTimeoutContentProvider returns a ContentProvider that blocks until the
// context is cancelled.
func NewTimeoutContentProvider() *ContentProvider {
	return &ContentProvider{
		Name_: "mock-timeout",
		AnalyzeFunc: func(ctx context.Context, _ models.Video, _ string) (models.ClassAnalysis, error) {
			<-ctx.Done()
			return models.ClassAnalysis{}, models.ErrInferenceTimeout
		},
		SynthesizeFunc: func(ctx context.Context, _ models.ClassAnalysis) (models.Assignment, error) {
			<-ctx.Done()
			return models.Assignment{}, models.ErrInferenceTimeout
		},
	}
}

// Compile-time checks.
var (
	_ models.VideoProvider   = (*VideoProvider)(nil)
	_ models.ContentProvider = (*ContentProvider)(nil)
)
