// Package models contains shared data models used across the codebase.
package models

import (
	"context"
	"errors"
)

// Sentinel errors shared by all provider implementations. ProviderFailure is
// an expected outcome: it terminates the job as failed with an error detail,
// it never crashes the worker.
var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrInferenceTimeout    = errors.New("inference timeout")
	ErrInvalidResponse     = errors.New("provider returned invalid response")
	ErrNoVideoFound        = errors.New("no candidate video found")
)

// VideoProvider locates candidate lecture videos for a class topic.
// Never call a specific provider directly — always inject this interface.
type VideoProvider interface {
	// Search returns the best candidate video for the topic.
	Search(ctx context.Context, topic string) (Video, error)
	// Name returns the provider identifier (e.g., "youtube").
	Name() string
}

// ContentProvider performs AI content analysis and assignment synthesis.
type ContentProvider interface {
	// Analyze produces a pedagogical analysis of a video for a class topic.
	Analyze(ctx context.Context, video Video, topic string) (ClassAnalysis, error)
	// SynthesizeAssignment turns an analysis into a gradable assignment.
	SynthesizeAssignment(ctx context.Context, analysis ClassAnalysis) (Assignment, error)
	// Name returns the provider identifier (e.g., "openai", "ollama").
	Name() string
}

// Video is a candidate lecture video returned by a VideoProvider.
type Video struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Channel     string `json:"channel,omitempty"`
	Description string `json:"description,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

// ClassAnalysis is the output of content analysis on a selected video.
type ClassAnalysis struct {
	Topic              string   `json:"topic"`
	Video              Video    `json:"video"`
	Summary            string   `json:"summary"`
	DiscussionPoints   []string `json:"discussion_points"`
	LearningObjectives []string `json:"learning_objectives"`
	Model              string   `json:"model,omitempty"`
}

// Assignment is the synthesized deliverable handed to students.
type Assignment struct {
	Title        string   `json:"title"`
	Instructions string   `json:"instructions"`
	Questions    []string `json:"questions,omitempty"`
	DueGuidance  string   `json:"due_guidance,omitempty"`
}
