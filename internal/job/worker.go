package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/debabrata-png/aipaathsala1-sub000/internal/config"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/store"
	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

// Worker drives one job through the pipeline stages, calling the external
// providers and advancing state through the Machine at each stage boundary.
// Run is invoked exactly once per created job, by the TryCreate winner; the
// class-slot invariant guarantees no second worker ever runs for the same
// class while this one is alive.
type Worker struct {
	machine  *Machine
	video    models.VideoProvider
	content  models.ContentProvider
	timeouts config.PipelineConfig
}

// NewWorker creates a pipeline worker.
func NewWorker(machine *Machine, video models.VideoProvider, content models.ContentProvider, timeouts config.PipelineConfig) *Worker {
	return &Worker{machine: machine, video: video, content: content, timeouts: timeouts}
}

// Run executes the pipeline for a queued job: locate a candidate video,
// analyze its content, synthesize an assignment. Each stage is bounded by its
// configured timeout; a provider error or timeout fails the job with an error
// detail and stops — retries are a new user-initiated trigger once the job is
// terminal. Intended to be called on its own goroutine.
func (w *Worker) Run(job *models.AnalysisJob) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in analysis worker", "job_id", job.ID, "error", r)
			w.fail(ctx, job.ID, fmt.Sprintf("panic: %v", r))
		}
	}()

	// Stage: searching. Failed is not a legal successor of queued, so an
	// update failure here leaves the job queued for the reaper to reclaim.
	if _, err := w.machine.Advance(ctx, job.ID, models.JobStatusSearching); err != nil {
		slog.Error("advance to searching", "job_id", job.ID, "error", err)
		return
	}
	video, err := w.searchVideo(ctx, job.Topic)
	if err != nil {
		w.fail(ctx, job.ID, fmt.Sprintf("video search: %v", err))
		return
	}

	// Stage: analyzing
	if _, err := w.machine.Advance(ctx, job.ID, models.JobStatusAnalyzing); err != nil {
		w.abort(ctx, job.ID, models.JobStatusAnalyzing, err)
		return
	}
	analysis, err := w.analyzeContent(ctx, video, job.Topic)
	if err != nil {
		w.fail(ctx, job.ID, fmt.Sprintf("content analysis: %v", err))
		return
	}

	// Stage: generating
	if _, err := w.machine.Advance(ctx, job.ID, models.JobStatusGenerating); err != nil {
		w.abort(ctx, job.ID, models.JobStatusGenerating, err)
		return
	}
	assignment, err := w.synthesize(ctx, analysis)
	if err != nil {
		w.fail(ctx, job.ID, fmt.Sprintf("assignment synthesis: %v", err))
		return
	}

	result := &models.AnalysisResult{
		Video:              video,
		Summary:            analysis.Summary,
		DiscussionPoints:   analysis.DiscussionPoints,
		LearningObjectives: analysis.LearningObjectives,
		Assignment:         assignment,
		Provider:           w.content.Name(),
		Model:              analysis.Model,
	}
	if _, err := w.machine.Advance(ctx, job.ID, models.JobStatusCompleted, store.WithResult(result)); err != nil {
		w.abort(ctx, job.ID, models.JobStatusCompleted, err)
	}
}

// abort handles an Advance failure mid-pipeline. Leaving the job in a
// non-terminal state would hold the class slot until the reaper runs, so the
// job is failed immediately. An invalid transition or a missing job means
// something else already moved the row; there is nothing left to fail.
func (w *Worker) abort(ctx context.Context, jobID uuid.UUID, next string, err error) {
	slog.Error("advance job", "job_id", jobID, "next", next, "error", err)
	if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrNotFound) {
		return
	}
	w.fail(ctx, jobID, fmt.Sprintf("pipeline aborted: could not advance to %s: %v", next, err))
}

func (w *Worker) searchVideo(ctx context.Context, topic string) (models.Video, error) {
	stageCtx, cancel := context.WithTimeout(ctx, w.timeouts.SearchTimeout)
	defer cancel()
	return w.video.Search(stageCtx, topic)
}

func (w *Worker) analyzeContent(ctx context.Context, video models.Video, topic string) (models.ClassAnalysis, error) {
	stageCtx, cancel := context.WithTimeout(ctx, w.timeouts.AnalyzeTimeout)
	defer cancel()
	return w.content.Analyze(stageCtx, video, topic)
}

func (w *Worker) synthesize(ctx context.Context, analysis models.ClassAnalysis) (models.Assignment, error) {
	stageCtx, cancel := context.WithTimeout(ctx, w.timeouts.GenerateTimeout)
	defer cancel()
	return w.content.SynthesizeAssignment(stageCtx, analysis)
}

func (w *Worker) fail(ctx context.Context, jobID uuid.UUID, detail string) {
	if _, err := w.machine.Advance(ctx, jobID, models.JobStatusFailed, store.WithErrorDetail(detail)); err != nil {
		slog.Error("mark job failed", "job_id", jobID, "error", err)
	}
}
