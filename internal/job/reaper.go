package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/debabrata-png/aipaathsala1-sub000/internal/config"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/store"
	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

// reapGrace is added on top of the summed stage timeouts before a job counts
// as orphaned, so a job at the edge of its last stage is never reaped while
// its worker is still alive.
const reapGrace = time.Minute

// Reaper fails analysis jobs abandoned in a non-terminal state, such as after
// a worker crash or a process restart mid-pipeline. A wedged job holds its
// class slot and blocks every new trigger for that class, so the sweep is what
// guarantees the slot is eventually reclaimed.
type Reaper struct {
	machine  *Machine
	store    store.Store
	maxAge   time.Duration
	interval time.Duration
}

// NewReaper creates a reaper over the machine's store. A job is considered
// orphaned once its last status change is older than the sum of all stage
// timeouts plus a grace period; a live worker always makes progress faster
// than that.
func NewReaper(machine *Machine, st store.Store, timeouts config.PipelineConfig) *Reaper {
	interval := timeouts.ReapInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{
		machine:  machine,
		store:    st,
		maxAge:   timeouts.SearchTimeout + timeouts.AnalyzeTimeout + timeouts.GenerateTimeout + reapGrace,
		interval: interval,
	}
}

// Run sweeps once immediately, then on every tick until ctx is canceled.
// Intended to be called on its own goroutine.
func (r *Reaper) Run(ctx context.Context) {
	r.Sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep fails every job whose last status change is older than maxAge. Each
// job is handled independently; one failure never stops the rest of the pass.
func (r *Reaper) Sweep(ctx context.Context) {
	stale, err := r.store.ListStaleJobs(ctx, time.Now().UTC().Add(-r.maxAge))
	if err != nil {
		slog.Error("list stale jobs", "error", err)
		return
	}

	for _, job := range stale {
		if err := r.reap(ctx, job); err != nil {
			slog.Error("reap stale job", "job_id", job.ID, "status", job.Status, "error", err)
			continue
		}
		slog.Warn("reaped stale job",
			"job_id", job.ID, "class_id", job.ClassID, "stuck_in", job.Status)
	}
}

// reap drives one orphaned job to failed through the machine so the usual
// cache write and room notification happen. Failed is not a legal successor
// of queued, so a queued orphan is stepped through searching first.
func (r *Reaper) reap(ctx context.Context, job *models.AnalysisJob) error {
	if job.Status == models.JobStatusQueued {
		if _, err := r.machine.Advance(ctx, job.ID, models.JobStatusSearching); err != nil {
			return err
		}
	}
	detail := fmt.Sprintf("timed out: no progress since %s", job.UpdatedAt.UTC().Format(time.RFC3339))
	_, err := r.machine.Advance(ctx, job.ID, models.JobStatusFailed, store.WithErrorDetail(detail))
	return err
}
