// Package job implements the analysis-job state machine and the worker that
// drives jobs through the pipeline.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/debabrata-png/aipaathsala1-sub000/internal/cache"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/store"
	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

const statusCacheTTL = 30 * time.Minute

// systemSender identifies pipeline-originated room events.
const (
	systemSenderID   = "system"
	systemSenderRole = "system"
)

// Publisher is the broadcast dependency of the state machine.
type Publisher interface {
	Publish(ctx context.Context, event *models.RoomEvent) error
}

// AlreadyActiveError is returned by TryCreate when a job already occupies the
// class slot. A normal contention outcome, not a fault: the caller surfaces
// the active job to the user.
type AlreadyActiveError struct {
	Active *models.AnalysisJob
}

func (e *AlreadyActiveError) Error() string {
	return fmt.Sprintf("analysis already running for class %s (job %s, status %s)",
		e.Active.ClassID, e.Active.ID, e.Active.Status)
}

// Machine validates and applies job status transitions and enforces the
// single-active-job-per-class invariant. All job mutations go through here.
type Machine struct {
	store     store.Store
	cache     cache.Cache
	publisher Publisher
}

// NewMachine creates a job state machine.
func NewMachine(st store.Store, ca cache.Cache, publisher Publisher) *Machine {
	return &Machine{store: st, cache: ca, publisher: publisher}
}

// TryCreate atomically checks the class slot and creates a queued job.
// Exactly one of two racing callers wins; the loser gets AlreadyActiveError
// with a reference to the winning job.
func (m *Machine) TryCreate(ctx context.Context, class *models.Class, requestedBy string) (*models.AnalysisJob, error) {
	now := time.Now().UTC()
	job := &models.AnalysisJob{
		ID:          uuid.New(),
		TenantID:    class.TenantID,
		ClassID:     class.ID,
		CourseCode:  class.CourseCode,
		Topic:       class.Topic,
		Status:      models.JobStatusQueued,
		RequestedBy: requestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := m.store.CreateJob(ctx, job); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			active, lookupErr := m.store.GetActiveJob(ctx, class.TenantID, class.ID)
			if lookupErr != nil {
				// The active job reached a terminal state between our insert
				// and the lookup; the caller may simply retry.
				return nil, fmt.Errorf("class slot contended, retry: %w", lookupErr)
			}
			return nil, &AlreadyActiveError{Active: active}
		}
		return nil, fmt.Errorf("creating job: %w", err)
	}

	m.cacheJob(ctx, job)
	m.publishTransition(ctx, job)

	return job, nil
}

// Advance validates that next is a legal successor of the job's current
// status, persists it along with any payload, and notifies the course room.
// An illegal transition signals a caller bug and is logged as an internal
// error, never absorbed.
func (m *Machine) Advance(ctx context.Context, jobID uuid.UUID, next string, opts ...store.JobUpdateOption) (*models.AnalysisJob, error) {
	job, err := m.store.UpdateJobStatus(ctx, jobID, next, opts...)
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			slog.Error("invalid job transition", "job_id", jobID, "next", next, "error", err)
		}
		return nil, err
	}

	m.cacheJob(ctx, job)
	m.publishTransition(ctx, job)

	return job, nil
}

// GetActive returns the class's in-flight job, or store.ErrNotFound.
func (m *Machine) GetActive(ctx context.Context, tenantID uuid.UUID, classID string) (*models.AnalysisJob, error) {
	return m.store.GetActiveJob(ctx, tenantID, classID)
}

// GetLatest returns the most recent job for the class regardless of status,
// or store.ErrNotFound. The cached snapshot written on each transition is
// consulted first; a miss or unreadable entry falls back to the store.
func (m *Machine) GetLatest(ctx context.Context, tenantID uuid.UUID, classID string) (*models.AnalysisJob, error) {
	key := cache.ClassKey(tenantID, classID)
	if raw, ok, err := m.cache.Get(ctx, key); err == nil && ok {
		var job models.AnalysisJob
		if err := json.Unmarshal(raw, &job); err == nil {
			return &job, nil
		}
		_ = m.cache.Delete(ctx, key)
	}
	return m.store.GetLatestJob(ctx, tenantID, classID)
}

// cacheJob writes the per-job status key and the per-class latest-job
// snapshot. Cache failures are tolerated; the store stays authoritative.
func (m *Machine) cacheJob(ctx context.Context, job *models.AnalysisJob) {
	if err := m.cache.SetJobStatus(ctx, job.ID, job.Status, statusCacheTTL); err != nil {
		slog.Warn("caching job status", "job_id", job.ID, "error", err)
		return
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := m.cache.Set(ctx, cache.ClassKey(job.TenantID, job.ClassID), raw, statusCacheTTL); err != nil {
		slog.Warn("caching class job snapshot", "job_id", job.ID, "error", err)
	}
}

// publishTransition emits the room event for a persisted status change.
// The job record is already durable; a publish failure loses only the live
// notification, so it is logged rather than propagated.
func (m *Machine) publishTransition(ctx context.Context, job *models.AnalysisJob) {
	event, err := transitionEvent(job)
	if err != nil {
		slog.Error("build job event", "job_id", job.ID, "error", err)
		return
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		slog.Error("publish job event", "job_id", job.ID, "status", job.Status, "error", err)
	}
}

// transitionEvent maps a job state to its room event: job_result on
// completion, job_error on failure, job_status otherwise.
func transitionEvent(job *models.AnalysisJob) (*models.RoomEvent, error) {
	var (
		kind    string
		payload any
	)
	switch job.Status {
	case models.JobStatusCompleted:
		kind = models.EventKindJobResult
		result := models.AnalysisResult{}
		if job.Result != nil {
			result = *job.Result
		}
		payload = models.JobResultPayload{JobID: job.ID, ClassID: job.ClassID, Result: result}
	case models.JobStatusFailed:
		kind = models.EventKindJobError
		detail := ""
		if job.ErrorDetail != nil {
			detail = *job.ErrorDetail
		}
		payload = models.JobErrorPayload{JobID: job.ID, ClassID: job.ClassID, ErrorDetail: detail}
	default:
		kind = models.EventKindJobStatus
		payload = models.JobStatusPayload{JobID: job.ID, ClassID: job.ClassID, Status: job.Status}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	return &models.RoomEvent{
		ID:         uuid.New(),
		RoomID:     models.RoomID(job.TenantID, job.CourseCode),
		Kind:       kind,
		SenderID:   systemSenderID,
		SenderRole: systemSenderRole,
		Payload:    raw,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
