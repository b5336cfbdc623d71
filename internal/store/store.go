package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrInvalidTransition signals an illegal job status transition. This is a
// caller bug (two workers racing, or a transition attempted on a terminal
// job), not a normal outcome — callers log it as an internal error.
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	// CreateJob inserts a queued analysis job. Returns ErrDuplicateKey when a
	// non-terminal job already occupies the (tenant, class) slot — the single
	// atomic check-and-insert that resolves concurrent trigger races.
	CreateJob(ctx context.Context, job *models.AnalysisJob) error
	GetJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.AnalysisJob, error)
	// GetActiveJob returns the one non-terminal job for the class, or ErrNotFound.
	GetActiveJob(ctx context.Context, tenantID uuid.UUID, classID string) (*models.AnalysisJob, error)
	// GetLatestJob returns the most recent job for the class regardless of
	// status, or ErrNotFound.
	GetLatestJob(ctx context.Context, tenantID uuid.UUID, classID string) (*models.AnalysisJob, error)
	// UpdateJobStatus applies a transition as a single conditional update:
	// the row changes only if its current status is a legal predecessor of the
	// new one. Returns ErrInvalidTransition otherwise, ErrNotFound for an
	// unknown job.
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) (*models.AnalysisJob, error)
	// ListStaleJobs returns non-terminal jobs whose last status change is
	// older than cutoff, across all tenants. Input to the orphan sweep.
	ListStaleJobs(ctx context.Context, cutoff time.Time) ([]*models.AnalysisJob, error)

	// AppendRoomEvent durably appends an event to the room's message log and
	// assigns its Seq. Exactly one append per event.
	AppendRoomEvent(ctx context.Context, event *models.RoomEvent) error
	// ListRoomEvents returns the most recent limit events for a room in
	// ascending (oldest first) order.
	ListRoomEvents(ctx context.Context, roomID string, limit int) ([]*models.RoomEvent, error)
}

// JobUpdate is the optional payload carried by a status transition: a result
// on completion, an error detail on failure.
type JobUpdate struct {
	ErrorDetail *string
	Result      *models.AnalysisResult
}

type JobUpdateOption func(*JobUpdate)

func WithErrorDetail(detail string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.ErrorDetail = &detail
	}
}

func WithResult(result *models.AnalysisResult) JobUpdateOption {
	return func(p *JobUpdate) {
		p.Result = result
	}
}

// ResolveJobUpdate folds options into their effective payload.
func ResolveJobUpdate(opts ...JobUpdateOption) JobUpdate {
	var u JobUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}
