package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusQueued     = "queued"
	JobStatusSearching  = "searching"
	JobStatusAnalyzing  = "analyzing"
	JobStatusGenerating = "generating"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// legalTransitions is the full set of allowed status successors.
// Terminal statuses (completed, failed) have no successors.
var legalTransitions = map[string][]string{
	JobStatusQueued:     {JobStatusSearching},
	JobStatusSearching:  {JobStatusAnalyzing, JobStatusFailed},
	JobStatusAnalyzing:  {JobStatusGenerating, JobStatusFailed},
	JobStatusGenerating: {JobStatusCompleted, JobStatusFailed},
}

// CanTransition reports whether moving a job from one status to another is legal.
func CanTransition(from, to string) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// LegalPredecessors returns the statuses from which a job may move to the
// given status. Used by the store to apply transitions as a single
// conditional update.
func LegalPredecessors(to string) []string {
	var from []string
	for status, nexts := range legalTransitions {
		for _, next := range nexts {
			if next == to {
				from = append(from, status)
			}
		}
	}
	return from
}

// IsTerminal reports whether a status permits no further transitions.
func IsTerminal(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// ActiveStatuses are the statuses that occupy the one job slot per class.
func ActiveStatuses() []string {
	return []string{JobStatusQueued, JobStatusSearching, JobStatusAnalyzing, JobStatusGenerating}
}

// AnalysisJob tracks one run of the AI analysis pipeline for a scheduled class.
// The API returns the job on POST /api/v1/classes/{classID}/analysis; live status
// transitions are pushed to the course room, and GET polls remain available as
// the recovery path. At most one non-terminal job may exist per (tenant, class);
// terminal jobs are kept as history and a new job may be created later.
type AnalysisJob struct {
	ID          uuid.UUID       `db:"id"           json:"id"`
	TenantID    uuid.UUID       `db:"tenant_id"    json:"tenant_id"`
	ClassID     string          `db:"class_id"     json:"class_id"`
	CourseCode  string          `db:"course_code"  json:"course_code"`
	Topic       string          `db:"topic"        json:"topic"`
	Status      string          `db:"status"       json:"status"`
	RequestedBy string          `db:"requested_by" json:"requested_by"`
	Result      *AnalysisResult `db:"result"       json:"result,omitempty"`
	ErrorDetail *string         `db:"error_detail" json:"error_detail,omitempty"`
	CreatedAt   time.Time       `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"   json:"updated_at"`
}

// AnalysisResult is the final payload of a completed job: the selected video,
// what the content analysis produced, and the synthesized assignment.
type AnalysisResult struct {
	Video              Video      `json:"video"`
	Summary            string     `json:"summary"`
	DiscussionPoints   []string   `json:"discussion_points,omitempty"`
	LearningObjectives []string   `json:"learning_objectives,omitempty"`
	Assignment         Assignment `json:"assignment"`
	Provider           string     `json:"provider"`
	Model              string     `json:"model,omitempty"`
}
