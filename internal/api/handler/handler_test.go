package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	mw "github.com/debabrata-png/aipaathsala1-sub000/internal/api/middleware"
	"github.com/debabrata-png/aipaathsala1-sub000/internal/store"
	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

// testStore is an in-memory store.Store shared by the handler tests. It
// mirrors the database semantics the handlers rely on: one active job per
// class, legal status transitions only, and per-room monotone sequence
// numbers.
type testStore struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]*models.AnalysisJob
	keys   map[uuid.UUID]*models.APIKey
	events map[string][]*models.RoomEvent
	seqs   map[string]int64

	pingErr error
}

func newTestStore() *testStore {
	return &testStore{
		jobs:   make(map[uuid.UUID]*models.AnalysisJob),
		keys:   make(map[uuid.UUID]*models.APIKey),
		events: make(map[string][]*models.RoomEvent),
		seqs:   make(map[string]int64),
	}
}

func (s *testStore) Ping(_ context.Context) error { return s.pingErr }

func (s *testStore) GetDefaultTenant(_ context.Context) (*models.Tenant, error) {
	return nil, store.ErrNotFound
}

func (s *testStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix {
			copied := *k
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *testStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }

func (s *testStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *key
	s.keys[key.ID] = &copied
	return nil
}

func (s *testStore) ListAPIKeys(_ context.Context, tenantID uuid.UUID) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.TenantID == tenantID {
			copied := *k
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *testStore) RevokeAPIKey(_ context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok || k.TenantID != tenantID {
		return store.ErrNotFound
	}
	delete(s.keys, id)
	return nil
}

func (s *testStore) CreateJob(_ context.Context, j *models.AnalysisJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.jobs {
		if existing.TenantID == j.TenantID && existing.ClassID == j.ClassID &&
			!models.IsTerminal(existing.Status) {
			return store.ErrDuplicateKey
		}
	}
	copied := *j
	s.jobs[j.ID] = &copied
	return nil
}

func (s *testStore) GetJob(_ context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	copied := *j
	return &copied, nil
}

func (s *testStore) GetActiveJob(_ context.Context, tenantID uuid.UUID, classID string) (*models.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.TenantID == tenantID && j.ClassID == classID && !models.IsTerminal(j.Status) {
			copied := *j
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *testStore) GetLatestJob(_ context.Context, tenantID uuid.UUID, classID string) (*models.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.AnalysisJob
	for _, j := range s.jobs {
		if j.TenantID != tenantID || j.ClassID != classID {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
			latest = j
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *testStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status string, opts ...store.JobUpdateOption) (*models.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !models.CanTransition(j.Status, status) {
		return nil, store.ErrInvalidTransition
	}
	j.Status = status
	j.UpdatedAt = time.Now().UTC()
	update := store.ResolveJobUpdate(opts...)
	if update.Result != nil {
		j.Result = update.Result
	}
	if update.ErrorDetail != nil {
		j.ErrorDetail = update.ErrorDetail
	}
	copied := *j
	return &copied, nil
}

func (s *testStore) ListStaleJobs(_ context.Context, _ time.Time) ([]*models.AnalysisJob, error) {
	return nil, nil
}

func (s *testStore) AppendRoomEvent(_ context.Context, event *models.RoomEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs[event.RoomID]++
	event.Seq = s.seqs[event.RoomID]
	copied := *event
	s.events[event.RoomID] = append(s.events[event.RoomID], &copied)
	return nil
}

func (s *testStore) ListRoomEvents(_ context.Context, roomID string, limit int) ([]*models.RoomEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.events[roomID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]*models.RoomEvent, len(all))
	for i, e := range all {
		copied := *e
		out[i] = &copied
	}
	return out, nil
}

var _ store.Store = (*testStore)(nil)

// testCache is the in-memory cache.Cache used by the handler tests.
type testCache struct {
	mu       sync.Mutex
	data     map[string][]byte
	statuses map[uuid.UUID]string
	pingErr  error
}

func newTestCache() *testCache {
	return &testCache{data: make(map[string][]byte), statuses: make(map[uuid.UUID]string)}
}

func (c *testCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *testCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *testCache) Ping(_ context.Context) error { return c.pingErr }

func (c *testCache) SetJobStatus(_ context.Context, jobID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[jobID] = status
	return nil
}

func (c *testCache) GetJobStatus(_ context.Context, jobID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[jobID]
	return s, ok, nil
}

func (c *testCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// newRequest builds a request carrying the tenant context and chi URL params,
// the shape requests have after the router and auth middleware ran.
func newRequest(method, target string, body io.Reader, tenantID uuid.UUID, params map[string]string) *http.Request {
	r := httptest.NewRequest(method, target, body)
	ctx := mw.SetTenantID(r.Context(), tenantID)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// serveWithIdentity runs the handler behind the identity middleware so
// X-User-ID headers reach the handler the same way they do in production.
func serveWithIdentity(h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mw.Identity(h).ServeHTTP(rec, r)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.NoError(t, json.Unmarshal(env.Data, out))
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var env struct {
		Error errorBody `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env.Error
}

func jsonBody(s string) io.Reader { return strings.NewReader(s) }
