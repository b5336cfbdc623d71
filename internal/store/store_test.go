package store_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/debabrata-png/aipaathsala1-sub000/internal/store"
	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("paathsala_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

// defaultTenantID returns the UUID of the seeded default tenant.
func defaultTenantID(t *testing.T, s store.Store) uuid.UUID {
	t.Helper()
	tenant, err := s.GetDefaultTenant(context.Background())
	require.NoError(t, err)
	return tenant.ID
}

func newQueuedJob(tenantID uuid.UUID, classID string) *models.AnalysisJob {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.AnalysisJob{
		ID:          uuid.New(),
		TenantID:    tenantID,
		ClassID:     classID,
		CourseCode:  "CS101",
		Topic:       "Operating Systems: Scheduling",
		Status:      models.JobStatusQueued,
		RequestedBy: "teacher-1",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// --- Tenant Tests ---

func TestGetDefaultTenant(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	tenant, err := s.GetDefaultTenant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "default", tenant.Name)
	assert.Equal(t, "default", tenant.Slug)
	assert.NotEqual(t, uuid.Nil, tenant.ID)
}

// --- API Key Tests ---

func TestAPIKey_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      "test-key",
		KeyHash:   "bcrypt-hash-here",
		KeyPrefix: "pk_abcde",
		Scopes:    []string{"read", "write"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.CreateAPIKey(ctx, key)
	require.NoError(t, err)

	keys, err := s.GetAPIKeyByPrefix(ctx, "pk_abcde")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, "test-key", keys[0].Name)
	assert.Equal(t, []string{"read", "write"}, keys[0].Scopes)
}

func TestAPIKey_RevokeHidesKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      "to-revoke",
		KeyHash:   "hash",
		KeyPrefix: "pk_gone1",
		Scopes:    []string{"read"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	require.NoError(t, s.RevokeAPIKey(ctx, key.ID, tenantID))

	keys, err := s.GetAPIKeyByPrefix(ctx, "pk_gone1")
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Revoking again reports not found
	err = s.RevokeAPIKey(ctx, key.ID, tenantID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Job Tests ---

func TestCreateJob_AndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	job := newQueuedJob(tenantID, "class-1")
	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJob(ctx, job.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, models.JobStatusQueued, got.Status)
	assert.Nil(t, got.Result)
	assert.Nil(t, got.ErrorDetail)
}

func TestCreateJob_SecondActiveRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	require.NoError(t, s.CreateJob(ctx, newQueuedJob(tenantID, "class-1")))

	err := s.CreateJob(ctx, newQueuedJob(tenantID, "class-1"))
	assert.ErrorIs(t, err, store.ErrDuplicateKey)

	// A different class is unaffected
	require.NoError(t, s.CreateJob(ctx, newQueuedJob(tenantID, "class-2")))
}

func TestCreateJob_AllowedAfterTerminal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	first := newQueuedJob(tenantID, "class-1")
	require.NoError(t, s.CreateJob(ctx, first))

	_, err := s.UpdateJobStatus(ctx, first.ID, models.JobStatusFailed,
		store.WithErrorDetail("video search: no results"))
	require.NoError(t, err)

	// Terminal job frees the class slot
	require.NoError(t, s.CreateJob(ctx, newQueuedJob(tenantID, "class-1")))
}

func TestCreateJob_ConcurrentOneWinner(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.CreateJob(ctx, newQueuedJob(tenantID, "class-race"))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, store.ErrDuplicateKey)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestGetActiveJob(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	_, err := s.GetActiveJob(ctx, tenantID, "class-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	job := newQueuedJob(tenantID, "class-1")
	require.NoError(t, s.CreateJob(ctx, job))

	active, err := s.GetActiveJob(ctx, tenantID, "class-1")
	require.NoError(t, err)
	assert.Equal(t, job.ID, active.ID)

	// Terminal jobs are not active
	_, err = s.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed,
		store.WithErrorDetail("boom"))
	require.NoError(t, err)

	_, err = s.GetActiveJob(ctx, tenantID, "class-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetLatestJob(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	first := newQueuedJob(tenantID, "class-1")
	require.NoError(t, s.CreateJob(ctx, first))
	_, err := s.UpdateJobStatus(ctx, first.ID, models.JobStatusFailed,
		store.WithErrorDetail("boom"))
	require.NoError(t, err)

	second := newQueuedJob(tenantID, "class-1")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	second.UpdatedAt = second.CreatedAt
	require.NoError(t, s.CreateJob(ctx, second))

	latest, err := s.GetLatestJob(ctx, tenantID, "class-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestUpdateJobStatus_HappyPath(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	job := newQueuedJob(tenantID, "class-1")
	require.NoError(t, s.CreateJob(ctx, job))

	for _, status := range []string{
		models.JobStatusSearching,
		models.JobStatusAnalyzing,
		models.JobStatusGenerating,
	} {
		updated, err := s.UpdateJobStatus(ctx, job.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}

	result := &models.AnalysisResult{
		Video:   models.Video{ID: "vid-1", Title: "Scheduling Basics", URL: "https://example.com/v/1"},
		Summary: "Round-robin and priority scheduling.",
	}
	completed, err := s.UpdateJobStatus(ctx, job.ID, models.JobStatusCompleted,
		store.WithResult(result))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, completed.Status)
	require.NotNil(t, completed.Result)
	assert.Equal(t, "vid-1", completed.Result.Video.ID)
}

func TestUpdateJobStatus_IllegalTransition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	job := newQueuedJob(tenantID, "class-1")
	require.NoError(t, s.CreateJob(ctx, job))

	// queued cannot jump straight to generating
	_, err := s.UpdateJobStatus(ctx, job.ID, models.JobStatusGenerating)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	// terminal jobs never move
	_, err = s.UpdateJobStatus(ctx, job.ID, models.JobStatusFailed,
		store.WithErrorDetail("boom"))
	require.NoError(t, err)
	_, err = s.UpdateJobStatus(ctx, job.ID, models.JobStatusSearching)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	// the failed update must not have been applied twice
	got, err := s.GetJob(ctx, job.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
}

func TestUpdateJobStatus_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.UpdateJobStatus(context.Background(), uuid.New(), models.JobStatusSearching)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateJobStatus_ConcurrentSingleWinner(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	job := newQueuedJob(tenantID, "class-1")
	require.NoError(t, s.CreateJob(ctx, job))

	const racers = 6
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.UpdateJobStatus(ctx, job.ID, models.JobStatusSearching)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, store.ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestListStaleJobs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	stuck := newQueuedJob(tenantID, "class-stuck")
	require.NoError(t, s.CreateJob(ctx, stuck))
	_, err := s.UpdateJobStatus(ctx, stuck.ID, models.JobStatusSearching)
	require.NoError(t, err)

	fresh := newQueuedJob(tenantID, "class-fresh")
	require.NoError(t, s.CreateJob(ctx, fresh))

	done := newQueuedJob(tenantID, "class-done")
	require.NoError(t, s.CreateJob(ctx, done))
	_, err = s.UpdateJobStatus(ctx, done.ID, models.JobStatusFailed,
		store.WithErrorDetail("boom"))
	require.NoError(t, err)

	// Age the stuck and terminal jobs past the cutoff.
	for _, id := range []uuid.UUID{stuck.ID, done.ID} {
		_, err := pool.Exec(ctx,
			`UPDATE analysis_jobs SET updated_at = now() - interval '1 hour' WHERE id = $1`, id)
		require.NoError(t, err)
	}

	stale, err := s.ListStaleJobs(ctx, time.Now().UTC().Add(-10*time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1, "only aged non-terminal jobs qualify")
	assert.Equal(t, stuck.ID, stale[0].ID)
	assert.Equal(t, models.JobStatusSearching, stale[0].Status)
}

// --- Room Event Tests ---

func chatEvent(roomID, text string) *models.RoomEvent {
	payload, _ := json.Marshal(models.ChatPayload{Text: text})
	return &models.RoomEvent{
		ID:         uuid.New(),
		RoomID:     roomID,
		Kind:       models.EventKindChatMessage,
		SenderID:   "user-1",
		SenderRole: "student",
		Payload:    payload,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestAppendRoomEvent_AssignsMonotoneSeq(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	first := chatEvent("room:a", "hello")
	second := chatEvent("room:a", "world")

	require.NoError(t, s.AppendRoomEvent(ctx, first))
	require.NoError(t, s.AppendRoomEvent(ctx, second))

	assert.Greater(t, first.Seq, int64(0))
	assert.Greater(t, second.Seq, first.Seq)
}

func TestListRoomEvents_ChronologicalWithLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendRoomEvent(ctx, chatEvent("room:a", "message")))
	}
	require.NoError(t, s.AppendRoomEvent(ctx, chatEvent("room:b", "other room")))

	events, err := s.ListRoomEvents(ctx, "room:a", 3)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Most recent 3, oldest first
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq)
	}
	for _, e := range events {
		assert.Equal(t, "room:a", e.RoomID)
	}
}

func TestListRoomEvents_EmptyRoom(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	events, err := s.ListRoomEvents(context.Background(), "room:empty", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
