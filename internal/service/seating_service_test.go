package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-seating-api/internal/dto"
	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/internal/repository"
	"github.com/noah-isme/exam-seating-api/internal/seating"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
	"github.com/noah-isme/exam-seating-api/pkg/events"
)

type mockPlanRepo struct {
	plans      map[string]*models.SeatingPlan
	createErr  error
	publishErr error
}

func (m *mockPlanRepo) Create(ctx context.Context, exec sqlx.ExtContext, plan *models.SeatingPlan) error {
	if m.createErr != nil {
		return m.createErr
	}
	if plan.ID == "" {
		plan.ID = fmt.Sprintf("plan-%d", len(m.plans)+1)
	}
	copied := *plan
	m.plans[plan.ID] = &copied
	return nil
}

func (m *mockPlanRepo) List(ctx context.Context, filter models.SeatingPlanFilter) ([]models.SeatingPlan, int, error) {
	var list []models.SeatingPlan
	for _, plan := range m.plans {
		if filter.Status != nil && plan.Status != *filter.Status {
			continue
		}
		list = append(list, *plan)
	}
	return list, len(list), nil
}

func (m *mockPlanRepo) FindByID(ctx context.Context, id string) (*models.SeatingPlan, error) {
	plan, ok := m.plans[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *plan
	return &copied, nil
}

func (m *mockPlanRepo) Publish(ctx context.Context, id string, at time.Time) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	plan := m.plans[id]
	plan.Status = models.SeatingPlanStatusPublished
	plan.PublishedAt = &at
	return nil
}

func (m *mockPlanRepo) DeleteDraft(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, ok := m.plans[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.plans, id)
	return nil
}

type mockSeatRepo struct {
	seats map[string][]models.SeatAssignment
}

func (m *mockSeatRepo) InsertBatch(ctx context.Context, exec sqlx.ExtContext, planID string, seats []models.SeatAssignment) error {
	for i := range seats {
		seats[i].SeatingPlanID = planID
	}
	m.seats[planID] = append(m.seats[planID], seats...)
	return nil
}

func (m *mockSeatRepo) ListByPlan(ctx context.Context, planID string) ([]models.SeatAssignment, error) {
	return m.seats[planID], nil
}

func (m *mockSeatRepo) DeleteByPlan(ctx context.Context, exec sqlx.ExtContext, planID string) error {
	delete(m.seats, planID)
	return nil
}

type seatingFixture struct {
	svc       *SeatingService
	plans     *mockPlanRepo
	seats     *mockSeatRepo
	publisher *events.MemoryPublisher
	metrics   *MetricsService
	mock      sqlmock.Sqlmock
}

func newSeatingFixture(t *testing.T, cache proposalCache, cfg SeatingConfig) *seatingFixture {
	db, mock := newTxDB(t)
	rooms := newMockRoomRepo(
		models.Room{ID: "r1", Name: "Room 1", NumBenches: 4, SeatsPerBench: 2},
		models.Room{ID: "r2", Name: "Room 2", NumBenches: 2, SeatsPerBench: 2},
	)
	students := &mockStudentRepo{students: map[string]models.Student{}}
	for i := 1; i <= 4; i++ {
		students.students[fmt.Sprintf("a%d", i)] = models.Student{ID: fmt.Sprintf("a%d", i), Roll: fmt.Sprintf("10-%d", i), Name: "A", Subject: "BBA", Active: true}
		students.students[fmt.Sprintf("b%d", i)] = models.Student{ID: fmt.Sprintf("b%d", i), Roll: fmt.Sprintf("20-%d", i), Name: "B", Subject: "BCA", Active: true}
	}
	students.students["gone"] = models.Student{ID: "gone", Roll: "99-1", Subject: "BBA", Active: false}

	f := &seatingFixture{
		plans:     &mockPlanRepo{plans: map[string]*models.SeatingPlan{}},
		seats:     &mockSeatRepo{seats: map[string][]models.SeatAssignment{}},
		publisher: events.NewMemoryPublisher(),
		metrics:   NewMetricsService(),
		mock:      mock,
	}
	f.svc = NewSeatingService(rooms, students, f.plans, f.seats, seating.NewEngine(), cache, f.publisher, f.metrics, db, nil, nil, cfg)
	return f
}

func collisionRequest() dto.GenerateSeatingRequest {
	return dto.GenerateSeatingRequest{
		Students: []dto.SeatingStudentInput{
			{Roll: "10-1", Subject: "BBA", PreferredRoom: "r1"},
			{Roll: "10-2", Subject: "BBA", PreferredRoom: "r1"},
			{Roll: "20-1", Subject: "BCA"},
			{Roll: "20-2", Subject: "BCA"},
		},
		Rooms: []dto.SeatingRoomInput{
			{RoomID: "r1", RoomName: "Room 1", NumBenches: 1, SeatsPerBench: 2},
			{RoomID: "r2", RoomName: "Room 2", NumBenches: 1, SeatsPerBench: 2},
		},
	}
}

func TestSeatingGenerateFromRoster(t *testing.T) {
	f := newSeatingFixture(t, nil, SeatingConfig{})
	seed := int64(7)

	resp, err := f.svc.Generate(context.Background(), dto.GenerateSeatingRequest{RoomIDs: []string{"r1"}, Seed: &seed})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ProposalID)
	assert.True(t, resp.Success)
	assert.Equal(t, "greedy", resp.Algorithm)
	assert.Len(t, resp.Assignments, 8)
	require.Len(t, resp.RoomSummaries, 1)
	assert.Equal(t, 8, resp.RoomSummaries[0].Total)
	assert.Equal(t, 30*time.Minute, resp.ExpiresAt.Sub(resp.GeneratedAt))
	for _, a := range resp.Assignments {
		assert.NotEqual(t, "99-1", a.Student.Roll)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.seatingRuns.WithLabelValues("greedy", SeatingOutcomeSuccess)))
}

func TestSeatingGenerateSubjectFilter(t *testing.T) {
	f := newSeatingFixture(t, nil, SeatingConfig{})

	resp, err := f.svc.Generate(context.Background(), dto.GenerateSeatingRequest{Subjects: []string{"BBA"}})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.False(t, resp.Diagnostics.Feasible)
	assert.Empty(t, resp.Assignments)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.seatingRuns.WithLabelValues("greedy", SeatingOutcomeInfeasible)))
}

func TestSeatingGenerateEnforcesStudentLimit(t *testing.T) {
	f := newSeatingFixture(t, nil, SeatingConfig{MaxStudents: 3})

	_, err := f.svc.Generate(context.Background(), dto.GenerateSeatingRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSeatingGenerateUnknownRoom(t *testing.T) {
	f := newSeatingFixture(t, nil, SeatingConfig{})
	rooms := NewRoomService(newMockRoomRepo(), nil, nil)
	f.svc.rooms = rooms

	_, err := f.svc.Generate(context.Background(), dto.GenerateSeatingRequest{RoomIDs: []string{"missing"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSeatingSavePersistsDraftAndPublishesEvent(t *testing.T) {
	f := newSeatingFixture(t, nil, SeatingConfig{})
	ctx := context.Background()

	resp, err := f.svc.Generate(ctx, dto.GenerateSeatingRequest{})
	require.NoError(t, err)
	require.True(t, resp.Success)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	plan, err := f.svc.Save(ctx, dto.SaveSeatingRequest{ProposalID: resp.ProposalID, Name: "Midterm"}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.SeatingPlanStatusDraft, plan.Status)
	assert.Equal(t, 8, plan.TotalStudents)
	assert.Equal(t, "user-1", plan.CreatedBy)
	assert.Len(t, f.seats.seats[plan.ID], 8)
	assert.NoError(t, f.mock.ExpectationsWereMet())

	var meta dto.SeatingPlanMeta
	require.NoError(t, json.Unmarshal(plan.Meta, &meta))
	assert.Equal(t, resp.ProposalID, meta.ProposalID)
	assert.Len(t, meta.Rooms, 2)

	published := f.publisher.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.SeatingPlanSaved, published[0].Type)

	_, err = f.svc.Save(ctx, dto.SaveSeatingRequest{ProposalID: resp.ProposalID, Name: "Again"}, "user-1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSeatingSaveRefusesConflictsUnlessAllowed(t *testing.T) {
	f := newSeatingFixture(t, nil, SeatingConfig{})
	ctx := context.Background()

	resp, err := f.svc.Generate(ctx, collisionRequest())
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.True(t, resp.Diagnostics.Feasible)

	_, err = f.svc.Save(ctx, dto.SaveSeatingRequest{ProposalID: resp.ProposalID, Name: "Clash"}, "user-1")
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	plan, err := f.svc.Save(ctx, dto.SaveSeatingRequest{ProposalID: resp.ProposalID, Name: "Clash", AllowConflicts: true}, "user-1")
	require.NoError(t, err)
	assert.False(t, plan.Success)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSeatingSaveRefusesInfeasible(t *testing.T) {
	f := newSeatingFixture(t, nil, SeatingConfig{})
	ctx := context.Background()

	resp, err := f.svc.Generate(ctx, dto.GenerateSeatingRequest{Subjects: []string{"BBA"}})
	require.NoError(t, err)

	_, err = f.svc.Save(ctx, dto.SaveSeatingRequest{ProposalID: resp.ProposalID, Name: "Nope", AllowConflicts: true}, "user-1")
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestSeatingSaveRollsBackOnInsertFailure(t *testing.T) {
	f := newSeatingFixture(t, nil, SeatingConfig{})
	f.plans.createErr = fmt.Errorf("insert failed")
	ctx := context.Background()

	resp, err := f.svc.Generate(ctx, dto.GenerateSeatingRequest{})
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.Save(ctx, dto.SaveSeatingRequest{ProposalID: resp.ProposalID, Name: "Midterm"}, "user-1")
	require.Error(t, err)
	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Empty(t, f.publisher.Events())
}

func TestSeatingSaveRetriesAfterRollback(t *testing.T) {
	f := newSeatingFixture(t, nil, SeatingConfig{})
	f.plans.createErr = fmt.Errorf("insert failed")
	ctx := context.Background()

	resp, err := f.svc.Generate(ctx, dto.GenerateSeatingRequest{})
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.Save(ctx, dto.SaveSeatingRequest{ProposalID: resp.ProposalID, Name: "Midterm"}, "user-1")
	require.Error(t, err)

	f.plans.createErr = nil
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	plan, err := f.svc.Save(ctx, dto.SaveSeatingRequest{ProposalID: resp.ProposalID, Name: "Midterm"}, "user-1")
	require.NoError(t, err)
	assert.Len(t, f.seats.seats[plan.ID], 8)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSeatingConcurrentSavesPersistOnce(t *testing.T) {
	f := newSeatingFixture(t, nil, SeatingConfig{})
	ctx := context.Background()

	resp, err := f.svc.Generate(ctx, dto.GenerateSeatingRequest{})
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	const callers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		saved    int
		notFound int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Save(ctx, dto.SaveSeatingRequest{ProposalID: resp.ProposalID, Name: "Race"}, "user-1")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				saved++
				return
			}
			if appErrors.FromError(err).Code == appErrors.ErrNotFound.Code {
				notFound++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, saved)
	assert.Equal(t, callers-1, notFound)
	assert.Len(t, f.plans.plans, 1)
	assert.Len(t, f.publisher.Events(), 1)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSeatingProposalExpires(t *testing.T) {
	f := newSeatingFixture(t, nil, SeatingConfig{ProposalTTL: time.Minute})
	ctx := context.Background()

	resp, err := f.svc.Generate(ctx, dto.GenerateSeatingRequest{})
	require.NoError(t, err)

	f.svc.store.now = func() time.Time { return resp.GeneratedAt.Add(2 * time.Minute) }
	_, err = f.svc.Save(ctx, dto.SaveSeatingRequest{ProposalID: resp.ProposalID, Name: "Late"}, "user-1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSeatingProposalsLiveInRedisWhenEnabled(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCacheService(repository.NewCacheRepository(client, nil), nil, time.Minute, nil, true)

	f := newSeatingFixture(t, cache, SeatingConfig{ProposalTTL: 5 * time.Minute})
	ctx := context.Background()

	resp, err := f.svc.Generate(ctx, dto.GenerateSeatingRequest{})
	require.NoError(t, err)
	key := proposalKeyPrefix + resp.ProposalID
	require.True(t, mr.Exists(key))
	assert.Equal(t, 5*time.Minute, mr.TTL(key))
	_, inMemory := f.svc.store.Take(resp.ProposalID)
	assert.False(t, inMemory)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err = f.svc.Save(ctx, dto.SaveSeatingRequest{ProposalID: resp.ProposalID, Name: "Cached"}, "user-1")
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))

	_, err = f.svc.Save(ctx, dto.SaveSeatingRequest{ProposalID: resp.ProposalID, Name: "Cached"}, "user-1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSeatingRedisProposalRestoredAfterRefusal(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCacheService(repository.NewCacheRepository(client, nil), nil, time.Minute, nil, true)

	f := newSeatingFixture(t, cache, SeatingConfig{ProposalTTL: 5 * time.Minute})
	ctx := context.Background()

	resp, err := f.svc.Generate(ctx, collisionRequest())
	require.NoError(t, err)
	key := proposalKeyPrefix + resp.ProposalID

	_, err = f.svc.Save(ctx, dto.SaveSeatingRequest{ProposalID: resp.ProposalID, Name: "Clash"}, "user-1")
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.True(t, mr.Exists(key))
	ttl := mr.TTL(key)
	assert.True(t, ttl > 0 && ttl <= 5*time.Minute, "ttl %s", ttl)
}

func TestSeatingGetRecomputesSummaries(t *testing.T) {
	f := newSeatingFixture(t, nil, SeatingConfig{})
	meta, err := json.Marshal(dto.SeatingPlanMeta{
		ProposalID: "p1",
		Rooms: []seating.Room{
			{ID: "r1", Name: "Room 1", NumBenches: 2, SeatsPerBench: 2},
			{ID: "r2", Name: "Room 2", NumBenches: 2, SeatsPerBench: 2},
		},
		Diagnostics: seating.Diagnostics{Feasible: true, Conflicts: []seating.Conflict{}},
	})
	require.NoError(t, err)
	f.plans.plans["plan-1"] = &models.SeatingPlan{ID: "plan-1", Status: models.SeatingPlanStatusDraft, Meta: types.JSONText(meta)}
	f.seats.seats["plan-1"] = []models.SeatAssignment{
		{RoomID: "r1", RoomName: "Room 1", BenchNumber: 1, Position: "left", Roll: "10-1", Subject: "BBA"},
		{RoomID: "r1", RoomName: "Room 1", BenchNumber: 1, Position: "right", Roll: "20-1", Subject: "BCA"},
		{RoomID: "r1", RoomName: "Room 1", BenchNumber: 2, Position: "left", Roll: "10-2", Subject: "BBA"},
	}

	detail, err := f.svc.Get(context.Background(), "plan-1")
	require.NoError(t, err)
	require.NotNil(t, detail.Diagnostics)
	require.Len(t, detail.RoomSummaries, 2)
	assert.Equal(t, 3, detail.RoomSummaries[0].Total)
	assert.Equal(t, "1 to 2", detail.RoomSummaries[0].Subjects[0].Ranges)
	assert.Equal(t, 0, detail.RoomSummaries[1].Total)
}

func TestSeatingGetNotFound(t *testing.T) {
	f := newSeatingFixture(t, nil, SeatingConfig{})

	_, err := f.svc.Get(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSeatingPublishLocksPlan(t *testing.T) {
	f := newSeatingFixture(t, nil, SeatingConfig{})
	f.plans.plans["plan-1"] = &models.SeatingPlan{ID: "plan-1", Status: models.SeatingPlanStatusDraft}

	plan, err := f.svc.Publish(context.Background(), "plan-1", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.SeatingPlanStatusPublished, plan.Status)
	require.NotNil(t, plan.PublishedAt)

	_, err = f.svc.Publish(context.Background(), "plan-1", "admin")
	assert.Equal(t, appErrors.ErrPlanLocked.Code, appErrors.FromError(err).Code)

	err = f.svc.Delete(context.Background(), "plan-1", "admin")
	assert.Equal(t, appErrors.ErrPlanLocked.Code, appErrors.FromError(err).Code)

	published := f.publisher.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.SeatingPlanPublished, published[0].Type)
}

func TestSeatingDeleteDraft(t *testing.T) {
	f := newSeatingFixture(t, nil, SeatingConfig{})
	f.plans.plans["plan-1"] = &models.SeatingPlan{ID: "plan-1", Status: models.SeatingPlanStatusDraft}
	f.seats.seats["plan-1"] = []models.SeatAssignment{{Roll: "10-1"}}

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	require.NoError(t, f.svc.Delete(context.Background(), "plan-1", "admin"))
	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Empty(t, f.plans.plans)
	assert.Empty(t, f.seats.seats)

	published := f.publisher.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.SeatingPlanDeleted, published[0].Type)
}

func TestSeatingListValidatesStatus(t *testing.T) {
	f := newSeatingFixture(t, nil, SeatingConfig{})
	f.plans.plans["a"] = &models.SeatingPlan{ID: "a", Status: models.SeatingPlanStatusDraft}
	f.plans.plans["b"] = &models.SeatingPlan{ID: "b", Status: models.SeatingPlanStatusPublished}

	_, _, err := f.svc.List(context.Background(), dto.SeatingPlanQuery{Status: "ARCHIVED"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	plans, pagination, err := f.svc.List(context.Background(), dto.SeatingPlanQuery{Status: "PUBLISHED"})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "b", plans[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)
}
