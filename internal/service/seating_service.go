package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-seating-api/internal/dto"
	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/internal/seating"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
	"github.com/noah-isme/exam-seating-api/pkg/events"
)

const proposalKeyPrefix = "seating:proposal:"

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type seatingRoomSource interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Room, error)
}

type seatingStudentSource interface {
	ListActive(ctx context.Context, subjects []string) ([]models.Student, error)
}

type seatingPlanRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, plan *models.SeatingPlan) error
	List(ctx context.Context, filter models.SeatingPlanFilter) ([]models.SeatingPlan, int, error)
	FindByID(ctx context.Context, id string) (*models.SeatingPlan, error)
	Publish(ctx context.Context, id string, at time.Time) error
	DeleteDraft(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type seatAssignmentRepository interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, planID string, seats []models.SeatAssignment) error
	ListByPlan(ctx context.Context, planID string) ([]models.SeatAssignment, error)
	DeleteByPlan(ctx context.Context, exec sqlx.ExtContext, planID string) error
}

type seatingScheduler interface {
	Schedule(students []seating.Student, rooms []seating.Room, opts seating.Options) seating.Result
}

type proposalCache interface {
	Enabled() bool
	Take(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// SeatingConfig governs generator behaviour.
type SeatingConfig struct {
	ProposalTTL      time.Duration
	DefaultAlgorithm string
	MaxStudents      int
}

// SeatingService runs the seating engine and manages saved plans.
type SeatingService struct {
	rooms     seatingRoomSource
	students  seatingStudentSource
	plans     seatingPlanRepository
	seats     seatAssignmentRepository
	engine    seatingScheduler
	cache     proposalCache
	publisher events.Publisher
	metrics   *MetricsService
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SeatingConfig
	store     *proposalStore
	now       func() time.Time
}

// NewSeatingService wires seating dependencies.
func NewSeatingService(
	rooms seatingRoomSource,
	students seatingStudentSource,
	plans seatingPlanRepository,
	seats seatAssignmentRepository,
	engine seatingScheduler,
	cache proposalCache,
	publisher events.Publisher,
	metrics *MetricsService,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SeatingConfig,
) *SeatingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = seating.NewEngine()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.DefaultAlgorithm == "" {
		cfg.DefaultAlgorithm = string(seating.AlgorithmGreedy)
	}
	if cfg.MaxStudents <= 0 {
		cfg.MaxStudents = 5000
	}
	return &SeatingService{
		rooms:     rooms,
		students:  students,
		plans:     plans,
		seats:     seats,
		engine:    engine,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		tx:        tx,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		store:     newProposalStore(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Generate runs the engine over the requested roster and rooms and caches the result as a
// proposal. Engine diagnostics are part of the response, never an error.
func (s *SeatingService) Generate(ctx context.Context, req dto.GenerateSeatingRequest) (*dto.GenerateSeatingResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid seating generation payload")
	}

	loadStart := time.Now()
	students, err := s.loadStudents(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(students) > s.cfg.MaxStudents {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d students can be seated per request, got %d", s.cfg.MaxStudents, len(students)))
	}
	rooms, err := s.loadRooms(ctx, req)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveDBQuery("seating_roster_load", time.Since(loadStart))

	algorithm := req.Algorithm
	if algorithm == "" {
		algorithm = s.cfg.DefaultAlgorithm
	}
	opts := seating.Options{
		Algorithm:   algorithm,
		Constraints: seating.Constraints{NoSameSubjectBench: true},
		Seed:        req.Seed,
	}
	if req.Constraints.NoSameSubjectBench != nil {
		opts.Constraints.NoSameSubjectBench = *req.Constraints.NoSameSubjectBench
	}

	start := time.Now()
	result := s.engine.Schedule(students, rooms, opts)
	s.metrics.RecordSeatingRun(result, time.Since(start))

	generatedAt := s.now()
	proposal := seatingProposal{
		ID:          uuid.NewString(),
		Result:      result,
		Rooms:       rooms,
		Seed:        req.Seed,
		GeneratedAt: generatedAt,
		ExpiresAt:   generatedAt.Add(s.cfg.ProposalTTL),
	}
	s.saveProposal(ctx, proposal, s.cfg.ProposalTTL)

	s.logger.Info("seating proposal generated",
		zap.String("proposal_id", proposal.ID),
		zap.String("algorithm", string(result.Algorithm)),
		zap.String("outcome", SeatingOutcome(result)),
		zap.Int("students", len(students)),
		zap.Int("rooms", len(rooms)),
		zap.Int("conflicts", len(result.Diagnostics.Conflicts)),
	)

	return &dto.GenerateSeatingResponse{
		ProposalID:    proposal.ID,
		Success:       result.Success,
		Algorithm:     string(result.Algorithm),
		Assignments:   result.Assignments,
		Diagnostics:   result.Diagnostics,
		RoomSummaries: result.RoomSummaries,
		Seed:          req.Seed,
		GeneratedAt:   generatedAt,
		ExpiresAt:     proposal.ExpiresAt,
	}, nil
}

// Save persists a cached proposal as a draft plan and publishes seating.plan.saved.
func (s *SeatingService) Save(ctx context.Context, req dto.SaveSeatingRequest, actorID string) (*models.SeatingPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid save seating payload")
	}
	proposal, ok := s.claimProposal(ctx, req.ProposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	saved := false
	defer func() {
		if !saved {
			s.restoreProposal(ctx, proposal)
		}
	}()
	diagnostics := proposal.Result.Diagnostics
	if !diagnostics.Feasible {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "proposal is infeasible and cannot be saved")
	}
	if diagnostics.Count(seating.ConflictValidation) > 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "proposal failed input validation and cannot be saved")
	}
	if len(diagnostics.Conflicts) > 0 && !req.AllowConflicts {
		return nil, appErrors.Clone(appErrors.ErrConflict, "proposal contains unresolved conflicts")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	metaBytes, marshalErr := json.Marshal(dto.SeatingPlanMeta{
		ProposalID:    proposal.ID,
		Diagnostics:   diagnostics,
		RoomSummaries: proposal.Result.RoomSummaries,
		Rooms:         proposal.Rooms,
		GeneratedAt:   proposal.GeneratedAt,
	})
	if marshalErr != nil {
		return nil, appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode seating metadata")
	}

	plan := &models.SeatingPlan{
		Name:          req.Name,
		Status:        models.SeatingPlanStatusDraft,
		Algorithm:     string(proposal.Result.Algorithm),
		Seed:          proposal.Seed,
		TotalStudents: len(proposal.Result.Assignments),
		Success:       proposal.Result.Success,
		Meta:          types.JSONText(metaBytes),
		CreatedBy:     actorID,
	}
	seats := toSeatModels(proposal.Result.Assignments)

	txStart := time.Now()
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.plans.Create(ctx, tx, plan); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create seating plan")
		return nil, err
	}
	if err = s.seats.InsertBatch(ctx, tx, plan.ID, seats); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist seat assignments")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit seating plan")
		return nil, err
	}
	s.metrics.ObserveDBQuery("seating_plan_save", time.Since(txStart))

	saved = true
	s.publish(ctx, events.SeatingPlanSaved, dto.SeatingPlanSavedEvent{
		PlanID:        plan.ID,
		Name:          plan.Name,
		Algorithm:     plan.Algorithm,
		TotalStudents: plan.TotalStudents,
		Rooms:         len(proposal.Rooms),
		Success:       plan.Success,
		SavedBy:       actorID,
	})
	s.logger.Info("seating plan saved", zap.String("plan_id", plan.ID), zap.Int("seats", len(seats)))
	return plan, nil
}

// List returns saved plans newest first.
func (s *SeatingService) List(ctx context.Context, query dto.SeatingPlanQuery) ([]models.SeatingPlan, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Validation(err, "invalid seating plan query")
	}
	filter := models.SeatingPlanFilter{Search: query.Search, Page: query.Page, PageSize: query.PageSize}
	if query.Status != "" {
		status := models.SeatingPlanStatus(query.Status)
		filter.Status = &status
	}
	plans, total, err := s.plans.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list seating plans")
	}
	return plans, paginationFor(query.Page, query.PageSize, total), nil
}

// Get returns a plan with its seats and room summaries recomputed from the stored seats.
func (s *SeatingService) Get(ctx context.Context, id string) (*dto.SeatingPlanDetail, error) {
	plan, err := s.findPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	seats, err := s.seats.ListByPlan(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load seat assignments")
	}

	models.SortSeats(seats)
	detail := &dto.SeatingPlanDetail{Plan: *plan, Assignments: seats}
	meta, ok := decodePlanMeta(plan.Meta)
	if ok {
		detail.Diagnostics = &meta.Diagnostics
	}
	detail.RoomSummaries = seating.Summarize(planRooms(meta.Rooms, seats), toEngineAssignments(seats))
	return detail, nil
}

// Publish locks a draft plan.
func (s *SeatingService) Publish(ctx context.Context, id, actorID string) (*models.SeatingPlan, error) {
	plan, err := s.findPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Status != models.SeatingPlanStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrPlanLocked, "seating plan is already published")
	}
	at := s.now()
	if err := s.plans.Publish(ctx, id, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPlanLocked, "seating plan is already published")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish seating plan")
	}
	plan.Status = models.SeatingPlanStatusPublished
	plan.PublishedAt = &at
	plan.UpdatedAt = at

	s.publish(ctx, events.SeatingPlanPublished, dto.SeatingPlanStatusEvent{PlanID: id, Status: string(plan.Status), By: actorID})
	return plan, nil
}

// Delete removes a draft plan and its seats.
func (s *SeatingService) Delete(ctx context.Context, id, actorID string) error {
	plan, err := s.findPlan(ctx, id)
	if err != nil {
		return err
	}
	if plan.Status != models.SeatingPlanStatusDraft {
		return appErrors.Clone(appErrors.ErrPlanLocked, "only draft seating plans can be deleted")
	}
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.seats.DeleteByPlan(ctx, tx, id); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete seat assignments")
		return err
	}
	if err = s.plans.DeleteDraft(ctx, tx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrPlanLocked, "only draft seating plans can be deleted")
			return err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete seating plan")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit seating plan deletion")
		return err
	}

	s.publish(ctx, events.SeatingPlanDeleted, dto.SeatingPlanStatusEvent{PlanID: id, Status: "DELETED", By: actorID})
	return nil
}

func (s *SeatingService) findPlan(ctx context.Context, id string) (*models.SeatingPlan, error) {
	plan, err := s.plans.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "seating plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load seating plan")
	}
	return plan, nil
}

func (s *SeatingService) loadStudents(ctx context.Context, req dto.GenerateSeatingRequest) ([]seating.Student, error) {
	if len(req.Students) > 0 {
		students := make([]seating.Student, 0, len(req.Students))
		for _, in := range req.Students {
			students = append(students, seating.Student{Roll: in.Roll, Name: in.Name, Subject: in.Subject, PreferredRoom: in.PreferredRoom})
		}
		return students, nil
	}
	if s.students == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "student roster unavailable")
	}
	roster, err := s.students.ListActive(ctx, req.Subjects)
	if err != nil {
		return nil, err
	}
	students := make([]seating.Student, 0, len(roster))
	for _, st := range roster {
		student := seating.Student{Roll: st.Roll, Name: st.Name, Subject: st.Subject}
		if st.PreferredRoom != nil {
			student.PreferredRoom = *st.PreferredRoom
		}
		students = append(students, student)
	}
	return students, nil
}

func (s *SeatingService) loadRooms(ctx context.Context, req dto.GenerateSeatingRequest) ([]seating.Room, error) {
	if len(req.Rooms) > 0 {
		rooms := make([]seating.Room, 0, len(req.Rooms))
		for _, in := range req.Rooms {
			name := in.RoomName
			if name == "" {
				name = in.RoomID
			}
			rooms = append(rooms, seating.Room{ID: in.RoomID, Name: name, NumBenches: in.NumBenches, SeatsPerBench: in.SeatsPerBench})
		}
		return rooms, nil
	}
	if s.rooms == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "room source unavailable")
	}
	stored, err := s.rooms.ListByIDs(ctx, req.RoomIDs)
	if err != nil {
		return nil, err
	}
	rooms := make([]seating.Room, 0, len(stored))
	for _, r := range stored {
		rooms = append(rooms, seating.Room{ID: r.ID, Name: r.Name, NumBenches: r.NumBenches, SeatsPerBench: r.SeatsPerBench})
	}
	return rooms, nil
}

func (s *SeatingService) publish(ctx context.Context, eventType string, payload interface{}) {
	if err := s.publisher.Publish(ctx, eventType, payload); err != nil {
		s.logger.Warn("failed to publish event", zap.String("event", eventType), zap.Error(err))
	}
}

func (s *SeatingService) saveProposal(ctx context.Context, proposal seatingProposal, ttl time.Duration) {
	if s.cache != nil && s.cache.Enabled() {
		if err := s.cache.Set(ctx, proposalKeyPrefix+proposal.ID, proposal, ttl); err == nil {
			return
		}
		s.logger.Warn("proposal cache write failed, keeping proposal in memory", zap.String("proposal_id", proposal.ID))
	}
	s.store.Save(proposal)
}

// claimProposal removes the proposal from wherever it is held. Only one concurrent caller can
// win a given id.
func (s *SeatingService) claimProposal(ctx context.Context, id string) (seatingProposal, bool) {
	if proposal, ok := s.store.Take(id); ok {
		return proposal, true
	}
	if s.cache == nil || !s.cache.Enabled() {
		return seatingProposal{}, false
	}
	var proposal seatingProposal
	hit, err := s.cache.Take(ctx, proposalKeyPrefix+id, &proposal)
	if err != nil || !hit {
		return seatingProposal{}, false
	}
	return proposal, true
}

// restoreProposal puts back a claimed proposal whose save did not commit, keeping its expiry.
func (s *SeatingService) restoreProposal(ctx context.Context, proposal seatingProposal) {
	ttl := proposal.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}
	s.saveProposal(context.WithoutCancel(ctx), proposal, ttl)
}

type seatingProposal struct {
	ID          string         `json:"id"`
	Result      seating.Result `json:"result"`
	Rooms       []seating.Room `json:"rooms"`
	Seed        *int64         `json:"seed,omitempty"`
	GeneratedAt time.Time      `json:"generated_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

type proposalStore struct {
	mu    sync.Mutex
	items map[string]seatingProposal
	now   func() time.Time
}

func newProposalStore() *proposalStore {
	return &proposalStore{
		items: make(map[string]seatingProposal),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *proposalStore) Save(proposal seatingProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, item := range s.items {
		if now.After(item.ExpiresAt) {
			delete(s.items, id)
		}
	}
	s.items[proposal.ID] = proposal
}

// Take removes and returns an unexpired proposal.
func (s *proposalStore) Take(id string) (seatingProposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.items[id]
	if !ok {
		return seatingProposal{}, false
	}
	delete(s.items, id)
	if s.now().After(proposal.ExpiresAt) {
		return seatingProposal{}, false
	}
	return proposal, true
}

func toSeatModels(assignments []seating.Assignment) []models.SeatAssignment {
	seats := make([]models.SeatAssignment, 0, len(assignments))
	for _, a := range assignments {
		seats = append(seats, models.SeatAssignment{
			RoomID:      a.RoomID,
			RoomName:    a.RoomName,
			BenchNumber: a.BenchNumber,
			Position:    a.Position,
			Roll:        a.Student.Roll,
			StudentName: a.Student.Name,
			Subject:     a.Student.Subject,
		})
	}
	return seats
}

func toEngineAssignments(seats []models.SeatAssignment) []seating.Assignment {
	assignments := make([]seating.Assignment, 0, len(seats))
	for _, seat := range seats {
		assignments = append(assignments, seating.Assignment{
			RoomID:      seat.RoomID,
			RoomName:    seat.RoomName,
			BenchNumber: seat.BenchNumber,
			Position:    seat.Position,
			Student:     seating.Student{Roll: seat.Roll, Name: seat.StudentName, Subject: seat.Subject},
		})
	}
	return assignments
}

// planRooms prefers the rooms recorded at save time so empty rooms still get a summary. Older
// plans without that record fall back to the rooms seen in the seats.
func planRooms(recorded []seating.Room, seats []models.SeatAssignment) []seating.Room {
	if len(recorded) > 0 {
		return recorded
	}
	seen := make(map[string]bool)
	var rooms []seating.Room
	for _, seat := range seats {
		if seen[seat.RoomID] {
			continue
		}
		seen[seat.RoomID] = true
		rooms = append(rooms, seating.Room{ID: seat.RoomID, Name: seat.RoomName})
	}
	return rooms
}

func decodePlanMeta(raw types.JSONText) (dto.SeatingPlanMeta, bool) {
	var meta dto.SeatingPlanMeta
	if len(raw) == 0 {
		return meta, false
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, false
	}
	return meta, meta.ProposalID != ""
}
