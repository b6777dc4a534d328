package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/internal/seating"
	"github.com/noah-isme/exam-seating-api/pkg/export"
	"github.com/noah-isme/exam-seating-api/pkg/storage"
)

type exportPlanSource interface {
	FindByID(ctx context.Context, id string) (*models.SeatingPlan, error)
}

type exportSeatSource interface {
	ListByPlan(ctx context.Context, planID string) ([]models.SeatAssignment, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders saved seating plans and persists the files.
type ExportService struct {
	plans   exportPlanSource
	seats   exportSeatSource
	storage fileStorage
	renders export.Registry
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService. A nil registry uses every built-in renderer.
func NewExportService(plans exportPlanSource, seats exportSeatSource, store fileStorage, signer *storage.SignedURLSigner, renders export.Registry, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if renders == nil {
		renders = export.NewRegistry()
	}
	return &ExportService{
		plans:   plans,
		seats:   seats,
		storage: store,
		renders: renders,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Generate renders the job's plan and stores the file behind a signed download URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	renderer, err := s.renders.Lookup(export.Format(job.Params.Format))
	if err != nil {
		return nil, err
	}
	plan, err := s.plans.FindByID(ctx, job.SeatingPlanID)
	if err != nil {
		return nil, fmt.Errorf("load seating plan %s: %w", job.SeatingPlanID, err)
	}
	seats, err := s.seats.ListByPlan(ctx, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("load seat assignments: %w", err)
	}

	doc := BuildPlanDocument(plan, seats, job.Params)
	payload, err := renderer.Render(doc)
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(plan, renderer.Extension()), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Debug("seating export rendered",
		zap.String("job_id", job.ID),
		zap.String("plan_id", plan.ID),
		zap.String("format", string(job.Params.Format)),
		zap.Int("bytes", len(payload)),
	)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ContentType reports the MIME type for a stored format.
func (s *ExportService) ContentType(format models.ExportFormat) string {
	renderer, err := s.renders.Lookup(export.Format(format))
	if err != nil {
		return "application/octet-stream"
	}
	return renderer.ContentType()
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(plan *models.SeatingPlan, ext string) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("seating_%s_%s.%s", sanitizeFilename(plan.Name), timestamp, ext)
}

// BuildPlanDocument lays a saved plan out as a seat list plus a per-room subject summary.
// Params.RoomIDs narrows both tables; SummaryOnly drops the seat list.
func BuildPlanDocument(plan *models.SeatingPlan, seats []models.SeatAssignment, params models.ExportJobParams) export.Document {
	if len(params.RoomIDs) > 0 {
		keep := make(map[string]bool, len(params.RoomIDs))
		for _, id := range params.RoomIDs {
			keep[id] = true
		}
		filtered := make([]models.SeatAssignment, 0, len(seats))
		for _, seat := range seats {
			if keep[seat.RoomID] {
				filtered = append(filtered, seat)
			}
		}
		seats = filtered
	}

	seats = append([]models.SeatAssignment(nil), seats...)
	models.SortSeats(seats)

	meta, _ := decodePlanMeta(plan.Meta)
	rooms := planRooms(meta.Rooms, seats)
	if len(params.RoomIDs) > 0 {
		rooms = filterRooms(rooms, params.RoomIDs)
	}
	summaries := seating.Summarize(rooms, toEngineAssignments(seats))

	doc := export.Document{Title: fmt.Sprintf("Seating Plan %s", plan.Name)}
	if !params.SummaryOnly {
		doc.Datasets = append(doc.Datasets, seatDataset(seats))
	}
	doc.Datasets = append(doc.Datasets, summaryDataset(summaries))
	return doc
}

func seatDataset(seats []models.SeatAssignment) export.Dataset {
	rows := make([][]string, 0, len(seats))
	for _, seat := range seats {
		rows = append(rows, []string{
			seat.RoomName,
			strconv.Itoa(seat.BenchNumber),
			seat.Position,
			seat.Roll,
			seat.StudentName,
			seat.Subject,
		})
	}
	return export.Dataset{
		Name:    "Seats",
		Headers: []string{"Room", "Bench", "Position", "Roll", "Name", "Subject"},
		Rows:    rows,
	}
}

func summaryDataset(summaries []seating.RoomSummary) export.Dataset {
	var rows [][]string
	for _, room := range summaries {
		if len(room.Subjects) == 0 {
			rows = append(rows, []string{room.RoomName, "", "0", ""})
			continue
		}
		for _, subject := range room.Subjects {
			rows = append(rows, []string{room.RoomName, subject.Subject, strconv.Itoa(subject.Count), subject.Ranges})
		}
	}
	return export.Dataset{
		Name:    "Room Summary",
		Headers: []string{"Room", "Subject", "Count", "Ranges"},
		Rows:    rows,
	}
}

func filterRooms(rooms []seating.Room, ids []string) []seating.Room {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	out := make([]seating.Room, 0, len(rooms))
	for _, room := range rooms {
		if keep[room.ID] {
			out = append(out, room)
		}
	}
	return out
}

func sanitizeFilename(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "plan"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
