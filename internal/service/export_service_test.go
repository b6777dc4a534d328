package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/pkg/export"
	"github.com/noah-isme/exam-seating-api/pkg/storage"
)

const exportPlanMeta = `{"proposalId":"p-1","rooms":[{"room_id":"r1","room_name":"Room 1","num_benches":2,"seats_per_bench":2},{"room_id":"r2","room_name":"Room 2","num_benches":1,"seats_per_bench":2}]}`

func exportPlanFixture() (*mockPlanRepo, *mockSeatRepo) {
	plans := &mockPlanRepo{plans: map[string]*models.SeatingPlan{
		"plan-1": {ID: "plan-1", Name: "Midterm Day 1", Status: models.SeatingPlanStatusDraft, Meta: types.JSONText(exportPlanMeta)},
	}}
	seats := &mockSeatRepo{seats: map[string][]models.SeatAssignment{
		"plan-1": {
			{RoomID: "r1", RoomName: "Room 1", BenchNumber: 1, Position: "Left", Roll: "10-1", StudentName: "Ana", Subject: "BBA"},
			{RoomID: "r1", RoomName: "Room 1", BenchNumber: 1, Position: "Right", Roll: "20-1", StudentName: "Budi", Subject: "BCA"},
			{RoomID: "r1", RoomName: "Room 1", BenchNumber: 2, Position: "Left", Roll: "10-2", StudentName: "Citra", Subject: "BBA"},
			{RoomID: "r1", RoomName: "Room 1", BenchNumber: 2, Position: "Right", Roll: "20-2", StudentName: "Dewi", Subject: "BCA"},
		},
	}}
	return plans, seats
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	plans, seats := exportPlanFixture()
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(plans, seats, store, signer, nil, ExportConfig{APIPrefix: "/api/v1/", ResultTTL: time.Hour}, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC) }
	return svc, store
}

func readStored(t *testing.T, svc *ExportService, relPath string) []byte {
	t.Helper()
	file, err := svc.Open(relPath)
	require.NoError(t, err)
	defer file.Close()
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	return data
}

func TestBuildPlanDocument(t *testing.T) {
	plans, seats := exportPlanFixture()
	plan := plans.plans["plan-1"]

	doc := BuildPlanDocument(plan, seats.seats["plan-1"], models.ExportJobParams{Format: models.ExportFormatCSV})
	assert.Equal(t, "Seating Plan Midterm Day 1", doc.Title)
	require.Len(t, doc.Datasets, 2)

	seatList := doc.Datasets[0]
	assert.Equal(t, []string{"Room", "Bench", "Position", "Roll", "Name", "Subject"}, seatList.Headers)
	require.Len(t, seatList.Rows, 4)
	assert.Equal(t, []string{"Room 1", "1", "Left", "10-1", "Ana", "BBA"}, seatList.Rows[0])

	summary := doc.Datasets[1]
	assert.ElementsMatch(t, [][]string{
		{"Room 1", "BBA", "2", "1 to 2"},
		{"Room 1", "BCA", "2", "1 to 2"},
		{"Room 2", "", "0", ""},
	}, summary.Rows)
}

func TestBuildPlanDocumentRoomFilterAndSummaryOnly(t *testing.T) {
	plans, seats := exportPlanFixture()

	doc := BuildPlanDocument(plans.plans["plan-1"], seats.seats["plan-1"], models.ExportJobParams{RoomIDs: []string{"r2"}, SummaryOnly: true})
	require.Len(t, doc.Datasets, 1)
	assert.Equal(t, "Room Summary", doc.Datasets[0].Name)
	assert.Equal(t, [][]string{{"Room 2", "", "0", ""}}, doc.Datasets[0].Rows)
}

func TestExportServiceGenerateCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	job := &models.ExportJob{ID: "job-1", SeatingPlanID: "plan-1", Params: models.ExportJobParams{Format: models.ExportFormatCSV}}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "seating_Midterm_Day_1_20260504_083000.csv", result.RelativePath)
	assert.Equal(t, "/api/v1/export/"+result.Token, result.URL)
	assert.True(t, store.Exists(result.RelativePath))

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, result.RelativePath, relPath)

	reader := csv.NewReader(bytes.NewReader(readStored(t, svc, result.RelativePath)))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Room", "Bench", "Position", "Roll", "Name", "Subject"}, records[0])
	assert.Contains(t, records, []string{"Room Summary"})
	assert.Equal(t, "text/csv", svc.ContentType(models.ExportFormatCSV))
}

func TestExportServiceGenerateXLSX(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	job := &models.ExportJob{ID: "job-2", SeatingPlanID: "plan-1", Params: models.ExportJobParams{Format: models.ExportFormatXLSX}}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	book, err := excelize.OpenReader(bytes.NewReader(readStored(t, svc, result.RelativePath)))
	require.NoError(t, err)
	defer book.Close()
	assert.Equal(t, []string{"Seats", "Room Summary"}, book.GetSheetList())
	value, err := book.GetCellValue("Seats", "D2")
	require.NoError(t, err)
	assert.Equal(t, "10-1", value)
}

func TestExportServiceGeneratePDF(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	job := &models.ExportJob{ID: "job-3", SeatingPlanID: "plan-1", Params: models.ExportJobParams{Format: models.ExportFormatPDF}}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatPDF, result.Format)
	assert.True(t, bytes.HasPrefix(readStored(t, svc, result.RelativePath), []byte("%PDF")))
}

func TestExportServiceGenerateErrors(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	_, err := svc.Generate(context.Background(), &models.ExportJob{ID: "job-4", SeatingPlanID: "missing", Params: models.ExportJobParams{Format: models.ExportFormatCSV}})
	assert.Error(t, err)

	_, err = svc.Generate(context.Background(), &models.ExportJob{ID: "job-5", SeatingPlanID: "plan-1", Params: models.ExportJobParams{Format: "docx"}})
	assert.Error(t, err)

	_, err = svc.Generate(context.Background(), nil)
	assert.Error(t, err)
}

func TestExportServiceCustomRegistry(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	plans, seats := exportPlanFixture()
	registry := export.Registry{export.FormatCSV: export.NewCSVExporter()}
	svc := NewExportService(plans, seats, store, storage.NewSignedURLSigner("secret", time.Hour), registry, ExportConfig{}, nil)

	_, err = svc.Generate(context.Background(), &models.ExportJob{ID: "job-6", SeatingPlanID: "plan-1", Params: models.ExportJobParams{Format: models.ExportFormatPDF}})
	assert.Error(t, err)
	assert.Equal(t, "application/octet-stream", svc.ContentType(models.ExportFormatPDF))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "plan", sanitizeFilename("  "))
	assert.Equal(t, "Final-Exam_A-B", sanitizeFilename("Final/Exam A:B"))
}

func TestBuildPlanDocumentOrdersWideBenches(t *testing.T) {
	plan := &models.SeatingPlan{ID: "plan-w", Name: "Hall"}
	seats := []models.SeatAssignment{
		{RoomID: "h", RoomName: "Hall", BenchNumber: 1, Position: "seat_10", Roll: "1-10", Subject: "BBA"},
		{RoomID: "h", RoomName: "Hall", BenchNumber: 1, Position: "seat_2", Roll: "1-2", Subject: "BCA"},
		{RoomID: "h", RoomName: "Hall", BenchNumber: 1, Position: "seat_1", Roll: "1-1", Subject: "BBA"},
	}

	doc := BuildPlanDocument(plan, seats, models.ExportJobParams{})

	positions := make([]string, 0, 3)
	for _, row := range doc.Datasets[0].Rows {
		positions = append(positions, row[2])
	}
	assert.Equal(t, []string{"seat_1", "seat_2", "seat_10"}, positions)
	assert.Equal(t, "seat_10", seats[0].Position)
}
