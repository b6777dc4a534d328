package dto

import "github.com/noah-isme/exam-seating-api/internal/models"

// ExportRequest captures POST /seating-plans/:id/exports payload.
type ExportRequest struct {
	Format      models.ExportFormat `json:"format" validate:"required,oneof=csv pdf xlsx"`
	RoomIDs     []string            `json:"roomIds"`
	SummaryOnly bool                `json:"summaryOnly"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID            string              `json:"id"`
	SeatingPlanID string              `json:"seatingPlanId"`
	Format        models.ExportFormat `json:"format"`
	Status        models.ExportStatus `json:"status"`
	Progress      int                 `json:"progress"`
	ResultURL     *string             `json:"resultUrl,omitempty"`
	Error         *string             `json:"error,omitempty"`
}
