package dto

import "github.com/ethicsline/ethicsline-api/internal/models"

// ExportRequest describes a case export. The filter snapshot mirrors the
// dashboard state at the moment the reviewer asked for the export.
type ExportRequest struct {
	Format    models.ExportFormat `json:"format" validate:"required"`
	Status    models.CaseStatus   `json:"status,omitempty"`
	Search    string              `json:"search,omitempty"`
	Protocols []string            `json:"protocols,omitempty"`
}

// ExportJobResponse reports an asynchronous export job to the client.
type ExportJobResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
