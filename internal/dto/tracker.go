package dto

import "time"

// TrackerResponse is the reporter-facing view of a case. Found is false for
// unknown protocols; the remaining fields are then empty.
type TrackerResponse struct {
	Found       bool      `json:"found"`
	Protocol    string    `json:"protocol,omitempty"`
	Status      string    `json:"status,omitempty"`
	StatusLabel string    `json:"statusLabel,omitempty"`
	Unit        string    `json:"unit,omitempty"`
	Category    string    `json:"category,omitempty"`
	Attachments int       `json:"attachments,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}
