package dto

import "github.com/ethicsline/ethicsline-api/internal/models"

// Bucket is one aggregate bar on the reviewer dashboard. Width is the bar
// width scaled so the highest count maps to 100.
type Bucket struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
	Count int    `json:"count"`
	Width int    `json:"width"`
}

// AggregatesResponse carries the derived counters for the filtered set.
type AggregatesResponse struct {
	Total      int      `json:"total"`
	ByStatus   []Bucket `json:"byStatus"`
	ByCategory []Bucket `json:"byCategory"`
	ByUnit     []Bucket `json:"byUnit"`
}

// ViewFilterRequest updates a dashboard view's local filter state.
type ViewFilterRequest struct {
	Search string            `json:"search"`
	Status models.CaseStatus `json:"status"`
}

// SelectionRequest toggles membership of protocols in the view's selection.
type SelectionRequest struct {
	Protocols []string `json:"protocols" validate:"required,min=1"`
	Selected  bool     `json:"selected"`
}

// ViewStateResponse reflects a dashboard view back to the client.
type ViewStateResponse struct {
	ViewID    string            `json:"viewId"`
	Search    string            `json:"search"`
	Status    models.CaseStatus `json:"status,omitempty"`
	Selection []string          `json:"selection"`
	OpenCase  string            `json:"openCase,omitempty"`
	Cases     []models.Case     `json:"cases"`
}

// StatusUpdateRequest mutates a single case's status.
type StatusUpdateRequest struct {
	Status models.CaseStatus `json:"status" validate:"required"`
}

// NoteRequest appends one annotation to a case.
type NoteRequest struct {
	Text string `json:"text" validate:"required"`
}

// DeleteRequest guards irreversible deletions behind an explicit
// confirmation flag.
type DeleteRequest struct {
	Confirm bool `json:"confirm"`
}

// AttachmentURLResponse returns a resolved attachment download URL.
type AttachmentURLResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}
