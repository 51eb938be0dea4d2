package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// CaseStatus enumerates the reviewer-managed lifecycle of a case.
type CaseStatus string

const (
	StatusReceived    CaseStatus = "RECEIVED"
	StatusUnderReview CaseStatus = "UNDER_REVIEW"
	StatusInContact   CaseStatus = "IN_CONTACT"
	StatusResolved    CaseStatus = "RESOLVED"
)

// ValidStatus reports whether s is one of the known statuses.
func ValidStatus(s CaseStatus) bool {
	switch s {
	case StatusReceived, StatusUnderReview, StatusInContact, StatusResolved:
		return true
	}
	return false
}

// Label returns the human-readable form used in exports.
func (s CaseStatus) Label() string {
	switch s {
	case StatusReceived:
		return "Received"
	case StatusUnderReview:
		return "Under review"
	case StatusInContact:
		return "In contact"
	case StatusResolved:
		return "Resolved"
	}
	return string(s)
}

// Recurrence classifies how often the reported incident happened.
type Recurrence string

const (
	RecurrenceSingle    Recurrence = "SINGLE"
	RecurrenceRecurring Recurrence = "RECURRING"
	RecurrenceOngoing   Recurrence = "ONGOING"
)

// ValidRecurrence reports whether r is a known recurrence class.
func ValidRecurrence(r Recurrence) bool {
	switch r {
	case RecurrenceSingle, RecurrenceRecurring, RecurrenceOngoing:
		return true
	}
	return false
}

// ContactChannel is the reporter's preferred follow-up channel.
type ContactChannel string

const (
	ChannelEmail ContactChannel = "EMAIL"
	ChannelPhone ContactChannel = "PHONE"
)

// Contact carries the identifying details of a non-anonymous reporter.
type Contact struct {
	Name             string         `json:"name"`
	Email            string         `json:"email"`
	Phone            string         `json:"phone,omitempty"`
	PreferredChannel ContactChannel `json:"preferredChannel"`
}

// Answers holds the narrative and impact portion of the intake form.
// These fields are immutable once the case is created.
type Answers struct {
	IncidentDate       string     `json:"incidentDate"`
	Recurrence         Recurrence `json:"recurrence"`
	Location           string     `json:"location"`
	Description        string     `json:"description"`
	FinancialImpact    *float64   `json:"financialImpact,omitempty"`
	ReportedInternally bool       `json:"reportedInternally"`
	ReportedTo         string     `json:"reportedTo,omitempty"`
}

// Attachment describes one uploaded blob belonging to a case.
type Attachment struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	MimeType    string `json:"mimeType"`
	StoragePath string `json:"storagePath"`
	URL         string `json:"url"`
}

// Note is one append-only reviewer annotation.
type Note struct {
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
}

// Case is the central report entity, keyed by its protocol code.
type Case struct {
	Protocol    string         `db:"protocol" json:"protocol"`
	Unit        string         `db:"unit" json:"unit"`
	Category    string         `db:"category" json:"category"`
	Answers     AnswersRecord  `db:"answers" json:"answers"`
	Anonymous   bool           `db:"anonymous" json:"anonymous"`
	Contact     *ContactRecord `db:"contact" json:"contact,omitempty"`
	Attachments AttachmentList `db:"attachments" json:"attachments"`
	Status      CaseStatus     `db:"status" json:"status"`
	Notes       NoteList       `db:"notes" json:"notes"`
	PrincipalID string         `db:"principal_id" json:"-"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

// LastTouched is the sort key for the dashboard: updatedAt when set,
// createdAt otherwise.
func (c *Case) LastTouched() time.Time {
	if !c.UpdatedAt.IsZero() {
		return c.UpdatedAt
	}
	return c.CreatedAt
}

// Validate is the decode boundary applied when rows come back from the
// store; malformed or legacy rows fail here instead of propagating empty
// fields into rendering.
func (c *Case) Validate() error {
	if c.Protocol == "" {
		return fmt.Errorf("case missing protocol")
	}
	if c.Unit == "" || c.Category == "" {
		return fmt.Errorf("case %s missing classification", c.Protocol)
	}
	if !ValidStatus(c.Status) {
		return fmt.Errorf("case %s has unknown status %q", c.Protocol, c.Status)
	}
	if !ValidRecurrence(c.Answers.Recurrence) {
		return fmt.Errorf("case %s has unknown recurrence %q", c.Protocol, c.Answers.Recurrence)
	}
	if c.Anonymous && c.Contact != nil {
		return fmt.Errorf("case %s is anonymous but carries contact details", c.Protocol)
	}
	return nil
}

// CaseFilter narrows dashboard listing queries.
type CaseFilter struct {
	Status CaseStatus
	Search string
	Limit  int
	Offset int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// AnswersRecord stores Answers as a JSONB column.
type AnswersRecord Answers

// Value implements driver.Valuer.
func (a AnswersRecord) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *AnswersRecord) Scan(src interface{}) error {
	return scanJSON(src, a, "answers")
}

// ContactRecord stores Contact as a nullable JSONB column.
type ContactRecord Contact

// Value implements driver.Valuer.
func (c ContactRecord) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner.
func (c *ContactRecord) Scan(src interface{}) error {
	return scanJSON(src, c, "contact")
}

// AttachmentList stores attachments as a JSONB column.
type AttachmentList []Attachment

// Value implements driver.Valuer.
func (l AttachmentList) Value() (driver.Value, error) {
	if l == nil {
		l = AttachmentList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *AttachmentList) Scan(src interface{}) error {
	return scanJSON(src, l, "attachments")
}

// NoteList stores notes as a JSONB column.
type NoteList []Note

// Value implements driver.Valuer.
func (l NoteList) Value() (driver.Value, error) {
	if l == nil {
		l = NoteList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *NoteList) Scan(src interface{}) error {
	return scanJSON(src, l, "notes")
}

func scanJSON(src, dest interface{}, field string) error {
	if src == nil {
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported scan type %T for %s", src, field)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s column: %w", field, err)
	}
	return nil
}
