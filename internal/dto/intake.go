package dto

import "github.com/ethicsline/ethicsline-api/internal/models"

// ClassificationPayload is the first wizard step: where and what kind.
type ClassificationPayload struct {
	Unit     string `json:"unit" validate:"required"`
	Category string `json:"category" validate:"required"`
}

// NarrativePayload is the second wizard step: when, where exactly, and what
// happened. IncidentDate uses the 2006-01-02 layout.
type NarrativePayload struct {
	IncidentDate string            `json:"incidentDate" validate:"required"`
	Recurrence   models.Recurrence `json:"recurrence" validate:"required"`
	Location     string            `json:"location" validate:"required"`
	Description  string            `json:"description" validate:"required"`
}

// ImpactPayload is the third wizard step.
type ImpactPayload struct {
	FinancialImpact    *float64 `json:"financialImpact,omitempty" validate:"omitempty,gte=0"`
	ReportedInternally bool     `json:"reportedInternally"`
	ReportedTo         string   `json:"reportedTo,omitempty"`
}

// DeclaredAttachment mirrors the reporter's file selection; bytes arrive
// with the final submit request.
type DeclaredAttachment struct {
	Name     string `json:"name" validate:"required"`
	Size     int64  `json:"size" validate:"gte=0"`
	MimeType string `json:"mimeType,omitempty"`
}

// AttachmentsPayload is the fourth wizard step.
type AttachmentsPayload struct {
	Files []DeclaredAttachment `json:"files" validate:"dive"`
}

// ContactPayload carries identifying reporter details.
type ContactPayload struct {
	Name             string                `json:"name" validate:"required"`
	Email            string                `json:"email" validate:"required,email"`
	Phone            string                `json:"phone,omitempty"`
	PreferredChannel models.ContactChannel `json:"preferredChannel" validate:"required,oneof=EMAIL PHONE"`
}

// IdentityPayload is the fifth wizard step: anonymity toggle plus optional
// contact. Contact is required exactly when Anonymous is false.
type IdentityPayload struct {
	Anonymous bool            `json:"anonymous"`
	Contact   *ContactPayload `json:"contact,omitempty"`
}

// StepEventRequest advances the wizard by one step.
type StepEventRequest struct {
	Classification *ClassificationPayload `json:"classification,omitempty"`
	Narrative      *NarrativePayload      `json:"narrative,omitempty"`
	Impact         *ImpactPayload         `json:"impact,omitempty"`
	Attachments    *AttachmentsPayload    `json:"attachments,omitempty"`
	Identity       *IdentityPayload       `json:"identity,omitempty"`
}

// WizardStateResponse reflects the wizard back to the reporter client.
type WizardStateResponse struct {
	Step           string                 `json:"step"`
	Classification *ClassificationPayload `json:"classification,omitempty"`
	Narrative      *NarrativePayload      `json:"narrative,omitempty"`
	Impact         *ImpactPayload         `json:"impact,omitempty"`
	Attachments    *AttachmentsPayload    `json:"attachments,omitempty"`
	Identity       *IdentityPayload       `json:"identity,omitempty"`
}

// SubmitResponse reports the outcome of a completed submission.
type SubmitResponse struct {
	Protocol            string `json:"protocol"`
	AttachmentsUploaded int    `json:"attachmentsUploaded"`
	AttachmentsExcluded int    `json:"attachmentsExcluded"`
	AttachmentsFailed   int    `json:"attachmentsFailed"`
	Warning             string `json:"warning,omitempty"`
}

// IntakeOptionsResponse exposes the fixed enumerations to the intake form.
type IntakeOptionsResponse struct {
	Units                []string `json:"units"`
	Categories           []string `json:"categories"`
	MinDescriptionLength int      `json:"minDescriptionLength"`
	MaxAttachmentBytes   int64    `json:"maxAttachmentBytes"`
}
