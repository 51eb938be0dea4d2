package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ethicsline/ethicsline-api/internal/dto"
	"github.com/ethicsline/ethicsline-api/internal/models"
	appErrors "github.com/ethicsline/ethicsline-api/pkg/errors"
)

// WizardStep identifies one intake step.
type WizardStep string

const (
	StepClassification WizardStep = "classification"
	StepNarrative      WizardStep = "narrative"
	StepImpact         WizardStep = "impact"
	StepAttachments    WizardStep = "attachments"
	StepIdentity       WizardStep = "identity"
	StepComplete       WizardStep = "complete"
)

var stepOrder = []WizardStep{StepClassification, StepNarrative, StepImpact, StepAttachments, StepIdentity}

// WizardRules carries the validation parameters applied while advancing.
type WizardRules struct {
	MinDescriptionLength int
	Units                []string
	Categories           []string
}

// Wizard is the serializable intake state machine. One instance lives per
// reporter session; advancing validates the payload for the current step
// before moving forward, going back never discards entered data.
type Wizard struct {
	Step           WizardStep                 `json:"step"`
	Classification *dto.ClassificationPayload `json:"classification,omitempty"`
	Narrative      *dto.NarrativePayload      `json:"narrative,omitempty"`
	Impact         *dto.ImpactPayload         `json:"impact,omitempty"`
	Attachments    *dto.AttachmentsPayload    `json:"attachments,omitempty"`
	Identity       *dto.IdentityPayload       `json:"identity,omitempty"`
}

// NewWizard starts a fresh wizard at the first step.
func NewWizard() *Wizard {
	return &Wizard{Step: StepClassification}
}

// DecodeWizard restores a wizard from its serialized form.
func DecodeWizard(raw []byte) (*Wizard, error) {
	var w Wizard
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode wizard state: %w", err)
	}
	if w.Step == "" {
		w.Step = StepClassification
	}
	return &w, nil
}

// Encode serializes the wizard for session storage.
func (w *Wizard) Encode() ([]byte, error) {
	raw, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode wizard state: %w", err)
	}
	return raw, nil
}

// Complete reports whether every step has been accepted.
func (w *Wizard) Complete() bool {
	return w.Step == StepComplete
}

// Advance applies the event payload for the current step and moves forward.
// The event must carry exactly the payload the current step expects.
func (w *Wizard) Advance(event dto.StepEventRequest, rules WizardRules) error {
	switch w.Step {
	case StepClassification:
		if event.Classification == nil {
			return stepMismatch(w.Step)
		}
		if err := validateClassification(*event.Classification, rules); err != nil {
			return err
		}
		w.Classification = event.Classification
	case StepNarrative:
		if event.Narrative == nil {
			return stepMismatch(w.Step)
		}
		if err := validateNarrative(*event.Narrative, rules); err != nil {
			return err
		}
		w.Narrative = event.Narrative
	case StepImpact:
		if event.Impact == nil {
			return stepMismatch(w.Step)
		}
		if err := validateImpact(*event.Impact); err != nil {
			return err
		}
		w.Impact = event.Impact
	case StepAttachments:
		if event.Attachments == nil {
			return stepMismatch(w.Step)
		}
		w.Attachments = event.Attachments
	case StepIdentity:
		if event.Identity == nil {
			return stepMismatch(w.Step)
		}
		if err := validateIdentity(*event.Identity); err != nil {
			return err
		}
		w.Identity = event.Identity
	case StepComplete:
		return appErrors.Clone(appErrors.ErrConflict, "the report is already complete")
	default:
		return appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("unknown wizard step %q", w.Step))
	}

	w.Step = nextStep(w.Step)
	return nil
}

// Back moves one step backwards without touching collected data. At the
// first step it is a no-op.
func (w *Wizard) Back() {
	for i, step := range stepOrder {
		if step == w.Step && i > 0 {
			w.Step = stepOrder[i-1]
			return
		}
	}
	if w.Step == StepComplete {
		w.Step = StepIdentity
	}
}

// Snapshot reflects the wizard back to the reporter client.
func (w *Wizard) Snapshot() dto.WizardStateResponse {
	return dto.WizardStateResponse{
		Step:           string(w.Step),
		Classification: w.Classification,
		Narrative:      w.Narrative,
		Impact:         w.Impact,
		Attachments:    w.Attachments,
		Identity:       w.Identity,
	}
}

// Fingerprint hashes the reporter-entered content. Timestamps and the
// generated protocol never participate, so the same answers always produce
// the same fingerprint within a session.
func (w *Wizard) Fingerprint() (string, error) {
	content := struct {
		Classification *dto.ClassificationPayload `json:"classification"`
		Narrative      *dto.NarrativePayload      `json:"narrative"`
		Impact         *dto.ImpactPayload         `json:"impact"`
		Attachments    *dto.AttachmentsPayload    `json:"attachments"`
		Identity       *dto.IdentityPayload       `json:"identity"`
	}{w.Classification, w.Narrative, w.Impact, w.Attachments, w.Identity}

	raw, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("fingerprint wizard: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// ToCase builds the case document from the collected answers. Call only
// after the identity step was accepted.
func (w *Wizard) ToCase(protocol, principalID string) (*models.Case, error) {
	if w.Classification == nil || w.Narrative == nil || w.Impact == nil || w.Identity == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the report is incomplete")
	}

	c := &models.Case{
		Protocol: protocol,
		Unit:     w.Classification.Unit,
		Category: w.Classification.Category,
		Answers: models.AnswersRecord{
			IncidentDate:       w.Narrative.IncidentDate,
			Recurrence:         w.Narrative.Recurrence,
			Location:           w.Narrative.Location,
			Description:        w.Narrative.Description,
			FinancialImpact:    w.Impact.FinancialImpact,
			ReportedInternally: w.Impact.ReportedInternally,
			ReportedTo:         w.Impact.ReportedTo,
		},
		Anonymous:   w.Identity.Anonymous,
		Status:      models.StatusReceived,
		PrincipalID: principalID,
	}
	if !w.Identity.Anonymous && w.Identity.Contact != nil {
		c.Contact = &models.ContactRecord{
			Name:             w.Identity.Contact.Name,
			Email:            w.Identity.Contact.Email,
			Phone:            w.Identity.Contact.Phone,
			PreferredChannel: w.Identity.Contact.PreferredChannel,
		}
	}
	return c, nil
}

func nextStep(current WizardStep) WizardStep {
	for i, step := range stepOrder {
		if step == current {
			if i == len(stepOrder)-1 {
				return StepComplete
			}
			return stepOrder[i+1]
		}
	}
	return current
}

func stepMismatch(step WizardStep) error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("expected a %s payload for the current step", step))
}

func validateClassification(p dto.ClassificationPayload, rules WizardRules) error {
	if !containsFold(rules.Units, p.Unit) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown unit %q", p.Unit))
	}
	if !containsFold(rules.Categories, p.Category) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", p.Category))
	}
	return nil
}

func validateNarrative(p dto.NarrativePayload, rules WizardRules) error {
	date, err := time.Parse("2006-01-02", p.IncidentDate)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "incident date must use the YYYY-MM-DD format")
	}
	if date.After(time.Now().UTC()) {
		return appErrors.Clone(appErrors.ErrValidation, "incident date cannot be in the future")
	}
	if !models.ValidRecurrence(p.Recurrence) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown recurrence %q", p.Recurrence))
	}
	if strings.TrimSpace(p.Location) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "location is required")
	}
	if utf8.RuneCountInString(strings.TrimSpace(p.Description)) < rules.MinDescriptionLength {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("description must have at least %d characters", rules.MinDescriptionLength))
	}
	return nil
}

func validateImpact(p dto.ImpactPayload) error {
	if p.FinancialImpact != nil && *p.FinancialImpact < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "financial impact cannot be negative")
	}
	if p.ReportedInternally && strings.TrimSpace(p.ReportedTo) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "reportedTo is required when the incident was reported internally")
	}
	return nil
}

func validateIdentity(p dto.IdentityPayload) error {
	if p.Anonymous && p.Contact != nil {
		return appErrors.Clone(appErrors.ErrValidation, "anonymous reports cannot carry contact details")
	}
	if !p.Anonymous {
		if p.Contact == nil {
			return appErrors.Clone(appErrors.ErrValidation, "contact details are required for identified reports")
		}
		if strings.TrimSpace(p.Contact.Name) == "" || strings.TrimSpace(p.Contact.Email) == "" {
			return appErrors.Clone(appErrors.ErrValidation, "contact name and email are required")
		}
		if p.Contact.PreferredChannel != models.ChannelEmail && p.Contact.PreferredChannel != models.ChannelPhone {
			return appErrors.Clone(appErrors.ErrValidation, "preferred channel must be EMAIL or PHONE")
		}
	}
	return nil
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
