package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethicsline/ethicsline-api/internal/dto"
	"github.com/ethicsline/ethicsline-api/internal/models"
)

func testRules() WizardRules {
	return WizardRules{
		MinDescriptionLength: 100,
		Units:                []string{"AGG", "DIR", "FIN", "OPS", "TI"},
		Categories:           []string{"Fraude", "Assédio", "Corrupção", "Conflito de interesses", "Discriminação", "Outros"},
	}
}

func longDescription() string {
	return strings.Repeat("detalhe relevante ", 10)
}

func classificationEvent() dto.StepEventRequest {
	return dto.StepEventRequest{Classification: &dto.ClassificationPayload{Unit: "FIN", Category: "Fraude"}}
}

func narrativeEvent() dto.StepEventRequest {
	return dto.StepEventRequest{Narrative: &dto.NarrativePayload{
		IncidentDate: "2026-08-01",
		Recurrence:   models.RecurrenceSingle,
		Location:     "warehouse",
		Description:  longDescription(),
	}}
}

func impactEvent() dto.StepEventRequest {
	return dto.StepEventRequest{Impact: &dto.ImpactPayload{ReportedInternally: false}}
}

func attachmentsEvent() dto.StepEventRequest {
	return dto.StepEventRequest{Attachments: &dto.AttachmentsPayload{}}
}

func anonymousIdentityEvent() dto.StepEventRequest {
	return dto.StepEventRequest{Identity: &dto.IdentityPayload{Anonymous: true}}
}

func driveToComplete(t *testing.T, w *Wizard) {
	t.Helper()
	rules := testRules()
	require.NoError(t, w.Advance(classificationEvent(), rules))
	require.NoError(t, w.Advance(narrativeEvent(), rules))
	require.NoError(t, w.Advance(impactEvent(), rules))
	require.NoError(t, w.Advance(attachmentsEvent(), rules))
	require.NoError(t, w.Advance(anonymousIdentityEvent(), rules))
}

func TestWizardHappyPath(t *testing.T) {
	w := NewWizard()
	assert.Equal(t, StepClassification, w.Step)

	driveToComplete(t, w)
	assert.True(t, w.Complete())
}

func TestWizardRejectsWrongPayloadForStep(t *testing.T) {
	w := NewWizard()
	err := w.Advance(narrativeEvent(), testRules())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classification")
	assert.Equal(t, StepClassification, w.Step)
}

func TestWizardRejectsUnknownUnit(t *testing.T) {
	w := NewWizard()
	err := w.Advance(dto.StepEventRequest{Classification: &dto.ClassificationPayload{Unit: "XX", Category: "Fraude"}}, testRules())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown unit")
}

func TestWizardRejectsShortDescription(t *testing.T) {
	w := NewWizard()
	require.NoError(t, w.Advance(classificationEvent(), testRules()))

	event := narrativeEvent()
	event.Narrative.Description = "too short"
	err := w.Advance(event, testRules())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 100 characters")
}

func TestWizardDescriptionLengthBoundary(t *testing.T) {
	w := NewWizard()
	require.NoError(t, w.Advance(classificationEvent(), testRules()))

	event := narrativeEvent()
	event.Narrative.Description = strings.Repeat("x", 99)
	err := w.Advance(event, testRules())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 100 characters")

	event.Narrative.Description = strings.Repeat("x", 100)
	require.NoError(t, w.Advance(event, testRules()))
}

func TestWizardDescriptionLengthCountsRunes(t *testing.T) {
	w := NewWizard()
	require.NoError(t, w.Advance(classificationEvent(), testRules()))

	// 50 runes but 100 UTF-8 bytes; must still be too short.
	event := narrativeEvent()
	event.Narrative.Description = strings.Repeat("é", 50)
	err := w.Advance(event, testRules())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 100 characters")

	event.Narrative.Description = strings.Repeat("é", 100)
	require.NoError(t, w.Advance(event, testRules()))
}

func TestWizardAcceptsTodayIncidentDate(t *testing.T) {
	w := NewWizard()
	require.NoError(t, w.Advance(classificationEvent(), testRules()))

	event := narrativeEvent()
	event.Narrative.IncidentDate = time.Now().UTC().Format("2006-01-02")
	require.NoError(t, w.Advance(event, testRules()))
}

func TestWizardRejectsFutureIncidentDate(t *testing.T) {
	w := NewWizard()
	require.NoError(t, w.Advance(classificationEvent(), testRules()))

	event := narrativeEvent()
	event.Narrative.IncidentDate = "2099-01-01"
	err := w.Advance(event, testRules())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "future")
}

func TestWizardIdentityContradiction(t *testing.T) {
	w := NewWizard()
	rules := testRules()
	require.NoError(t, w.Advance(classificationEvent(), rules))
	require.NoError(t, w.Advance(narrativeEvent(), rules))
	require.NoError(t, w.Advance(impactEvent(), rules))
	require.NoError(t, w.Advance(attachmentsEvent(), rules))

	err := w.Advance(dto.StepEventRequest{Identity: &dto.IdentityPayload{
		Anonymous: true,
		Contact:   &dto.ContactPayload{Name: "Ana", Email: "ana@example.com", PreferredChannel: models.ChannelEmail},
	}}, rules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anonymous")
}

func TestWizardIdentifiedRequiresContact(t *testing.T) {
	w := NewWizard()
	rules := testRules()
	require.NoError(t, w.Advance(classificationEvent(), rules))
	require.NoError(t, w.Advance(narrativeEvent(), rules))
	require.NoError(t, w.Advance(impactEvent(), rules))
	require.NoError(t, w.Advance(attachmentsEvent(), rules))

	err := w.Advance(dto.StepEventRequest{Identity: &dto.IdentityPayload{Anonymous: false}}, rules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contact details are required")
}

func TestWizardBackKeepsData(t *testing.T) {
	w := NewWizard()
	rules := testRules()
	require.NoError(t, w.Advance(classificationEvent(), rules))
	require.NoError(t, w.Advance(narrativeEvent(), rules))
	assert.Equal(t, StepImpact, w.Step)

	w.Back()
	assert.Equal(t, StepNarrative, w.Step)
	require.NotNil(t, w.Narrative)
	assert.Equal(t, "warehouse", w.Narrative.Location)

	w.Back()
	w.Back()
	assert.Equal(t, StepClassification, w.Step)
}

func TestWizardEncodeDecodeRoundTrip(t *testing.T) {
	w := NewWizard()
	rules := testRules()
	require.NoError(t, w.Advance(classificationEvent(), rules))
	require.NoError(t, w.Advance(narrativeEvent(), rules))

	raw, err := w.Encode()
	require.NoError(t, err)

	restored, err := DecodeWizard(raw)
	require.NoError(t, err)
	assert.Equal(t, StepImpact, restored.Step)
	require.NotNil(t, restored.Classification)
	assert.Equal(t, "FIN", restored.Classification.Unit)
}

func TestWizardFingerprintStableAcrossTime(t *testing.T) {
	w1 := NewWizard()
	w2 := NewWizard()
	driveToComplete(t, w1)
	driveToComplete(t, w2)

	fp1, err := w1.Fingerprint()
	require.NoError(t, err)
	fp2, err := w2.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
}

func TestWizardFingerprintChangesWithContent(t *testing.T) {
	w1 := NewWizard()
	driveToComplete(t, w1)

	w2 := NewWizard()
	rules := testRules()
	require.NoError(t, w2.Advance(dto.StepEventRequest{Classification: &dto.ClassificationPayload{Unit: "OPS", Category: "Outros"}}, rules))
	require.NoError(t, w2.Advance(narrativeEvent(), rules))
	require.NoError(t, w2.Advance(impactEvent(), rules))
	require.NoError(t, w2.Advance(attachmentsEvent(), rules))
	require.NoError(t, w2.Advance(anonymousIdentityEvent(), rules))

	fp1, _ := w1.Fingerprint()
	fp2, _ := w2.Fingerprint()
	assert.NotEqual(t, fp1, fp2)
}

func TestWizardToCase(t *testing.T) {
	w := NewWizard()
	driveToComplete(t, w)

	c, err := w.ToCase("ABCD-1234", "principal-1")
	require.NoError(t, err)
	assert.Equal(t, "ABCD-1234", c.Protocol)
	assert.Equal(t, "FIN", c.Unit)
	assert.Equal(t, models.StatusReceived, c.Status)
	assert.True(t, c.Anonymous)
	assert.Nil(t, c.Contact)
	assert.NoError(t, c.Validate())
}
