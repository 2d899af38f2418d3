package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/comms"
	"github.com/jwalitptl/crm-api/internal/service/scoring"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

// flowCommStore backs the communication log with the same contact map
// the resolver writes to, so the append-and-bump invariant holds across
// services.
type flowCommStore struct {
	mu       sync.Mutex
	contacts *fakeContactStore
	events   map[uuid.UUID][]*model.CommunicationEvent
}

func newFlowCommStore(contacts *fakeContactStore) *flowCommStore {
	return &flowCommStore{
		contacts: contacts,
		events:   make(map[uuid.UUID][]*model.CommunicationEvent),
	}
}

func (f *flowCommStore) Append(_ context.Context, orgID uuid.UUID, event *model.CommunicationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts.mu.Lock()
	defer f.contacts.mu.Unlock()

	stored, ok := f.contacts.contacts[event.ContactID]
	if !ok || stored.OrganizationID != orgID {
		return apperrors.NotFound("contact", nil)
	}

	now := time.Now()
	event.CreatedAt = now
	channel := string(event.Channel)
	stored.TotalCommunications++
	stored.LastCommunicationAt = &now
	stored.LastCommunicationChannel = &channel

	cp := *event
	f.events[event.ContactID] = append(f.events[event.ContactID], &cp)
	return nil
}

func (f *flowCommStore) ListByContact(_ context.Context, _ uuid.UUID, contactID uuid.UUID, _ model.Pagination) ([]*model.CommunicationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[contactID], nil
}

func (f *flowCommStore) CountByContact(_ context.Context, _ uuid.UUID, contactID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events[contactID]), nil
}

// The full contact journey through the real services: a converted
// prospect becomes a contact, the patient record links to it, one
// message is logged, and the recomputed score lands on the stored row.
func TestProspectToPatientEngagementFlow(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	commStore := newFlowCommStore(fx.contacts)
	commsSvc := comms.NewService(commStore, testMetrics)
	scoringSvc := scoring.NewService(fx.contacts, testMetrics)

	prospect := fx.addProspect("converted", strPtr("maria@example.com"), nil)
	contactID, err := fx.svc.SyncProspect(ctx, fx.cfg, prospect.ID)
	require.NoError(t, err)

	contact, err := fx.contacts.Get(ctx, fx.cfg.OrganizationID, contactID)
	require.NoError(t, err)
	assert.Equal(t, model.StagePatient, contact.LifecycleStage)
	assert.Equal(t, 0, contact.TotalCommunications)

	patient := fx.addPatient("active", strPtr("maria@example.com"), nil)
	linkedID, err := fx.svc.SyncPatient(ctx, fx.cfg, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, contactID, linkedID)
	assert.Equal(t, 1, fx.contacts.count())

	event, err := commsSvc.LogCommunication(ctx, fx.cfg, contactID, &model.LogCommunicationRequest{
		Channel:   "sms",
		Direction: "outbound",
		Content:   "Welcome to the practice",
	})
	require.NoError(t, err)
	assert.Equal(t, model.CommunicationStatusSent, event.Status)

	contact, err = fx.contacts.Get(ctx, fx.cfg.OrganizationID, contactID)
	require.NoError(t, err)
	assert.Equal(t, patient.ID, *contact.PatientID)
	assert.Equal(t, prospect.ID, *contact.ProspectID)
	assert.Equal(t, model.StageActivePatient, contact.LifecycleStage)
	assert.Equal(t, 1, contact.TotalCommunications)

	count, err := commStore.CountByContact(ctx, fx.cfg.OrganizationID, contactID)
	require.NoError(t, err)
	assert.Equal(t, contact.TotalCommunications, count)

	// active_patient stage 15 + one communication 3, nothing else.
	score, err := scoringSvc.RecomputeScore(ctx, fx.cfg, contactID)
	require.NoError(t, err)
	assert.Equal(t, 18, score)

	contact, err = fx.contacts.Get(ctx, fx.cfg.OrganizationID, contactID)
	require.NoError(t, err)
	assert.Equal(t, 18, contact.EngagementScore)
}
