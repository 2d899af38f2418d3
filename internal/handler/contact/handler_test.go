package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/crm-api/internal/middleware"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

type stubResolver struct {
	contactID uuid.UUID
	err       error
}

func (s *stubResolver) SyncProspect(context.Context, *model.EngineConfig, uuid.UUID) (uuid.UUID, error) {
	return s.contactID, s.err
}

func (s *stubResolver) SyncPatient(context.Context, *model.EngineConfig, uuid.UUID) (uuid.UUID, error) {
	return s.contactID, s.err
}

type stubScorer struct {
	score int
	err   error
}

func (s *stubScorer) RecomputeScore(context.Context, *model.EngineConfig, uuid.UUID) (int, error) {
	return s.score, s.err
}

type stubComms struct {
	event *model.CommunicationEvent
	err   error
}

func (s *stubComms) LogCommunication(_ context.Context, _ *model.EngineConfig, contactID uuid.UUID, req *model.LogCommunicationRequest) (*model.CommunicationEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	channel := model.CommunicationChannel(req.Channel)
	if !channel.Valid() {
		return nil, apperrors.BadRequest("invalid channel", nil)
	}
	s.event = &model.CommunicationEvent{
		ID:        uuid.New(),
		ContactID: contactID,
		Channel:   channel,
		Direction: model.CommunicationDirection(req.Direction),
		Status:    model.CommunicationStatusSent,
		Content:   req.Content,
	}
	return s.event, nil
}

func (s *stubComms) ListCommunications(context.Context, *model.EngineConfig, uuid.UUID, model.Pagination) ([]*model.CommunicationEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.event == nil {
		return nil, nil
	}
	return []*model.CommunicationEvent{s.event}, nil
}

type stubContacts struct {
	contact    *model.Contact
	aggregates int
}

func (s *stubContacts) Get(_ context.Context, orgID, id uuid.UUID) (*model.Contact, error) {
	if s.contact == nil || s.contact.ID != id {
		return nil, apperrors.NotFound("contact", nil)
	}
	return s.contact, nil
}

func (s *stubContacts) ApplyAggregates(_ context.Context, _, id uuid.UUID, _ *time.Time, _ *float64) error {
	if s.contact == nil || s.contact.ID != id {
		return apperrors.NotFound("contact", nil)
	}
	s.aggregates++
	return nil
}

func (s *stubContacts) GetByProspectID(context.Context, uuid.UUID, uuid.UUID) (*model.Contact, error) {
	return nil, apperrors.NotFound("contact", nil)
}

func (s *stubContacts) GetByPatientID(context.Context, uuid.UUID, uuid.UUID) (*model.Contact, error) {
	return nil, apperrors.NotFound("contact", nil)
}

func (s *stubContacts) FindByMatchKey(context.Context, uuid.UUID, model.MatchKey) ([]*model.Contact, error) {
	return nil, nil
}

func (s *stubContacts) Create(context.Context, *model.Contact) error        { return nil }
func (s *stubContacts) UpdateProfile(context.Context, *model.Contact) error { return nil }
func (s *stubContacts) LinkPatient(context.Context, *model.Contact) error   { return nil }

func (s *stubContacts) UpdateEngagementScore(context.Context, uuid.UUID, uuid.UUID, int) error {
	return nil
}

func (s *stubContacts) WithMatchLock(_ context.Context, _ []string, fn func(repository.ContactRepository) error) error {
	return fn(s)
}

type stubOutbox struct {
	events []*model.OutboxEvent
}

func (s *stubOutbox) Create(_ context.Context, event *model.OutboxEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutbox) GetPendingEventsWithLock(context.Context, int) ([]*model.OutboxEvent, error) {
	return s.events, nil
}

func (s *stubOutbox) UpdateStatus(context.Context, uuid.UUID, model.OutboxStatus, *string) error {
	return nil
}

func (s *stubOutbox) DeleteProcessedBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type handlerFixture struct {
	router   *gin.Engine
	resolver *stubResolver
	scorer   *stubScorer
	comms    *stubComms
	contacts *stubContacts
	outbox   *stubOutbox
	orgID    uuid.UUID
}

func newHandlerFixture() *handlerFixture {
	gin.SetMode(gin.TestMode)

	fx := &handlerFixture{
		resolver: &stubResolver{contactID: uuid.New()},
		scorer:   &stubScorer{score: 42},
		comms:    &stubComms{},
		contacts: &stubContacts{},
		outbox:   &stubOutbox{},
		orgID:    uuid.New(),
	}

	h := NewHandler(fx.resolver, fx.scorer, fx.comms, fx.contacts, fx.outbox)

	router := gin.New()
	group := router.Group("/api/v1")
	group.Use(func(c *gin.Context) {
		c.Set(middleware.ContextEngineConfig, &model.EngineConfig{
			OrganizationID: fx.orgID,
			Scoring:        model.DefaultScoringConfig(),
		})
	})
	h.RegisterRoutes(group)

	fx.router = router
	return fx
}

func (fx *handlerFixture) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestSyncPatientEndpoint(t *testing.T) {
	fx := newHandlerFixture()

	w, resp := fx.do(t, http.MethodPost, "/api/v1/sync/patients/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	data := resp["data"].(map[string]interface{})
	assert.Equal(t, fx.resolver.contactID.String(), data["contact_id"])

	require.Len(t, fx.outbox.events, 1)
	assert.Equal(t, model.EventContactSynced, fx.outbox.events[0].EventType)
}

func TestSyncPatientInvalidID(t *testing.T) {
	fx := newHandlerFixture()
	w, _ := fx.do(t, http.MethodPost, "/api/v1/sync/patients/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, fx.outbox.events)
}

func TestSyncPatientConflictStatus(t *testing.T) {
	fx := newHandlerFixture()
	fx.resolver.err = apperrors.Conflict("multiple contacts match", nil)

	w, resp := fx.do(t, http.MethodPost, "/api/v1/sync/patients/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "error", resp["status"])
	assert.Empty(t, fx.outbox.events)
}

func TestSyncProspectNotFoundStatus(t *testing.T) {
	fx := newHandlerFixture()
	fx.resolver.err = apperrors.NotFound("prospect", nil)

	w, _ := fx.do(t, http.MethodPost, "/api/v1/sync/prospects/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetContactEndpoint(t *testing.T) {
	fx := newHandlerFixture()
	fx.contacts.contact = &model.Contact{
		Base:           model.Base{ID: uuid.New()},
		OrganizationID: fx.orgID,
		FirstName:      "Maria",
		LifecycleStage: model.StageActivePatient,
	}

	w, resp := fx.do(t, http.MethodGet, "/api/v1/contacts/"+fx.contacts.contact.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "Maria", data["first_name"])
	assert.Equal(t, "active_patient", data["lifecycle_stage"])

	w, _ = fx.do(t, http.MethodGet, "/api/v1/contacts/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogCommunicationEndpoint(t *testing.T) {
	fx := newHandlerFixture()
	contactID := uuid.New()

	w, resp := fx.do(t, http.MethodPost, "/api/v1/contacts/"+contactID.String()+"/communications", gin.H{
		"channel":   "sms",
		"direction": "outbound",
		"content":   "Appointment reminder",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "sent", data["status"])

	require.Len(t, fx.outbox.events, 1)
	assert.Equal(t, model.EventCommunicationLogged, fx.outbox.events[0].EventType)
}

func TestLogCommunicationMissingContent(t *testing.T) {
	fx := newHandlerFixture()

	w, _ := fx.do(t, http.MethodPost, "/api/v1/contacts/"+uuid.NewString()+"/communications", gin.H{
		"channel":   "sms",
		"direction": "outbound",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, fx.outbox.events)
}

func TestRecomputeScoreEndpoint(t *testing.T) {
	fx := newHandlerFixture()

	w, resp := fx.do(t, http.MethodPost, "/api/v1/contacts/"+uuid.NewString()+"/score", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(42), data["score"])

	require.Len(t, fx.outbox.events, 1)
	assert.Equal(t, model.EventEngagementScoreUpdate, fx.outbox.events[0].EventType)
}

func TestUpdateAggregatesEndpoint(t *testing.T) {
	fx := newHandlerFixture()
	fx.contacts.contact = &model.Contact{
		Base:           model.Base{ID: uuid.New()},
		OrganizationID: fx.orgID,
	}
	path := "/api/v1/contacts/" + fx.contacts.contact.ID.String() + "/aggregates"

	w, _ := fx.do(t, http.MethodPatch, path, gin.H{"revenue_delta": 250.0})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, fx.contacts.aggregates)

	// An empty patch has nothing to apply.
	w, _ = fx.do(t, http.MethodPatch, path, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, fx.contacts.aggregates)
}

func TestListLifecycleStagesEndpoint(t *testing.T) {
	fx := newHandlerFixture()

	w, resp := fx.do(t, http.MethodGet, "/api/v1/lifecycle-stages", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	stages := resp["data"].([]interface{})
	assert.Len(t, stages, len(model.StageCatalog))
	first := stages[0].(map[string]interface{})
	assert.Equal(t, "subscriber", first["value"])
}
