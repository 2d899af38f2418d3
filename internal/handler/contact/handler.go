package contact

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/middleware"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/service/comms"
	"github.com/jwalitptl/crm-api/internal/service/resolver"
	"github.com/jwalitptl/crm-api/internal/service/scoring"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

type Handler struct {
	resolver resolver.ResolverService
	scorer   scoring.ScorerService
	comms    comms.CommsService
	contacts repository.ContactRepository
	outbox   repository.OutboxRepository
}

func NewHandler(
	resolverSvc resolver.ResolverService,
	scorerSvc scoring.ScorerService,
	commsSvc comms.CommsService,
	contacts repository.ContactRepository,
	outbox repository.OutboxRepository,
) *Handler {
	return &Handler{
		resolver: resolverSvc,
		scorer:   scorerSvc,
		comms:    commsSvc,
		contacts: contacts,
		outbox:   outbox,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	sync := r.Group("/sync")
	{
		sync.POST("/prospects/:id", h.SyncProspect)
		sync.POST("/patients/:id", h.SyncPatient)
	}

	contacts := r.Group("/contacts")
	{
		contacts.GET("/:id", h.GetContact)
		contacts.GET("/:id/communications", h.ListCommunications)
		contacts.POST("/:id/communications", h.LogCommunication)
		contacts.POST("/:id/score", h.RecomputeScore)
		contacts.PATCH("/:id/aggregates", h.UpdateAggregates)
	}

	r.GET("/lifecycle-stages", h.ListLifecycleStages)
}

func (h *Handler) SyncProspect(c *gin.Context) {
	cfg := middleware.EngineConfigFromContext(c)

	prospectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid prospect ID"))
		return
	}

	contactID, err := h.resolver.SyncProspect(c.Request.Context(), cfg, prospectID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.emitEvent(c, model.EventContactSynced, gin.H{
		"contact_id":      contactID,
		"organization_id": cfg.OrganizationID,
		"source":          "prospect",
		"prospect_id":     prospectID,
	})

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"contact_id": contactID}))
}

func (h *Handler) SyncPatient(c *gin.Context) {
	cfg := middleware.EngineConfigFromContext(c)

	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
		return
	}

	contactID, err := h.resolver.SyncPatient(c.Request.Context(), cfg, patientID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.emitEvent(c, model.EventContactSynced, gin.H{
		"contact_id":      contactID,
		"organization_id": cfg.OrganizationID,
		"source":          "patient",
		"patient_id":      patientID,
	})

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"contact_id": contactID}))
}

func (h *Handler) GetContact(c *gin.Context) {
	cfg := middleware.EngineConfigFromContext(c)

	contactID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid contact ID"))
		return
	}

	contact, err := h.contacts.Get(c.Request.Context(), cfg.OrganizationID, contactID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(contact))
}

func (h *Handler) ListCommunications(c *gin.Context) {
	cfg := middleware.EngineConfigFromContext(c)

	contactID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid contact ID"))
		return
	}

	var p model.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	events, err := h.comms.ListCommunications(c.Request.Context(), cfg, contactID, p)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(events))
}

func (h *Handler) LogCommunication(c *gin.Context) {
	cfg := middleware.EngineConfigFromContext(c)

	contactID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid contact ID"))
		return
	}

	var req model.LogCommunicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	event, err := h.comms.LogCommunication(c.Request.Context(), cfg, contactID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.emitEvent(c, model.EventCommunicationLogged, gin.H{
		"contact_id":      contactID,
		"organization_id": cfg.OrganizationID,
		"event_id":        event.ID,
		"channel":         event.Channel,
		"direction":       event.Direction,
	})

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(event))
}

func (h *Handler) RecomputeScore(c *gin.Context) {
	cfg := middleware.EngineConfigFromContext(c)

	contactID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid contact ID"))
		return
	}

	score, err := h.scorer.RecomputeScore(c.Request.Context(), cfg, contactID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.emitEvent(c, model.EventEngagementScoreUpdate, gin.H{
		"contact_id":      contactID,
		"organization_id": cfg.OrganizationID,
		"score":           score,
	})

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"score": score}))
}

func (h *Handler) UpdateAggregates(c *gin.Context) {
	cfg := middleware.EngineConfigFromContext(c)

	contactID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid contact ID"))
		return
	}

	var req model.UpdateAggregatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if req.LastAppointmentAt == nil && req.RevenueDelta == nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("at least one aggregate field is required"))
		return
	}

	if err := h.contacts.ApplyAggregates(c.Request.Context(), cfg.OrganizationID, contactID, req.LastAppointmentAt, req.RevenueDelta); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"contact_id": contactID}))
}

func (h *Handler) ListLifecycleStages(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(model.StageCatalog))
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
		return
	}
	c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
}

// emitEvent writes an outbox row for the worker to publish. Emission is
// best-effort: the operation already committed, so a failed outbox write
// is logged rather than surfaced.
func (h *Handler) emitEvent(c *gin.Context, eventType string, payload gin.H) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal outbox payload")
		return
	}
	evt := &model.OutboxEvent{
		EventType: eventType,
		Payload:   data,
	}
	if err := h.outbox.Create(c.Request.Context(), evt); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to create outbox event")
	}
}
