package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

const (
	HeaderOrganizationID = "X-Organization-ID"
	ContextEngineConfig  = "engine_config"
)

// TenantMiddleware resolves the per-organization engine config for each
// request and hands it to handlers as an explicit value. Business rules
// never live in package-level state, so one process serves all tenants.
type TenantMiddleware struct {
	tenants repository.TenantRepository
	cache   *cache.Cache
}

type TenantConfig struct {
	CacheDuration   time.Duration
	CleanupInterval time.Duration
}

func DefaultTenantConfig() TenantConfig {
	return TenantConfig{
		CacheDuration:   15 * time.Minute,
		CleanupInterval: time.Hour,
	}
}

func NewTenantMiddleware(tenants repository.TenantRepository, config TenantConfig) *TenantMiddleware {
	return &TenantMiddleware{
		tenants: tenants,
		cache:   cache.New(config.CacheDuration, config.CleanupInterval),
	}
}

func (m *TenantMiddleware) ResolveTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgHeader := c.GetHeader(HeaderOrganizationID)
		if orgHeader == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "organization ID is required"})
			return
		}

		orgID, err := uuid.Parse(orgHeader)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid organization ID"})
			return
		}

		if cached, found := m.cache.Get(orgHeader); found {
			c.Set(ContextEngineConfig, cached.(*model.EngineConfig))
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cfg, err := m.tenants.GetEngineConfig(ctx, orgID)
		if err != nil {
			log.Error().Err(err).Str("organization_id", orgHeader).Msg("failed to load engine config")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load organization settings"})
			return
		}

		m.cache.Set(orgHeader, cfg, cache.DefaultExpiration)
		c.Set(ContextEngineConfig, cfg)
		c.Next()
	}
}

// EngineConfigFromContext returns the resolved tenant config, falling
// back to stock weights if the middleware did not run (tests).
func EngineConfigFromContext(c *gin.Context) *model.EngineConfig {
	if v, exists := c.Get(ContextEngineConfig); exists {
		if cfg, ok := v.(*model.EngineConfig); ok {
			return cfg
		}
	}
	return &model.EngineConfig{Scoring: model.DefaultScoringConfig()}
}
