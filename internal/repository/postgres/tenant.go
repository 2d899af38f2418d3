package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

type tenantRepository struct {
	db *sqlx.DB
}

func NewTenantRepository(db *sqlx.DB) repository.TenantRepository {
	return &tenantRepository{db: db}
}

// GetEngineConfig returns the tenant's stored engine config, falling
// back to stock weights when the organization has no settings row.
func (r *tenantRepository) GetEngineConfig(ctx context.Context, orgID uuid.UUID) (*model.EngineConfig, error) {
	query := `SELECT organization_id, settings, updated_at FROM organization_settings WHERE organization_id = $1`
	var settings model.OrganizationSettings
	if err := r.db.GetContext(ctx, &settings, query, orgID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &model.EngineConfig{
				OrganizationID: orgID,
				Scoring:        model.DefaultScoringConfig(),
			}, nil
		}
		return nil, fmt.Errorf("failed to get organization settings: %w", err)
	}

	cfg := model.EngineConfig{
		OrganizationID: orgID,
		Scoring:        model.DefaultScoringConfig(),
	}
	if len(settings.SettingsJSON) > 0 {
		if err := json.Unmarshal(settings.SettingsJSON, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal engine config: %w", err)
		}
		cfg.OrganizationID = orgID
	}
	return &cfg, nil
}
