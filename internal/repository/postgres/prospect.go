package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

type prospectRepository struct {
	db *sqlx.DB
}

func NewProspectRepository(db *sqlx.DB) repository.ProspectRepository {
	return &prospectRepository{db: db}
}

func (r *prospectRepository) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Prospect, error) {
	query := `SELECT * FROM leads WHERE organization_id = $1 AND id = $2`
	var prospect model.Prospect
	if err := r.db.GetContext(ctx, &prospect, query, orgID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("prospect", err)
		}
		return nil, fmt.Errorf("failed to get prospect: %w", err)
	}
	return &prospect, nil
}
