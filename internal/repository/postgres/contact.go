package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

type contactRepository struct {
	BaseRepository
	q queryer
}

func NewContactRepository(db *sqlx.DB) repository.ContactRepository {
	return &contactRepository{BaseRepository: NewBaseRepository(db), q: db}
}

func (r *contactRepository) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Contact, error) {
	query := `SELECT * FROM crm_contacts WHERE organization_id = $1 AND id = $2`
	var contact model.Contact
	if err := r.q.GetContext(ctx, &contact, query, orgID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("contact", err)
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &contact, nil
}

func (r *contactRepository) GetByProspectID(ctx context.Context, orgID, prospectID uuid.UUID) (*model.Contact, error) {
	query := `SELECT * FROM crm_contacts WHERE organization_id = $1 AND prospect_id = $2`
	var contact model.Contact
	if err := r.q.GetContext(ctx, &contact, query, orgID, prospectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("contact", err)
		}
		return nil, fmt.Errorf("failed to get contact by prospect: %w", err)
	}
	return &contact, nil
}

func (r *contactRepository) GetByPatientID(ctx context.Context, orgID, patientID uuid.UUID) (*model.Contact, error) {
	query := `SELECT * FROM crm_contacts WHERE organization_id = $1 AND patient_id = $2`
	var contact model.Contact
	if err := r.q.GetContext(ctx, &contact, query, orgID, patientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("contact", err)
		}
		return nil, fmt.Errorf("failed to get contact by patient: %w", err)
	}
	return &contact, nil
}

// LIMIT 2 is load-bearing: one row is a match, two rows is ambiguity the
// resolver must surface instead of resolving silently.
func (r *contactRepository) FindByMatchKey(ctx context.Context, orgID uuid.UUID, key model.MatchKey) ([]*model.Contact, error) {
	var (
		query string
		args  []interface{}
	)

	switch key.Rule {
	case model.MatchByEmail:
		query = `SELECT * FROM crm_contacts WHERE organization_id = $1 AND lower(email) = lower($2) LIMIT 2`
		args = []interface{}{orgID, key.Email}
	case model.MatchByPhone:
		query = `SELECT * FROM crm_contacts WHERE organization_id = $1 AND phone = $2 LIMIT 2`
		args = []interface{}{orgID, key.Phone}
	case model.MatchByName:
		query = `SELECT * FROM crm_contacts WHERE organization_id = $1 AND lower(first_name) = lower($2) AND lower(last_name) = lower($3) LIMIT 2`
		args = []interface{}{orgID, key.FirstName, key.LastName}
	default:
		return nil, fmt.Errorf("unknown match rule: %s", key.Rule)
	}

	var contacts []*model.Contact
	if err := r.q.SelectContext(ctx, &contacts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find contacts by %s: %w", key.Rule, err)
	}
	return contacts, nil
}

func (r *contactRepository) Create(ctx context.Context, contact *model.Contact) error {
	query := `
		INSERT INTO crm_contacts (
			id, organization_id, prospect_id, patient_id,
			first_name, last_name, email, phone, date_of_birth,
			address, city, state, zip,
			lifecycle_stage, source,
			total_communications, total_revenue, engagement_score,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, 0, 0, 0, $16, $17
		)
	`
	contact.CreatedAt = time.Now()
	contact.UpdatedAt = time.Now()

	_, err := r.q.ExecContext(ctx, query,
		contact.ID,
		contact.OrganizationID,
		contact.ProspectID,
		contact.PatientID,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.Phone,
		contact.DateOfBirth,
		contact.Address,
		contact.City,
		contact.State,
		contact.Zip,
		contact.LifecycleStage,
		contact.Source,
		contact.CreatedAt,
		contact.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
		}
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

func (r *contactRepository) UpdateProfile(ctx context.Context, contact *model.Contact) error {
	query := `
		UPDATE crm_contacts SET
			first_name = $1, last_name = $2, email = $3, phone = $4,
			date_of_birth = $5, address = $6, city = $7, state = $8, zip = $9,
			lifecycle_stage = $10, updated_at = $11
		WHERE organization_id = $12 AND id = $13
	`
	contact.UpdatedAt = time.Now()

	res, err := r.q.ExecContext(ctx, query,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.Phone,
		contact.DateOfBirth,
		contact.Address,
		contact.City,
		contact.State,
		contact.Zip,
		contact.LifecycleStage,
		contact.UpdatedAt,
		contact.OrganizationID,
		contact.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("contact", nil)
	}
	return nil
}

// LinkPatient attaches the patient back-reference to a matched contact.
// The patient_id guard keeps a concurrently linked contact from being
// silently re-linked to a different patient.
func (r *contactRepository) LinkPatient(ctx context.Context, contact *model.Contact) error {
	query := `
		UPDATE crm_contacts SET
			patient_id = $1,
			first_name = $2, last_name = $3, email = $4, phone = $5,
			date_of_birth = $6, address = $7, city = $8, state = $9, zip = $10,
			lifecycle_stage = $11, updated_at = $12
		WHERE organization_id = $13 AND id = $14
		  AND (patient_id IS NULL OR patient_id = $1)
	`
	contact.UpdatedAt = time.Now()

	res, err := r.q.ExecContext(ctx, query,
		contact.PatientID,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.Phone,
		contact.DateOfBirth,
		contact.Address,
		contact.City,
		contact.State,
		contact.Zip,
		contact.LifecycleStage,
		contact.UpdatedAt,
		contact.OrganizationID,
		contact.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
		}
		return fmt.Errorf("failed to link patient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: contact %s already linked", repository.ErrDuplicate, contact.ID)
	}
	return nil
}

func (r *contactRepository) UpdateEngagementScore(ctx context.Context, orgID, id uuid.UUID, score int) error {
	query := `UPDATE crm_contacts SET engagement_score = $1, updated_at = $2 WHERE organization_id = $3 AND id = $4`
	res, err := r.q.ExecContext(ctx, query, score, time.Now(), orgID, id)
	if err != nil {
		return fmt.Errorf("failed to update engagement score: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("contact", nil)
	}
	return nil
}

func (r *contactRepository) ApplyAggregates(ctx context.Context, orgID, id uuid.UUID, lastAppointmentAt *time.Time, revenueDelta *float64) error {
	query := `
		UPDATE crm_contacts SET
			last_appointment_at = COALESCE($1, last_appointment_at),
			total_revenue = total_revenue + COALESCE($2, 0),
			updated_at = $3
		WHERE organization_id = $4 AND id = $5
	`
	res, err := r.q.ExecContext(ctx, query, lastAppointmentAt, revenueDelta, time.Now(), orgID, id)
	if err != nil {
		return fmt.Errorf("failed to apply aggregates: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("contact", nil)
	}
	return nil
}

// WithMatchLock serializes find-or-create against every sync that could
// resolve to the same person. Keys are locked in sorted order so two
// transactions sharing any subset of keys cannot deadlock.
func (r *contactRepository) WithMatchLock(ctx context.Context, lockKeys []string, fn func(repository.ContactRepository) error) error {
	keys := make([]string, len(lockKeys))
	copy(keys, lockKeys)
	sort.Strings(keys)

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, key := range keys {
			if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
				return fmt.Errorf("failed to acquire match lock: %w", err)
			}
		}
		return fn(&contactRepository{BaseRepository: r.BaseRepository, q: tx})
	})
}
