// Package resolver consolidates independently-produced prospect and
// patient records into a single contact per real person. Matching is
// exact-only by design: a false-negative leaves an unmerged duplicate,
// a false-positive corrupts one person's record with another's.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/service/lifecycle"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

// SourcePMSSync marks contacts first seen through the patient producer.
const SourcePMSSync = "pms_sync"

type ResolverService interface {
	SyncProspect(ctx context.Context, cfg *model.EngineConfig, prospectID uuid.UUID) (uuid.UUID, error)
	SyncPatient(ctx context.Context, cfg *model.EngineConfig, patientID uuid.UUID) (uuid.UUID, error)
}

type Service struct {
	contacts  repository.ContactRepository
	prospects repository.ProspectRepository
	patients  repository.PatientRepository
	metrics   *metrics.Metrics
}

func NewService(contacts repository.ContactRepository, prospects repository.ProspectRepository, patients repository.PatientRepository, m *metrics.Metrics) *Service {
	return &Service{
		contacts:  contacts,
		prospects: prospects,
		patients:  patients,
		metrics:   m,
	}
}

// SyncProspect finds or creates the contact for a prospect record.
// Prospects never run the match chain: an unlinked prospect always
// creates a fresh contact.
func (s *Service) SyncProspect(ctx context.Context, cfg *model.EngineConfig, prospectID uuid.UUID) (uuid.UUID, error) {
	prospect, err := s.prospects.Get(ctx, cfg.OrganizationID, prospectID)
	if err != nil {
		return uuid.Nil, err
	}

	stage := lifecycle.ClassifyStage(lifecycle.SourceProspect, prospect.Status)

	existing, err := s.contacts.GetByProspectID(ctx, cfg.OrganizationID, prospectID)
	if err == nil {
		applyProspect(existing, prospect, stage)
		if err := s.contacts.UpdateProfile(ctx, existing); err != nil {
			return uuid.Nil, fmt.Errorf("failed to apply prospect sync: %w", err)
		}
		s.metrics.SyncsTotal.WithLabelValues("prospect", "updated").Inc()
		return existing.ID, nil
	}
	if !apperrors.IsNotFound(err) {
		return uuid.Nil, err
	}

	contact := &model.Contact{
		Base:           model.Base{ID: uuid.New()},
		OrganizationID: cfg.OrganizationID,
		ProspectID:     &prospect.ID,
		Source:         prospect.Source,
	}
	applyProspect(contact, prospect, stage)

	if err := s.contacts.Create(ctx, contact); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost the race against a concurrent sync of this prospect.
			// Converge on the winner's contact.
			winner, getErr := s.contacts.GetByProspectID(ctx, cfg.OrganizationID, prospectID)
			if getErr != nil {
				return uuid.Nil, fmt.Errorf("failed to load contact after duplicate create: %w", getErr)
			}
			applyProspect(winner, prospect, stage)
			if updErr := s.contacts.UpdateProfile(ctx, winner); updErr != nil {
				return uuid.Nil, fmt.Errorf("failed to apply prospect sync: %w", updErr)
			}
			s.metrics.SyncsTotal.WithLabelValues("prospect", "updated").Inc()
			return winner.ID, nil
		}
		return uuid.Nil, fmt.Errorf("failed to create contact: %w", err)
	}
	s.metrics.ContactsCreated.Inc()
	s.metrics.SyncsTotal.WithLabelValues("prospect", "created").Inc()
	return contact.ID, nil
}

// SyncPatient finds or creates the contact for a patient record. When
// no contact is linked yet, it runs the strict-precedence match chain
// (email, then phone, then exact name) under match-key advisory locks
// so two concurrent syncs for the same person cannot both create.
func (s *Service) SyncPatient(ctx context.Context, cfg *model.EngineConfig, patientID uuid.UUID) (uuid.UUID, error) {
	patient, err := s.patients.Get(ctx, cfg.OrganizationID, patientID)
	if err != nil {
		return uuid.Nil, err
	}

	stage := lifecycle.ClassifyStage(lifecycle.SourcePatient, patient.Status)

	existing, err := s.contacts.GetByPatientID(ctx, cfg.OrganizationID, patientID)
	if err == nil {
		applyPatient(existing, patient, stage)
		if err := s.contacts.UpdateProfile(ctx, existing); err != nil {
			return uuid.Nil, fmt.Errorf("failed to apply patient sync: %w", err)
		}
		s.metrics.SyncsTotal.WithLabelValues("patient", "updated").Inc()
		return existing.ID, nil
	}
	if !apperrors.IsNotFound(err) {
		return uuid.Nil, err
	}

	keys := matchKeys(patient)
	lockKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		lockKeys = append(lockKeys, k.LockKey(cfg.OrganizationID))
	}

	var contactID uuid.UUID
	err = s.contacts.WithMatchLock(ctx, lockKeys, func(txc repository.ContactRepository) error {
		id, lockErr := s.matchOrCreate(ctx, txc, cfg.OrganizationID, patient, stage, keys)
		contactID = id
		return lockErr
	})
	if err != nil {
		return uuid.Nil, err
	}
	return contactID, nil
}

// matchOrCreate runs inside the match-lock transaction.
func (s *Service) matchOrCreate(ctx context.Context, txc repository.ContactRepository, orgID uuid.UUID, patient *model.Patient, stage model.LifecycleStage, keys []model.MatchKey) (uuid.UUID, error) {
	// The back-reference may have appeared while we waited on the lock.
	if existing, err := txc.GetByPatientID(ctx, orgID, patient.ID); err == nil {
		applyPatient(existing, patient, stage)
		if err := txc.UpdateProfile(ctx, existing); err != nil {
			return uuid.Nil, fmt.Errorf("failed to apply patient sync: %w", err)
		}
		s.metrics.SyncsTotal.WithLabelValues("patient", "updated").Inc()
		return existing.ID, nil
	} else if !apperrors.IsNotFound(err) {
		return uuid.Nil, err
	}

	for _, key := range keys {
		matches, err := txc.FindByMatchKey(ctx, orgID, key)
		if err != nil {
			return uuid.Nil, err
		}
		switch len(matches) {
		case 0:
			continue
		case 1:
			match := matches[0]
			match.PatientID = &patient.ID
			applyPatient(match, patient, stage)
			if err := txc.LinkPatient(ctx, match); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					// The matched contact is already linked to another
					// patient sharing this key. Same person, one contact:
					// converge on it and leave the first link and its
					// profile untouched.
					s.metrics.MatchesTotal.WithLabelValues(string(key.Rule)).Inc()
					s.metrics.SyncsTotal.WithLabelValues("patient", "matched").Inc()
					return match.ID, nil
				}
				return uuid.Nil, err
			}
			s.metrics.MatchesTotal.WithLabelValues(string(key.Rule)).Inc()
			s.metrics.SyncsTotal.WithLabelValues("patient", "linked").Inc()
			return match.ID, nil
		default:
			s.metrics.ConflictsTotal.WithLabelValues(string(key.Rule)).Inc()
			return uuid.Nil, apperrors.Conflict(
				fmt.Sprintf("multiple contacts match patient %s by %s", patient.ID, key.Rule), nil)
		}
	}

	contact := &model.Contact{
		Base:           model.Base{ID: uuid.New()},
		OrganizationID: orgID,
		PatientID:      &patient.ID,
		Source:         SourcePMSSync,
	}
	applyPatient(contact, patient, stage)

	if err := txc.Create(ctx, contact); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create contact: %w", err)
	}
	s.metrics.ContactsCreated.Inc()
	s.metrics.SyncsTotal.WithLabelValues("patient", "created").Inc()
	return contact.ID, nil
}

// matchKeys builds the precedence chain from whichever keys the patient
// record carries. Normalization here must agree with the store's match
// queries and with LockKey derivation.
func matchKeys(patient *model.Patient) []model.MatchKey {
	var keys []model.MatchKey
	if patient.Email != nil && strings.TrimSpace(*patient.Email) != "" {
		keys = append(keys, model.MatchKey{
			Rule:  model.MatchByEmail,
			Email: strings.ToLower(strings.TrimSpace(*patient.Email)),
		})
	}
	if patient.Phone != nil && strings.TrimSpace(*patient.Phone) != "" {
		keys = append(keys, model.MatchKey{
			Rule:  model.MatchByPhone,
			Phone: strings.TrimSpace(*patient.Phone),
		})
	}
	if patient.FirstName != "" && patient.LastName != "" {
		keys = append(keys, model.MatchKey{
			Rule:      model.MatchByName,
			FirstName: strings.ToLower(patient.FirstName),
			LastName:  strings.ToLower(patient.LastName),
		})
	}
	return keys
}

func applyProspect(contact *model.Contact, prospect *model.Prospect, stage model.LifecycleStage) {
	contact.FirstName = prospect.FirstName
	contact.LastName = prospect.LastName
	contact.Email = prospect.Email
	contact.Phone = prospect.Phone
	contact.LifecycleStage = stage
	contact.UpdatedAt = time.Now()
}

func applyPatient(contact *model.Contact, patient *model.Patient, stage model.LifecycleStage) {
	contact.FirstName = patient.FirstName
	contact.LastName = patient.LastName
	contact.Email = patient.Email
	contact.Phone = patient.Phone
	contact.DateOfBirth = patient.DateOfBirth
	contact.Address = patient.Address
	contact.City = patient.City
	contact.State = patient.State
	contact.Zip = patient.Zip
	contact.LifecycleStage = stage
	contact.UpdatedAt = time.Now()
}
