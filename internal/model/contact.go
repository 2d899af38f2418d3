package model

import (
	"time"

	"github.com/google/uuid"
)

type LifecycleStage string

// Ordered by increasing commitment. Transitions may move backward,
// e.g. active_patient -> inactive_patient.
const (
	StageSubscriber      LifecycleStage = "subscriber"
	StageLead            LifecycleStage = "lead"
	StageQualifiedLead   LifecycleStage = "qualified_lead"
	StageOpportunity     LifecycleStage = "opportunity"
	StagePatient         LifecycleStage = "patient"
	StageActivePatient   LifecycleStage = "active_patient"
	StageInactivePatient LifecycleStage = "inactive_patient"
	StageLost            LifecycleStage = "lost"
)

// StageCatalog lists every stage with its display label, in order.
type StageInfo struct {
	Value LifecycleStage `json:"value"`
	Label string         `json:"label"`
}

var StageCatalog = []StageInfo{
	{StageSubscriber, "Subscriber"},
	{StageLead, "Lead"},
	{StageQualifiedLead, "Qualified Lead"},
	{StageOpportunity, "Opportunity"},
	{StagePatient, "Patient"},
	{StageActivePatient, "Active Patient"},
	{StageInactivePatient, "Inactive"},
	{StageLost, "Lost"},
}

func (s LifecycleStage) Valid() bool {
	switch s {
	case StageSubscriber, StageLead, StageQualifiedLead, StageOpportunity,
		StagePatient, StageActivePatient, StageInactivePatient, StageLost:
		return true
	}
	return false
}

// Contact is the canonical de-duplicated record for one real person,
// unified from the prospect and patient producers. ProspectID and
// PatientID each link at most one contact per upstream record; a contact
// may accumulate both over its lifetime.
type Contact struct {
	Base
	OrganizationID uuid.UUID      `db:"organization_id" json:"organization_id"`
	ProspectID     *uuid.UUID     `db:"prospect_id" json:"prospect_id,omitempty"`
	PatientID      *uuid.UUID     `db:"patient_id" json:"patient_id,omitempty"`
	FirstName      string         `db:"first_name" json:"first_name"`
	LastName       string         `db:"last_name" json:"last_name"`
	Email          *string        `db:"email" json:"email,omitempty"`
	Phone          *string        `db:"phone" json:"phone,omitempty"`
	DateOfBirth    *time.Time     `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Address        *string        `db:"address" json:"address,omitempty"`
	City           *string        `db:"city" json:"city,omitempty"`
	State          *string        `db:"state" json:"state,omitempty"`
	Zip            *string        `db:"zip" json:"zip,omitempty"`
	LifecycleStage LifecycleStage `db:"lifecycle_stage" json:"lifecycle_stage"`
	Source         string         `db:"source" json:"source"`

	// Aggregates are server-maintained, never client-supplied.
	TotalCommunications      int        `db:"total_communications" json:"total_communications"`
	LastCommunicationAt      *time.Time `db:"last_communication_at" json:"last_communication_at,omitempty"`
	LastCommunicationChannel *string    `db:"last_communication_channel" json:"last_communication_channel,omitempty"`
	LastAppointmentAt        *time.Time `db:"last_appointment_at" json:"last_appointment_at,omitempty"`
	TotalRevenue             float64    `db:"total_revenue" json:"total_revenue"`
	EngagementScore          int        `db:"engagement_score" json:"engagement_score"`
}

// MatchRule identifies which precedence rule of the fallback chain
// produced a match.
type MatchRule string

const (
	MatchByEmail MatchRule = "email"
	MatchByPhone MatchRule = "phone"
	MatchByName  MatchRule = "name"
)

// MatchKey is one normalized candidate key for the match phase.
type MatchKey struct {
	Rule      MatchRule
	Email     string
	Phone     string
	FirstName string
	LastName  string
}

// LockKey is the string the store's advisory lock is scoped to. Two
// syncs that could resolve to the same person must derive equal keys.
func (k MatchKey) LockKey(orgID uuid.UUID) string {
	switch k.Rule {
	case MatchByEmail:
		return orgID.String() + ":email:" + k.Email
	case MatchByPhone:
		return orgID.String() + ":phone:" + k.Phone
	default:
		return orgID.String() + ":name:" + k.FirstName + ":" + k.LastName
	}
}

// UpdateAggregatesRequest feeds appointment and revenue aggregates from
// the PMS sync. Both fields are optional; revenue is a delta.
type UpdateAggregatesRequest struct {
	LastAppointmentAt *time.Time `json:"last_appointment_at"`
	RevenueDelta      *float64   `json:"revenue_delta" binding:"omitempty,gte=0"`
}
