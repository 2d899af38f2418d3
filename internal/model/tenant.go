package model

import (
	"time"

	"github.com/google/uuid"
)

// RecencyBand awards Points when the last appointment is under Days old.
// Bands are evaluated in order; the first hit wins.
type RecencyBand struct {
	Days   int `json:"days" mapstructure:"days"`
	Points int `json:"points" mapstructure:"points"`
}

// RevenueBand awards Points when lifetime revenue exceeds Above.
type RevenueBand struct {
	Above  float64 `json:"above" mapstructure:"above"`
	Points int     `json:"points" mapstructure:"points"`
}

// ScoringConfig holds the engagement-score weights for one tenant. It is
// passed into the scorer by value so one engine instance can serve many
// tenants concurrently; there is no package-level default state.
type ScoringConfig struct {
	RecencyBands    []RecencyBand          `json:"recency_bands" mapstructure:"recency_bands"`
	VolumePerEvent  int                    `json:"volume_per_event" mapstructure:"volume_per_event"`
	VolumeCap       int                    `json:"volume_cap" mapstructure:"volume_cap"`
	RevenueBands    []RevenueBand          `json:"revenue_bands" mapstructure:"revenue_bands"`
	StageWeights    map[LifecycleStage]int `json:"stage_weights" mapstructure:"stage_weights"`
	MaxScore        int                    `json:"max_score" mapstructure:"max_score"`
}

// DefaultScoringConfig returns the stock weights. The component caps sum
// to 70, so the max clamp only binds for tenants that raise weights.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		RecencyBands: []RecencyBand{
			{Days: 30, Points: 20},
			{Days: 90, Points: 15},
			{Days: 180, Points: 10},
			{Days: 365, Points: 5},
		},
		VolumePerEvent: 3,
		VolumeCap:      15,
		RevenueBands: []RevenueBand{
			{Above: 5000, Points: 20},
			{Above: 2000, Points: 15},
			{Above: 500, Points: 10},
			{Above: 0, Points: 5},
		},
		StageWeights: map[LifecycleStage]int{
			StageActivePatient:   15,
			StagePatient:         12,
			StageOpportunity:     10,
			StageQualifiedLead:   8,
			StageLead:            5,
			StageInactivePatient: 3,
			StageSubscriber:      2,
			StageLost:            0,
		},
		MaxScore: 100,
	}
}

// EngineConfig is the per-tenant configuration resolved for each request.
type EngineConfig struct {
	OrganizationID uuid.UUID         `json:"organization_id"`
	Scoring        ScoringConfig     `json:"scoring"`
	Terminology    map[string]string `json:"terminology"`
}

// OrganizationSettings is the stored form of EngineConfig.
type OrganizationSettings struct {
	OrganizationID uuid.UUID `db:"organization_id"`
	SettingsJSON   []byte    `db:"settings"`
	UpdatedAt      time.Time `db:"updated_at"`
}
