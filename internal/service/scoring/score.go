// Package scoring recomputes the 0-100 engagement score from a
// contact's stored aggregates. The score is always recomputed from
// scratch, never incrementally adjusted, so it is reproducible from the
// contact row alone.
package scoring

import (
	"time"

	"github.com/jwalitptl/crm-api/internal/model"
)

// Score computes the engagement score for a contact at a given instant
// under the tenant's weights. Pure: no clock reads, no store access.
func Score(contact *model.Contact, now time.Time, cfg model.ScoringConfig) int {
	score := 0

	if contact.LastAppointmentAt != nil {
		daysSince := int(now.Sub(*contact.LastAppointmentAt).Hours() / 24)
		for _, band := range cfg.RecencyBands {
			if daysSince < band.Days {
				score += band.Points
				break
			}
		}
	}

	if contact.TotalCommunications > 0 {
		volume := contact.TotalCommunications * cfg.VolumePerEvent
		if volume > cfg.VolumeCap {
			volume = cfg.VolumeCap
		}
		score += volume
	}

	if contact.TotalRevenue > 0 {
		for _, band := range cfg.RevenueBands {
			if contact.TotalRevenue > band.Above {
				score += band.Points
				break
			}
		}
	}

	score += cfg.StageWeights[contact.LifecycleStage]

	if score > cfg.MaxScore {
		score = cfg.MaxScore
	}
	if score < 0 {
		score = 0
	}
	return score
}
