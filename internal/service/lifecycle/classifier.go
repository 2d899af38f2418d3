// Package lifecycle maps upstream record status to a contact lifecycle
// stage. Classification is pure: it reads only the status value passed
// in and never touches the contact store.
package lifecycle

import (
	"github.com/jwalitptl/crm-api/internal/model"
)

// SourceKind names the upstream producer a status came from.
type SourceKind string

const (
	SourceProspect SourceKind = "prospect"
	SourcePatient  SourceKind = "patient"
)

// ClassifyStage is total: every status string maps to a valid stage.
// Statuses the producers have not defined yet fall through to the
// conservative bucket for their source.
func ClassifyStage(source SourceKind, status string) model.LifecycleStage {
	switch source {
	case SourceProspect:
		if status == string(model.ProspectStatusConverted) {
			return model.StagePatient
		}
		return model.StageLead
	case SourcePatient:
		if status == string(model.PatientStatusActive) {
			return model.StageActivePatient
		}
		return model.StageInactivePatient
	default:
		return model.StageLead
	}
}
