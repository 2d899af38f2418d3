package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/crm-api/internal/model"
)

func TestClassifyStage(t *testing.T) {
	tests := []struct {
		name   string
		source SourceKind
		status string
		want   model.LifecycleStage
	}{
		{"new prospect", SourceProspect, "new", model.StageLead},
		{"contacted prospect", SourceProspect, "contacted", model.StageLead},
		{"converted prospect", SourceProspect, "converted", model.StagePatient},
		{"lost prospect", SourceProspect, "lost", model.StageLead},
		{"active patient", SourcePatient, "active", model.StageActivePatient},
		{"inactive patient", SourcePatient, "inactive", model.StageInactivePatient},
		{"archived patient", SourcePatient, "archived", model.StageInactivePatient},
		{"unknown source", SourceKind("billing"), "whatever", model.StageLead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStage(tt.source, tt.status))
		})
	}
}

// Classification must be total: no status string, however malformed,
// may produce an invalid stage.
func TestClassifyStageAlwaysValid(t *testing.T) {
	statuses := []string{"", "ACTIVE", "converted ", "deleted", "\x00", "转换"}
	for _, source := range []SourceKind{SourceProspect, SourcePatient, SourceKind("")} {
		for _, status := range statuses {
			stage := ClassifyStage(source, status)
			assert.True(t, stage.Valid(), "source=%q status=%q produced %q", source, status, stage)
		}
	}
}
