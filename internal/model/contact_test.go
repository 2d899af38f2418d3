package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// Two syncs that could resolve to the same person must derive equal
// lock keys, and keys must never collide across rules or tenants.
func TestMatchKeyLockKey(t *testing.T) {
	orgA := uuid.New()
	orgB := uuid.New()

	email := MatchKey{Rule: MatchByEmail, Email: "maria@example.com"}
	phone := MatchKey{Rule: MatchByPhone, Phone: "555-0100"}
	name := MatchKey{Rule: MatchByName, FirstName: "maria", LastName: "santos"}

	assert.Equal(t, email.LockKey(orgA), email.LockKey(orgA))
	assert.NotEqual(t, email.LockKey(orgA), email.LockKey(orgB))
	assert.NotEqual(t, email.LockKey(orgA), phone.LockKey(orgA))
	assert.NotEqual(t, phone.LockKey(orgA), name.LockKey(orgA))
}

func TestStageCatalogComplete(t *testing.T) {
	assert.Len(t, StageCatalog, 8)
	seen := make(map[LifecycleStage]bool)
	for _, info := range StageCatalog {
		assert.True(t, info.Value.Valid())
		assert.NotEmpty(t, info.Label)
		assert.False(t, seen[info.Value], "duplicate stage %s", info.Value)
		seen[info.Value] = true
	}
}
