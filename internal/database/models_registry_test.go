package database

import (
	"testing"

	modelspkg "filetrack/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesRoutingHistory(t *testing.T) {
	found := false
	for _, model := range PersistentModels() {
		if _, ok := model.(*modelspkg.RoutingHistoryEntry); ok {
			found = true
			break
		}
	}
	require.True(t, found, "PersistentModels should include RoutingHistoryEntry")
}
