package database

import "filetrack/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Department{},
		&models.Division{},
		&models.User{},
		&models.Desk{},
		&models.File{},
		&models.RoutingHistoryEntry{},
		&models.ExtensionRequest{},
	}
}
