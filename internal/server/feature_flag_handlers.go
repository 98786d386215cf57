package server

import (
	"filetrack/internal/featureflags"
	"filetrack/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags returns configured routing flags and their state for the caller's department.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return nil
	}
	if !a.IsSuperAdmin() {
		return respondError(c, models.NewForbiddenError("super administrator access required"))
	}

	return c.JSON(fiber.Map{
		"raw": s.featureFlags.Raw(),
		"evaluated": map[string]bool{
			featureflags.AllowRecallTerminal:  s.featureFlags.RecallTerminalAllowed(a.DepartmentID),
			featureflags.AutoDeskProvisioning: s.featureFlags.AutoDeskProvisioning(a.DepartmentID),
		},
	})
}
