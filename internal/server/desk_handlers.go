package server

import (
	"filetrack/internal/models"
	"filetrack/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateDesk adds a desk to a department or division.
func (s *Server) CreateDesk(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return nil
	}
	var in service.CreateDeskInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}

	desk, err := service.RetryTransient(c.UserContext(), s.config.RetryMaxAttempts, func() (*models.Desk, error) {
		return s.desks.Create(c.UserContext(), a, in)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(desk)
}

// GetDeskStats reports desk load in a scope. department_id defaults to the caller's department.
func (s *Server) GetDeskStats(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return nil
	}
	departmentID := a.DepartmentID
	deptParam, err := optionalQueryID(c, "department_id")
	if err != nil {
		return respondError(c, err)
	}
	if deptParam != nil {
		departmentID = *deptParam
	}
	if departmentID == 0 {
		return respondError(c, models.NewValidationError("department_id is required"))
	}
	divisionID, err := optionalQueryID(c, "division_id")
	if err != nil {
		return respondError(c, err)
	}

	stats, err := s.desks.Stats(c.UserContext(), departmentID, divisionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

type autoDeskRequest struct {
	DepartmentID uint  `json:"department_id"`
	DivisionID   *uint `json:"division_id,omitempty"`
}

// AutoCreateDesk returns an available desk in scope, provisioning a new one when all are full.
func (s *Server) AutoCreateDesk(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return nil
	}
	var req autoDeskRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.DepartmentID == 0 {
		req.DepartmentID = a.DepartmentID
	}
	if !a.AdministersDepartment(req.DepartmentID) {
		return respondError(c, models.NewForbiddenError("only a department administrator can provision desks"))
	}

	type result struct {
		desk    *models.Desk
		created bool
	}
	res, err := service.RetryTransient(c.UserContext(), s.config.RetryMaxAttempts, func() (result, error) {
		desk, created, err := s.desks.CheckAndAutoCreate(c.UserContext(), req.DepartmentID, req.DivisionID)
		return result{desk: desk, created: created}, err
	})
	if err != nil {
		return respondError(c, err)
	}

	status := fiber.StatusOK
	if res.created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"desk":    res.desk,
		"created": res.created,
	})
}

// DeactivateDesk stops a desk from receiving new files.
func (s *Server) DeactivateDesk(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	_, err = service.RetryTransient(c.UserContext(), s.config.RetryMaxAttempts, func() (struct{}, error) {
		return struct{}{}, s.desks.Deactivate(c.UserContext(), id, a)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
