package server

import (
	"strconv"
	"strings"
	"time"

	"filetrack/internal/models"
	"filetrack/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateFile opens a new file with the caller as custodian.
func (s *Server) CreateFile(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return nil
	}
	var in service.CreateFileInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}

	file, err := service.RetryTransient(c.UserContext(), s.config.RetryMaxAttempts, func() (*models.File, error) {
		return s.routing.Create(c.UserContext(), a, in)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(file)
}

// GetFile returns the current state of a file.
func (s *Server) GetFile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	file, err := s.routing.GetFile(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderETag, strconv.Quote(strconv.FormatInt(file.Version, 10)))
	return c.JSON(file)
}

// GetFileHistory returns the routing history of a file, oldest first.
func (s *Server) GetFileHistory(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	history, err := s.routing.GetHistory(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page(history, parsePagination(c, 100)))
}

// ListExtensions returns every extension request raised on a file.
func (s *Server) ListExtensions(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	requests, err := s.routing.ListExtensions(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(requests)
}

// GetTimer computes the live SLA timer of a file. ?at= (RFC 3339) evaluates it at another instant.
func (s *Server) GetTimer(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	at := s.routing.Now()
	if raw := strings.TrimSpace(c.Query("at")); raw != "" {
		parsed, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			return respondError(c, models.NewValidationError("at must be an RFC 3339 timestamp"))
		}
		at = parsed
	}
	snap, err := s.routing.GetTimerSnapshot(c.UserContext(), id, at)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(snap)
}

// AssignDesk places a file on a desk outside of a forward.
func (s *Server) AssignDesk(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var body struct {
		DeskID uint `json:"desk_id"`
	}
	if err := parseBody(c, &body); err != nil {
		return nil
	}
	if body.DeskID == 0 {
		return respondError(c, models.NewValidationError("desk_id is required"))
	}

	file, err := service.RetryTransient(c.UserContext(), s.config.RetryMaxAttempts, func() (*models.File, error) {
		return s.desks.Assign(c.UserContext(), id, body.DeskID, a)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(file)
}

// versionFromIfMatch reads the file version from an If-Match header ("3", 3 or W/"3").
// Absent yields 0.
func versionFromIfMatch(c *fiber.Ctx) (int64, error) {
	raw := strings.TrimSpace(c.Get(fiber.HeaderIfMatch))
	if raw == "" {
		return 0, nil
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, models.NewValidationError("If-Match must carry a positive file version")
	}
	return v, nil
}

// commandHandler builds the handler for one routing command. The JSON body decodes into
// the command; prepare, when set, fills fields taken from the route. An If-Match header
// supplies the expected version when the body has none.
func commandHandler[C service.Command](s *Server, prepare func(c *fiber.Ctx, cmd *C) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return nil
		}
		id, err := s.parseID(c, "id")
		if err != nil {
			return nil
		}
		var cmd C
		if err := parseBody(c, &cmd); err != nil {
			return nil
		}
		version, err := versionFromIfMatch(c)
		if err != nil {
			return respondError(c, err)
		}
		if v, ok := any(&cmd).(interface{ ExpectVersion(int64) }); ok && version > 0 {
			v.ExpectVersion(version)
		}
		if prepare != nil {
			if err := prepare(c, &cmd); err != nil {
				return nil
			}
		}

		file, err := service.RetryTransient(c.UserContext(), s.config.RetryMaxAttempts, func() (*models.File, error) {
			return s.routing.Apply(c.UserContext(), id, a, cmd)
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(file)
	}
}
