// Package api exposes the task lifecycle and timecards over HTTP.
package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/sadopc/shiftops/internal/photos"
	"github.com/sadopc/shiftops/internal/roster"
	"github.com/sadopc/shiftops/internal/store"
	"github.com/sadopc/shiftops/internal/tasks"
)

// StaffHeader carries the acting staff member's id. Authentication happens
// in front of this service.
const StaffHeader = "X-Staff-ID"

type Server struct {
	tasks  *tasks.Service
	roster *roster.Gate
	store  *store.Store
	photos *photos.FS
	log    *zap.Logger
}

func NewServer(svc *tasks.Service, gate *roster.Gate, s *store.Store, ph *photos.FS, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{tasks: svc, roster: gate, store: s, photos: ph, log: log}
}

// App builds the fiber application with every route registered.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "shiftops",
		BodyLimit:             20 * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	app.Use(recover.New())
	app.Use(s.requestLogger())

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/photos/:ref", s.getPhoto)

	api := app.Group("/api", s.identify)

	instances := api.Group("/instances")
	instances.Get("/", s.listInstances)
	instances.Get("/delinquent", s.listDelinquent)
	instances.Get("/active", s.activeInstance)
	instances.Post("/:id/claim", s.transition(s.tasks.Claim))
	instances.Post("/:id/cancel", s.transition(s.tasks.Cancel))
	instances.Post("/:id/interrupt", s.transition(s.tasks.Interrupt))
	instances.Post("/:id/resume", s.transition(s.tasks.Resume))
	instances.Post("/:id/verify", s.withImage(s.tasks.VerifyLocation))
	instances.Post("/:id/complete", s.withImage(s.tasks.Complete))

	timecard := api.Group("/timecard")
	timecard.Get("/", s.timecardStatus)
	timecard.Get("/history", s.timecardHistory)
	timecard.Post("/clock-in", s.shiftAction(s.clockIn))
	timecard.Post("/clock-out", s.shiftAction(s.clockOut))
	timecard.Post("/break-start", s.shiftAction(s.breakStart))
	timecard.Post("/break-end", s.shiftAction(s.breakEnd))

	admin := api.Group("/admin", s.requireAdmin)
	admin.Get("/overview", s.overview)
	admin.Get("/locations/:id/label", s.locationLabel)

	return app
}

func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		s.log.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		)
		return err
	}
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	s.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

// identify resolves the acting staff member from the request header.
func (s *Server) identify(c *fiber.Ctx) error {
	raw := c.Get(StaffHeader)
	if raw == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing "+StaffHeader)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid "+StaffHeader)
	}
	st, err := s.store.GetStaff(c.UserContext(), id)
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusUnauthorized, "unknown staff")
	}
	if err != nil {
		return err
	}
	if !st.Active {
		return fiber.NewError(fiber.StatusForbidden, "staff member is inactive")
	}
	c.Locals("staff", st)
	return c.Next()
}

func (s *Server) requireAdmin(c *fiber.Ctx) error {
	if !currentStaff(c).IsAdmin() {
		return fiber.NewError(fiber.StatusForbidden, "admin only")
	}
	return c.Next()
}

func currentStaff(c *fiber.Ctx) *store.Staff {
	st, _ := c.Locals("staff").(*store.Staff)
	if st == nil {
		return &store.Staff{}
	}
	return st
}

// queryInt reads an integer query parameter, returning def when it is
// missing or malformed.
func queryInt(c *fiber.Ctx, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return n
}
