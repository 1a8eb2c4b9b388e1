package api

import (
	"context"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sadopc/shiftops/internal/store"
	"github.com/sadopc/shiftops/internal/tasks"
)

type instanceJSON struct {
	ID           int64      `json:"id"`
	DefinitionID int64      `json:"definition_id"`
	WorkDate     string     `json:"work_date"`
	Status       string     `json:"status"`
	Activity     string     `json:"activity"`
	LocationID   int64      `json:"location_id"`
	LocationName string     `json:"location_name"`
	TargetHour   *int       `json:"target_hour"`
	TargetMinute *int       `json:"target_minute"`
	ClaimantID   *int64     `json:"claimant_id"`
	ClaimantName string     `json:"claimant_name,omitempty"`
	ClaimedAt    *time.Time `json:"claimed_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	PhotoURL     string     `json:"photo_url,omitempty"`
	Delinquent   bool       `json:"delinquent"`
}

func (s *Server) toJSON(v *store.TaskView, now time.Time) *instanceJSON {
	if v == nil {
		return nil
	}
	return &instanceJSON{
		ID:           v.ID,
		DefinitionID: v.DefinitionID,
		WorkDate:     v.WorkDate,
		Status:       string(v.Status),
		Activity:     v.Activity,
		LocationID:   v.LocationID,
		LocationName: v.LocationName,
		TargetHour:   v.TargetHour,
		TargetMinute: v.TargetMinute,
		ClaimantID:   v.ClaimantID,
		ClaimantName: v.ClaimantName,
		ClaimedAt:    v.ClaimedAt,
		CompletedAt:  v.CompletedAt,
		PhotoURL:     s.tasks.PhotoURL(v.PhotoRef),
		Delinquent:   s.tasks.IsDelinquent(*v, now),
	}
}

func (s *Server) toJSONList(views []store.TaskView) []*instanceJSON {
	now := s.tasks.Now()
	out := make([]*instanceJSON, 0, len(views))
	for i := range views {
		out = append(out, s.toJSON(&views[i], now))
	}
	return out
}

// statusFor maps an outcome to its HTTP status.
func statusFor(o tasks.Outcome) int {
	switch o.Kind() {
	case tasks.KindSuccess:
		return fiber.StatusOK
	case tasks.KindContention:
		return fiber.StatusConflict
	case tasks.KindRetry:
		return fiber.StatusBadRequest
	case tasks.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusUnprocessableEntity
	}
}

func (s *Server) writeResult(c *fiber.Ctx, res tasks.Result) error {
	return c.Status(statusFor(res.Outcome)).JSON(fiber.Map{
		"outcome":  res.Outcome,
		"message":  res.Outcome.Message(),
		"instance": s.toJSON(res.Instance, s.tasks.Now()),
	})
}

func workDate(c *fiber.Ctx, svc *tasks.Service) (string, error) {
	d := c.Query("date")
	if d == "" {
		return svc.Today(), nil
	}
	if _, err := time.Parse(time.DateOnly, d); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	return d, nil
}

func (s *Server) listInstances(c *fiber.Ctx) error {
	day, err := workDate(c, s.tasks)
	if err != nil {
		return err
	}
	var views []store.TaskView
	if hour := queryInt(c, "hour", -1); hour >= 0 {
		views, err = s.tasks.ListHour(c.UserContext(), day, hour)
	} else {
		views, err = s.tasks.ListInstances(c.UserContext(), day)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"work_date": day, "instances": s.toJSONList(views)})
}

func (s *Server) listDelinquent(c *fiber.Ctx) error {
	day, err := workDate(c, s.tasks)
	if err != nil {
		return err
	}
	views, err := s.tasks.ListDelinquent(c.UserContext(), day)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"work_date": day, "instances": s.toJSONList(views)})
}

func (s *Server) activeInstance(c *fiber.Ctx) error {
	v, err := s.tasks.ActiveInstance(c.UserContext(), currentStaff(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"instance": s.toJSON(v, s.tasks.Now())})
}

type transitionFunc func(ctx context.Context, instanceID, staffID int64) (tasks.Result, error)

func (s *Server) transition(fn transitionFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid instance id")
		}
		res, err := fn(c.UserContext(), int64(id), currentStaff(c).ID)
		if err != nil {
			return err
		}
		return s.writeResult(c, res)
	}
}

type imageFunc func(ctx context.Context, instanceID, staffID int64, image []byte) (tasks.Result, error)

// withImage reads the multipart "image" field and passes its bytes on.
func (s *Server) withImage(fn imageFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid instance id")
		}
		fh, err := c.FormFile("image")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "multipart field \"image\" is required")
		}
		f, err := fh.Open()
		if err != nil {
			return err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return err
		}
		res, err := fn(c.UserContext(), int64(id), currentStaff(c).ID, data)
		if err != nil {
			return err
		}
		return s.writeResult(c, res)
	}
}
