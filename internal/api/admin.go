package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/sadopc/shiftops/internal/photos"
	"github.com/sadopc/shiftops/internal/qr"
	"github.com/sadopc/shiftops/internal/store"
)

func (s *Server) overview(c *fiber.Ctx) error {
	day, err := workDate(c, s.tasks)
	if err != nil {
		return err
	}
	o, err := s.tasks.Overview(c.UserContext(), day)
	if err != nil {
		return err
	}
	now := s.tasks.Now()
	photoList := make([]fiber.Map, 0, len(o.Photos))
	for i := range o.Photos {
		photoList = append(photoList, fiber.Map{
			"instance": s.toJSON(&o.Photos[i].Instance, now),
			"url":      o.Photos[i].URL,
		})
	}
	hours := make([]fiber.Map, 0, len(o.Hours))
	for _, h := range o.Hours {
		hours = append(hours, fiber.Map{"hour": h.Hour, "completed": h.Completed, "outstanding": h.Outstanding})
	}
	return c.JSON(fiber.Map{
		"work_date":   o.WorkDate,
		"working":     o.Working,
		"on_break":    o.OnBreak,
		"outstanding": o.Outstanding,
		"photos":      photoList,
		"delayed":     s.toJSONList(o.Delayed),
		"hours":       hours,
	})
}

func (s *Server) locationLabel(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid location id")
	}
	loc, err := s.store.GetLocation(c.UserContext(), int64(id))
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "location not found")
	}
	if err != nil {
		return err
	}
	png, err := qr.Label(loc.QRToken, queryInt(c, "size", 512))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

func (s *Server) getPhoto(c *fiber.Ctx) error {
	p, err := s.photos.Path(c.Params("ref"))
	if errors.Is(err, photos.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "photo not found")
	}
	if err != nil {
		return err
	}
	return c.SendFile(p)
}
