package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sadopc/shiftops/internal/store"
)

// ErrInvalid wraps every catalog validation failure.
var ErrInvalid = errors.New("invalid input")

var validate = validator.New()

type LocationInput struct {
	Name    string `validate:"required,max=80"`
	QRToken string `validate:"required,max=256"`
}

type DefinitionInput struct {
	LocationID   int64  `validate:"required,gt=0"`
	Activity     string `validate:"required,max=200"`
	TargetHour   *int   `validate:"omitempty,min=0,max=23"`
	TargetMinute *int   `validate:"omitempty,min=0,max=59"`
}

func check(in any) error {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func (in *DefinitionInput) normalize() error {
	in.Activity = strings.TrimSpace(in.Activity)
	if err := check(in); err != nil {
		return err
	}
	if in.TargetMinute != nil && in.TargetHour == nil {
		return fmt.Errorf("%w: TargetMinute needs TargetHour", ErrInvalid)
	}
	return nil
}

func (s *Service) CreateLocation(ctx context.Context, in LocationInput) (*store.Location, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := check(in); err != nil {
		return nil, err
	}
	return s.store.CreateLocation(ctx, in.Name, in.QRToken)
}

// RotateLocationToken replaces a location's QR token. Printed labels must be
// regenerated afterwards.
func (s *Service) RotateLocationToken(ctx context.Context, id int64, token string) error {
	if err := check(LocationInput{Name: "-", QRToken: token}); err != nil {
		return err
	}
	if _, err := s.store.GetLocation(ctx, id); err != nil {
		return err
	}
	return s.store.UpdateLocationToken(ctx, id, token)
}

func (s *Service) ListLocations(ctx context.Context) ([]store.Location, error) {
	return s.store.ListLocations(ctx)
}

func (s *Service) CreateDefinition(ctx context.Context, in DefinitionInput) (*store.TaskDefinition, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if _, err := s.store.GetLocation(ctx, in.LocationID); err != nil {
		return nil, err
	}
	return s.store.CreateDefinition(ctx, in.LocationID, in.Activity, in.TargetHour, in.TargetMinute)
}

// UpdateDefinition edits a catalog entry. Instances already generated keep
// pointing at it, so edits show up in today's list.
func (s *Service) UpdateDefinition(ctx context.Context, id int64, in DefinitionInput) error {
	if err := in.normalize(); err != nil {
		return err
	}
	if _, err := s.store.GetDefinition(ctx, id); err != nil {
		return err
	}
	if _, err := s.store.GetLocation(ctx, in.LocationID); err != nil {
		return err
	}
	return s.store.UpdateDefinition(ctx, id, in.LocationID, in.Activity, in.TargetHour, in.TargetMinute)
}

// ArchiveDefinition removes an entry from future generation.
func (s *Service) ArchiveDefinition(ctx context.Context, id int64) error {
	return s.store.ArchiveDefinition(ctx, id)
}

func (s *Service) ListDefinitions(ctx context.Context) ([]store.TaskDefinition, error) {
	return s.store.ListDefinitions(ctx, false)
}
