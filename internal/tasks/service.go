// Package tasks implements the daily task lifecycle: generation from the
// catalog, claiming, on-site verification and completion.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sadopc/shiftops/internal/store"
)

// RosterGate reports whether a staff member may take tasks right now.
type RosterGate interface {
	IsStaffEligible(ctx context.Context, staffID int64) (bool, error)
}

// ShiftCounter reports how many staff are on shift and on break.
type ShiftCounter interface {
	Counts(ctx context.Context) (working, onBreak int, err error)
}

// VerificationStore holds verified claim sessions.
type VerificationStore interface {
	Mark(ctx context.Context, instanceID, staffID int64, token string) error
	IsVerified(ctx context.Context, instanceID, staffID int64, token string) (bool, error)
	Invalidate(ctx context.Context, instanceID int64) error
}

// PhotoStore is the blob store for completion photos. Every put returns a
// fresh reference.
type PhotoStore interface {
	PutPhoto(ctx context.Context, instanceID int64, data []byte) (string, error)
	Remove(ctx context.Context, ref string) error
	PhotoURL(ref string) string
}

// QRDecoder returns the payload of a QR code in an image, or "".
type QRDecoder interface {
	Decode(data []byte) string
}

type Options struct {
	Store    *store.Store
	Roster   RosterGate
	Shifts   ShiftCounter
	Verified VerificationStore
	Photos   PhotoStore
	QR       QRDecoder
	Location *time.Location
	Logger   *zap.Logger
}

type Service struct {
	store    *store.Store
	roster   RosterGate
	shifts   ShiftCounter
	verified VerificationStore
	photos   PhotoStore
	qr       QRDecoder
	loc      *time.Location
	log      *zap.Logger
	now      func() time.Time
	newToken func() string
}

func New(o Options) *Service {
	s := &Service{
		store:    o.Store,
		roster:   o.Roster,
		shifts:   o.Shifts,
		verified: o.Verified,
		photos:   o.Photos,
		qr:       o.QR,
		loc:      o.Location,
		log:      o.Logger,
		now:      time.Now,
		newToken: uuid.NewString,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Now returns the service clock.
func (s *Service) Now() time.Time { return s.now() }

// Location returns the time zone work dates are computed in.
func (s *Service) Location() *time.Location { return s.loc }

// Today returns the current work date.
func (s *Service) Today() string { return s.WorkDate(s.now()) }

// WorkDate formats t as a work date in the service's time zone.
func (s *Service) WorkDate(t time.Time) string { return t.In(s.loc).Format(time.DateOnly) }

// CurrentHour returns the hour of day in the service's time zone.
func (s *Service) CurrentHour() int { return s.now().In(s.loc).Hour() }

// EnsureInstancesFor creates one pending instance per active definition for
// workDate unless the day already has instances. It is safe to call
// concurrently and repeatedly.
func (s *Service) EnsureInstancesFor(ctx context.Context, workDate string) (int, error) {
	if _, err := time.Parse(time.DateOnly, workDate); err != nil {
		return 0, fmt.Errorf("ensure instances: invalid work date %q", workDate)
	}
	has, err := s.store.HasInstancesFor(ctx, workDate)
	if err != nil {
		return 0, fmt.Errorf("ensure instances: %w", err)
	}
	if has {
		return 0, nil
	}
	defs, err := s.store.ListActiveDefinitions(ctx)
	if err != nil {
		return 0, fmt.Errorf("ensure instances: %w", err)
	}
	ids := make([]int64, len(defs))
	for i, d := range defs {
		ids[i] = d.ID
	}
	n, err := s.store.InsertInstances(ctx, ids, workDate)
	if err != nil {
		return 0, fmt.Errorf("ensure instances: %w", err)
	}
	if n > 0 {
		s.log.Info("generated task instances", zap.String("work_date", workDate), zap.Int("count", n))
	}
	return n, nil
}

// ListInstances returns the day's instances ordered by target time,
// generating them on first access.
func (s *Service) ListInstances(ctx context.Context, workDate string) ([]store.TaskView, error) {
	if _, err := s.EnsureInstancesFor(ctx, workDate); err != nil {
		return nil, err
	}
	return s.store.ListViews(ctx, store.InstanceFilter{WorkDate: workDate})
}

// ListHour returns the day's instances targeted at hour plus the unscheduled ones.
func (s *Service) ListHour(ctx context.Context, workDate string, hour int) ([]store.TaskView, error) {
	views, err := s.ListInstances(ctx, workDate)
	if err != nil {
		return nil, err
	}
	var out []store.TaskView
	for _, v := range views {
		if v.TargetHour == nil || *v.TargetHour == hour {
			out = append(out, v)
		}
	}
	return out, nil
}

// IsDelinquent reports whether a scheduled instance is past its target time
// without being completed.
func (s *Service) IsDelinquent(v store.TaskView, now time.Time) bool {
	if v.Status == store.StatusCompleted || !v.Scheduled() {
		return false
	}
	day, err := time.ParseInLocation(time.DateOnly, v.WorkDate, s.loc)
	if err != nil {
		return false
	}
	// Targets are wall-clock times in s.loc. DST days are not 24h long.
	minute := 0
	if v.TargetMinute != nil {
		minute = *v.TargetMinute
	}
	target := time.Date(day.Year(), day.Month(), day.Day(), *v.TargetHour, minute, 0, 0, s.loc)
	return now.After(target)
}

// ListDelinquent returns the day's delinquent instances. They stay claimable.
func (s *Service) ListDelinquent(ctx context.Context, workDate string) ([]store.TaskView, error) {
	views, err := s.ListInstances(ctx, workDate)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var out []store.TaskView
	for _, v := range views {
		if s.IsDelinquent(v, now) {
			out = append(out, v)
		}
	}
	return out, nil
}

// ActiveInstance returns the instance staffID is working on, or nil.
func (s *Service) ActiveInstance(ctx context.Context, staffID int64) (*store.TaskView, error) {
	views, err := s.store.ListViews(ctx, store.InstanceFilter{Status: store.StatusInProgress, ClaimantID: &staffID})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, nil
	}
	return &views[0], nil
}

// Claim moves a pending instance to in_progress for staffID.
func (s *Service) Claim(ctx context.Context, instanceID, staffID int64) (Result, error) {
	return s.enter(ctx, "claim", instanceID, staffID, store.StatusPending, s.store.ClaimInstance, OutcomeAlreadyTaken)
}

// Resume moves an interrupted instance back to in_progress. Any eligible
// staff member may resume, and must verify the location again.
func (s *Service) Resume(ctx context.Context, instanceID, staffID int64) (Result, error) {
	return s.enter(ctx, "resume", instanceID, staffID, store.StatusInterrupted, s.store.ResumeInstance, OutcomeNotInterrupted)
}

type enterFunc func(ctx context.Context, id, staffID int64, token string, at time.Time) (bool, error)

func (s *Service) enter(ctx context.Context, op string, instanceID, staffID int64, from store.Status, write enterFunc, wrongState Outcome) (Result, error) {
	log := s.log.With(zap.String("op", op), zap.Int64("instance_id", instanceID), zap.Int64("staff_id", staffID))

	v, err := s.store.GetView(ctx, instanceID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("%s instance: %w", op, err)
	}
	if v.Status != from {
		log.Debug("rejected", zap.String("status", string(v.Status)))
		return Result{Outcome: wrongState, Instance: v}, nil
	}

	eligible, err := s.roster.IsStaffEligible(ctx, staffID)
	if err != nil {
		return Result{}, fmt.Errorf("%s instance: %w", op, err)
	}
	if !eligible {
		log.Debug("staff not eligible")
		return Result{Outcome: OutcomeIneligible, Instance: v}, nil
	}

	token := s.newToken()
	ok, err := write(ctx, instanceID, staffID, token, s.now())
	if err != nil {
		return Result{}, fmt.Errorf("%s instance: %w", op, err)
	}
	if !ok {
		v, err = s.store.GetView(ctx, instanceID)
		if err != nil {
			return Result{}, fmt.Errorf("%s instance: %w", op, err)
		}
		if v.Status != from {
			log.Debug("lost race", zap.String("status", string(v.Status)))
			return Result{Outcome: wrongState, Instance: v}, nil
		}
		busy, err := s.store.HoldsActiveClaim(ctx, staffID)
		if err != nil {
			return Result{}, fmt.Errorf("%s instance: %w", op, err)
		}
		if busy {
			log.Debug("staff already holds a task")
			return Result{Outcome: OutcomeBusy, Instance: v}, nil
		}
		return Result{Outcome: wrongState, Instance: v}, nil
	}

	s.invalidate(ctx, instanceID)
	log.Info("task in progress")
	return s.okResult(ctx, op, instanceID)
}

// Cancel returns an in-progress instance to pending. Only the claimant may cancel.
func (s *Service) Cancel(ctx context.Context, instanceID, staffID int64) (Result, error) {
	return s.release(ctx, "cancel", instanceID, staffID, store.StatusPending)
}

// Interrupt parks an in-progress instance as interrupted and clears the
// claimant so that anyone may resume it.
func (s *Service) Interrupt(ctx context.Context, instanceID, staffID int64) (Result, error) {
	return s.release(ctx, "interrupt", instanceID, staffID, store.StatusInterrupted)
}

func (s *Service) release(ctx context.Context, op string, instanceID, staffID int64, to store.Status) (Result, error) {
	ok, err := s.store.ReleaseInstance(ctx, instanceID, staffID, to, s.now())
	if err != nil {
		return Result{}, fmt.Errorf("%s instance: %w", op, err)
	}
	if !ok {
		v, err := s.store.GetView(ctx, instanceID)
		if errors.Is(err, store.ErrNotFound) {
			return Result{Outcome: OutcomeNotFound}, nil
		}
		if err != nil {
			return Result{}, fmt.Errorf("%s instance: %w", op, err)
		}
		return Result{Outcome: OutcomeNotClaimant, Instance: v}, nil
	}
	s.invalidate(ctx, instanceID)
	s.log.Info("task released", zap.String("op", op), zap.Int64("instance_id", instanceID),
		zap.Int64("staff_id", staffID), zap.String("status", string(to)))
	return s.okResult(ctx, op, instanceID)
}

// VerifyLocation checks that image shows the QR token of the instance's
// location. On a match the current claim session becomes verified.
func (s *Service) VerifyLocation(ctx context.Context, instanceID, staffID int64, image []byte) (Result, error) {
	v, res, err := s.claimedBy(ctx, "verify", instanceID, staffID)
	if v == nil {
		return res, err
	}
	loc, err := s.store.GetLocation(ctx, v.LocationID)
	if err != nil {
		return Result{}, fmt.Errorf("verify instance: %w", err)
	}
	payload := s.qr.Decode(image)
	if payload == "" || payload != loc.QRToken {
		s.log.Debug("location mismatch", zap.Int64("instance_id", instanceID), zap.Int64("staff_id", staffID),
			zap.Bool("decoded", payload != ""))
		return Result{Outcome: OutcomeMismatch, Instance: v}, nil
	}
	// The session may have changed while the image was decoding.
	cur, res, err := s.claimedBy(ctx, "verify", instanceID, staffID)
	if cur == nil {
		return res, err
	}
	if cur.ClaimToken != v.ClaimToken {
		return Result{Outcome: OutcomeNotClaimant, Instance: cur}, nil
	}
	if err := s.verified.Mark(ctx, instanceID, staffID, v.ClaimToken); err != nil {
		return Result{}, fmt.Errorf("verify instance: %w", err)
	}
	s.log.Info("location verified", zap.Int64("instance_id", instanceID), zap.Int64("staff_id", staffID))
	return Result{Outcome: OutcomeOK, Instance: v}, nil
}

// Complete stores the photo and finishes a verified claim session.
func (s *Service) Complete(ctx context.Context, instanceID, staffID int64, photo []byte) (Result, error) {
	v, res, err := s.claimedBy(ctx, "complete", instanceID, staffID)
	if v == nil {
		return res, err
	}
	ok, err := s.verified.IsVerified(ctx, instanceID, staffID, v.ClaimToken)
	if err != nil {
		return Result{}, fmt.Errorf("complete instance: %w", err)
	}
	if !ok {
		s.log.Debug("completion without verification", zap.Int64("instance_id", instanceID), zap.Int64("staff_id", staffID))
		return Result{Outcome: OutcomeNotVerified, Instance: v}, nil
	}
	if len(photo) == 0 {
		return Result{Outcome: OutcomeMissingPhoto, Instance: v}, nil
	}

	ref, err := s.photos.PutPhoto(ctx, instanceID, photo)
	if err != nil {
		return Result{}, fmt.Errorf("complete instance: %w", err)
	}
	done, err := s.store.CompleteInstance(ctx, instanceID, staffID, v.ClaimToken, ref, s.now())
	if err != nil {
		return Result{}, fmt.Errorf("complete instance: %w", err)
	}
	if !done {
		if err := s.photos.Remove(ctx, ref); err != nil {
			s.log.Warn("orphaned photo", zap.String("photo_ref", ref), zap.Error(err))
		}
		v, err = s.store.GetView(ctx, instanceID)
		if err != nil {
			return Result{}, fmt.Errorf("complete instance: %w", err)
		}
		return Result{Outcome: OutcomeNotClaimant, Instance: v}, nil
	}
	s.invalidate(ctx, instanceID)
	s.log.Info("task completed", zap.Int64("instance_id", instanceID), zap.Int64("staff_id", staffID), zap.String("photo_ref", ref))
	return s.okResult(ctx, "complete", instanceID)
}

// PhotoURL returns the display address of a stored photo.
func (s *Service) PhotoURL(ref string) string {
	if ref == "" || s.photos == nil {
		return ""
	}
	return s.photos.PhotoURL(ref)
}

// IsVerified reports whether staffID's current claim session on v has passed
// location verification.
func (s *Service) IsVerified(ctx context.Context, v *store.TaskView, staffID int64) (bool, error) {
	if v == nil || v.Status != store.StatusInProgress || v.ClaimantID == nil || *v.ClaimantID != staffID {
		return false, nil
	}
	return s.verified.IsVerified(ctx, v.ID, staffID, v.ClaimToken)
}

// claimedBy loads an instance and checks that staffID holds it. A nil view
// means the caller should return res and err as they are.
func (s *Service) claimedBy(ctx context.Context, op string, instanceID, staffID int64) (*store.TaskView, Result, error) {
	v, err := s.store.GetView(ctx, instanceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, Result{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return nil, Result{}, fmt.Errorf("%s instance: %w", op, err)
	}
	if v.Status != store.StatusInProgress || v.ClaimantID == nil || *v.ClaimantID != staffID {
		return nil, Result{Outcome: OutcomeNotClaimant, Instance: v}, nil
	}
	return v, Result{}, nil
}

// SweepStale interrupts instances held longer than the claim_ttl_minutes
// setting. A zero setting disables the sweep.
func (s *Service) SweepStale(ctx context.Context) ([]int64, error) {
	ttl := s.store.GetIntSetting(ctx, "claim_ttl_minutes", 0)
	if ttl <= 0 {
		return nil, nil
	}
	now := s.now()
	ids, err := s.store.InterruptStale(ctx, now.Add(-time.Duration(ttl)*time.Minute), now)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		s.invalidate(ctx, id)
	}
	if len(ids) > 0 {
		s.log.Info("interrupted stale tasks", zap.Int64s("instance_ids", ids), zap.Int("ttl_minutes", ttl))
	}
	return ids, nil
}

// invalidate drops any verification for the instance. Failures are logged
// only: a leftover entry carries an old claim token and can never match.
func (s *Service) invalidate(ctx context.Context, instanceID int64) {
	if err := s.verified.Invalidate(ctx, instanceID); err != nil {
		s.log.Warn("invalidate verification", zap.Int64("instance_id", instanceID), zap.Error(err))
	}
}

func (s *Service) okResult(ctx context.Context, op string, instanceID int64) (Result, error) {
	v, err := s.store.GetView(ctx, instanceID)
	if err != nil {
		return Result{}, fmt.Errorf("%s instance: %w", op, err)
	}
	return Result{Outcome: OutcomeOK, Instance: v}, nil
}
