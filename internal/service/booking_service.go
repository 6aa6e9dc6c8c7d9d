package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"slotbook/internal/availability"
	"slotbook/internal/database"
	"slotbook/internal/domain"
	"slotbook/internal/events"
	"slotbook/internal/export"
	"slotbook/internal/metrics"
	"slotbook/internal/models"

	"github.com/rs/zerolog"
)

// BookingOptions tunes the write path. Zero values disable the matching guard.
type BookingOptions struct {
	RateLimitAttempts int
	RateLimitWindow   time.Duration
	SlotGuardTTL      time.Duration
}

// BookingRequest is a client's request to confirm one slot.
type BookingRequest struct {
	CompanyID string
	ClientID  string
	ServiceID string
	Date      string
	Time      string
}

// ClientReservations splits a client's reservations around now.
type ClientReservations struct {
	Upcoming []*models.Reservation `json:"upcoming"`
	Past     []*models.Reservation `json:"past"`
}

type BookingService struct {
	repo         domain.Repository
	schedules    *ScheduleService
	guards       domain.GuardRepository
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	opts         BookingOptions
	loc          *time.Location
	now          func() time.Time
	logger       *zerolog.Logger
}

func NewBookingService(
	repo domain.Repository,
	guards domain.GuardRepository,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	opts BookingOptions,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		repo:         repo,
		schedules:    NewScheduleService(repo, logger),
		guards:       guards,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		opts:         opts,
		loc:          time.Local,
		now:          time.Now,
		logger:       logger,
	}
}

// WithClock replaces the time source. Dates are interpreted in the clock's location.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	s.loc = now().Location()
	return s
}

func (s *BookingService) parseSlot(date, tm string) (time.Time, models.Clock, error) {
	d, err := models.ParseDate(date, s.loc)
	if err != nil {
		return time.Time{}, 0, err
	}
	c, err := models.ParseClock(tm)
	if err != nil {
		return time.Time{}, 0, err
	}
	return d, c, nil
}

func (s *BookingService) dayContext(ctx context.Context, companyID string, date time.Time) (models.ScheduleConfig, []*models.Reservation, error) {
	cfg, err := s.schedules.Get(ctx, companyID)
	if err != nil {
		return models.ScheduleConfig{}, nil, err
	}
	reservations, err := s.repo.ListConfirmedReservations(ctx, companyID, models.FormatDate(date))
	if err != nil {
		return models.ScheduleConfig{}, nil, fmt.Errorf("failed to load reservations: %w", err)
	}
	return cfg, reservations, nil
}

// ListSlots returns every generated slot of the day with its gate decision.
func (s *BookingService) ListSlots(ctx context.Context, companyID, date string) ([]availability.SlotStatus, error) {
	d, err := models.ParseDate(date, s.loc)
	if err != nil {
		return nil, err
	}
	cfg, reservations, err := s.dayContext(ctx, companyID, d)
	if err != nil {
		return nil, err
	}
	return availability.SlotStatuses(cfg, companyID, d, reservations, s.now()), nil
}

// AvailableSlots returns the bookable slot times of the day in ascending order.
func (s *BookingService) AvailableSlots(ctx context.Context, companyID, date string) ([]models.Clock, error) {
	d, err := models.ParseDate(date, s.loc)
	if err != nil {
		return nil, err
	}
	cfg, reservations, err := s.dayContext(ctx, companyID, d)
	if err != nil {
		return nil, err
	}
	return availability.FilterAvailable(companyID, d, availability.Slots(cfg, d), reservations, s.now()), nil
}

// CheckSlot evaluates a single candidate without writing anything.
func (s *BookingService) CheckSlot(ctx context.Context, companyID, date, tm string) (availability.Decision, error) {
	d, c, err := s.parseSlot(date, tm)
	if err != nil {
		return 0, err
	}
	cfg, reservations, err := s.dayContext(ctx, companyID, d)
	if err != nil {
		return 0, err
	}
	return availability.Evaluate(cfg, companyID, d, c, reservations, s.now()), nil
}

// Book runs the gate against fresh state and inserts a confirmed reservation. Losing the
// race for the slot yields ErrSlotConflict; a non-bookable slot yields a RejectionError.
func (s *BookingService) Book(ctx context.Context, req BookingRequest) (*models.Reservation, error) {
	d, c, err := s.parseSlot(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	if req.ServiceID != "" {
		if err := s.checkService(ctx, req.CompanyID, req.ServiceID); err != nil {
			return nil, err
		}
	}

	if err := s.checkRateLimit(ctx, req.CompanyID, req.ClientID); err != nil {
		return nil, err
	}

	slotKey := fmt.Sprintf("%s:%s:%s", req.CompanyID, models.FormatDate(d), c)
	release, err := s.acquireSlot(ctx, slotKey)
	if err != nil {
		return nil, err
	}
	defer release()

	cfg, reservations, err := s.dayContext(ctx, req.CompanyID, d)
	if err != nil {
		return nil, err
	}

	decision := availability.Evaluate(cfg, req.CompanyID, d, c, reservations, s.now())
	metrics.IncGateDecision(decision.String())
	if decision != availability.Bookable {
		return nil, &RejectionError{Decision: decision}
	}

	reservation := &models.Reservation{
		CompanyID: req.CompanyID,
		ClientID:  req.ClientID,
		ServiceID: req.ServiceID,
		Date:      models.FormatDate(d),
		Time:      c.String(),
	}
	if err := s.repo.InsertConfirmedReservation(ctx, reservation); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			metrics.IncSlotConflict()
			return nil, fmt.Errorf("%w: %s %s", ErrSlotConflict, reservation.Date, reservation.Time)
		}
		return nil, err
	}

	metrics.IncReservation(models.StatusConfirmed)
	s.logger.Info().
		Str("reservation_id", reservation.ID).
		Str("company_id", reservation.CompanyID).
		Str("client_id", reservation.ClientID).
		Str("date", reservation.Date).
		Str("time", reservation.Time).
		Msg("reservation confirmed")

	s.publishEvent(events.EventReservationConfirmed, reservation)
	s.enqueueSync(ctx, reservation, "upsert")

	return reservation, nil
}

func (s *BookingService) checkService(ctx context.Context, companyID, serviceID string) error {
	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrUnknownService
		}
		return fmt.Errorf("failed to load service: %w", err)
	}
	if svc.CompanyID != companyID || !svc.Active {
		return ErrUnknownService
	}
	return nil
}

// checkRateLimit fails open on guard store errors; the unique index still protects the slot.
func (s *BookingService) checkRateLimit(ctx context.Context, companyID, clientID string) error {
	if s.guards == nil || s.opts.RateLimitAttempts <= 0 {
		return nil
	}
	allowed, err := s.guards.CheckRateLimit(ctx, "book:"+companyID+":"+clientID, s.opts.RateLimitAttempts, s.opts.RateLimitWindow)
	if err != nil {
		s.logger.Warn().Err(err).Str("client_id", clientID).Msg("rate limit check failed")
		return nil
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

func (s *BookingService) acquireSlot(ctx context.Context, key string) (func(), error) {
	noop := func() {}
	if s.guards == nil || s.opts.SlotGuardTTL <= 0 {
		return noop, nil
	}

	token, ok, err := s.guards.AcquireSlot(ctx, key, s.opts.SlotGuardTTL)
	if err != nil {
		s.logger.Warn().Err(err).Str("slot", key).Msg("slot guard unavailable")
		return noop, nil
	}
	if !ok {
		metrics.IncSlotConflict()
		return nil, fmt.Errorf("%w: %s is being booked", ErrSlotConflict, key)
	}

	return func() {
		// released on a fresh context so a cancelled request still frees the guard
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := s.guards.ReleaseSlot(releaseCtx, key, token); err != nil {
			s.logger.Warn().Err(err).Str("slot", key).Msg("slot guard release failed")
		}
	}, nil
}

// Cancel cancels the client's own confirmed reservation when the cancellation window is open.
func (s *BookingService) Cancel(ctx context.Context, companyID, clientID, reservationID string) (*models.Reservation, error) {
	r, err := s.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if r.ClientID != clientID || r.CompanyID != companyID {
		return nil, ErrForbidden
	}

	now := s.now()
	if err := availability.CheckCancellation(r, now); err != nil {
		return nil, err
	}

	cancelled, err := s.repo.CancelReservation(ctx, reservationID, now)
	if err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			return nil, availability.ErrAlreadyCancelled
		}
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	metrics.IncReservation(models.StatusCancelled)
	s.logger.Info().
		Str("reservation_id", cancelled.ID).
		Str("client_id", clientID).
		Msg("reservation cancelled")

	s.publishEvent(events.EventReservationCancelled, cancelled)
	s.enqueueSync(ctx, cancelled, "update_status")

	return cancelled, nil
}

func (s *BookingService) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	r, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

// CalendarEvent renders the client's confirmed reservation for their calendar.
func (s *BookingService) CalendarEvent(ctx context.Context, companyID, clientID, reservationID string) (export.CalendarEvent, error) {
	r, err := s.GetReservation(ctx, reservationID)
	if err != nil {
		return export.CalendarEvent{}, err
	}
	if r.ClientID != clientID || r.CompanyID != companyID {
		return export.CalendarEvent{}, ErrForbidden
	}
	if r.Status != models.StatusConfirmed {
		return export.CalendarEvent{}, availability.ErrNotConfirmed
	}

	company, err := s.repo.GetCompany(ctx, companyID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return export.CalendarEvent{}, ErrNotFound
		}
		return export.CalendarEvent{}, fmt.Errorf("failed to load company: %w", err)
	}

	var svc *models.Service
	if r.ServiceID != "" {
		svc, err = s.repo.GetService(ctx, r.ServiceID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return export.CalendarEvent{}, fmt.Errorf("failed to load service: %w", err)
		}
	}

	return export.NewCalendarEvent(r, company, svc, s.loc)
}

// ListClientReservations returns the client's reservations: upcoming soonest first, past
// most recent first.
func (s *BookingService) ListClientReservations(ctx context.Context, companyID, clientID string) (*ClientReservations, error) {
	all, err := s.repo.ListReservations(ctx, models.ReservationFilter{CompanyID: companyID, ClientID: clientID})
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := &ClientReservations{Upcoming: []*models.Reservation{}, Past: []*models.Reservation{}}
	for _, r := range all {
		if r.Upcoming(now) {
			out.Upcoming = append(out.Upcoming, r)
		} else {
			out.Past = append(out.Past, r)
		}
	}
	slices.Reverse(out.Past)
	return out, nil
}

func (s *BookingService) ListCompanyReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error) {
	for _, d := range []string{filter.DateFrom, filter.DateTo} {
		if d == "" {
			continue
		}
		if _, err := models.ParseDate(d, s.loc); err != nil {
			return nil, err
		}
	}
	if filter.Status != "" && !models.IsValidStatus(filter.Status) {
		return nil, fmt.Errorf("unknown status %q: %w", filter.Status, models.ErrInvalidInput)
	}
	return s.repo.ListReservations(ctx, filter)
}

func (s *BookingService) publishEvent(eventType string, r *models.Reservation) {
	if s.eventBus == nil {
		return
	}

	payload := events.ReservationEventPayload{
		ReservationID: r.ID,
		CompanyID:     r.CompanyID,
		ClientID:      r.ClientID,
		ServiceID:     r.ServiceID,
		Date:          r.Date,
		Time:          r.Time,
		Status:        r.Status,
		CancelledAt:   r.CancelledAt,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("reservation_id", r.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, r *models.Reservation, taskType string) {
	if s.sheetsWorker == nil {
		return
	}

	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, r); err != nil {
		s.logger.Error().Err(err).Str("reservation_id", r.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
