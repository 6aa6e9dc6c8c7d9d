package notify

import (
	"context"
	"sync"
	"time"

	"slotbook/internal/events"
	"slotbook/internal/metrics"
	"slotbook/internal/models"

	"github.com/rs/zerolog"
)

const (
	TypeAppointmentConfirmed = "appointment_confirmed"
	TypeAppointmentCancelled = "appointment_cancelled"
)

// Notification is a reservation change enriched with catalog data for outbound channels.
type Notification struct {
	Type        string
	Reservation events.ReservationEventPayload
	Company     *models.Company
	Service     *models.Service
	Timestamp   time.Time
}

// Notifier delivers a notification over one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n *Notification) error
}

// Directory resolves the catalog entries a notification mentions.
type Directory interface {
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	GetService(ctx context.Context, id string) (*models.Service, error)
}

// Dispatcher turns reservation events into notifications and fans them out to every
// notifier in the background. Delivery failures are logged and counted only.
type Dispatcher struct {
	directory Directory
	notifiers []Notifier
	timeout   time.Duration
	now       func() time.Time
	wg        sync.WaitGroup
	logger    *zerolog.Logger
}

func NewDispatcher(directory Directory, timeout time.Duration, logger *zerolog.Logger, notifiers ...Notifier) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		directory: directory,
		notifiers: notifiers,
		timeout:   timeout,
		now:       time.Now,
		logger:    logger,
	}
}

// Subscribe attaches the dispatcher to reservation events on bus.
func (d *Dispatcher) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventReservationConfirmed, d.handle)
	bus.Subscribe(events.EventReservationCancelled, d.handle)
}

func (d *Dispatcher) handle(ev *events.Event) error {
	if len(d.notifiers) == 0 {
		return nil
	}

	var payload events.ReservationEventPayload
	if err := ev.Decode(&payload); err != nil {
		return err
	}

	n := &Notification{
		Type:        notificationType(ev.Type),
		Reservation: payload,
		Timestamp:   d.now(),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.enrich(n)
		d.fanOut(n)
	}()
	return nil
}

func notificationType(eventType string) string {
	if eventType == events.EventReservationCancelled {
		return TypeAppointmentCancelled
	}
	return TypeAppointmentConfirmed
}

func (d *Dispatcher) enrich(n *Notification) {
	if d.directory == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if company, err := d.directory.GetCompany(ctx, n.Reservation.CompanyID); err == nil {
		n.Company = company
	} else {
		d.logger.Warn().Err(err).Str("company_id", n.Reservation.CompanyID).Msg("notification: company lookup failed")
	}

	if n.Reservation.ServiceID == "" {
		return
	}
	if svc, err := d.directory.GetService(ctx, n.Reservation.ServiceID); err == nil {
		n.Service = svc
	} else {
		d.logger.Warn().Err(err).Str("service_id", n.Reservation.ServiceID).Msg("notification: service lookup failed")
	}
}

func (d *Dispatcher) fanOut(n *Notification) {
	var wg sync.WaitGroup
	for _, notifier := range d.notifiers {
		wg.Add(1)
		go func(notifier Notifier) {
			defer wg.Done()
			d.send(notifier, n)
		}(notifier)
	}
	wg.Wait()
}

func (d *Dispatcher) send(notifier Notifier, n *Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := notifier.Notify(ctx, n); err != nil {
		metrics.IncNotification(notifier.Name(), "error")
		d.logger.Error().
			Err(err).
			Str("channel", notifier.Name()).
			Str("type", n.Type).
			Str("reservation_id", n.Reservation.ReservationID).
			Msg("notification failed")
		return
	}

	metrics.IncNotification(notifier.Name(), "ok")
	d.logger.Debug().
		Str("channel", notifier.Name()).
		Str("type", n.Type).
		Str("reservation_id", n.Reservation.ReservationID).
		Msg("notification sent")
}

// Wait blocks until every in-flight notification has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
