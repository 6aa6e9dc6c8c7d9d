package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"slotbook/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var reservationColumns = []string{
	"id", "company_id", "client_id", "service_id", "slot_date", "slot_time",
	"status", "created_at", "updated_at", "cancelled_at",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	var cancelledAt sql.NullTime
	err := row.Scan(
		&r.ID, &r.CompanyID, &r.ClientID, &r.ServiceID, &r.Date, &r.Time,
		&r.Status, &r.CreatedAt, &r.UpdatedAt, &cancelledAt,
	)
	if err != nil {
		return nil, err
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		r.CancelledAt = &t
	}
	return &r, nil
}

// InsertConfirmedReservation stores r as confirmed. It returns ErrSlotTaken when another
// confirmed reservation already holds the same (company, date, time).
func (db *DB) InsertConfirmedReservation(ctx context.Context, r *models.Reservation) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.Status = models.StatusConfirmed
	r.CreatedAt = now
	r.UpdatedAt = now
	r.CancelledAt = nil

	query, args, err := db.sb.Insert("reservations").
		Columns(reservationColumns...).
		Values(r.ID, r.CompanyID, r.ClientID, r.ServiceID, r.Date, r.Time, r.Status, now, now, nil).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build reservation insert: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			db.logger.Debug().
				Str("company_id", r.CompanyID).
				Str("date", r.Date).
				Str("time", r.Time).
				Msg("confirmed slot already taken")
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	return nil
}

func (db *DB) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	query, args, err := db.sb.Select(reservationColumns...).
		From("reservations").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build reservation query: %w", err)
	}

	r, err := scanReservation(db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

// ListConfirmedReservations returns the confirmed reservations of a company on one date,
// ordered by time.
func (db *DB) ListConfirmedReservations(ctx context.Context, companyID, date string) ([]*models.Reservation, error) {
	return db.ListReservations(ctx, models.ReservationFilter{
		CompanyID: companyID,
		Status:    models.StatusConfirmed,
		DateFrom:  date,
		DateTo:    date,
	})
}

func (db *DB) ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error) {
	builder := db.sb.Select(reservationColumns...).From("reservations")

	if filter.CompanyID != "" {
		builder = builder.Where(sq.Eq{"company_id": filter.CompanyID})
	}
	if filter.ClientID != "" {
		builder = builder.Where(sq.Eq{"client_id": filter.ClientID})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.DateFrom != "" {
		builder = builder.Where(sq.GtOrEq{"slot_date": filter.DateFrom})
	}
	if filter.DateTo != "" {
		builder = builder.Where(sq.LtOrEq{"slot_date": filter.DateTo})
	}
	builder = builder.OrderBy("slot_date", "slot_time", "created_at")
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build reservations query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservations: %w", err)
	}
	return reservations, nil
}

// CancelReservation moves a confirmed reservation to cancelled. Losing a race against
// another cancellation yields ErrConcurrentModification.
func (db *DB) CancelReservation(ctx context.Context, id string, at time.Time) (*models.Reservation, error) {
	at = at.UTC()
	query, args, err := db.sb.Update("reservations").
		Set("status", models.StatusCancelled).
		Set("cancelled_at", at).
		Set("updated_at", at).
		Where(sq.Eq{"id": id, "status": models.StatusConfirmed}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build cancel query: %w", err)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel reservation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		if _, err := db.GetReservation(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrConcurrentModification
	}

	return db.GetReservation(ctx, id)
}
