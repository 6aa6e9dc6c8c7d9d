package database

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/models"

	sq "github.com/Masterminds/squirrel"
)

var companyColumns = []string{"id", "name", "active", "address", "telegram_chat_id", "created_at", "updated_at"}

func (db *DB) UpsertCompany(ctx context.Context, c *models.Company) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	query, args, err := db.sb.Insert("companies").
		Columns(companyColumns...).
		Values(c.ID, c.Name, c.Active, c.Address, c.TelegramChatID, c.CreatedAt, c.UpdatedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			address = excluded.address,
			telegram_chat_id = excluded.telegram_chat_id,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build company upsert: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert company: %w", err)
	}
	return nil
}

func (db *DB) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	query, args, err := db.sb.Select(companyColumns...).
		From("companies").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build company query: %w", err)
	}

	var c models.Company
	err = db.QueryRowContext(ctx, query, args...).
		Scan(&c.ID, &c.Name, &c.Active, &c.Address, &c.TelegramChatID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (db *DB) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	query, args, err := db.sb.Select(companyColumns...).
		From("companies").
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build companies query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Active, &c.Address, &c.TelegramChatID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, &c)
	}
	return companies, rows.Err()
}

func (db *DB) UpsertService(ctx context.Context, s *models.Service) error {
	query, args, err := db.sb.Insert("services").
		Columns("id", "company_id", "name", "price", "duration_minutes", "active").
		Values(s.ID, s.CompanyID, s.Name, s.Price, s.DurationMinutes, s.Active).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			company_id = excluded.company_id,
			name = excluded.name,
			price = excluded.price,
			duration_minutes = excluded.duration_minutes,
			active = excluded.active`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build service upsert: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert service: %w", err)
	}
	return nil
}

func (db *DB) GetService(ctx context.Context, id string) (*models.Service, error) {
	query, args, err := db.sb.Select("id", "company_id", "name", "price", "duration_minutes", "active").
		From("services").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build service query: %w", err)
	}

	var s models.Service
	err = db.QueryRowContext(ctx, query, args...).
		Scan(&s.ID, &s.CompanyID, &s.Name, &s.Price, &s.DurationMinutes, &s.Active)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (db *DB) ListServices(ctx context.Context, companyID string, activeOnly bool) ([]*models.Service, error) {
	builder := db.sb.Select("id", "company_id", "name", "price", "duration_minutes", "active").
		From("services").
		Where(sq.Eq{"company_id": companyID}).
		OrderBy("name")
	if activeOnly {
		builder = builder.Where(sq.Eq{"active": true})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build services query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		var s models.Service
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.Name, &s.Price, &s.DurationMinutes, &s.Active); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, &s)
	}
	return services, rows.Err()
}
