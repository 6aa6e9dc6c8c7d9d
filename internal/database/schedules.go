package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"slotbook/internal/models"

	sq "github.com/Masterminds/squirrel"
)

// GetSchedule loads a company's weekly schedule. Days are stored as a JSON array.
func (db *DB) GetSchedule(ctx context.Context, companyID string) (*models.ScheduleConfig, error) {
	query, args, err := db.sb.Select("company_id", "slot_granularity_minutes", "days", "updated_at").
		From("schedules").
		Where(sq.Eq{"company_id": companyID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build schedule query: %w", err)
	}

	var (
		cfg  models.ScheduleConfig
		days string
	)
	err = db.QueryRowContext(ctx, query, args...).
		Scan(&cfg.CompanyID, &cfg.SlotGranularityMinutes, &days, &cfg.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	if err := json.Unmarshal([]byte(days), &cfg.Days); err != nil {
		return nil, fmt.Errorf("failed to decode schedule days for %s: %w", companyID, err)
	}
	return &cfg, nil
}

// SaveSchedule replaces the stored schedule. Validation is the caller's job.
func (db *DB) SaveSchedule(ctx context.Context, cfg *models.ScheduleConfig) error {
	days, err := json.Marshal(cfg.Days)
	if err != nil {
		return fmt.Errorf("failed to encode schedule days: %w", err)
	}
	cfg.UpdatedAt = time.Now().UTC()

	query, args, err := db.sb.Insert("schedules").
		Columns("company_id", "slot_granularity_minutes", "days", "updated_at").
		Values(cfg.CompanyID, cfg.SlotGranularityMinutes, string(days), cfg.UpdatedAt).
		Suffix(`ON CONFLICT (company_id) DO UPDATE SET
			slot_granularity_minutes = excluded.slot_granularity_minutes,
			days = excluded.days,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build schedule upsert: %w", err)
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}
