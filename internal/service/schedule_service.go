package service

import (
	"context"
	"errors"
	"fmt"

	"slotbook/internal/database"
	"slotbook/internal/domain"
	"slotbook/internal/models"

	"github.com/rs/zerolog"
)

type ScheduleService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewScheduleService(repo domain.Repository, logger *zerolog.Logger) *ScheduleService {
	return &ScheduleService{repo: repo, logger: logger}
}

// Get returns the company's stored schedule, or the default schedule when none was saved.
// A stored schedule that fails validation is reported as models.ErrInvalidSchedule.
func (s *ScheduleService) Get(ctx context.Context, companyID string) (models.ScheduleConfig, error) {
	cfg, err := s.repo.GetSchedule(ctx, companyID)
	switch {
	case err == nil:
	case errors.Is(err, database.ErrNotFound):
		if _, cerr := s.repo.GetCompany(ctx, companyID); cerr != nil {
			if errors.Is(cerr, database.ErrNotFound) {
				return models.ScheduleConfig{}, fmt.Errorf("company %s: %w", companyID, ErrNotFound)
			}
			return models.ScheduleConfig{}, fmt.Errorf("failed to load company: %w", cerr)
		}
		return models.DefaultSchedule(companyID), nil
	default:
		return models.ScheduleConfig{}, fmt.Errorf("failed to load schedule: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return models.ScheduleConfig{}, err
	}
	return *cfg, nil
}

// Update validates and replaces the company's schedule.
func (s *ScheduleService) Update(ctx context.Context, cfg models.ScheduleConfig) (models.ScheduleConfig, error) {
	if cfg.SlotGranularityMinutes == 0 {
		cfg.SlotGranularityMinutes = models.DefaultSlotGranularity
	}
	if err := cfg.Validate(); err != nil {
		return models.ScheduleConfig{}, err
	}

	if _, err := s.repo.GetCompany(ctx, cfg.CompanyID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.ScheduleConfig{}, fmt.Errorf("company %s: %w", cfg.CompanyID, ErrNotFound)
		}
		return models.ScheduleConfig{}, fmt.Errorf("failed to load company: %w", err)
	}

	if err := s.repo.SaveSchedule(ctx, &cfg); err != nil {
		return models.ScheduleConfig{}, err
	}

	s.logger.Info().
		Str("company_id", cfg.CompanyID).
		Int("granularity", cfg.SlotGranularityMinutes).
		Msg("schedule updated")
	return cfg, nil
}
