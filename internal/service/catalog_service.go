package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"slotbook/internal/database"
	"slotbook/internal/domain"
	"slotbook/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

// Catalog is the seed file listing companies and what they sell.
type Catalog struct {
	Companies []CatalogCompany `yaml:"companies"`
}

type CatalogCompany struct {
	ID             string           `yaml:"id"`
	Name           string           `yaml:"name"`
	Active         *bool            `yaml:"active"`
	Address        string           `yaml:"address"`
	TelegramChatID int64            `yaml:"telegram_chat_id"`
	Services       []models.Service `yaml:"services"`
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(catalog.Companies))
	for _, c := range catalog.Companies {
		if c.ID == "" || c.Name == "" {
			return nil, fmt.Errorf("catalog company needs id and name: %w", models.ErrInvalidInput)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate catalog company %q: %w", c.ID, models.ErrInvalidInput)
		}
		seen[c.ID] = true
	}
	return &catalog, nil
}

type CatalogService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewCatalogService(repo domain.Repository, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{repo: repo, logger: logger}
}

// Sync upserts every company and service in the catalog. New companies get the default
// weekly schedule; existing schedules are left alone.
func (s *CatalogService) Sync(ctx context.Context, catalog *Catalog) error {
	for _, entry := range catalog.Companies {
		active := true
		if entry.Active != nil {
			active = *entry.Active
		}

		company := &models.Company{
			ID:             entry.ID,
			Name:           entry.Name,
			Active:         active,
			Address:        entry.Address,
			TelegramChatID: entry.TelegramChatID,
		}
		if err := s.repo.UpsertCompany(ctx, company); err != nil {
			return fmt.Errorf("sync company %s: %w", entry.ID, err)
		}

		for i := range entry.Services {
			svc := entry.Services[i]
			svc.CompanyID = entry.ID
			if err := s.repo.UpsertService(ctx, &svc); err != nil {
				return fmt.Errorf("sync service %s/%s: %w", entry.ID, svc.ID, err)
			}
		}

		if err := s.ensureSchedule(ctx, entry.ID); err != nil {
			return err
		}

		s.logger.Debug().
			Str("company_id", entry.ID).
			Int("services", len(entry.Services)).
			Msg("catalog company synced")
	}

	s.logger.Info().Int("companies", len(catalog.Companies)).Msg("catalog synced")
	return nil
}

func (s *CatalogService) ensureSchedule(ctx context.Context, companyID string) error {
	_, err := s.repo.GetSchedule(ctx, companyID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("load schedule %s: %w", companyID, err)
	}

	cfg := models.DefaultSchedule(companyID)
	if err := s.repo.SaveSchedule(ctx, &cfg); err != nil {
		return fmt.Errorf("create default schedule %s: %w", companyID, err)
	}
	return nil
}

func (s *CatalogService) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	c, err := s.repo.GetCompany(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListServices returns the company's active services.
func (s *CatalogService) ListServices(ctx context.Context, companyID string) ([]*models.Service, error) {
	if _, err := s.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}
	return s.repo.ListServices(ctx, companyID, true)
}
