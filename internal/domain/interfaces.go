package domain

import (
	"context"
	"time"

	"slotbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type ReservationRepository interface {
	// InsertConfirmedReservation fails with database.ErrSlotTaken when the slot already has a
	// confirmed reservation.
	InsertConfirmedReservation(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	ListConfirmedReservations(ctx context.Context, companyID, date string) ([]*models.Reservation, error)
	ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error)
	CancelReservation(ctx context.Context, id string, at time.Time) (*models.Reservation, error)
}

type ScheduleRepository interface {
	GetSchedule(ctx context.Context, companyID string) (*models.ScheduleConfig, error)
	SaveSchedule(ctx context.Context, cfg *models.ScheduleConfig) error
}

type CatalogRepository interface {
	UpsertCompany(ctx context.Context, c *models.Company) error
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	ListCompanies(ctx context.Context) ([]*models.Company, error)
	UpsertService(ctx context.Context, s *models.Service) error
	GetService(ctx context.Context, id string) (*models.Service, error)
	ListServices(ctx context.Context, companyID string, activeOnly bool) ([]*models.Service, error)
}

type Repository interface {
	ReservationRepository
	ScheduleRepository
	CatalogRepository
}

// GuardRepository holds short-lived slot guards and per-client attempt counters.
type GuardRepository interface {
	AcquireSlot(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseSlot(ctx context.Context, key, token string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

// SessionResolver turns a bearer credential into the caller's identity.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.Session, error)
}

type SyncQueue interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

type SheetsWriter interface {
	UpsertReservation(ctx context.Context, r *models.Reservation) error
	UpdateReservationStatus(ctx context.Context, reservationID, status string) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, r *models.Reservation) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}
