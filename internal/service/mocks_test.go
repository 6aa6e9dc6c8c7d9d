package service

import (
	"context"
	"time"

	"slotbook/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) InsertConfirmedReservation(ctx context.Context, r *models.Reservation) error {
	args := m.Called(ctx, r)
	if args.Error(0) == nil && r.ID == "" {
		r.ID = "r-new"
		r.Status = models.StatusConfirmed
	}
	return args.Error(0)
}
func (m *mockRepo) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}
func (m *mockRepo) ListConfirmedReservations(ctx context.Context, companyID, date string) ([]*models.Reservation, error) {
	args := m.Called(ctx, companyID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reservation), args.Error(1)
}
func (m *mockRepo) ListReservations(ctx context.Context, f models.ReservationFilter) ([]*models.Reservation, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reservation), args.Error(1)
}
func (m *mockRepo) CancelReservation(ctx context.Context, id string, at time.Time) (*models.Reservation, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}
func (m *mockRepo) GetSchedule(ctx context.Context, companyID string) (*models.ScheduleConfig, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScheduleConfig), args.Error(1)
}
func (m *mockRepo) SaveSchedule(ctx context.Context, cfg *models.ScheduleConfig) error {
	return m.Called(ctx, cfg).Error(0)
}
func (m *mockRepo) UpsertCompany(ctx context.Context, c *models.Company) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockRepo) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Company), args.Error(1)
}
func (m *mockRepo) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Company), args.Error(1)
}
func (m *mockRepo) UpsertService(ctx context.Context, s *models.Service) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockRepo) GetService(ctx context.Context, id string) (*models.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}
func (m *mockRepo) ListServices(ctx context.Context, companyID string, activeOnly bool) ([]*models.Service, error) {
	args := m.Called(ctx, companyID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Service), args.Error(1)
}

type mockGuards struct {
	mock.Mock
}

func (m *mockGuards) AcquireSlot(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}
func (m *mockGuards) ReleaseSlot(ctx context.Context, key, token string) error {
	return m.Called(ctx, key, token).Error(0)
}
func (m *mockGuards) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload any) error {
	return m.Called(eventType, payload).Error(0)
}

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueTask(ctx context.Context, taskType string, r *models.Reservation) error {
	return m.Called(ctx, taskType, r).Error(0)
}
