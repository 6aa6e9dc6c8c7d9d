package api

import (
	"context"
	"errors"
	"strings"

	"slotbook/internal/availability"
	"slotbook/internal/export"
	"slotbook/internal/models"
	"slotbook/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// BookingAPI is the part of service.BookingService the transports call.
type BookingAPI interface {
	ListSlots(ctx context.Context, companyID, date string) ([]availability.SlotStatus, error)
	AvailableSlots(ctx context.Context, companyID, date string) ([]models.Clock, error)
	CheckSlot(ctx context.Context, companyID, date, tm string) (availability.Decision, error)
	Book(ctx context.Context, req service.BookingRequest) (*models.Reservation, error)
	Cancel(ctx context.Context, companyID, clientID, reservationID string) (*models.Reservation, error)
	ListClientReservations(ctx context.Context, companyID, clientID string) (*service.ClientReservations, error)
	ListCompanyReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error)
	CalendarEvent(ctx context.Context, companyID, clientID, reservationID string) (export.CalendarEvent, error)
}

type ScheduleAPI interface {
	Get(ctx context.Context, companyID string) (models.ScheduleConfig, error)
	Update(ctx context.Context, cfg models.ScheduleConfig) (models.ScheduleConfig, error)
}

type CatalogAPI interface {
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	ListServices(ctx context.Context, companyID string) ([]*models.Service, error)
}

const (
	availabilityServiceName = "slotbook.availability.v1.AvailabilityService"

	ListSlotsMethod = "/" + availabilityServiceName + "/ListSlots"
	CheckSlotMethod = "/" + availabilityServiceName + "/CheckSlot"
)

// AvailabilityServer is the read-only slot API. Requests and responses are
// google.protobuf.Struct so integrations need no generated stubs.
type AvailabilityServer interface {
	ListSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CheckSlot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var AvailabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: availabilityServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListSlots", Handler: listSlotsHandler},
		{MethodName: "CheckSlot", Handler: checkSlotHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "slotbook/availability/v1/availability.proto",
}

func listSlotsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServer).ListSlots(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListSlotsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServer).ListSlots(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func checkSlotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServer).CheckSlot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CheckSlotMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServer).CheckSlot(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type AvailabilityService struct {
	booking BookingAPI
}

func NewAvailabilityService(booking BookingAPI) *AvailabilityService {
	return &AvailabilityService{booking: booking}
}

// ListSlots expects {company_id, date, available_only?}.
func (s *AvailabilityService) ListSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	companyID, date, err := requiredFields(req, "company_id", "date")
	if err != nil {
		return nil, err
	}
	availableOnly := req.GetFields()["available_only"].GetBoolValue()

	statuses, err := s.booking.ListSlots(ctx, companyID, date)
	if err != nil {
		return nil, grpcError(err)
	}

	slots := make([]any, 0, len(statuses))
	for _, st := range statuses {
		if availableOnly && !st.Available() {
			continue
		}
		slots = append(slots, map[string]any{
			"time":      st.Time.String(),
			"decision":  st.Decision.String(),
			"available": st.Available(),
		})
	}

	resp, err := structpb.NewStruct(map[string]any{
		"company_id": companyID,
		"date":       date,
		"slots":      slots,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return resp, nil
}

// CheckSlot expects {company_id, date, time}.
func (s *AvailabilityService) CheckSlot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields, err := requiredFieldList(req, "company_id", "date", "time")
	if err != nil {
		return nil, err
	}

	decision, err := s.booking.CheckSlot(ctx, fields[0], fields[1], fields[2])
	if err != nil {
		return nil, grpcError(err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"company_id": fields[0],
		"date":       fields[1],
		"time":       fields[2],
		"decision":   decision.String(),
		"bookable":   decision == availability.Bookable,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return resp, nil
}

func requiredFields(req *structpb.Struct, a, b string) (string, string, error) {
	vals, err := requiredFieldList(req, a, b)
	if err != nil {
		return "", "", err
	}
	return vals[0], vals[1], nil
}

func requiredFieldList(req *structpb.Struct, names ...string) ([]string, error) {
	out := make([]string, len(names))
	for i, name := range names {
		v := strings.TrimSpace(req.GetFields()[name].GetStringValue())
		if v == "" {
			return nil, status.Errorf(codes.InvalidArgument, "%s is required", name)
		}
		out[i] = v
	}
	return out, nil
}

func grpcError(err error) error {
	switch {
	case isInvalidInput(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, "company not found")
	case errors.Is(err, service.ErrSlotConflict):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func isInvalidInput(err error) bool {
	return errors.Is(err, models.ErrInvalidDate) ||
		errors.Is(err, models.ErrInvalidTime) ||
		errors.Is(err, models.ErrInvalidInput) ||
		errors.Is(err, models.ErrInvalidSchedule)
}
