package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"slotbook/internal/availability"
	"slotbook/internal/export"
	"slotbook/internal/models"
	"slotbook/internal/service"

	"github.com/gorilla/mux"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type slotView struct {
	Time      string `json:"time"`
	Decision  string `json:"decision"`
	Available bool   `json:"available"`
}

type bookingBody struct {
	ServiceID string `json:"service_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Health.PingContext(ctx); err != nil {
			s.log.Error().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	companyID := mux.Vars(r)["companyId"]
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	availableOnly, _ := strconv.ParseBool(r.URL.Query().Get("available"))

	statuses, err := s.svc.Booking.ListSlots(r.Context(), companyID, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	slots := make([]slotView, 0, len(statuses))
	for _, st := range statuses {
		if availableOnly && !st.Available() {
			continue
		}
		slots = append(slots, slotView{Time: st.Time.String(), Decision: st.Decision.String(), Available: st.Available()})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"company_id": companyID,
		"date":       date,
		"slots":      slots,
	})
}

func (s *HTTPServer) handleCheckSlot(w http.ResponseWriter, r *http.Request) {
	companyID := mux.Vars(r)["companyId"]
	q := r.URL.Query()
	date, tm := strings.TrimSpace(q.Get("date")), strings.TrimSpace(q.Get("time"))
	if date == "" || tm == "" {
		writeError(w, http.StatusBadRequest, "date and time are required")
		return
	}

	decision, err := s.svc.Booking.CheckSlot(r.Context(), companyID, date, tm)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":     date,
		"time":     tm,
		"decision": decision.String(),
		"bookable": decision == availability.Bookable,
	})
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.svc.Catalog.ListServices(r.Context(), mux.Vars(r)["companyId"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *HTTPServer) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.svc.Schedules.Get(r.Context(), mux.Vars(r)["companyId"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *HTTPServer) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var cfg models.ScheduleConfig
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	cfg.CompanyID = mux.Vars(r)["companyId"]

	saved, err := s.svc.Schedules.Update(r.Context(), cfg)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	client, _ := r.Context().Value(ctxKeyAPIClient).(string)
	s.log.Info().Str("company_id", saved.CompanyID).Str("api_client", client).Msg("schedule replaced")
	writeJSON(w, http.StatusOK, saved)
}

func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	companyID := mux.Vars(r)["companyId"]
	if sess.CompanyID != companyID {
		writeError(w, http.StatusForbidden, "session is not valid for this company")
		return
	}

	var body bookingBody
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	date := strings.TrimSpace(body.Date)

	reservation, err := s.svc.Booking.Book(r.Context(), service.BookingRequest{
		CompanyID: companyID,
		ClientID:  sess.ClientID,
		ServiceID: strings.TrimSpace(body.ServiceID),
		Date:      date,
		Time:      strings.TrimSpace(body.Time),
	})
	if err == nil {
		writeJSON(w, http.StatusCreated, reservation)
		return
	}

	if decision, ok := service.AsRejection(err); ok {
		resp := map[string]any{
			"error":    "slot is not bookable",
			"decision": decision.String(),
		}
		if decision == availability.RejectedTaken {
			s.attachFreshSlots(r.Context(), resp, companyID, date)
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	if errors.Is(err, service.ErrSlotConflict) {
		resp := map[string]any{"error": "slot was just taken"}
		s.attachFreshSlots(r.Context(), resp, companyID, date)
		writeJSON(w, http.StatusConflict, resp)
		return
	}

	s.writeServiceError(w, r, err)
}

// attachFreshSlots offers the slots still open on date after losing a slot.
func (s *HTTPServer) attachFreshSlots(ctx context.Context, resp map[string]any, companyID, date string) {
	fresh, err := s.svc.Booking.AvailableSlots(ctx, companyID, date)
	if err != nil {
		s.log.Warn().Err(err).Str("company_id", companyID).Str("date", date).Msg("fresh slot lookup failed")
		return
	}
	times := make([]string, 0, len(fresh))
	for _, c := range fresh {
		times = append(times, c.String())
	}
	resp["available_slots"] = times
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	filter, err := reservationFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reservations, err := s.svc.Booking.ListCompanyReservations(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if reservations == nil {
		reservations = []*models.Reservation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": reservations})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := reservationFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	company, err := s.svc.Catalog.GetCompany(r.Context(), filter.CompanyID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	reservations, err := s.svc.Booking.ListCompanyReservations(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	services, err := s.svc.Catalog.ListServices(r.Context(), company.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	byID := make(map[string]*models.Service, len(services))
	for _, svc := range services {
		byID[svc.ID] = svc
	}

	var buf bytes.Buffer
	err = export.WriteXLSX(&buf, export.Report{
		CompanyName:  company.Name,
		From:         filter.DateFrom,
		To:           filter.DateTo,
		Reservations: reservations,
		Services:     byID,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition",
		`attachment; filename="`+export.FileName(company.ID, filter.DateFrom, filter.DateTo)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) handleMyReservations(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	out, err := s.svc.Booking.ListClientReservations(r.Context(), sess.CompanyID, sess.ClientID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	reservation, err := s.svc.Booking.Cancel(r.Context(), sess.CompanyID, sess.ClientID, mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	event, err := s.svc.Booking.CalendarEvent(r.Context(), sess.CompanyID, sess.ClientID, mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event":               event,
		"google_calendar_url": event.GoogleCalendarURL(),
	})
}

func reservationFilter(r *http.Request) (models.ReservationFilter, error) {
	q := r.URL.Query()
	filter := models.ReservationFilter{
		CompanyID: mux.Vars(r)["companyId"],
		Status:    strings.TrimSpace(q.Get("status")),
		DateFrom:  strings.TrimSpace(q.Get("from")),
		DateTo:    strings.TrimSpace(q.Get("to")),
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, errors.New("limit must be a positive integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}

// cancellationReason names why a cancellation was refused.
func cancellationReason(err error) (string, bool) {
	switch {
	case errors.Is(err, availability.ErrCancellationWindowClosed):
		return "window_closed", true
	case errors.Is(err, availability.ErrAlreadyCancelled):
		return "already_cancelled", true
	case errors.Is(err, availability.ErrNotConfirmed):
		return "not_confirmed", true
	}
	return "", false
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if reason, ok := cancellationReason(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error(), "reason": reason})
		return
	}

	switch {
	case isInvalidInput(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnknownService):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, service.ErrSlotConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error().Err(err).
			Str("request_id", RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
