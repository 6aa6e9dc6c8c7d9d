package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"slotbook/internal/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupMockServer(t *testing.T) (*http.ServeMux, *SheetsService) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("sheets.NewService: %v", err)
	}
	s := newSheetsService(srv, "sheet_tid", "Reservations")
	s.now = func() time.Time { return time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC) }
	return mux, s
}

func testReservation(id string) *models.Reservation {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &models.Reservation{
		ID:        id,
		CompanyID: "c1",
		ClientID:  "alice",
		ServiceID: "cut",
		Date:      "2024-05-06",
		Time:      "14:00",
		Status:    models.StatusConfirmed,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestReservationRowValues(t *testing.T) {
	r := testReservation("r1")
	cancelled := time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)
	r.CancelledAt = &cancelled
	r.Status = models.StatusCancelled

	expected := []interface{}{
		"r1", "c1", "alice", "cut", "2024-05-06", "14:00", "cancelled",
		"2024-05-01 10:00:00", "2024-05-01 10:00:00", "2024-05-02 08:30:00",
	}
	values := reservationRowValues(r)
	if len(values) != len(expected) {
		t.Fatalf("Expected %d values, got %d", len(expected), len(values))
	}
	for i, v := range values {
		if v != expected[i] {
			t.Errorf("At index %d: expected %v, got %v", i, expected[i], v)
		}
	}

	if got := reservationRowValues(testReservation("r2"))[9]; got != "" {
		t.Errorf("Expected empty cancelled cell, got %v", got)
	}
}

func TestParseRowFromRange(t *testing.T) {
	tests := []struct {
		in   string
		row  int
		want bool
	}{
		{"Reservations!A10:J10", 10, true},
		{"Reservations!A2", 2, true},
		{"garbage", 0, false},
	}
	for _, tt := range tests {
		row, ok := parseRowFromRange(tt.in)
		if ok != tt.want || row != tt.row {
			t.Errorf("parseRowFromRange(%q) = %d, %v; want %d, %v", tt.in, row, ok, tt.row, tt.want)
		}
	}
}

func TestSheetsService_TestConnection(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/sheet_tid/values/Reservations!A1", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	if err := s.TestConnection(context.Background()); err != nil {
		t.Errorf("TestConnection failed: %v", err)
	}
}

func TestSheetsService_WarmUpCache(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/sheet_tid/values/Reservations!A:A", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"ID"}, {"r1"}, {}, {"r3"}},
		})
	})
	if err := s.WarmUpCache(context.Background()); err != nil {
		t.Fatalf("WarmUpCache failed: %v", err)
	}
	if row, ok := s.getCachedRow("r3"); !ok || row != 4 {
		t.Errorf("Expected row 4 for r3, got %d", row)
	}

	s.ClearCache()
	if _, ok := s.getCachedRow("r1"); ok {
		t.Error("Expected cache to be empty")
	}
}

func TestSheetsService_UpsertAppendsMissingRow(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/sheet_tid/values/Reservations!A:A", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	mux.HandleFunc("/v4/spreadsheets/sheet_tid/values/Reservations!A:A:append", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{
			Updates: &sheets.UpdateValuesResponse{UpdatedRange: "Reservations!A10:J10"},
		})
	})

	if err := s.UpsertReservation(context.Background(), testReservation("r9")); err != nil {
		t.Fatalf("UpsertReservation failed: %v", err)
	}
	if row, _ := s.getCachedRow("r9"); row != 10 {
		t.Errorf("Expected cached row 10, got %d", row)
	}
}

func TestSheetsService_UpsertUpdatesExistingRow(t *testing.T) {
	mux, s := setupMockServer(t)
	s.setCachedRow("r1", 2)

	var body sheets.ValueRange
	mux.HandleFunc("/v4/spreadsheets/sheet_tid/values/Reservations!A2:J2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	if err := s.UpsertReservation(context.Background(), testReservation("r1")); err != nil {
		t.Fatalf("UpsertReservation failed: %v", err)
	}
	if len(body.Values) != 1 || body.Values[0][0] != "r1" {
		t.Errorf("Unexpected row written: %v", body.Values)
	}

	if err := s.UpsertReservation(context.Background(), nil); err == nil {
		t.Error("Expected error for nil reservation")
	}
}

func TestSheetsService_UpdateReservationStatus(t *testing.T) {
	mux, s := setupMockServer(t)
	s.setCachedRow("r1", 5)

	var req sheets.BatchUpdateValuesRequest
	mux.HandleFunc("/v4/spreadsheets/sheet_tid/values:batchUpdate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(sheets.BatchUpdateValuesResponse{})
	})

	if err := s.UpdateReservationStatus(context.Background(), "r1", models.StatusCancelled); err != nil {
		t.Fatalf("UpdateReservationStatus failed: %v", err)
	}
	if len(req.Data) != 2 {
		t.Fatalf("Expected 2 ranges, got %d", len(req.Data))
	}
	if req.Data[0].Range != "Reservations!G5" || req.Data[0].Values[0][0] != models.StatusCancelled {
		t.Errorf("Unexpected status range: %+v", req.Data[0])
	}
	if req.Data[1].Values[0][0] != "2024-05-06 09:00:00" {
		t.Errorf("Unexpected updated-at value: %v", req.Data[1].Values)
	}
}

func TestSheetsService_FindReservationRow(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/sheet_tid/values/Reservations!A:A", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}, {"r1"}, {"r2"}}})
	})

	row, err := s.FindReservationRow(context.Background(), "r2")
	if err != nil || row != 3 {
		t.Errorf("Expected row 3, got %d (%v)", row, err)
	}

	if _, err := s.FindReservationRow(context.Background(), "missing"); err != ErrRowNotFound {
		t.Errorf("Expected ErrRowNotFound, got %v", err)
	}

	if _, err := s.FindReservationRow(context.Background(), ""); err == nil {
		t.Error("Expected error for empty id")
	}
}
