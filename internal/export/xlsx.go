package export

import (
	"fmt"
	"io"
	"sort"

	"slotbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	ReservationsSheet = "Reservations"
	DailySheet        = "By day"
)

var reservationHeaders = []string{"ID", "Date", "Time", "Client", "Service", "Price", "Status", "Created", "Cancelled"}

// Report is the input of an XLSX reservation export.
type Report struct {
	CompanyName  string
	From, To     string
	Reservations []*models.Reservation
	Services     map[string]*models.Service
}

// WriteXLSX renders the report as a workbook with a reservation list and a per-day summary.
func WriteXLSX(w io.Writer, report Report) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(ReservationsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := writeReservations(f, report); err != nil {
		return err
	}
	if err := writeDaily(f, report.Reservations); err != nil {
		return err
	}

	_ = f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// FileName is the attachment name used for a company export.
func FileName(companyID, from, to string) string {
	if from == "" {
		from = "start"
	}
	if to == "" {
		to = "end"
	}
	return fmt.Sprintf("reservations_%s_%s_to_%s.xlsx", companyID, from, to)
}

func writeReservations(f *excelize.File, report Report) error {
	sheet := ReservationsSheet

	_ = f.SetCellValue(sheet, "A1", fmt.Sprintf("%s: %s - %s", report.CompanyName, report.From, report.To))
	lastCol, _ := excelize.ColumnNumberToName(len(reservationHeaders))
	_ = f.MergeCell(sheet, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheet, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err := f.SetSheetRow(sheet, "A2", &reservationHeaders); err != nil {
		return fmt.Errorf("error writing headers: %w", err)
	}
	_ = f.SetCellStyle(sheet, "A2", lastCol+"2", headerStyle)

	cancelledStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#9C0006", Strike: true},
	})

	for i, r := range report.Reservations {
		row := i + 3
		serviceName, price := "", 0.0
		if svc, ok := report.Services[r.ServiceID]; ok {
			serviceName, price = svc.Name, svc.Price
		}
		cancelled := ""
		if r.CancelledAt != nil {
			cancelled = r.CancelledAt.Format("2006-01-02 15:04")
		}

		values := []interface{}{
			r.ID, r.Date, r.Time, r.ClientID, serviceName, price, r.Status,
			r.CreatedAt.Format("2006-01-02 15:04"), cancelled,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
		if r.Status == models.StatusCancelled {
			end, _ := excelize.CoordinatesToCellName(len(reservationHeaders), row)
			_ = f.SetCellStyle(sheet, cell, end, cancelledStyle)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 38)
	_ = f.SetColWidth(sheet, "B", lastCol, 16)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 2, TopLeftCell: "A3", ActivePane: "bottomLeft"})
	return nil
}

func writeDaily(f *excelize.File, reservations []*models.Reservation) error {
	if _, err := f.NewSheet(DailySheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	type counts struct{ confirmed, cancelled int }
	byDate := make(map[string]*counts)
	for _, r := range reservations {
		c, ok := byDate[r.Date]
		if !ok {
			c = &counts{}
			byDate[r.Date] = c
		}
		switch r.Status {
		case models.StatusConfirmed:
			c.confirmed++
		case models.StatusCancelled:
			c.cancelled++
		}
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	_ = f.SetSheetRow(DailySheet, "A1", &[]string{"Date", "Confirmed", "Cancelled"})
	for i, d := range dates {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetSheetRow(DailySheet, cell, &[]interface{}{d, byDate[d].confirmed, byDate[d].cancelled})
	}
	_ = f.SetColWidth(DailySheet, "A", "C", 14)
	return nil
}
