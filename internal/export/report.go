package export

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/campus-roombook/internal/application"
)

const (
	bookingsSheet = "Bookings"
	summarySheet  = "Summary"
	reportLayout  = "2006-01-02 15:04"
)

var bookingHeaders = []string{"ID", "Room", "Requester", "Start", "End", "Hours", "Status", "Purpose", "Admin note"}

var reportStatuses = []application.BookingStatus{
	application.BookingPending,
	application.BookingApproved,
	application.BookingRejected,
	application.BookingCancelled,
	application.BookingCompleted,
}

// BookingReport describes the workbook produced by WriteBookingReport.
type BookingReport struct {
	Bookings []application.Booking
	// RoomNames maps room IDs to display names. Unknown rooms show their ID.
	RoomNames map[string]string
	// Location renders the start and end columns. Nil means UTC.
	Location *time.Location
}

// WriteBookingReport writes an xlsx workbook with one row per booking and a
// per-status summary sheet.
func WriteBookingReport(w io.Writer, report BookingReport) error {
	loc := report.Location
	if loc == nil {
		loc = time.UTC
	}

	bookings := append([]application.Booking(nil), report.Bookings...)
	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].Start.Before(bookings[j].Start)
	})

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return fmt.Errorf("export: create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("export: drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}

	if err := writeRow(f, bookingsSheet, 1, toCells(bookingHeaders)); err != nil {
		return err
	}
	last := cell(colName(len(bookingHeaders)-1), 1)
	if err := f.SetCellStyle(bookingsSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("export: apply header style: %w", err)
	}
	_ = f.SetColWidth(bookingsSheet, "A", "C", 18)
	_ = f.SetColWidth(bookingsSheet, "D", "E", 18)
	_ = f.SetColWidth(bookingsSheet, "H", "I", 40)

	counts := make(map[application.BookingStatus]int, len(reportStatuses))
	hours := make(map[application.BookingStatus]float64, len(reportStatuses))
	for i, booking := range bookings {
		duration := booking.End.Sub(booking.Start).Hours()
		counts[booking.Status]++
		hours[booking.Status] += duration

		note := ""
		if booking.AdminNote != nil {
			note = *booking.AdminNote
		}
		row := []any{
			booking.ID,
			roomName(report.RoomNames, booking.RoomID),
			booking.RequesterID,
			booking.Start.In(loc).Format(reportLayout),
			booking.End.In(loc).Format(reportLayout),
			duration,
			string(booking.Status),
			booking.Purpose,
			note,
		}
		if err := writeRow(f, bookingsSheet, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("export: create sheet: %w", err)
	}
	if err := writeRow(f, summarySheet, 1, []any{"Status", "Bookings", "Hours"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "C1", headerStyle); err != nil {
		return fmt.Errorf("export: apply header style: %w", err)
	}
	for i, status := range reportStatuses {
		if err := writeRow(f, summarySheet, i+2, []any{string(status), counts[status], hours[status]}); err != nil {
			return err
		}
	}
	total := len(reportStatuses) + 2
	if err := writeRow(f, summarySheet, total, []any{"total", len(bookings)}); err != nil {
		return err
	}
	if err := f.SetCellFormula(summarySheet, cell("C", total), fmt.Sprintf("SUM(C2:C%d)", total-1)); err != nil {
		return fmt.Errorf("export: total formula: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write xlsx: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	if err := f.SetSheetRow(sheet, cell("A", row), &values); err != nil {
		return fmt.Errorf("export: write row %d: %w", row, err)
	}
	return nil
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func roomName(names map[string]string, roomID string) string {
	if name, ok := names[roomID]; ok && name != "" {
		return name
	}
	return roomID
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
