// Package export renders loan history as CSV or XLSX attachments.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rl1809/library-lending/internal/core/domain"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const (
	SheetName = "Borrow Records"

	notAvailable = "N/A"
	notReturned  = "Not Returned Yet"
)

var ErrUnsupportedFormat = errors.New(`invalid format, please specify either "csv" or "xlsx"`)

var header = []string{
	"Book Title",
	"Borrower Name",
	"Borrower Email",
	"Borrower Phone",
	"Borrow Date",
	"Due Date",
	"Return Date",
}

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

func (f Format) Filename() string {
	if f == FormatXLSX {
		return "borrow_records.xlsx"
	}
	return "borrowing-data.csv"
}

// Write renders loans in the given format.
func Write(w io.Writer, f Format, loans []domain.LoanDetail) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, loans)
	case FormatXLSX:
		return WriteXLSX(w, loans)
	default:
		return ErrUnsupportedFormat
	}
}

func WriteCSV(w io.Writer, loans []domain.LoanDetail) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, l := range loans {
		if err := cw.Write(record(l)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func WriteXLSX(w io.Writer, loans []domain.LoanDetail) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	if err := setRow(f, 1, header); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, l := range loans {
		if err := setRow(f, i+2, record(l)); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}

	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}

	if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func record(l domain.LoanDetail) []string {
	phone := notAvailable
	if l.BorrowerPhone != nil && *l.BorrowerPhone != "" {
		phone = *l.BorrowerPhone
	}

	email := l.BorrowerEmail
	if email == "" {
		email = notAvailable
	}

	returned := notReturned
	if l.ReturnDate != nil {
		returned = timestamp(*l.ReturnDate)
	}

	return []string{
		l.BookTitle,
		l.BorrowerName,
		email,
		phone,
		timestamp(l.BorrowDate),
		timestamp(l.DueDate),
		returned,
	}
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
