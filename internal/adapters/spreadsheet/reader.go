// Package spreadsheet reads invoices from Excel workbooks.
package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/dispatch/internal/core/invoice"
	"github.com/example/dispatch/internal/ports/secondary"
)

// Column order of the invoice sheet. One row per invoice line; rows of
// the same invoice share the InvoiceID cell.
const (
	colInvoiceID = iota
	colCustomer
	colCustomerPart
	colCarrierPart
	colExpectedQty
	columnCount
)

// Header is the title row written by NewTemplate and skipped on read.
var Header = []string{"InvoiceID", "Customer", "CustomerPart", "CarrierPart", "ExpectedQty"}

// ErrNoSheet is returned for a workbook without worksheets.
var ErrNoSheet = errors.New("workbook has no sheets")

// RowError reports an unusable row. Row is 1-based as shown by Excel.
type RowError struct {
	Row    int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// InvoiceReader implements secondary.InvoiceSource over the first
// worksheet of an .xlsx workbook.
type InvoiceReader struct{}

// NewInvoiceReader creates a workbook invoice reader.
func NewInvoiceReader() *InvoiceReader {
	return &InvoiceReader{}
}

// ReadInvoices parses every invoice in the workbook, in order of first appearance.
func (r *InvoiceReader) ReadInvoices(ctx context.Context, src io.Reader) ([]invoice.Draft, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheet
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	var (
		drafts []invoice.Draft
		index  = map[string]int{}
	)
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if blank(row) || (i == 0 && isHeader(row)) {
			continue
		}

		id, customer, line, err := parseRow(i+1, row)
		if err != nil {
			return nil, err
		}

		n, ok := index[id]
		if !ok {
			n = len(drafts)
			index[id] = n
			drafts = append(drafts, invoice.Draft{ID: id})
		}
		if drafts[n].CustomerName == "" {
			drafts[n].CustomerName = customer
		}
		drafts[n].Lines = append(drafts[n].Lines, line)
	}
	return drafts, nil
}

func parseRow(rowNum int, row []string) (string, string, invoice.DraftLine, error) {
	cells := make([]string, columnCount)
	for i := 0; i < columnCount && i < len(row); i++ {
		cells[i] = strings.TrimSpace(row[i])
	}

	for _, c := range []int{colInvoiceID, colCustomerPart, colCarrierPart, colExpectedQty} {
		if cells[c] == "" {
			return "", "", invoice.DraftLine{}, &RowError{Row: rowNum, Reason: "missing " + Header[c]}
		}
	}
	qty, err := strconv.Atoi(cells[colExpectedQty])
	if err != nil || qty < 0 {
		return "", "", invoice.DraftLine{}, &RowError{Row: rowNum, Reason: fmt.Sprintf("invalid ExpectedQty %q", cells[colExpectedQty])}
	}

	return cells[colInvoiceID], cells[colCustomer], invoice.DraftLine{
		CustomerPartCode: cells[colCustomerPart],
		CarrierPartCode:  cells[colCarrierPart],
		ExpectedQuantity: qty,
	}, nil
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), Header[colInvoiceID])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// NewTemplate returns an empty workbook with the header row, for operators
// to fill in.
func NewTemplate() (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &Header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return f, nil
}

var _ secondary.InvoiceSource = (*InvoiceReader)(nil)
