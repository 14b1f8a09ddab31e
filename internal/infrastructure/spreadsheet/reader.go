// Package spreadsheet reads customer and loan workbooks used for bulk import.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var ErrMissingColumn = errors.New("required column missing")

const (
	colCustomerID     = "customer id"
	colFirstName      = "first name"
	colLastName       = "last name"
	colAge            = "age"
	colPhoneNumber    = "phone number"
	colMonthlySalary  = "monthly salary"
	colApprovedLimit  = "approved limit"
	colLoanID         = "loan id"
	colLoanAmount     = "loan amount"
	colTenure         = "tenure"
	colInterestRate   = "interest rate"
	colMonthlyPayment = "monthly payment"
	colEMIsPaid       = "emis paid on time"
	colApprovalDate   = "date of approval"
	colEndDate        = "end date"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"01-02-06",
	"1/2/2006",
	"02.01.2006",
}

type CustomerRow struct {
	CustomerID    int64
	FirstName     string
	LastName      string
	Age           int
	PhoneNumber   string
	MonthlySalary float64
	ApprovedLimit float64
}

type LoanRow struct {
	CustomerID     int64
	LoanID         int64
	LoanAmount     float64
	Tenure         int
	InterestRate   float64
	MonthlyPayment float64
	EMIsPaidOnTime int
	ApprovalDate   time.Time
	EndDate        time.Time
}

// RowError reports a data row that could not be parsed. Row is the 1-based
// sheet row number.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

func ReadCustomersFile(path string) ([]CustomerRow, []RowError, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open customer workbook %s: %w", path, err)
	}
	defer f.Close()
	return readCustomers(f)
}

func ReadCustomers(r io.Reader) ([]CustomerRow, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open customer workbook: %w", err)
	}
	defer f.Close()
	return readCustomers(f)
}

func ReadLoansFile(path string) ([]LoanRow, []RowError, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open loan workbook %s: %w", path, err)
	}
	defer f.Close()
	return readLoans(f)
}

func ReadLoans(r io.Reader) ([]LoanRow, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open loan workbook: %w", err)
	}
	defer f.Close()
	return readLoans(f)
}

func readCustomers(f *excelize.File) ([]CustomerRow, []RowError, error) {
	tbl, err := loadTable(f, colCustomerID, colFirstName, colLastName, colPhoneNumber, colMonthlySalary, colApprovedLimit)
	if err != nil {
		return nil, nil, err
	}

	var (
		out     []CustomerRow
		rowErrs []RowError
	)
	for i, cells := range tbl.rows {
		rowNum := i + 2
		if blank(cells) {
			continue
		}
		rec := record{cells: cells, index: tbl.index}

		var c CustomerRow
		var perr error
		if c.CustomerID, perr = rec.Int64(colCustomerID); perr == nil {
			c.FirstName = rec.String(colFirstName)
			c.LastName = rec.String(colLastName)
			c.PhoneNumber = rec.Phone(colPhoneNumber)
			c.Age, perr = rec.OptionalInt(colAge)
		}
		if perr == nil {
			c.MonthlySalary, perr = rec.Float64(colMonthlySalary)
		}
		if perr == nil {
			c.ApprovedLimit, perr = rec.Float64(colApprovedLimit)
		}
		if perr != nil {
			rowErrs = append(rowErrs, RowError{Row: rowNum, Err: perr})
			continue
		}
		out = append(out, c)
	}
	return out, rowErrs, nil
}

func readLoans(f *excelize.File) ([]LoanRow, []RowError, error) {
	tbl, err := loadTable(f, colCustomerID, colLoanID, colLoanAmount, colTenure, colInterestRate,
		colMonthlyPayment, colEMIsPaid, colApprovalDate, colEndDate)
	if err != nil {
		return nil, nil, err
	}

	var (
		out     []LoanRow
		rowErrs []RowError
	)
	for i, cells := range tbl.rows {
		rowNum := i + 2
		if blank(cells) {
			continue
		}
		l, perr := parseLoan(record{cells: cells, index: tbl.index})
		if perr != nil {
			rowErrs = append(rowErrs, RowError{Row: rowNum, Err: perr})
			continue
		}
		out = append(out, l)
	}
	return out, rowErrs, nil
}

func parseLoan(rec record) (LoanRow, error) {
	var (
		l   LoanRow
		err error
	)
	if l.CustomerID, err = rec.Int64(colCustomerID); err != nil {
		return l, err
	}
	if l.LoanID, err = rec.Int64(colLoanID); err != nil {
		return l, err
	}
	if l.LoanAmount, err = rec.Float64(colLoanAmount); err != nil {
		return l, err
	}
	if l.Tenure, err = rec.Int(colTenure); err != nil {
		return l, err
	}
	if l.InterestRate, err = rec.Float64(colInterestRate); err != nil {
		return l, err
	}
	if l.MonthlyPayment, err = rec.Float64(colMonthlyPayment); err != nil {
		return l, err
	}
	if l.EMIsPaidOnTime, err = rec.Int(colEMIsPaid); err != nil {
		return l, err
	}
	if l.ApprovalDate, err = rec.Date(colApprovalDate); err != nil {
		return l, err
	}
	if l.EndDate, err = rec.Date(colEndDate); err != nil {
		return l, err
	}
	return l, nil
}

type table struct {
	index map[string]int
	rows  [][]string
}

// loadTable reads the first sheet with raw cell values so that dates arrive
// as Excel serial numbers regardless of their display format.
func loadTable(f *excelize.File, required ...string) (*table, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		index[normalizeHeader(h)] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, col)
		}
	}
	return &table{index: index, rows: rows[1:]}, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

type record struct {
	cells []string
	index map[string]int
}

func (r record) String(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func (r record) required(col string) (string, error) {
	v := r.String(col)
	if v == "" {
		return "", fmt.Errorf("%s is empty", col)
	}
	return v, nil
}

func (r record) Float64(col string) (float64, error) {
	v, err := r.required(col)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a number", col, v)
	}
	return f, nil
}

// Int accepts whole numbers written as floats, e.g. "12.0".
func (r record) Int(col string) (int, error) {
	f, err := r.Float64(col)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("%s %v is not a whole number", col, f)
	}
	return int(f), nil
}

func (r record) Int64(col string) (int64, error) {
	n, err := r.Int(col)
	return int64(n), err
}

func (r record) OptionalInt(col string) (int, error) {
	if r.String(col) == "" {
		return 0, nil
	}
	return r.Int(col)
}

// Phone renders numeric cells without exponent or fraction.
func (r record) Phone(col string) string {
	v := r.String(col)
	if strings.ContainsAny(v, ".eE") {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return strconv.FormatFloat(f, 'f', 0, 64)
		}
	}
	return v
}

func (r record) Date(col string) (time.Time, error) {
	v, err := r.required(col)
	if err != nil {
		return time.Time{}, err
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("%s %q is not a valid date: %w", col, v, err)
		}
		return truncateDay(t), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return truncateDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%s %q is not a valid date", col, v)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
