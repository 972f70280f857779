// Package ingest converts heterogeneous uploaded tables into canonical
// attendance, marks, and fee records.
//
// Uploads come from schools with wildly inconsistent headers, so both type
// detection and column matching are heuristic: filename keywords first, then
// substring matching of column names against fixed synonym lists. The
// heuristics are deliberately permissive; a messy file should degrade into
// partially-usable records, never into a rejected batch.
package ingest

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/dropwatch/dropwatch/internal/records"
)

// fieldSynonyms maps each semantic field of a record type to the lower-cased
// substrings that identify its column.
var fieldSynonyms = map[records.DataType]map[string][]string{
	records.TypeAttendance: {
		"student": {"student", "name", "student_name", "studentname"},
		"class":   {"class", "grade", "section", "standard"},
		"date":    {"date", "attendance_date", "day"},
		"status":  {"status", "present", "absent", "attendance"},
	},
	records.TypeMarks: {
		"student": {"student", "name", "student_name", "studentname"},
		"subject": {"subject", "course", "paper"},
		"test":    {"test", "exam", "assessment", "quiz"},
		"marks":   {"marks", "score", "grade", "points"},
	},
	records.TypeFees: {
		"student": {"student", "name", "student_name", "studentname"},
		"month":   {"month", "period", "term"},
		"amount":  {"amount", "fee", "fees", "total"},
		"status":  {"status", "paid", "pending", "payment_status"},
	},
}

// filenameHints short-circuit detection before any column matching happens.
var filenameHints = map[records.DataType][]string{
	records.TypeAttendance: {"attendance", "absent", "present"},
	records.TypeMarks:      {"marks", "score", "grade", "exam"},
	records.TypeFees:       {"fee", "payment", "dues"},
}

// Value synonym sets for boolean-ish status fields.
var (
	presentValues = map[string]bool{"present": true, "p": true, "1": true, "yes": true, "attended": true}
	paidValues    = map[string]bool{"paid": true, "p": true, "complete": true, "cleared": true, "yes": true}
	overdueValues = map[string]bool{"overdue": true, "pending": true, "due": true}
)

// columnPolicy picks the column index for a semantic field, or -1 when the
// table has no usable column at all.
type columnPolicy func(columns []string, synonyms []string) int

// permissiveFirstColumn returns the first column containing any synonym
// substring. When nothing matches it falls back to column 0 rather than
// failing the field; ambiguous headers then still produce records, at the
// cost of occasionally mapping the wrong column.
func permissiveFirstColumn(columns []string, synonyms []string) int {
	for i, col := range columns {
		for _, syn := range synonyms {
			if strings.Contains(col, syn) {
				return i
			}
		}
	}
	if len(columns) > 0 {
		return 0
	}
	return -1
}

// DetectType guesses the record type of an upload from its filename and
// column headers.
//
// Filename keywords win outright. Otherwise each candidate type is scored by
// how many of its semantic fields have at least one matching column; the
// first type (in attendance, marks, fees order) reaching half its fields
// wins. Files that match nothing are treated as attendance.
func DetectType(filename string, columns []string) records.DataType {
	filenameLower := strings.ToLower(filename)
	for _, typ := range records.AllTypes {
		for _, hint := range filenameHints[typ] {
			if strings.Contains(filenameLower, hint) {
				return typ
			}
		}
	}

	columnsLower := cleanColumns(columns)
	for _, typ := range records.AllTypes {
		fields := fieldSynonyms[typ]
		matches := 0
		for _, synonyms := range fields {
			if anyColumnMatches(columnsLower, synonyms) {
				matches++
			}
		}
		if float64(matches) >= float64(len(fields))*0.5 {
			return typ
		}
	}

	return records.TypeAttendance
}

func anyColumnMatches(columns []string, synonyms []string) bool {
	for _, col := range columns {
		for _, syn := range synonyms {
			if strings.Contains(col, syn) {
				return true
			}
		}
	}
	return false
}

func cleanColumns(columns []string) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = strings.ToLower(strings.TrimSpace(col))
	}
	return out
}

// Batch is the result of normalizing one uploaded table. Exactly one of the
// record slices is populated, matching the requested type.
type Batch struct {
	Type       records.DataType
	Attendance []records.AttendanceRecord
	Marks      []records.MarksRecord
	Fees       []records.FeeRecord
	Skipped    int // rows dropped (empty, unusable name)
}

// Count returns the number of records the batch produced.
func (b *Batch) Count() int {
	return len(b.Attendance) + len(b.Marks) + len(b.Fees)
}

// Sample returns up to n records for upload previews.
func (b *Batch) Sample(n int) interface{} {
	switch b.Type {
	case records.TypeMarks:
		return b.Marks[:min(n, len(b.Marks))]
	case records.TypeFees:
		return b.Fees[:min(n, len(b.Fees))]
	default:
		return b.Attendance[:min(n, len(b.Attendance))]
	}
}

// Parser normalizes raw tables into canonical records.
type Parser struct {
	logger     *slog.Logger
	findColumn columnPolicy
}

// NewParser creates a parser with the permissive column-matching policy.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{
		logger:     logger,
		findColumn: permissiveFirstColumn,
	}
}

// Normalize converts a table into canonical records of the given type.
// Unusable rows are logged and skipped; normalization never fails a batch.
func (p *Parser) Normalize(table *Table, typ records.DataType) *Batch {
	columns := cleanColumns(table.Columns)
	batch := &Batch{Type: typ}

	switch typ {
	case records.TypeAttendance:
		p.normalizeAttendance(columns, table.Rows, batch)
	case records.TypeMarks:
		p.normalizeMarks(columns, table.Rows, batch)
	case records.TypeFees:
		p.normalizeFees(columns, table.Rows, batch)
	}

	return batch
}

func (p *Parser) normalizeAttendance(columns []string, rows [][]string, batch *Batch) {
	studentCol := p.findColumn(columns, fieldSynonyms[records.TypeAttendance]["student"])
	classCol := p.findColumn(columns, fieldSynonyms[records.TypeAttendance]["class"])
	dateCol := p.findColumn(columns, fieldSynonyms[records.TypeAttendance]["date"])
	statusCol := p.findColumn(columns, fieldSynonyms[records.TypeAttendance]["status"])

	for i, row := range rows {
		if emptyRow(row) {
			batch.Skipped++
			continue
		}

		name := cell(row, studentCol)
		if !usableName(name) {
			p.logger.Debug("skipping attendance row without student name", "row", i+2)
			batch.Skipped++
			continue
		}

		status := strings.ToLower(cell(row, statusCol))
		batch.Attendance = append(batch.Attendance, records.AttendanceRecord{
			StudentName: name,
			Class:       cell(row, classCol),
			Date:        cell(row, dateCol),
			IsPresent:   presentValues[status],
		})
	}
}

func (p *Parser) normalizeMarks(columns []string, rows [][]string, batch *Batch) {
	studentCol := p.findColumn(columns, fieldSynonyms[records.TypeMarks]["student"])
	subjectCol := p.findColumn(columns, fieldSynonyms[records.TypeMarks]["subject"])
	testCol := p.findColumn(columns, fieldSynonyms[records.TypeMarks]["test"])
	marksCol := p.findColumn(columns, fieldSynonyms[records.TypeMarks]["marks"])

	for i, row := range rows {
		if emptyRow(row) {
			batch.Skipped++
			continue
		}

		name := cell(row, studentCol)
		if !usableName(name) {
			p.logger.Debug("skipping marks row without student name", "row", i+2)
			batch.Skipped++
			continue
		}

		batch.Marks = append(batch.Marks, records.MarksRecord{
			StudentName: name,
			Subject:     cell(row, subjectCol),
			Test:        cell(row, testCol),
			Marks:       parseNumeric(cell(row, marksCol)),
		})
	}
}

func (p *Parser) normalizeFees(columns []string, rows [][]string, batch *Batch) {
	studentCol := p.findColumn(columns, fieldSynonyms[records.TypeFees]["student"])
	monthCol := p.findColumn(columns, fieldSynonyms[records.TypeFees]["month"])
	amountCol := p.findColumn(columns, fieldSynonyms[records.TypeFees]["amount"])
	statusCol := p.findColumn(columns, fieldSynonyms[records.TypeFees]["status"])

	for i, row := range rows {
		if emptyRow(row) {
			batch.Skipped++
			continue
		}

		name := cell(row, studentCol)
		if !usableName(name) {
			p.logger.Debug("skipping fee row without student name", "row", i+2)
			batch.Skipped++
			continue
		}

		statusValue := strings.ToLower(cell(row, statusCol))
		isPaid := paidValues[statusValue]

		var status records.FeeStatus
		switch {
		case isPaid:
			status = records.FeePaid
		case overdueValues[statusValue]:
			status = records.FeeOverdue
		default:
			status = records.FeePartial
		}

		batch.Fees = append(batch.Fees, records.FeeRecord{
			StudentName: name,
			Month:       cell(row, monthCol),
			Amount:      parseNumeric(cell(row, amountCol)),
			Status:      status,
			IsPaid:      isPaid,
		})
	}
}

// cell returns the trimmed value at index i, or "" for out-of-range cells.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func emptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// usableName rejects empty names and the literal "nan" that spreadsheet
// exports emit for missing cells.
func usableName(name string) bool {
	return name != "" && strings.ToLower(name) != "nan"
}

// parseNumeric coerces a cell to a float, treating anything unparsable as 0
// rather than failing the row.
func parseNumeric(s string) float64 {
	if s == "" || strings.ToLower(s) == "nan" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
