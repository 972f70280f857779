// Package records defines the canonical student record types produced by the
// ingest normalizer and the store that accumulates them between uploads.
//
// Three independently-shaped streams share a student_name key: attendance,
// marks, and fee payments. Records are immutable once created; the store only
// appends, snapshots, and clears.
package records

import "context"

// DataType identifies which canonical shape a file normalizes into.
type DataType string

const (
	TypeAttendance DataType = "attendance"
	TypeMarks      DataType = "marks"
	TypeFees       DataType = "fees"
)

// AllTypes lists the data types in their fixed evaluation order.
// Detection and identity resolution both depend on this order.
var AllTypes = []DataType{TypeAttendance, TypeMarks, TypeFees}

// Valid reports whether t is a known data type.
func (t DataType) Valid() bool {
	switch t {
	case TypeAttendance, TypeMarks, TypeFees:
		return true
	}
	return false
}

// AttendanceRecord is one day of attendance for one student.
type AttendanceRecord struct {
	StudentName string `json:"student_name"`
	Class       string `json:"class"`
	Date        string `json:"date"`
	IsPresent   bool   `json:"is_present"`
}

// MarksRecord is one test result for one student.
type MarksRecord struct {
	StudentName string  `json:"student_name"`
	Subject     string  `json:"subject"`
	Test        string  `json:"test"`
	Marks       float64 `json:"marks"`
}

// FeeStatus is the normalized payment state of a single fee record.
type FeeStatus string

const (
	FeePaid    FeeStatus = "Paid"
	FeePartial FeeStatus = "Partial"
	FeeOverdue FeeStatus = "Overdue"
	FeeUnknown FeeStatus = "Unknown"
)

// FeeRecord is one month's fee entry for one student.
type FeeRecord struct {
	StudentName string    `json:"student_name"`
	Month       string    `json:"month"`
	Amount      float64   `json:"amount"`
	Status      FeeStatus `json:"status"`
	IsPaid      bool      `json:"is_paid"`
}

// Dataset is a consistent snapshot of all accumulated records.
// Aggregation always works on a Dataset, never on live store state, so a
// concurrently-appending upload can't be observed half-written.
type Dataset struct {
	Attendance []AttendanceRecord
	Marks      []MarksRecord
	Fees       []FeeRecord
}

// Empty reports whether the dataset holds no records in any stream.
func (d *Dataset) Empty() bool {
	return len(d.Attendance) == 0 && len(d.Marks) == 0 && len(d.Fees) == 0
}

// Store accumulates canonical records across upload batches.
//
// Appends from concurrent uploads must be serialized by the implementation;
// Snapshot must return a copy that later appends cannot mutate.
type Store interface {
	AppendAttendance(ctx context.Context, recs []AttendanceRecord) error
	AppendMarks(ctx context.Context, recs []MarksRecord) error
	AppendFees(ctx context.Context, recs []FeeRecord) error
	Snapshot(ctx context.Context) (*Dataset, error)
	Clear(ctx context.Context) error
	Counts(ctx context.Context) (attendance, marks, fees int, err error)
}
