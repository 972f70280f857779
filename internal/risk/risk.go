// Package risk implements rule-based dropout risk scoring for students.
//
// Every student seen in the uploaded data is evaluated against 3 weighted
// factors: attendance percentage, academic performance, and fee payment
// history. Scores range from 0 (safe) to 100 (high risk). Students above the
// high threshold additionally produce alerts for staff follow-up.
package risk

import (
	"context"
	"time"
)

// RiskLevel buckets a risk score for display and alerting.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Overall score thresholds.
const (
	HighRiskThreshold   = 70.0
	MediumRiskThreshold = 40.0
)

// AttendanceMetrics summarizes a student's attendance stream.
type AttendanceMetrics struct {
	Percentage  float64 `json:"percentage"`
	TotalDays   int     `json:"totalDays"`
	PresentDays int     `json:"presentDays"`
	AbsentDays  int     `json:"absentDays"`
}

// PerformanceMetrics summarizes a student's test results. Zero marks are
// treated as missing data and excluded from the average.
type PerformanceMetrics struct {
	Average    float64   `json:"average"`
	TotalTests int       `json:"totalTests"`
	Subjects   []string  `json:"subjects"`
	Marks      []float64 `json:"marks"`
}

// FeesMetrics summarizes a student's fee payment history.
type FeesMetrics struct {
	Status        string  `json:"status"`
	OverdueMonths int     `json:"overdueMonths"`
	TotalAmount   float64 `json:"totalAmount"`
	PaidAmount    float64 `json:"paidAmount"`
}

// AttendanceFactor is the attendance component of a risk profile.
type AttendanceFactor struct {
	Value   float64           `json:"value"`
	Level   RiskLevel         `json:"riskLevel"`
	Details AttendanceMetrics `json:"details"`
}

// PerformanceFactor is the academic component of a risk profile.
type PerformanceFactor struct {
	Value   float64            `json:"value"`
	Level   RiskLevel          `json:"riskLevel"`
	Details PerformanceMetrics `json:"details"`
}

// FeesFactor is the financial component of a risk profile.
type FeesFactor struct {
	OverdueMonths int         `json:"overdueMonths"`
	Level         RiskLevel   `json:"riskLevel"`
	Details       FeesMetrics `json:"details"`
}

// RiskFactors groups the three factor assessments.
type RiskFactors struct {
	Attendance  AttendanceFactor  `json:"attendance"`
	Performance PerformanceFactor `json:"performance"`
	Fees        FeesFactor        `json:"fees"`
}

// StudentRiskProfile is the full analysis result for one student.
type StudentRiskProfile struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Class           string      `json:"class"`
	Department      string      `json:"department"`
	Attendance      float64     `json:"attendance"`
	Score           float64     `json:"score"`
	FeeStatus       string      `json:"feeStatus"`
	RiskScore       float64     `json:"riskScore"`
	RiskLevel       RiskLevel   `json:"riskLevel"`
	LastUpdated     time.Time   `json:"lastUpdated"`
	Factors         RiskFactors `json:"riskFactors"`
	Recommendations []string    `json:"recommendations"`
}

// Alert flags a high-risk student for immediate staff attention.
type Alert struct {
	ID              string    `json:"id"`
	StudentID       string    `json:"studentId"`
	StudentName     string    `json:"studentName"`
	RiskScore       float64   `json:"riskScore"`
	Type            string    `json:"type"`
	Priority        string    `json:"priority"`
	Reasons         []string  `json:"reasons"`
	Recommendations []string  `json:"recommendations"`
	CreatedAt       time.Time `json:"createdAt"`
}

// RunSummary records one full analysis pass for trend reporting.
type RunSummary struct {
	ID               string    `json:"id"`
	StudentsAnalyzed int       `json:"studentsAnalyzed"`
	HighRisk         int       `json:"highRisk"`
	MediumRisk       int       `json:"mediumRisk"`
	LowRisk          int       `json:"lowRisk"`
	AverageScore     float64   `json:"averageScore"`
	AlertCount       int       `json:"alertCount"`
	RanAt            time.Time `json:"ranAt"`
}

// Store persists analysis run summaries for the dashboard trend view.
type Store interface {
	RecordRun(ctx context.Context, run *RunSummary) error
	RecentRuns(ctx context.Context, limit int) ([]*RunSummary, error)
}
