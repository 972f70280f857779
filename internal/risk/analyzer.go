package risk

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dropwatch/dropwatch/internal/idgen"
	"github.com/dropwatch/dropwatch/internal/records"
)

const (
	weightAttendance  = 0.40
	weightPerformance = 0.35
	weightFees        = 0.25

	// Each unpaid month adds 30 points to the fees risk score, capped at 100.
	overduePenaltyPoints = 30.0

	attendanceHighBelow    = 60.0
	attendanceMediumBelow  = 75.0
	performanceHighBelow   = 40.0
	performanceMediumBelow = 60.0
	feesHighFrom           = 2
	feesMediumFrom         = 1
)

// Analyzer scores students from a dataset snapshot. Pure in-memory
// computation; the optional store keeps an audit trail of runs.
type Analyzer struct {
	store Store
}

// NewAnalyzer creates an analyzer backed by the given run store.
func NewAnalyzer(store Store) *Analyzer {
	return &Analyzer{store: store}
}

// AnalyzeAll scores every student present in the dataset and returns the
// profiles sorted by descending risk score. Equal scores keep the order
// students first appeared in the data.
func (a *Analyzer) AnalyzeAll(ctx context.Context, ds *records.Dataset) []*StudentRiskProfile {
	names := uniqueStudents(ds)
	now := time.Now()

	profiles := make([]*StudentRiskProfile, 0, len(names))
	for _, name := range names {
		profiles = append(profiles, a.analyzeStudent(name, ds, now))
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].RiskScore > profiles[j].RiskScore
	})

	if a.store != nil {
		run := summarizeRun(profiles, now)
		go func() {
			_ = a.store.RecordRun(context.Background(), run)
		}()
	}

	return profiles
}

// uniqueStudents returns student names in first-appearance order across the
// attendance, marks, and fees streams.
func uniqueStudents(ds *records.Dataset) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, r := range ds.Attendance {
		add(r.StudentName)
	}
	for _, r := range ds.Marks {
		add(r.StudentName)
	}
	for _, r := range ds.Fees {
		add(r.StudentName)
	}
	return names
}

func (a *Analyzer) analyzeStudent(name string, ds *records.Dataset, now time.Time) *StudentRiskProfile {
	attendance := attendanceMetrics(filterAttendance(ds.Attendance, name))
	performance := performanceMetrics(filterMarks(ds.Marks, name))
	fees := feesMetrics(filterFees(ds.Fees, name))

	attendanceLevel := attendanceRiskLevel(attendance.Percentage)
	performanceLevel := performanceRiskLevel(performance.Average)
	feesLevel := feesRiskLevel(fees.OverdueMonths)

	score := combinedRiskScore(attendance.Percentage, performance.Average, fees.OverdueMonths)
	overall := overallRiskLevel(score)

	class, department := studentClass(ds.Attendance, name)

	return &StudentRiskProfile{
		ID:          idgen.StudentID(name),
		Name:        name,
		Class:       class,
		Department:  department,
		Attendance:  round1(attendance.Percentage),
		Score:       round1(performance.Average),
		FeeStatus:   fees.Status,
		RiskScore:   round1(score),
		RiskLevel:   overall,
		LastUpdated: now,
		Factors: RiskFactors{
			Attendance:  AttendanceFactor{Value: attendance.Percentage, Level: attendanceLevel, Details: attendance},
			Performance: PerformanceFactor{Value: performance.Average, Level: performanceLevel, Details: performance},
			Fees:        FeesFactor{OverdueMonths: fees.OverdueMonths, Level: feesLevel, Details: fees},
		},
		Recommendations: recommendations(overall, attendanceLevel, performanceLevel, feesLevel),
	}
}

func filterAttendance(recs []records.AttendanceRecord, name string) []records.AttendanceRecord {
	var out []records.AttendanceRecord
	for _, r := range recs {
		if r.StudentName == name {
			out = append(out, r)
		}
	}
	return out
}

func filterMarks(recs []records.MarksRecord, name string) []records.MarksRecord {
	var out []records.MarksRecord
	for _, r := range recs {
		if r.StudentName == name {
			out = append(out, r)
		}
	}
	return out
}

func filterFees(recs []records.FeeRecord, name string) []records.FeeRecord {
	var out []records.FeeRecord
	for _, r := range recs {
		if r.StudentName == name {
			out = append(out, r)
		}
	}
	return out
}

// attendanceMetrics computes the attendance summary. A student with no
// attendance records scores 0%, which surfaces missing data as risk rather
// than hiding it.
func attendanceMetrics(recs []records.AttendanceRecord) AttendanceMetrics {
	if len(recs) == 0 {
		return AttendanceMetrics{}
	}
	present := 0
	for _, r := range recs {
		if r.IsPresent {
			present++
		}
	}
	total := len(recs)
	return AttendanceMetrics{
		Percentage:  float64(present) / float64(total) * 100,
		TotalDays:   total,
		PresentDays: present,
		AbsentDays:  total - present,
	}
}

func performanceMetrics(recs []records.MarksRecord) PerformanceMetrics {
	if len(recs) == 0 {
		return PerformanceMetrics{}
	}

	var marks []float64
	var subjects []string
	seenSubject := make(map[string]bool)
	for _, r := range recs {
		if r.Marks > 0 {
			marks = append(marks, r.Marks)
		}
		if r.Subject != "" && !seenSubject[r.Subject] {
			seenSubject[r.Subject] = true
			subjects = append(subjects, r.Subject)
		}
	}

	var average float64
	if len(marks) > 0 {
		var sum float64
		for _, m := range marks {
			sum += m
		}
		average = sum / float64(len(marks))
	}

	return PerformanceMetrics{
		Average:    average,
		TotalTests: len(marks),
		Subjects:   subjects,
		Marks:      marks,
	}
}

func feesMetrics(recs []records.FeeRecord) FeesMetrics {
	if len(recs) == 0 {
		return FeesMetrics{Status: string(records.FeeUnknown)}
	}

	var total, paid float64
	overdue := 0
	for _, r := range recs {
		total += r.Amount
		if r.IsPaid {
			paid += r.Amount
		} else {
			overdue++
		}
	}

	status := records.FeePartial
	switch {
	case overdue == 0:
		status = records.FeePaid
	case overdue >= len(recs):
		status = records.FeeOverdue
	}

	return FeesMetrics{
		Status:        string(status),
		OverdueMonths: overdue,
		TotalAmount:   total,
		PaidAmount:    paid,
	}
}

func attendanceRiskLevel(percentage float64) RiskLevel {
	switch {
	case percentage < attendanceHighBelow:
		return RiskHigh
	case percentage < attendanceMediumBelow:
		return RiskMedium
	default:
		return RiskLow
	}
}

func performanceRiskLevel(average float64) RiskLevel {
	switch {
	case average < performanceHighBelow:
		return RiskHigh
	case average < performanceMediumBelow:
		return RiskMedium
	default:
		return RiskLow
	}
}

func feesRiskLevel(overdueMonths int) RiskLevel {
	switch {
	case overdueMonths >= feesHighFrom:
		return RiskHigh
	case overdueMonths >= feesMediumFrom:
		return RiskMedium
	default:
		return RiskLow
	}
}

// combinedRiskScore converts the three metrics into risk points and takes
// their weighted average, clamped to [0, 100].
func combinedRiskScore(attendancePct, performanceAvg float64, overdueMonths int) float64 {
	attendanceRisk := math.Max(0, 100-attendancePct)
	performanceRisk := math.Max(0, 100-performanceAvg)
	feesRisk := math.Min(100, float64(overdueMonths)*overduePenaltyPoints)

	score := attendanceRisk*weightAttendance +
		performanceRisk*weightPerformance +
		feesRisk*weightFees

	return math.Min(100, math.Max(0, score))
}

func overallRiskLevel(score float64) RiskLevel {
	switch {
	case score >= HighRiskThreshold:
		return RiskHigh
	case score >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// studentClass finds the student's class label from their attendance records
// and infers a department from it.
func studentClass(recs []records.AttendanceRecord, name string) (class, department string) {
	for _, r := range recs {
		if r.StudentName == name && r.Class != "" {
			return r.Class, inferDepartment(r.Class)
		}
	}
	return "Unknown", "General"
}

func inferDepartment(class string) string {
	lower := strings.ToLower(class)
	switch {
	case containsAny(lower, "sci", "pcm", "pcb"):
		return "Science"
	case containsAny(lower, "com", "commerce"):
		return "Commerce"
	case containsAny(lower, "arts", "humanities"):
		return "Arts"
	default:
		return "General"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func recommendations(overall, attendance, performance, fees RiskLevel) []string {
	var recs []string

	if overall == RiskHigh {
		recs = append(recs, "Immediate intervention required")
	}
	if attendance != RiskLow {
		recs = append(recs,
			"Improve attendance: schedule a parent meeting",
			"Check for health or transport issues")
	}
	if performance != RiskLow {
		recs = append(recs,
			"Provide additional academic support",
			"Consider tutoring or a mentorship program")
	}
	if fees != RiskLow {
		recs = append(recs,
			"Follow up on fee payments",
			"Discuss payment plan options")
	}
	if overall == RiskLow {
		recs = append(recs, "Continue current support strategies")
	}

	return recs
}

// GenerateAlert produces an alert for a high-risk profile, or nil for any
// other tier. Each factor at high risk contributes one reason line.
func (a *Analyzer) GenerateAlert(profile *StudentRiskProfile) *Alert {
	if profile.RiskLevel != RiskHigh {
		return nil
	}

	var reasons []string
	if profile.Factors.Attendance.Level == RiskHigh {
		reasons = append(reasons, fmt.Sprintf("Critical attendance issue: %.1f%%", profile.Attendance))
	}
	if profile.Factors.Performance.Level == RiskHigh {
		reasons = append(reasons, fmt.Sprintf("Poor academic performance: %.1f%%", profile.Score))
	}
	if profile.Factors.Fees.Level == RiskHigh {
		reasons = append(reasons, fmt.Sprintf("Fees overdue: %d months", profile.Factors.Fees.OverdueMonths))
	}

	return &Alert{
		ID:              idgen.WithPrefix("alert_"),
		StudentID:       profile.ID,
		StudentName:     profile.Name,
		RiskScore:       profile.RiskScore,
		Type:            "high_risk_dropout",
		Priority:        "high",
		Reasons:         reasons,
		Recommendations: profile.Recommendations,
		CreatedAt:       time.Now(),
	}
}

func summarizeRun(profiles []*StudentRiskProfile, ranAt time.Time) *RunSummary {
	run := &RunSummary{
		ID:               idgen.WithPrefix("run_"),
		StudentsAnalyzed: len(profiles),
		RanAt:            ranAt,
	}

	var sum float64
	for _, p := range profiles {
		sum += p.RiskScore
		switch p.RiskLevel {
		case RiskHigh:
			run.HighRisk++
		case RiskMedium:
			run.MediumRisk++
		default:
			run.LowRisk++
		}
	}
	if len(profiles) > 0 {
		run.AverageScore = round1(sum / float64(len(profiles)))
	}
	run.AlertCount = run.HighRisk

	return run
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
