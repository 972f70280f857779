package risk

import (
	"fmt"

	"github.com/dropwatch/dropwatch/internal/idgen"
	"github.com/dropwatch/dropwatch/internal/records"
)

// StudentBundle groups every raw record belonging to one student.
type StudentBundle struct {
	Name       string                     `json:"name"`
	Attendance []records.AttendanceRecord `json:"attendanceRecords"`
	Marks      []records.MarksRecord      `json:"marksRecords"`
	Fees       []records.FeeRecord        `json:"feesRecords"`
}

// TimelineEvent is one negative indicator in a student's recent history.
type TimelineEvent struct {
	Date   string `json:"date"`
	Type   string `json:"type"`
	Event  string `json:"event"`
	Impact string `json:"impact"`
}

// InterventionSuggestion is one concrete action for staff to take.
type InterventionSuggestion struct {
	Category string `json:"category"`
	Action   string `json:"action"`
	Priority string `json:"priority"`
}

// DetailedAnalysis is the per-student drill-down view.
type DetailedAnalysis struct {
	Attendance    AttendanceMetrics        `json:"attendanceAnalysis"`
	Performance   PerformanceMetrics       `json:"performanceAnalysis"`
	Fees          FeesMetrics              `json:"feesAnalysis"`
	Timeline      []TimelineEvent          `json:"riskTimeline"`
	Interventions []InterventionSuggestion `json:"interventionSuggestions"`
}

// StudentBundle resolves a student ID back to that student's records.
// Returns nil when no student in the dataset hashes to the given ID.
func (a *Analyzer) StudentBundle(studentID string, ds *records.Dataset) *StudentBundle {
	for _, name := range uniqueStudents(ds) {
		if idgen.StudentID(name) == studentID {
			return &StudentBundle{
				Name:       name,
				Attendance: filterAttendance(ds.Attendance, name),
				Marks:      filterMarks(ds.Marks, name),
				Fees:       filterFees(ds.Fees, name),
			}
		}
	}
	return nil
}

// AnalyzeDetailed produces the drill-down analysis for one student's records.
func (a *Analyzer) AnalyzeDetailed(bundle *StudentBundle) *DetailedAnalysis {
	return &DetailedAnalysis{
		Attendance:    attendanceMetrics(bundle.Attendance),
		Performance:   performanceMetrics(bundle.Marks),
		Fees:          feesMetrics(bundle.Fees),
		Timeline:      riskTimeline(bundle.Attendance, bundle.Marks),
		Interventions: interventionSuggestions(bundle),
	}
}

// riskTimeline collects recent negative events: absences from the last 10
// attendance records and sub-40 scores from the last 5 test results.
func riskTimeline(attendance []records.AttendanceRecord, marks []records.MarksRecord) []TimelineEvent {
	var timeline []TimelineEvent

	for _, r := range tail(attendance, 10) {
		if !r.IsPresent {
			timeline = append(timeline, TimelineEvent{
				Date:   r.Date,
				Type:   "attendance",
				Event:  "Absent",
				Impact: "negative",
			})
		}
	}

	for _, r := range tail(marks, 5) {
		if r.Marks < performanceHighBelow {
			subject := r.Subject
			if subject == "" {
				subject = "Unknown"
			}
			timeline = append(timeline, TimelineEvent{
				Date:   r.Test,
				Type:   "performance",
				Event:  fmt.Sprintf("Low score: %g%% in %s", r.Marks, subject),
				Impact: "negative",
			})
		}
	}

	return timeline
}

func interventionSuggestions(bundle *StudentBundle) []InterventionSuggestion {
	var suggestions []InterventionSuggestion

	if len(bundle.Attendance) > 0 {
		if attendanceMetrics(bundle.Attendance).Percentage < attendanceHighBelow {
			suggestions = append(suggestions,
				InterventionSuggestion{
					Category: "Attendance",
					Action:   "Immediate parent conference required",
					Priority: "high",
				},
				InterventionSuggestion{
					Category: "Attendance",
					Action:   "Investigate barriers to attendance (transport, health, etc.)",
					Priority: "high",
				})
		}
	}

	if len(bundle.Marks) > 0 {
		if performanceMetrics(bundle.Marks).Average < performanceHighBelow {
			suggestions = append(suggestions,
				InterventionSuggestion{
					Category: "Academic",
					Action:   "Enroll in remedial classes",
					Priority: "high",
				},
				InterventionSuggestion{
					Category: "Academic",
					Action:   "Assign peer tutoring or mentorship",
					Priority: "medium",
				})
		}
	}

	if len(bundle.Fees) > 0 {
		if feesMetrics(bundle.Fees).OverdueMonths >= feesHighFrom {
			suggestions = append(suggestions, InterventionSuggestion{
				Category: "Financial",
				Action:   "Explore scholarship or financial aid options",
				Priority: "high",
			})
		}
	}

	return suggestions
}

// tail returns the last n elements of s.
func tail[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
