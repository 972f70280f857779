package risk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/dropwatch/dropwatch/internal/idgen"
	"github.com/dropwatch/dropwatch/internal/records"
)

type captureEmitter struct {
	mu     sync.Mutex
	alerts []*Alert
}

func (e *captureEmitter) EmitRiskAlert(alert *Alert) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.alerts = append(e.alerts, alert)
}

func setupRiskRouter() (*gin.Engine, records.Store, *captureEmitter) {
	gin.SetMode(gin.TestMode)

	recordStore := records.NewMemoryStore()
	runStore := NewMemoryStore()
	emitter := &captureEmitter{}
	handler := NewHandler(recordStore, NewAnalyzer(runStore), runStore).WithEvents(emitter)

	r := gin.New()
	v1 := r.Group("/v1")
	handler.RegisterRoutes(v1)

	return r, recordStore, emitter
}

func seedStudents(t *testing.T, store records.Store) {
	t.Helper()
	ctx := context.Background()

	// Vikram is high risk, Asha is low risk.
	var attendance []records.AttendanceRecord
	attendance = append(attendance, attendanceDays("Asha Rao", 19, 20)...)
	attendance = append(attendance, attendanceDays("Vikram Iyer", 4, 20)...)
	if err := store.AppendAttendance(ctx, attendance); err != nil {
		t.Fatalf("seed attendance: %v", err)
	}

	marks := []records.MarksRecord{
		{StudentName: "Asha Rao", Subject: "Math", Marks: 92},
		{StudentName: "Vikram Iyer", Subject: "Math", Marks: 25},
	}
	if err := store.AppendMarks(ctx, marks); err != nil {
		t.Fatalf("seed marks: %v", err)
	}

	fees := append(feeMonths("Asha Rao", 3, 0), feeMonths("Vikram Iyer", 0, 3)...)
	if err := store.AppendFees(ctx, fees); err != nil {
		t.Fatalf("seed fees: %v", err)
	}
}

func TestHandler_Dashboard(t *testing.T) {
	router, store, _ := setupRiskRouter()
	seedStudents(t, store)

	req := httptest.NewRequest("GET", "/v1/dashboard", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Students   []*StudentRiskProfile `json:"students"`
		Statistics struct {
			TotalStudents    int `json:"totalStudents"`
			FilteredCount    int `json:"filteredCount"`
			RiskDistribution struct {
				High   int `json:"high"`
				Medium int `json:"medium"`
				Low    int `json:"low"`
			} `json:"riskDistribution"`
		} `json:"statistics"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Statistics.TotalStudents != 2 {
		t.Errorf("total students = %d, want 2", resp.Statistics.TotalStudents)
	}
	if resp.Statistics.RiskDistribution.High != 1 || resp.Statistics.RiskDistribution.Low != 1 {
		t.Errorf("distribution = %+v", resp.Statistics.RiskDistribution)
	}
	// Highest risk first.
	if len(resp.Students) != 2 || resp.Students[0].Name != "Vikram Iyer" {
		t.Errorf("students = %+v", resp.Students)
	}
}

func TestHandler_Dashboard_RiskFilter(t *testing.T) {
	router, store, _ := setupRiskRouter()
	seedStudents(t, store)

	req := httptest.NewRequest("GET", "/v1/dashboard?risk=high", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp struct {
		Students []*StudentRiskProfile `json:"students"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Students) != 1 || resp.Students[0].Name != "Vikram Iyer" {
		t.Errorf("filtered students = %+v", resp.Students)
	}
}

func TestHandler_Dashboard_InvalidFilters(t *testing.T) {
	router, _, _ := setupRiskRouter()

	for _, path := range []string{"/v1/dashboard?risk=critical", "/v1/dashboard?limit=0", "/v1/dashboard?limit=abc"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, w.Code)
		}
	}
}

func TestHandler_RunDetection(t *testing.T) {
	router, store, emitter := setupRiskRouter()
	seedStudents(t, store)

	req := httptest.NewRequest("POST", "/v1/risk-detection", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		TotalStudentsAnalyzed int `json:"totalStudentsAnalyzed"`
		RiskSummary           struct {
			HighRiskCount int `json:"highRiskCount"`
		} `json:"riskSummary"`
		GeneratedAlerts []*Alert `json:"generatedAlerts"`
		Recommendations []string `json:"recommendations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.TotalStudentsAnalyzed != 2 {
		t.Errorf("analyzed = %d, want 2", resp.TotalStudentsAnalyzed)
	}
	if resp.RiskSummary.HighRiskCount != 1 {
		t.Errorf("high risk count = %d, want 1", resp.RiskSummary.HighRiskCount)
	}
	if len(resp.GeneratedAlerts) != 1 || resp.GeneratedAlerts[0].StudentName != "Vikram Iyer" {
		t.Errorf("alerts = %+v", resp.GeneratedAlerts)
	}
	if len(resp.Recommendations) == 0 {
		t.Error("expected run recommendations")
	}

	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	if len(emitter.alerts) != 1 {
		t.Errorf("broadcast %d alerts, want 1", len(emitter.alerts))
	}
}

func TestHandler_RunDetection_NoData(t *testing.T) {
	router, _, _ := setupRiskRouter()

	req := httptest.NewRequest("POST", "/v1/risk-detection", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandler_StudentRisk(t *testing.T) {
	router, store, _ := setupRiskRouter()
	seedStudents(t, store)

	req := httptest.NewRequest("GET", "/v1/students/"+idgen.StudentID("Vikram Iyer")+"/risk", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		StudentData  *StudentBundle    `json:"studentData"`
		RiskAnalysis *DetailedAnalysis `json:"riskAnalysis"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.StudentData.Name != "Vikram Iyer" {
		t.Errorf("name = %q", resp.StudentData.Name)
	}
	if len(resp.RiskAnalysis.Interventions) == 0 {
		t.Error("expected intervention suggestions for a high-risk student")
	}
}

func TestHandler_StudentRisk_NotFound(t *testing.T) {
	router, store, _ := setupRiskRouter()
	seedStudents(t, store)

	req := httptest.NewRequest("GET", "/v1/students/stu_00000000/risk", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	var resp struct {
		Error string `json:"error"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error != "student_not_found" {
		t.Errorf("error = %q", resp.Error)
	}
}
