package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/dropwatch/dropwatch/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:             "0",
		Env:              "development",
		LogLevel:         "error",
		AllowedOrigins:   []string{"*"},
		RateLimitRPM:     0, // library default
		MaxUploadBytes:   config.DefaultMaxUploadBytes,
		EmailSuccessRate: 1.0,
		SMSSuccessRate:   1.0,
	}
}

// newTestServer creates a server with in-memory storage
func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/live", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/ready", nil)
	s.router.ServeHTTP(w, req)

	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/health",
		"GET:/health/live",
		"GET:/health/ready",
		"GET:/metrics",
		"GET:/ws",
		"POST:/v1/uploads",
		"GET:/v1/uploads/status",
		"GET:/v1/uploads/preview/:type",
		"DELETE:/v1/uploads",
		"GET:/v1/dashboard",
		"POST:/v1/risk-detection",
		"GET:/v1/students/:id/risk",
		"POST:/v1/alerts/email",
		"POST:/v1/alerts/sms",
		"POST:/v1/alerts/bulk",
		"GET:/v1/alerts",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Core route %s not registered", e)
		}
	}
}

// ---------------------------------------------------------------------------
// End-to-end: upload then analyze
// ---------------------------------------------------------------------------

func TestUploadThenDetection(t *testing.T) {
	s := newTestServer(t)

	// Upload a small attendance file
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", "attendance.csv")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	fw.Write([]byte("Student Name,Class,Date,Status\nRavi Kumar,10A,2026-01-05,Absent\nRavi Kumar,10A,2026-01-06,Absent\n"))
	mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Upload failed: %d: %s", w.Code, w.Body.String())
	}

	// Run risk detection over the uploaded data
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/v1/risk-detection", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Detection failed: %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		TotalStudentsAnalyzed int `json:"totalStudentsAnalyzed"`
		RiskSummary           struct {
			HighRiskCount int `json:"highRiskCount"`
		} `json:"riskSummary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if resp.TotalStudentsAnalyzed != 1 {
		t.Errorf("Expected 1 student analyzed, got %d", resp.TotalStudentsAnalyzed)
	}
	// 0% attendance, no marks, no fees puts the student well over the high threshold
	if resp.RiskSummary.HighRiskCount != 1 {
		t.Errorf("Expected 1 high-risk student, got %d", resp.RiskSummary.HighRiskCount)
	}
}

func TestDetectionWithoutData(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/risk-detection", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 with no data, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Param validation
// ---------------------------------------------------------------------------

func TestStudentRiskRejectsMalformedID(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/students/not-an-id/risk", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed student id, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Request ID and 404
// ---------------------------------------------------------------------------

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header in response")
	}

	// Provided IDs are echoed back
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "req-abc123")
	s.router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-abc123" {
		t.Errorf("Expected echoed request ID, got %q", got)
	}
}

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/nonexistent", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
