package risk

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dropwatch/dropwatch/internal/logging"
	"github.com/dropwatch/dropwatch/internal/metrics"
	"github.com/dropwatch/dropwatch/internal/records"
)

const (
	defaultDashboardLimit = 100
	trendRunLimit         = 12
)

// AlertEmitter broadcasts alerts to real-time subscribers.
type AlertEmitter interface {
	EmitRiskAlert(alert *Alert)
}

// Handler provides HTTP endpoints for risk analysis.
type Handler struct {
	records  records.Store
	analyzer *Analyzer
	runs     Store
	events   AlertEmitter // optional
}

// NewHandler creates a risk handler reading from the given record store.
func NewHandler(recordStore records.Store, analyzer *Analyzer, runs Store) *Handler {
	return &Handler{records: recordStore, analyzer: analyzer, runs: runs}
}

// WithEvents adds an event emitter to the handler.
func (h *Handler) WithEvents(events AlertEmitter) *Handler {
	h.events = events
	return h
}

// RegisterRoutes sets up the risk analysis routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/dashboard", h.Dashboard)
	r.POST("/risk-detection", h.RunDetection)
	r.GET("/students/:id/risk", h.StudentRisk)
}

// Dashboard handles GET /v1/dashboard
//
// Returns risk profiles with optional class substring and risk level filters,
// plus aggregate statistics over the full (unfiltered) student population and
// historical run trends.
func (h *Handler) Dashboard(c *gin.Context) {
	limit := defaultDashboardLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit", "message": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	riskFilter := strings.ToLower(c.Query("risk"))
	if riskFilter != "" && riskFilter != "all" && !validRiskLevel(riskFilter) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_risk", "message": "risk must be high, medium, or low"})
		return
	}

	ds, err := h.records.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load records"})
		return
	}

	profiles := h.analyze(c, ds)

	filtered := profiles
	if classFilter := strings.ToLower(c.Query("class")); classFilter != "" && classFilter != "all" {
		filtered = filterByClass(filtered, classFilter)
	}
	if riskFilter != "" && riskFilter != "all" {
		filtered = filterByRisk(filtered, RiskLevel(riskFilter))
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	high, medium, low := riskDistribution(profiles)

	var trends []*RunSummary
	if h.runs != nil {
		trends, err = h.runs.RecentRuns(c.Request.Context(), trendRunLimit)
		if err != nil {
			logging.L(c.Request.Context()).Warn("failed to load run trends", "error", err)
		}
	}
	if trends == nil {
		trends = []*RunSummary{}
	}

	c.JSON(http.StatusOK, gin.H{
		"timestamp": time.Now().UTC(),
		"students":  filtered,
		"statistics": gin.H{
			"totalStudents": len(profiles),
			"filteredCount": len(filtered),
			"riskDistribution": gin.H{
				"high":   high,
				"medium": medium,
				"low":    low,
			},
			"attendanceAvg":  averageAttendance(profiles),
			"performanceAvg": averagePerformance(profiles),
		},
		"trends": trends,
		"filtersApplied": gin.H{
			"class": c.Query("class"),
			"risk":  c.Query("risk"),
			"limit": limit,
		},
	})
}

// RunDetection handles POST /v1/risk-detection
//
// Runs a full analysis pass, generates alerts for every high-risk student,
// and broadcasts them to real-time subscribers.
func (h *Handler) RunDetection(c *gin.Context) {
	ds, err := h.records.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load records"})
		return
	}
	if ds.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_data", "message": "no student data available, upload data files first"})
		return
	}

	profiles := h.analyze(c, ds)

	var highRisk, mediumRisk []*StudentRiskProfile
	lowCount := 0
	for _, p := range profiles {
		switch p.RiskLevel {
		case RiskHigh:
			highRisk = append(highRisk, p)
		case RiskMedium:
			mediumRisk = append(mediumRisk, p)
		default:
			lowCount++
		}
	}

	alerts := make([]*Alert, 0, len(highRisk))
	for _, p := range highRisk {
		if alert := h.analyzer.GenerateAlert(p); alert != nil {
			alerts = append(alerts, alert)
			if h.events != nil {
				h.events.EmitRiskAlert(alert)
			}
		}
	}
	metrics.AlertsGeneratedTotal.Add(float64(len(alerts)))

	logging.L(c.Request.Context()).Info("risk detection completed",
		"students", len(profiles), "high", len(highRisk), "medium", len(mediumRisk), "alerts", len(alerts))

	c.JSON(http.StatusOK, gin.H{
		"analysisTimestamp":     time.Now().UTC(),
		"totalStudentsAnalyzed": len(profiles),
		"riskSummary": gin.H{
			"highRiskCount":   len(highRisk),
			"mediumRiskCount": len(mediumRisk),
			"lowRiskCount":    lowCount,
		},
		"highRiskStudents":   emptyIfNil(highRisk),
		"mediumRiskStudents": emptyIfNil(mediumRisk),
		"generatedAlerts":    alerts,
		"recommendations":    runRecommendations(len(highRisk), len(mediumRisk)),
	})
}

// StudentRisk handles GET /v1/students/:id/risk
func (h *Handler) StudentRisk(c *gin.Context) {
	ds, err := h.records.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load records"})
		return
	}

	bundle := h.analyzer.StudentBundle(c.Param("id"), ds)
	if bundle == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student_not_found", "message": "no student with that id in the uploaded data"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"studentData":  bundle,
		"riskAnalysis": h.analyzer.AnalyzeDetailed(bundle),
		"timestamp":    time.Now().UTC(),
	})
}

// analyze runs a full pass and records the analysis metrics.
func (h *Handler) analyze(c *gin.Context, ds *records.Dataset) []*StudentRiskProfile {
	start := time.Now()
	profiles := h.analyzer.AnalyzeAll(c.Request.Context(), ds)
	metrics.AnalysesTotal.Inc()
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())

	high, _, _ := riskDistribution(profiles)
	metrics.HighRiskStudents.Set(float64(high))

	return profiles
}

func validRiskLevel(s string) bool {
	switch RiskLevel(s) {
	case RiskHigh, RiskMedium, RiskLow:
		return true
	}
	return false
}

func filterByClass(profiles []*StudentRiskProfile, classFilter string) []*StudentRiskProfile {
	out := make([]*StudentRiskProfile, 0, len(profiles))
	for _, p := range profiles {
		if strings.Contains(strings.ToLower(p.Class), classFilter) {
			out = append(out, p)
		}
	}
	return out
}

func filterByRisk(profiles []*StudentRiskProfile, level RiskLevel) []*StudentRiskProfile {
	out := make([]*StudentRiskProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.RiskLevel == level {
			out = append(out, p)
		}
	}
	return out
}

func riskDistribution(profiles []*StudentRiskProfile) (high, medium, low int) {
	for _, p := range profiles {
		switch p.RiskLevel {
		case RiskHigh:
			high++
		case RiskMedium:
			medium++
		default:
			low++
		}
	}
	return high, medium, low
}

func averageAttendance(profiles []*StudentRiskProfile) float64 {
	if len(profiles) == 0 {
		return 0
	}
	var sum float64
	for _, p := range profiles {
		sum += p.Attendance
	}
	return round2(sum / float64(len(profiles)))
}

func averagePerformance(profiles []*StudentRiskProfile) float64 {
	if len(profiles) == 0 {
		return 0
	}
	var sum float64
	for _, p := range profiles {
		sum += p.Score
	}
	return round2(sum / float64(len(profiles)))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func runRecommendations(highCount, mediumCount int) []string {
	var recs []string
	if highCount > 0 {
		recs = append(recs,
			fmt.Sprintf("Immediate intervention needed for %d high-risk students", highCount),
			"Schedule parent-teacher meetings for high-risk students",
			"Implement personalized study plans and mentorship programs")
	}
	if mediumCount > 0 {
		recs = append(recs,
			fmt.Sprintf("Monitor and support %d medium-risk students", mediumCount),
			"Provide additional academic support and counseling")
	}
	if highCount == 0 && mediumCount == 0 {
		recs = append(recs, "All students are performing well, continue current strategies")
	}
	return recs
}

func emptyIfNil(profiles []*StudentRiskProfile) []*StudentRiskProfile {
	if profiles == nil {
		return []*StudentRiskProfile{}
	}
	return profiles
}
