package notify

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dropwatch/dropwatch/internal/logging"
)

const defaultHistoryLimit = 50

// Handler provides HTTP endpoints for sending alerts and reading history.
type Handler struct {
	service *Service
}

// NewHandler creates a notification handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the alert routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/alerts/email", h.SendEmail)
	r.POST("/alerts/sms", h.SendSMS)
	r.POST("/alerts/bulk", h.SendBulk)
	r.GET("/alerts", h.History)
}

// SendEmail handles POST /v1/alerts/email
func (h *Handler) SendEmail(c *gin.Context) {
	var req struct {
		StudentID   string   `json:"studentId" binding:"required"`
		StudentName string   `json:"studentName" binding:"required"`
		AlertType   string   `json:"alertType" binding:"required"`
		Recipients  []string `json:"recipients" binding:"required"`
		Message     string   `json:"message"`
		Priority    string   `json:"priority"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "studentId, studentName, alertType, and recipients required"})
		return
	}
	alertType := AlertType(req.AlertType)
	if !alertType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_alert_type", "message": "alertType must be attendance, performance, fees, or general"})
		return
	}
	if len(req.Recipients) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "no recipients specified"})
		return
	}

	d, err := h.service.SendEmail(c.Request.Context(), SendRequest{
		StudentID:   req.StudentID,
		StudentName: req.StudentName,
		AlertType:   alertType,
		Recipients:  req.Recipients,
		Message:     req.Message,
		Priority:    req.Priority,
	})
	if err != nil {
		logging.L(c.Request.Context()).Error("email alert failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to send alert"})
		return
	}

	c.JSON(http.StatusOK, deliveryResponse(d))
}

// SendSMS handles POST /v1/alerts/sms
func (h *Handler) SendSMS(c *gin.Context) {
	var req struct {
		StudentID    string   `json:"studentId" binding:"required"`
		StudentName  string   `json:"studentName" binding:"required"`
		PhoneNumbers []string `json:"phoneNumbers" binding:"required"`
		Message      string   `json:"message" binding:"required"`
		AlertType    string   `json:"alertType"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "studentId, studentName, phoneNumbers, and message required"})
		return
	}
	alertType := AlertGeneral
	if req.AlertType != "" {
		alertType = AlertType(req.AlertType)
		if !alertType.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_alert_type", "message": "alertType must be attendance, performance, fees, or general"})
			return
		}
	}

	d, err := h.service.SendSMS(c.Request.Context(), SendRequest{
		StudentID:   req.StudentID,
		StudentName: req.StudentName,
		AlertType:   alertType,
		Recipients:  req.PhoneNumbers,
		Message:     req.Message,
	})
	if err != nil {
		logging.L(c.Request.Context()).Error("sms alert failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to send alert"})
		return
	}

	c.JSON(http.StatusOK, deliveryResponse(d))
}

// SendBulk handles POST /v1/alerts/bulk
func (h *Handler) SendBulk(c *gin.Context) {
	var req struct {
		StudentIDs           []string            `json:"studentIds" binding:"required"`
		AlertType            string              `json:"alertType" binding:"required"`
		RecipientsPerStudent map[string][]string `json:"recipientsPerStudent" binding:"required"`
		StudentNames         map[string]string   `json:"studentNames"`
		Message              string              `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "studentIds, alertType, and recipientsPerStudent required"})
		return
	}
	alertType := AlertType(req.AlertType)
	if !alertType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_alert_type", "message": "alertType must be attendance, performance, fees, or general"})
		return
	}

	result := h.service.SendBulk(c.Request.Context(), BulkRequest{
		StudentIDs:           req.StudentIDs,
		AlertType:            alertType,
		RecipientsPerStudent: req.RecipientsPerStudent,
		StudentNames:         req.StudentNames,
		Message:              req.Message,
	})

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     fmt.Sprintf("Bulk alerts processed for %d students", len(req.StudentIDs)),
		"totalSent":   result.TotalSent,
		"totalFailed": result.TotalFailed,
		"results":     result.Results,
		"timestamp":   time.Now().UTC(),
	})
}

// History handles GET /v1/alerts
func (h *Handler) History(c *gin.Context) {
	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit", "message": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	alertType := AlertType(c.Query("type"))
	if alertType != "" && !alertType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_alert_type", "message": "type must be attendance, performance, fees, or general"})
		return
	}

	filtered, err := h.service.History(c.Request.Context(), Filter{
		StudentID: c.Query("studentId"),
		AlertType: alertType,
		Limit:     limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load alert history"})
		return
	}
	if filtered == nil {
		filtered = []*Delivery{}
	}

	all, err := h.service.History(c.Request.Context(), Filter{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load alert history"})
		return
	}

	totalSent, totalFailed := 0, 0
	byType := make(map[AlertType]int)
	for _, d := range all {
		if d.Status == "sent" {
			totalSent++
		} else {
			totalFailed++
		}
		byType[d.AlertType]++
	}

	c.JSON(http.StatusOK, gin.H{
		"totalAlerts":   len(all),
		"filteredCount": len(filtered),
		"alerts":        filtered,
		"summary": gin.H{
			"totalSent":   totalSent,
			"totalFailed": totalFailed,
			"byType":      byType,
		},
	})
}

func deliveryResponse(d *Delivery) gin.H {
	return gin.H{
		"success":          d.SentCount > 0,
		"alertId":          d.ID,
		"message":          fmt.Sprintf("Alert sent to %d out of %d recipients", d.SentCount, len(d.Recipients)),
		"sentCount":        d.SentCount,
		"totalRecipients":  len(d.Recipients),
		"failedRecipients": d.FailedRecipients,
		"timestamp":        d.CreatedAt,
	}
}
