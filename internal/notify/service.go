package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/dropwatch/dropwatch/internal/idgen"
	"github.com/dropwatch/dropwatch/internal/metrics"
)

// Service sends alerts through the configured channels and records every
// attempt in the history store.
type Service struct {
	email Sender
	sms   Sender
	store Store
}

// NewService creates a notification service.
func NewService(email, sms Sender, store Store) *Service {
	return &Service{email: email, sms: sms, store: store}
}

// SendRequest describes one alert to deliver to a set of recipients.
type SendRequest struct {
	StudentID   string
	StudentName string
	AlertType   AlertType
	Recipients  []string
	Message     string // empty selects the template for AlertType
	Priority    string
}

// SendEmail delivers an email alert to every recipient. Individual recipient
// failures are collected, not fatal.
func (s *Service) SendEmail(ctx context.Context, req SendRequest) (*Delivery, error) {
	return s.send(ctx, ChannelEmail, s.email, "alert_", req)
}

// SendSMS delivers an SMS alert to every phone number.
func (s *Service) SendSMS(ctx context.Context, req SendRequest) (*Delivery, error) {
	return s.send(ctx, ChannelSMS, s.sms, "sms_", req)
}

func (s *Service) send(ctx context.Context, channel Channel, sender Sender, idPrefix string, req SendRequest) (*Delivery, error) {
	message := req.Message
	if message == "" {
		message = TemplateMessage(req.StudentName, req.AlertType)
	}
	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}

	sent := 0
	var failed []string
	for _, recipient := range req.Recipients {
		if err := sender.Send(ctx, recipient, message); err != nil {
			failed = append(failed, recipient)
			metrics.NotificationsTotal.WithLabelValues(string(channel), "failed").Inc()
			continue
		}
		sent++
		metrics.NotificationsTotal.WithLabelValues(string(channel), "sent").Inc()
	}

	status := "failed"
	if sent > 0 {
		status = "sent"
	}

	d := &Delivery{
		ID:               idgen.WithPrefix(idPrefix),
		StudentID:        req.StudentID,
		StudentName:      req.StudentName,
		AlertType:        req.AlertType,
		Channel:          channel,
		Recipients:       req.Recipients,
		Message:          message,
		Priority:         priority,
		SentCount:        sent,
		FailedRecipients: failed,
		Status:           status,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.store.Record(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to record delivery: %w", err)
	}
	return d, nil
}

// BulkRequest fans one alert type out to many students.
type BulkRequest struct {
	StudentIDs           []string
	AlertType            AlertType
	RecipientsPerStudent map[string][]string
	StudentNames         map[string]string // optional display names
	Message              string            // optional custom message
}

// BulkStudentResult is the outcome for one student in a bulk send.
type BulkStudentResult struct {
	StudentID string `json:"studentId"`
	Status    string `json:"status"`
	SentCount int    `json:"sentCount"`
	AlertID   string `json:"alertId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BulkResult summarizes a bulk send.
type BulkResult struct {
	TotalSent   int                 `json:"totalSent"`
	TotalFailed int                 `json:"totalFailed"`
	Results     []BulkStudentResult `json:"results"`
}

// SendBulk emails each student's recipients in turn. Students without a
// recipient list are skipped.
func (s *Service) SendBulk(ctx context.Context, req BulkRequest) *BulkResult {
	result := &BulkResult{Results: make([]BulkStudentResult, 0, len(req.StudentIDs))}

	for _, studentID := range req.StudentIDs {
		recipients, ok := req.RecipientsPerStudent[studentID]
		if !ok || len(recipients) == 0 {
			continue
		}

		name := req.StudentNames[studentID]
		if name == "" {
			name = fmt.Sprintf("Student %s", studentID)
		}

		d, err := s.SendEmail(ctx, SendRequest{
			StudentID:   studentID,
			StudentName: name,
			AlertType:   req.AlertType,
			Recipients:  recipients,
			Message:     req.Message,
		})
		if err != nil {
			result.Results = append(result.Results, BulkStudentResult{
				StudentID: studentID,
				Status:    "error",
				Error:     err.Error(),
			})
			result.TotalFailed += len(recipients)
			continue
		}

		result.Results = append(result.Results, BulkStudentResult{
			StudentID: studentID,
			Status:    "success",
			SentCount: d.SentCount,
			AlertID:   d.ID,
		})
		result.TotalSent += d.SentCount
		result.TotalFailed += len(d.FailedRecipients)
	}

	return result
}

// History returns deliveries matching the filter, most recent first.
func (s *Service) History(ctx context.Context, f Filter) ([]*Delivery, error) {
	return s.store.List(ctx, f)
}
