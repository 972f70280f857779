// Package notify delivers risk alerts to parents and teachers over email and
// SMS and keeps a history of every attempt.
//
// Delivery is simulated: senders log the message and succeed at a configured
// rate. A real SMTP or SMS gateway integration would implement the same
// Sender interface.
package notify

import (
	"context"
	"errors"
	"time"
)

// ErrDeliveryFailed is returned by senders when a simulated (or real)
// delivery does not reach the recipient.
var ErrDeliveryFailed = errors.New("delivery failed")

// Sender delivers one message to one recipient.
type Sender interface {
	Send(ctx context.Context, recipient, message string) error
}

// Channel identifies a delivery mechanism.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// AlertType selects the message template for an alert.
type AlertType string

const (
	AlertAttendance  AlertType = "attendance"
	AlertPerformance AlertType = "performance"
	AlertFees        AlertType = "fees"
	AlertGeneral     AlertType = "general"
)

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	switch t {
	case AlertAttendance, AlertPerformance, AlertFees, AlertGeneral:
		return true
	}
	return false
}

// Delivery records one alert send attempt across all its recipients.
type Delivery struct {
	ID               string    `json:"id"`
	StudentID        string    `json:"studentId"`
	StudentName      string    `json:"studentName"`
	AlertType        AlertType `json:"alertType"`
	Channel          Channel   `json:"channel"`
	Recipients       []string  `json:"recipients"`
	Message          string    `json:"message"`
	Priority         string    `json:"priority"`
	SentCount        int       `json:"sentCount"`
	FailedRecipients []string  `json:"failedRecipients"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Filter narrows a history query. A zero Limit means no limit.
type Filter struct {
	StudentID string
	AlertType AlertType
	Limit     int
}

// Store persists delivery history.
type Store interface {
	Record(ctx context.Context, d *Delivery) error
	List(ctx context.Context, f Filter) ([]*Delivery, error)
}
