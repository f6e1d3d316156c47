package amqp

import (
	"encoding/json"
	"time"

	"fintrack/internal/report"
)

// ReportDeliveryMessage announces the outcome of one monthly report delivery.
type ReportDeliveryMessage struct {
	UserID    int64     `json:"user_id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReportDeliveryMessage(ev report.DeliveryEvent) *ReportDeliveryMessage {
	return &ReportDeliveryMessage{
		UserID:    ev.UserID,
		Year:      ev.Period.Year,
		Month:     ev.Period.Month,
		Status:    string(ev.Status),
		Error:     ev.Error,
		Timestamp: time.Now(),
	}
}

func (m *ReportDeliveryMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReportDeliveryMessageFromJSON(data []byte) (*ReportDeliveryMessage, error) {
	var msg ReportDeliveryMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
