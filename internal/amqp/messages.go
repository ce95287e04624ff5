package amqp

import (
	"encoding/json"
	"time"
)

// SubscriptionExportMessage is a lightweight message for exporting a
// subscription to Google Sheets. It carries only the ID and version, the
// worker fetches the full subscription from the database.
type SubscriptionExportMessage struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSubscriptionExportMessage creates a new export message with just ID and version
func NewSubscriptionExportMessage(id string, version int64) *SubscriptionExportMessage {
	return &SubscriptionExportMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SubscriptionExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func SubscriptionExportMessageFromJSON(data []byte) (*SubscriptionExportMessage, error) {
	var msg SubscriptionExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RenewalReminderMessage announces a subscription renewal coming up inside the
// reminder window. Downstream notification services consume these.
type RenewalReminderMessage struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Name            string    `json:"name"`
	NextPaymentDate time.Time `json:"nextPaymentDate"`
	Timestamp       time.Time `json:"timestamp"`
}

func NewRenewalReminderMessage(id, userID, name string, nextPaymentDate time.Time) *RenewalReminderMessage {
	return &RenewalReminderMessage{
		ID:              id,
		UserID:          userID,
		Name:            name,
		NextPaymentDate: nextPaymentDate,
		Timestamp:       time.Now(),
	}
}

func (m *RenewalReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
