package amqp

import (
	"encoding/json"
	"time"
)

// CollectionExportMessage asks the worker to mirror one recorded
// collection to the ledger register. Only the ID travels; the worker
// fetches the full row from storage.
type CollectionExportMessage struct {
	CollectionID int64     `json:"collection_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewCollectionExportMessage creates a new export message
func NewCollectionExportMessage(collectionID int64) *CollectionExportMessage {
	return &CollectionExportMessage{
		CollectionID: collectionID,
		Timestamp:    time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *CollectionExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CollectionExportMessageFromJSON creates a message from JSON bytes
func CollectionExportMessageFromJSON(data []byte) (*CollectionExportMessage, error) {
	var msg CollectionExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// StaffLifecycleMessage announces that a staff member was activated or
// deactivated. The worker consumes it to run the idempotent
// member-settings repair pass.
type StaffLifecycleMessage struct {
	StaffID    int64     `json:"staff_id"`
	EmployeeID string    `json:"employee_id"`
	Activated  bool      `json:"activated"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewStaffLifecycleMessage creates a new lifecycle message
func NewStaffLifecycleMessage(staffID int64, employeeID string, activated bool) *StaffLifecycleMessage {
	return &StaffLifecycleMessage{
		StaffID:    staffID,
		EmployeeID: employeeID,
		Activated:  activated,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *StaffLifecycleMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// StaffLifecycleMessageFromJSON creates a message from JSON bytes
func StaffLifecycleMessageFromJSON(data []byte) (*StaffLifecycleMessage, error) {
	var msg StaffLifecycleMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
