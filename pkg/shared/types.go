package shared

import (
	"time"
)

// API Response types
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Event types
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Subject   string      `json:"subject"`
	Entity    string      `json:"entity"`
	EntityID  int64       `json:"entity_id"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"`
}

// Health check
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// Constants
const (
	// Entity kinds used in event subjects and the audit log
	EntityOrganization = "organization"
	EntityBuilding     = "building"
	EntityActivity     = "activity"
	EntityPhone        = "phone"

	// Event Types
	EventTypeCreated = "created"
	EventTypeUpdated = "updated"
	EventTypeDeleted = "deleted"
)
