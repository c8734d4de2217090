package models

import (
	"time"

	"github.com/google/uuid"
)

// AdmissionLog records one admission decision for analytics and audit.
type AdmissionLog struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Timestamp      time.Time  `gorm:"index" json:"timestamp"`
	OrganizationID *uuid.UUID `gorm:"index" json:"organization_id,omitempty"`
	UserID         string     `json:"user_id"`
	Method         string     `json:"method"`
	Path           string     `gorm:"index" json:"path"`
	Category       string     `gorm:"index" json:"category"`
	Service        string     `json:"service,omitempty"`
	State          string     `gorm:"index" json:"state"`
	StatusCode     int        `gorm:"index" json:"status_code"`
	ResponseTimeMs int        `json:"response_time_ms"`
	IPAddress      string     `json:"ip_address"`
	ViolatedRule   string     `json:"violated_rule,omitempty"`
}

func (AdmissionLog) TableName() string {
	return "admission_logs"
}
