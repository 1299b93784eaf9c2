package model

import (
	"time"

	"gorm.io/gorm"
)

// LifecycleStatus is the business lifecycle stage of a customer.
type LifecycleStatus string

const (
	StatusProspect    LifecycleStatus = "PROSPECT"
	StatusOnboarding  LifecycleStatus = "ONBOARDING"
	StatusActive      LifecycleStatus = "ACTIVE"
	StatusDormant     LifecycleStatus = "DORMANT"
	StatusOffboarding LifecycleStatus = "OFFBOARDING"
	StatusOffboarded  LifecycleStatus = "OFFBOARDED"
)

// AllLifecycleStatuses lists the six stages in their natural order.
var AllLifecycleStatuses = []LifecycleStatus{
	StatusProspect,
	StatusOnboarding,
	StatusActive,
	StatusDormant,
	StatusOffboarding,
	StatusOffboarded,
}

// IsValidLifecycleStatus reports whether s is one of the defined stages.
func IsValidLifecycleStatus(s LifecycleStatus) bool {
	for _, v := range AllLifecycleStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Customer represents the customer model stored in the database
type Customer struct {
	ID                       uint            `json:"id" gorm:"primaryKey"`
	TenantID                 uint            `json:"tenant_id" gorm:"index;not null"`
	Name                     string          `json:"name" gorm:"type:varchar(200);not null"`
	LifecycleStatus          LifecycleStatus `json:"lifecycle_status" gorm:"type:varchar(20);not null;default:'PROSPECT';index"`
	LifecycleStatusChangedAt time.Time       `json:"lifecycle_status_changed_at"`
	LastActivityAt           *time.Time      `json:"last_activity_at"`
	Archived                 bool            `json:"archived" gorm:"default:false"`
	AnonymizedAt             *time.Time      `json:"anonymized_at,omitempty"`
	RetentionFlaggedAt       *time.Time      `json:"retention_flagged_at,omitempty"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
	DeletedAt                gorm.DeletedAt  `json:"-" gorm:"index"`
}

// Document represents a stored document reference owned by a customer.
// Content and storage live in the document service; this engine only keeps
// the metadata needed for retention evaluation and checklist evidence links.
type Document struct {
	ID                 uint           `json:"id" gorm:"primaryKey"`
	TenantID           uint           `json:"tenant_id" gorm:"index;not null"`
	CustomerID         *uint          `json:"customer_id" gorm:"index"`
	Name               string         `json:"name" gorm:"type:varchar(200);not null"`
	Archived           bool           `json:"archived" gorm:"default:false"`
	AnonymizedAt       *time.Time     `json:"anonymized_at,omitempty"`
	RetentionFlaggedAt *time.Time     `json:"retention_flagged_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"-" gorm:"index"`
}
