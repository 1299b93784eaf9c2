package model

import (
	"time"

	"gorm.io/gorm"
)

// RecordType identifies which family of records a retention policy covers.
type RecordType string

const (
	RecordTypeCustomer   RecordType = "CUSTOMER"
	RecordTypeAuditEvent RecordType = "AUDIT_EVENT"
	RecordTypeDocument   RecordType = "DOCUMENT"
)

// RetentionTrigger selects the reference timestamp a policy measures from.
type RetentionTrigger string

const (
	TriggerRecordCreated      RetentionTrigger = "RECORD_CREATED"
	TriggerCustomerOffboarded RetentionTrigger = "CUSTOMER_OFFBOARDED"
)

// RetentionAction is what a matching policy requires to happen to a record.
type RetentionAction string

const (
	ActionFlag      RetentionAction = "FLAG"
	ActionAnonymize RetentionAction = "ANONYMIZE"
	ActionArchive   RetentionAction = "ARCHIVE"
	ActionPurge     RetentionAction = "PURGE"
)

// actionSeverity orders actions so the most restrictive wins when several
// policies match the same record. A record must never be under-protected.
var actionSeverity = map[RetentionAction]int{
	ActionFlag:      1,
	ActionArchive:   2,
	ActionAnonymize: 3,
	ActionPurge:     4,
}

// MoreRestrictive reports whether a takes precedence over b.
func (a RetentionAction) MoreRestrictive(b RetentionAction) bool {
	return actionSeverity[a] > actionSeverity[b]
}

// RetentionPolicy is an organization-scoped data retention rule.
type RetentionPolicy struct {
	ID            uint             `json:"id" gorm:"primaryKey"`
	TenantID      uint             `json:"tenant_id" gorm:"index;not null"`
	RecordType    RecordType       `json:"record_type" gorm:"type:varchar(20);not null;index"`
	RetentionDays int              `json:"retention_days" gorm:"not null"`
	TriggerEvent  RetentionTrigger `json:"trigger_event" gorm:"type:varchar(30);not null;default:'RECORD_CREATED'"`
	Action        RetentionAction  `json:"action" gorm:"type:varchar(20);not null"`
	Active        bool             `json:"active" gorm:"default:true"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	DeletedAt     gorm.DeletedAt   `json:"-" gorm:"index"`
}

// RetentionExecutionLog records one retention enforcement run for compliance
// traceability. Append-only.
type RetentionExecutionLog struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	TenantID   uint            `json:"tenant_id" gorm:"index;not null"`
	PolicyID   uint            `json:"policy_id" gorm:"index;not null"`
	RecordType RecordType      `json:"record_type" gorm:"type:varchar(20);not null"`
	Action     RetentionAction `json:"action" gorm:"type:varchar(20);not null"`
	RecordIDs  string          `json:"record_ids" gorm:"type:text;not null"`
	ActorID    uint            `json:"actor_id" gorm:"not null"`
	ActorType  string          `json:"actor_type" gorm:"type:varchar(20);not null;default:'user'"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	CreatedAt  time.Time       `json:"created_at"`
}
