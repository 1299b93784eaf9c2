package model

import (
	"time"

	"gorm.io/gorm"
)

// ChecklistKind distinguishes which lifecycle stage a template serves.
type ChecklistKind string

const (
	ChecklistKindOnboarding  ChecklistKind = "ONBOARDING"
	ChecklistKindOffboarding ChecklistKind = "OFFBOARDING"
)

// ChecklistInstanceStatus is the derived status of a checklist instance.
type ChecklistInstanceStatus string

const (
	ChecklistInProgress ChecklistInstanceStatus = "IN_PROGRESS"
	ChecklistCompleted  ChecklistInstanceStatus = "COMPLETED"
	ChecklistCancelled  ChecklistInstanceStatus = "CANCELLED"
)

// ChecklistItemStatus is the status of a single checklist instance item.
type ChecklistItemStatus string

const (
	ItemPending   ChecklistItemStatus = "PENDING"
	ItemCompleted ChecklistItemStatus = "COMPLETED"
	ItemSkipped   ChecklistItemStatus = "SKIPPED"
	ItemBlocked   ChecklistItemStatus = "BLOCKED"
	ItemCancelled ChecklistItemStatus = "CANCELLED"
)

// Resolved reports whether the item no longer needs work for the owning
// instance to count as complete.
func (s ChecklistItemStatus) Resolved() bool {
	return s == ItemCompleted || s == ItemSkipped
}

// ChecklistTemplate is an organization-scoped checklist definition.
type ChecklistTemplate struct {
	ID          uint                    `json:"id" gorm:"primaryKey"`
	TenantID    uint                    `json:"tenant_id" gorm:"index;not null"`
	Name        string                  `json:"name" gorm:"type:varchar(200);not null"`
	Kind        ChecklistKind           `json:"kind" gorm:"type:varchar(20);not null;index"`
	IsDefault   bool                    `json:"is_default" gorm:"default:false"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	DeletedAt   gorm.DeletedAt          `json:"-" gorm:"index"`
	Items       []ChecklistTemplateItem `json:"items,omitempty" gorm:"foreignKey:TemplateID"`
}

// ChecklistTemplateItem is one step definition inside a template.
type ChecklistTemplateItem struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	TemplateID  uint   `json:"template_id" gorm:"index;not null"`
	Name        string `json:"name" gorm:"type:varchar(200);not null"`
	Description string `json:"description" gorm:"type:text"`
	Required    bool   `json:"required" gorm:"default:true"`
	SortOrder   int    `json:"sort_order" gorm:"not null"`
}

// ChecklistInstance is one customer's stateful copy of a template.
type ChecklistInstance struct {
	ID         uint                    `json:"id" gorm:"primaryKey"`
	TenantID   uint                    `json:"tenant_id" gorm:"index;not null"`
	TemplateID uint                    `json:"template_id" gorm:"index;not null"`
	CustomerID uint                    `json:"customer_id" gorm:"index;not null"`
	Status     ChecklistInstanceStatus `json:"status" gorm:"type:varchar(20);not null;default:'IN_PROGRESS'"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
	Items      []ChecklistInstanceItem `json:"items,omitempty" gorm:"foreignKey:InstanceID"`
}

// ChecklistInstanceItem is one row of a checklist instance.
type ChecklistInstanceItem struct {
	ID                 uint                `json:"id" gorm:"primaryKey"`
	InstanceID         uint                `json:"instance_id" gorm:"index;not null"`
	TenantID           uint                `json:"tenant_id" gorm:"index;not null"`
	Name               string              `json:"name" gorm:"type:varchar(200);not null"`
	Description        string              `json:"description" gorm:"type:text"`
	Required           bool                `json:"required" gorm:"default:true"`
	SortOrder          int                 `json:"sort_order" gorm:"not null"`
	Status             ChecklistItemStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING'"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
	CompletedBy        *uint               `json:"completed_by,omitempty"`
	EvidenceDocumentID *uint               `json:"evidence_document_id,omitempty"`
	SkipReason         string              `json:"skip_reason,omitempty" gorm:"type:text"`
	Notes              string              `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}
