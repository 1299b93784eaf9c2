package model

import (
	"time"
)

// LifecycleTransition is one row of the append-only lifecycle audit trail.
// Rows are created exactly once per successful transition and never updated
// or deleted outside of retention enforcement.
type LifecycleTransition struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	TenantID   uint            `json:"tenant_id" gorm:"index;not null"`
	CustomerID uint            `json:"customer_id" gorm:"index;not null"`
	FromStatus LifecycleStatus `json:"from_status" gorm:"type:varchar(20);not null"`
	ToStatus   LifecycleStatus `json:"to_status" gorm:"type:varchar(20);not null"`
	ActorID    uint            `json:"actor_id" gorm:"not null"`
	Notes      string          `json:"notes" gorm:"type:text"`
	CreatedAt  time.Time       `json:"created_at" gorm:"index"`
}
