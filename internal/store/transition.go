package store

import (
	"context"
	"errors"
	"time"

	"lifecycle-service/internal/model"

	"gorm.io/gorm"
)

// TransitionStore reads the append-only lifecycle audit trail. Audit rows
// are written by CustomerStore.ApplyTransition in the same transaction as
// the status change; there are deliberately no write, update, or delete
// methods here, and retention purges go through the retention record store.
type TransitionStore struct {
	db *gorm.DB
}

// NewTransitionStore creates a transition store.
func NewTransitionStore(db *gorm.DB) *TransitionStore {
	return &TransitionStore{db: db}
}

// ListByCustomer returns the customer's transitions in chronological order.
func (s *TransitionStore) ListByCustomer(ctx context.Context, tenantID, customerID uint) ([]model.LifecycleTransition, error) {
	var transitions []model.LifecycleTransition
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		Order("created_at ASC, id ASC").
		Find(&transitions).Error
	if err != nil {
		return nil, err
	}
	return transitions, nil
}

// LastTransitionAt returns the time of the customer's most recent transition
// into the given status, or nil when it never happened.
func (s *TransitionStore) LastTransitionAt(ctx context.Context, tenantID, customerID uint, to model.LifecycleStatus) (*time.Time, error) {
	var t model.LifecycleTransition
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ? AND to_status = ?", tenantID, customerID, to).
		Order("created_at DESC, id DESC").
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t.CreatedAt, nil
}
