package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lifecycle-service/internal/model"

	"gorm.io/gorm"
)

// CustomerStore is the gorm-backed customer persistence used by the
// lifecycle orchestrator and the dormancy detector.
type CustomerStore struct {
	db *gorm.DB
}

// NewCustomerStore creates a customer store.
func NewCustomerStore(db *gorm.DB) *CustomerStore {
	return &CustomerStore{db: db}
}

// Get returns the customer within the tenant.
func (s *CustomerStore) Get(ctx context.Context, tenantID, id uint) (*model.Customer, error) {
	var customer model.Customer
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &customer, nil
}

// ApplyTransition commits a lifecycle transition: the conditional status
// update and the audit append run in one transaction, so a successful
// transition always leaves exactly one audit row and a failed one leaves
// neither. The status write only applies when the stored status still equals
// expected, which serializes concurrent transitions per customer without an
// explicit lock.
func (s *CustomerStore) ApplyTransition(ctx context.Context, tenantID, id uint, expected model.LifecycleStatus, audit *model.LifecycleTransition) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Customer{}).
			Where("id = ? AND tenant_id = ? AND lifecycle_status = ?", id, tenantID, expected).
			Updates(map[string]interface{}{
				"lifecycle_status":            audit.ToStatus,
				"lifecycle_status_changed_at": audit.CreatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}
		if err := tx.Create(audit).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// ActiveCustomers returns the non-archived ACTIVE customers of the tenant.
func (s *CustomerStore) ActiveCustomers(ctx context.Context, tenantID uint) ([]model.Customer, error) {
	var customers []model.Customer
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND lifecycle_status = ? AND archived = ?", tenantID, model.StatusActive, false).
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

// UpdateLastActivity persists a refreshed activity stamp.
func (s *CustomerStore) UpdateLastActivity(ctx context.Context, tenantID, customerID uint, lastActivityAt time.Time) error {
	return s.db.WithContext(ctx).
		Model(&model.Customer{}).
		Where("id = ? AND tenant_id = ?", customerID, tenantID).
		Update("last_activity_at", lastActivityAt).Error
}
