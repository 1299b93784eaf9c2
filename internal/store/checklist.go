package store

import (
	"context"
	"errors"
	"fmt"

	"lifecycle-service/internal/checklist"
	"lifecycle-service/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChecklistStore is the gorm-backed persistence for checklist instances.
type ChecklistStore struct {
	db *gorm.DB
}

// NewChecklistStore creates a checklist store.
func NewChecklistStore(db *gorm.DB) *ChecklistStore {
	return &ChecklistStore{db: db}
}

// CreateInstance persists the instance and its items in one transaction.
func (s *ChecklistStore) CreateInstance(ctx context.Context, inst *model.ChecklistInstance, items []model.ChecklistInstanceItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(inst).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].InstanceID = inst.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		inst.Items = items
		return nil
	})
}

// GetInstance returns the instance within the tenant, or nil when absent.
func (s *ChecklistStore) GetInstance(ctx context.Context, tenantID, instanceID uint) (*model.ChecklistInstance, error) {
	var inst model.ChecklistInstance
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", instanceID, tenantID).
		First(&inst).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inst, nil
}

// InstanceInProgress returns the IN_PROGRESS instance for the customer and
// template, or nil when there is none.
func (s *ChecklistStore) InstanceInProgress(ctx context.Context, tenantID, customerID, templateID uint) (*model.ChecklistInstance, error) {
	var inst model.ChecklistInstance
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ? AND template_id = ? AND status = ?",
			tenantID, customerID, templateID, model.ChecklistInProgress).
		Order("created_at DESC, id DESC").
		First(&inst).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inst, nil
}

// InstancesByCustomer returns the customer's instances, newest first.
func (s *ChecklistStore) InstancesByCustomer(ctx context.Context, tenantID, customerID uint) ([]model.ChecklistInstance, error) {
	var instances []model.ChecklistInstance
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", tenantID, customerID).
		Order("created_at DESC, id DESC").
		Find(&instances).Error
	if err != nil {
		return nil, err
	}
	return instances, nil
}

// InstanceItems returns the instance's items in sort order.
func (s *ChecklistStore) InstanceItems(ctx context.Context, tenantID, instanceID uint) ([]model.ChecklistInstanceItem, error) {
	var items []model.ChecklistInstanceItem
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND instance_id = ?", tenantID, instanceID).
		Order("sort_order ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateItemInTx applies an item mutation and the resulting instance status
// in one transaction. The owning instance row is locked first so two
// concurrent item mutations serialize and each cascade check reads the full
// item set including the other's effect.
func (s *ChecklistStore) UpdateItemInTx(ctx context.Context, tenantID, itemID uint, mutate checklist.ItemMutator) (*model.ChecklistInstance, error) {
	var result *model.ChecklistInstance

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item model.ChecklistInstanceItem
		err := tx.Where("id = ? AND tenant_id = ?", itemID, tenantID).First(&item).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return checklist.ErrItemNotFound
			}
			return err
		}

		var inst model.ChecklistInstance
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND tenant_id = ?", item.InstanceID, tenantID).
			First(&inst).Error
		if err != nil {
			return fmt.Errorf("loading owning instance: %w", err)
		}

		var all []model.ChecklistInstanceItem
		err = tx.Where("instance_id = ? AND tenant_id = ?", inst.ID, tenantID).
			Order("sort_order ASC, id ASC").
			Find(&all).Error
		if err != nil {
			return err
		}

		siblings := make([]model.ChecklistInstanceItem, 0, len(all)-1)
		for i := range all {
			if all[i].ID == item.ID {
				continue
			}
			siblings = append(siblings, all[i])
		}

		newStatus, err := mutate(&inst, &item, siblings)
		if err != nil {
			return err
		}

		if err := tx.Save(&item).Error; err != nil {
			return err
		}
		if newStatus != inst.Status {
			if err := tx.Model(&inst).Update("status", newStatus).Error; err != nil {
				return err
			}
			inst.Status = newStatus
		}

		for i := range all {
			if all[i].ID == item.ID {
				all[i] = item
			}
		}
		inst.Items = all
		result = &inst
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelInstance marks the instance CANCELLED and cancels its unresolved
// items in one transaction.
func (s *ChecklistStore) CancelInstance(ctx context.Context, tenantID, instanceID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.ChecklistInstance{}).
			Where("id = ? AND tenant_id = ? AND status = ?", instanceID, tenantID, model.ChecklistInProgress).
			Update("status", model.ChecklistCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return checklist.ErrInstanceNotCancellable
		}

		return tx.Model(&model.ChecklistInstanceItem{}).
			Where("instance_id = ? AND tenant_id = ? AND status IN ?",
				instanceID, tenantID,
				[]model.ChecklistItemStatus{model.ItemPending, model.ItemBlocked}).
			Update("status", model.ItemCancelled).Error
	})
}
