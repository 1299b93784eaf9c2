package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lifecycle-service/internal/model"
	"lifecycle-service/internal/retention"
	"lifecycle-service/pkg/cache"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PolicyStore is the gorm-backed retention policy reader.
type PolicyStore struct {
	db *gorm.DB
}

// NewPolicyStore creates a policy store.
func NewPolicyStore(db *gorm.DB) *PolicyStore {
	return &PolicyStore{db: db}
}

// ActivePolicies returns the tenant's active retention policies.
func (s *PolicyStore) ActivePolicies(ctx context.Context, tenantID uint) ([]model.RetentionPolicy, error) {
	var policies []model.RetentionPolicy
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Find(&policies).Error
	if err != nil {
		return nil, err
	}
	return policies, nil
}

// CachedPolicyStore caches the active policy set in redis. Policies are
// read-mostly; cache failures degrade to database reads.
type CachedPolicyStore struct {
	inner  *PolicyStore
	kv     cache.KV
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedPolicyStore wraps a policy store with a redis cache.
func NewCachedPolicyStore(inner *PolicyStore, kv cache.KV, ttl time.Duration, logger *zap.Logger) *CachedPolicyStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedPolicyStore{inner: inner, kv: kv, ttl: ttl, logger: logger}
}

func policyKey(tenantID uint) string {
	return fmt.Sprintf("retention:policies:%d", tenantID)
}

func (s *CachedPolicyStore) ActivePolicies(ctx context.Context, tenantID uint) ([]model.RetentionPolicy, error) {
	key := policyKey(tenantID)
	raw, err := s.kv.Get(ctx, key)
	if err == nil {
		var policies []model.RetentionPolicy
		if jsonErr := json.Unmarshal([]byte(raw), &policies); jsonErr == nil {
			return policies, nil
		}
		s.logger.Warn("policy cache entry corrupt", zap.String("key", key))
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("policy cache read failed", zap.String("key", key), zap.Error(err))
	}

	policies, err := s.inner.ActivePolicies(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if encoded, jsonErr := json.Marshal(policies); jsonErr == nil {
		if setErr := s.kv.Set(ctx, key, string(encoded), s.ttl); setErr != nil {
			s.logger.Warn("policy cache write failed", zap.String("key", key), zap.Error(setErr))
		}
	}
	return policies, nil
}

// Invalidate drops the cached policy set for a tenant.
func (s *CachedPolicyStore) Invalidate(ctx context.Context, tenantID uint) error {
	return s.kv.Del(ctx, policyKey(tenantID))
}

// RecordStore lists retention candidates and applies retention actions
// against the engine-owned tables.
type RecordStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRecordStore creates a record store.
func NewRecordStore(db *gorm.DB) *RecordStore {
	return &RecordStore{db: db, now: time.Now}
}

// Candidates returns the evaluable records of the given type.
func (s *RecordStore) Candidates(ctx context.Context, tenantID uint, recordType model.RecordType) ([]retention.RecordRef, error) {
	switch recordType {
	case model.RecordTypeCustomer:
		var customers []model.Customer
		if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&customers).Error; err != nil {
			return nil, err
		}
		refs := make([]retention.RecordRef, 0, len(customers))
		for _, c := range customers {
			id := c.ID
			refs = append(refs, retention.RecordRef{ID: c.ID, CustomerID: &id, CreatedAt: c.CreatedAt})
		}
		return refs, nil

	case model.RecordTypeAuditEvent:
		var transitions []model.LifecycleTransition
		if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&transitions).Error; err != nil {
			return nil, err
		}
		refs := make([]retention.RecordRef, 0, len(transitions))
		for _, t := range transitions {
			customerID := t.CustomerID
			refs = append(refs, retention.RecordRef{ID: t.ID, CustomerID: &customerID, CreatedAt: t.CreatedAt})
		}
		return refs, nil

	case model.RecordTypeDocument:
		var documents []model.Document
		if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&documents).Error; err != nil {
			return nil, err
		}
		refs := make([]retention.RecordRef, 0, len(documents))
		for _, d := range documents {
			refs = append(refs, retention.RecordRef{ID: d.ID, CustomerID: d.CustomerID, CreatedAt: d.CreatedAt})
		}
		return refs, nil

	default:
		return nil, fmt.Errorf("unknown record type %q", recordType)
	}
}

// Apply performs one retention action on one record. Each call is a single
// statement or transaction, so the record's action is atomic.
func (s *RecordStore) Apply(ctx context.Context, tenantID uint, recordType model.RecordType, recordID uint, action model.RetentionAction) error {
	switch recordType {
	case model.RecordTypeCustomer:
		return s.applyCustomer(ctx, tenantID, recordID, action)
	case model.RecordTypeAuditEvent:
		return s.applyAuditEvent(ctx, tenantID, recordID, action)
	case model.RecordTypeDocument:
		return s.applyDocument(ctx, tenantID, recordID, action)
	default:
		return fmt.Errorf("unknown record type %q", recordType)
	}
}

func (s *RecordStore) applyCustomer(ctx context.Context, tenantID, recordID uint, action model.RetentionAction) error {
	scope := s.db.WithContext(ctx).Model(&model.Customer{}).
		Where("id = ? AND tenant_id = ?", recordID, tenantID)

	switch action {
	case model.ActionFlag:
		return scope.Update("retention_flagged_at", s.now()).Error
	case model.ActionArchive:
		return scope.Update("archived", true).Error
	case model.ActionAnonymize:
		return scope.Updates(map[string]interface{}{
			"name":          fmt.Sprintf("Anonymized Customer %d", recordID),
			"anonymized_at": s.now(),
		}).Error
	case model.ActionPurge:
		err := s.db.WithContext(ctx).Unscoped().
			Where("id = ? AND tenant_id = ?", recordID, tenantID).
			Delete(&model.Customer{}).Error
		return wrapLockError(err)
	default:
		return fmt.Errorf("unknown retention action %q", action)
	}
}

func (s *RecordStore) applyAuditEvent(ctx context.Context, tenantID, recordID uint, action model.RetentionAction) error {
	switch action {
	case model.ActionPurge:
		return wrapLockError(s.db.WithContext(ctx).
			Where("id = ? AND tenant_id = ?", recordID, tenantID).
			Delete(&model.LifecycleTransition{}).Error)
	default:
		// Audit events are immutable; only purging them under a retention
		// policy is meaningful.
		return fmt.Errorf("%w: %s on audit event", retention.ErrUnsupportedAction, action)
	}
}

func (s *RecordStore) applyDocument(ctx context.Context, tenantID, recordID uint, action model.RetentionAction) error {
	scope := s.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND tenant_id = ?", recordID, tenantID)

	switch action {
	case model.ActionFlag:
		return scope.Update("retention_flagged_at", s.now()).Error
	case model.ActionArchive:
		return scope.Update("archived", true).Error
	case model.ActionAnonymize:
		return scope.Updates(map[string]interface{}{
			"name":          fmt.Sprintf("Anonymized Document %d", recordID),
			"anonymized_at": s.now(),
		}).Error
	case model.ActionPurge:
		err := s.db.WithContext(ctx).Unscoped().
			Where("id = ? AND tenant_id = ?", recordID, tenantID).
			Delete(&model.Document{}).Error
		return wrapLockError(err)
	default:
		return fmt.Errorf("unknown retention action %q", action)
	}
}

// wrapLockError translates foreign-key violations into the engine's
// per-record lock error so a referenced record fails its own slot in the
// batch instead of aborting the sweep.
func wrapLockError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "foreign key") || strings.Contains(msg, "SQLSTATE 23503") {
		return fmt.Errorf("%w: %v", retention.ErrRecordLocked, err)
	}
	return err
}

// ExecutionLogStore is the gorm-backed, append-only retention execution log.
type ExecutionLogStore struct {
	db *gorm.DB
}

// NewExecutionLogStore creates an execution log store.
func NewExecutionLogStore(db *gorm.DB) *ExecutionLogStore {
	return &ExecutionLogStore{db: db}
}

// Append writes one execution log row.
func (s *ExecutionLogStore) Append(ctx context.Context, entry *model.RetentionExecutionLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}
