package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lifecycle-service/internal/model"
	"lifecycle-service/pkg/cache"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TemplateStore is the gorm-backed checklist template reader.
type TemplateStore struct {
	db *gorm.DB
}

// NewTemplateStore creates a template store.
func NewTemplateStore(db *gorm.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// Get returns the template with its item definitions, or nil when absent.
func (s *TemplateStore) Get(ctx context.Context, tenantID, templateID uint) (*model.ChecklistTemplate, error) {
	var tmpl model.ChecklistTemplate
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Where("id = ? AND tenant_id = ?", templateID, tenantID).
		First(&tmpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tmpl, nil
}

// DefaultByKind returns the tenant's default template of the given kind, or
// nil when none is configured.
func (s *TemplateStore) DefaultByKind(ctx context.Context, tenantID uint, kind model.ChecklistKind) (*model.ChecklistTemplate, error) {
	var tmpl model.ChecklistTemplate
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Where("tenant_id = ? AND kind = ? AND is_default = ?", tenantID, kind, true).
		Order("created_at DESC, id DESC").
		First(&tmpl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tmpl, nil
}

// CachedTemplateStore caches template reads in redis. Templates are
// organization-scoped and read-mostly, so a short TTL is enough; cache
// failures degrade to database reads.
type CachedTemplateStore struct {
	inner  *TemplateStore
	kv     cache.KV
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedTemplateStore wraps a template store with a redis cache.
func NewCachedTemplateStore(inner *TemplateStore, kv cache.KV, ttl time.Duration, logger *zap.Logger) *CachedTemplateStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedTemplateStore{inner: inner, kv: kv, ttl: ttl, logger: logger}
}

func templateKey(tenantID, templateID uint) string {
	return fmt.Sprintf("checklist:template:%d:%d", tenantID, templateID)
}

func defaultTemplateKey(tenantID uint, kind model.ChecklistKind) string {
	return fmt.Sprintf("checklist:template:default:%d:%s", tenantID, kind)
}

func (s *CachedTemplateStore) Get(ctx context.Context, tenantID, templateID uint) (*model.ChecklistTemplate, error) {
	key := templateKey(tenantID, templateID)
	if tmpl, ok := s.cached(ctx, key); ok {
		return tmpl, nil
	}

	tmpl, err := s.inner.Get(ctx, tenantID, templateID)
	if err != nil {
		return nil, err
	}
	if tmpl != nil {
		s.put(ctx, key, tmpl)
	}
	return tmpl, nil
}

func (s *CachedTemplateStore) DefaultByKind(ctx context.Context, tenantID uint, kind model.ChecklistKind) (*model.ChecklistTemplate, error) {
	key := defaultTemplateKey(tenantID, kind)
	if tmpl, ok := s.cached(ctx, key); ok {
		return tmpl, nil
	}

	tmpl, err := s.inner.DefaultByKind(ctx, tenantID, kind)
	if err != nil {
		return nil, err
	}
	if tmpl != nil {
		s.put(ctx, key, tmpl)
	}
	return tmpl, nil
}

// Invalidate drops the cached entries for a template. Called by whatever
// writes templates; this engine only reads them.
func (s *CachedTemplateStore) Invalidate(ctx context.Context, tenantID, templateID uint, kind model.ChecklistKind) error {
	return s.kv.Del(ctx, templateKey(tenantID, templateID), defaultTemplateKey(tenantID, kind))
}

func (s *CachedTemplateStore) cached(ctx context.Context, key string) (*model.ChecklistTemplate, bool) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("template cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var tmpl model.ChecklistTemplate
	if err := json.Unmarshal([]byte(raw), &tmpl); err != nil {
		s.logger.Warn("template cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &tmpl, true
}

func (s *CachedTemplateStore) put(ctx context.Context, key string, tmpl *model.ChecklistTemplate) {
	raw, err := json.Marshal(tmpl)
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, key, string(raw), s.ttl); err != nil {
		s.logger.Warn("template cache write failed", zap.String("key", key), zap.Error(err))
	}
}
