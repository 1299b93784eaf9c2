package checklist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lifecycle-service/internal/model"

	"go.uber.org/zap"
)

// ItemMutator validates and mutates a single item in place. It receives the
// owning instance and the item's siblings (the other items of the same
// instance) and returns the instance status after the mutation, recomputed
// from the full item set. The store runs the mutator inside one transaction
// so two concurrent item mutations cannot both miss each other's effect in
// the cascade check.
type ItemMutator func(inst *model.ChecklistInstance, item *model.ChecklistInstanceItem, siblings []model.ChecklistInstanceItem) (model.ChecklistInstanceStatus, error)

// Store is the persistence surface of the checklist engine.
type Store interface {
	CreateInstance(ctx context.Context, inst *model.ChecklistInstance, items []model.ChecklistInstanceItem) error
	GetInstance(ctx context.Context, tenantID, instanceID uint) (*model.ChecklistInstance, error)
	// InstanceInProgress returns the IN_PROGRESS instance for the customer
	// and template, or nil when there is none.
	InstanceInProgress(ctx context.Context, tenantID, customerID, templateID uint) (*model.ChecklistInstance, error)
	// InstancesByCustomer returns the customer's instances, newest first.
	InstancesByCustomer(ctx context.Context, tenantID, customerID uint) ([]model.ChecklistInstance, error)
	InstanceItems(ctx context.Context, tenantID, instanceID uint) ([]model.ChecklistInstanceItem, error)
	// UpdateItemInTx loads the item, its owning instance, and its siblings,
	// applies the mutator, and persists the item and the returned instance
	// status in one transaction. Returns the instance as of after the update.
	UpdateItemInTx(ctx context.Context, tenantID, itemID uint, mutate ItemMutator) (*model.ChecklistInstance, error)
	// CancelInstance marks the instance CANCELLED and cancels its
	// unresolved items in one transaction.
	CancelInstance(ctx context.Context, tenantID, instanceID uint) error
}

// TemplateStore reads checklist templates. Implementations may cache; the
// template set is organization-scoped and read-mostly.
type TemplateStore interface {
	// Get returns the template with its item definitions, or nil when the
	// template does not exist in the tenant.
	Get(ctx context.Context, tenantID, templateID uint) (*model.ChecklistTemplate, error)
	// DefaultByKind returns the tenant's default template of the given kind,
	// or nil when none is configured.
	DefaultByKind(ctx context.Context, tenantID uint, kind model.ChecklistKind) (*model.ChecklistTemplate, error)
}

// Engine manages checklist instances bound to customers.
type Engine struct {
	store     Store
	templates TemplateStore
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine creates a checklist engine.
func NewEngine(store Store, templates TemplateStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:     store,
		templates: templates,
		logger:    logger,
		now:       time.Now,
	}
}

// Instantiate creates a checklist instance for the customer from the given
// template. Fails with ErrInstantiationConflict while an in-progress
// instance for the same customer and template exists.
func (e *Engine) Instantiate(ctx context.Context, tenantID, customerID, templateID uint, actor model.Actor) (*model.ChecklistInstance, error) {
	if !actor.CanManage() {
		return nil, fmt.Errorf("%w: only admins and owners can manage checklists", ErrPermissionDenied)
	}

	tmpl, err := e.templates.Get(ctx, tenantID, templateID)
	if err != nil {
		return nil, fmt.Errorf("loading template: %w", err)
	}
	if tmpl == nil {
		return nil, ErrTemplateNotFound
	}

	return e.instantiate(ctx, tenantID, customerID, tmpl)
}

// InstantiateForStage creates an instance from the tenant's default template
// of the given kind. Called by the lifecycle orchestrator as a declared
// transition side effect; not role-gated because the orchestrator has
// already authorized the transition itself.
func (e *Engine) InstantiateForStage(ctx context.Context, tenantID, customerID uint, kind model.ChecklistKind) error {
	tmpl, err := e.templates.DefaultByKind(ctx, tenantID, kind)
	if err != nil {
		return fmt.Errorf("loading default template: %w", err)
	}
	if tmpl == nil {
		return ErrNoDefaultTemplate
	}

	_, err = e.instantiate(ctx, tenantID, customerID, tmpl)
	return err
}

func (e *Engine) instantiate(ctx context.Context, tenantID, customerID uint, tmpl *model.ChecklistTemplate) (*model.ChecklistInstance, error) {
	existing, err := e.store.InstanceInProgress(ctx, tenantID, customerID, tmpl.ID)
	if err != nil {
		return nil, fmt.Errorf("checking for existing instance: %w", err)
	}
	if existing != nil {
		return nil, ErrInstantiationConflict
	}

	inst := &model.ChecklistInstance{
		TenantID:   tenantID,
		TemplateID: tmpl.ID,
		CustomerID: customerID,
		Status:     model.ChecklistInProgress,
		CreatedAt:  e.now(),
	}
	items := make([]model.ChecklistInstanceItem, 0, len(tmpl.Items))
	for _, def := range tmpl.Items {
		items = append(items, model.ChecklistInstanceItem{
			TenantID:    tenantID,
			Name:        def.Name,
			Description: def.Description,
			Required:    def.Required,
			SortOrder:   def.SortOrder,
			Status:      model.ItemPending,
		})
	}

	if err := e.store.CreateInstance(ctx, inst, items); err != nil {
		return nil, fmt.Errorf("creating checklist instance: %w", err)
	}

	e.logger.Info("checklist instance created",
		zap.Uint("tenant_id", tenantID),
		zap.Uint("customer_id", customerID),
		zap.Uint("template_id", tmpl.ID),
		zap.Int("items", len(items)))

	return inst, nil
}

// CompleteOptions carries the optional fields of an item completion.
type CompleteOptions struct {
	Notes              string
	EvidenceDocumentID *uint
}

// CompleteItem marks the item COMPLETED and stamps who completed it and
// when. If every item of the owning instance is then resolved the instance
// becomes COMPLETED.
func (e *Engine) CompleteItem(ctx context.Context, tenantID, itemID uint, actor model.Actor, opts CompleteOptions) (*model.ChecklistInstance, error) {
	if !actor.CanManage() {
		return nil, fmt.Errorf("%w: only admins and owners can manage checklist items", ErrPermissionDenied)
	}

	completedAt := e.now()
	return e.store.UpdateItemInTx(ctx, tenantID, itemID, func(inst *model.ChecklistInstance, item *model.ChecklistInstanceItem, siblings []model.ChecklistInstanceItem) (model.ChecklistInstanceStatus, error) {
		// CANCELLED is terminal for the whole instance; the cascade must
		// never resurrect it.
		if inst.Status == model.ChecklistCancelled || item.Status == model.ItemCancelled {
			return "", ErrItemNotActionable
		}
		item.Status = model.ItemCompleted
		item.CompletedAt = &completedAt
		item.CompletedBy = &actor.UserID
		item.SkipReason = ""
		if opts.Notes != "" {
			item.Notes = opts.Notes
		}
		if opts.EvidenceDocumentID != nil {
			item.EvidenceDocumentID = opts.EvidenceDocumentID
		}
		return cascadeStatus(item, siblings), nil
	})
}

// SkipItem marks the item SKIPPED. A non-empty reason is required and the
// request is rejected before any mutation without one.
func (e *Engine) SkipItem(ctx context.Context, tenantID, itemID uint, actor model.Actor, reason string) (*model.ChecklistInstance, error) {
	if !actor.CanManage() {
		return nil, fmt.Errorf("%w: only admins and owners can manage checklist items", ErrPermissionDenied)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, ErrInvalidSkipReason
	}

	return e.store.UpdateItemInTx(ctx, tenantID, itemID, func(inst *model.ChecklistInstance, item *model.ChecklistInstanceItem, siblings []model.ChecklistInstanceItem) (model.ChecklistInstanceStatus, error) {
		if inst.Status == model.ChecklistCancelled || item.Status == model.ItemCancelled {
			return "", ErrItemNotActionable
		}
		item.Status = model.ItemSkipped
		item.SkipReason = reason
		item.CompletedAt = nil
		item.CompletedBy = nil
		return cascadeStatus(item, siblings), nil
	})
}

// ReopenItem resets a COMPLETED or SKIPPED item to PENDING. Completion is not
// sticky: if the owning instance was COMPLETED it reverts to IN_PROGRESS.
// Cancellation is sticky; items of a CANCELLED instance stay as they are.
func (e *Engine) ReopenItem(ctx context.Context, tenantID, itemID uint, actor model.Actor) (*model.ChecklistInstance, error) {
	if !actor.CanManage() {
		return nil, fmt.Errorf("%w: only admins and owners can manage checklist items", ErrPermissionDenied)
	}

	return e.store.UpdateItemInTx(ctx, tenantID, itemID, func(inst *model.ChecklistInstance, item *model.ChecklistInstanceItem, siblings []model.ChecklistInstanceItem) (model.ChecklistInstanceStatus, error) {
		if inst.Status == model.ChecklistCancelled {
			return "", ErrItemNotActionable
		}
		if !item.Status.Resolved() {
			return "", ErrItemNotReopenable
		}
		item.Status = model.ItemPending
		item.CompletedAt = nil
		item.CompletedBy = nil
		item.SkipReason = ""
		return cascadeStatus(item, siblings), nil
	})
}

// CancelInstance cancels an in-progress instance and its unresolved items.
// Instances are never cancelled automatically when a customer leaves a
// stage; this is an explicit operator decision.
func (e *Engine) CancelInstance(ctx context.Context, tenantID, instanceID uint, actor model.Actor) error {
	if !actor.CanManage() {
		return fmt.Errorf("%w: only admins and owners can manage checklists", ErrPermissionDenied)
	}

	inst, err := e.store.GetInstance(ctx, tenantID, instanceID)
	if err != nil {
		return err
	}
	if inst == nil {
		return ErrInstanceNotFound
	}
	if inst.Status != model.ChecklistInProgress {
		return ErrInstanceNotCancellable
	}

	return e.store.CancelInstance(ctx, tenantID, instanceID)
}

// ActiveInstance returns the instance shown to a user for the customer: the
// most recent IN_PROGRESS one, or, when none is in progress, the most
// recently created instance of any status. Returns nil when the customer has
// no instances. The fallback exists because a customer may cycle through
// onboarding more than once.
func (e *Engine) ActiveInstance(ctx context.Context, tenantID, customerID uint) (*model.ChecklistInstance, error) {
	instances, err := e.store.InstancesByCustomer(ctx, tenantID, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing checklist instances: %w", err)
	}
	if len(instances) == 0 {
		return nil, nil
	}

	chosen := &instances[0]
	for i := range instances {
		if instances[i].Status == model.ChecklistInProgress {
			chosen = &instances[i]
			break
		}
	}

	items, err := e.store.InstanceItems(ctx, tenantID, chosen.ID)
	if err != nil {
		return nil, fmt.Errorf("loading checklist items: %w", err)
	}
	chosen.Items = items
	return chosen, nil
}

// cascadeStatus recomputes the instance status from the full item set after
// a mutation. Derived state: never maintained incrementally.
func cascadeStatus(item *model.ChecklistInstanceItem, siblings []model.ChecklistInstanceItem) model.ChecklistInstanceStatus {
	if !item.Status.Resolved() {
		return model.ChecklistInProgress
	}
	for _, s := range siblings {
		if s.Status == model.ItemCancelled {
			continue
		}
		if !s.Status.Resolved() {
			return model.ChecklistInProgress
		}
	}
	return model.ChecklistCompleted
}
