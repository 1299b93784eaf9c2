package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lifecycle-service/internal/checklist"
	"lifecycle-service/internal/model"

	"go.uber.org/zap"
)

// Warning strings surfaced on otherwise-successful transitions.
const (
	WarnChecklistIncomplete = "checklist incomplete"
	WarnNoDefaultTemplate   = "no default template"
)

// CustomerStore is the persistence surface the orchestrator needs for
// customers. ApplyTransition commits the status write and the audit append
// together in one transaction, conditional on the stored status still
// equaling expected; it reports whether the transition applied. A successful
// transition therefore has exactly one audit record, and a failed commit
// leaves neither behind.
type CustomerStore interface {
	Get(ctx context.Context, tenantID, id uint) (*model.Customer, error)
	ApplyTransition(ctx context.Context, tenantID, id uint, expected model.LifecycleStatus, audit *model.LifecycleTransition) (bool, error)
}

// TransitionStore reads the append-only lifecycle audit trail. Audit rows are
// written through CustomerStore.ApplyTransition, never directly.
type TransitionStore interface {
	ListByCustomer(ctx context.Context, tenantID, customerID uint) ([]model.LifecycleTransition, error)
}

// ChecklistGate is the slice of the checklist engine the orchestrator uses
// for transition side effects and the activation warning.
type ChecklistGate interface {
	InstantiateForStage(ctx context.Context, tenantID, customerID uint, kind model.ChecklistKind) error
	ActiveInstance(ctx context.Context, tenantID, customerID uint) (*model.ChecklistInstance, error)
}

// TransitionResult is returned on a successful transition.
type TransitionResult struct {
	Status    model.LifecycleStatus `json:"status"`
	ChangedAt time.Time             `json:"changed_at"`
	Warnings  []string              `json:"warnings"`
}

// Orchestrator is the only path by which a customer's lifecycle status may
// change. It validates against the state machine, applies declared side
// effects, and commits the status change together with its audit record in
// one write conditional on the status read in this call.
type Orchestrator struct {
	customers   CustomerStore
	transitions TransitionStore
	checklists  ChecklistGate
	logger      *zap.Logger
	now         func() time.Time
}

// NewOrchestrator creates a lifecycle orchestrator. The checklist gate may be
// nil for organizations that run without checklists.
func NewOrchestrator(customers CustomerStore, transitions TransitionStore, checklists ChecklistGate, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		customers:   customers,
		transitions: transitions,
		checklists:  checklists,
		logger:      logger,
		now:         time.Now,
	}
}

// Transition moves the customer to the target status. Two concurrent calls
// for the same customer cannot both succeed: the status write is a
// compare-and-swap against the status read in this call, retried once with a
// fresh read before giving up with ErrConcurrentModification.
func (o *Orchestrator) Transition(ctx context.Context, tenantID, customerID uint, target model.LifecycleStatus, actor model.Actor, notes string) (*TransitionResult, error) {
	if !actor.CanManage() {
		return nil, fmt.Errorf("%w: only admins and owners can change a customer's lifecycle stage", ErrPermissionDenied)
	}

	const attempts = 2
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := o.attemptTransition(ctx, tenantID, customerID, target, actor, notes, attempt > 1)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrConcurrentModification) && attempt < attempts {
			o.logger.Debug("lifecycle CAS lost, retrying with fresh read",
				zap.Uint("customer_id", customerID),
				zap.String("target", string(target)))
			continue
		}
		return nil, err
	}
	return nil, ErrConcurrentModification
}

func (o *Orchestrator) attemptTransition(ctx context.Context, tenantID, customerID uint, target model.LifecycleStatus, actor model.Actor, notes string, retried bool) (*TransitionResult, error) {
	customer, err := o.customers.Get(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	from := customer.LifecycleStatus

	if ok, reason := CanTransition(from, target); !ok {
		if retried {
			// The transition was legal against the first read; the status
			// moved underneath us. Report the race, not an illegal request.
			return nil, fmt.Errorf("%w: %s", ErrConcurrentModification, reason)
		}
		return nil, fmt.Errorf("%w: %s", ErrIllegalTransition, reason)
	}

	var warnings []string

	// Activating with an unfinished onboarding checklist is allowed but
	// surfaced as a warning; the engine does not hard-block on it.
	if from == model.StatusOnboarding && target == model.StatusActive && o.checklists != nil {
		inst, err := o.checklists.ActiveInstance(ctx, tenantID, customerID)
		if err != nil {
			o.logger.Warn("failed to read checklist state during activation",
				zap.Uint("customer_id", customerID), zap.Error(err))
		} else if inst != nil && inst.Status == model.ChecklistInProgress {
			warnings = append(warnings, WarnChecklistIncomplete)
		}
	}

	// Declared side effect: entering a stage that carries a checklist kind
	// instantiates the org's default template. Failures are non-fatal; not
	// every organization configures checklists for every stage.
	if kind := checklistKindFor(from, target); kind != "" && o.checklists != nil {
		if err := o.checklists.InstantiateForStage(ctx, tenantID, customerID, kind); err != nil {
			switch {
			case errors.Is(err, checklist.ErrNoDefaultTemplate):
				warnings = append(warnings, WarnNoDefaultTemplate)
			case errors.Is(err, checklist.ErrInstantiationConflict):
				// An in-progress instance already exists; treated as done.
			default:
				o.logger.Warn("checklist instantiation failed",
					zap.Uint("customer_id", customerID),
					zap.String("kind", string(kind)),
					zap.Error(err))
				warnings = append(warnings, fmt.Sprintf("checklist instantiation failed: %v", err))
			}
		}
	}

	changedAt := o.now()
	audit := &model.LifecycleTransition{
		TenantID:   tenantID,
		CustomerID: customerID,
		FromStatus: from,
		ToStatus:   target,
		ActorID:    actor.UserID,
		Notes:      notes,
		CreatedAt:  changedAt,
	}
	applied, err := o.customers.ApplyTransition(ctx, tenantID, customerID, from, audit)
	if err != nil {
		return nil, fmt.Errorf("committing lifecycle transition: %w", err)
	}
	if !applied {
		return nil, ErrConcurrentModification
	}

	o.logger.Info("lifecycle transition applied",
		zap.Uint("tenant_id", tenantID),
		zap.Uint("customer_id", customerID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.Uint("actor_id", actor.UserID))

	return &TransitionResult{
		Status:    target,
		ChangedAt: changedAt,
		Warnings:  warnings,
	}, nil
}

// Trail returns the customer's lifecycle audit records in chronological order.
func (o *Orchestrator) Trail(ctx context.Context, tenantID, customerID uint) ([]model.LifecycleTransition, error) {
	return o.transitions.ListByCustomer(ctx, tenantID, customerID)
}
