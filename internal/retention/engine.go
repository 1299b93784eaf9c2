package retention

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lifecycle-service/internal/model"

	"go.uber.org/zap"
)

// RecordRef is the minimal view of a candidate record the engine evaluates.
// CustomerID links documents and audit events to their owning customer for
// trigger-event reference lookups; for customer records it is the record id.
type RecordRef struct {
	ID         uint
	CustomerID *uint
	CreatedAt  time.Time
}

// PolicyStore reads retention policies. Implementations may cache; the
// policy set is organization-scoped and read-mostly.
type PolicyStore interface {
	ActivePolicies(ctx context.Context, tenantID uint) ([]model.RetentionPolicy, error)
}

// RecordStore lists candidate records per type and applies retention actions.
// Apply must be atomic per record: fully applied or not applied.
type RecordStore interface {
	Candidates(ctx context.Context, tenantID uint, recordType model.RecordType) ([]RecordRef, error)
	Apply(ctx context.Context, tenantID uint, recordType model.RecordType, recordID uint, action model.RetentionAction) error
}

// TriggerSource resolves trigger-event reference timestamps from the
// lifecycle audit trail.
type TriggerSource interface {
	LastTransitionAt(ctx context.Context, tenantID, customerID uint, to model.LifecycleStatus) (*time.Time, error)
}

// LogStore appends retention execution log rows.
type LogStore interface {
	Append(ctx context.Context, entry *model.RetentionExecutionLog) error
}

// FlaggedRecord is one record matched by the check, with the effective
// (most restrictive) action and the policy that imposed it.
type FlaggedRecord struct {
	RecordID uint                  `json:"record_id"`
	Action   model.RetentionAction `json:"action"`
	PolicyID uint                  `json:"policy_id"`
}

// CheckResult is the ephemeral outcome of a dry-run evaluation.
type CheckResult struct {
	CheckedAt    time.Time                            `json:"checked_at"`
	Flagged      map[model.RecordType][]FlaggedRecord `json:"flagged"`
	TotalFlagged int                                  `json:"total_flagged"`
}

// ExecuteFailure is one record that could not be acted on.
type ExecuteFailure struct {
	RecordID uint   `json:"id"`
	Reason   string `json:"reason"`
}

// ExecuteResult aggregates a retention execution batch. Failures never abort
// the batch; a single locked record must not block the sweep.
type ExecuteResult struct {
	Succeeded []uint           `json:"succeeded"`
	Failed    []ExecuteFailure `json:"failed"`
}

// Engine evaluates retention policies and, as a separate explicit step,
// executes their actions. The two-phase design exists so destructive actions
// are never triggered by a scheduled scan alone.
type Engine struct {
	policies  PolicyStore
	records   RecordStore
	triggers  TriggerSource
	logs      LogStore
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine creates a retention engine. batchSize bounds each execution
// chunk so a sweep interrupted by a timeout leaves committed batches intact.
func NewEngine(policies PolicyStore, records RecordStore, triggers TriggerSource, logs LogStore, batchSize int, logger *zap.Logger) *Engine {
	if batchSize < 1 {
		batchSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		policies:  policies,
		records:   records,
		triggers:  triggers,
		logs:      logs,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// RunCheck classifies matching records under every active policy of the
// tenant. Dry run: nothing is mutated. When several policies match the same
// record with different actions the most restrictive action wins
// (PURGE > ANONYMIZE > ARCHIVE > FLAG).
func (e *Engine) RunCheck(ctx context.Context, tenantID uint) (*CheckResult, error) {
	policies, err := e.policies.ActivePolicies(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading retention policies: %w", err)
	}

	result := &CheckResult{
		CheckedAt: e.now(),
		Flagged:   make(map[model.RecordType][]FlaggedRecord),
	}

	byType := make(map[model.RecordType][]model.RetentionPolicy)
	for _, p := range policies {
		byType[p.RecordType] = append(byType[p.RecordType], p)
	}

	for recordType, typePolicies := range byType {
		flagged, err := e.evaluateType(ctx, tenantID, recordType, typePolicies)
		if err != nil {
			return nil, err
		}
		if len(flagged) > 0 {
			result.Flagged[recordType] = flagged
			result.TotalFlagged += len(flagged)
		}
	}

	e.logger.Info("retention check finished",
		zap.Uint("tenant_id", tenantID),
		zap.Int("active_policies", len(policies)),
		zap.Int("total_flagged", result.TotalFlagged))

	return result, nil
}

func (e *Engine) evaluateType(ctx context.Context, tenantID uint, recordType model.RecordType, policies []model.RetentionPolicy) ([]FlaggedRecord, error) {
	candidates, err := e.records.Candidates(ctx, tenantID, recordType)
	if err != nil {
		return nil, fmt.Errorf("listing %s candidates: %w", recordType, err)
	}

	now := e.now()
	matched := make(map[uint]FlaggedRecord)
	order := make([]uint, 0)

	for _, p := range policies {
		for _, rec := range candidates {
			reference, err := e.referenceTime(ctx, tenantID, p, rec)
			if err != nil {
				return nil, err
			}
			if reference == nil {
				// Trigger event never happened for this record.
				continue
			}
			if now.Sub(*reference) < time.Duration(p.RetentionDays)*24*time.Hour {
				continue
			}

			prev, seen := matched[rec.ID]
			if !seen {
				matched[rec.ID] = FlaggedRecord{RecordID: rec.ID, Action: p.Action, PolicyID: p.ID}
				order = append(order, rec.ID)
				continue
			}
			if p.Action.MoreRestrictive(prev.Action) {
				matched[rec.ID] = FlaggedRecord{RecordID: rec.ID, Action: p.Action, PolicyID: p.ID}
			}
		}
	}

	flagged := make([]FlaggedRecord, 0, len(order))
	for _, id := range order {
		flagged = append(flagged, matched[id])
	}
	return flagged, nil
}

// referenceTime resolves the timestamp a policy measures retention from:
// the record's creation time, or the time of the policy's trigger event read
// from the lifecycle audit trail.
func (e *Engine) referenceTime(ctx context.Context, tenantID uint, p model.RetentionPolicy, rec RecordRef) (*time.Time, error) {
	switch p.TriggerEvent {
	case model.TriggerRecordCreated, "":
		t := rec.CreatedAt
		return &t, nil
	case model.TriggerCustomerOffboarded:
		if rec.CustomerID == nil {
			return nil, nil
		}
		t, err := e.triggers.LastTransitionAt(ctx, tenantID, *rec.CustomerID, model.StatusOffboarded)
		if err != nil {
			return nil, fmt.Errorf("resolving trigger time for customer %d: %w", *rec.CustomerID, err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown trigger event %q on policy %d", p.TriggerEvent, p.ID)
	}
}

// Execute applies the effective retention action to the given records of one
// record type. The record set is re-evaluated against the active policies so
// execution only ever acts on records a policy currently matches. Processing
// is chunked; each record's action is atomic, per-record failures are
// collected, and the batch never aborts as a whole. Every run is logged for
// compliance traceability.
func (e *Engine) Execute(ctx context.Context, tenantID uint, recordType model.RecordType, recordIDs []uint, actor model.Actor) (*ExecuteResult, error) {
	if !actor.CanManage() {
		return nil, fmt.Errorf("%w: only admins and owners can execute retention actions", ErrPermissionDenied)
	}

	policies, err := e.policies.ActivePolicies(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading retention policies: %w", err)
	}
	typePolicies := make([]model.RetentionPolicy, 0)
	for _, p := range policies {
		if p.RecordType == recordType {
			typePolicies = append(typePolicies, p)
		}
	}

	flagged, err := e.evaluateType(ctx, tenantID, recordType, typePolicies)
	if err != nil {
		return nil, err
	}
	effective := make(map[uint]FlaggedRecord, len(flagged))
	for _, f := range flagged {
		effective[f.RecordID] = f
	}

	result := &ExecuteResult{Succeeded: make([]uint, 0), Failed: make([]ExecuteFailure, 0)}

	// Per (policy, action) bookkeeping for the execution log.
	type logGroup struct {
		action    model.RetentionAction
		ids       []uint
		succeeded int
		failed    int
	}
	groups := make(map[uint]*logGroup)

	for start := 0; start < len(recordIDs); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			// Already-processed records are committed; the rest simply have
			// not been evaluated yet.
			e.logger.Warn("retention execution interrupted",
				zap.Uint("tenant_id", tenantID),
				zap.Int("processed", start),
				zap.Int("requested", len(recordIDs)))
			break
		}

		end := start + e.batchSize
		if end > len(recordIDs) {
			end = len(recordIDs)
		}

		for _, id := range recordIDs[start:end] {
			match, ok := effective[id]
			if !ok {
				result.Failed = append(result.Failed, ExecuteFailure{
					RecordID: id,
					Reason:   "record is not matched by any active retention policy",
				})
				continue
			}

			group := groups[match.PolicyID]
			if group == nil {
				group = &logGroup{action: match.Action}
				groups[match.PolicyID] = group
			}
			group.ids = append(group.ids, id)

			if err := e.records.Apply(ctx, tenantID, recordType, id, match.Action); err != nil {
				group.failed++
				result.Failed = append(result.Failed, ExecuteFailure{RecordID: id, Reason: err.Error()})
				e.logger.Warn("retention action failed",
					zap.Uint("record_id", id),
					zap.String("record_type", string(recordType)),
					zap.String("action", string(match.Action)),
					zap.Error(err))
				continue
			}
			group.succeeded++
			result.Succeeded = append(result.Succeeded, id)
		}
	}

	for policyID, group := range groups {
		entry := &model.RetentionExecutionLog{
			TenantID:   tenantID,
			PolicyID:   policyID,
			RecordType: recordType,
			Action:     group.action,
			RecordIDs:  joinIDs(group.ids),
			ActorID:    actor.UserID,
			ActorType:  actorType(actor),
			Succeeded:  group.succeeded,
			Failed:     group.failed,
			CreatedAt:  e.now(),
		}
		if err := e.logs.Append(ctx, entry); err != nil {
			return nil, fmt.Errorf("appending retention execution log: %w", err)
		}
	}

	e.logger.Info("retention execution finished",
		zap.Uint("tenant_id", tenantID),
		zap.String("record_type", string(recordType)),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)))

	return result, nil
}

func joinIDs(ids []uint) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatUint(uint64(id), 10))
	}
	return strings.Join(parts, ",")
}

func actorType(actor model.Actor) string {
	if actor.UserID == 0 {
		return "system"
	}
	return "user"
}
