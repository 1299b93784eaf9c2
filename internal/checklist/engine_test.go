package checklist

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"lifecycle-service/internal/model"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu        sync.Mutex
	instSeq   uint
	itemSeq   uint
	instances map[uint]*model.ChecklistInstance
	items     map[uint]*model.ChecklistInstanceItem
}

func newMemStore() *memStore {
	return &memStore{
		instances: make(map[uint]*model.ChecklistInstance),
		items:     make(map[uint]*model.ChecklistInstanceItem),
	}
}

func (m *memStore) CreateInstance(_ context.Context, inst *model.ChecklistInstance, items []model.ChecklistInstanceItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instSeq++
	inst.ID = m.instSeq
	cp := *inst
	m.instances[inst.ID] = &cp
	for i := range items {
		m.itemSeq++
		items[i].ID = m.itemSeq
		items[i].InstanceID = inst.ID
		ic := items[i]
		m.items[ic.ID] = &ic
	}
	inst.Items = items
	return nil
}

func (m *memStore) GetInstance(_ context.Context, _, instanceID uint) (*model.ChecklistInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[instanceID]
	if !ok {
		return nil, nil
	}
	cp := *inst
	return &cp, nil
}

func (m *memStore) InstanceInProgress(_ context.Context, _, customerID, templateID uint) (*model.ChecklistInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range m.instances {
		if inst.CustomerID == customerID && inst.TemplateID == templateID && inst.Status == model.ChecklistInProgress {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) InstancesByCustomer(_ context.Context, _, customerID uint) ([]model.ChecklistInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ChecklistInstance
	for _, inst := range m.instances {
		if inst.CustomerID == customerID {
			out = append(out, *inst)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memStore) InstanceItems(_ context.Context, _, instanceID uint) ([]model.ChecklistInstanceItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.itemsOf(instanceID), nil
}

func (m *memStore) itemsOf(instanceID uint) []model.ChecklistInstanceItem {
	var out []model.ChecklistInstanceItem
	for _, item := range m.items {
		if item.InstanceID == instanceID {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memStore) UpdateItemInTx(_ context.Context, _, itemID uint, mutate ItemMutator) (*model.ChecklistInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	inst := m.instances[item.InstanceID]

	var siblings []model.ChecklistInstanceItem
	for _, other := range m.items {
		if other.InstanceID == item.InstanceID && other.ID != item.ID {
			siblings = append(siblings, *other)
		}
	}

	instCopy := *inst
	cp := *item
	newStatus, err := mutate(&instCopy, &cp, siblings)
	if err != nil {
		return nil, err
	}
	*item = cp
	inst.Status = newStatus

	result := *inst
	result.Items = m.itemsOf(inst.ID)
	return &result, nil
}

func (m *memStore) CancelInstance(_ context.Context, _, instanceID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[instanceID]
	if !ok || inst.Status != model.ChecklistInProgress {
		return ErrInstanceNotCancellable
	}
	inst.Status = model.ChecklistCancelled
	for _, item := range m.items {
		if item.InstanceID == instanceID && (item.Status == model.ItemPending || item.Status == model.ItemBlocked) {
			item.Status = model.ItemCancelled
		}
	}
	return nil
}

type memTemplates struct {
	byID     map[uint]*model.ChecklistTemplate
	defaults map[model.ChecklistKind]*model.ChecklistTemplate
}

func (m *memTemplates) Get(_ context.Context, _, templateID uint) (*model.ChecklistTemplate, error) {
	return m.byID[templateID], nil
}

func (m *memTemplates) DefaultByKind(_ context.Context, _ uint, kind model.ChecklistKind) (*model.ChecklistTemplate, error) {
	return m.defaults[kind], nil
}

func onboardingTemplate() *model.ChecklistTemplate {
	return &model.ChecklistTemplate{
		ID:       1,
		TenantID: 10,
		Name:     "Standard Onboarding",
		Kind:     model.ChecklistKindOnboarding,
		Items: []model.ChecklistTemplateItem{
			{ID: 1, TemplateID: 1, Name: "Sign engagement letter", Required: true, SortOrder: 1},
			{ID: 2, TemplateID: 1, Name: "Collect KYC documents", Required: true, SortOrder: 2},
			{ID: 3, TemplateID: 1, Name: "Schedule kickoff call", Required: false, SortOrder: 3},
		},
	}
}

func newChecklistFixture() (*memStore, *Engine) {
	tmpl := onboardingTemplate()
	store := newMemStore()
	templates := &memTemplates{
		byID:     map[uint]*model.ChecklistTemplate{1: tmpl},
		defaults: map[model.ChecklistKind]*model.ChecklistTemplate{model.ChecklistKindOnboarding: tmpl},
	}
	return store, NewEngine(store, templates, nil)
}

var admin = model.Actor{UserID: 7, Role: model.RoleAdmin}

func TestInstantiate_CopiesTemplateItems(t *testing.T) {
	ctx := context.Background()
	_, engine := newChecklistFixture()

	inst, err := engine.Instantiate(ctx, 10, 1, 1, admin)
	require.NoError(t, err)
	require.Equal(t, model.ChecklistInProgress, inst.Status)
	require.Len(t, inst.Items, 3)
	for i, item := range inst.Items {
		require.Equal(t, model.ItemPending, item.Status)
		require.Equal(t, i+1, item.SortOrder)
	}
	require.Equal(t, "Sign engagement letter", inst.Items[0].Name)
	require.False(t, inst.Items[2].Required)
}

func TestInstantiate_ConflictWhileInProgress(t *testing.T) {
	ctx := context.Background()
	_, engine := newChecklistFixture()

	first, err := engine.Instantiate(ctx, 10, 1, 1, admin)
	require.NoError(t, err)

	_, err = engine.Instantiate(ctx, 10, 1, 1, admin)
	require.ErrorIs(t, err, ErrInstantiationConflict)

	// After cancelling the first instance a new one may be created.
	require.NoError(t, engine.CancelInstance(ctx, 10, first.ID, admin))
	_, err = engine.Instantiate(ctx, 10, 1, 1, admin)
	require.NoError(t, err)
}

func TestInstantiate_AllowedAgainAfterCompletion(t *testing.T) {
	ctx := context.Background()
	_, engine := newChecklistFixture()

	inst, err := engine.Instantiate(ctx, 10, 1, 1, admin)
	require.NoError(t, err)
	for _, item := range inst.Items {
		_, err = engine.CompleteItem(ctx, 10, item.ID, admin, CompleteOptions{})
		require.NoError(t, err)
	}

	_, err = engine.Instantiate(ctx, 10, 1, 1, admin)
	require.NoError(t, err)
}

func TestInstantiate_PermissionDenied(t *testing.T) {
	ctx := context.Background()
	_, engine := newChecklistFixture()

	member := model.Actor{UserID: 8, Role: model.RoleMember}
	_, err := engine.Instantiate(ctx, 10, 1, 1, member)
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestInstantiate_TemplateNotFound(t *testing.T) {
	ctx := context.Background()
	_, engine := newChecklistFixture()

	_, err := engine.Instantiate(ctx, 10, 1, 99, admin)
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestInstantiateForStage_NoDefaultTemplate(t *testing.T) {
	ctx := context.Background()
	_, engine := newChecklistFixture()

	err := engine.InstantiateForStage(ctx, 10, 1, model.ChecklistKindOffboarding)
	require.ErrorIs(t, err, ErrNoDefaultTemplate)
}

func TestCompleteItem_CascadesToInstance(t *testing.T) {
	ctx := context.Background()
	_, engine := newChecklistFixture()

	inst, err := engine.Instantiate(ctx, 10, 1, 1, admin)
	require.NoError(t, err)

	evidence := uint(42)
	updated, err := engine.CompleteItem(ctx, 10, inst.Items[0].ID, admin, CompleteOptions{
		Notes:              "signed copy on file",
		EvidenceDocumentID: &evidence,
	})
	require.NoError(t, err)
	require.Equal(t, model.ChecklistInProgress, updated.Status)
	require.Equal(t, model.ItemCompleted, updated.Items[0].Status)
	require.NotNil(t, updated.Items[0].CompletedAt)
	require.Equal(t, admin.UserID, *updated.Items[0].CompletedBy)
	require.Equal(t, evidence, *updated.Items[0].EvidenceDocumentID)

	updated, err = engine.CompleteItem(ctx, 10, inst.Items[1].ID, admin, CompleteOptions{})
	require.NoError(t, err)
	require.Equal(t, model.ChecklistInProgress, updated.Status)

	updated, err = engine.SkipItem(ctx, 10, inst.Items[2].ID, admin, "customer declined a call")
	require.NoError(t, err)
	require.Equal(t, model.ChecklistCompleted, updated.Status,
		"instance completes once every item is completed or skipped")
}

func TestSkipItem_RequiresReason(t *testing.T) {
	ctx := context.Background()
	store, engine := newChecklistFixture()

	inst, err := engine.Instantiate(ctx, 10, 1, 1, admin)
	require.NoError(t, err)

	_, err = engine.SkipItem(ctx, 10, inst.Items[0].ID, admin, "  ")
	require.ErrorIs(t, err, ErrInvalidSkipReason)

	// Rejected before mutation: the item is untouched.
	items, err := store.InstanceItems(ctx, 10, inst.ID)
	require.NoError(t, err)
	require.Equal(t, model.ItemPending, items[0].Status)
}

func TestReopenItem_RevertsCompletedInstance(t *testing.T) {
	ctx := context.Background()
	_, engine := newChecklistFixture()

	inst, err := engine.Instantiate(ctx, 10, 1, 1, admin)
	require.NoError(t, err)

	var updated *model.ChecklistInstance
	for _, item := range inst.Items {
		updated, err = engine.CompleteItem(ctx, 10, item.ID, admin, CompleteOptions{})
		require.NoError(t, err)
	}
	require.Equal(t, model.ChecklistCompleted, updated.Status)

	// Completion is not sticky.
	updated, err = engine.ReopenItem(ctx, 10, inst.Items[1].ID, admin)
	require.NoError(t, err)
	require.Equal(t, model.ChecklistInProgress, updated.Status)
	require.Equal(t, model.ItemPending, updated.Items[1].Status)
	require.Nil(t, updated.Items[1].CompletedAt)

	// Completing it again completes the instance again.
	updated, err = engine.CompleteItem(ctx, 10, inst.Items[1].ID, admin, CompleteOptions{})
	require.NoError(t, err)
	require.Equal(t, model.ChecklistCompleted, updated.Status)
}

func TestItemMutations_RejectedOnCancelledInstance(t *testing.T) {
	ctx := context.Background()
	store, engine := newChecklistFixture()

	inst, err := engine.Instantiate(ctx, 10, 1, 1, admin)
	require.NoError(t, err)
	_, err = engine.CompleteItem(ctx, 10, inst.Items[0].ID, admin, CompleteOptions{})
	require.NoError(t, err)
	require.NoError(t, engine.CancelInstance(ctx, 10, inst.ID, admin))

	// Completing the already-completed item must not resurrect the instance
	// as COMPLETED, and reopening it must not revert it to IN_PROGRESS.
	_, err = engine.CompleteItem(ctx, 10, inst.Items[0].ID, admin, CompleteOptions{})
	require.ErrorIs(t, err, ErrItemNotActionable)
	_, err = engine.ReopenItem(ctx, 10, inst.Items[0].ID, admin)
	require.ErrorIs(t, err, ErrItemNotActionable)
	_, err = engine.SkipItem(ctx, 10, inst.Items[1].ID, admin, "no longer needed")
	require.ErrorIs(t, err, ErrItemNotActionable)

	got, err := store.GetInstance(ctx, 10, inst.ID)
	require.NoError(t, err)
	require.Equal(t, model.ChecklistCancelled, got.Status)
}

func TestReopenItem_OnlyResolvedItems(t *testing.T) {
	ctx := context.Background()
	_, engine := newChecklistFixture()

	inst, err := engine.Instantiate(ctx, 10, 1, 1, admin)
	require.NoError(t, err)

	_, err = engine.ReopenItem(ctx, 10, inst.Items[0].ID, admin)
	require.ErrorIs(t, err, ErrItemNotReopenable)
}

func TestActiveInstance_Selection(t *testing.T) {
	ctx := context.Background()
	store, engine := newChecklistFixture()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seed := func(id uint, status model.ChecklistInstanceStatus, createdAt time.Time) {
		store.instances[id] = &model.ChecklistInstance{
			ID: id, TenantID: 10, TemplateID: 1, CustomerID: 5,
			Status: status, CreatedAt: createdAt,
		}
	}

	// No in-progress instance: the most recently created one wins.
	seed(1, model.ChecklistCompleted, base)
	seed(2, model.ChecklistCancelled, base.Add(48*time.Hour))
	chosen, err := engine.ActiveInstance(ctx, 10, 5)
	require.NoError(t, err)
	require.Equal(t, uint(2), chosen.ID)

	// An in-progress instance beats newer terminal ones, and the most
	// recent in-progress one wins.
	seed(3, model.ChecklistInProgress, base.Add(24*time.Hour))
	seed(4, model.ChecklistInProgress, base.Add(36*time.Hour))
	chosen, err = engine.ActiveInstance(ctx, 10, 5)
	require.NoError(t, err)
	require.Equal(t, uint(4), chosen.ID)
}

func TestActiveInstance_NoneExists(t *testing.T) {
	ctx := context.Background()
	_, engine := newChecklistFixture()

	chosen, err := engine.ActiveInstance(ctx, 10, 5)
	require.NoError(t, err)
	require.Nil(t, chosen)
}
