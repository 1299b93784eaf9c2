package retention

import (
	"context"
	"testing"
	"time"

	"lifecycle-service/internal/model"

	"github.com/stretchr/testify/require"
)

var checkTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fakePolicies struct {
	policies []model.RetentionPolicy
}

func (f *fakePolicies) ActivePolicies(_ context.Context, _ uint) ([]model.RetentionPolicy, error) {
	return f.policies, nil
}

type fakeRecords struct {
	candidates map[model.RecordType][]RecordRef
	applyErr   map[uint]error
	applied    []appliedAction
}

type appliedAction struct {
	recordType model.RecordType
	recordID   uint
	action     model.RetentionAction
}

func (f *fakeRecords) Candidates(_ context.Context, _ uint, recordType model.RecordType) ([]RecordRef, error) {
	return f.candidates[recordType], nil
}

func (f *fakeRecords) Apply(_ context.Context, _ uint, recordType model.RecordType, recordID uint, action model.RetentionAction) error {
	if err := f.applyErr[recordID]; err != nil {
		return err
	}
	f.applied = append(f.applied, appliedAction{recordType, recordID, action})
	return nil
}

type fakeTriggers struct {
	offboardedAt map[uint]time.Time
}

func (f *fakeTriggers) LastTransitionAt(_ context.Context, _, customerID uint, to model.LifecycleStatus) (*time.Time, error) {
	if to != model.StatusOffboarded {
		return nil, nil
	}
	t, ok := f.offboardedAt[customerID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

type fakeLogs struct {
	entries []model.RetentionExecutionLog
}

func (f *fakeLogs) Append(_ context.Context, entry *model.RetentionExecutionLog) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func daysAgo(n int) time.Time {
	return checkTime.Add(-time.Duration(n) * 24 * time.Hour)
}

func ref(id uint) RecordRef {
	return RecordRef{ID: id, CustomerID: &id, CreatedAt: daysAgo(1000)}
}

func newEngineFixture(policies []model.RetentionPolicy, records *fakeRecords, triggers *fakeTriggers) (*Engine, *fakeLogs) {
	logs := &fakeLogs{}
	if triggers == nil {
		triggers = &fakeTriggers{}
	}
	e := NewEngine(&fakePolicies{policies: policies}, records, triggers, logs, 2, nil)
	e.now = func() time.Time { return checkTime }
	return e, logs
}

var admin = model.Actor{UserID: 7, Role: model.RoleAdmin}

func TestRunCheck_RecordCreatedTrigger(t *testing.T) {
	records := &fakeRecords{candidates: map[model.RecordType][]RecordRef{
		model.RecordTypeDocument: {
			{ID: 1, CreatedAt: daysAgo(400)},
			{ID: 2, CreatedAt: daysAgo(365)},
			{ID: 3, CreatedAt: daysAgo(300)},
		},
	}}
	engine, _ := newEngineFixture([]model.RetentionPolicy{
		{ID: 1, TenantID: 10, RecordType: model.RecordTypeDocument, RetentionDays: 365,
			TriggerEvent: model.TriggerRecordCreated, Action: model.ActionArchive, Active: true},
	}, records, nil)

	result, err := engine.RunCheck(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, result.TotalFlagged)

	flagged := result.Flagged[model.RecordTypeDocument]
	require.Len(t, flagged, 2)
	require.Equal(t, FlaggedRecord{RecordID: 1, Action: model.ActionArchive, PolicyID: 1}, flagged[0])
	require.Equal(t, uint(2), flagged[1].RecordID, "exactly at the retention period counts as expired")

	require.Empty(t, records.applied, "a check is a dry run")
}

func TestRunCheck_OffboardedTrigger(t *testing.T) {
	records := &fakeRecords{candidates: map[model.RecordType][]RecordRef{
		model.RecordTypeCustomer: {ref(1), ref(2), ref(3)},
	}}
	triggers := &fakeTriggers{offboardedAt: map[uint]time.Time{
		1: daysAgo(400), // past the retention period
		2: daysAgo(300), // offboarded, but not long enough ago
		// 3 was never offboarded
	}}
	engine, _ := newEngineFixture([]model.RetentionPolicy{
		{ID: 1, TenantID: 10, RecordType: model.RecordTypeCustomer, RetentionDays: 365,
			TriggerEvent: model.TriggerCustomerOffboarded, Action: model.ActionAnonymize, Active: true},
	}, records, triggers)

	result, err := engine.RunCheck(context.Background(), 10)
	require.NoError(t, err)

	flagged := result.Flagged[model.RecordTypeCustomer]
	require.Len(t, flagged, 1)
	require.Equal(t, uint(1), flagged[0].RecordID)
	require.Equal(t, model.ActionAnonymize, flagged[0].Action)
}

func TestRunCheck_MostRestrictiveActionWins(t *testing.T) {
	records := &fakeRecords{candidates: map[model.RecordType][]RecordRef{
		model.RecordTypeDocument: {{ID: 1, CreatedAt: daysAgo(500)}},
	}}
	engine, _ := newEngineFixture([]model.RetentionPolicy{
		{ID: 1, TenantID: 10, RecordType: model.RecordTypeDocument, RetentionDays: 365,
			TriggerEvent: model.TriggerRecordCreated, Action: model.ActionFlag, Active: true},
		{ID: 2, TenantID: 10, RecordType: model.RecordTypeDocument, RetentionDays: 400,
			TriggerEvent: model.TriggerRecordCreated, Action: model.ActionPurge, Active: true},
		{ID: 3, TenantID: 10, RecordType: model.RecordTypeDocument, RetentionDays: 450,
			TriggerEvent: model.TriggerRecordCreated, Action: model.ActionArchive, Active: true},
	}, records, nil)

	result, err := engine.RunCheck(context.Background(), 10)
	require.NoError(t, err)

	flagged := result.Flagged[model.RecordTypeDocument]
	require.Len(t, flagged, 1, "one record, one flag, regardless of how many policies match")
	require.Equal(t, model.ActionPurge, flagged[0].Action)
	require.Equal(t, uint(2), flagged[0].PolicyID, "the flag carries the policy that imposed the effective action")
}

func TestExecute_PartialFailureDoesNotAbort(t *testing.T) {
	records := &fakeRecords{
		candidates: map[model.RecordType][]RecordRef{
			model.RecordTypeCustomer: {ref(1), ref(2), ref(3)},
		},
		applyErr: map[uint]error{2: ErrRecordLocked},
	}
	triggers := &fakeTriggers{offboardedAt: map[uint]time.Time{
		1: daysAgo(400), 2: daysAgo(400), 3: daysAgo(400),
	}}
	engine, logs := newEngineFixture([]model.RetentionPolicy{
		{ID: 9, TenantID: 10, RecordType: model.RecordTypeCustomer, RetentionDays: 365,
			TriggerEvent: model.TriggerCustomerOffboarded, Action: model.ActionPurge, Active: true},
	}, records, triggers)

	result, err := engine.Execute(context.Background(), 10, model.RecordTypeCustomer, []uint{1, 2, 3}, admin)
	require.NoError(t, err)
	require.Equal(t, []uint{1, 3}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	require.Equal(t, uint(2), result.Failed[0].RecordID)
	require.Contains(t, result.Failed[0].Reason, ErrRecordLocked.Error())

	require.Len(t, logs.entries, 1)
	entry := logs.entries[0]
	require.Equal(t, uint(9), entry.PolicyID)
	require.Equal(t, model.ActionPurge, entry.Action)
	require.Equal(t, "1,2,3", entry.RecordIDs)
	require.Equal(t, 2, entry.Succeeded)
	require.Equal(t, 1, entry.Failed)
	require.Equal(t, admin.UserID, entry.ActorID)
	require.Equal(t, "user", entry.ActorType)
}

func TestExecute_UnmatchedRecordsFail(t *testing.T) {
	records := &fakeRecords{candidates: map[model.RecordType][]RecordRef{
		model.RecordTypeDocument: {{ID: 1, CreatedAt: daysAgo(400)}},
	}}
	engine, logs := newEngineFixture([]model.RetentionPolicy{
		{ID: 1, TenantID: 10, RecordType: model.RecordTypeDocument, RetentionDays: 365,
			TriggerEvent: model.TriggerRecordCreated, Action: model.ActionFlag, Active: true},
	}, records, nil)

	// Record 5 is not matched by any policy: the caller cannot force an
	// action onto it by naming it in the request.
	result, err := engine.Execute(context.Background(), 10, model.RecordTypeDocument, []uint{1, 5}, admin)
	require.NoError(t, err)
	require.Equal(t, []uint{1}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	require.Equal(t, uint(5), result.Failed[0].RecordID)
	require.Contains(t, result.Failed[0].Reason, "not matched")

	require.Len(t, logs.entries, 1)
	require.Equal(t, "1", logs.entries[0].RecordIDs)
}

func TestExecute_AppliesEffectiveActionNotRequested(t *testing.T) {
	records := &fakeRecords{candidates: map[model.RecordType][]RecordRef{
		model.RecordTypeDocument: {{ID: 1, CreatedAt: daysAgo(500)}},
	}}
	engine, _ := newEngineFixture([]model.RetentionPolicy{
		{ID: 1, TenantID: 10, RecordType: model.RecordTypeDocument, RetentionDays: 365,
			TriggerEvent: model.TriggerRecordCreated, Action: model.ActionFlag, Active: true},
		{ID: 2, TenantID: 10, RecordType: model.RecordTypeDocument, RetentionDays: 365,
			TriggerEvent: model.TriggerRecordCreated, Action: model.ActionAnonymize, Active: true},
	}, records, nil)

	_, err := engine.Execute(context.Background(), 10, model.RecordTypeDocument, []uint{1}, admin)
	require.NoError(t, err)
	require.Len(t, records.applied, 1)
	require.Equal(t, model.ActionAnonymize, records.applied[0].action)
}

func TestExecute_BatchesLargerThanBatchSize(t *testing.T) {
	candidates := make([]RecordRef, 0, 5)
	ids := make([]uint, 0, 5)
	for id := uint(1); id <= 5; id++ {
		candidates = append(candidates, RecordRef{ID: id, CreatedAt: daysAgo(400)})
		ids = append(ids, id)
	}
	records := &fakeRecords{candidates: map[model.RecordType][]RecordRef{
		model.RecordTypeDocument: candidates,
	}}
	// batchSize is 2 in the fixture; five records span three chunks.
	engine, logs := newEngineFixture([]model.RetentionPolicy{
		{ID: 1, TenantID: 10, RecordType: model.RecordTypeDocument, RetentionDays: 365,
			TriggerEvent: model.TriggerRecordCreated, Action: model.ActionArchive, Active: true},
	}, records, nil)

	result, err := engine.Execute(context.Background(), 10, model.RecordTypeDocument, ids, admin)
	require.NoError(t, err)
	require.Equal(t, ids, result.Succeeded)
	require.Empty(t, result.Failed)
	require.Len(t, logs.entries, 1)
	require.Equal(t, "1,2,3,4,5", logs.entries[0].RecordIDs)
}

func TestExecute_PermissionDenied(t *testing.T) {
	records := &fakeRecords{candidates: map[model.RecordType][]RecordRef{}}
	engine, logs := newEngineFixture(nil, records, nil)

	member := model.Actor{UserID: 8, Role: model.RoleMember}
	_, err := engine.Execute(context.Background(), 10, model.RecordTypeDocument, []uint{1}, member)
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.Empty(t, records.applied)
	require.Empty(t, logs.entries)
}
