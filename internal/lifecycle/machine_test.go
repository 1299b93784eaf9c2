package lifecycle

import (
	"testing"

	"lifecycle-service/internal/model"

	"github.com/stretchr/testify/require"
)

var legalEdges = map[model.LifecycleStatus][]model.LifecycleStatus{
	model.StatusProspect:    {model.StatusOnboarding},
	model.StatusOnboarding:  {model.StatusActive},
	model.StatusActive:      {model.StatusDormant, model.StatusOffboarding},
	model.StatusDormant:     {model.StatusActive},
	model.StatusOffboarding: {model.StatusOffboarded},
	model.StatusOffboarded:  {model.StatusOnboarding},
}

func isLegal(from, to model.LifecycleStatus) bool {
	for _, t := range legalEdges[from] {
		if t == to {
			return true
		}
	}
	return false
}

func TestCanTransition_AllPairs(t *testing.T) {
	for _, from := range model.AllLifecycleStatuses {
		for _, to := range model.AllLifecycleStatuses {
			ok, reason := CanTransition(from, to)
			if isLegal(from, to) {
				require.True(t, ok, "%s -> %s should be legal", from, to)
				require.Empty(t, reason)
			} else {
				require.False(t, ok, "%s -> %s should be illegal", from, to)
				require.NotEmpty(t, reason, "%s -> %s needs a rejection reason", from, to)
			}
		}
	}
}

func TestCanTransition_Deterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		ok, _ := CanTransition(model.StatusActive, model.StatusDormant)
		require.True(t, ok)
		ok, _ = CanTransition(model.StatusProspect, model.StatusActive)
		require.False(t, ok, "stage skipping must stay illegal")
	}
}

func TestCanTransition_UnknownStatus(t *testing.T) {
	ok, reason := CanTransition("BOGUS", model.StatusActive)
	require.False(t, ok)
	require.Contains(t, reason, "BOGUS")

	ok, reason = CanTransition(model.StatusActive, "BOGUS")
	require.False(t, ok)
	require.Contains(t, reason, "BOGUS")
}

func TestAvailableTransitions(t *testing.T) {
	for from, want := range legalEdges {
		require.ElementsMatch(t, want, AvailableTransitions(from), "targets from %s", from)
	}
}

func TestAvailableTransitionOptions_Labels(t *testing.T) {
	options := AvailableTransitionOptions(model.StatusActive)
	labels := make(map[model.LifecycleStatus]string)
	for _, o := range options {
		labels[o.To] = o.Label
	}
	require.Equal(t, "Mark Dormant", labels[model.StatusDormant])
	require.Equal(t, "Offboard Customer", labels[model.StatusOffboarding])
}

func TestChecklistKindFor(t *testing.T) {
	require.Equal(t, model.ChecklistKindOnboarding, checklistKindFor(model.StatusProspect, model.StatusOnboarding))
	require.Equal(t, model.ChecklistKindOnboarding, checklistKindFor(model.StatusOffboarded, model.StatusOnboarding))
	require.Equal(t, model.ChecklistKindOffboarding, checklistKindFor(model.StatusActive, model.StatusOffboarding))
	require.Empty(t, checklistKindFor(model.StatusOnboarding, model.StatusActive))
	require.Empty(t, checklistKindFor(model.StatusActive, model.StatusDormant))
}
