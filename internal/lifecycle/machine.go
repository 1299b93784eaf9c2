package lifecycle

import (
	"fmt"

	"lifecycle-service/internal/model"
)

// transition describes one legal edge of the lifecycle graph.
type transition struct {
	To    model.LifecycleStatus
	Label string
	// ChecklistKind is non-empty when entering the target stage should
	// instantiate the organization's default checklist of that kind.
	ChecklistKind model.ChecklistKind
}

// transitionTable is the single source of truth for the lifecycle graph.
// There is deliberately no stage-skipping edge (e.g. PROSPECT straight to
// ACTIVE): re-engagement after a full offboarding goes back through
// ONBOARDING so the checklist gate applies again.
var transitionTable = map[model.LifecycleStatus][]transition{
	model.StatusProspect: {
		{To: model.StatusOnboarding, Label: "Start Onboarding", ChecklistKind: model.ChecklistKindOnboarding},
	},
	model.StatusOnboarding: {
		{To: model.StatusActive, Label: "Activate"},
	},
	model.StatusActive: {
		{To: model.StatusDormant, Label: "Mark Dormant"},
		{To: model.StatusOffboarding, Label: "Offboard Customer", ChecklistKind: model.ChecklistKindOffboarding},
	},
	model.StatusDormant: {
		{To: model.StatusActive, Label: "Reactivate"},
	},
	model.StatusOffboarding: {
		{To: model.StatusOffboarded, Label: "Complete Offboarding"},
	},
	model.StatusOffboarded: {
		{To: model.StatusOnboarding, Label: "Reactivate", ChecklistKind: model.ChecklistKindOnboarding},
	},
}

// CanTransition reports whether from -> to is a legal lifecycle transition.
// The returned reason is human-readable and only set when the transition is
// rejected. The decision depends on nothing but the two statuses.
func CanTransition(from, to model.LifecycleStatus) (bool, string) {
	if !model.IsValidLifecycleStatus(from) {
		return false, fmt.Sprintf("unknown lifecycle status %q", from)
	}
	if !model.IsValidLifecycleStatus(to) {
		return false, fmt.Sprintf("unknown lifecycle status %q", to)
	}
	for _, t := range transitionTable[from] {
		if t.To == to {
			return true, ""
		}
	}
	return false, fmt.Sprintf("cannot transition from %s to %s", from, to)
}

// AvailableTransitions returns the legal target statuses from the given stage.
func AvailableTransitions(from model.LifecycleStatus) []model.LifecycleStatus {
	edges := transitionTable[from]
	targets := make([]model.LifecycleStatus, 0, len(edges))
	for _, t := range edges {
		targets = append(targets, t.To)
	}
	return targets
}

// TransitionOption is one legal transition with its display label, as
// surfaced by the available-transitions endpoint.
type TransitionOption struct {
	To    model.LifecycleStatus `json:"to"`
	Label string                `json:"label"`
}

// AvailableTransitionOptions returns the legal transitions with labels.
func AvailableTransitionOptions(from model.LifecycleStatus) []TransitionOption {
	edges := transitionTable[from]
	options := make([]TransitionOption, 0, len(edges))
	for _, t := range edges {
		options = append(options, TransitionOption{To: t.To, Label: t.Label})
	}
	return options
}

// checklistKindFor returns the checklist side effect declared for entering
// the target stage, or empty when the stage requires none.
func checklistKindFor(from, to model.LifecycleStatus) model.ChecklistKind {
	for _, t := range transitionTable[from] {
		if t.To == to {
			return t.ChecklistKind
		}
	}
	return ""
}
