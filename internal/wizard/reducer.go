package wizard

import (
	"fmt"
	"strings"
)

// ActionKind names a wizard transition.
type ActionKind string

const (
	ActionSelect ActionKind = "select"
	ActionNext   ActionKind = "next"
	ActionBack   ActionKind = "back"
	ActionReset  ActionKind = "reset"
)

// Action is one user input applied to a State.
type Action struct {
	Kind ActionKind
	Step Step
	ID   string
}

func Select(step Step, id string) Action { return Action{Kind: ActionSelect, Step: step, ID: id} }
func Next() Action                       { return Action{Kind: ActionNext} }
func Back() Action                       { return Action{Kind: ActionBack} }
func Reset() Action                      { return Action{Kind: ActionReset} }

// AdvancePolicy controls whether a selection moves the pointer forward by itself.
type AdvancePolicy string

const (
	PolicyAuto   AdvancePolicy = "auto"
	PolicyManual AdvancePolicy = "manual"
)

func ParseAdvancePolicy(v string) (AdvancePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", string(PolicyAuto):
		return PolicyAuto, nil
	case string(PolicyManual):
		return PolicyManual, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, v)
}

// Reduce applies action to state and returns the new state together with the
// steps whose selections were cleared by the transition. The input is not modified.
//
// A select at a reached step that changes its value clears every later
// selection and moves the pointer back to that step. Re-selecting the current
// value leaves later selections alone. Under PolicyAuto a selection at the
// pointer advances it one step.
func Reduce(state State, action Action, policy AdvancePolicy) (State, []Step, error) {
	next := state
	switch action.Kind {
	case ActionSelect:
		step := action.Step
		if !step.Selectable() {
			return state, nil, fmt.Errorf("%w: cannot select at %q", ErrInvalidStep, step)
		}
		if step.Index() > state.Step.Index() {
			return state, nil, fmt.Errorf("%w: %s", ErrStepNotReached, step)
		}
		id := strings.TrimSpace(action.ID)
		if id == "" {
			return state, nil, ErrEmptySelection
		}

		var cleared []Step
		if state.Selection(step) != id {
			next.setSelection(step, id)
			for _, later := range Steps[step.Index()+1 : StepConfirm.Index()] {
				if next.Selection(later) != "" {
					cleared = append(cleared, later)
					next.setSelection(later, "")
				}
			}
			next.Step = step
		}
		if policy != PolicyManual && next.Step == step {
			next.Step = step.next()
		}
		return next, cleared, nil

	case ActionNext:
		if state.Step == StepConfirm {
			return state, nil, ErrTerminalStep
		}
		if state.Selection(state.Step) == "" {
			return state, nil, fmt.Errorf("%w: %s", ErrSelectionRequired, state.Step)
		}
		next.Step = state.Step.next()
		return next, nil, nil

	case ActionBack:
		if state.Step == StepCategory {
			return state, nil, ErrFirstStep
		}
		next.Step = state.Step.prev()
		return next, nil, nil

	case ActionReset:
		var cleared []Step
		for _, step := range Steps[:StepConfirm.Index()] {
			if state.Selection(step) != "" {
				cleared = append(cleared, step)
				next.setSelection(step, "")
			}
		}
		next.Step = StepCategory
		return next, cleared, nil
	}
	return state, nil, fmt.Errorf("wizard: unknown action %q", action.Kind)
}
