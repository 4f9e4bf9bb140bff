package wizard

import (
	"fmt"
	"time"
)

// State is the selection state of one booking flow.
// An empty selection string means nothing is chosen at that step.
type State struct {
	SessionID   string    `json:"sessionId"`
	UserID      string    `json:"userId"`
	Step        Step      `json:"step"`
	CategoryID  string    `json:"categoryId,omitempty"`
	ServiceID   string    `json:"serviceId,omitempty"`
	TherapistID string    `json:"therapistId,omitempty"`
	Timeslot    string    `json:"timeslot,omitempty"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Selection returns the id chosen at step.
func (s State) Selection(step Step) string {
	switch step {
	case StepCategory:
		return s.CategoryID
	case StepService:
		return s.ServiceID
	case StepTherapist:
		return s.TherapistID
	case StepTimeslot:
		return s.Timeslot
	}
	return ""
}

func (s *State) setSelection(step Step, id string) {
	switch step {
	case StepCategory:
		s.CategoryID = id
	case StepService:
		s.ServiceID = id
	case StepTherapist:
		s.TherapistID = id
	case StepTimeslot:
		s.Timeslot = id
	}
}

// ParentID is the upstream selection that keys the option list of step.
func (s State) ParentID(step Step) string {
	if step == StepCategory || !step.Selectable() {
		return ""
	}
	return s.Selection(step.prev())
}

// Complete reports whether all four selections are made.
func (s State) Complete() bool {
	return s.CategoryID != "" && s.ServiceID != "" && s.TherapistID != "" && s.Timeslot != ""
}

// Validate checks that selections form a prefix of the flow and that the
// pointer does not pass the first missing selection.
func (s State) Validate() error {
	pointer := s.Step.Index()
	if pointer < 0 {
		return fmt.Errorf("%w: unknown step %q", ErrInvalidState, s.Step)
	}
	firstEmpty := StepConfirm.Index()
	for i, step := range Steps[:StepConfirm.Index()] {
		if s.Selection(step) == "" {
			if i < firstEmpty {
				firstEmpty = i
			}
			continue
		}
		if i > firstEmpty {
			return fmt.Errorf("%w: %s selected without %s", ErrInvalidState, step, Steps[firstEmpty])
		}
	}
	if pointer > firstEmpty {
		return fmt.Errorf("%w: at %s with no %s selected", ErrInvalidState, s.Step, Steps[firstEmpty])
	}
	return nil
}
