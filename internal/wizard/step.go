package wizard

import (
	"fmt"
	"strings"

	"github.com/wolfman30/spa-booking-wizard/internal/catalog"
)

// Step is one stage of the booking flow.
type Step string

const (
	StepCategory  Step = "category"
	StepService   Step = "service"
	StepTherapist Step = "therapist"
	StepTimeslot  Step = "timeslot"
	StepConfirm   Step = "confirm"
)

// Steps lists every step in flow order.
var Steps = []Step{StepCategory, StepService, StepTherapist, StepTimeslot, StepConfirm}

// ParseStep validates a step name.
func ParseStep(v string) (Step, error) {
	s := Step(strings.ToLower(strings.TrimSpace(v)))
	if s.Index() < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidStep, v)
	}
	return s, nil
}

// Index is the step's position in the flow, or -1.
func (s Step) Index() int {
	for i, step := range Steps {
		if step == s {
			return i
		}
	}
	return -1
}

// Selectable reports whether a choice is made at this step.
func (s Step) Selectable() bool {
	i := s.Index()
	return i >= 0 && s != StepConfirm
}

func (s Step) next() Step {
	i := s.Index()
	if i < 0 || i >= len(Steps)-1 {
		return s
	}
	return Steps[i+1]
}

func (s Step) prev() Step {
	i := s.Index()
	if i <= 0 {
		return s
	}
	return Steps[i-1]
}

func (s Step) resource() catalog.Resource {
	switch s {
	case StepCategory:
		return catalog.ResourceCategories
	case StepService:
		return catalog.ResourceServices
	case StepTherapist:
		return catalog.ResourceTherapists
	case StepTimeslot:
		return catalog.ResourceTimeslots
	}
	return ""
}
