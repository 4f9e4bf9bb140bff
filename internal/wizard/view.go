package wizard

import (
	"time"

	"github.com/wolfman30/spa-booking-wizard/internal/catalog"
)

// Selections mirrors the chosen id per step.
type Selections struct {
	CategoryID  string `json:"categoryId,omitempty"`
	ServiceID   string `json:"serviceId,omitempty"`
	TherapistID string `json:"therapistId,omitempty"`
	Timeslot    string `json:"timeslot,omitempty"`
}

// Summary describes the pending booking on the confirm step.
type Summary struct {
	Category  catalog.Option `json:"category"`
	Service   catalog.Option `json:"service"`
	Therapist catalog.Option `json:"therapist"`
	Timeslot  string         `json:"timeslot"`
}

// View is what the front end renders for one session.
type View struct {
	SessionID  string           `json:"sessionId"`
	Step       Step             `json:"step"`
	Selections Selections       `json:"selections"`
	Options    []catalog.Option `json:"options"`
	Summary    *Summary         `json:"summary,omitempty"`
	CanNext    bool             `json:"canNext"`
	CanBack    bool             `json:"canBack"`
	CanConfirm bool             `json:"canConfirm"`
	Version    int64            `json:"version"`
	ExpiresAt  time.Time        `json:"expiresAt"`
}

func newView(state State, options []catalog.Option) *View {
	if options == nil {
		options = []catalog.Option{}
	}
	return &View{
		SessionID: state.SessionID,
		Step:      state.Step,
		Selections: Selections{
			CategoryID:  state.CategoryID,
			ServiceID:   state.ServiceID,
			TherapistID: state.TherapistID,
			Timeslot:    state.Timeslot,
		},
		Options:    options,
		CanNext:    state.Step != StepConfirm && state.Selection(state.Step) != "",
		CanBack:    state.Step != StepCategory,
		CanConfirm: state.Step == StepConfirm && state.Complete(),
		Version:    state.Version,
		ExpiresAt:  state.ExpiresAt,
	}
}

func findOption(opts []catalog.Option, id string) catalog.Option {
	for _, o := range opts {
		if o.ID == id {
			return o
		}
	}
	return catalog.Option{ID: id}
}
