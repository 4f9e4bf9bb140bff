// Package catalog fetches the option lists behind each wizard step and caches
// them per wizard session, keyed by the upstream selection they depend on.
package catalog

import (
	"context"
	"errors"
	"slices"

	"github.com/wolfman30/spa-booking-wizard/internal/backend"
)

// Resource names one dependent option list.
type Resource string

const (
	ResourceCategories Resource = "categories"
	ResourceServices   Resource = "services"
	ResourceTherapists Resource = "therapists"
	ResourceTimeslots  Resource = "timeslots"
)

// ErrUnknownResource is returned for a resource outside the four wizard lists.
var ErrUnknownResource = errors.New("catalog: unknown resource")

// Source is the upstream that owns the catalog. *backend.Client satisfies it.
type Source interface {
	Categories(ctx context.Context) ([]backend.Category, error)
	Services(ctx context.Context, categoryID string) ([]backend.Service, error)
	Therapists(ctx context.Context, serviceID string) ([]backend.Therapist, error)
	Timeslots(ctx context.Context, therapistID string) ([]string, error)
}

// Option is one selectable entry rendered at a wizard step.
type Option struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Duration    int     `json:"duration,omitempty"`
}

// Contains reports whether id is one of opts.
func Contains(opts []Option, id string) bool {
	for _, o := range opts {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Gated reports whether a fetch must be skipped because its parent is not chosen yet.
func Gated(resource Resource, parentID string) bool {
	return resource != ResourceCategories && parentID == ""
}

func fetch(ctx context.Context, src Source, resource Resource, parentID string) ([]Option, error) {
	switch resource {
	case ResourceCategories:
		items, err := src.Categories(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]Option, 0, len(items))
		for _, c := range items {
			out = append(out, Option{ID: c.ID.String(), Name: c.Name, Description: c.Description})
		}
		return out, nil
	case ResourceServices:
		items, err := src.Services(ctx, parentID)
		if err != nil {
			return nil, err
		}
		// the backend has been seen returning the whole list when the filter is ignored.
		// Once any record names its category the reply is treated as unscoped and
		// records without one are dropped; a reply naming none is trusted as filtered.
		scoped := !slices.ContainsFunc(items, func(s backend.Service) bool { return s.CategoryID != "" })
		out := make([]Option, 0, len(items))
		for _, s := range items {
			if !scoped && s.CategoryID.String() != parentID {
				continue
			}
			out = append(out, Option{ID: s.ID.String(), Name: s.Name, Price: s.Price, Duration: s.Duration})
		}
		return out, nil
	case ResourceTherapists:
		items, err := src.Therapists(ctx, parentID)
		if err != nil {
			return nil, err
		}
		scoped := !slices.ContainsFunc(items, func(t backend.Therapist) bool { return len(t.ServiceIDs) > 0 })
		out := make([]Option, 0, len(items))
		for _, t := range items {
			if !scoped && !offers(t, parentID) {
				continue
			}
			out = append(out, Option{ID: t.ID.String(), Name: t.Name})
		}
		return out, nil
	case ResourceTimeslots:
		items, err := src.Timeslots(ctx, parentID)
		if err != nil {
			return nil, err
		}
		out := make([]Option, 0, len(items))
		for _, slot := range items {
			out = append(out, Option{ID: slot, Name: slot})
		}
		return out, nil
	default:
		return nil, ErrUnknownResource
	}
}

func offers(t backend.Therapist, serviceID string) bool {
	for _, id := range t.ServiceIDs {
		if id.String() == serviceID {
			return true
		}
	}
	return false
}
