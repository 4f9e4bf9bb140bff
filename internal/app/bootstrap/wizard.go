package bootstrap

import (
	"fmt"

	"github.com/wolfman30/spa-booking-wizard/internal/backend"
	"github.com/wolfman30/spa-booking-wizard/internal/catalog"
	appconfig "github.com/wolfman30/spa-booking-wizard/internal/config"
	"github.com/wolfman30/spa-booking-wizard/internal/events"
	"github.com/wolfman30/spa-booking-wizard/internal/observability/metrics"
	"github.com/wolfman30/spa-booking-wizard/internal/wizard"
	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

// WizardDeps are the optional collaborators of the wizard service.
type WizardDeps struct {
	Metrics     *metrics.WizardMetrics
	Persistence *Persistence
	Publisher   *events.Publisher
}

// BuildWizardService wires the catalog cache and wizard service around the backend client.
func BuildWizardService(cfg *appconfig.Config, client *backend.Client, stores *StateStores, deps WizardDeps, logger *logging.Logger) (*wizard.Service, error) {
	if cfg == nil || client == nil || stores == nil {
		return nil, fmt.Errorf("bootstrap: config, backend client and stores are required")
	}
	policy, err := wizard.ParseAdvancePolicy(cfg.WizardAdvancePolicy)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	source := catalog.NewCachedSource(client, stores.Catalog, cfg.CatalogCacheTTL, deps.Metrics, logger)
	opts := []wizard.ServiceOption{
		wizard.WithPolicy(policy),
		wizard.WithSessionTTL(cfg.WizardSessionTTL),
		wizard.WithMetrics(deps.Metrics),
		wizard.WithLogger(logger),
	}
	if p := deps.Persistence; p != nil {
		if p.Bookings != nil {
			opts = append(opts, wizard.WithLedger(p.Bookings))
		}
		if p.Audit != nil {
			opts = append(opts, wizard.WithAudit(p.Audit))
		}
	}
	if deps.Publisher != nil {
		opts = append(opts, wizard.WithPublisher(deps.Publisher))
	}
	return wizard.NewService(stores.Wizard, source, client, opts...), nil
}
