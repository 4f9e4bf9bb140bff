package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/wolfman30/spa-booking-wizard/internal/observability/metrics"
	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

const DefaultTTL = 15 * time.Minute

// CachedSource serves option lists from a per-session cache, falling back to
// the upstream Source. Errors are returned to the caller but never cached.
type CachedSource struct {
	source  Source
	cache   Cache
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.WizardMetrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

func NewCachedSource(source Source, cache Cache, ttl time.Duration, m *metrics.WizardMetrics, logger *logging.Logger) *CachedSource {
	if source == nil {
		panic("catalog: source cannot be nil")
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedSource{
		source:  source,
		cache:   cache,
		ttl:     ttl,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("spa.internal.catalog"),
	}
}

// Options returns the option list for resource under parentID, scoped to one wizard session.
// A gated fetch (no parent yet) returns nil without touching the upstream.
func (s *CachedSource) Options(ctx context.Context, sessionID string, resource Resource, parentID string) ([]Option, error) {
	if Gated(resource, parentID) {
		return nil, nil
	}

	ctx, span := s.tracer.Start(ctx, "catalog.options")
	defer span.End()
	span.SetAttributes(
		attribute.String("catalog.resource", string(resource)),
		attribute.String("catalog.parent_id", parentID),
	)

	field := fieldKey(resource, parentID)
	if data, ok, err := s.cache.Get(ctx, sessionID, field); err != nil {
		s.logger.Warn("catalog cache read failed", "session_id", sessionID, "resource", resource, "error", err)
	} else if ok {
		var opts []Option
		if err := json.Unmarshal(data, &opts); err == nil {
			s.metrics.ObserveFetch(string(resource), "hit")
			return opts, nil
		}
		s.logger.Warn("catalog cache entry undecodable", "session_id", sessionID, "resource", resource)
	}

	v, err, _ := s.group.Do(sessionID+"|"+field, func() (interface{}, error) {
		start := time.Now()
		opts, err := fetch(ctx, s.source, resource, parentID)
		s.metrics.ObserveFetchLatency(string(resource), time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(opts)
		if err == nil {
			err = s.cache.Set(ctx, sessionID, field, data, s.ttl)
		}
		if err != nil {
			s.logger.Warn("catalog cache write failed", "session_id", sessionID, "resource", resource, "error", err)
		}
		return opts, nil
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveFetch(string(resource), "error")
		return nil, fmt.Errorf("catalog: fetch %s: %w", resource, err)
	}
	s.metrics.ObserveFetch(string(resource), "miss")
	return v.([]Option), nil
}

// Invalidate drops everything cached for a wizard session.
func (s *CachedSource) Invalidate(ctx context.Context, sessionID string) error {
	return s.cache.Drop(ctx, sessionID)
}

func fieldKey(resource Resource, parentID string) string {
	return string(resource) + ":" + parentID
}
