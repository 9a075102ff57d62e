// ABOUTME: Position request service: load settings, fetch, obfuscate, persist cache
// ABOUTME: Also hosts the settings mutations shared by the CLI and MCP server

package obfuscate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harper/locguard/internal/level"
	"github.com/harper/locguard/internal/models"
	"github.com/harper/locguard/internal/policy"
	"github.com/harper/locguard/internal/source"
)

const tracerName = "github.com/harper/locguard/internal/obfuscate"

// SettingsStore is the persistence the service needs.
type SettingsStore interface {
	Load(ctx context.Context) (*models.Settings, error)
	Update(ctx context.Context, fn func(*models.Settings) error) error
	PutCacheEntry(ctx context.Context, level string, entry models.CacheEntry) error
}

// EventRecorder stores served requests.
type EventRecorder interface {
	Record(ctx context.Context, event models.CallEvent) error
}

// Metrics receives per-request measurements.
type Metrics interface {
	ObserveObfuscation(level, outcome string, displacement float64)
	IncAPICalls()
	IncSourceErrors()
}

// ServiceOptions holds the optional collaborators of a Service.
type ServiceOptions struct {
	Origins    policy.OriginResolver
	Tracker    *policy.Tracker
	Notifier   policy.Notifier
	Events     EventRecorder
	Metrics    Metrics
	Logger     *log.Logger
	Obfuscator *Obfuscator
}

// Service answers position requests on behalf of pages.
type Service struct {
	store    SettingsStore
	src      source.Source
	origins  policy.OriginResolver
	tracker  *policy.Tracker
	resolver *policy.Resolver
	notifier policy.Notifier
	events   EventRecorder
	metrics  Metrics
	logger   *log.Logger
	obf      *Obfuscator
	tracer   trace.Tracer
}

// NewService wires a service. Obfuscator is required; other options default
// to no-ops.
func NewService(store SettingsStore, src source.Source, opts ServiceOptions) (*Service, error) {
	if store == nil {
		return nil, errors.New("settings store is required")
	}
	if opts.Obfuscator == nil {
		return nil, errors.New("obfuscator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	origins := opts.Origins
	if origins == nil {
		origins = policy.FrameDelegation{}
	}

	return &Service{
		store:    store,
		src:      src,
		origins:  origins,
		tracker:  opts.Tracker,
		resolver: policy.NewResolver(opts.Tracker),
		notifier: opts.Notifier,
		events:   opts.Events,
		metrics:  opts.Metrics,
		logger:   logger,
		obf:      opts.Obfuscator,
		tracer:   otel.Tracer(tracerName),
	}, nil
}

// Settings returns the current settings snapshot.
func (s *Service) Settings(ctx context.Context) (*models.Settings, error) {
	return s.store.Load(ctx)
}

// GetNoisyPosition serves one position request for call.
func (s *Service) GetNoisyPosition(ctx context.Context, call policy.CallContext, opts source.FetchOptions) (models.Position, error) {
	res, err := s.Serve(ctx, call, opts)
	if err != nil {
		return models.Position{}, err
	}
	return res.Position, nil
}

// Serve is GetNoisyPosition with the full result, including the level and
// outcome that produced the position.
func (s *Service) Serve(ctx context.Context, call policy.CallContext, opts source.FetchOptions) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "GetNoisyPosition")
	defer span.End()

	origin := s.origins.CurrentOrigin(call)
	span.SetAttributes(attribute.String("locguard.origin", origin), attribute.Bool("locguard.in_frame", call.InFrame))

	if s.tracker != nil {
		s.tracker.Record(call, origin)
	}
	if s.metrics != nil {
		s.metrics.IncAPICalls()
	}

	res, err := s.serve(ctx, origin, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	span.SetAttributes(
		attribute.String("locguard.level", res.Level.Name),
		attribute.String("locguard.outcome", string(res.Outcome)),
	)
	if s.metrics != nil {
		s.metrics.ObserveObfuscation(res.Level.Name, string(res.Outcome), res.Displacement)
	}
	if s.events != nil {
		if err := s.events.Record(ctx, *models.NewCallEvent(origin, res.Level.Name, string(res.Outcome), res.Position)); err != nil {
			s.logger.Warn("failed to record call", "origin", origin, "error", err)
		}
	}

	s.logger.Debug("served position", "origin", origin, "level", res.Level.Name, "outcome", res.Outcome)
	return res, nil
}

func (s *Service) serve(ctx context.Context, origin string, opts source.FetchOptions) (Result, error) {
	settings, err := s.store.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load settings: %w", err)
	}
	catalog, err := level.ValidateSettings(settings)
	if err != nil {
		return Result{}, err
	}
	lvl, err := s.resolver.Level(settings, catalog, origin)
	if err != nil {
		return Result{}, err
	}

	if !settings.Paused && lvl.Kind == level.KindFixed && settings.FixedPosNoAPI {
		pos, err := s.obf.fixed(settings, catalog)
		if err != nil {
			return Result{}, err
		}
		return Result{Origin: origin, Position: pos, Level: lvl, Outcome: OutcomeFixed}, nil
	}

	if s.src == nil {
		return Result{}, fmt.Errorf("%w: no position source configured", ErrSourceUnavailable)
	}
	truePos, err := s.src.Fetch(ctx, opts)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncSourceErrors()
		}
		return Result{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	res, err := s.obf.Obfuscate(settings, origin, &truePos)
	if err != nil {
		return Result{}, err
	}

	if res.CacheWrite != nil {
		if err := s.store.PutCacheEntry(ctx, res.Level.Name, *res.CacheWrite); err != nil {
			return Result{}, fmt.Errorf("failed to persist cached position: %w", err)
		}
	}
	return res, nil
}

// Resolution describes how a call would be treated.
type Resolution struct {
	Origin        string
	Level         level.Level
	RealPermitted bool
}

// Resolve reports the origin, effective level and real-location decision for
// call without serving a position.
func (s *Service) Resolve(ctx context.Context, call policy.CallContext) (Resolution, error) {
	settings, err := s.store.Load(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to load settings: %w", err)
	}
	catalog, err := level.ValidateSettings(settings)
	if err != nil {
		return Resolution{}, err
	}
	origin := s.origins.CurrentOrigin(call)
	lvl, err := s.resolver.Level(settings, catalog, origin)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{
		Origin:        origin,
		Level:         lvl,
		RealPermitted: policy.IsRealLocationPermitted(settings, policy.ExtractDomain(call.URL), call.InFrame),
	}, nil
}

// WithSource returns a copy of the service that fetches true positions from src.
func (s *Service) WithSource(src source.Source) *Service {
	cp := *s
	cp.src = src
	return &cp
}

// WatchAllowed reports whether a continuous watch from call may use the real
// location. Permitted follow-up calls are counted.
func (s *Service) WatchAllowed(ctx context.Context, call policy.CallContext, firstCall bool) (bool, error) {
	settings, err := s.store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load settings: %w", err)
	}
	if _, err := level.ValidateSettings(settings); err != nil {
		return false, err
	}
	allowed := s.resolver.WatchAllowed(settings, call, firstCall)
	if allowed && !firstCall && s.metrics != nil {
		s.metrics.IncAPICalls()
	}
	return allowed, nil
}

// SetDefaultLevel changes the level used for domains without an override.
func (s *Service) SetDefaultLevel(ctx context.Context, name string) error {
	return s.mutate(ctx, func(st *models.Settings) {
		st.DefaultLevel = name
	})
}

// SetDomainLevel sets the level for the domain of rawURL.
func (s *Service) SetDomainLevel(ctx context.Context, rawURL, name string) error {
	domain := policy.ExtractDomain(rawURL)
	if domain == "" {
		return fmt.Errorf("invalid domain %q", rawURL)
	}
	return s.mutate(ctx, func(st *models.Settings) {
		st.DomainLevel[domain] = name
	})
}

// ClearDomainLevel removes the override for the domain of rawURL.
func (s *Service) ClearDomainLevel(ctx context.Context, rawURL string) error {
	domain := policy.ExtractDomain(rawURL)
	if domain == "" {
		return fmt.Errorf("invalid domain %q", rawURL)
	}
	return s.mutate(ctx, func(st *models.Settings) {
		delete(st.DomainLevel, domain)
	})
}

// SetPaused toggles the global pause.
func (s *Service) SetPaused(ctx context.Context, paused bool) error {
	return s.mutate(ctx, func(st *models.Settings) {
		st.Paused = paused
	})
}

// SetFixedPosition sets the fixed position and, when non-empty, its noise
// level. noAPI is applied when non-nil.
func (s *Service) SetFixedPosition(ctx context.Context, pos models.Coordinate, fixedLevel string, noAPI *bool) error {
	return s.mutate(ctx, func(st *models.Settings) {
		st.FixedPos = pos
		if fixedLevel != "" {
			st.FixedPosLevel = fixedLevel
		}
		if noAPI != nil {
			st.FixedPosNoAPI = *noAPI
		}
	})
}

// mutate applies fn inside a store transaction and rejects invalid results.
func (s *Service) mutate(ctx context.Context, fn func(*models.Settings)) error {
	err := s.store.Update(ctx, func(st *models.Settings) error {
		st.Normalize()
		fn(st)
		if _, err := level.ValidateSettings(st); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	if s.notifier != nil {
		s.notifier.Refresh("all")
	}
	return nil
}
