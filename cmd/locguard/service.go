// ABOUTME: Wires the obfuscation service from config for CLI commands
// ABOUTME: Builds the noise source, notifier chain, history log and position source

package main

import (
	"errors"
	"fmt"

	"github.com/harper/locguard/internal/config"
	"github.com/harper/locguard/internal/db"
	"github.com/harper/locguard/internal/laplace"
	"github.com/harper/locguard/internal/notify"
	"github.com/harper/locguard/internal/obfuscate"
	"github.com/harper/locguard/internal/policy"
	"github.com/harper/locguard/internal/source"
)

// app is a wired service plus the resources that must be released.
type app struct {
	svc     *obfuscate.Service
	closers []func()
}

func (r *app) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// buildService wires the service for the current store. src may be nil when
// no true position is needed. metrics may be nil.
func buildService(src source.Source, metrics obfuscate.Metrics) (*app, error) {
	if store == nil {
		return nil, errors.New("storage is not open")
	}
	c := cfg
	if c == nil {
		c = &config.Config{}
	}
	rt := &app{}

	rng, err := laplace.NewSecureSource()
	if err != nil {
		return nil, err
	}
	obf, err := obfuscate.New(
		laplace.New(rng, logger),
		obfuscate.WithConfidence(c.GetAccuracyConfidence()),
		obfuscate.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	notifier := notify.Multi{notify.Log{Logger: logger}}
	if c.MQTT.Enabled {
		m, err := notify.NewMQTT(c.MQTT, logger)
		if err != nil {
			logger.Warn("mqtt notifier disabled", "broker", c.MQTT.Broker, "error", err)
		} else {
			notifier = append(notifier, m)
			rt.closers = append(rt.closers, m.Close)
		}
	}

	opts := obfuscate.ServiceOptions{
		Origins:    policy.FrameDelegation{OwnDomain: c.IframeGeoFromOwnDomain},
		Tracker:    policy.NewTracker(notifier),
		Notifier:   notifier,
		Logger:     logger,
		Obfuscator: obf,
	}
	if metrics != nil {
		opts.Metrics = metrics
	}

	if c.GetBackend() != config.BackendMemory {
		historyDB, err := db.InitDB(c.HistoryDBPath())
		if err != nil {
			logger.Warn("call history disabled", "path", c.HistoryDBPath(), "error", err)
		} else {
			events := db.NewEventLog(historyDB)
			opts.Events = events
			rt.closers = append(rt.closers, func() { _ = events.Close() })
		}
	}

	svc, err := obfuscate.NewService(store, src, opts)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.svc = svc
	return rt, nil
}

// configuredSource returns the position source named in config, or nil for
// the static source, which needs explicit coordinates.
func configuredSource() (source.Source, error) {
	if cfg == nil || cfg.GetSource() == config.SourceStatic {
		return nil, nil
	}
	switch cfg.GetSource() {
	case config.SourceGoogle:
		return source.NewGoogle(cfg.GoogleAPIKey)
	default:
		return nil, fmt.Errorf("unknown source: %q", cfg.Source)
	}
}
