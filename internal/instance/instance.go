// Package instance provides the backing instance a scenario runs against:
// a materialization store, the scenario's virtual clock, a run-ID
// generator and a metrics recorder, created together and closed together.
//
// Instances are never shared. Each scenario evaluation allocates its own
// with Ephemeral, so materialization history cannot leak between tests.
package instance

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/CiderSlime/dagster/internal/logging"
	"github.com/CiderSlime/dagster/internal/metrics"
	"github.com/CiderSlime/dagster/internal/simulate"
	"github.com/CiderSlime/dagster/internal/store"
	"github.com/CiderSlime/dagster/internal/vclock"
)

// Instance bundles the resources of one scenario evaluation.
type Instance struct {
	store   *store.Store
	clock   *vclock.Virtual
	runIDs  simulate.RunIDGenerator
	metrics *metrics.Recorder
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

type config struct {
	ambient vclock.Clock
	runIDs  simulate.RunIDGenerator
	logger  *slog.Logger
}

// Option configures an Instance.
type Option func(*config)

// WithAmbientClock sets the clock read outside frozen scopes.
func WithAmbientClock(c vclock.Clock) Option {
	return func(cfg *config) { cfg.ambient = c }
}

// WithRunIDs replaces the default sequential run-ID generator.
func WithRunIDs(g simulate.RunIDGenerator) Option {
	return func(cfg *config) { cfg.runIDs = g }
}

// WithLogger sets the logger handed to simulators.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// Ephemeral creates an instance over a private in-memory store.
func Ephemeral(opts ...Option) (*Instance, error) {
	return Open(":memory:", opts...)
}

// Open creates an instance over the SQLite database at path.
func Open(path string, opts ...Option) (*Instance, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runIDs == nil {
		cfg.runIDs = simulate.NewSequentialRunIDs("instance")
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instance: %w", err)
	}
	return &Instance{
		store:   st,
		clock:   vclock.NewVirtual(cfg.ambient),
		runIDs:  cfg.runIDs,
		metrics: metrics.New(),
		logger:  cfg.logger,
	}, nil
}

func (i *Instance) Store() *store.Store             { return i.store }
func (i *Instance) Clock() *vclock.Virtual           { return i.clock }
func (i *Instance) Metrics() *metrics.Recorder       { return i.metrics }
func (i *Instance) RunIDs() simulate.RunIDGenerator { return i.runIDs }

// Simulator returns a Run Simulator bound to this instance's store, clock,
// run IDs and metrics.
func (i *Instance) Simulator(logger *slog.Logger) *simulate.Simulator {
	if logger == nil {
		logger = i.logger
	}
	return simulate.New(i.store, i.clock,
		simulate.WithRunIDs(i.runIDs),
		simulate.WithLogger(logger),
		simulate.WithMetrics(i.metrics),
	)
}

// Close releases the store. Safe to call more than once.
func (i *Instance) Close() error {
	i.closeOnce.Do(func() {
		i.closeErr = i.store.Close()
	})
	return i.closeErr
}
