package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/CiderSlime/dagster/internal/instance"
	"github.com/CiderSlime/dagster/internal/logging"
	"github.com/CiderSlime/dagster/internal/simulate"
)

type runConfig struct {
	logOutput    io.Writer
	logLevel     slog.Leveler
	instanceOpts []instance.Option
}

// RunOption configures Run.
type RunOption func(*runConfig)

// WithLogOutput sends scenario logs to w at level, in place of the initial
// state's log output.
func WithLogOutput(w io.Writer, level slog.Leveler) RunOption {
	return func(c *runConfig) {
		c.logOutput = w
		c.logLevel = level
	}
}

// WithInstanceOptions passes options to the backing instance.
func WithInstanceOptions(opts ...instance.Option) RunOption {
	return func(c *runConfig) { c.instanceOpts = append(c.instanceOpts, opts...) }
}

// Run executes a scenario outside of go test.
//
// Each call gets its own in-memory instance. The first failed assertion
// ends the scenario and is reported in the Result; errors are returned only
// when the scenario could not be started. Without WithLogOutput, logs go at
// trace level to the initial state's log output, if any.
func Run(sc Scenario, opts ...RunOption) (res *Result, err error) {
	cfg := runConfig{logLevel: logging.LevelTrace}
	for _, opt := range opts {
		opt(&cfg)
	}
	w := cfg.logOutput
	if w == nil {
		w = sc.Initial.logWriter(io.Discard)
	}
	logger := logging.New(w, cfg.logLevel).With("scenario", sc.ID)

	instOpts := append([]instance.Option{
		instance.WithRunIDs(simulate.NewSequentialRunIDs(sc.ID)),
		instance.WithLogger(logger),
	}, cfg.instanceOpts...)
	inst, err := instance.Ephemeral(instOpts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.ID, err)
	}
	defer inst.Close()

	res = NewResult(sc.ID)
	final := sc.Initial.attach(inst, abortReporter{}, logger)
	func() {
		defer func() {
			if r := recover(); r != nil {
				abort, ok := r.(scenarioAbort)
				if !ok {
					panic(r)
				}
				res.AddError(abort.msg)
			}
		}()
		final = sc.Execute(final)
	}()
	res.Ticks = final.Ticks()

	snap, err := inst.Metrics().Snapshot()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.ID, err)
	}
	res.Metrics = snap
	return res, nil
}
