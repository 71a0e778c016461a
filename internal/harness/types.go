package harness

import (
	"fmt"

	"github.com/CiderSlime/dagster/internal/daemon"
)

// Reporter receives assertion failures. testing.TB satisfies it.
// Fatalf must not return normally for the scenario to stop.
type Reporter interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Result is the outcome of a scenario executed with Run.
type Result struct {
	ScenarioID string `json:"scenario_id"`

	// Pass is false once any assertion failed.
	Pass bool `json:"pass"`

	Errors []string `json:"errors,omitempty"`

	// Ticks holds every tick the scenario evaluated, in order.
	Ticks []daemon.TickResult `json:"-"`

	// Metrics is the backing instance's counter snapshot.
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// NewResult creates a passing result.
func NewResult(id string) *Result {
	return &Result{ScenarioID: id, Pass: true}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// abortReporter stops a scenario by panicking with scenarioAbort; Run
// recovers it.
type abortReporter struct{}

type scenarioAbort struct{ msg string }

func (abortReporter) Helper() {}

func (abortReporter) Fatalf(format string, args ...any) {
	panic(scenarioAbort{msg: fmt.Sprintf(format, args...)})
}
