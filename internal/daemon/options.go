package daemon

import (
	"log/slog"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/logging"
	"github.com/CiderSlime/dagster/internal/metrics"
	"github.com/CiderSlime/dagster/internal/store"
	"github.com/CiderSlime/dagster/internal/vclock"
)

// Options are the inputs of one tick.
type Options struct {
	Graph *asset.Graph
	// TargetKeys restricts evaluation; nil evaluates every asset.
	TargetKeys []asset.Key
	Store      *store.Store

	MaterializeRunTags map[string]string
	ObserveRunTags     map[string]string

	Cursor Cursor

	AutoObserve bool
	// RespectMaterializationDataVersions ignores parent rematerializations
	// that did not change the parent's data version.
	RespectMaterializationDataVersions bool

	Logger  *slog.Logger
	Clock   vclock.Clock
	Metrics *metrics.Recorder
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	if o.Clock == nil {
		o.Clock = vclock.System{}
	}
	return o
}

func (o Options) validate() error {
	if o.Graph == nil {
		return &EvaluationError{Code: ErrCodeInvalidOptions, Message: "graph is required"}
	}
	if o.Store == nil {
		return &EvaluationError{Code: ErrCodeInvalidOptions, Message: "store is required"}
	}
	for _, k := range o.TargetKeys {
		if !o.Graph.Has(k) {
			return &EvaluationError{Code: ErrCodeUnknownTarget, Asset: k, Message: "target not in graph"}
		}
	}
	return nil
}
