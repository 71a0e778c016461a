package store

import (
	"time"

	"github.com/CiderSlime/dagster/internal/asset"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStarted RunStatus = "STARTED"
	RunSuccess RunStatus = "SUCCESS"
	RunFailure RunStatus = "FAILURE"
)

// Run is one simulated execution.
type Run struct {
	RunID          string
	Seq            int64
	Status         RunStatus
	PartitionKey   string
	AssetSelection []asset.Key
	Tags           map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EventType distinguishes event log entries.
type EventType string

const (
	EventMaterialization EventType = "ASSET_MATERIALIZATION"
	EventStepFailure     EventType = "STEP_FAILURE"
)

// Event is one event log entry. StorageID is assigned on write.
type Event struct {
	StorageID    int64
	RunID        string
	Type         EventType
	AssetKey     asset.Key
	PartitionKey string
	CodeVersion  string
	DataVersion  string
	Message      string
	Timestamp    time.Time
}
