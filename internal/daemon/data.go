package daemon

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/canon"
)

// EvaluationData is rule-specific supporting data. The set is closed:
// ParentUpdatedData and WaitingOnAssetsData.
type EvaluationData interface {
	canon.Valuer
	fmt.Stringer
	evaluationData()
}

// ParentUpdatedData explains materialize_on_parent_updated: which parents
// have new data and which are being requested in the same tick.
type ParentUpdatedData struct {
	UpdatedAssetKeys    []asset.Key
	WillUpdateAssetKeys []asset.Key
}

// NewParentUpdatedData normalizes both key sets.
func NewParentUpdatedData(updated, willUpdate []asset.Key) ParentUpdatedData {
	return ParentUpdatedData{
		UpdatedAssetKeys:    asset.SortKeys(updated),
		WillUpdateAssetKeys: asset.SortKeys(willUpdate),
	}
}

func (ParentUpdatedData) evaluationData() {}

func (d ParentUpdatedData) CanonicalValue() any {
	return map[string]any{
		"type":                   "parent_updated",
		"updated_asset_keys":     asset.Strings(asset.SortKeys(d.UpdatedAssetKeys)),
		"will_update_asset_keys": asset.Strings(asset.SortKeys(d.WillUpdateAssetKeys)),
	}
}

func (d ParentUpdatedData) String() string {
	return fmt.Sprintf("ParentUpdated(updated=[%s], will_update=[%s])",
		joinKeys(d.UpdatedAssetKeys), joinKeys(d.WillUpdateAssetKeys))
}

// WaitingOnAssetsData explains skip rules: the parents blocking the asset.
type WaitingOnAssetsData struct {
	WaitingOnAssetKeys []asset.Key
}

// NewWaitingOnAssetsData normalizes the key set.
func NewWaitingOnAssetsData(keys ...asset.Key) WaitingOnAssetsData {
	return WaitingOnAssetsData{WaitingOnAssetKeys: asset.SortKeys(keys)}
}

func (WaitingOnAssetsData) evaluationData() {}

func (d WaitingOnAssetsData) CanonicalValue() any {
	return map[string]any{
		"type":                  "waiting_on_assets",
		"waiting_on_asset_keys": asset.Strings(asset.SortKeys(d.WaitingOnAssetKeys)),
	}
}

func (d WaitingOnAssetsData) String() string {
	return fmt.Sprintf("WaitingOnAssets([%s])", joinKeys(d.WaitingOnAssetKeys))
}

func joinKeys(keys []asset.Key) string {
	return strings.Join(asset.Strings(asset.SortKeys(keys)), ", ")
}

// dataKey is the canonical encoding of d; "" for no data.
func dataKey(d EvaluationData) string {
	if d == nil {
		return ""
	}
	return string(canon.MustMarshal(d))
}

// DataEqual compares evaluation data structurally. Key order inside the
// sets does not matter.
func DataEqual(a, b EvaluationData) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return bytes.Equal(canon.MustMarshal(a), canon.MustMarshal(b))
}
