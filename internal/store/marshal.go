package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/canon"
)

// marshalTags stores tags as canonical JSON so identical runs store
// identical bytes.
func marshalTags(tags map[string]string) (string, error) {
	if tags == nil {
		tags = map[string]string{}
	}
	data, err := canon.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	return string(data), nil
}

func unmarshalTags(data string) (map[string]string, error) {
	tags := map[string]string{}
	if err := json.Unmarshal([]byte(data), &tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return tags, nil
}

func marshalSelection(keys []asset.Key) (string, error) {
	data, err := canon.Marshal(asset.Strings(keys))
	if err != nil {
		return "", fmt.Errorf("marshal selection: %w", err)
	}
	return string(data), nil
}

func unmarshalSelection(data string) ([]asset.Key, error) {
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal selection: %w", err)
	}
	return asset.Keys(names...), nil
}

func toUnixNano(t time.Time) int64 { return t.UTC().UnixNano() }

func fromUnixNano(n int64) time.Time { return time.Unix(0, n).UTC() }
