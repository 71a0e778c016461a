package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/CiderSlime/dagster/internal/canon"
	"github.com/CiderSlime/dagster/internal/daemon"
)

// GoldenSuffix is appended to golden file names.
const GoldenSuffix = ".golden"

// ErrGoldenMismatch is returned by CheckGolden when the snapshot differs.
var ErrGoldenMismatch = errors.New("golden mismatch")

// Snapshot renders a scenario's ticks as canonical JSON, one line for the
// header and one per tick. Cursors are left out.
func Snapshot(id string, ticks []daemon.TickResult) ([]byte, error) {
	var buf bytes.Buffer
	header, err := canon.Marshal(map[string]any{"scenario": id, "ticks": len(ticks)})
	if err != nil {
		return nil, err
	}
	buf.Write(header)
	buf.WriteByte('\n')
	for i, tick := range ticks {
		line, err := canon.Marshal(tick)
		if err != nil {
			return nil, fmt.Errorf("tick %d: %w", i, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// AssertGolden compares data with dir/name.golden. Run go test with
// -update to rewrite the fixture.
func AssertGolden(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	g := goldie.New(t, goldie.WithFixtureDir(dir), goldie.WithNameSuffix(GoldenSuffix))
	g.Assert(t, name, data)
}

// CheckGolden is AssertGolden for callers outside go test. With update set
// the fixture is written instead of compared.
func CheckGolden(dir, name string, data []byte, update bool) error {
	path := filepath.Join(dir, name+GoldenSuffix)
	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create golden dir: %w", err)
		}
		return os.WriteFile(path, data, 0o644)
	}
	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read golden %s: %w", path, err)
	}
	if !bytes.Equal(want, data) {
		return fmt.Errorf("%w: %s", ErrGoldenMismatch, path)
	}
	return nil
}
