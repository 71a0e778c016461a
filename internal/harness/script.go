package harness

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/CiderSlime/dagster/internal/asset"
	"github.com/CiderSlime/dagster/internal/compiler"
	"github.com/CiderSlime/dagster/internal/daemon"
	"github.com/CiderSlime/dagster/internal/policy"
)

//go:embed scenario.schema.json
var scenarioSchemaJSON string

const scenarioSchemaURL = "https://amp-sim.local/schemas/scenario.schema.json"

var scenarioSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(scenarioSchemaURL, strings.NewReader(scenarioSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(scenarioSchemaURL)
})

// Script is a scenario loaded from YAML.
type Script struct {
	ID          string
	Description string
	Path        string

	specs    []asset.Spec
	start    time.Time
	hasStart bool
	steps    []scriptStep
}

type scriptStep struct {
	name  string
	apply func(ScenarioState) ScenarioState
}

type scriptDoc struct {
	ID          string               `yaml:"id"`
	Description string               `yaml:"description"`
	CurrentTime string               `yaml:"current_time"`
	Catalog     string               `yaml:"catalog"`
	Assets      []compiler.AssetDecl `yaml:"assets"`
	Steps       []map[string]any     `yaml:"steps"`
}

// LoadScript reads and compiles the scenario script at path.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return ParseScript(data, path)
}

// ParseScript compiles a script. path names the script in errors and
// anchors a relative catalog path.
func ParseScript(data []byte, path string) (*Script, error) {
	if err := validateScript(data); err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}

	var doc scriptDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("script %s: parse: %w", path, err)
	}

	s := &Script{ID: doc.ID, Description: doc.Description, Path: path}
	var err error
	if doc.Catalog != "" {
		catalog := doc.Catalog
		if !filepath.IsAbs(catalog) {
			catalog = filepath.Join(filepath.Dir(path), catalog)
		}
		s.specs, err = compiler.LoadCatalogFile(catalog)
	} else {
		s.specs, err = compiler.BuildAll(doc.Assets)
	}
	if err != nil {
		return nil, fmt.Errorf("script %s: assets: %w", path, err)
	}
	if _, err := asset.NewGraph(s.specs); err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}

	if doc.CurrentTime != "" {
		if s.start, err = ParseTime(doc.CurrentTime); err != nil {
			return nil, fmt.Errorf("script %s: current_time: %w", path, err)
		}
		s.hasStart = true
	}

	for i, raw := range doc.Steps {
		for name, value := range raw {
			step, err := compileStep(name, value)
			if err != nil {
				return nil, fmt.Errorf("script %s: step %d (%s): %w", path, i, name, err)
			}
			s.steps = append(s.steps, step)
		}
	}
	return s, nil
}

// validateScript checks the raw document against the embedded schema.
func validateScript(data []byte) error {
	schema, err := scenarioSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	// Round-trip through JSON so the validator sees JSON value types.
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// Steps returns the step names in order.
func (s *Script) Steps() []string {
	out := make([]string, len(s.steps))
	for i, st := range s.steps {
		out[i] = st.name
	}
	return out
}

// Specs returns the declared assets.
func (s *Script) Specs() []asset.Spec { return slices.Clone(s.specs) }

// Scenario converts the script into a runnable Scenario.
func (s *Script) Scenario() Scenario {
	initial := NewState(s.specs...)
	if s.hasStart {
		initial = initial.WithTime(s.start)
	}
	steps := slices.Clone(s.steps)
	return Scenario{
		ID:      s.ID,
		Initial: initial,
		Execute: func(st ScenarioState) ScenarioState {
			for _, step := range steps {
				st.logger.Debug("script step", "step", step.name)
				st = step.apply(st)
			}
			return st
		},
	}
}

type runDoc struct {
	Assets    []string          `mapstructure:"assets"`
	Partition string            `mapstructure:"partition"`
	Tags      map[string]string `mapstructure:"tags"`
}

func (r runDoc) request() daemon.RunRequest {
	var selection []asset.Key
	if r.Assets != nil {
		selection = asset.Keys(r.Assets...)
	}
	return daemon.RunRequest{AssetSelection: selection, PartitionKey: r.Partition, Tags: r.Tags}
}

type propertiesDoc struct {
	Keys         []string                 `mapstructure:"keys"`
	Deps         *[]string                `mapstructure:"deps"`
	Group        *string                  `mapstructure:"group"`
	CodeVersion  *string                  `mapstructure:"code_version"`
	Policy       *string                  `mapstructure:"policy"`
	Rules        []string                 `mapstructure:"rules"`
	MaxPerMinute *int                     `mapstructure:"max_materializations_per_minute"`
	Partitions   *compiler.PartitionsDecl `mapstructure:"partitions"`
	Failing      *bool                    `mapstructure:"failing"`
}

// changes maps the set fields onto SpecChanges. Policy, rules and limit
// replace the policy together.
func (p propertiesDoc) changes() (asset.SpecChanges, error) {
	c := asset.Changes()
	if p.Deps != nil {
		c = c.Deps(asset.Keys(*p.Deps...)...)
	}
	if p.Group != nil {
		c = c.Group(*p.Group)
	}
	if p.CodeVersion != nil {
		c = c.CodeVersion(*p.CodeVersion)
	}
	if p.Failing != nil {
		c = c.Failing(*p.Failing)
	}
	if p.Policy != nil || p.Rules != nil || p.MaxPerMinute != nil {
		name := ""
		if p.Policy != nil {
			name = *p.Policy
		}
		pol, err := compiler.BuildPolicy(name, p.Rules, p.MaxPerMinute)
		if err != nil {
			return c, err
		}
		if pol == nil {
			c = c.NoPolicy()
		} else {
			c = c.Policy(*pol)
		}
	}
	if p.Partitions != nil {
		def, err := p.Partitions.Build()
		if err != nil {
			return c, err
		}
		c = c.Partitions(def)
	}
	return c, nil
}

type ruleDoc struct {
	Rule       string         `mapstructure:"rule"`
	Limit      int            `mapstructure:"limit"`
	Partitions []string       `mapstructure:"partitions"`
	Data       map[string]any `mapstructure:"data"`
}

type dataDoc struct {
	Type       string   `mapstructure:"type"`
	Updated    []string `mapstructure:"updated"`
	WillUpdate []string `mapstructure:"will_update"`
	WaitingOn  []string `mapstructure:"waiting_on"`
}

func (r ruleDoc) spec() (RuleSpec, error) {
	rule, err := policy.ParseRule(r.Rule, r.Limit)
	if err != nil {
		return RuleSpec{}, err
	}
	spec := Expect(rule)
	if r.Partitions != nil {
		spec = spec.WithPartitions(r.Partitions...)
	}
	if r.Data != nil {
		var d dataDoc
		if err := decode(r.Data, &d); err != nil {
			return RuleSpec{}, fmt.Errorf("rule %s: data: %w", r.Rule, err)
		}
		switch d.Type {
		case "parent_updated":
			spec = spec.WithParentUpdated(asset.Keys(d.Updated...), asset.Keys(d.WillUpdate...))
		case "waiting_on_assets":
			spec = spec.WithWaitingOn(asset.Keys(d.WaitingOn...)...)
		default:
			return RuleSpec{}, fmt.Errorf("rule %s: unknown data type %q", r.Rule, d.Type)
		}
	}
	return spec, nil
}

type evaluationDoc struct {
	Asset        string    `mapstructure:"asset"`
	Rules        []ruleDoc `mapstructure:"rules"`
	NumRequested *int      `mapstructure:"num_requested"`
	NumSkipped   *int      `mapstructure:"num_skipped"`
	NumDiscarded *int      `mapstructure:"num_discarded"`
}

func (e evaluationDoc) counts() []CountOption {
	var out []CountOption
	if e.NumRequested != nil {
		out = append(out, NumRequested(*e.NumRequested))
	}
	if e.NumSkipped != nil {
		out = append(out, NumSkipped(*e.NumSkipped))
	}
	if e.NumDiscarded != nil {
		out = append(out, NumDiscarded(*e.NumDiscarded))
	}
	return out
}

func decode(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func compileStep(name string, value any) (scriptStep, error) {
	step := scriptStep{name: name}
	switch name {
	case "all_eager":
		step.apply = ScenarioState.WithAllEager

	case "requested_runs":
		step.apply = ScenarioState.WithRequestedRuns

	case "evaluate_tick":
		step.apply = ScenarioState.EvaluateTick

	case "current_time":
		literal, ok := value.(string)
		if !ok {
			return step, fmt.Errorf("want a timestamp string, got %T", value)
		}
		t, err := ParseTime(literal)
		if err != nil {
			return step, err
		}
		step.apply = func(s ScenarioState) ScenarioState { return s.WithTime(t) }

	case "respect_data_versions":
		respect, ok := value.(bool)
		if !ok {
			return step, fmt.Errorf("want a boolean, got %T", value)
		}
		step.apply = func(s ScenarioState) ScenarioState { return s.WithRespectDataVersions(respect) }

	case "asset_properties":
		var doc propertiesDoc
		if err := decode(value, &doc); err != nil {
			return step, err
		}
		changes, err := doc.changes()
		if err != nil {
			return step, err
		}
		var keys []asset.Key
		if doc.Keys != nil {
			keys = asset.Keys(doc.Keys...)
		}
		step.apply = func(s ScenarioState) ScenarioState { return s.WithAssetProperties(keys, changes) }

	case "runs", "assert_requested_runs":
		var docs []runDoc
		if err := decode(value, &docs); err != nil {
			return step, err
		}
		reqs := make([]daemon.RunRequest, len(docs))
		for i, d := range docs {
			reqs[i] = d.request()
		}
		if name == "runs" {
			step.apply = func(s ScenarioState) ScenarioState { return s.WithRuns(reqs...) }
		} else {
			step.apply = func(s ScenarioState) ScenarioState { return s.AssertRequestedRuns(reqs...) }
		}

	case "assert_evaluation":
		var doc evaluationDoc
		if err := decode(value, &doc); err != nil {
			return step, err
		}
		specs := make([]RuleSpec, len(doc.Rules))
		for i, r := range doc.Rules {
			spec, err := r.spec()
			if err != nil {
				return step, err
			}
			specs[i] = spec
		}
		key, counts := asset.Key(doc.Asset), doc.counts()
		step.apply = func(s ScenarioState) ScenarioState { return s.AssertEvaluation(key, specs, counts...) }

	default:
		return step, fmt.Errorf("unknown step")
	}
	return step, nil
}
