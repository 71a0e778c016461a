package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CiderSlime/dagster/internal/asset"
)

// GraphNode is one asset in topological order.
type GraphNode struct {
	Key         string   `json:"key"`
	Deps        []string `json:"deps"`
	Group       string   `json:"group"`
	CodeVersion string   `json:"code_version,omitempty"`
	Policy      string   `json:"policy,omitempty"`
	Partitions  string   `json:"partitions,omitempty"`
	Failing     bool     `json:"failing,omitempty"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "graph <script|catalog>",
		Short: "Print the asset graph of a script or catalog",
		Long: `Print the assets declared by a scenario script or CUE catalog in
topological order, with their dependencies, policies and partitions.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(rootOpts, args[0], cmd)
		},
	}
}

func runGraph(opts *RootOptions, path string, cmd *cobra.Command) error {
	if err := statPath(path); err != nil {
		return err
	}
	f := newFormatter(opts, cmd)

	specs, err := loadSpecs(path)
	if err != nil {
		issue := issueFor(path, err)
		if ferr := f.Error(issue.Code, issue.Message, nil); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitFailure, "failed to load assets", err)
	}
	g, err := asset.NewGraph(specs)
	if err != nil {
		if ferr := f.Error(issueFor(path, err).Code, err.Error(), nil); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitFailure, "invalid asset graph", err)
	}

	nodes := graphNodes(g)
	if opts.Format == "json" {
		return f.Success(nodes)
	}
	for _, n := range nodes {
		fmt.Fprintln(f.Writer, n.line())
	}
	return nil
}

func graphNodes(g *asset.Graph) []GraphNode {
	order := g.TopologicalOrder()
	nodes := make([]GraphNode, 0, len(order))
	for _, key := range order {
		spec, _ := g.Spec(key)
		n := GraphNode{
			Key:         string(key),
			Deps:        asset.Strings(asset.SortKeys(spec.Deps)),
			Group:       spec.GroupName,
			CodeVersion: spec.CodeVersion,
			Failing:     spec.Failing,
		}
		if spec.Policy != nil {
			n.Policy = spec.Policy.String()
		}
		if spec.Partitions != nil {
			n.Partitions = spec.Partitions.String()
		}
		nodes = append(nodes, n)
	}
	return nodes
}

func (n GraphNode) line() string {
	var b strings.Builder
	b.WriteString(n.Key)
	if len(n.Deps) > 0 {
		fmt.Fprintf(&b, " <- [%s]", strings.Join(n.Deps, ", "))
	}
	fmt.Fprintf(&b, " group=%s", n.Group)
	if n.CodeVersion != "" {
		fmt.Fprintf(&b, " code_version=%s", n.CodeVersion)
	}
	if n.Partitions != "" {
		fmt.Fprintf(&b, " partitions=%s", n.Partitions)
	}
	if n.Policy != "" {
		fmt.Fprintf(&b, " policy=%s", n.Policy)
	}
	if n.Failing {
		b.WriteString(" failing")
	}
	return b.String()
}
