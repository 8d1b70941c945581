package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/kiln/internal/engine"
)

// GraphRule is one node of the JSON graph.
type GraphRule struct {
	Name      string   `json:"name"`
	Mode      string   `json:"mode"`
	DependsOn []string `json:"depends_on"`
}

// GraphResult is the JSON payload of graph.
type GraphResult struct {
	Rules  []GraphRule `json:"rules"`
	Levels [][]string  `json:"levels"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "graph [definition]",
		Short: "Print the rule dependency graph",
		Long: `Print the rule graph in Graphviz dot format, or with --format json as
rules plus the levels in which they can run.

Example:
  kiln graph | dot -Tsvg > rules.svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(rootOpts, args, cmd)
		},
	}
}

func runGraph(opts *RootOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts, nil)
	if err != nil {
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}
	proj, err := loadProject(cfg, definitionPath(cfg, args), cmd.OutOrStdout())
	if err != nil {
		return reportProjectError(f, err)
	}

	g, err := engine.BuildGraph(proj.rules)
	if err != nil {
		return reportProjectError(f, err)
	}

	if !f.JSON() {
		return g.WriteDot(f.Writer)
	}

	result := GraphResult{Rules: make([]GraphRule, 0, g.Len()), Levels: g.Levels()}
	for _, i := range g.TopoOrder() {
		deps := []string{}
		for _, d := range g.Dependencies(i) {
			deps = append(deps, g.Name(d))
		}
		result.Rules = append(result.Rules, GraphRule{
			Name:      g.Name(i),
			Mode:      g.Rule(i).Mode().String(),
			DependsOn: deps,
		})
	}
	return f.Success(result)
}
