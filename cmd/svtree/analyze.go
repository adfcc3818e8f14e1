package main

import (
	"context"
	"fmt"

	"github.com/dlclark/regexp2"
	"github.com/spf13/cobra"

	"github.com/jward/svtree"
	"github.com/jward/svtree/internal/node"
	"github.com/jward/svtree/internal/scope"
)

var (
	flagExtended bool
	flagMatch    string
)

var transformCmd = &cobra.Command{
	Use:   "transform <file>",
	Short: "Print the SV nodes of one source file",
	Long:  "Parses one JavaScript or TypeScript file and prints its top-level SV nodes. The index is not touched.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := analyzeArg(cmd.Context(), args[0])
		if err != nil {
			return outputError("transform", err)
		}
		return outputResult(CLIResult{Command: "transform", Results: nodesToCLI(a.Nodes)})
	},
}

var globalsCmd = &cobra.Command{
	Use:   "globals <file>",
	Short: "Print the global names one source file references",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := analyzeArg(cmd.Context(), args[0])
		if err != nil {
			return outputError("globals", err)
		}
		names, err := filterNames(a.Globals, flagMatch)
		if err != nil {
			return outputError("globals", err)
		}
		return outputResult(CLIResult{Command: "globals", Results: names})
	},
}

var scopesCmd = &cobra.Command{
	Use:   "scopes <file>",
	Short: "Print the scope tree of one source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := analyzeArg(cmd.Context(), args[0])
		if err != nil {
			return outputError("scopes", err)
		}
		return outputResult(CLIResult{Command: "scopes", Results: arenaToCLI(a)})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{transformCmd, globalsCmd, scopesCmd} {
		cmd.Flags().BoolVar(&flagExtended, "extended", false, "also map call, member and assignment expressions")
	}
	globalsCmd.Flags().StringVar(&flagMatch, "match", "", "only names matching this ECMAScript regular expression")
}

func analyzeArg(ctx context.Context, file string) (*svtree.Analysis, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	path, err := resolveFilePath(file)
	if err != nil {
		return nil, err
	}
	var opts []svtree.TransformOption
	if flagExtended {
		opts = append(opts, svtree.Extended())
	}
	return svtree.AnalyzeFile(ctx, path, opts...)
}

// filterNames keeps the names matching pattern. Patterns use ECMAScript
// syntax so they behave like the RegExp literals of the analyzed code.
func filterNames(names []string, pattern string) ([]string, error) {
	out := []string{}
	if pattern == "" {
		return append(out, names...), nil
	}
	re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err != nil {
		return nil, fmt.Errorf("invalid --match pattern: %w", err)
	}
	for _, name := range names {
		ok, err := re.MatchString(name)
		if err != nil {
			return nil, fmt.Errorf("matching %q: %w", name, err)
		}
		if ok {
			out = append(out, name)
		}
	}
	return out, nil
}

func nodesToCLI(nodes []svtree.Node) []CLINode {
	out := make([]CLINode, len(nodes))
	for i, n := range nodes {
		out[i] = node.ToMap(n)
	}
	return out
}

// arenaToCLI converts an in-memory scope tree. Lines are made 1-based to
// match the index.
func arenaToCLI(a *svtree.Analysis) []CLIScope {
	out := make([]CLIScope, 0, a.Arena.Len())
	a.Arena.Walk(func(sc *scope.Scope) {
		span := a.Spans[sc.ID()]
		cs := CLIScope{
			ID:        int64(sc.ID()),
			Kind:      string(sc.Kind()),
			StartLine: span.StartLine + 1,
			EndLine:   span.EndLine + 1,
			Bindings:  []CLIBinding{},
		}
		if sc.Parent() != scope.NoScope {
			p := int64(sc.Parent())
			cs.Parent = &p
		}
		for _, b := range sc.Bindings() {
			cs.Bindings = append(cs.Bindings, CLIBinding{Name: b.Name, Kind: string(b.Kind), Constant: b.Constant})
		}
		out = append(out, cs)
	})
	return out
}
