package main

import (
	"github.com/spf13/cobra"

	"github.com/jward/svtree"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the index",
	Long:  "Run queries against an indexed directory. Line numbers are 1-based.",
}

func init() {
	queryCmd.AddCommand(queryNodesCmd)
	queryCmd.AddCommand(queryGlobalsCmd)
	queryCmd.AddCommand(queryUsersCmd)
	queryCmd.AddCommand(queryNamesCmd)
	queryCmd.AddCommand(querySharingCmd)
	queryCmd.AddCommand(queryScopesCmd)
	queryCmd.AddCommand(queryFilesCmd)

	queryGlobalsCmd.Flags().StringVar(&flagMatch, "match", "", "only names matching this ECMAScript regular expression")
	queryNamesCmd.Flags().StringVar(&flagMatch, "match", "", "only names matching this ECMAScript regular expression")
}

// queryFunc runs one query against an open Engine.
type queryFunc func(e *svtree.Engine, args []string) (any, error)

// runQuery opens the existing index, runs fn and prints its result.
func runQuery(name string, fn queryFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, _, err := openEngine(engineConfig{mustExist: true})
		if err != nil {
			return outputError(name, err)
		}
		defer e.Close()

		results, err := fn(e, args)
		if err != nil {
			return outputError(name, err)
		}
		return outputResult(CLIResult{Command: name, Results: results})
	}
}

var queryNodesCmd = &cobra.Command{
	Use:   "nodes <file>",
	Short: "Stored SV nodes of an indexed file",
	Args:  cobra.ExactArgs(1),
	RunE: runQuery("nodes", func(e *svtree.Engine, args []string) (any, error) {
		path, err := resolveFilePath(args[0])
		if err != nil {
			return nil, err
		}
		nodes, err := e.Nodes(path)
		if err != nil {
			return nil, err
		}
		return nodesToCLI(nodes), nil
	}),
}

var queryGlobalsCmd = &cobra.Command{
	Use:   "globals <file>",
	Short: "Global names referenced by an indexed file",
	Args:  cobra.ExactArgs(1),
	RunE: runQuery("globals", func(e *svtree.Engine, args []string) (any, error) {
		path, err := resolveFilePath(args[0])
		if err != nil {
			return nil, err
		}
		names, err := e.Globals(path)
		if err != nil {
			return nil, err
		}
		return filterNames(names, flagMatch)
	}),
}

var queryUsersCmd = &cobra.Command{
	Use:   "users <global>",
	Short: "Indexed files that reference a global name",
	Args:  cobra.ExactArgs(1),
	RunE: runQuery("users", func(e *svtree.Engine, args []string) (any, error) {
		files, err := e.FilesUsingGlobal(args[0])
		if err != nil {
			return nil, err
		}
		return filesToCLI(files), nil
	}),
}

var queryNamesCmd = &cobra.Command{
	Use:   "names",
	Short: "Every global name in the index with its file count",
	Args:  cobra.NoArgs,
	RunE: runQuery("names", func(e *svtree.Engine, args []string) (any, error) {
		counts, err := e.GlobalNames()
		if err != nil {
			return nil, err
		}
		names := make([]string, len(counts))
		for i, c := range counts {
			names[i] = c.Name
		}
		keep, err := filterNames(names, flagMatch)
		if err != nil {
			return nil, err
		}
		wanted := make(map[string]bool, len(keep))
		for _, n := range keep {
			wanted[n] = true
		}
		out := []CLIGlobalCount{}
		for _, c := range counts {
			if wanted[c.Name] {
				out = append(out, CLIGlobalCount{Name: c.Name, Files: c.Files})
			}
		}
		return out, nil
	}),
}

var querySharingCmd = &cobra.Command{
	Use:   "sharing <file>",
	Short: "Other indexed files that reference a global the file references",
	Args:  cobra.ExactArgs(1),
	RunE: runQuery("sharing", func(e *svtree.Engine, args []string) (any, error) {
		path, err := resolveFilePath(args[0])
		if err != nil {
			return nil, err
		}
		files, err := e.FilesSharingGlobals(path)
		if err != nil {
			return nil, err
		}
		return filesToCLI(files), nil
	}),
}

var queryScopesCmd = &cobra.Command{
	Use:   "scopes <file>",
	Short: "Stored scope tree of an indexed file",
	Args:  cobra.ExactArgs(1),
	RunE: runQuery("scopes", func(e *svtree.Engine, args []string) (any, error) {
		path, err := resolveFilePath(args[0])
		if err != nil {
			return nil, err
		}
		scopes, err := e.Scopes(path)
		if err != nil {
			return nil, err
		}
		out := make([]CLIScope, 0, len(scopes))
		for _, sc := range scopes {
			bindings, err := e.Bindings(sc.ID)
			if err != nil {
				return nil, err
			}
			cs := CLIScope{
				ID:        sc.ID,
				Kind:      sc.Kind,
				Parent:    sc.ParentScopeID,
				StartLine: sc.StartLine,
				EndLine:   sc.EndLine,
				Bindings:  make([]CLIBinding, len(bindings)),
			}
			for i, b := range bindings {
				cs.Bindings[i] = CLIBinding{Name: b.Name, Kind: b.Kind, Constant: b.Constant}
			}
			out = append(out, cs)
		}
		return out, nil
	}),
}

var queryFilesCmd = &cobra.Command{
	Use:   "files",
	Short: "All indexed files",
	Args:  cobra.NoArgs,
	RunE: runQuery("files", func(e *svtree.Engine, args []string) (any, error) {
		files, err := e.Files()
		if err != nil {
			return nil, err
		}
		return filesToCLI(files), nil
	}),
}

func filesToCLI(files []*svtree.File) []CLIFile {
	out := make([]CLIFile, len(files))
	for i, f := range files {
		out[i] = CLIFile{ID: f.ID, Path: f.Path, Language: f.Language, LineCount: f.LineCount}
	}
	return out
}
