package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// formatNodesText writes one compact JSON object per node.
func formatNodesText(w io.Writer, nodes []CLINode) error {
	for _, n := range nodes {
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}

func formatNamesText(w io.Writer, names []string) {
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
}

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tLANGUAGE\tLINES")
	for _, f := range files {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", f.ID, f.Path, f.Language, f.LineCount)
	}
	tw.Flush()
}

// formatScopesText prints one row per scope, indented by depth, with its
// bindings.
func formatScopesText(w io.Writer, scopes []CLIScope) {
	depth := make(map[int64]int, len(scopes))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCOPE\tLINES\tBINDINGS")
	for _, sc := range scopes {
		d := 0
		if sc.Parent != nil {
			d = depth[*sc.Parent] + 1
		}
		depth[sc.ID] = d

		names := make([]string, len(sc.Bindings))
		for i, b := range sc.Bindings {
			names[i] = b.Kind + " " + b.Name
		}
		fmt.Fprintf(tw, "%s%s\t%d-%d\t%s\n",
			strings.Repeat("  ", d), sc.Kind, sc.StartLine, sc.EndLine, strings.Join(names, ", "))
	}
	tw.Flush()
}

func formatGlobalCountsText(w io.Writer, counts []CLIGlobalCount) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFILES")
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\n", c.Name, c.Files)
	}
	tw.Flush()
}

// outputResultText dispatches to the text formatter for the result type.
func outputResultText(result CLIResult) error {
	w := stdout

	switch v := result.Results.(type) {
	case []CLINode:
		return formatNodesText(w, v)
	case []string:
		formatNamesText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case []CLIScope:
		formatScopesText(w, v)
	case []CLIGlobalCount:
		formatGlobalCountsText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
