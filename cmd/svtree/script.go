package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/jward/svtree"
	"github.com/jward/svtree/scripts"
)

var flagScriptArgs map[string]string

var scriptCmd = &cobra.Command{
	Use:   "script <file.risor>",
	Short: "Run a Risor script against the index",
	Long: `Runs a Risor script with tree-sitter host functions, read access to the
index and transform/globals_of builtins. A name that is not a file on disk
runs the bundled report of that name (globals.risor, scopes.risor,
transform.risor).`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	scriptCmd.Flags().StringToStringVar(&flagScriptArgs, "arg", nil, "script global as name=value (repeatable)")
	scriptCmd.Flags().BoolVar(&flagExtended, "extended", false, "transform builtins map call, member and assignment expressions")
	replCmd.Flags().BoolVar(&flagExtended, "extended", false, "start with the extended node set")
}

func runScript(cmd *cobra.Command, args []string) error {
	name := args[0]
	opts := []svtree.Option{svtree.WithExtended(flagExtended)}

	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		abs, err := filepath.Abs(name)
		if err != nil {
			return err
		}
		opts = append(opts, svtree.WithScriptsDir(filepath.Dir(abs)))
		name = filepath.Base(abs)
	} else {
		opts = append(opts, svtree.WithScriptsFS(scripts.FS))
	}

	e, _, err := openEngine(engineConfig{logLevel: zapcore.InfoLevel}, opts...)
	if err != nil {
		return err
	}
	defer e.Close()

	extras := make(map[string]any, len(flagScriptArgs))
	for k, v := range flagScriptArgs {
		extras[k] = v
	}
	return e.RunScript(commandContext(cmd), name, extras)
}

const (
	historyFile = ".svtree_history"
	promptMain  = "svtree> "
	promptCont  = "   ...> "
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Transform JavaScript interactively",
	Long: `Reads JavaScript statements and prints their SV nodes. Unbalanced
brackets continue the input on the next line. Commands: :extended toggles
the extended node set, :globals shows the global names of the last input,
:quit exits.`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func runRepl(cmd *cobra.Command, args []string) error {
	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	r := &repl{extended: flagExtended}
	for {
		src, ok := readInput(ln)
		if !ok {
			fmt.Fprintln(stdout)
			return nil
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))
		if quit := r.eval(ctx, src, stdout); quit {
			return nil
		}
	}
}

// readInput reads lines until the brackets of the input balance.
func readInput(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return "", false
		}
		if err != nil {
			return "", true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if !incomplete(b.String()) {
			return b.String(), true
		}
	}
}

// incomplete reports whether src has more opening than closing brackets
// outside string literals and comments.
func incomplete(src string) bool {
	depth := 0
	var quote byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		}
	}
	return depth > 0 || quote == '`'
}

// repl holds the state carried between inputs.
type repl struct {
	extended bool
	last     []string
}

// eval handles one input and writes the result to w. It returns true when
// the input asks to quit.
func (r *repl) eval(ctx context.Context, src string, w io.Writer) bool {
	if cmd := strings.TrimSpace(src); strings.HasPrefix(cmd, ":") {
		switch strings.ToLower(cmd) {
		case ":quit", ":q":
			return true
		case ":extended":
			r.extended = !r.extended
			fmt.Fprintf(w, "extended: %t\n", r.extended)
		case ":globals":
			formatNamesText(w, r.last)
		default:
			fmt.Fprintln(w, "unknown command. Type :quit to exit.")
		}
		return false
	}

	var opts []svtree.TransformOption
	if r.extended {
		opts = append(opts, svtree.Extended())
	}
	a, err := svtree.Analyze(ctx, []byte(src), "javascript", opts...)
	if err != nil {
		fmt.Fprintf(w, "Error: %s\n", err)
		return false
	}
	r.last = a.Globals
	if err := formatNodesText(w, nodesToCLI(a.Nodes)); err != nil {
		fmt.Fprintf(w, "Error: %s\n", err)
	}
	return false
}
