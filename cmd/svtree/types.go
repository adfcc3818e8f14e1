package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLINode is one top-level SV node in its JSON map form.
type CLINode = map[string]any

// CLIFile is a JSON-friendly file representation.
type CLIFile struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	Language  string `json:"language"`
	LineCount int    `json:"line_count"`
}

// CLIScope is one scope with its bindings. Lines are 1-based.
type CLIScope struct {
	ID        int64        `json:"id"`
	Kind      string       `json:"kind"`
	Parent    *int64       `json:"parent,omitempty"`
	StartLine int          `json:"start_line"`
	EndLine   int          `json:"end_line"`
	Bindings  []CLIBinding `json:"bindings"`
}

type CLIBinding struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Constant bool   `json:"constant"`
}

// CLIGlobalCount is a global name with the number of files using it.
type CLIGlobalCount struct {
	Name  string `json:"name"`
	Files int    `json:"files"`
}
