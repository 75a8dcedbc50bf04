package main

import "github.com/jward/arbor"

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLILocation is a 1-based source position.
type CLILocation struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

// CLIDiagnostic is a JSON-friendly diagnostic.
type CLIDiagnostic struct {
	CLILocation
	Kind    string `json:"kind"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

// CLIDefinition is a JSON-friendly stored binding.
type CLIDefinition struct {
	CLILocation
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Scope       string `json:"scope"`
	Conditional bool   `json:"conditional,omitempty"`
}

// CLIReference is a JSON-friendly stored use.
type CLIReference struct {
	CLILocation
	Name     string `json:"name"`
	Reaching int    `json:"reaching"`
}

// CLIScope is a JSON-friendly scope extent.
type CLIScope struct {
	Kind  string      `json:"kind"`
	Name  string      `json:"name,omitempty"`
	Start CLILocation `json:"start"`
	End   CLILocation `json:"end"`
}

// CLIType is the inferred type at a position.
type CLIType struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
	Type string `json:"type"`
}

// --- Conversion helpers ---

func toCLILocation(l arbor.Location) CLILocation {
	return CLILocation{File: l.File, Line: l.Line, Col: l.Col}
}

func toCLIDiagnostics(diags []arbor.Diagnostic) []CLIDiagnostic {
	out := make([]CLIDiagnostic, len(diags))
	for i, d := range diags {
		out[i] = CLIDiagnostic{
			CLILocation: CLILocation{File: string(d.File), Line: d.Line, Col: d.Col},
			Kind:        d.Kind,
			Name:        d.Name,
			Message:     d.Message,
		}
	}
	return out
}

func toCLIDefinition(d arbor.Definition) CLIDefinition {
	return CLIDefinition{
		CLILocation: toCLILocation(d.Location),
		Name:        d.Name,
		Kind:        d.Kind,
		Scope:       d.Scope,
		Conditional: d.Conditional,
	}
}
