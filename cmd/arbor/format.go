package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// formatDiagnosticsText writes one "file:line:col: message [kind]" line per
// diagnostic, then a count.
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s:%d:%d: %s [%s]\n", d.File, d.Line, d.Col, d.Message, d.Kind)
	}
	switch len(diags) {
	case 0:
	case 1:
		fmt.Fprintln(w, "1 problem")
	default:
		fmt.Fprintf(w, "%d problems\n", len(diags))
	}
}

// formatDefinitionsText formats CLIDefinition results as aligned columns.
func formatDefinitionsText(w io.Writer, defs []CLIDefinition) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tSCOPE\tLOCATION")
	for _, d := range defs {
		name := d.Name
		if d.Conditional {
			name += "?"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s:%d:%d\n", name, d.Kind, d.Scope, d.File, d.Line, d.Col)
	}
	tw.Flush()
}

// formatReferencesText formats CLIReference results as aligned columns.
func formatReferencesText(w io.Writer, refs []CLIReference) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tREACHING\tLOCATION")
	for _, r := range refs {
		fmt.Fprintf(tw, "%s\t%d\t%s:%d:%d\n", r.Name, r.Reaching, r.File, r.Line, r.Col)
	}
	tw.Flush()
}

// outputResultText dispatches to the text formatter for the result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case []CLIDefinition:
		formatDefinitionsText(w, v)
	case []CLIReference:
		formatReferencesText(w, v)
	case CLIScope:
		label := v.Kind
		if v.Name != "" {
			label += " " + v.Name
		}
		fmt.Fprintf(w, "%s %d:%d-%d:%d\n", label, v.Start.Line, v.Start.Col, v.End.Line, v.End.Col)
	case CLIType:
		fmt.Fprintln(w, v.Type)
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
	case nil:
		// No output for nil results (e.g. scope with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
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
