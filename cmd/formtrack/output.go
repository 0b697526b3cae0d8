package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/mesh-intelligence/formtrack/pkg/types"
)

var (
	doneStyle    = color.New(color.FgGreen)
	pendingStyle = color.New(color.FgYellow)
	headStyle    = color.New(color.Bold)
	faintStyle   = color.New(color.Faint)
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// output writes v as JSON in --json mode and through render otherwise.
func (a *app) output(v any, render func(io.Writer)) error {
	if a.flags.jsonMode {
		return printJSON(a.stdout, v)
	}
	render(a.stdout)
	return nil
}

func renderPersonView(w io.Writer, pv types.PersonView) {
	fmt.Fprintf(w, "%s (%s)\n", headStyle.Sprint(pv.Person.DisplayName), pv.Person.ID)
	fmt.Fprintf(w, "progress: %d/%d %s\n", pv.View.DoneCount, pv.View.TotalRequired, progressBar(pv.Progress, 20))
	if len(pv.View.Items) == 0 {
		fmt.Fprintln(w, faintStyle.Sprint("no required documents"))
		return
	}
	for _, it := range pv.View.Items {
		mark := pendingStyle.Sprint("[ ]")
		if it.Done {
			mark = doneStyle.Sprint("[x]")
		}
		fmt.Fprintf(w, "%s %s  %s", mark, it.DocumentID, it.DocumentName)
		if it.Link != "" {
			fmt.Fprintf(w, "  %s", faintStyle.Sprint(it.Link))
		}
		fmt.Fprintln(w)
	}
}

func renderReport(w io.Writer, r types.Report) {
	if len(r.Entries) == 0 {
		fmt.Fprintln(w, faintStyle.Sprint("no people"))
	}
	for _, e := range r.Entries {
		counts := fmt.Sprintf("%d/%d", e.DoneCount, e.TotalRequired)
		if len(e.Pending) == 0 {
			counts = doneStyle.Sprint(counts)
		} else {
			counts = pendingStyle.Sprint(counts)
		}
		fmt.Fprintf(w, "%s (%s) %s\n", headStyle.Sprint(e.Person.DisplayName), e.Person.ID, counts)
		for _, p := range e.Pending {
			fmt.Fprintf(w, "  - %s\n", p)
		}
	}
	for _, s := range r.Skipped {
		fmt.Fprintln(w, faintStyle.Sprintf("skipped matrix row %d: %s", s.Row, s.Reason))
	}
}

func progressBar(ratio float64, width int) string {
	filled := int(ratio*float64(width) + 0.5)
	filled = min(max(filled, 0), width)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
