package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/flowsync/pkg/flowsync/types"
)

var (
	warnFileStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	warnBodyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).PaddingLeft(2)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// printWarnings renders the per-file warnings the remote returned. The
// warning payloads are opaque; they are shown as compact JSON, with a
// "message" field surfaced when one exists.
func printWarnings(warnings types.WarningMap) {
	total := countWarnings(warnings)
	if total == 0 {
		fmt.Println(okStyle.Render("No warnings reported."))
		return
	}

	files := make([]string, 0, len(warnings))
	for f := range warnings {
		files = append(files, f)
	}
	sort.Strings(files)

	for _, file := range files {
		if len(warnings[file]) == 0 {
			continue
		}
		fmt.Println(warnFileStyle.Render(file))
		for _, w := range warnings[file] {
			fmt.Println(warnBodyStyle.Render(renderWarning(w)))
		}
	}
	fmt.Printf("%d warning(s) across %d file(s).\n", total, len(files))
}

// renderWarning surfaces the message field when present, falling back to
// the raw JSON.
func renderWarning(w types.Warning) string {
	var probe struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w, &probe); err == nil && probe.Message != "" {
		return probe.Message
	}
	return string(w)
}

// countWarnings totals warnings across all files.
func countWarnings(warnings types.WarningMap) int {
	total := 0
	for _, ws := range warnings {
		total += len(ws)
	}
	return total
}
