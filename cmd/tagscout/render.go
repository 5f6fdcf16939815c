package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"tagscout/internal/suggest"
)

// renderTable prints one file's suggestions as a terminal table, fields in
// request order, best suggestion first within each field.
func renderTable(path string, fields []suggest.Field, suggestions map[suggest.Field][]suggest.Suggestion) {
	fmt.Println(path)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Field", "Value", "Confidence", "Source"})

	for _, field := range fields {
		suggs := suggestions[field]
		if len(suggs) == 0 {
			t.AppendRow(table.Row{field, "(no suggestions)", "", ""})
			continue
		}
		for i, sg := range suggs {
			name := ""
			if i == 0 {
				name = string(field)
			}
			t.AppendRow(table.Row{name, sg.Value, fmt.Sprintf("%d%%", sg.Confidence), sg.Source})
		}
		t.AppendSeparator()
	}

	t.Render()
}

// renderJSON prints one file's suggestions as a single JSON object.
func renderJSON(path string, fields []suggest.Field, suggestions map[suggest.Field][]suggest.Suggestion) error {
	out := struct {
		Path        string                                 `json:"path"`
		Suggestions map[suggest.Field][]suggest.Suggestion `json:"suggestions"`
	}{Path: path, Suggestions: suggestions}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
