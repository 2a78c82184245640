package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/vk/cleangrid/internal/descriptor"
)

// Components writes one line per registered descriptor: kind, identity,
// display name and description. Analyzers that cannot run on more than one
// partition are marked.
func (a *App) Components(w io.Writer) error {
	all := a.registry.All()
	header := []string{"KIND", "IDENTITY", "NAME", "DESCRIPTION"}
	rows := make([][]string, 0, len(all))
	for _, d := range all {
		desc := d.Description()
		if d.Kind() == descriptor.KindAnalyzer && !d.IsDistributable() {
			desc = strings.TrimSpace(desc + " (single partition)")
		}
		rows = append(rows, []string{d.Kind().String(), d.Identity(), d.DisplayName(), desc})
	}

	widths := make([]int, len(header)-1)
	for _, row := range append([][]string{header}, rows...) {
		for i := range widths {
			widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
		}
	}
	for _, row := range append([][]string{header}, rows...) {
		var line strings.Builder
		for i, cell := range row {
			if i < len(widths) {
				line.WriteString(runewidth.FillRight(cell, widths[i]+2))
				continue
			}
			line.WriteString(cell)
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(line.String(), " ")); err != nil {
			return err
		}
	}
	return nil
}
