package cli

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	tablePadding  = 2
	defaultWidth  = 100
	minTextColumn = 20
)

func writeJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// terminalWidth returns the width of out when it is a terminal.
func terminalWidth(out io.Writer) (int, bool) {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth, true
	}
	return width, true
}

type styles struct {
	root   lipgloss.Style
	reply  lipgloss.Style
	leaf   lipgloss.Style
	sub    lipgloss.Style
	loader lipgloss.Style
	muted  lipgloss.Style
}

func newStyles(enabled bool) styles {
	if !enabled {
		plain := lipgloss.NewStyle()
		return styles{root: plain, reply: plain, leaf: plain, sub: plain, loader: plain, muted: plain}
	}
	return styles{
		root:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		reply:  lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		leaf:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		sub:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		loader: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8")),
		muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// truncate shortens value to width display cells.
func truncate(value string, width int) string {
	value = strings.Join(strings.Fields(value), " ")
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	return runewidth.Truncate(value, width, "…")
}

func writeTable(out io.Writer, headers []string, rows [][]string) error {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	measure := func(row []string) {
		for idx, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[idx] {
				widths[idx] = w
			}
		}
	}
	measure(headers)
	for _, row := range rows {
		measure(row)
	}

	writer := bufio.NewWriter(out)
	writeRow := func(row []string) {
		for idx := 0; idx < colCount; idx++ {
			cell := ""
			if idx < len(row) {
				cell = row[idx]
			}
			writer.WriteString(cell)
			if idx < colCount-1 {
				padding := widths[idx] - runewidth.StringWidth(cell)
				writer.WriteString(strings.Repeat(" ", padding+tablePadding))
			}
		}
		writer.WriteString("\n")
	}

	if len(headers) > 0 {
		writeRow(headers)
	}
	for _, row := range rows {
		writeRow(row)
	}
	return writer.Flush()
}
