package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
)

// outputWriter is where command output goes; tests swap it for a buffer.
var outputWriter io.Writer = os.Stdout

func setOutputWriter(w io.Writer) {
	outputWriter = w
}

func resetOutputWriter() {
	outputWriter = os.Stdout
}

var (
	okStyle   = color.New(color.FgGreen)
	failStyle = color.New(color.FgRed, color.OpBold)
	warnStyle = color.New(color.FgYellow)
	keyStyle  = color.New(color.FgCyan)
)

// printHeader prints a formatted header
func printHeader(format string, args ...interface{}) {
	title := fmt.Sprintf(format, args...)
	width := runewidth.StringWidth(title) + 4
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
	fmt.Fprintf(outputWriter, "  %s\n", color.OpBold.Sprint(title))
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
}

// printSection prints a section header
func printSection(title string) {
	fmt.Fprintf(outputWriter, "[%s]\n", title)
	fmt.Fprintln(outputWriter, strings.Repeat("-", runewidth.StringWidth(title)+2))
}

func printOK(format string, args ...interface{}) {
	fmt.Fprintf(outputWriter, "  %s %s\n", okStyle.Sprint("✅"), fmt.Sprintf(format, args...))
}

func printFail(format string, args ...interface{}) {
	fmt.Fprintf(outputWriter, "  %s %s\n", failStyle.Sprint("❌"), fmt.Sprintf(format, args...))
}

func printWarn(format string, args ...interface{}) {
	fmt.Fprintf(outputWriter, "  %s %s\n", warnStyle.Sprint("⚠️"), fmt.Sprintf(format, args...))
}

// printTable prints rows as left-aligned columns sized by display width, so
// wide characters in table or column names keep the grid straight.
func printTable(header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(cell))
			}
		}
	}

	line := func(cells []string, style color.Style) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			padded := cell
			if i < len(cells)-1 {
				padded = runewidth.FillRight(cell, widths[i])
			}
			if i == 0 && style != nil {
				padded = style.Sprint(padded)
			}
			parts[i] = padded
		}
		fmt.Fprintf(outputWriter, "  %s\n", strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	line(header, nil)
	sep := make([]string, len(header))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	line(sep, nil)
	for _, row := range rows {
		line(row, keyStyle)
	}
}

// printJSON writes v as indented JSON.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(outputWriter, string(data))
	return err
}
