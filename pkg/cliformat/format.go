// Package cliformat renders orchestrator status output in the handful of
// shapes the command-line client supports: a human-readable column table,
// compact JSON, pretty-printed JSON, or the raw Go value.
package cliformat

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Format selects how Formatter renders a value.
type Format int

const (
	Human Format = iota
	JSON
	JSONPretty
	Raw
)

// Humanize renders input as the human-readable form; callers supply one per
// value shape (pod table, release info, ...).
type Humanize func(input interface{}) string

// Formatter renders a value according to its configured Format.
type Formatter struct {
	format Format
}

// NewFormatter maps a --output flag value to a Formatter, defaulting to
// Human for anything unrecognized.
func NewFormatter(output string) Formatter {
	switch output {
	case "json":
		return Formatter{JSON}
	case "jsonpp":
		return Formatter{JSONPretty}
	case "raw":
		return Formatter{Raw}
	default:
		return Formatter{Human}
	}
}

// Render formats input, using h for the Human case.
func (f Formatter) Render(input interface{}, h Humanize) (string, error) {
	switch f.format {
	case JSON:
		return f.jsonize(input)
	case JSONPretty:
		return f.jsonPPize(input)
	case Raw:
		return fmt.Sprintf("%v", input), nil
	default:
		return h(input), nil
	}
}

func (f Formatter) jsonize(input interface{}) (string, error) {
	b, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	var out bytes.Buffer
	if err := json.Compact(&out, b); err != nil {
		return "", fmt.Errorf("compact: %w", err)
	}
	return out.String(), nil
}

func (f Formatter) jsonPPize(input interface{}) (string, error) {
	b, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "    "); err != nil {
		return "", fmt.Errorf("indent: %w", err)
	}
	return out.String(), nil
}

const maxCols = 16

// Columnize pads whitespace-separated fields in text into aligned columns,
// one input line per row.
func Columnize(text string) string {
	scanner := bufio.NewScanner(strings.NewReader(text))
	var rows [][]string
	var widths [maxCols]int

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		for i, field := range fields {
			if i < maxCols && len(field) > widths[i] {
				widths[i] = len(field)
			}
		}
		rows = append(rows, fields)
	}

	return strings.TrimSpace(render(widths, rows))
}

func render(widths [maxCols]int, rows [][]string) string {
	var b bytes.Buffer
	for _, fields := range rows {
		for col, field := range fields {
			w := 0
			if col < maxCols {
				w = widths[col]
			}
			b.WriteString(pad(w, field))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func pad(width int, text string) string {
	var b bytes.Buffer
	b.WriteString(text)
	for i := 0; i < (2+width)-len(text); i++ {
		b.WriteString(" ")
	}
	return b.String()
}
