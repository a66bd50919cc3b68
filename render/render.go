// Package render writes command results as a table, JSON or YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	Table Format = "table"
	JSON  Format = "json"
	YAML  Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case Table, JSON, YAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (table, json, yaml)", s)
}

// OutputFlag is the --output flag shared by every listing command.
func OutputFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "output format (table, json, yaml)",
		Value:   string(Table),
		Validator: func(s string) error {
			_, err := ParseFormat(s)
			return err
		},
	}
}

// Write renders v in the given format. tabular builds the table form
// and is only called for Table.
func Write(w io.Writer, format Format, v any, tabular func() fmt.Stringer) error {
	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case Table, "":
		_, err := fmt.Fprintln(w, tabular())
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func NewTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// KeyValues renders label/value pairs as a two-column table.
func KeyValues(pairs ...[2]string) *table.Table {
	t := table.New().Border(lipgloss.HiddenBorder()).StyleFunc(func(row, col int) lipgloss.Style {
		if col == 0 {
			return headerStyle
		}
		return cellStyle
	})
	for _, p := range pairs {
		t.Row(p[0], p[1])
	}
	return t
}
