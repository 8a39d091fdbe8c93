package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"

	"github.com/ormkit/postgres-backend-go/backend"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputPlain = "plain"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// writeResult renders a query result in the requested output format.
func writeResult(w io.Writer, format string, result backend.QueryResult) error {
	switch format {
	case outputTable:
		return writeTable(w, result)
	case outputJSON:
		return writeJSON(w, result)
	case outputPlain:
		return writePlain(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// writeTable renders rows as an aligned table with a row count footer.
func writeTable(w io.Writer, result backend.QueryResult) error {
	if len(result.Columns) == 0 {
		fmt.Fprintf(w, "OK, %d row(s) affected\n", result.AffectedRows)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(result.Columns, "\t"))

	separators := make([]string, len(result.Columns))
	for i, column := range result.Columns {
		separators[i] = strings.Repeat("-", len(column))
	}
	fmt.Fprintln(tw, strings.Join(separators, "\t"))

	for _, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i, column := range result.Columns {
			cells[i] = formatCell(row[column])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "(%d row(s))\n", len(result.Rows))

	return nil
}

// writeJSON renders rows as a JSON array, or the affected count for row-less results.
func writeJSON(w io.Writer, result backend.QueryResult) error {
	var payload any

	if len(result.Columns) == 0 {
		payload = map[string]any{"affected_rows": result.AffectedRows}
	} else {
		rows := result.Rows
		if rows == nil {
			rows = []backend.Row{}
		}
		payload = rows
	}

	encoded, err := jsonAPI.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(encoded))

	return err
}

// writePlain renders one row per line with values separated by a single pipe.
func writePlain(w io.Writer, result backend.QueryResult) error {
	if len(result.Columns) == 0 {
		fmt.Fprintf(w, "%d\n", result.AffectedRows)
		return nil
	}

	for _, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i, column := range result.Columns {
			cells[i] = formatCell(row[column])
		}
		fmt.Fprintln(w, strings.Join(cells, "|"))
	}

	return nil
}

func formatCell(value any) string {
	if value == nil {
		return "NULL"
	}

	return fmt.Sprintf("%v", value)
}
