package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/atomicdeploy/tablecrud/pkg/schema"
)

// Format represents the export format type
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatCSV:
		return Format(s), nil
	}
	return "", fmt.Errorf("unsupported format: %s (expected json or csv)", s)
}

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// Exporter writes the rows of one table
type Exporter struct {
	table *schema.TableDescriptor
}

// NewExporter creates an exporter for t
func NewExporter(t schema.Table) *Exporter {
	return &Exporter{table: t.Descriptor()}
}

// Write encodes records in the given format
func (e *Exporter) Write(w io.Writer, format Format, records []schema.Record) error {
	switch format {
	case FormatCSV:
		return e.WriteCSV(w, records)
	case FormatJSON:
		return e.WriteJSON(w, records)
	}
	return fmt.Errorf("unsupported format: %s", format)
}

// WriteCSV writes a header of column names followed by one line per record
func (e *Exporter) WriteCSV(w io.Writer, records []schema.Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(e.table.Columns()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range records {
		if err := writer.Write(rec.Strings()); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteJSON writes an object keyed by primary key, each value mapping column to value
func (e *Exporter) WriteJSON(w io.Writer, records []schema.Record) error {
	data, err := json.MarshalIndent(e.Transform(records), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

// Transform keys every record by its primary key
func (e *Exporter) Transform(records []schema.Record) map[string]map[string]any {
	columns := e.table.Columns()
	result := make(map[string]map[string]any, len(records))

	for _, rec := range records {
		if len(rec) != len(columns) {
			continue
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = rec[i]
		}
		result[schema.FormatValue(rec[0])] = row
	}
	return result
}

// ExportToFile writes records to <dir>/<table>.<format> and returns the path
func (e *Exporter) ExportToFile(dir string, format Format, records []schema.Record) (string, error) {
	outputPath := filepath.Join(dir, e.table.Name+"."+string(format))

	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := e.Write(file, format, records); err != nil {
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close output file: %w", err)
	}
	return outputPath, nil
}
