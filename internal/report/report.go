// Package report renders query features as a column usage matrix: one CSV
// row per feature with a 0/1 cell for every catalog column.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"

	"github.com/Lorentz83/dbSchema/internal/analyzer"
	"github.com/Lorentz83/dbSchema/internal/catalog"
)

// FeatureWriter writes feature rows over a fixed column axis.
type FeatureWriter struct {
	w       *csv.Writer
	columns []catalog.Column
}

// NewFeatureWriter returns a writer whose column axis is columns, usually
// every catalog column in catalog order.
func NewFeatureWriter(w io.Writer, columns []catalog.Column) *FeatureWriter {
	return &FeatureWriter{w: csv.NewWriter(w), columns: columns}
}

// Header writes "role,type" followed by the qualified column names.
func (fw *FeatureWriter) Header() error {
	names := lo.Map(fw.columns, func(c catalog.Column, _ int) string {
		return c.QualifiedName()
	})
	return fw.w.Write(append([]string{"role", "type"}, names...))
}

// Write adds the row of one feature. An empty label is replaced by the roles
// that authorized the feature, joined with "|".
func (fw *FeatureWriter) Write(f *analyzer.QueryFeature, label string) error {
	if label == "" {
		label = strings.Join(f.RoleNames(), "|")
	}
	row := make([]string, 0, len(fw.columns)+2)
	row = append(row, label, f.Type().Initial())
	for _, c := range fw.columns {
		row = append(row, lo.Ternary(f.Touches(c), "1", "0"))
	}
	return fw.w.Write(row)
}

// WriteAll writes every feature with the same label.
func (fw *FeatureWriter) WriteAll(features []*analyzer.QueryFeature, label string) error {
	for _, f := range features {
		if err := fw.Write(f, label); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes buffered rows.
func (fw *FeatureWriter) Flush() error {
	fw.w.Flush()
	if err := fw.w.Error(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
