package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"opshub/internal/logger"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrUnknownReport = errors.New("unknown report")
	ErrUnknownFormat = errors.New("unknown format, want csv or xlsx")
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Table is a rendered report: a header plus rows of plain cell values
// (string, int, bool, decimal.Decimal, time.Time or nil).
type Table struct {
	Name   string
	Title  string
	Header []string
	Rows   [][]interface{}
}

// Params narrow a report. Zero values mean "all" or the report default.
type Params struct {
	Business  string
	Since     time.Time
	Threshold decimal.Decimal
	Limit     int
	Now       time.Time
}

type builder func(ctx context.Context, db *gorm.DB, p Params) (*Table, error)

type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	build       builder
}

// Exporter builds named reports from the database and writes them out.
type Exporter struct {
	db     *gorm.DB
	logger *logger.Logger
	defs   map[string]Definition
}

func New(db *gorm.DB, logger *logger.Logger) *Exporter {
	e := &Exporter{db: db, logger: logger, defs: make(map[string]Definition)}
	for _, def := range definitions() {
		e.defs[def.Name] = def
	}
	return e
}

// List returns the available reports sorted by name.
func (e *Exporter) List() []Definition {
	out := make([]Definition, 0, len(e.defs))
	for _, def := range e.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (e *Exporter) Build(ctx context.Context, name string, p Params) (*Table, error) {
	def, ok := e.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReport, name)
	}
	if p.Now.IsZero() {
		p.Now = time.Now().UTC()
	}
	table, err := def.build(ctx, e.db, p)
	if err != nil {
		return nil, fmt.Errorf("build %s report: %w", name, err)
	}
	table.Name = name
	e.logger.Debug("Built %s report with %d rows", name, len(table.Rows))
	return table, nil
}

// Export builds a report and writes it to w in the given format.
func (e *Exporter) Export(ctx context.Context, name, format string, p Params, w io.Writer) (*Table, error) {
	if _, err := ContentType(format); err != nil {
		return nil, err
	}
	table, err := e.Build(ctx, name, p)
	if err != nil {
		return nil, err
	}
	if err := Write(w, table, format); err != nil {
		return nil, err
	}
	return table, nil
}

// Filename is the suggested download name, e.g. low-margin-2026-03-02.xlsx.
func Filename(name, format string, now time.Time) string {
	return fmt.Sprintf("%s-%s.%s", name, now.Format("2006-01-02"), format)
}
