package interview

import (
	"context"
	"fmt"

	"github.com/matelabs/mateview/internal/ledger"
	"github.com/matelabs/mateview/internal/rowquery"
)

// PointsSource selects where the displayed experience-point total comes
// from.
type PointsSource string

const (
	// PointsFromLedger reads the aggregate stored on the ledger alongside
	// the transcript pointer.
	PointsFromLedger PointsSource = "ledger"
	// PointsFromRowQuery sums rows from the external query gateway. Kept
	// for tables written through the inline-batch schema.
	PointsFromRowQuery PointsSource = "rowquery"
)

// Valid reports whether the source names a known variant.
func (s PointsSource) Valid() bool {
	return s == PointsFromLedger || s == PointsFromRowQuery
}

// PointsReader derives the displayed score for an interview. Reads always
// hit the configured source; no value is cached across interview ids.
type PointsReader struct {
	source PointsSource
	ledger ledger.Ledger
	rows   *rowquery.Client
	table  string
}

func NewPointsReader(source PointsSource, l ledger.Ledger, rows *rowquery.Client, table string) (*PointsReader, error) {
	if !source.Valid() {
		return nil, fmt.Errorf("unsupported points source %q", source)
	}
	if source == PointsFromRowQuery && rows == nil {
		return nil, fmt.Errorf("rowquery points source requires a query client")
	}
	return &PointsReader{source: source, ledger: l, rows: rows, table: table}, nil
}

// PointsFor resolves the aggregate earned points for an interview. With the
// row-query source an absent result set is zero, not an error.
func (p *PointsReader) PointsFor(ctx context.Context, interviewID string) (int, error) {
	switch p.source {
	case PointsFromRowQuery:
		return p.rows.SumPoints(ctx, p.table, interviewID)
	default:
		params, err := p.ledger.GetParams(ctx, interviewID)
		if err != nil {
			return 0, err
		}
		return params.Points, nil
	}
}
