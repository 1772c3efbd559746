// Package dialect provides SQL dialect configuration for the query
// compiler: identifier quoting, time truncation forms, and the small set
// of function shapes that differ between target databases.
//
// Concrete dialects are registered from pkg/dialects/*/ packages via
// init(), so importing a dialect package makes it available by name.
package dialect

import "strings"

// NormalizationStrategy controls how unquoted identifiers are folded.
type NormalizationStrategy int

// Normalization strategies.
const (
	NormLowercase NormalizationStrategy = iota
	NormUppercase
	NormCaseInsensitive
)

// IdentifierConfig describes identifier quoting for a dialect.
type IdentifierConfig struct {
	Quote         string
	QuoteEnd      string
	Escape        string
	Normalization NormalizationStrategy
}

// TruncStyle selects the shape of the time truncation function.
type TruncStyle int

// Truncation styles.
const (
	// TruncDateTrunc renders DATE_TRUNC('month', expr).
	TruncDateTrunc TruncStyle = iota
	// TruncUnitArg renders TIMESTAMP_TRUNC(expr, MONTH) (BigQuery).
	TruncUnitArg
)

// Dialect is a SQL dialect configuration. Instances are immutable after
// registration.
type Dialect struct {
	Name          string
	DefaultSchema string
	Identifiers   IdentifierConfig

	Trunc TruncStyle

	// TruncFunc overrides the truncation function name. Empty means
	// "date_trunc" for TruncDateTrunc and "timestamp_trunc" for
	// TruncUnitArg.
	TruncFunc string

	// MedianExpr overrides how a median aggregate is rendered. Nil means
	// MEDIAN(expr).
	MedianExpr func(expr string) string
}

// NormalizeName folds an identifier according to the dialect's rules.
func (d *Dialect) NormalizeName(name string) string {
	switch d.Identifiers.Normalization {
	case NormUppercase:
		return strings.ToUpper(name)
	default:
		return strings.ToLower(name)
	}
}

// QuoteIdentifier quotes an identifier using the dialect's quote
// characters, escaping embedded closers.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// DateTrunc renders the dialect's truncation of expr to the given unit
// (hour, day, week, month, quarter, year).
func (d *Dialect) DateTrunc(unit, expr string) string {
	switch d.Trunc {
	case TruncUnitArg:
		fn := d.TruncFunc
		if fn == "" {
			fn = "timestamp_trunc"
		}
		return fn + "(" + expr + ", " + strings.ToUpper(unit) + ")"
	default:
		fn := d.TruncFunc
		if fn == "" {
			fn = "date_trunc"
		}
		return fn + "('" + unit + "', " + expr + ")"
	}
}

// Median renders a median aggregate over expr.
func (d *Dialect) Median(expr string) string {
	if d.MedianExpr != nil {
		return d.MedianExpr(expr)
	}
	return "MEDIAN(" + expr + ")"
}
