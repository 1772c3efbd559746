// Package bigquery provides the BigQuery dialect definition.
package bigquery

import "github.com/leapstack-labs/strata/pkg/dialect"

func init() {
	dialect.Register(Dialect)
}

// Dialect is the BigQuery dialect definition. Identifiers quote with
// backticks and truncation takes the unit as a bare keyword argument.
var Dialect = &dialect.Dialect{
	Name:          "bigquery",
	DefaultSchema: "",
	Identifiers: dialect.IdentifierConfig{
		Quote:         "`",
		QuoteEnd:      "`",
		Escape:        "``",
		Normalization: dialect.NormCaseInsensitive,
	},
	Trunc:     dialect.TruncUnitArg,
	TruncFunc: "timestamp_trunc",
	MedianExpr: func(expr string) string {
		return "APPROX_QUANTILES(" + expr + ", 2)[SAFE_OFFSET(1)]"
	},
}
