// Package ansi provides the baseline ANSI SQL dialect.
package ansi

import "github.com/leapstack-labs/strata/pkg/dialect"

func init() {
	dialect.Register(Dialect)
}

// Dialect is the ANSI dialect definition. It doubles as the fallback for
// engines without a dedicated dialect package.
var Dialect = &dialect.Dialect{
	Name:          "ansi",
	DefaultSchema: "public",
	Identifiers: dialect.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: dialect.NormLowercase,
	},
	Trunc: dialect.TruncDateTrunc,
	MedianExpr: func(expr string) string {
		return "PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY " + expr + ")"
	},
}
