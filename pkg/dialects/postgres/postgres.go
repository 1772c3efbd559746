// Package postgres provides the PostgreSQL dialect definition.
package postgres

import "github.com/leapstack-labs/strata/pkg/dialect"

func init() {
	dialect.Register(Dialect)
}

// Dialect is the PostgreSQL dialect definition.
var Dialect = &dialect.Dialect{
	Name:          "postgres",
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
