// Package duckdb provides the DuckDB SQL dialect definition.
// This package is pure configuration with no database driver dependencies.
package duckdb

import "github.com/leapstack-labs/strata/pkg/dialect"

func init() {
	dialect.Register(Dialect)
}

// Dialect is the DuckDB dialect definition.
var Dialect = &dialect.Dialect{
	Name:          "duckdb",
	DefaultSchema: "main",
	Identifiers: dialect.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: dialect.NormCaseInsensitive,
	},
	Trunc: dialect.TruncDateTrunc,
}
