// Package snowflake provides the Snowflake dialect definition.
package snowflake

import "github.com/leapstack-labs/strata/pkg/dialect"

func init() {
	dialect.Register(Dialect)
}

// Dialect is the Snowflake dialect definition. Unquoted identifiers fold
// to uppercase, so generated SQL quotes every alias it produces.
var Dialect = &dialect.Dialect{
	Name:          "snowflake",
	DefaultSchema: "PUBLIC",
	Identifiers: dialect.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: dialect.NormUppercase,
	},
	Trunc: dialect.TruncDateTrunc,
}
