package compile

import "strings"

// selectBuilder assembles one SELECT statement clause by clause. SQL()
// renders clauses on their own lines; compact() renders a single line for
// inline subqueries.
type selectBuilder struct {
	distinct bool
	items    []string // "expr AS alias"
	from     string
	joins    []string // complete join clauses
	where    []string // ANDed predicates
	groupBy  []string
	orderBy  []string
	limit    string
	offset   string
}

func (s *selectBuilder) clauses(itemSep, clauseSep string) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(strings.Join(s.items, itemSep))
	b.WriteString(clauseSep)
	b.WriteString("FROM ")
	b.WriteString(s.from)
	for _, j := range s.joins {
		b.WriteString(clauseSep)
		b.WriteString(j)
	}
	if len(s.where) > 0 {
		b.WriteString(clauseSep)
		b.WriteString("WHERE ")
		b.WriteString(strings.Join(s.where, " AND "))
	}
	if len(s.groupBy) > 0 {
		b.WriteString(clauseSep)
		b.WriteString("GROUP BY ")
		b.WriteString(strings.Join(s.groupBy, ", "))
	}
	if len(s.orderBy) > 0 {
		b.WriteString(clauseSep)
		b.WriteString("ORDER BY ")
		b.WriteString(strings.Join(s.orderBy, ", "))
	}
	if s.limit != "" {
		b.WriteString(clauseSep)
		b.WriteString("LIMIT ")
		b.WriteString(s.limit)
	}
	if s.offset != "" {
		b.WriteString(clauseSep)
		b.WriteString("OFFSET ")
		b.WriteString(s.offset)
	}
	return b.String()
}

// SQL renders the statement with one clause per line.
func (s *selectBuilder) SQL() string {
	return s.clauses(", ", "\n")
}

// compact renders the statement on a single line.
func (s *selectBuilder) compact() string {
	return s.clauses(", ", " ")
}

// withClause renders a WITH prefix for the given CTEs.
func withClause(names []string, bodies []string) string {
	var b strings.Builder
	b.WriteString("WITH ")
	for i, name := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		b.WriteString(" AS (\n")
		b.WriteString(bodies[i])
		b.WriteString("\n)")
	}
	b.WriteString("\n")
	return b.String()
}
