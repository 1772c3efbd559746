package compile

import (
	"strings"

	"github.com/leapstack-labs/strata/pkg/parser"
	"github.com/leapstack-labs/strata/pkg/semantic"
)

// deniedFilterWords are statement keywords that must never appear in a
// filter fragment. Filters are boolean expressions; anything DDL/DML
// shaped is rejected before rendering.
var deniedFilterWords = []string{
	"insert", "update", "delete", "drop", "alter", "create",
	"truncate", "grant", "revoke", "merge",
}

// filterExpr is a validated request filter.
type filterExpr struct {
	Raw  string
	Expr parser.Expr

	// Models are the referenced model names, sorted unique.
	Models []string

	// dimFields maps model name to referenced dimension names; rawFields
	// to referenced non-dimension columns.
	dimFields map[string][]string
	rawFields map[string][]string
}

// parseFilter validates a raw boolean fragment: brace placeholders are
// normalized, DDL/DML is rejected, the fragment must parse as a single
// expression, and every qualified reference must name a known model.
func parseFilter(g *semantic.Graph, raw string) (*filterExpr, error) {
	lowered := strings.ToLower(raw)
	if strings.Contains(lowered, ";") {
		return nil, &InvalidFilterExpressionError{Filter: raw, Reason: "statement separator not allowed"}
	}
	for _, word := range deniedFilterWords {
		if containsWord(lowered, word) {
			return nil, &InvalidFilterExpressionError{Filter: raw, Reason: "disallowed keyword " + strings.ToUpper(word)}
		}
	}

	expr, err := parser.ParseExpression(normalizeBraces(raw))
	if err != nil {
		return nil, &InvalidFilterExpressionError{Filter: raw, Reason: err.Error()}
	}

	f := &filterExpr{
		Raw:       raw,
		Expr:      expr,
		dimFields: make(map[string][]string),
		rawFields: make(map[string][]string),
	}

	seen := make(map[string]bool)
	var badModel string
	parser.Walk(expr, func(e parser.Expr) bool {
		id, ok := e.(*parser.Identifier)
		if !ok || len(id.Parts) != 2 {
			return true
		}
		model, field := id.Parts[0], id.Parts[1]
		m, found := g.Model(model)
		if !found {
			if badModel == "" {
				badModel = model
			}
			return true
		}
		if !seen[model] {
			seen[model] = true
			f.Models = insertSorted(f.Models, model)
		}
		name := field
		if i := strings.LastIndex(field, granularitySeparator); i > 0 {
			name = field[:i]
		}
		if _, ok := m.Dimension(name); ok {
			f.dimFields[model] = append(f.dimFields[model], name)
		} else {
			f.rawFields[model] = append(f.rawFields[model], field)
		}
		return true
	})
	if badModel != "" {
		return nil, &UnknownModelError{Model: badModel}
	}
	return f, nil
}

// render substitutes every qualified reference through resolve and returns
// the SQL text.
func (f *filterExpr) render(resolve func(model, field string) string) string {
	replaced := replaceIdents(f.Expr, func(id *parser.Identifier) parser.Expr {
		if len(id.Parts) != 2 {
			return nil
		}
		sql := resolve(id.Parts[0], id.Parts[1])
		if sql == "" {
			return nil
		}
		return &parser.RawExpr{SQL: sql, Position: id.Position}
	})
	return parser.RenderExpr(replaced)
}

// normalizeBraces rewrites {model}.field placeholders to model.field,
// leaving string literals untouched.
func normalizeBraces(raw string) string {
	var b strings.Builder
	inString := false
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if ch == '\'' {
			inString = !inString
			b.WriteByte(ch)
			continue
		}
		if ch == '{' && !inString {
			end := strings.IndexByte(raw[i:], '}')
			if end > 1 && isIdentWord(raw[i+1:i+end]) {
				b.WriteString(raw[i+1 : i+end])
				i += end
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func isIdentWord(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		alpha := ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
		if !alpha && !(i > 0 && ch >= '0' && ch <= '9') {
			return false
		}
	}
	return len(s) > 0
}

// containsWord reports whether lowered contains word as a whole word.
func containsWord(lowered, word string) bool {
	for start := 0; ; {
		i := strings.Index(lowered[start:], word)
		if i < 0 {
			return false
		}
		i += start
		before := i == 0 || !isWordByte(lowered[i-1])
		afterIdx := i + len(word)
		after := afterIdx >= len(lowered) || !isWordByte(lowered[afterIdx])
		if before && after {
			return true
		}
		start = i + 1
	}
}

func isWordByte(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9')
}

// insertSorted inserts s into a sorted slice, keeping it sorted.
func insertSorted(list []string, s string) []string {
	for i, v := range list {
		if s < v {
			return append(list[:i], append([]string{s}, list[i:]...)...)
		}
	}
	return append(list, s)
}

// dimensionGrain extracts an optional granularity suffix from a filter
// field reference, validating it against the dimension.
func dimensionGrain(m *semantic.Model, field string) (string, semantic.Grain) {
	if _, ok := m.Dimension(field); ok {
		return field, ""
	}
	i := strings.LastIndex(field, granularitySeparator)
	if i <= 0 {
		return field, ""
	}
	name := field[:i]
	grain := semantic.Grain(field[i+len(granularitySeparator):])
	if _, ok := m.Dimension(name); ok && semantic.ValidGrain(grain) {
		return name, grain
	}
	return field, ""
}
