// Package parser provides SQL parsing for the SELECT subset the compiler
// emits and the rewriter accepts.
//
// # Usage
//
//	stmt, err := parser.Parse("SELECT a, b FROM t WHERE a > 1")
//	if err != nil {
//	    // handle error
//	}
//
// # Grammar Overview
//
//	statement   → [WITH [RECURSIVE] cte_list] select_core [;]
//	select_core → SELECT [DISTINCT] select_list [FROM from_clause]
//	              [WHERE expr] [GROUP BY expr_list] [HAVING expr]
//	              [ORDER BY order_list] [LIMIT expr] [OFFSET expr]
//
// Expressions are parsed by a Pratt parser in expr.go.
package parser

import "fmt"

// Parser parses SQL into an AST.
type Parser struct {
	lexer  *Lexer
	token  Token // current token
	peek   Token // lookahead token
	peek2  Token // second lookahead token
	errors []error
}

// NewParser creates a new parser for the given SQL input.
func NewParser(sql string) *Parser {
	p := &Parser{lexer: NewLexer(sql)}
	// Read three tokens to initialize current, peek, and peek2
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a SELECT statement and returns its AST.
func Parse(sql string) (*SelectStatement, error) {
	p := NewParser(sql)
	stmt := p.parseStatement()
	p.match(TokenSemicolon)
	if !p.check(TokenEOF) {
		p.addError("unexpected token %s after statement", p.token.Type)
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return stmt, nil
}

// ParseExpression parses a standalone scalar or boolean expression.
func ParseExpression(sql string) (Expr, error) {
	p := NewParser(sql)
	expr := p.parseExpression(precLowest)
	if !p.check(TokenEOF) {
		p.addError("unexpected token %s after expression", p.token.Type)
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return expr, nil
}

// ---------- Token Helpers ----------

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t TokenType) bool {
	return p.peek.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError("unexpected token %s, expected %s", p.token.Type, t)
	return false
}

// addError records a parse error at the current token.
func (p *Parser) addError(format string, args ...any) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.token.Pos,
		Message: fmt.Sprintf(format, args...),
	})
}

// ---------- Statements ----------

// parseStatement parses [WITH cte_list] select_core.
func (p *Parser) parseStatement() *SelectStatement {
	pos := p.token.Pos

	var ctes []CTE
	if p.match(TokenWith) {
		p.match(TokenRecursive)
		for {
			ctes = append(ctes, p.parseCTE())
			if !p.match(TokenComma) {
				break
			}
		}
	}

	stmt := p.parseSelectCore()
	if stmt == nil {
		return nil
	}
	stmt.CTEs = ctes
	stmt.Position = pos
	return stmt
}

// parseCTE parses name AS (select).
func (p *Parser) parseCTE() CTE {
	var cte CTE
	if p.check(TokenIdent) {
		cte.Name = p.token.Literal
		p.nextToken()
	} else {
		p.addError("expected CTE name, got %s", p.token.Type)
	}
	p.expect(TokenAs)
	p.expect(TokenLParen)
	cte.Select = p.parseStatement()
	p.expect(TokenRParen)
	return cte
}

// parseSelectCore parses a SELECT without a WITH clause.
func (p *Parser) parseSelectCore() *SelectStatement {
	pos := p.token.Pos
	if !p.expect(TokenSelect) {
		return nil
	}

	stmt := &SelectStatement{Position: pos}
	if p.match(TokenDistinct) {
		stmt.Distinct = true
	} else {
		p.match(TokenAll)
	}

	for {
		stmt.Items = append(stmt.Items, p.parseSelectItem())
		if !p.match(TokenComma) {
			break
		}
	}

	if p.match(TokenFrom) {
		stmt.From = p.parseTableRef()
		for p.atJoin() {
			stmt.Joins = append(stmt.Joins, p.parseJoin())
		}
	}

	if p.match(TokenWhere) {
		stmt.Where = p.parseExpression(precLowest)
	}

	if p.check(TokenGroup) {
		p.nextToken()
		p.expect(TokenBy)
		for {
			stmt.GroupBy = append(stmt.GroupBy, p.parseExpression(precLowest))
			if !p.match(TokenComma) {
				break
			}
		}
	}

	if p.match(TokenHaving) {
		stmt.Having = p.parseExpression(precLowest)
	}

	if p.check(TokenOrder) {
		p.nextToken()
		p.expect(TokenBy)
		stmt.OrderBy = p.parseOrderByList()
	}

	if p.match(TokenLimit) {
		stmt.Limit = p.parseExpression(precLowest)
	}
	if p.match(TokenOffset) {
		stmt.Offset = p.parseExpression(precLowest)
	}

	return stmt
}

// parseSelectItem parses one projection: expr [[AS] alias] or *.
func (p *Parser) parseSelectItem() SelectItem {
	if p.check(TokenStar) {
		pos := p.token.Pos
		p.nextToken()
		return SelectItem{Expr: &Star{Position: pos}}
	}

	item := SelectItem{Expr: p.parseExpression(precLowest)}
	if p.match(TokenAs) {
		if p.check(TokenIdent) {
			item.Alias = p.token.Literal
			p.nextToken()
		} else {
			p.addError("expected alias after AS, got %s", p.token.Type)
		}
	} else if p.check(TokenIdent) {
		item.Alias = p.token.Literal
		p.nextToken()
	}
	return item
}

// parseTableRef parses a named table or a parenthesized subquery, with an
// optional alias.
func (p *Parser) parseTableRef() *TableRef {
	ref := &TableRef{Position: p.token.Pos}

	if p.check(TokenLParen) {
		p.nextToken()
		ref.Subquery = p.parseStatement()
		p.expect(TokenRParen)
	} else if p.check(TokenIdent) {
		ref.Name = p.parseIdentifier()
	} else {
		p.addError("expected table name or subquery, got %s", p.token.Type)
		return ref
	}

	if p.match(TokenAs) {
		if p.check(TokenIdent) {
			ref.Alias = p.token.Literal
			p.nextToken()
		} else {
			p.addError("expected alias after AS, got %s", p.token.Type)
		}
	} else if p.check(TokenIdent) {
		ref.Alias = p.token.Literal
		p.nextToken()
	}
	return ref
}

// atJoin reports whether the current token starts a join clause.
func (p *Parser) atJoin() bool {
	switch p.token.Type {
	case TokenJoin, TokenInner, TokenLeft, TokenRight, TokenFull, TokenCross:
		return true
	}
	return false
}

// parseJoin parses one join clause.
func (p *Parser) parseJoin() JoinClause {
	var join JoinClause

	switch p.token.Type {
	case TokenInner:
		p.nextToken()
		join.Type = JoinInner
	case TokenLeft:
		p.nextToken()
		p.match(TokenOuter)
		join.Type = JoinLeft
	case TokenRight:
		p.nextToken()
		p.match(TokenOuter)
		join.Type = JoinRight
	case TokenFull:
		p.nextToken()
		p.match(TokenOuter)
		join.Type = JoinFull
	case TokenCross:
		p.nextToken()
		join.Type = JoinCross
	default:
		join.Type = JoinInner
	}
	p.expect(TokenJoin)

	join.Table = p.parseTableRef()
	if join.Type != JoinCross {
		p.expect(TokenOn)
		join.On = p.parseExpression(precLowest)
	}
	return join
}

// parseOrderByList parses a comma-separated ORDER BY list.
func (p *Parser) parseOrderByList() []OrderByItem {
	var items []OrderByItem
	for {
		item := OrderByItem{Expr: p.parseExpression(precLowest)}
		if p.match(TokenDesc) {
			item.Desc = true
		} else {
			p.match(TokenAsc)
		}
		if p.match(TokenNulls) {
			switch {
			case p.check(TokenFirst):
				p.nextToken()
				v := true
				item.NullsFirst = &v
			case p.check(TokenLast):
				p.nextToken()
				v := false
				item.NullsFirst = &v
			default:
				p.addError("expected FIRST or LAST after NULLS, got %s", p.token.Type)
			}
		}
		items = append(items, item)
		if !p.match(TokenComma) {
			break
		}
	}
	return items
}

// parseIdentifier parses a dotted identifier path.
func (p *Parser) parseIdentifier() *Identifier {
	id := &Identifier{Position: p.token.Pos}
	id.Parts = append(id.Parts, p.token.Literal)
	id.Quoted = append(id.Quoted, p.token.Quoted)
	p.nextToken()

	for p.check(TokenDot) {
		p.nextToken()
		if p.check(TokenIdent) || p.check(TokenStar) {
			id.Parts = append(id.Parts, p.token.Literal)
			id.Quoted = append(id.Quoted, p.token.Quoted)
			p.nextToken()
		} else {
			p.addError("expected identifier after '.', got %s", p.token.Type)
			break
		}
	}
	return id
}
