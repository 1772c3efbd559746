package parser

import "strings"

// Precedence levels, lowest to highest.
const (
	precLowest = iota
	precOr
	precAnd
	precNot
	precCompare // = != < > <= >= IS IN BETWEEN LIKE
	precAdd     // + - ||
	precMul     // * / %
	precUnary
)

// tokenPrecedence returns the binding power of an infix token.
func tokenPrecedence(t TokenType) int {
	switch t {
	case TokenOr:
		return precOr
	case TokenAnd:
		return precAnd
	case TokenEq, TokenNe, TokenLt, TokenGt, TokenLe, TokenGe,
		TokenIs, TokenIn, TokenBetween, TokenLike, TokenNot:
		return precCompare
	case TokenPlus, TokenMinus, TokenDPipe:
		return precAdd
	case TokenStar, TokenSlash, TokenPercent:
		return precMul
	}
	return precLowest
}

// parseExpression parses an expression with the given minimum precedence.
func (p *Parser) parseExpression(minPrec int) Expr {
	left := p.parseUnary()

	for {
		prec := tokenPrecedence(p.token.Type)
		if prec <= minPrec {
			return left
		}
		left = p.parseInfix(left, prec)
	}
}

// parseUnary parses prefix operators and primary expressions.
func (p *Parser) parseUnary() Expr {
	switch p.token.Type {
	case TokenMinus:
		pos := p.token.Pos
		p.nextToken()
		return &UnaryExpr{Op: "-", Operand: p.parseUnaryOperand(), Position: pos}
	case TokenPlus:
		p.nextToken()
		return p.parseUnaryOperand()
	case TokenNot:
		pos := p.token.Pos
		p.nextToken()
		return &UnaryExpr{Op: "NOT", Operand: p.parseExpression(precNot), Position: pos}
	}
	return p.parsePrimary()
}

// parseUnaryOperand parses the operand of an arithmetic prefix operator.
func (p *Parser) parseUnaryOperand() Expr {
	left := p.parsePrimary()
	for tokenPrecedence(p.token.Type) > precUnary {
		left = p.parseInfix(left, tokenPrecedence(p.token.Type))
	}
	return left
}

// parseInfix parses the operator at the current token, with left already
// consumed.
func (p *Parser) parseInfix(left Expr, prec int) Expr {
	pos := p.token.Pos

	switch p.token.Type {
	case TokenIs:
		p.nextToken()
		not := p.match(TokenNot)
		p.expect(TokenNull)
		return &IsNullExpr{Operand: left, Not: not, Position: pos}

	case TokenNot:
		// NOT IN / NOT BETWEEN / NOT LIKE
		p.nextToken()
		switch p.token.Type {
		case TokenIn:
			p.nextToken()
			return p.parseInRest(left, true, pos)
		case TokenBetween:
			p.nextToken()
			return p.parseBetweenRest(left, true, pos)
		case TokenLike:
			p.nextToken()
			right := p.parseExpression(precCompare)
			return &BinaryExpr{Left: left, Op: "NOT LIKE", Right: right, Position: pos}
		default:
			p.addError("expected IN, BETWEEN, or LIKE after NOT, got %s", p.token.Type)
			return left
		}

	case TokenIn:
		p.nextToken()
		return p.parseInRest(left, false, pos)

	case TokenBetween:
		p.nextToken()
		return p.parseBetweenRest(left, false, pos)

	case TokenLike:
		p.nextToken()
		right := p.parseExpression(precCompare)
		return &BinaryExpr{Left: left, Op: "LIKE", Right: right, Position: pos}
	}

	op := p.token.Type.String()
	if p.check(TokenAnd) {
		op = "AND"
	} else if p.check(TokenOr) {
		op = "OR"
	}
	p.nextToken()
	right := p.parseExpression(prec)
	return &BinaryExpr{Left: left, Op: op, Right: right, Position: pos}
}

// parseInRest parses the parenthesized part of an IN expression.
func (p *Parser) parseInRest(operand Expr, not bool, pos Position) Expr {
	in := &InExpr{Operand: operand, Not: not, Position: pos}
	p.expect(TokenLParen)
	if p.check(TokenSelect) || p.check(TokenWith) {
		in.Subquery = p.parseStatement()
	} else {
		for {
			in.List = append(in.List, p.parseExpression(precLowest))
			if !p.match(TokenComma) {
				break
			}
		}
	}
	p.expect(TokenRParen)
	return in
}

// parseBetweenRest parses low AND high after BETWEEN.
func (p *Parser) parseBetweenRest(operand Expr, not bool, pos Position) Expr {
	// Bounds bind tighter than AND, so parse each side above precAnd.
	low := p.parseExpression(precCompare)
	p.expect(TokenAnd)
	high := p.parseExpression(precCompare)
	return &BetweenExpr{Operand: operand, Not: not, Low: low, High: high, Position: pos}
}

// parsePrimary parses a primary expression followed by any bracket
// subscripts.
func (p *Parser) parsePrimary() Expr {
	expr := p.parsePrimaryBase()
	for p.check(TokenLBracket) {
		pos := p.token.Pos
		p.nextToken()
		index := p.parseExpression(precLowest)
		p.expect(TokenRBracket)
		expr = &IndexExpr{Operand: expr, Index: index, Position: pos}
	}
	return expr
}

// parsePrimaryBase parses literals, identifiers, function calls, CASE,
// CAST, EXISTS, and parenthesized expressions or subqueries.
func (p *Parser) parsePrimaryBase() Expr {
	pos := p.token.Pos

	switch p.token.Type {
	case TokenNumber:
		lit := &NumberLit{Value: p.token.Literal, Position: pos}
		p.nextToken()
		return lit

	case TokenString:
		lit := &StringLit{Value: p.token.Literal, Position: pos}
		p.nextToken()
		return lit

	case TokenTrue:
		p.nextToken()
		return &BoolLit{Value: true, Position: pos}

	case TokenFalse:
		p.nextToken()
		return &BoolLit{Value: false, Position: pos}

	case TokenNull:
		p.nextToken()
		return &NullLit{Position: pos}

	case TokenCase:
		return p.parseCase()

	case TokenCast:
		return p.parseCast()

	case TokenExists:
		p.nextToken()
		p.expect(TokenLParen)
		sub := p.parseStatement()
		p.expect(TokenRParen)
		return &ExistsExpr{Subquery: sub, Position: pos}

	case TokenLParen:
		p.nextToken()
		if p.check(TokenSelect) || p.check(TokenWith) {
			sub := p.parseStatement()
			p.expect(TokenRParen)
			return &SubqueryExpr{Select: sub, Position: pos}
		}
		inner := p.parseExpression(precLowest)
		p.expect(TokenRParen)
		return &ParenExpr{Inner: inner, Position: pos}

	case TokenIdent:
		if p.checkPeek(TokenLParen) && !p.token.Quoted {
			return p.parseFuncCall()
		}
		return p.parseIdentifier()
	}

	p.addError("unexpected token %s in expression", p.token.Type)
	p.nextToken()
	return &NullLit{Position: pos}
}

// parseFuncCall parses name(args) [WITHIN GROUP (ORDER BY ...)]
// [OVER (window)].
func (p *Parser) parseFuncCall() Expr {
	call := &FuncCall{Name: p.token.Literal, Position: p.token.Pos}
	p.nextToken() // name
	p.nextToken() // (

	if p.match(TokenDistinct) {
		call.Distinct = true
	}

	if p.check(TokenStar) {
		call.Args = append(call.Args, &Star{Position: p.token.Pos})
		p.nextToken()
	} else if !p.check(TokenRParen) {
		for {
			call.Args = append(call.Args, p.parseExpression(precLowest))
			if !p.match(TokenComma) {
				break
			}
		}
	}
	p.expect(TokenRParen)

	if p.match(TokenWithin) {
		p.expect(TokenGroup)
		p.expect(TokenLParen)
		p.expect(TokenOrder)
		p.expect(TokenBy)
		call.WithinGroup = p.parseOrderByList()
		p.expect(TokenRParen)
	}

	if p.match(TokenOver) {
		call.Over = p.parseWindowSpec()
	}
	return call
}

// parseWindowSpec parses the parenthesized body of an OVER clause.
func (p *Parser) parseWindowSpec() *WindowSpec {
	spec := &WindowSpec{}
	p.expect(TokenLParen)

	if p.check(TokenPartition) {
		p.nextToken()
		p.expect(TokenBy)
		for {
			spec.PartitionBy = append(spec.PartitionBy, p.parseExpression(precLowest))
			if !p.match(TokenComma) {
				break
			}
		}
	}

	if p.check(TokenOrder) {
		p.nextToken()
		p.expect(TokenBy)
		spec.OrderBy = p.parseOrderByList()
	}

	if p.check(TokenRows) || p.check(TokenRange) {
		spec.Frame = p.parseWindowFrame()
	}

	p.expect(TokenRParen)
	return spec
}

// parseWindowFrame parses ROWS/RANGE BETWEEN bound AND bound.
func (p *Parser) parseWindowFrame() *WindowFrame {
	frame := &WindowFrame{}
	if p.check(TokenRange) {
		frame.Unit = FrameRange
	}
	p.nextToken() // ROWS or RANGE

	if p.match(TokenBetween) {
		frame.Start = p.parseFrameBound()
		p.expect(TokenAnd)
		frame.End = p.parseFrameBound()
	} else {
		frame.Start = p.parseFrameBound()
		frame.End = FrameBound{Kind: BoundCurrentRow}
	}
	return frame
}

// parseFrameBound parses one window frame endpoint.
func (p *Parser) parseFrameBound() FrameBound {
	switch {
	case p.check(TokenUnbounded):
		p.nextToken()
		if p.match(TokenFollowing) {
			return FrameBound{Kind: BoundUnboundedFollowing}
		}
		p.expect(TokenPreceding)
		return FrameBound{Kind: BoundUnboundedPreceding}

	case p.check(TokenCurrent):
		p.nextToken()
		p.expect(TokenRow)
		return FrameBound{Kind: BoundCurrentRow}

	default:
		offset := p.parseExpression(precCompare)
		if p.match(TokenFollowing) {
			return FrameBound{Kind: BoundFollowing, Offset: offset}
		}
		p.expect(TokenPreceding)
		return FrameBound{Kind: BoundPreceding, Offset: offset}
	}
}

// parseCase parses a CASE expression.
func (p *Parser) parseCase() Expr {
	expr := &CaseExpr{Position: p.token.Pos}
	p.nextToken() // CASE

	if !p.check(TokenWhen) {
		expr.Operand = p.parseExpression(precLowest)
	}

	for p.match(TokenWhen) {
		var when CaseWhen
		when.Cond = p.parseExpression(precLowest)
		p.expect(TokenThen)
		when.Result = p.parseExpression(precLowest)
		expr.Whens = append(expr.Whens, when)
	}
	if len(expr.Whens) == 0 {
		p.addError("CASE requires at least one WHEN arm")
	}

	if p.match(TokenElse) {
		expr.Else = p.parseExpression(precLowest)
	}
	p.expect(TokenEnd)
	return expr
}

// parseCast parses CAST(expr AS type). The type is collected verbatim up
// to the closing parenthesis.
func (p *Parser) parseCast() Expr {
	expr := &CastExpr{Position: p.token.Pos}
	p.nextToken() // CAST
	p.expect(TokenLParen)
	expr.Operand = p.parseExpression(precLowest)
	p.expect(TokenAs)

	var parts []string
	depth := 0
	for !p.check(TokenEOF) {
		if p.check(TokenLParen) {
			depth++
		} else if p.check(TokenRParen) {
			if depth == 0 {
				break
			}
			depth--
		}
		parts = append(parts, p.token.Literal)
		p.nextToken()
	}
	expr.Type = strings.Join(parts, " ")
	if expr.Type == "" {
		p.addError("expected type name in CAST")
	}
	p.expect(TokenRParen)
	return expr
}
