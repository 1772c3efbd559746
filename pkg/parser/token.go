package parser

import "fmt"

// TokenType identifies the lexical class of a token.
type TokenType int

// Token types. Operators and keywords cover the SELECT subset the
// compiler emits and the rewriter accepts.
const (
	TokenEOF TokenType = iota
	TokenIllegal

	TokenIdent
	TokenNumber
	TokenString

	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenPercent
	TokenDPipe
	TokenEq
	TokenNe
	TokenLt
	TokenGt
	TokenLe
	TokenGe
	TokenDot
	TokenComma
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenSemicolon

	// Keywords, alphabetical.
	TokenAll
	TokenAnd
	TokenAs
	TokenAsc
	TokenBetween
	TokenBy
	TokenCase
	TokenCast
	TokenCross
	TokenCurrent
	TokenDesc
	TokenDistinct
	TokenElse
	TokenEnd
	TokenExists
	TokenFalse
	TokenFilter
	TokenFirst
	TokenFollowing
	TokenFrom
	TokenFull
	TokenGroup
	TokenHaving
	TokenIn
	TokenInner
	TokenIs
	TokenJoin
	TokenLast
	TokenLeft
	TokenLike
	TokenLimit
	TokenNot
	TokenNull
	TokenNulls
	TokenOffset
	TokenOn
	TokenOr
	TokenOrder
	TokenOuter
	TokenOver
	TokenPartition
	TokenPreceding
	TokenRange
	TokenRecursive
	TokenRight
	TokenRow
	TokenRows
	TokenSelect
	TokenThen
	TokenTrue
	TokenUnbounded
	TokenUnion
	TokenWhen
	TokenWhere
	TokenWith
	TokenWithin
)

// tokenNames maps token types to display strings for error messages.
var tokenNames = map[TokenType]string{
	TokenEOF:     "EOF",
	TokenIllegal: "ILLEGAL",

	TokenIdent:  "IDENT",
	TokenNumber: "NUMBER",
	TokenString: "STRING",

	TokenPlus:      "+",
	TokenMinus:     "-",
	TokenStar:      "*",
	TokenSlash:     "/",
	TokenPercent:   "%",
	TokenDPipe:     "||",
	TokenEq:        "=",
	TokenNe:        "!=",
	TokenLt:        "<",
	TokenGt:        ">",
	TokenLe:        "<=",
	TokenGe:        ">=",
	TokenDot:       ".",
	TokenComma:     ",",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenLBracket:  "[",
	TokenRBracket:  "]",
	TokenSemicolon: ";",

	TokenAll:       "ALL",
	TokenAnd:       "AND",
	TokenAs:        "AS",
	TokenAsc:       "ASC",
	TokenBetween:   "BETWEEN",
	TokenBy:        "BY",
	TokenCase:      "CASE",
	TokenCast:      "CAST",
	TokenCross:     "CROSS",
	TokenCurrent:   "CURRENT",
	TokenDesc:      "DESC",
	TokenDistinct:  "DISTINCT",
	TokenElse:      "ELSE",
	TokenEnd:       "END",
	TokenExists:    "EXISTS",
	TokenFalse:     "FALSE",
	TokenFilter:    "FILTER",
	TokenFirst:     "FIRST",
	TokenFollowing: "FOLLOWING",
	TokenFrom:      "FROM",
	TokenFull:      "FULL",
	TokenGroup:     "GROUP",
	TokenHaving:    "HAVING",
	TokenIn:        "IN",
	TokenInner:     "INNER",
	TokenIs:        "IS",
	TokenJoin:      "JOIN",
	TokenLast:      "LAST",
	TokenLeft:      "LEFT",
	TokenLike:      "LIKE",
	TokenLimit:     "LIMIT",
	TokenNot:       "NOT",
	TokenNull:      "NULL",
	TokenNulls:     "NULLS",
	TokenOffset:    "OFFSET",
	TokenOn:        "ON",
	TokenOr:        "OR",
	TokenOrder:     "ORDER",
	TokenOuter:     "OUTER",
	TokenOver:      "OVER",
	TokenPartition: "PARTITION",
	TokenPreceding: "PRECEDING",
	TokenRange:     "RANGE",
	TokenRecursive: "RECURSIVE",
	TokenRight:     "RIGHT",
	TokenRow:       "ROW",
	TokenRows:      "ROWS",
	TokenSelect:    "SELECT",
	TokenThen:      "THEN",
	TokenTrue:      "TRUE",
	TokenUnbounded: "UNBOUNDED",
	TokenUnion:     "UNION",
	TokenWhen:      "WHEN",
	TokenWhere:     "WHERE",
	TokenWith:      "WITH",
	TokenWithin:    "WITHIN",
}

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", int(t))
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"all":       TokenAll,
	"and":       TokenAnd,
	"as":        TokenAs,
	"asc":       TokenAsc,
	"between":   TokenBetween,
	"by":        TokenBy,
	"case":      TokenCase,
	"cast":      TokenCast,
	"cross":     TokenCross,
	"current":   TokenCurrent,
	"desc":      TokenDesc,
	"distinct":  TokenDistinct,
	"else":      TokenElse,
	"end":       TokenEnd,
	"exists":    TokenExists,
	"false":     TokenFalse,
	"filter":    TokenFilter,
	"first":     TokenFirst,
	"following": TokenFollowing,
	"from":      TokenFrom,
	"full":      TokenFull,
	"group":     TokenGroup,
	"having":    TokenHaving,
	"in":        TokenIn,
	"inner":     TokenInner,
	"is":        TokenIs,
	"join":      TokenJoin,
	"last":      TokenLast,
	"left":      TokenLeft,
	"like":      TokenLike,
	"limit":     TokenLimit,
	"not":       TokenNot,
	"null":      TokenNull,
	"nulls":     TokenNulls,
	"offset":    TokenOffset,
	"on":        TokenOn,
	"or":        TokenOr,
	"order":     TokenOrder,
	"outer":     TokenOuter,
	"over":      TokenOver,
	"partition": TokenPartition,
	"preceding": TokenPreceding,
	"range":     TokenRange,
	"recursive": TokenRecursive,
	"right":     TokenRight,
	"row":       TokenRow,
	"rows":      TokenRows,
	"select":    TokenSelect,
	"then":      TokenThen,
	"true":      TokenTrue,
	"unbounded": TokenUnbounded,
	"union":     TokenUnion,
	"when":      TokenWhen,
	"where":     TokenWhere,
	"with":      TokenWith,
	"within":    TokenWithin,
}

// LookupIdent returns the keyword token type for ident, or TokenIdent.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdent
}

// Position is a location in the source text.
type Position struct {
	Line   int // 1-based
	Column int // 1-based
	Offset int // byte offset
}

// Token is a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position

	// Quoted marks identifiers that were quoted in the source, which
	// suppresses keyword folding and preserves case.
	Quoted bool
}
