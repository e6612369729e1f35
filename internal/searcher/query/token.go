package query

import "fmt"

// TokenKind identifies the lexical class of a Token.
type TokenKind int

const (
	TokenTerm TokenKind = iota
	TokenPhrase
	TokenFieldPrefix
	TokenAnd
	TokenOr
	TokenNot
	TokenLParen
	TokenRParen
	TokenEOF
)

func (k TokenKind) String() string {
	switch k {
	case TokenTerm:
		return "TERM"
	case TokenPhrase:
		return "PHRASE"
	case TokenFieldPrefix:
		return "FIELD"
	case TokenAnd:
		return "AND"
	case TokenOr:
		return "OR"
	case TokenNot:
		return "NOT"
	case TokenLParen:
		return "LPAREN"
	case TokenRParen:
		return "RPAREN"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Token is a single lexical unit. Start and End are byte offsets into the
// original input; End is exclusive.
//
// For TokenPhrase, Text is the unquoted, unescaped phrase body. For
// TokenFieldPrefix, Text is the field name without the colon.
type Token struct {
	Kind  TokenKind
	Text  string
	Start int
	End   int
}

// IsOperator reports whether the token is AND, OR or NOT.
func (t Token) IsOperator() bool {
	return t.Kind == TokenAnd || t.Kind == TokenOr || t.Kind == TokenNot
}

func (t Token) String() string {
	if t.Text != "" {
		return fmt.Sprintf("%s(%s)@%d", t.Kind, t.Text, t.Start)
	}
	return fmt.Sprintf("%s@%d", t.Kind, t.Start)
}
