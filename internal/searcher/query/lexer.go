package query

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenize splits input into tokens using DefaultLimits. The returned slice
// always ends with a TokenEOF token.
func Tokenize(input string) ([]Token, error) {
	return DefaultLimits.Tokenize(input)
}

// Tokenize splits input into tokens, rejecting inputs longer than
// l.MaxLength characters.
func (l Limits) Tokenize(input string) ([]Token, error) {
	if l.MaxLength > 0 {
		if pos, over := overLength(input, l.MaxLength); over {
			return nil, lexError(CodeQueryTooLong, pos,
				"Query exceeds the maximum length of %d characters", l.MaxLength)
		}
	}
	lx := &lexer{
		input:  input,
		tokens: make([]Token, 0, len(input)/4+1),
	}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return lx.tokens, nil
}

type lexer struct {
	input  string
	pos    int
	tokens []Token
}

func (lx *lexer) run() error {
	for {
		lx.skipWhitespace()
		if lx.pos >= len(lx.input) {
			lx.emit(TokenEOF, "", lx.pos, lx.pos)
			return nil
		}
		switch lx.input[lx.pos] {
		case '(':
			lx.emit(TokenLParen, "(", lx.pos, lx.pos+1)
			lx.pos++
		case ')':
			lx.emit(TokenRParen, ")", lx.pos, lx.pos+1)
			lx.pos++
		case '"':
			if err := lx.readPhrase(); err != nil {
				return err
			}
		default:
			if err := lx.readWord(); err != nil {
				return err
			}
		}
	}
}

func (lx *lexer) emit(kind TokenKind, text string, start, end int) {
	lx.tokens = append(lx.tokens, Token{Kind: kind, Text: text, Start: start, End: end})
}

func (lx *lexer) peekRune() (rune, int) {
	if lx.pos >= len(lx.input) {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(lx.input[lx.pos:])
}

func (lx *lexer) skipWhitespace() {
	for lx.pos < len(lx.input) {
		r, size := lx.peekRune()
		if !unicode.IsSpace(r) {
			return
		}
		lx.pos += size
	}
}

// atBoundary reports whether the cursor sits at a point where a token may
// end: end of input, whitespace, or a parenthesis.
func (lx *lexer) atBoundary() bool {
	if lx.pos >= len(lx.input) {
		return true
	}
	r, _ := lx.peekRune()
	return unicode.IsSpace(r) || r == '(' || r == ')'
}

func (lx *lexer) readPhrase() error {
	start := lx.pos
	lx.pos++
	var body strings.Builder
	for {
		if lx.pos >= len(lx.input) {
			return lexError(CodeUnterminatedPhrase, start, "Unterminated phrase: missing closing quote")
		}
		c := lx.input[lx.pos]
		if c == '\\' && lx.pos+1 < len(lx.input) && (lx.input[lx.pos+1] == '"' || lx.input[lx.pos+1] == '\\') {
			body.WriteByte(lx.input[lx.pos+1])
			lx.pos += 2
			continue
		}
		if c == '"' {
			lx.pos++
			break
		}
		body.WriteByte(c)
		lx.pos++
	}
	if !lx.atBoundary() {
		return lexError(CodeUnexpectedQuote, lx.pos-1, "Expected a space after the closing quote")
	}
	lx.emit(TokenPhrase, body.String(), start, lx.pos)
	return nil
}

func (lx *lexer) readWord() error {
	start := lx.pos
	if colon := lx.fieldColon(); colon > 0 {
		lx.emit(TokenFieldPrefix, lx.input[start:colon], start, colon+1)
		lx.pos = colon + 1
		if lx.pos >= len(lx.input) {
			return nil
		}
		switch lx.input[lx.pos] {
		case '"':
			return lx.readPhrase()
		case '(', ')':
			return nil
		}
		if lx.atBoundary() {
			return nil
		}
		return lx.readTerm(false)
	}
	return lx.readTerm(true)
}

// fieldColon returns the offset of the ':' closing a field prefix that starts
// at the cursor, or -1. A field name starts with a letter or underscore and
// continues with letters, digits or underscores.
func (lx *lexer) fieldColon() int {
	i := lx.pos
	for i < len(lx.input) {
		r, size := utf8.DecodeRuneInString(lx.input[i:])
		if r == ':' {
			break
		}
		if !isFieldRune(r, i == lx.pos) {
			return -1
		}
		i += size
	}
	if i == lx.pos || i >= len(lx.input) {
		return -1
	}
	return i
}

func isFieldRune(r rune, first bool) bool {
	if r == '_' || unicode.IsLetter(r) {
		return true
	}
	return !first && unicode.IsDigit(r)
}

// readTerm consumes a bare word. Operators are only recognised when the word
// stands alone, so a value directly after a field prefix is always a term.
func (lx *lexer) readTerm(allowOperator bool) error {
	start := lx.pos
	for lx.pos < len(lx.input) {
		r, size := lx.peekRune()
		if unicode.IsSpace(r) || r == '(' || r == ')' {
			break
		}
		if r == '"' {
			return lexError(CodeUnexpectedQuote, lx.pos,
				"Unexpected quote inside term %q", lx.input[start:lx.pos])
		}
		lx.pos += size
	}
	word := lx.input[start:lx.pos]
	if allowOperator {
		switch strings.ToUpper(word) {
		case "AND":
			lx.emit(TokenAnd, word, start, lx.pos)
			return nil
		case "OR":
			lx.emit(TokenOr, word, start, lx.pos)
			return nil
		case "NOT":
			lx.emit(TokenNot, word, start, lx.pos)
			return nil
		}
	}
	if strings.Trim(word, "*") == "" {
		return lexError(CodeBareWildcard, start, "Wildcard '*' must be attached to at least one character")
	}
	lx.emit(TokenTerm, word, start, lx.pos)
	return nil
}

// overLength reports whether input has more than max runes and, if so, the
// byte offset of the first rune past the limit.
func overLength(input string, max int) (int, bool) {
	if len(input) <= max {
		return 0, false
	}
	count := 0
	for i := range input {
		if count == max {
			return i, true
		}
		count++
	}
	return 0, false
}
