package query

import (
	"strings"
)

// ParseTokens builds a syntax tree from a token stream produced by Tokenize.
// A stream holding only TokenEOF yields a nil Node and no error.
func ParseTokens(tokens []Token) (Node, error) {
	tree, _, err := DefaultLimits.parseTokens(tokens)
	return tree, err
}

// parser is a single-use recursive-descent parser. Grammar, lowest
// precedence first:
//
//	expr    := and (OR and)*
//	and     := not ((AND)? not)*
//	not     := NOT? primary
//	primary := '(' expr ')' | FIELD? (TERM | PHRASE)
//
// Juxtaposed operands are joined with an implicit AND.
type parser struct {
	tokens   []Token
	pos      int
	depth    int
	maxDepth int
	grouped  bool
}

// parseTokens returns the tree and whether any parenthesised group was
// consumed.
func (l Limits) parseTokens(tokens []Token) (Node, bool, error) {
	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != TokenEOF {
		end := 0
		if len(tokens) > 0 {
			end = tokens[len(tokens)-1].End
		}
		tokens = append(tokens[:len(tokens):len(tokens)], Token{Kind: TokenEOF, Start: end, End: end})
	}
	p := &parser{tokens: tokens, maxDepth: l.MaxDepth}
	if p.current().Kind == TokenEOF {
		return nil, false, nil
	}
	if err := p.checkOperandStart(nil); err != nil {
		return nil, false, err
	}
	tree, err := p.parseOr()
	if err != nil {
		return nil, false, err
	}
	if tok := p.current(); tok.Kind == TokenRParen {
		return nil, false, parseError(CodeUnmatchedCloseParen, tok.Start, "Unmatched closing parenthesis")
	}
	return tree, p.grouped, nil
}

func (p *parser) current() Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *parser) advance() Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func startsOperand(k TokenKind) bool {
	switch k {
	case TokenTerm, TokenPhrase, TokenFieldPrefix, TokenLParen, TokenNot:
		return true
	}
	return false
}

// checkOperandStart verifies that the current token can begin an operand.
// after is the token that demanded the operand, or nil at the start of the
// query.
func (p *parser) checkOperandStart(after *Token) error {
	tok := p.current()
	if startsOperand(tok.Kind) {
		return nil
	}
	if after == nil {
		switch tok.Kind {
		case TokenRParen:
			return parseError(CodeUnmatchedCloseParen, tok.Start, "Unmatched closing parenthesis")
		default:
			return parseError(CodeDanglingOperator, tok.Start, "Expected a term before '%s'", strings.ToUpper(tok.Text))
		}
	}
	switch after.Kind {
	case TokenAnd, TokenOr, TokenNot:
		return parseError(CodeDanglingOperator, after.Start, "Expected a term after '%s'", strings.ToUpper(after.Text))
	case TokenLParen:
		switch tok.Kind {
		case TokenRParen:
			return parseError(CodeEmptyGroup, after.Start, "Empty parentheses")
		case TokenEOF:
			return parseError(CodeUnmatchedOpenParen, after.Start, "Unmatched opening parenthesis")
		default:
			return parseError(CodeDanglingOperator, tok.Start, "Expected a term before '%s'", strings.ToUpper(tok.Text))
		}
	}
	return parseError(CodeDanglingOperator, tok.Start, "Unexpected %s", tok.Kind)
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.current().Kind == TokenOr {
		op := p.advance()
		if err := p.checkOperandStart(&op); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &OrNode{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		implicit := false
		switch {
		case tok.Kind == TokenAnd:
			op := p.advance()
			if err := p.checkOperandStart(&op); err != nil {
				return nil, err
			}
		case startsOperand(tok.Kind):
			implicit = true
		default:
			return left, nil
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &AndNode{Left: left, Right: right, Implicit: implicit}
	}
}

func (p *parser) parseNot() (Node, error) {
	if p.current().Kind != TokenNot {
		return p.parsePrimary()
	}
	op := p.advance()
	if next := p.current().Kind; next == TokenNot || !startsOperand(next) {
		return nil, parseError(CodeDanglingOperator, op.Start, "Expected a term after 'NOT'")
	}
	operand, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return &NotNode{Operand: operand}, nil
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.current()
	switch tok.Kind {
	case TokenLParen:
		return p.parseGroup()
	case TokenFieldPrefix:
		p.advance()
		value := p.current()
		if (value.Kind != TokenTerm && value.Kind != TokenPhrase) || value.Start != tok.End {
			return nil, parseError(CodeIncompleteField, tok.Start, "Expected a term or phrase after '%s:'", tok.Text)
		}
		return p.parseLeaf(tok.Text)
	case TokenTerm, TokenPhrase:
		return p.parseLeaf("")
	}
	return nil, parseError(CodeDanglingOperator, tok.Start, "Unexpected %s", tok.Kind)
}

func (p *parser) parseLeaf(field string) (Node, error) {
	tok := p.advance()
	if tok.Kind == TokenPhrase {
		text := strings.TrimSpace(tok.Text)
		if text == "" {
			return nil, parseError(CodeEmptyPhrase, tok.Start, "Empty phrase")
		}
		return &PhraseNode{Field: field, Text: text}, nil
	}
	return &TermNode{
		Field:    field,
		Text:     tok.Text,
		Wildcard: strings.Contains(tok.Text, "*"),
	}, nil
}

func (p *parser) parseGroup() (Node, error) {
	open := p.advance()
	p.grouped = true
	p.depth++
	if p.maxDepth > 0 && p.depth > p.maxDepth {
		return nil, parseError(CodeNestingTooDeep, open.Start,
			"Parentheses nested deeper than %d levels", p.maxDepth)
	}
	if err := p.checkOperandStart(&open); err != nil {
		return nil, err
	}
	inner, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.current().Kind != TokenRParen {
		return nil, parseError(CodeUnmatchedOpenParen, open.Start, "Unmatched opening parenthesis")
	}
	p.advance()
	p.depth--
	return inner, nil
}
