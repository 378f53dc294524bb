package lexer

import (
	"github.com/ztrue/tracerr"

	"github.com/plclang/plcgo/errors"
	"github.com/plclang/plcgo/token"
)

// Lexer turns source text into the token stream the parser consumes. Tokens
// carry byte offsets into the input; character and string tokens keep their
// quote delimiters and escape sequences, which the parser strips and expands.
// Keeping the quotes means a string whose content spells a reserved word can
// never collide with the parser's keyword matching.
type Lexer struct {
	input string
	index int
}

func New(input string) *Lexer {
	return &Lexer{input: input}
}

// Lex tokenizes the whole input. A malformed literal or a stray byte fails
// with a ParseError carrying the offset where lexing stopped.
func (l *Lexer) Lex() (tokens []token.Token, err error) {
	defer func() {
		if r := recover(); r != nil {
			if lerr, ok := r.(errors.ParseError); ok {
				tokens = nil
				err = tracerr.Wrap(lerr)
			} else {
				panic(r)
			}
		}
	}()
	for {
		l.skipWhitespace()
		if !l.has(0) {
			return tokens, nil
		}
		tokens = append(tokens, l.lexToken())
	}
}

func (l *Lexer) has(offset int) bool {
	return l.index+offset < len(l.input)
}

func (l *Lexer) chr(offset int) byte {
	return l.input[l.index+offset]
}

func (l *Lexer) skipWhitespace() {
	for l.has(0) {
		switch l.chr(0) {
		case ' ', '\t', '\r', '\n':
			l.index++
		default:
			return
		}
	}
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (l *Lexer) lexToken() token.Token {
	c := l.chr(0)
	switch {
	case isLetter(c) || c == '_':
		return l.lexIdentifier()
	case isDigit(c):
		return l.lexNumber()
	case (c == '+' || c == '-') && l.has(1) && isDigit(l.chr(1)):
		// A sign glues onto the digits that follow it, so "1 - 2" needs the
		// spaces but "x = -5" works.
		return l.lexNumber()
	case c == '\'':
		return l.lexCharacter()
	case c == '"':
		return l.lexString()
	default:
		return l.lexOperator()
	}
}

func (l *Lexer) lexIdentifier() token.Token {
	start := l.index
	for l.has(0) && (isLetter(l.chr(0)) || isDigit(l.chr(0)) || l.chr(0) == '_') {
		l.index++
	}
	return token.Token{Kind: token.IDENTIFIER, Literal: l.input[start:l.index], Index: start}
}

func (l *Lexer) lexNumber() token.Token {
	start := l.index
	if l.chr(0) == '+' || l.chr(0) == '-' {
		l.index++
	}
	for l.has(0) && isDigit(l.chr(0)) {
		l.index++
	}
	kind := token.INTEGER
	if l.has(1) && l.chr(0) == '.' && isDigit(l.chr(1)) {
		kind = token.DECIMAL
		l.index++
		for l.has(0) && isDigit(l.chr(0)) {
			l.index++
		}
	}
	return token.Token{Kind: kind, Literal: l.input[start:l.index], Index: start}
}

// escapable is the set of characters allowed after a backslash in character
// and string literals.
func escapable(c byte) bool {
	switch c {
	case 'b', 'n', 'r', 't', '\'', '"', '\\':
		return true
	}
	return false
}

func (l *Lexer) lexCharacter() token.Token {
	start := l.index
	l.index++
	if !l.has(0) || l.chr(0) == '\n' {
		panic(errors.ParseError{Message: "unterminated character literal", Index: l.index})
	}
	if l.chr(0) == '\\' {
		if !l.has(1) || !escapable(l.chr(1)) {
			panic(errors.ParseError{Message: "invalid escape in character literal", Index: l.index})
		}
		l.index += 2
	} else if l.chr(0) == '\'' {
		panic(errors.ParseError{Message: "empty character literal", Index: l.index})
	} else {
		l.index++
	}
	if !l.has(0) || l.chr(0) != '\'' {
		panic(errors.ParseError{Message: "unterminated character literal", Index: l.index})
	}
	l.index++
	return token.Token{Kind: token.CHARACTER, Literal: l.input[start:l.index], Index: start}
}

func (l *Lexer) lexString() token.Token {
	start := l.index
	l.index++
	for {
		if !l.has(0) || l.chr(0) == '\n' {
			panic(errors.ParseError{Message: "unterminated string literal", Index: l.index})
		}
		switch l.chr(0) {
		case '"':
			l.index++
			return token.Token{Kind: token.STRING, Literal: l.input[start:l.index], Index: start}
		case '\\':
			if !l.has(1) || !escapable(l.chr(1)) {
				panic(errors.ParseError{Message: "invalid escape in string literal", Index: l.index})
			}
			l.index += 2
		default:
			l.index++
		}
	}
}

func (l *Lexer) lexOperator() token.Token {
	start := l.index
	c := l.chr(0)
	if l.has(1) {
		two := l.input[l.index : l.index+2]
		switch two {
		case "&&", "||", "==", "!=":
			l.index += 2
			return token.Token{Kind: token.OPERATOR, Literal: two, Index: start}
		}
	}
	l.index++
	return token.Token{Kind: token.OPERATOR, Literal: string(c), Index: start}
}
