package parser

import (
	"math/big"

	"github.com/cockroachdb/apd/v3"
	"github.com/ztrue/tracerr"

	"github.com/plclang/plcgo/ast"
	"github.com/plclang/plcgo/errors"
	"github.com/plclang/plcgo/token"
)

// Parser is a recursive-descent parser over a token stream. Reserved words
// are identifier tokens matched by literal; operators are matched the same
// way. Each production panics a ParseError on an unexpected token and
// ParseSource recovers it at the boundary.
type Parser struct {
	tokens []token.Token
	index  int
}

func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseSource parses the whole stream:
//
//	source = global* function* EOF
func (p *Parser) ParseSource() (src *ast.Source, err error) {
	defer func() {
		if r := recover(); r != nil {
			if perr, ok := r.(errors.ParseError); ok {
				src = nil
				err = tracerr.Wrap(perr)
			} else {
				panic(r)
			}
		}
	}()
	src = &ast.Source{}
	for p.peek("LIST") || p.peek("VAR") || p.peek("VAL") {
		src.Globals = append(src.Globals, p.parseGlobal())
	}
	for p.peek("FUN") {
		src.Functions = append(src.Functions, p.parseFunction())
	}
	if p.has(0) {
		p.fail("expected a global or function declaration")
	}
	return src, nil
}

func (p *Parser) parseGlobal() *ast.Global {
	var global *ast.Global
	if p.match("LIST") {
		global = p.parseList()
	} else if p.match("VAR") {
		global = p.parseMutable()
	} else {
		p.match("VAL")
		global = p.parseImmutable()
	}
	if !p.match(";") {
		p.fail("expected ';' after global declaration")
	}
	return global
}

func (p *Parser) parseList() *ast.Global {
	if !p.match(token.IDENTIFIER) {
		p.fail("expected a name in list declaration")
	}
	name := p.previous().Literal
	if !p.match(":") {
		p.fail("expected ':' in list declaration")
	}
	if !p.match(token.IDENTIFIER) {
		p.fail("expected a type in list declaration")
	}
	typeName := p.previous().Literal
	if !p.match("=") {
		p.fail("expected '=' in list declaration")
	}
	if !p.match("[") {
		p.fail("expected '[' in list declaration")
	}
	values := []ast.Expression{p.parseExpression()}
	for p.match(",") {
		values = append(values, p.parseExpression())
	}
	if !p.match("]") {
		p.fail("expected ']' in list declaration")
	}
	return &ast.Global{Name: name, TypeName: typeName, Mutable: true, Value: &ast.List{Values: values}}
}

func (p *Parser) parseMutable() *ast.Global {
	if !p.match(token.IDENTIFIER) {
		p.fail("expected a name in variable declaration")
	}
	name := p.previous().Literal
	if !p.match(":") {
		p.fail("expected ':' in variable declaration")
	}
	if !p.match(token.IDENTIFIER) {
		p.fail("expected a type in variable declaration")
	}
	typeName := p.previous().Literal
	global := &ast.Global{Name: name, TypeName: typeName, Mutable: true}
	if p.match("=") {
		global.Value = p.parseExpression()
	}
	return global
}

func (p *Parser) parseImmutable() *ast.Global {
	if !p.match(token.IDENTIFIER) {
		p.fail("expected a name in value declaration")
	}
	name := p.previous().Literal
	if !p.match(":") {
		p.fail("expected ':' in value declaration")
	}
	if !p.match(token.IDENTIFIER) {
		p.fail("expected a type in value declaration")
	}
	typeName := p.previous().Literal
	if !p.match("=") {
		p.fail("expected '=' in value declaration")
	}
	return &ast.Global{Name: name, TypeName: typeName, Mutable: false, Value: p.parseExpression()}
}

func (p *Parser) parseFunction() *ast.Function {
	p.match("FUN")
	if !p.match(token.IDENTIFIER) {
		p.fail("expected a name in function declaration")
	}
	fn := &ast.Function{Name: p.previous().Literal}
	if !p.match("(") {
		p.fail("expected '(' in function declaration")
	}
	if p.match(token.IDENTIFIER) {
		fn.Parameters = append(fn.Parameters, p.previous().Literal)
		if !p.match(":") {
			p.fail("expected ':' after parameter name")
		}
		if !p.match(token.IDENTIFIER) {
			p.fail("expected a parameter type")
		}
		fn.ParameterTypeNames = append(fn.ParameterTypeNames, p.previous().Literal)
		for p.match(",") {
			if !p.match(token.IDENTIFIER) {
				p.fail("expected a parameter name")
			}
			fn.Parameters = append(fn.Parameters, p.previous().Literal)
			if !p.match(":") {
				p.fail("expected ':' after parameter name")
			}
			if !p.match(token.IDENTIFIER) {
				p.fail("expected a parameter type")
			}
			fn.ParameterTypeNames = append(fn.ParameterTypeNames, p.previous().Literal)
		}
	}
	if !p.match(")") {
		p.fail("expected ')' in function declaration")
	}
	if p.match(":") {
		if !p.match(token.IDENTIFIER) {
			p.fail("expected a return type")
		}
		fn.ReturnTypeName = p.previous().Literal
	}
	if !p.match("DO") {
		p.fail("expected 'DO' in function declaration")
	}
	fn.Statements = p.parseBlock()
	if !p.match("END") {
		p.fail("expected 'END' in function declaration")
	}
	return fn
}

// parseBlock consumes statements until a terminator keyword is next. The
// terminator itself is left for the caller.
func (p *Parser) parseBlock() []ast.Statement {
	var block []ast.Statement
	for !(p.peek("END") || p.peek("ELSE") || p.peek("CASE") || p.peek("DEFAULT")) {
		block = append(block, p.parseStatement())
	}
	return block
}

func (p *Parser) parseStatement() ast.Statement {
	if p.match("LET") {
		return p.parseDeclarationStatement()
	} else if p.match("SWITCH") {
		return p.parseSwitchStatement()
	} else if p.match("IF") {
		return p.parseIfStatement()
	} else if p.match("WHILE") {
		return p.parseWhileStatement()
	} else if p.match("RETURN") {
		return p.parseReturnStatement()
	}
	var statement ast.Statement
	left := p.parseExpression()
	if p.match("=") {
		statement = &ast.Assignment{Receiver: left, Value: p.parseExpression()}
	} else {
		statement = &ast.ExpressionStatement{Expression: left}
	}
	if !p.match(";") {
		p.fail("expected ';' after statement")
	}
	return statement
}

func (p *Parser) parseDeclarationStatement() *ast.Declaration {
	if !p.match(token.IDENTIFIER) {
		p.fail("expected a name in declaration")
	}
	decl := &ast.Declaration{Name: p.previous().Literal}
	if p.match(":") {
		if !p.match(token.IDENTIFIER) {
			p.fail("expected a type in declaration")
		}
		decl.TypeName = p.previous().Literal
	}
	if p.match("=") {
		decl.Value = p.parseExpression()
	}
	if !p.match(";") {
		p.fail("expected ';' after declaration")
	}
	return decl
}

func (p *Parser) parseIfStatement() *ast.If {
	stmt := &ast.If{Condition: p.parseExpression()}
	if !p.match("DO") {
		p.fail("expected 'DO' in if statement")
	}
	stmt.Then = p.parseBlock()
	if p.match("ELSE") {
		stmt.Else = p.parseBlock()
	}
	if !p.match("END") {
		p.fail("expected 'END' in if statement")
	}
	return stmt
}

func (p *Parser) parseSwitchStatement() *ast.Switch {
	stmt := &ast.Switch{Condition: p.parseExpression()}
	for p.match("CASE") {
		stmt.Cases = append(stmt.Cases, p.parseCaseStatement())
	}
	if !p.match("DEFAULT") {
		p.fail("expected 'DEFAULT' in switch statement")
	}
	stmt.Cases = append(stmt.Cases, &ast.Case{Statements: p.parseBlock()})
	if !p.match("END") {
		p.fail("expected 'END' in switch statement")
	}
	return stmt
}

func (p *Parser) parseCaseStatement() *ast.Case {
	value := p.parseExpression()
	if !p.match(":") {
		p.fail("expected ':' in case statement")
	}
	return &ast.Case{Value: value, Statements: p.parseBlock()}
}

func (p *Parser) parseWhileStatement() *ast.While {
	stmt := &ast.While{Condition: p.parseExpression()}
	if !p.match("DO") {
		p.fail("expected 'DO' in while statement")
	}
	stmt.Statements = p.parseBlock()
	if !p.match("END") {
		p.fail("expected 'END' in while statement")
	}
	return stmt
}

func (p *Parser) parseReturnStatement() *ast.Return {
	stmt := &ast.Return{Value: p.parseExpression()}
	if !p.match(";") {
		p.fail("expected ';' after return statement")
	}
	return stmt
}

// Binary levels are all left-associative; '^' sits at the multiplicative
// level.
func (p *Parser) parseExpression() ast.Expression {
	return p.parseLogicalExpression()
}

func (p *Parser) parseLogicalExpression() ast.Expression {
	expr := p.parseComparisonExpression()
	for p.peek("&&") || p.peek("||") {
		p.match(token.OPERATOR)
		expr = &ast.Binary{Operator: p.previous().Literal, Left: expr, Right: p.parseComparisonExpression()}
	}
	return expr
}

func (p *Parser) parseComparisonExpression() ast.Expression {
	expr := p.parseAdditiveExpression()
	for p.peek("<") || p.peek(">") || p.peek("==") || p.peek("!=") {
		p.match(token.OPERATOR)
		expr = &ast.Binary{Operator: p.previous().Literal, Left: expr, Right: p.parseAdditiveExpression()}
	}
	return expr
}

func (p *Parser) parseAdditiveExpression() ast.Expression {
	expr := p.parseMultiplicativeExpression()
	for p.peek("+") || p.peek("-") {
		p.match(token.OPERATOR)
		expr = &ast.Binary{Operator: p.previous().Literal, Left: expr, Right: p.parseMultiplicativeExpression()}
	}
	return expr
}

func (p *Parser) parseMultiplicativeExpression() ast.Expression {
	expr := p.parsePrimaryExpression()
	for p.peek("*") || p.peek("/") || p.peek("^") {
		p.match(token.OPERATOR)
		expr = &ast.Binary{Operator: p.previous().Literal, Left: expr, Right: p.parsePrimaryExpression()}
	}
	return expr
}

func (p *Parser) parsePrimaryExpression() ast.Expression {
	switch {
	case p.match("NIL"):
		return &ast.Literal{Value: nil}
	case p.match("TRUE"):
		return &ast.Literal{Value: true}
	case p.match("FALSE"):
		return &ast.Literal{Value: false}
	case p.match(token.INTEGER):
		value, ok := new(big.Int).SetString(p.previous().Literal, 10)
		if !ok {
			p.fail("invalid integer literal")
		}
		return &ast.Literal{Value: value}
	case p.match(token.DECIMAL):
		value, _, err := apd.NewFromString(p.previous().Literal)
		if err != nil {
			p.fail("invalid decimal literal")
		}
		return &ast.Literal{Value: value}
	case p.match(token.CHARACTER):
		return &ast.Literal{Value: unescapeCharacter(unquote(p.previous().Literal))}
	case p.match(token.STRING):
		return &ast.Literal{Value: unescape(unquote(p.previous().Literal))}
	case p.match("("):
		group := &ast.Group{Expression: p.parseExpression()}
		if !p.match(")") {
			p.fail("expected ')' after grouped expression")
		}
		return group
	case p.match(token.IDENTIFIER):
		name := p.previous().Literal
		if p.match("(") {
			call := &ast.Call{Name: name}
			if !p.match(")") {
				call.Arguments = append(call.Arguments, p.parseExpression())
				for p.match(",") {
					call.Arguments = append(call.Arguments, p.parseExpression())
				}
				if !p.match(")") {
					p.fail("expected ')' after call arguments")
				}
			}
			return call
		} else if p.match("[") {
			access := &ast.Access{Name: name, Offset: p.parseExpression()}
			if !p.match("]") {
				p.fail("expected ']' after index expression")
			}
			return access
		}
		return &ast.Access{Name: name}
	}
	p.fail("expected a primary expression")
	return nil
}

// unquote drops the delimiters a character or string token carries around
// its contents.
func unquote(literal string) string {
	return literal[1 : len(literal)-1]
}

// unescapeCharacter expands the single (possibly escaped) character of a
// character token.
func unescapeCharacter(literal string) rune {
	runes := []rune(unescape(literal))
	return runes[0]
}

var escapes = map[byte]byte{
	'b':  '\b',
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	'\'': '\'',
	'"':  '"',
	'\\': '\\',
}

// unescape expands the escape set left to right in a single pass, so an
// escaped backslash never re-triggers on the character after it.
func unescape(literal string) string {
	out := make([]byte, 0, len(literal))
	for i := 0; i < len(literal); i++ {
		if literal[i] == '\\' && i+1 < len(literal) {
			if expanded, ok := escapes[literal[i+1]]; ok {
				out = append(out, expanded)
				i++
				continue
			}
		}
		out = append(out, literal[i])
	}
	return string(out)
}

func (p *Parser) has(offset int) bool {
	return p.index+offset < len(p.tokens)
}

func (p *Parser) get(offset int) token.Token {
	return p.tokens[p.index+offset]
}

func (p *Parser) previous() token.Token {
	return p.get(-1)
}

// peek matches the upcoming tokens against patterns without advancing. A
// pattern is either a token.Kind or a literal string, as in
// peek(token.IDENTIFIER) or peek("FUN").
func (p *Parser) peek(patterns ...interface{}) bool {
	for i, pattern := range patterns {
		if !p.has(i) {
			return false
		}
		switch want := pattern.(type) {
		case token.Kind:
			if p.get(i).Kind != want {
				return false
			}
		case string:
			if p.get(i).Literal != want {
				return false
			}
		default:
			panic("invalid pattern")
		}
	}
	return true
}

// match is peek plus advancing past the matched tokens.
func (p *Parser) match(patterns ...interface{}) bool {
	ok := p.peek(patterns...)
	if ok {
		p.index += len(patterns)
	}
	return ok
}

// fail panics a ParseError at the next token's offset, or one byte past the
// final token when the stream is exhausted.
func (p *Parser) fail(message string) {
	index := 0
	if p.has(0) {
		index = p.get(0).Index
	} else if p.index > 0 {
		index = p.previous().Index + len(p.previous().Literal)
	}
	panic(errors.ParseError{Message: message, Index: index})
}
