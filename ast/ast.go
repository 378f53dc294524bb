package ast

import (
	"github.com/plclang/plcgo/environment"
)

// Source is the root of a parsed program: globals first, then functions.
type Source struct {
	Globals   []*Global
	Functions []*Function
}

// Global is a top-level VAR, VAL, or LIST declaration. Value is nil when no
// initializer was written. Variable is attached by the analyzer.
type Global struct {
	Name     string
	TypeName string
	Mutable  bool
	Value    Expression

	Variable *environment.Variable
}

// Function is a FUN declaration. ReturnTypeName is "" when the return type
// was omitted (the function returns Nil). Function is attached by the
// analyzer.
type Function struct {
	Name               string
	Parameters         []string
	ParameterTypeNames []string
	ReturnTypeName     string
	Statements         []Statement

	Function *environment.Function
}

type Statement interface {
	is_Statement()
}

// ExpressionStatement wraps an expression in statement position. Only calls
// are legal here; the analyzer rejects everything else.
type ExpressionStatement struct {
	Expression Expression
}

func (s *ExpressionStatement) is_Statement() {}

// Declaration is a LET statement. TypeName is "" and Value is nil when the
// respective part was omitted; at least one must be present.
type Declaration struct {
	Name     string
	TypeName string
	Value    Expression

	Variable *environment.Variable
}

func (s *Declaration) is_Statement() {}

type Assignment struct {
	Receiver Expression
	Value    Expression
}

func (s *Assignment) is_Statement() {}

type If struct {
	Condition Expression
	Then      []Statement
	Else      []Statement
}

func (s *If) is_Statement() {}

// Switch holds its cases in source order; the parser guarantees the final
// case is the default (nil Value).
type Switch struct {
	Condition Expression
	Cases     []*Case
}

func (s *Switch) is_Statement() {}

type Case struct {
	Value      Expression
	Statements []Statement
}

func (s *Case) is_Statement() {}

type While struct {
	Condition  Expression
	Statements []Statement
}

func (s *While) is_Statement() {}

type Return struct {
	Value Expression
}

func (s *Return) is_Statement() {}

type Expression interface {
	is_Expression()
}

// Literal holds nil, bool, rune, string, *big.Int, or *apd.Decimal.
type Literal struct {
	Value interface{}

	Type environment.Type
}

func (e *Literal) is_Expression() {}

type Group struct {
	Expression Expression

	Type environment.Type
}

func (e *Group) is_Expression() {}

type Binary struct {
	Operator string
	Left     Expression
	Right    Expression

	Type environment.Type
}

func (e *Binary) is_Expression() {}

// Access is a variable reference, with an optional index expression for list
// subscripting. Variable is attached by the analyzer.
type Access struct {
	Name   string
	Offset Expression

	Variable *environment.Variable
}

func (e *Access) is_Expression() {}

// Call is a function invocation. Function is attached by the analyzer.
type Call struct {
	Name      string
	Arguments []Expression

	Function *environment.Function
}

func (e *Call) is_Expression() {}

// List is an ordered literal, only legal as a LIST global's initializer.
type List struct {
	Values []Expression

	Type environment.Type
}

func (e *List) is_Expression() {}

// TypeOf reads the type the analyzer attached to an expression. Access and
// Call delegate to their resolved handles.
func TypeOf(e Expression) environment.Type {
	switch expr := e.(type) {
	case *Literal:
		return expr.Type
	case *Group:
		return expr.Type
	case *Binary:
		return expr.Type
	case *Access:
		return expr.Variable.Type
	case *Call:
		return expr.Function.ReturnType
	case *List:
		return expr.Type
	}
	panic("unhandled expression")
}
