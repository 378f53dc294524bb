package analyzer

import (
	"math"
	"math/big"

	"github.com/cockroachdb/apd/v3"
	"github.com/ztrue/tracerr"

	"github.com/plclang/plcgo/ast"
	"github.com/plclang/plcgo/environment"
	"github.com/plclang/plcgo/errors"
)

var (
	intMax = big.NewInt(math.MaxInt32)
	intMin = big.NewInt(math.MinInt32)
)

// Analyzer resolves names, attaches a type to every expression, and enforces
// the typing rules. It mutates the AST in place: globals, functions, accesses
// and calls come out carrying their resolved handles.
type Analyzer struct {
	scope    *environment.Scope
	global   *ast.Global
	function *ast.Function
}

// New creates an analyzer whose scope nests inside parent (usually nil). The
// print builtin is pre-registered so source can call it; its target name is
// the real method the generator's output resolves to.
func New(parent *environment.Scope) *Analyzer {
	a := &Analyzer{scope: environment.NewScope(parent)}
	a.scope.DefineFunction(
		"print", "System.out.println", 1,
		[]environment.Type{environment.Any}, environment.Nil,
		func([]environment.Object) environment.Object { return environment.NIL },
	)
	return a
}

// Scope exposes the analyzer's root scope, populated with the program's
// globals and functions after a successful Analyze.
func (a *Analyzer) Scope() *environment.Scope {
	return a.scope
}

// Analyze checks a parsed source tree. Any rule violation aborts the walk
// with an AnalysisError; resolution failures raised by the scope surface as
// AnalysisErrors too, since nothing has executed yet.
func (a *Analyzer) Analyze(src *ast.Source) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case errors.AnalysisError:
				err = tracerr.Wrap(e)
			case errors.RuntimeError:
				err = tracerr.Wrap(errors.AnalysisError{Message: e.Message})
			default:
				panic(r)
			}
		}
	}()
	a.visitSource(src)
	return nil
}

func fail(message string) {
	panic(errors.AnalysisError{Message: message})
}

// Assignable reports whether a value of type source may flow into a slot of
// type target. Any accepts everything; Comparable accepts the four ordered
// types; otherwise the types must be equal. The relation is not symmetric.
func Assignable(target, source environment.Type) bool {
	switch {
	case target == source:
		return true
	case target == environment.Any:
		return true
	case target == environment.Comparable:
		return source == environment.Integer || source == environment.Decimal ||
			source == environment.Character || source == environment.String
	}
	return false
}

func requireAssignable(target, source environment.Type) {
	if !Assignable(target, source) {
		fail("a " + source.Name + " is not assignable to " + target.Name)
	}
}

func (a *Analyzer) visitSource(src *ast.Source) {
	for _, global := range src.Globals {
		a.visitGlobal(global)
	}
	for _, function := range src.Functions {
		a.visitFunction(function)
	}
	if a.scope.LookupFunction("main", 0).ReturnType != environment.Integer {
		fail("main must return Integer")
	}
}

func (a *Analyzer) visitGlobal(global *ast.Global) {
	declared := environment.GetType(global.TypeName)
	if global.Value != nil {
		a.global = global
		a.visitExpression(global.Value)
		a.global = nil
		requireAssignable(declared, ast.TypeOf(global.Value))
	}
	global.Variable = a.scope.DefineVariable(global.Name, global.Name, declared, global.Mutable, environment.NIL)
}

func (a *Analyzer) visitFunction(function *ast.Function) {
	parameterTypes := make([]environment.Type, len(function.ParameterTypeNames))
	for i, name := range function.ParameterTypeNames {
		parameterTypes[i] = environment.GetType(name)
	}
	returnType := environment.Nil
	if function.ReturnTypeName != "" {
		returnType = environment.GetType(function.ReturnTypeName)
	}

	// The function goes into the enclosing scope before its body is walked,
	// so the body can call it recursively.
	function.Function = a.scope.DefineFunction(
		function.Name, function.Name, len(parameterTypes), parameterTypes, returnType,
		func([]environment.Object) environment.Object { return environment.NIL },
	)

	previous := a.function
	a.function = function
	a.scope = environment.NewScope(a.scope)
	defer func() {
		a.scope = a.scope.Parent()
		a.function = previous
	}()
	for i, parameter := range function.Parameters {
		a.scope.DefineVariable(parameter, parameter, parameterTypes[i], true, environment.NIL)
	}
	for _, stmt := range function.Statements {
		a.visitStatement(stmt)
	}
}

func (a *Analyzer) visitStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		a.visitExpression(s.Expression)
		if _, ok := s.Expression.(*ast.Call); !ok {
			fail("only calls can stand alone as statements")
		}
	case *ast.Declaration:
		a.visitDeclaration(s)
	case *ast.Assignment:
		if _, ok := s.Receiver.(*ast.Access); !ok {
			fail("only variables can be assigned to")
		}
		a.visitExpression(s.Receiver)
		a.visitExpression(s.Value)
		requireAssignable(ast.TypeOf(s.Receiver), ast.TypeOf(s.Value))
	case *ast.If:
		a.visitExpression(s.Condition)
		if ast.TypeOf(s.Condition) != environment.Boolean {
			fail("if condition must be a Boolean")
		}
		if len(s.Then) == 0 {
			fail("if statement must have a then branch")
		}
		a.visitBlock(s.Then)
		a.visitBlock(s.Else)
	case *ast.Switch:
		a.visitSwitch(s)
	case *ast.While:
		a.visitExpression(s.Condition)
		if ast.TypeOf(s.Condition) != environment.Boolean {
			fail("while condition must be a Boolean")
		}
		a.visitBlock(s.Statements)
	case *ast.Return:
		if a.function == nil {
			fail("return outside of a function")
		}
		a.visitExpression(s.Value)
		requireAssignable(a.function.Function.ReturnType, ast.TypeOf(s.Value))
	default:
		fail("unhandled statement")
	}
}

func (a *Analyzer) visitDeclaration(decl *ast.Declaration) {
	if decl.TypeName == "" && decl.Value == nil {
		fail("a declaration needs a type or an initializer")
	}
	t := environment.Type{}
	if decl.TypeName != "" {
		t = environment.GetType(decl.TypeName)
	}
	if decl.Value != nil {
		a.visitExpression(decl.Value)
		if decl.TypeName != "" {
			requireAssignable(t, ast.TypeOf(decl.Value))
		} else {
			t = ast.TypeOf(decl.Value)
		}
	}
	decl.Variable = a.scope.DefineVariable(decl.Name, decl.Name, t, true, environment.NIL)
}

func (a *Analyzer) visitSwitch(s *ast.Switch) {
	a.visitExpression(s.Condition)
	for i, c := range s.Cases {
		last := i == len(s.Cases)-1
		if c.Value != nil {
			if last {
				fail("the final switch case must be the default")
			}
			a.visitExpression(c.Value)
			requireAssignable(ast.TypeOf(s.Condition), ast.TypeOf(c.Value))
		} else if !last {
			fail("only the final switch case may omit its value")
		}
		a.visitBlock(c.Statements)
	}
}

// visitBlock analyzes statements in a fresh scope and restores the previous
// scope on every exit path.
func (a *Analyzer) visitBlock(statements []ast.Statement) {
	a.scope = environment.NewScope(a.scope)
	defer func() { a.scope = a.scope.Parent() }()
	for _, stmt := range statements {
		a.visitStatement(stmt)
	}
}

func (a *Analyzer) visitExpression(expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.Literal:
		a.visitLiteral(e)
	case *ast.Group:
		a.visitExpression(e.Expression)
		if _, ok := e.Expression.(*ast.Binary); !ok {
			fail("only binary expressions can be grouped")
		}
		e.Type = ast.TypeOf(e.Expression)
	case *ast.Binary:
		a.visitBinary(e)
	case *ast.Access:
		if e.Offset != nil {
			a.visitExpression(e.Offset)
			if ast.TypeOf(e.Offset) != environment.Integer {
				fail("list index must be an Integer")
			}
		}
		e.Variable = a.scope.LookupVariable(e.Name)
	case *ast.Call:
		e.Function = a.scope.LookupFunction(e.Name, len(e.Arguments))
		for i, argument := range e.Arguments {
			a.visitExpression(argument)
			requireAssignable(e.Function.ParameterTypes[i], ast.TypeOf(argument))
		}
	case *ast.List:
		if a.global == nil {
			fail("internal: list literal outside a global initializer")
		}
		e.Type = environment.GetType(a.global.TypeName)
		for _, value := range e.Values {
			a.visitExpression(value)
			requireAssignable(e.Type, ast.TypeOf(value))
		}
	default:
		fail("unhandled expression")
	}
}

func (a *Analyzer) visitLiteral(literal *ast.Literal) {
	switch v := literal.Value.(type) {
	case nil:
		literal.Type = environment.Nil
	case bool:
		literal.Type = environment.Boolean
	case rune:
		literal.Type = environment.Character
	case string:
		literal.Type = environment.String
	case *big.Int:
		literal.Type = environment.Integer
		if v.Cmp(intMax) > 0 || v.Cmp(intMin) < 0 {
			fail("integer literal out of range")
		}
	case *apd.Decimal:
		literal.Type = environment.Decimal
		if f, _ := v.Float64(); math.IsInf(f, 0) {
			fail("decimal literal out of range")
		}
	default:
		fail("unhandled literal")
	}
}

func (a *Analyzer) visitBinary(binary *ast.Binary) {
	a.visitExpression(binary.Left)
	a.visitExpression(binary.Right)
	left := ast.TypeOf(binary.Left)
	right := ast.TypeOf(binary.Right)
	switch binary.Operator {
	case "&&", "||":
		if left != environment.Boolean || right != environment.Boolean {
			fail("'" + binary.Operator + "' needs Boolean operands")
		}
		binary.Type = environment.Boolean
	case "<", ">", "==", "!=":
		requireAssignable(environment.Comparable, left)
		requireAssignable(environment.Comparable, right)
		if left != right {
			fail("'" + binary.Operator + "' needs operands of the same type")
		}
		binary.Type = environment.Boolean
	case "+":
		if left == environment.String || right == environment.String {
			binary.Type = environment.String
		} else if left == environment.Integer && right == environment.Integer {
			binary.Type = environment.Integer
		} else if left == environment.Decimal && right == environment.Decimal {
			binary.Type = environment.Decimal
		} else {
			fail("'+' needs two Integers, two Decimals, or a String")
		}
	case "-", "*", "/":
		if left == environment.Integer && right == environment.Integer {
			binary.Type = environment.Integer
		} else if left == environment.Decimal && right == environment.Decimal {
			binary.Type = environment.Decimal
		} else {
			fail("'" + binary.Operator + "' needs two Integers or two Decimals")
		}
	case "^":
		if left != environment.Integer || right != environment.Integer {
			fail("'^' needs Integer operands")
		}
		binary.Type = environment.Integer
	default:
		fail("unhandled operator '" + binary.Operator + "'")
	}
}
