package interp

import (
	"io"
	"os"

	"github.com/ztrue/tracerr"

	"github.com/plclang/plcgo/ast"
	"github.com/plclang/plcgo/environment"
	"github.com/plclang/plcgo/errors"
)

// Interpreter walks an analyzed tree and evaluates it against its own
// runtime scope chain, separate from the analyzer's. Output from the print
// builtin goes to out.
type Interpreter struct {
	scope *environment.Scope
	out   io.Writer
}

func New(parent *environment.Scope) *Interpreter {
	i := &Interpreter{scope: environment.NewScope(parent), out: os.Stdout}
	i.defineBuiltins()
	return i
}

// SetOutput redirects the print builtin.
func (i *Interpreter) SetOutput(w io.Writer) {
	i.out = w
}

// Scope exposes the interpreter's root scope.
func (i *Interpreter) Scope() *environment.Scope {
	return i.scope
}

// returnSignal unwinds a RETURN to the nearest function invocation. It is
// control flow, not an error, and never escapes a function body.
type returnSignal struct {
	value environment.Object
}

// Interpret binds the globals, binds each function as a closure over the
// scope at its point of definition, then invokes main/0 and returns its
// result.
func (i *Interpreter) Interpret(src *ast.Source) (result environment.Object, err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(errors.RuntimeError); ok {
				result = environment.NIL
				err = tracerr.Wrap(rerr)
			} else {
				panic(r)
			}
		}
	}()
	for _, global := range src.Globals {
		i.visitGlobal(global)
	}
	for _, function := range src.Functions {
		i.visitFunction(function)
	}
	return i.scope.LookupFunction("main", 0).Callable(nil), nil
}

func (i *Interpreter) visitGlobal(global *ast.Global) {
	value := environment.NIL
	if global.Value != nil {
		value = i.visitExpression(global.Value)
	}
	i.scope.DefineVariable(global.Name, global.Name, environment.Any, global.Mutable, value)
}

func (i *Interpreter) visitFunction(function *ast.Function) {
	parent := i.scope
	i.scope.DefineFunction(
		function.Name, function.Name, len(function.Parameters), nil, environment.Nil,
		func(args []environment.Object) (result environment.Object) {
			previous := i.scope
			i.scope = environment.NewScope(parent)
			defer func() {
				i.scope = previous
				if r := recover(); r != nil {
					ret, ok := r.(returnSignal)
					if !ok {
						panic(r)
					}
					result = ret.value
				}
			}()
			for idx, parameter := range function.Parameters {
				i.scope.DefineVariable(parameter, parameter, environment.Any, true, args[idx])
			}
			result = environment.NIL
			for _, stmt := range function.Statements {
				i.visitStatement(stmt)
			}
			return result
		},
	)
}

func (i *Interpreter) visitStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		i.visitExpression(s.Expression)
	case *ast.Declaration:
		value := environment.NIL
		if s.Value != nil {
			value = i.visitExpression(s.Value)
		}
		i.scope.DefineVariable(s.Name, s.Name, environment.Any, true, value)
	case *ast.Assignment:
		i.visitAssignment(s)
	case *ast.If:
		if requireBool(i.visitExpression(s.Condition)) {
			i.runBlock(s.Then)
		} else {
			i.runBlock(s.Else)
		}
	case *ast.Switch:
		i.visitSwitch(s)
	case *ast.While:
		for requireBool(i.visitExpression(s.Condition)) {
			i.runBlock(s.Statements)
		}
	case *ast.Return:
		panic(returnSignal{value: i.visitExpression(s.Value)})
	default:
		panic(errors.RuntimeError{Message: "unhandled statement"})
	}
}

func (i *Interpreter) visitAssignment(s *ast.Assignment) {
	receiver, ok := s.Receiver.(*ast.Access)
	if !ok {
		panic(errors.RuntimeError{Message: "only variables can be assigned to"})
	}
	variable := i.scope.LookupVariable(receiver.Name)
	if !variable.Mutable {
		panic(errors.RuntimeError{Message: "the variable '" + receiver.Name + "' is immutable"})
	}
	if receiver.Offset != nil {
		list := requireList(variable.Value)
		index := listIndex(i.visitExpression(receiver.Offset), len(list))
		list[index] = i.visitExpression(s.Value).Value
		variable.Value = environment.Create(list)
	} else {
		variable.Value = i.visitExpression(s.Value)
	}
}

func (i *Interpreter) visitSwitch(s *ast.Switch) {
	condition := i.visitExpression(s.Condition)
	for _, c := range s.Cases {
		if c.Value == nil {
			continue
		}
		if i.runCase(c, condition) {
			return
		}
	}
	for _, c := range s.Cases {
		if c.Value == nil {
			i.runBlock(c.Statements)
			return
		}
	}
}

// runCase evaluates the case's value in the case's own scope; a match runs
// the body in that same scope and stops the switch.
func (i *Interpreter) runCase(c *ast.Case, condition environment.Object) bool {
	previous := i.scope
	i.scope = environment.NewScope(previous)
	defer func() { i.scope = previous }()
	if !equal(i.visitExpression(c.Value).Value, condition.Value) {
		return false
	}
	for _, stmt := range c.Statements {
		i.visitStatement(stmt)
	}
	return true
}

// runBlock executes statements in a fresh scope, restored on every exit path
// including errors and RETURN unwinds.
func (i *Interpreter) runBlock(statements []ast.Statement) {
	previous := i.scope
	i.scope = environment.NewScope(previous)
	defer func() { i.scope = previous }()
	for _, stmt := range statements {
		i.visitStatement(stmt)
	}
}

func (i *Interpreter) visitExpression(expr ast.Expression) environment.Object {
	switch e := expr.(type) {
	case *ast.Literal:
		if e.Value == nil {
			return environment.NIL
		}
		return environment.Create(e.Value)
	case *ast.Group:
		return i.visitExpression(e.Expression)
	case *ast.Binary:
		return i.visitBinary(e)
	case *ast.Access:
		variable := i.scope.LookupVariable(e.Name)
		if e.Offset != nil {
			list := requireList(variable.Value)
			index := listIndex(i.visitExpression(e.Offset), len(list))
			return environment.Create(list[index])
		}
		return variable.Value
	case *ast.Call:
		args := make([]environment.Object, len(e.Arguments))
		for idx, argument := range e.Arguments {
			args[idx] = i.visitExpression(argument)
		}
		return i.scope.LookupFunction(e.Name, len(e.Arguments)).Callable(args)
	case *ast.List:
		list := make([]interface{}, len(e.Values))
		for idx, value := range e.Values {
			list[idx] = i.visitExpression(value).Value
		}
		return environment.Create(list)
	default:
		panic(errors.RuntimeError{Message: "unhandled expression"})
	}
}
