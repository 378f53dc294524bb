package environment

import (
	"fmt"

	"github.com/plclang/plcgo/errors"
)

// Scope is one link of a lexically nested chain of bindings. Lookups walk the
// parent chain and the first hit wins; defining a name twice in the same
// scope is an error. Failed lookups and redefinitions panic a RuntimeError,
// which the running stage recovers at its boundary (the analyzer reports it
// as an AnalysisError).
type Scope struct {
	parent    *Scope
	variables map[string]*Variable
	functions map[string]*Function
}

func NewScope(parent *Scope) *Scope {
	return &Scope{
		parent:    parent,
		variables: make(map[string]*Variable),
		functions: make(map[string]*Function),
	}
}

func (s *Scope) Parent() *Scope {
	return s.parent
}

func functionKey(name string, arity int) string {
	return fmt.Sprintf("%s/%d", name, arity)
}

func (s *Scope) DefineVariable(name, jvmName string, t Type, mutable bool, value Object) *Variable {
	if _, ok := s.variables[name]; ok {
		panic(errors.RuntimeError{Message: "the variable '" + name + "' is already defined in this scope"})
	}
	v := &Variable{Name: name, JvmName: jvmName, Type: t, Mutable: mutable, Value: value}
	s.variables[name] = v
	return v
}

func (s *Scope) DefineFunction(name, jvmName string, arity int, parameterTypes []Type, returnType Type, callable func([]Object) Object) *Function {
	key := functionKey(name, arity)
	if _, ok := s.functions[key]; ok {
		panic(errors.RuntimeError{Message: "the function '" + key + "' is already defined in this scope"})
	}
	f := &Function{
		Name:           name,
		JvmName:        jvmName,
		Arity:          arity,
		ParameterTypes: parameterTypes,
		ReturnType:     returnType,
		Callable:       callable,
	}
	s.functions[key] = f
	return f
}

func (s *Scope) LookupVariable(name string) *Variable {
	for scope := s; scope != nil; scope = scope.parent {
		if v, ok := scope.variables[name]; ok {
			return v
		}
	}
	panic(errors.RuntimeError{Message: "the variable '" + name + "' is not defined"})
}

func (s *Scope) LookupFunction(name string, arity int) *Function {
	key := functionKey(name, arity)
	for scope := s; scope != nil; scope = scope.parent {
		if f, ok := scope.functions[key]; ok {
			return f
		}
	}
	panic(errors.RuntimeError{Message: "the function '" + key + "' is not defined"})
}
