package environment

import (
	"math/big"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/plclang/plcgo/errors"
)

// Type is one of the built-in types of the language. Name is how the type is
// written in source; JvmName is what the generator emits for it.
type Type struct {
	Name    string
	JvmName string
}

var (
	Any        = Type{"Any", "Object"}
	Nil        = Type{"Nil", "Void"}
	Comparable = Type{"Comparable", "Comparable"}
	Boolean    = Type{"Boolean", "boolean"}
	Integer    = Type{"Integer", "int"}
	Decimal    = Type{"Decimal", "double"}
	Character  = Type{"Character", "char"}
	String     = Type{"String", "String"}
)

var typesByName = map[string]Type{
	"Any":        Any,
	"Nil":        Nil,
	"Comparable": Comparable,
	"Boolean":    Boolean,
	"Integer":    Integer,
	"Decimal":    Decimal,
	"Character":  Character,
	"String":     String,
}

// GetType resolves a source-side type name. The set of types is closed, so an
// unknown name is an analysis failure.
func GetType(name string) Type {
	t, ok := typesByName[name]
	if !ok {
		panic(errors.AnalysisError{Message: "the type '" + name + "' is not defined"})
	}
	return t
}

// Object is a runtime value: nil, bool, rune, string, *big.Int, *apd.Decimal,
// or []interface{} for lists. Lists are aliased; mutating an element is
// visible through every holder of the same slice.
type Object struct {
	Value interface{}
}

// NIL is the sole nil value.
var NIL = Object{}

func Create(value interface{}) Object {
	return Object{Value: value}
}

func (o Object) String() string {
	return format(o.Value)
}

func format(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case rune:
		return string(v)
	case string:
		return v
	case *big.Int:
		return v.String()
	case *apd.Decimal:
		return v.String()
	case []interface{}:
		parts := make([]string, len(v))
		for i, elem := range v {
			parts[i] = format(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "<unknown>"
	}
}

// Variable is a named storage cell. JvmName is what the generator emits for
// accesses to it.
type Variable struct {
	Name    string
	JvmName string
	Type    Type
	Mutable bool
	Value   Object
}

// Function is a callable value. Functions are keyed by (name, arity) in a
// scope. ParameterTypes are only populated by the analyzer; the interpreter
// registers nil parameter types, gives program functions a Nil ReturnType,
// and never checks either.
type Function struct {
	Name           string
	JvmName        string
	Arity          int
	ParameterTypes []Type
	ReturnType     Type
	Callable       func(args []Object) Object
}
