package interp

import (
	"math"
	"math/big"

	"github.com/cockroachdb/apd/v3"

	"github.com/plclang/plcgo/ast"
	"github.com/plclang/plcgo/environment"
	"github.com/plclang/plcgo/errors"
)

// decimalContext carries the rounding the language promises for decimal
// division.
var decimalContext = func() apd.Context {
	ctx := apd.BaseContext.WithPrecision(34)
	ctx.Rounding = apd.RoundHalfEven
	return *ctx
}()

// expCap is where integer exponentiation switches to multiplying the partial
// power by the base once per excess unit. A variable so tests can lower it.
var expCap = big.NewInt(math.MaxInt32)

func (i *Interpreter) visitBinary(binary *ast.Binary) environment.Object {
	left := i.visitExpression(binary.Left)
	switch binary.Operator {
	case "&&":
		if !requireBool(left) {
			return environment.Create(false)
		}
		return environment.Create(requireBool(i.visitExpression(binary.Right)))
	case "||":
		if requireBool(left) {
			return environment.Create(true)
		}
		return environment.Create(requireBool(i.visitExpression(binary.Right)))
	case "<":
		right := i.visitExpression(binary.Right)
		return environment.Create(compare(left.Value, right.Value) < 0)
	case ">":
		right := i.visitExpression(binary.Right)
		return environment.Create(compare(left.Value, right.Value) > 0)
	case "==":
		right := i.visitExpression(binary.Right)
		return environment.Create(equal(left.Value, right.Value))
	case "!=":
		right := i.visitExpression(binary.Right)
		return environment.Create(!equal(left.Value, right.Value))
	case "+":
		right := i.visitExpression(binary.Right)
		return add(left, right)
	case "-":
		right := i.visitExpression(binary.Right)
		return arithmetic(left, right, "-")
	case "*":
		right := i.visitExpression(binary.Right)
		return arithmetic(left, right, "*")
	case "/":
		right := i.visitExpression(binary.Right)
		return divide(left, right)
	case "^":
		right := i.visitExpression(binary.Right)
		return environment.Create(power(requireInt(left), requireInt(right)))
	default:
		panic(errors.RuntimeError{Message: "unhandled operator '" + binary.Operator + "'"})
	}
}

func add(left, right environment.Object) environment.Object {
	if _, ok := left.Value.(string); ok {
		return environment.Create(left.String() + right.String())
	}
	if _, ok := right.Value.(string); ok {
		return environment.Create(left.String() + right.String())
	}
	return arithmetic(left, right, "+")
}

func arithmetic(left, right environment.Object, op string) environment.Object {
	switch l := left.Value.(type) {
	case *big.Int:
		r := requireInt(right)
		result := new(big.Int)
		switch op {
		case "+":
			result.Add(l, r)
		case "-":
			result.Sub(l, r)
		case "*":
			result.Mul(l, r)
		}
		return environment.Create(result)
	case *apd.Decimal:
		r := requireDecimal(right)
		result := new(apd.Decimal)
		var err error
		switch op {
		case "+":
			_, err = decimalContext.Add(result, l, r)
		case "-":
			_, err = decimalContext.Sub(result, l, r)
		case "*":
			_, err = decimalContext.Mul(result, l, r)
		}
		if err != nil {
			panic(errors.RuntimeError{Message: err.Error()})
		}
		return environment.Create(result)
	default:
		panic(errors.RuntimeError{Message: "expected a numeric value, received " + kindName(left.Value)})
	}
}

func divide(left, right environment.Object) environment.Object {
	switch l := left.Value.(type) {
	case *big.Int:
		r := requireInt(right)
		if r.Sign() == 0 {
			panic(errors.RuntimeError{Message: "division by zero"})
		}
		return environment.Create(new(big.Int).Quo(l, r))
	case *apd.Decimal:
		r := requireDecimal(right)
		if r.IsZero() {
			panic(errors.RuntimeError{Message: "division by zero"})
		}
		result := new(apd.Decimal)
		if _, err := decimalContext.Quo(result, l, r); err != nil {
			panic(errors.RuntimeError{Message: err.Error()})
		}
		// The quotient keeps the dividend's scale, rounded half-even.
		if _, err := decimalContext.Quantize(result, result, l.Exponent); err != nil {
			panic(errors.RuntimeError{Message: err.Error()})
		}
		return environment.Create(result)
	default:
		panic(errors.RuntimeError{Message: "expected a numeric value, received " + kindName(left.Value)})
	}
}

// power is integer exponentiation. Exponents beyond expCap are computed as
// base^expCap followed by one multiplication by the base per excess unit.
func power(base, exponent *big.Int) *big.Int {
	if exponent.Sign() < 0 {
		panic(errors.RuntimeError{Message: "negative exponent"})
	}
	if exponent.Cmp(expCap) <= 0 {
		return new(big.Int).Exp(base, exponent, nil)
	}
	result := new(big.Int).Exp(base, expCap, nil)
	excess := new(big.Int).Sub(exponent, expCap)
	for i := new(big.Int); i.Cmp(excess) < 0; i.Add(i, big.NewInt(1)) {
		result.Mul(result, base)
	}
	return result
}

// compare orders two runtime values of the same kind. Only the four
// comparable kinds order; anything else is a runtime error.
func compare(left, right interface{}) int {
	switch l := left.(type) {
	case *big.Int:
		r, ok := right.(*big.Int)
		if !ok {
			panic(errors.RuntimeError{Message: "expected an Integer, received " + kindName(right)})
		}
		return l.Cmp(r)
	case *apd.Decimal:
		r, ok := right.(*apd.Decimal)
		if !ok {
			panic(errors.RuntimeError{Message: "expected a Decimal, received " + kindName(right)})
		}
		return l.Cmp(r)
	case rune:
		r, ok := right.(rune)
		if !ok {
			panic(errors.RuntimeError{Message: "expected a Character, received " + kindName(right)})
		}
		return int(l) - int(r)
	case string:
		r, ok := right.(string)
		if !ok {
			panic(errors.RuntimeError{Message: "expected a String, received " + kindName(right)})
		}
		switch {
		case l < r:
			return -1
		case l > r:
			return 1
		}
		return 0
	default:
		panic(errors.RuntimeError{Message: kindName(left) + " values do not order"})
	}
}

// equal is structural value equality. Numbers compare by value, lists
// element-wise.
func equal(left, right interface{}) bool {
	switch l := left.(type) {
	case nil:
		return right == nil
	case *big.Int:
		r, ok := right.(*big.Int)
		return ok && l.Cmp(r) == 0
	case *apd.Decimal:
		r, ok := right.(*apd.Decimal)
		return ok && l.Cmp(r) == 0
	case []interface{}:
		r, ok := right.([]interface{})
		if !ok || len(l) != len(r) {
			return false
		}
		for i := range l {
			if !equal(l[i], r[i]) {
				return false
			}
		}
		return true
	default:
		return left == right
	}
}

func kindName(value interface{}) string {
	switch value.(type) {
	case nil:
		return "Nil"
	case bool:
		return "Boolean"
	case rune:
		return "Character"
	case string:
		return "String"
	case *big.Int:
		return "Integer"
	case *apd.Decimal:
		return "Decimal"
	case []interface{}:
		return "List"
	default:
		return "<unknown>"
	}
}

func requireBool(o environment.Object) bool {
	b, ok := o.Value.(bool)
	if !ok {
		panic(errors.RuntimeError{Message: "expected a Boolean, received " + kindName(o.Value)})
	}
	return b
}

func requireInt(o environment.Object) *big.Int {
	n, ok := o.Value.(*big.Int)
	if !ok {
		panic(errors.RuntimeError{Message: "expected an Integer, received " + kindName(o.Value)})
	}
	return n
}

func requireDecimal(o environment.Object) *apd.Decimal {
	d, ok := o.Value.(*apd.Decimal)
	if !ok {
		panic(errors.RuntimeError{Message: "expected a Decimal, received " + kindName(o.Value)})
	}
	return d
}

func requireList(o environment.Object) []interface{} {
	l, ok := o.Value.([]interface{})
	if !ok {
		panic(errors.RuntimeError{Message: "expected a List, received " + kindName(o.Value)})
	}
	return l
}

// listIndex coerces an index value and bounds-checks it.
func listIndex(o environment.Object, length int) int {
	n := requireInt(o)
	if !n.IsInt64() || n.Int64() < 0 || n.Int64() >= int64(length) {
		panic(errors.RuntimeError{Message: "list index " + n.String() + " out of bounds"})
	}
	return int(n.Int64())
}
