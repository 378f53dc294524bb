package interp

import (
	"fmt"
	"math"
	"math/big"

	"github.com/cockroachdb/apd/v3"

	"github.com/plclang/plcgo/environment"
	"github.com/plclang/plcgo/errors"
)

// defineBuiltins registers the host functions in the interpreter's root scope,
// the same scope that later holds the program's globals and functions. The
// analyzer pre-registers only print, so analyzed source can call print but not
// logarithm or converter; those are reached through Scope().
func (i *Interpreter) defineBuiltins() {
	i.scope.DefineFunction(
		"print", "System.out.println", 1, nil, environment.Nil,
		func(args []environment.Object) environment.Object {
			fmt.Fprintln(i.out, args[0].String())
			return environment.NIL
		},
	)

	i.scope.DefineFunction(
		"logarithm", "Math.log", 1, nil, environment.Decimal,
		func(args []environment.Object) environment.Object {
			n := requireDecimal(args[0])
			f, _ := n.Float64()
			result := new(apd.Decimal)
			if _, err := result.SetFloat64(math.Log(f)); err != nil {
				panic(errors.RuntimeError{Message: "logarithm of " + n.String() + " is undefined"})
			}
			return environment.Create(result)
		},
	)

	// converter renders a base-10 integer in the given base, digit by digit:
	// repeated division collects the remainders, which read back most
	// significant last.
	i.scope.DefineFunction(
		"converter", "converter", 2, nil, environment.String,
		func(args []environment.Object) environment.Object {
			base10 := requireInt(args[0])
			base := requireInt(args[1])
			if base.Sign() == 0 {
				panic(errors.RuntimeError{Message: "division by zero"})
			}
			quotients := []*big.Int{base10}
			var remainders []*big.Int
			n := 0
			for {
				quotient := new(big.Int).Quo(quotients[n], base)
				quotients = append(quotients, quotient)
				remainders = append(remainders, new(big.Int).Sub(quotients[n], new(big.Int).Mul(quotient, base)))
				n++
				if quotients[n].Sign() <= 0 {
					break
				}
			}
			number := ""
			for _, remainder := range remainders {
				number = remainder.String() + number
			}
			return environment.Create(number)
		},
	)
}
