package interp

import (
	"bytes"
	stderrors "errors"
	"math"
	"math/big"
	"testing"

	"github.com/cockroachdb/apd/v3"

	"github.com/plclang/plcgo/analyzer"
	"github.com/plclang/plcgo/ast"
	"github.com/plclang/plcgo/environment"
	"github.com/plclang/plcgo/errors"
	"github.com/plclang/plcgo/lexer"
	"github.com/plclang/plcgo/parser"
)

func mustAnalyze(t *testing.T, source string) *ast.Source {
	t.Helper()
	tokens, err := lexer.New(source).Lex()
	if err != nil {
		t.Fatalf("lex error: %v\nsource:\n%s", err, source)
	}
	src, err := parser.New(tokens).ParseSource()
	if err != nil {
		t.Fatalf("parse error: %v\nsource:\n%s", err, source)
	}
	if err := analyzer.New(nil).Analyze(src); err != nil {
		t.Fatalf("analysis error: %v\nsource:\n%s", err, source)
	}
	return src
}

func run(t *testing.T, source string) (environment.Object, string, error) {
	t.Helper()
	src := mustAnalyze(t, source)
	i := New(nil)
	var out bytes.Buffer
	i.SetOutput(&out)
	result, err := i.Interpret(src)
	return result, out.String(), err
}

func mustRun(t *testing.T, source string) (environment.Object, string) {
	t.Helper()
	result, output, err := run(t, source)
	if err != nil {
		t.Fatalf("runtime error: %v\nsource:\n%s", err, source)
	}
	return result, output
}

func wantInt(t *testing.T, result environment.Object, want int64) {
	t.Helper()
	n, ok := result.Value.(*big.Int)
	if !ok {
		t.Fatalf("want an Integer result, got %v", result.Value)
	}
	if n.Int64() != want {
		t.Fatalf("want %d, got %s", want, n)
	}
}

func runtimeFails(t *testing.T, source string) {
	t.Helper()
	_, _, err := run(t, source)
	if err == nil {
		t.Fatalf("expected a runtime error\nsource:\n%s", source)
	}
	var rerr errors.RuntimeError
	if !stderrors.As(err, &rerr) {
		t.Fatalf("expected a RuntimeError, got %v", err)
	}
}

func TestMinimal(t *testing.T) {
	result, _ := mustRun(t, "FUN main(): Integer DO RETURN 0; END")
	wantInt(t, result, 0)
}

func TestGlobalAndIf(t *testing.T) {
	result, _ := mustRun(t, `VAL answer: Integer = 42;
FUN main(): Integer DO
	IF answer == 42 DO RETURN 1; ELSE RETURN 0; END
END`)
	wantInt(t, result, 1)
}

func TestStringConcatenation(t *testing.T) {
	result, output := mustRun(t, `FUN main(): Integer DO print("x=" + 1); RETURN 0; END`)
	wantInt(t, result, 0)
	if output != "x=1\n" {
		t.Fatalf("want %q, got %q", "x=1\n", output)
	}
}

func TestSwitch(t *testing.T) {
	program := func(x string) string {
		return `FUN main(): Integer DO
	LET x: Integer = ` + x + `;
	SWITCH x CASE 1: RETURN 10; CASE 2: RETURN 20; DEFAULT RETURN 30; END
END`
	}
	result, _ := mustRun(t, program("2"))
	wantInt(t, result, 20)
	result, _ = mustRun(t, program("9"))
	wantInt(t, result, 30)
}

func TestListMutation(t *testing.T) {
	result, _ := mustRun(t, `LIST xs: Integer = [1, 2, 3];
FUN main(): Integer DO xs[1] = 9; RETURN xs[1]; END`)
	wantInt(t, result, 9)

	result, _ = mustRun(t, `LIST xs: Integer = [1, 2, 3];
FUN main(): Integer DO xs[0] = 5; RETURN xs[0] + xs[2]; END`)
	wantInt(t, result, 8)
}

func TestShortCircuit(t *testing.T) {
	_, output := mustRun(t, `FUN boom(): Boolean DO print("boom"); RETURN TRUE; END
FUN main(): Integer DO
	IF FALSE && boom() DO RETURN 1; ELSE RETURN 0; END
END`)
	if output != "" {
		t.Fatalf("&& must not evaluate its right side, printed %q", output)
	}

	result, output := mustRun(t, `FUN boom(): Boolean DO print("boom"); RETURN TRUE; END
FUN main(): Integer DO
	IF TRUE || boom() DO RETURN 1; ELSE RETURN 0; END
END`)
	wantInt(t, result, 1)
	if output != "" {
		t.Fatalf("|| must not evaluate its right side, printed %q", output)
	}
}

func TestWhile(t *testing.T) {
	result, _ := mustRun(t, `FUN main(): Integer DO
	LET i = 0;
	LET sum = 0;
	WHILE i < 5 DO
		i = i + 1;
		sum = sum + i;
	END
	RETURN sum;
END`)
	wantInt(t, result, 15)
}

func TestReturnUnwinds(t *testing.T) {
	result, _ := mustRun(t, `FUN main(): Integer DO
	WHILE TRUE DO RETURN 7; END
	RETURN 0;
END`)
	wantInt(t, result, 7)
}

func TestRecursion(t *testing.T) {
	result, _ := mustRun(t, `FUN fact(n: Integer): Integer DO
	IF n < 1 DO RETURN 1; END
	RETURN n * fact(n - 1);
END
FUN main(): Integer DO RETURN fact(5); END`)
	wantInt(t, result, 120)
}

func TestDecimals(t *testing.T) {
	_, output := mustRun(t, `FUN main(): Integer DO
	print(1.5 + 2.5);
	print(7.0 / 2.0);
	RETURN 0;
END`)
	if output != "4.0\n3.5\n" {
		t.Fatalf("unexpected output %q", output)
	}
}

func TestDivisionByZero(t *testing.T) {
	runtimeFails(t, "FUN main(): Integer DO RETURN 1 / 0; END")
	runtimeFails(t, "FUN main(): Integer DO LET x = 1.0 / 0.0; RETURN 0; END")
}

func TestImmutableAssignment(t *testing.T) {
	// Mutability is not an analysis-time check; it fails at runtime.
	runtimeFails(t, `VAL x: Integer = 1;
FUN main(): Integer DO x = 2; RETURN 0; END`)
}

func TestListErrors(t *testing.T) {
	runtimeFails(t, `LIST xs: Integer = [1, 2, 3];
FUN main(): Integer DO RETURN xs[5]; END`)
	// Indexing a scalar: the analyzer only checks the index expression.
	runtimeFails(t, `VAR x: Integer = 1;
FUN main(): Integer DO RETURN x[0]; END`)
}

func TestUninitializedGlobal(t *testing.T) {
	_, output := mustRun(t, `VAR x: Integer;
FUN main(): Integer DO print(x); RETURN 0; END`)
	if output != "null\n" {
		t.Fatalf("want %q, got %q", "null\n", output)
	}
}

func TestVoidFunction(t *testing.T) {
	_, output := mustRun(t, `FUN greet() DO print("hi"); END
FUN main(): Integer DO greet(); RETURN 0; END`)
	if output != "hi\n" {
		t.Fatalf("want %q, got %q", "hi\n", output)
	}
}

func TestPower(t *testing.T) {
	result, _ := mustRun(t, "FUN main(): Integer DO RETURN 2 ^ 10; END")
	wantInt(t, result, 1024)
}

// The fallback multiplies by the base once per unit past the cap, so the
// result is a genuine power.
func TestPowerPastCap(t *testing.T) {
	previous := expCap
	expCap = big.NewInt(3)
	defer func() { expCap = previous }()

	if got := power(big.NewInt(2), big.NewInt(5)); got.Int64() != 32 {
		t.Fatalf("2^5: want 32, got %s", got)
	}
	if got := power(big.NewInt(3), big.NewInt(4)); got.Int64() != 81 {
		t.Fatalf("3^4: want 81, got %s", got)
	}
}

// The analyzer only knows print, so the builtin is called directly.
func TestConverter(t *testing.T) {
	converter := New(nil).Scope().LookupFunction("converter", 2)
	output := ""
	for _, args := range [][2]int64{{5, 2}, {255, 16}} {
		result := converter.Callable([]environment.Object{
			environment.Create(big.NewInt(args[0])),
			environment.Create(big.NewInt(args[1])),
		})
		output += result.String() + "\n"
	}
	if output != "101\n1515\n" {
		t.Fatalf("unexpected output %q", output)
	}
}

func TestLogarithm(t *testing.T) {
	i := New(nil)
	e := new(apd.Decimal)
	if _, err := e.SetFloat64(math.E); err != nil {
		t.Fatal(err)
	}
	result := i.Scope().LookupFunction("logarithm", 1).Callable([]environment.Object{environment.Create(e)})
	d, ok := result.Value.(*apd.Decimal)
	if !ok {
		t.Fatalf("want a Decimal, got %v", result.Value)
	}
	f, _ := d.Float64()
	if math.Abs(f-1) > 1e-9 {
		t.Fatalf("ln(e): want 1, got %v", f)
	}
}

func TestScopeRestored(t *testing.T) {
	i := New(nil)
	before := i.Scope()
	var out bytes.Buffer
	i.SetOutput(&out)
	_, err := i.Interpret(mustAnalyze(t, `FUN main(): Integer DO
	WHILE TRUE DO RETURN 1 / 0; END
	RETURN 0;
END`))
	if err == nil {
		t.Fatalf("expected a runtime error")
	}
	if i.Scope() != before {
		t.Fatalf("scope not restored after failure")
	}
}

func TestEqualValues(t *testing.T) {
	one := big.NewInt(1)
	if !equal(one, big.NewInt(1)) || equal(one, big.NewInt(2)) {
		t.Fatalf("integer equality broken")
	}
	// Decimals compare by value, not representation.
	a, _, _ := apd.NewFromString("2.0")
	b, _, _ := apd.NewFromString("2.00")
	if !equal(a, b) {
		t.Fatalf("2.0 must equal 2.00")
	}
	if !equal([]interface{}{one, "x"}, []interface{}{big.NewInt(1), "x"}) {
		t.Fatalf("list equality broken")
	}
	if equal(one, "1") {
		t.Fatalf("kinds must match")
	}
}
