package analyzer

import (
	stderrors "errors"
	"math/big"
	"testing"

	"github.com/plclang/plcgo/ast"
	"github.com/plclang/plcgo/environment"
	"github.com/plclang/plcgo/errors"
	"github.com/plclang/plcgo/lexer"
	"github.com/plclang/plcgo/parser"
)

func mustParse(t *testing.T, source string) *ast.Source {
	t.Helper()
	tokens, err := lexer.New(source).Lex()
	if err != nil {
		t.Fatalf("lex error: %v\nsource:\n%s", err, source)
	}
	src, err := parser.New(tokens).ParseSource()
	if err != nil {
		t.Fatalf("parse error: %v\nsource:\n%s", err, source)
	}
	return src
}

func mustAnalyze(t *testing.T, source string) *ast.Source {
	t.Helper()
	src := mustParse(t, source)
	if err := New(nil).Analyze(src); err != nil {
		t.Fatalf("analysis error: %v\nsource:\n%s", err, source)
	}
	return src
}

func analysisFails(t *testing.T, source string) {
	t.Helper()
	err := New(nil).Analyze(mustParse(t, source))
	if err == nil {
		t.Fatalf("expected analysis to fail\nsource:\n%s", source)
	}
	var aerr errors.AnalysisError
	if !stderrors.As(err, &aerr) {
		t.Fatalf("expected an AnalysisError, got %v", err)
	}
}

// declared analyzes a main that binds expression to a local and reports the
// local's resolved type.
func declared(t *testing.T, expression string) environment.Type {
	t.Helper()
	src := mustAnalyze(t, "FUN main(): Integer DO LET x = "+expression+"; RETURN 0; END")
	return src.Functions[0].Statements[0].(*ast.Declaration).Variable.Type
}

func TestAssignable(t *testing.T) {
	all := []environment.Type{
		environment.Any, environment.Nil, environment.Comparable, environment.Boolean,
		environment.Integer, environment.Decimal, environment.Character, environment.String,
	}
	// Comparable also accepts itself, as every type does.
	comparable := map[environment.Type]bool{
		environment.Comparable: true,
		environment.Integer:    true,
		environment.Decimal:    true,
		environment.Character:  true,
		environment.String:     true,
	}

	for _, typ := range all {
		if !Assignable(environment.Any, typ) {
			t.Errorf("Any must accept %s", typ.Name)
		}
		if !Assignable(typ, typ) {
			t.Errorf("%s must accept itself", typ.Name)
		}
		if want := comparable[typ]; Assignable(environment.Comparable, typ) != want {
			t.Errorf("Comparable accepting %s: want %v", typ.Name, want)
		}
	}

	// The relation is not symmetric.
	fails := [][2]environment.Type{
		{environment.Integer, environment.Any},
		{environment.Integer, environment.Decimal},
		{environment.Decimal, environment.Integer},
		{environment.String, environment.Character},
		{environment.Boolean, environment.Comparable},
		{environment.Nil, environment.Any},
	}
	for _, pair := range fails {
		if Assignable(pair[0], pair[1]) {
			t.Errorf("%s must not accept %s", pair[0].Name, pair[1].Name)
		}
	}
}

func TestAnalyzeMinimal(t *testing.T) {
	src := mustAnalyze(t, "FUN main(): Integer DO RETURN 0; END")
	fn := src.Functions[0]
	if fn.Function == nil || fn.Function.ReturnType != environment.Integer {
		t.Fatalf("unexpected function handle: %+v", fn.Function)
	}
	ret := fn.Statements[0].(*ast.Return)
	if ast.TypeOf(ret.Value) != environment.Integer {
		t.Fatalf("unexpected literal type: %v", ast.TypeOf(ret.Value))
	}
}

func TestMainRequired(t *testing.T) {
	// No main at all.
	analysisFails(t, "FUN other(): Integer DO RETURN 0; END")
	// Wrong return type.
	analysisFails(t, "FUN main() DO END")
	// Wrong arity.
	analysisFails(t, "FUN main(x: Integer): Integer DO RETURN 0; END")
}

func TestArithmeticClosure(t *testing.T) {
	if typ := declared(t, "1 + 2"); typ != environment.Integer {
		t.Fatalf("Integer + Integer: got %s", typ.Name)
	}
	if typ := declared(t, "1.5 * 2.5"); typ != environment.Decimal {
		t.Fatalf("Decimal * Decimal: got %s", typ.Name)
	}
	if typ := declared(t, `"x=" + 1`); typ != environment.String {
		t.Fatalf("String + Integer: got %s", typ.Name)
	}
	if typ := declared(t, "1 < 2"); typ != environment.Boolean {
		t.Fatalf("comparison: got %s", typ.Name)
	}
	if typ := declared(t, "TRUE && FALSE"); typ != environment.Boolean {
		t.Fatalf("logical: got %s", typ.Name)
	}

	wrap := func(expression string) string {
		return "FUN main(): Integer DO LET x = " + expression + "; RETURN 0; END"
	}
	for _, expression := range []string{
		"1 + 2.0", "1.0 - 2", "1 * 2.0", "1.0 / 2",
		"1 < 2.0", "'a' == 1", "TRUE < FALSE", "NIL == NIL",
		"1 && 2", "1.0 ^ 2.0", "2 ^ 2.0",
	} {
		analysisFails(t, wrap(expression))
	}
}

func TestLiteralRanges(t *testing.T) {
	mustAnalyze(t, "FUN main(): Integer DO RETURN 2147483647; END")
	mustAnalyze(t, "FUN main(): Integer DO RETURN -2147483648; END")
	analysisFails(t, "FUN main(): Integer DO RETURN 2147483648; END")
	analysisFails(t, "FUN main(): Integer DO RETURN -2147483649; END")
}

func TestDeclarations(t *testing.T) {
	// Inferred from the initializer.
	if typ := declared(t, "1.5"); typ != environment.Decimal {
		t.Fatalf("want Decimal, got %s", typ.Name)
	}
	// Needs a type or an initializer.
	analysisFails(t, "FUN main(): Integer DO LET x; RETURN 0; END")
	// Initializer must fit the declared type.
	analysisFails(t, "FUN main(): Integer DO LET x: Integer = 1.5; RETURN 0; END")
	// Redeclaring in the same scope fails, shadowing in a nested one is fine.
	analysisFails(t, "FUN main(): Integer DO LET x = 1; LET x = 2; RETURN 0; END")
	mustAnalyze(t, "FUN main(): Integer DO LET x = 1; IF x == 1 DO LET x = 2; print(x); END RETURN 0; END")
}

func TestGlobals(t *testing.T) {
	src := mustAnalyze(t, "VAL answer: Integer = 42;\nFUN main(): Integer DO RETURN answer; END")
	answer := src.Globals[0]
	if answer.Variable == nil || answer.Variable.Type != environment.Integer || answer.Variable.Mutable {
		t.Fatalf("unexpected global handle: %+v", answer.Variable)
	}

	analysisFails(t, "VAL x: Integer = 1.5;\nFUN main(): Integer DO RETURN 0; END")
	analysisFails(t, "VAL x: Vector = 1;\nFUN main(): Integer DO RETURN 0; END")

	// List elements must fit the declared type.
	mustAnalyze(t, "LIST xs: Integer = [1, 2, 3];\nFUN main(): Integer DO RETURN xs[0]; END")
	analysisFails(t, "LIST xs: Integer = [1, 2.5];\nFUN main(): Integer DO RETURN 0; END")
}

func TestStatements(t *testing.T) {
	// A bare expression statement must be a call.
	analysisFails(t, "FUN main(): Integer DO 1 + 2; RETURN 0; END")
	mustAnalyze(t, "FUN main(): Integer DO print(1); RETURN 0; END")

	// If: Boolean condition, non-empty then branch.
	analysisFails(t, "FUN main(): Integer DO IF 1 DO RETURN 0; END END")
	analysisFails(t, "FUN main(): Integer DO IF TRUE DO ELSE RETURN 0; END END")

	// While: Boolean condition.
	analysisFails(t, "FUN main(): Integer DO WHILE 1 DO END RETURN 0; END")

	// Assignment: receiver must be a variable, value must fit.
	analysisFails(t, "FUN main(): Integer DO 1 = 2; RETURN 0; END")
	analysisFails(t, `FUN main(): Integer DO LET x: Integer = 1; x = "s"; RETURN 0; END`)
	mustAnalyze(t, "FUN main(): Integer DO LET x: Integer = 1; x = 2; RETURN 0; END")

	// Return value must fit the enclosing function's return type.
	analysisFails(t, "FUN f(): Integer DO RETURN 1.5; END\nFUN main(): Integer DO RETURN 0; END")

	// Group wraps binary expressions only.
	analysisFails(t, "FUN main(): Integer DO RETURN (1); END")
	mustAnalyze(t, "FUN main(): Integer DO RETURN (1 + 2); END")
}

func TestSwitch(t *testing.T) {
	mustAnalyze(t, "FUN main(): Integer DO LET x = 2; SWITCH x CASE 1: RETURN 10; DEFAULT RETURN 30; END END")
	// Case values must fit the condition's type.
	analysisFails(t, `FUN main(): Integer DO LET x = 2; SWITCH x CASE "a": RETURN 10; DEFAULT RETURN 30; END END`)

	// A non-final case without a value never parses, so exercise the rule on
	// a hand-built tree.
	lit := func(n int64) *ast.Literal { return &ast.Literal{Value: big.NewInt(n)} }
	src := &ast.Source{
		Functions: []*ast.Function{{
			Name:           "main",
			ReturnTypeName: "Integer",
			Statements: []ast.Statement{
				&ast.Switch{
					Condition: lit(1),
					Cases: []*ast.Case{
						{Value: nil},
						{Value: lit(1)},
					},
				},
				&ast.Return{Value: lit(0)},
			},
		}},
	}
	if err := New(nil).Analyze(src); err == nil {
		t.Fatalf("expected analysis to fail")
	}
}

func TestCalls(t *testing.T) {
	mustAnalyze(t, "FUN f(x: Integer): Integer DO RETURN x; END\nFUN main(): Integer DO RETURN f(1); END")
	// Argument type mismatch.
	analysisFails(t, "FUN f(x: Integer): Integer DO RETURN x; END\nFUN main(): Integer DO RETURN f(1.5); END")
	// Arity is part of the key.
	analysisFails(t, "FUN f(x: Integer): Integer DO RETURN x; END\nFUN main(): Integer DO RETURN f(); END")
	// Unknown names.
	analysisFails(t, "FUN main(): Integer DO RETURN y; END")
	analysisFails(t, "FUN main(): Integer DO RETURN g(); END")
}

func TestRecursion(t *testing.T) {
	src := mustAnalyze(t, `FUN fact(n: Integer): Integer DO
		IF n < 1 DO RETURN 1; END
		RETURN n * fact(n - 1);
	END
	FUN main(): Integer DO RETURN fact(5); END`)
	if src.Functions[0].Function == nil {
		t.Fatalf("missing function handle")
	}
}

func TestScopeRestored(t *testing.T) {
	good := New(nil)
	before := good.Scope()
	if err := good.Analyze(mustParse(t, "FUN main(): Integer DO RETURN 0; END")); err != nil {
		t.Fatalf("analysis error: %v", err)
	}
	if good.Scope() != before {
		t.Fatalf("scope not restored after success")
	}

	bad := New(nil)
	before = bad.Scope()
	// Fails deep inside a nested scope.
	src := mustParse(t, "FUN main(): Integer DO IF TRUE DO WHILE TRUE DO RETURN 1.5; END END RETURN 0; END")
	if err := bad.Analyze(src); err == nil {
		t.Fatalf("expected analysis to fail")
	}
	if bad.Scope() != before {
		t.Fatalf("scope not restored after failure")
	}
}

func TestDeterministic(t *testing.T) {
	source := "VAL answer: Integer = 42;\nFUN main(): Integer DO RETURN answer; END"
	first := mustAnalyze(t, source)
	second := mustAnalyze(t, source)
	a := first.Functions[0].Statements[0].(*ast.Return)
	b := second.Functions[0].Statements[0].(*ast.Return)
	if ast.TypeOf(a.Value) != ast.TypeOf(b.Value) {
		t.Fatalf("types differ between runs")
	}
	if first.Globals[0].Variable.Type != second.Globals[0].Variable.Type {
		t.Fatalf("handles differ between runs")
	}
}
