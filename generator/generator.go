package generator

import (
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/plclang/plcgo/ast"
)

// Generator emits an analyzed tree as Java source: one class with the
// globals as fields, a static main that exits with the instance main()'s
// result, and one method per function. Statements map 1:1; the whitespace
// convention is four spaces per level with newlines at statement and
// construct boundaries.
type Generator struct {
	writer io.Writer
	class  string
	indent int
	err    error
}

func New(w io.Writer, className string) *Generator {
	if className == "" {
		className = "Main"
	}
	return &Generator{writer: w, class: className}
}

func (g *Generator) Generate(src *ast.Source) error {
	g.visitSource(src)
	return g.err
}

func (g *Generator) write(s string) {
	if g.err == nil {
		_, g.err = io.WriteString(g.writer, s)
	}
}

// print writes each argument, recursing into nested statements and
// expressions.
func (g *Generator) print(args ...interface{}) {
	for _, arg := range args {
		switch v := arg.(type) {
		case ast.Expression:
			g.visitExpression(v)
		case ast.Statement:
			g.visitStatement(v)
		case string:
			g.write(v)
		default:
			g.write(fmt.Sprint(v))
		}
	}
}

func (g *Generator) newline(indent int) {
	g.write("\n")
	g.write(strings.Repeat("    ", indent))
}

func (g *Generator) visitSource(src *ast.Source) {
	g.print("public class ", g.class, " {")
	g.newline(0)
	g.indent++

	if len(src.Globals) > 0 {
		for _, global := range src.Globals {
			g.newline(g.indent)
			g.visitGlobal(global)
		}
		g.newline(0)
	}

	g.newline(g.indent)
	g.print("public static void main(String[] args) {")
	g.indent++
	g.newline(g.indent)
	g.print("System.exit(new ", g.class, "().main());")
	g.indent--
	g.newline(g.indent)
	g.print("}")
	g.newline(0)

	for _, function := range src.Functions {
		g.newline(g.indent)
		g.visitFunction(function)
		g.newline(0)
	}

	g.indent--
	g.newline(g.indent)
	g.print("}")
}

func (g *Generator) visitGlobal(global *ast.Global) {
	if !global.Mutable {
		g.print("final ")
	}
	g.print(global.Variable.Type.JvmName)
	if _, ok := global.Value.(*ast.List); ok {
		g.print("[]")
	}
	g.print(" ", global.Variable.JvmName)
	if global.Value != nil {
		g.print(" = ", global.Value)
	}
	g.print(";")
}

func (g *Generator) visitFunction(function *ast.Function) {
	g.print(function.Function.ReturnType.JvmName, " ", function.Function.JvmName, "(")
	for i, parameterType := range function.Function.ParameterTypes {
		g.print(parameterType.JvmName, " ", function.Parameters[i])
		if i != len(function.Function.ParameterTypes)-1 {
			g.print(", ")
		}
	}
	g.print(") {")
	if len(function.Statements) > 0 {
		g.indent++
		for _, stmt := range function.Statements {
			g.newline(g.indent)
			g.visitStatement(stmt)
		}
		g.indent--
		g.newline(g.indent)
	}
	g.print("}")
}

func (g *Generator) visitStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		g.print(s.Expression, ";")
	case *ast.Declaration:
		g.print(s.Variable.Type.JvmName, " ", s.Variable.JvmName)
		if s.Value != nil {
			g.print(" = ", s.Value)
		}
		g.print(";")
	case *ast.Assignment:
		g.print(s.Receiver, " = ", s.Value, ";")
	case *ast.If:
		g.print("if (", s.Condition, ") {")
		g.indent++
		for _, inner := range s.Then {
			g.newline(g.indent)
			g.visitStatement(inner)
		}
		g.indent--
		g.newline(g.indent)
		g.print("}")
		if len(s.Else) > 0 {
			g.print(" else {")
			g.indent++
			for _, inner := range s.Else {
				g.newline(g.indent)
				g.visitStatement(inner)
			}
			g.indent--
			g.newline(g.indent)
			g.print("}")
		}
	case *ast.Switch:
		g.print("switch (", s.Condition, ") {")
		g.indent++
		for _, c := range s.Cases {
			g.newline(g.indent)
			g.visitCase(c)
		}
		g.indent--
		g.newline(g.indent)
		g.print("}")
	case *ast.Case:
		g.visitCase(s)
	case *ast.While:
		g.print("while (", s.Condition, ") {")
		if len(s.Statements) > 0 {
			g.indent++
			for _, inner := range s.Statements {
				g.newline(g.indent)
				g.visitStatement(inner)
			}
			g.indent--
			g.newline(g.indent)
		}
		g.print("}")
	case *ast.Return:
		g.print("return ", s.Value, ";")
	}
}

// Non-default cases break out of the switch after their body; the default,
// being last, falls off the end.
func (g *Generator) visitCase(c *ast.Case) {
	if c.Value != nil {
		g.print("case ", c.Value, ":")
	} else {
		g.print("default:")
	}
	g.indent++
	for _, stmt := range c.Statements {
		g.newline(g.indent)
		g.visitStatement(stmt)
	}
	if c.Value != nil {
		g.newline(g.indent)
		g.print("break;")
	}
	g.indent--
}

func (g *Generator) visitExpression(expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.Literal:
		g.visitLiteral(e)
	case *ast.Group:
		g.print("(", e.Expression, ")")
	case *ast.Binary:
		if e.Operator == "^" {
			g.print("Math.pow(", e.Left, ", ", e.Right, ")")
		} else {
			g.print(e.Left, " ", e.Operator, " ", e.Right)
		}
	case *ast.Access:
		g.print(e.Variable.JvmName)
		if e.Offset != nil {
			g.print("[", e.Offset, "]")
		}
	case *ast.Call:
		g.print(e.Function.JvmName, "(")
		for i, argument := range e.Arguments {
			g.print(argument)
			if i != len(e.Arguments)-1 {
				g.print(", ")
			}
		}
		g.print(")")
	case *ast.List:
		g.print("{")
		for i, value := range e.Values {
			g.print(value)
			if i != len(e.Values)-1 {
				g.print(", ")
			}
		}
		g.print("}")
	}
}

// Character and string contents are re-emitted verbatim between quotes; the
// escapes expanded at parse time are not re-encoded.
func (g *Generator) visitLiteral(literal *ast.Literal) {
	switch v := literal.Value.(type) {
	case nil:
		g.print("null")
	case bool:
		if v {
			g.print("true")
		} else {
			g.print("false")
		}
	case rune:
		g.print("'", string(v), "'")
	case string:
		g.print("\"", v, "\"")
	case *big.Int:
		g.print(v.String())
	case *apd.Decimal:
		g.print(v.String())
	}
}
