package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/repr"
	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"
	"github.com/ztrue/tracerr"
	"gopkg.in/yaml.v2"

	"github.com/plclang/plcgo/analyzer"
	"github.com/plclang/plcgo/ast"
	"github.com/plclang/plcgo/generator"
	"github.com/plclang/plcgo/interp"
	"github.com/plclang/plcgo/lexer"
	"github.com/plclang/plcgo/parser"
)

const historyFile = ".plcgo_history"

// plcModule is the optional module-information file (plc.yaml) the build
// command reads for the emitted class name and output path.
type plcModule struct {
	Class  string `yaml:"Class"`
	Output string `yaml:"Output"`
}

func fatal(err error) {
	tracerr.PrintSourceColor(err)
	os.Exit(1)
}

func parseFile(path string) *ast.Source {
	data, err := os.ReadFile(path)
	if err != nil {
		fatal(err)
	}
	return parseSource(string(data))
}

func parseSource(source string) *ast.Source {
	tokens, err := lexer.New(source).Lex()
	if err != nil {
		fatal(err)
	}
	src, err := parser.New(tokens).ParseSource()
	if err != nil {
		fatal(err)
	}
	return src
}

func analyze(src *ast.Source) {
	if err := analyzer.New(nil).Analyze(src); err != nil {
		fatal(err)
	}
}

func main() {
	app := &cli.App{
		Name:  "plcgo",
		Usage: "PLC compiler and interpreter",
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "parse and analyze a file",
				Action: func(c *cli.Context) error {
					src := parseFile(c.Args().First())
					analyze(src)
					fmt.Println("ok")
					return nil
				},
			},
			{
				Name:  "run",
				Usage: "interpret a file and print what main returns",
				Action: func(c *cli.Context) error {
					src := parseFile(c.Args().First())
					analyze(src)
					result, err := interp.New(nil).Interpret(src)
					if err != nil {
						fatal(err)
					}
					fmt.Println(result.String())
					return nil
				},
			},
			{
				Name:  "build",
				Usage: "generate Java from a file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name: "output",
					},
					&cli.BoolFlag{
						Name:  "dump",
						Value: false,
					},
				},
				Action: func(c *cli.Context) error {
					module := plcModule{Class: "Main"}
					if data, err := os.ReadFile("plc.yaml"); err == nil {
						if err := yaml.Unmarshal(data, &module); err != nil {
							fmt.Printf("error reading plc.yaml: %s\n", err)
							os.Exit(1)
						}
						if module.Class == "" {
							module.Class = "Main"
						}
					}

					src := parseFile(c.Args().First())
					analyze(src)

					var out strings.Builder
					if err := generator.New(&out, module.Class).Generate(src); err != nil {
						fatal(err)
					}
					if c.Bool("dump") {
						fmt.Print(out.String())
						return nil
					}
					output := c.String("output")
					if output == "" {
						output = module.Output
					}
					if output == "" {
						output = module.Class + ".java"
					}
					return os.WriteFile(output, []byte(out.String()), 0o644)
				},
			},
			{
				Name:  "ast",
				Usage: "dump the syntax tree of a file",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "analyzed",
						Value: false,
					},
				},
				Action: func(c *cli.Context) error {
					src := parseFile(c.Args().First())
					if c.Bool("analyzed") {
						analyze(src)
					}
					repr.Println(src)
					return nil
				},
			},
			{
				Name:   "repl",
				Usage:  "interactively build and run programs",
				Action: replAction,
			},
		},
	}
	app.Run(os.Args)
}

func replAction(c *cli.Context) error {
	fmt.Println("PLC repl. Enter a program line by line; a blank line runs it.")
	fmt.Println(":reset drops the buffer, :quit exits.")

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	var buffer []string
	for {
		prompt := "==> "
		if len(buffer) > 0 {
			prompt = "... "
		}
		line, err := ln.Prompt(prompt)
		if err == liner.ErrPromptAborted {
			buffer = nil
			fmt.Println("(cancelled)")
			continue
		} else if err != nil {
			fmt.Println()
			return nil
		}

		switch strings.TrimSpace(line) {
		case ":quit":
			return nil
		case ":reset":
			buffer = nil
			continue
		case "":
			if len(buffer) == 0 {
				continue
			}
			source := strings.Join(buffer, "\n")
			buffer = nil
			runSource(source)
			continue
		}
		buffer = append(buffer, line)
		ln.AppendHistory(line)
	}
}

// runSource runs one accumulated repl program; failures are printed, not
// fatal.
func runSource(source string) {
	tokens, err := lexer.New(source).Lex()
	if err != nil {
		tracerr.PrintSourceColor(err)
		return
	}
	src, err := parser.New(tokens).ParseSource()
	if err != nil {
		tracerr.PrintSourceColor(err)
		return
	}
	if err := analyzer.New(nil).Analyze(src); err != nil {
		tracerr.PrintSourceColor(err)
		return
	}
	result, err := interp.New(nil).Interpret(src)
	if err != nil {
		tracerr.PrintSourceColor(err)
		return
	}
	fmt.Println(result.String())
}
