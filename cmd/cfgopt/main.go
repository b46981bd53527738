package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/cfgopt/compiler"
	"github.com/slowlang/cfgopt/compiler/format"
	"github.com/slowlang/cfgopt/compiler/transform"
)

func main() {
	optCmd := &cli.Command{
		Name:        "opt",
		Description: "optimize textual IR and print the result",
		Action:      optAct,
		Args:        cli.Args{},
	}

	llvmCmd := &cli.Command{
		Name:        "llvm",
		Description: "optimize textual IR and print LLVM IR",
		Action:      llvmAct,
		Args:        cli.Args{},
	}

	execCmd := &cli.Command{
		Name:        "exec",
		Description: "run \"prog args\" through the execution shim",
		Action:      execAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("dump", false, "print the shim module"),
		},
	}

	app := &cli.Command{
		Name:        "cfgopt",
		Description: "cfgopt simplifies control-flow graphs",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("config", "", "pipeline config file (yaml)"),
			cli.NewFlag("max-rounds", 0, "override max_rounds"),
			cli.NewFlag("on-limit", "", "override on_limit: reject or emit"),
			cli.NewFlag("verbosity,v", "", "tlog verbosity topics"),
		},
		Commands: []*cli.Command{
			optCmd,
			llvmCmd,
			execCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) error {
	tlog.SetVerbosity(c.String("verbosity"))

	return nil
}

// addTopics extends a comma separated verbosity filter.
func addTopics(v string, topics ...string) string {
	if v != "" {
		topics = append([]string{v}, topics...)
	}

	return strings.Join(topics, ",")
}

func config(c *cli.Command) (cfg transform.Config, err error) {
	cfg = transform.DefaultConfig()

	if name := c.String("config"); name != "" {
		cfg, err = transform.LoadConfig(name)
		if err != nil {
			return cfg, err
		}
	}

	if n := c.Int("max-rounds"); n != 0 {
		cfg.MaxRounds = n
	}

	if p := c.String("on-limit"); p != "" {
		cfg.OnLimit = transform.Policy(p)
	}

	return cfg, cfg.Validate()
}

func optAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	cfg, err := config(c)
	if err != nil {
		return errors.Wrap(err, "config")
	}

	for _, a := range c.Args {
		u, err := compiler.OptimizeFile(ctx, a, cfg)
		if err != nil {
			return errors.Wrap(err, "optimize %v", a)
		}

		text, err := format.Format(ctx, nil, u)
		if err != nil {
			return errors.Wrap(err, "format %v", a)
		}

		fmt.Printf("%s", text)
	}

	return nil
}

func llvmAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	cfg, err := config(c)
	if err != nil {
		return errors.Wrap(err, "config")
	}

	for _, a := range c.Args {
		obj, err := compiler.CompileFile(ctx, a, cfg)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		fmt.Printf("%s", obj)
	}

	return nil
}

func execAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	if len(c.Args) != 1 {
		return errors.New("one argument expected: \"prog args\"")
	}

	if c.Bool("dump") {
		tlog.SetVerbosity(addTopics(c.String("verbosity"), "dump_shim"))
	}

	st, err := compiler.Exec(ctx, c.Args[0], nil, nil)
	if err != nil {
		return errors.Wrap(err, "exec")
	}

	fmt.Println(st)

	return nil
}
