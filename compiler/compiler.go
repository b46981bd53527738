package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/cfgopt/compiler/back"
	"github.com/slowlang/cfgopt/compiler/front"
	"github.com/slowlang/cfgopt/compiler/ir"
	"github.com/slowlang/cfgopt/compiler/run"
	"github.com/slowlang/cfgopt/compiler/transform"
)

func OptimizeFile(ctx context.Context, name string, cfg transform.Config) (*ir.Unit, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Optimize(ctx, name, text, cfg)
}

// Optimize reads textual IR and runs the configured passes over every function to fixpoint.
func Optimize(ctx context.Context, name string, text []byte, cfg transform.Config) (u *ir.Unit, err error) {
	d, err := cfg.Driver()
	if err != nil {
		return nil, errors.Wrap(err, "pipeline")
	}

	var p front.Parser

	u, err = p.ParseFileData(ctx, name, text)
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}

	_, err = d.RunUnit(ctx, u)
	if err != nil {
		return nil, errors.Wrap(err, "optimize")
	}

	return u, nil
}

func CompileFile(ctx context.Context, name string, cfg transform.Config) (obj []byte, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	return Compile(ctx, name, text, cfg)
}

// Compile optimizes textual IR and returns the LLVM IR text of the unit.
func Compile(ctx context.Context, name string, text []byte, cfg transform.Config) (obj []byte, err error) {
	u, err := Optimize(ctx, name, text, cfg)
	if err != nil {
		return nil, err
	}

	m, err := back.New().CompileUnit(ctx, u)
	if err != nil {
		return nil, errors.Wrap(err, "compile")
	}

	return []byte(m.String()), nil
}

// Exec runs "prog args" with run.Run. Nil streams stand for the current process streams.
// The surrogate unit from back.Shim is only built for the dump_shim topic,
// there is no runtime linking the execute hook.
func Exec(ctx context.Context, input string, stdin, stdout *os.File) (st run.Status, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "exec", "input", input)
	defer tr.Finish("err", &err)

	prog, args := run.SplitCommand(input)

	if tr.If("dump_shim") {
		m := back.Shim(prog, args, fd(stdin, 0), fd(stdout, 1))

		tr.Printw("shim", "text", m.String())
	}

	return run.Run(ctx, prog, args, stdin, stdout)
}

func fd(f *os.File, def int) int {
	if f == nil {
		return def
	}

	return int(f.Fd())
}
