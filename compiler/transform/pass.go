package transform

import (
	"context"
	"sort"

	"tlog.app/go/errors"

	"github.com/slowlang/cfgopt/compiler/ir"
)

type (
	// Func rewrites h in place and reports whether anything changed.
	// An error means the graph is malformed, it is never a normal pass outcome.
	Func func(ctx context.Context, h *ir.Handler) (changed bool, err error)

	Pass struct {
		Name string
		Run  Func
	}
)

const (
	EmptyBlockEliminationName       = "empty-block-elimination"
	UnreachableBlockEliminationName = "unreachable-block-elimination"
)

var registry = map[string]Func{
	EmptyBlockEliminationName:       EmptyBlockElimination,
	UnreachableBlockEliminationName: UnreachableBlockElimination,
}

var ErrUnknownPass = errors.New("unknown pass")

func Lookup(name string) (Pass, error) {
	f, ok := registry[name]
	if !ok {
		return Pass{}, errors.Wrap(ErrUnknownPass, "%q", name)
	}

	return Pass{Name: name, Run: f}, nil
}

func Names() []string {
	r := make([]string, 0, len(registry))

	for name := range registry {
		r = append(r, name)
	}

	sort.Strings(r)

	return r
}
