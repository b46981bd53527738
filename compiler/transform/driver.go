package transform

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/cfgopt/compiler/ir"
)

type (
	// Policy decides what happens to a handler when the driver runs out of rounds.
	Policy string

	// Driver applies passes round after round until a round changes nothing.
	Driver struct {
		Passes []Pass

		MaxRounds int
		OnLimit   Policy

		// Verify checks the graph before the first pass and after each pass call.
		Verify bool
	}
)

const (
	Reject Policy = "reject"
	Emit   Policy = "emit"
)

const DefaultMaxRounds = 64

var ErrNoFixpoint = errors.New("optimizer did not converge")

func New(passes ...Pass) *Driver {
	return &Driver{
		Passes:    passes,
		MaxRounds: DefaultMaxRounds,
		OnLimit:   Reject,
		Verify:    true,
	}
}

func (p Policy) Valid() bool {
	return p == Reject || p == Emit
}

// Run optimizes h to fixpoint. changed reports whether any pass changed the graph.
func (d *Driver) Run(ctx context.Context, h *ir.Handler) (changed bool, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "optimize handler", "name", h.Name, "blocks", h.Len())
	defer tr.Finish("err", &err)

	if d.Verify {
		err = ir.Verify(h)
		if err != nil {
			return false, errors.Wrap(err, "verify input")
		}
	}

	rounds := d.MaxRounds
	if rounds <= 0 {
		rounds = DefaultMaxRounds
	}

	for round := 0; round < rounds; round++ {
		progress := false

		for _, p := range d.Passes {
			c, err := p.Run(ctx, h)
			if err != nil {
				return changed, errors.Wrap(err, "round %d: pass %v", round, p.Name)
			}

			if d.Verify {
				err = ir.Verify(h)
				if err != nil {
					return changed, errors.Wrap(err, "round %d: verify after %v", round, p.Name)
				}
			}

			tr.V("driver").Printw("pass applied", "round", round, "pass", p.Name, "changed", c, "blocks", h.Len())

			if c && tr.If("dump_cfg") {
				tr.Printw("cfg", "pass", p.Name, "entry", h.Entry(), "order", h.Order())
			}

			progress = progress || c
		}

		if !progress {
			tr.V("driver").Printw("fixpoint", "rounds", round+1, "blocks", h.Len())

			return changed, nil
		}

		changed = true
	}

	if d.OnLimit == Emit {
		tr.Printw("optimizer did not converge, emitting last state", "handler", h.Name, "rounds", rounds)

		return changed, nil
	}

	return changed, errors.Wrap(ErrNoFixpoint, "handler %v: %d rounds", h.Name, rounds)
}

// RunUnit runs the driver over every handler of the unit in order.
// Handlers share nothing, the first failure stops the unit.
func (d *Driver) RunUnit(ctx context.Context, u *ir.Unit) (changed bool, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "optimize unit", "path", u.Path, "funcs", len(u.Funcs))
	defer tr.Finish("err", &err)

	for _, h := range u.Funcs {
		c, err := d.Run(ctx, h)
		if err != nil {
			return changed, errors.Wrap(err, "func %v", h.Name)
		}

		changed = changed || c
	}

	return changed, nil
}
