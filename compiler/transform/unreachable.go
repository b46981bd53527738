package transform

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/cfgopt/compiler/ir"
	"github.com/slowlang/cfgopt/compiler/set"
)

// UnreachableBlockElimination removes blocks which can't be reached from the entry.
func UnreachableBlockElimination(ctx context.Context, h *ir.Handler) (changed bool, err error) {
	for _, b := range h.Blocks() {
		if err = b.Check(); err != nil {
			return false, err
		}
	}

	reach := Reachable(h)

	if reach.Size() == h.Len() {
		return false, nil
	}

	dead := set.MakeBitmap[ir.BlockID](h.Cap())

	for _, b := range h.Blocks() {
		if !reach.IsSet(b.ID) {
			dead.Set(b.ID)
		}
	}

	tlog.SpanFromContext(ctx).V("unreachable").Printw("unreachable blocks", "handler", h.Name, "reachable", reach, "dead", dead)

	ids := dead.Keys()

	// dead blocks may branch to each other, drop their code so none of them is referenced
	for _, id := range ids {
		h.Block(id).Code = nil
	}

	for _, id := range ids {
		err = h.RemoveBlock(id)
		if err != nil {
			return false, errors.Wrap(err, "remove unreachable")
		}
	}

	return true, nil
}

// Reachable returns the set of blocks reachable from the entry.
func Reachable(h *ir.Handler) set.Bitmap[ir.BlockID] {
	reach := set.MakeBitmap[ir.BlockID](h.Cap())

	entry := h.Entry()
	if !h.Has(entry) {
		return reach
	}

	reach.Set(entry)
	work := []ir.BlockID{entry}

	for len(work) != 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]

		for _, s := range h.Successors(id) {
			if !reach.TestAndSet(s) {
				work = append(work, s)
			}
		}
	}

	return reach
}
