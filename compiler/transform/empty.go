package transform

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/cfgopt/compiler/ir"
)

// EmptyBlockElimination removes pass-through blocks, those holding a single
// unconditional branch, by pointing their predecessors straight at the branch target.
//
// Candidates are taken from the block order at the start of the call and
// blocks are only deleted after the scan. A self-loop is never eliminated.
// An entry candidate moves the entry to its target and ends the scan,
// remaining candidates wait for the next call.
func EmptyBlockElimination(ctx context.Context, h *ir.Handler) (changed bool, err error) {
	tr := tlog.SpanFromContext(ctx)

	blocks := h.Blocks()

	for _, b := range blocks {
		if err = b.Check(); err != nil {
			return false, err
		}
	}

	var eliminated []ir.BlockID

scan:
	for _, b := range blocks {
		if b.Len() != 1 {
			continue
		}

		br := b.Code[0]

		switch br.Op.Term() {
		case ir.TermBr:
		case ir.TermBrIf, ir.TermRet, ir.TermNone:
			continue
		}

		targets := br.Targets()
		if len(targets) != 1 {
			return false, ir.NewInvariantError(h, b.ID, br, "branch has %d targets", len(targets))
		}

		target := targets[0]

		if target == b.ID {
			tr.V("empty_block").Printw("skip self loop", "handler", h.Name, "block", b.ID, "name", b.Name)
			continue
		}

		preds := h.Predecessors(b.ID)

		for _, p := range preds {
			h.Block(p).Terminator().ReplaceBlockOperand(b.ID, target)
		}

		eliminated = append(eliminated, b.ID)

		tr.V("empty_block").Printw("short-circuit block", "handler", h.Name, "block", b.ID, "name", b.Name, "target", target, "preds", preds)

		if b.ID == h.Entry() {
			if err = h.SetEntry(target); err != nil {
				return false, errors.Wrap(err, "move entry")
			}

			tr.V("empty_block").Printw("entry moved", "handler", h.Name, "from", b.ID, "to", target)

			break scan
		}
	}

	for _, id := range eliminated {
		err = h.RemoveBlock(id)
		if err != nil {
			return false, errors.Wrap(err, "eliminate block")
		}
	}

	return len(eliminated) != 0, nil
}
