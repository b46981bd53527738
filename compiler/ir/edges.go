package ir

import (
	"tlog.app/go/loc"
	"tlog.app/go/tlog"
)

// Successors returns the block operands of the block terminator in operand order.
// Duplicates are kept. A missing block or terminator yields nil.
func (h *Handler) Successors(id BlockID) []BlockID {
	b := h.Block(id)
	if b == nil {
		return nil
	}

	t := b.Terminator()
	if t == nil {
		return nil
	}

	return t.Targets()
}

// Predecessors scans the handler for blocks branching to id.
// Each predecessor is listed once, in handler order.
// The relation is derived on every call and is never stale.
func (h *Handler) Predecessors(id BlockID) (r []BlockID) {
	for _, pid := range h.order {
		for _, s := range h.Successors(pid) {
			if s == id {
				r = append(r, pid)
				break
			}
		}
	}

	return r
}

// ReplaceBlockOperand rewrites every block operand equal to old into new.
// Operand order and count are preserved. It returns the number of operands rewritten.
func (i *Instr) ReplaceBlockOperand(old, new BlockID) (n int) {
	for j, a := range i.Args {
		if a.Kind != BlockOperand || a.Block != old {
			continue
		}

		i.Args[j].Block = new
		n++
	}

	return n
}

// ReferencedBy returns the first instruction having id as a block operand.
func (h *Handler) ReferencedBy(id BlockID) *Instr {
	for _, pid := range h.order {
		for _, in := range h.blocks[pid].Code {
			for _, a := range in.Args {
				if a.Kind == BlockOperand && a.Block == id {
					return in
				}
			}
		}
	}

	return nil
}

// RemoveBlock drops the block from the handler.
// The block must be unreferenced, must not be the entry and must not be the last block left.
// On error the handler is left unchanged.
func (h *Handler) RemoveBlock(id BlockID) error {
	b := h.Block(id)
	if b == nil {
		return newInvariantError(h, id, nil, "remove: not a live block")
	}

	if id == h.entry {
		return newInvariantError(h, id, nil, "remove: entry block")
	}

	if len(h.order) == 1 {
		return newInvariantError(h, id, nil, "remove: last block of handler")
	}

	if in := h.ReferencedBy(id); in != nil {
		return newInvariantError(h, id, in, "remove: block is still referenced from block #%d", in.Block)
	}

	for j, x := range h.order {
		if x == id {
			h.order = append(h.order[:j], h.order[j+1:]...)
			break
		}
	}

	h.blocks[id] = nil
	b.h = nil

	tlog.V("remove_block").Printw("block removed", "handler", h.Name, "block", id, "name", b.Name, "from", loc.Caller(1))

	return nil
}
