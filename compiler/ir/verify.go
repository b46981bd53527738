package ir

import "github.com/slowlang/cfgopt/compiler/set"

// Verify checks the structural invariants of the control-flow graph:
// the handler has blocks and a live entry, every block ends in exactly one terminator,
// back-references are consistent and no block operand dangles.
func Verify(h *Handler) error {
	if len(h.order) == 0 {
		return newInvariantError(h, Nil, nil, "handler has no blocks")
	}

	live := set.MakeBitmap[BlockID](len(h.blocks))

	for _, id := range h.order {
		b := h.blocks[id]
		if b == nil || b.ID != id {
			return newInvariantError(h, id, nil, "block order refers to a released slot")
		}

		if live.TestAndSet(id) {
			return newInvariantError(h, id, nil, "block listed twice")
		}
	}

	if !live.IsSet(h.entry) {
		return newInvariantError(h, h.entry, nil, "entry is not a live block")
	}

	for _, id := range h.order {
		b := h.blocks[id]

		if b.h != h {
			return newInvariantError(h, id, nil, "block owner back-reference mismatch")
		}

		if err := b.Check(); err != nil {
			return err
		}

		for _, in := range b.Code {
			if in.Block != id {
				return newInvariantError(h, id, in, "instruction back-reference points to block #%d", in.Block)
			}

			if err := checkOperands(h, b, in); err != nil {
				return err
			}

			for _, t := range in.Targets() {
				if !live.IsSet(t) {
					return newInvariantError(h, id, in, "dangling edge to block #%d", t)
				}
			}
		}
	}

	return nil
}

// Check reports a malformed block: no instructions, a missing terminator
// or a terminator in the middle of the block.
func (b *Block) Check() error {
	if len(b.Code) == 0 {
		return newInvariantError(b.h, b.ID, nil, "block has no instructions")
	}

	last := len(b.Code) - 1

	for j, in := range b.Code {
		if j != last && in.IsTerminator() {
			return newInvariantError(b.h, b.ID, in, "terminator is not the last instruction")
		}
	}

	if in := b.Code[last]; !in.IsTerminator() {
		return newInvariantError(b.h, b.ID, in, "block does not end with a terminator")
	}

	return nil
}

func checkOperands(h *Handler, b *Block, in *Instr) error {
	if in.Op == OpInvalid || int(in.Op) >= len(opNames) {
		return newInvariantError(h, b.ID, in, "unknown operation")
	}

	vals, blocks := 0, 0

	for _, a := range in.Args {
		switch a.Kind {
		case ValueOperand:
			vals++
		case BlockOperand:
			blocks++
		default:
			return newInvariantError(h, b.ID, in, "unknown operand kind %d", a.Kind)
		}
	}

	bad := false

	switch in.Op.Term() {
	case TermBr:
		bad = vals != 0 || blocks != 1
	case TermBrIf:
		bad = len(in.Args) != 3 || in.Args[0].Kind != ValueOperand || blocks != 2
	case TermRet:
		bad = vals > 1 || blocks != 0
	case TermNone:
		bad = blocks != 0
	}

	if bad {
		return newInvariantError(h, b.ID, in, "malformed operands: %d values, %d blocks", vals, blocks)
	}

	return nil
}
