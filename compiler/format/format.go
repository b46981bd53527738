package format

import (
	"context"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/slowlang/cfgopt/compiler/ir"
)

// Format prints the unit in the syntax front.Parser reads.
func Format(ctx context.Context, b []byte, u *ir.Unit) (_ []byte, err error) {
	for i, h := range u.Funcs {
		if i != 0 {
			b = append(b, '\n')
		}

		b, err = FormatHandler(ctx, b, h)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", h.Name)
		}
	}

	return b, nil
}

func FormatHandler(ctx context.Context, b []byte, h *ir.Handler) (_ []byte, err error) {
	blocks := h.Blocks()

	b = app(b, 0, "func %v", h.Name)

	if e := h.EntryBlock(); e != nil && len(blocks) != 0 && blocks[0] != e {
		b = app(b, 0, " entry %v", e.Name)
	}

	b = append(b, " {\n"...)

	for _, blk := range blocks {
		b = app(b, 0, "%v:\n", blk.Name)

		for _, in := range blk.Code {
			b, err = formatInstr(ctx, b, h, in, 1)
			if err != nil {
				return nil, errors.Wrap(err, "block %v", blk.Name)
			}
		}
	}

	b = append(b, "}\n"...)

	return b, nil
}

func formatInstr(ctx context.Context, b []byte, h *ir.Handler, in *ir.Instr, d int) (_ []byte, err error) {
	if in.Op.Defines() {
		b = app(b, d, "v%d = %v", in.ID, in.Op)
	} else {
		b = app(b, d, "%v", in.Op)
	}

	switch in.Op {
	case ir.OpConst, ir.OpArg:
		b = app(b, 0, " %d", in.Imm)
	case ir.OpCmp:
		b = app(b, 0, " %v", in.Cond)
	case ir.OpCall:
		b = app(b, 0, " %v", in.Sym)
	case ir.OpInvalid:
		return nil, errors.New("invalid instruction v%d", in.ID)
	}

	for _, a := range in.Args {
		switch a.Kind {
		case ir.ValueOperand:
			b = app(b, 0, " v%d", a.Value)
		case ir.BlockOperand:
			blk := h.Block(a.Block)
			if blk == nil {
				return nil, errors.New("v%d: dangling block operand #%d", in.ID, a.Block)
			}

			b = app(b, 0, " %v", blk.Name)
		default:
			return nil, errors.New("v%d: unsupported operand kind %d", in.ID, a.Kind)
		}
	}

	b = append(b, '\n')

	return b, nil
}

func app(b []byte, d int, f string, args ...any) []byte {
	const tabs = "\t\t\t\t\t\t\t\t"
	b = append(b, tabs[:d]...)
	b = hfmt.Appendf(b, f, args...)
	return b
}
