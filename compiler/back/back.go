package back

import (
	"context"

	ll "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/cfgopt/compiler/ir"
	"github.com/slowlang/cfgopt/compiler/set"
)

type (
	Compiler struct{}

	unitContext struct {
		*ir.Unit

		m *ll.Module

		funcs  map[string]*ll.Func
		extern map[string]*ll.Func
	}

	funContext struct {
		*ir.Handler

		f *ll.Func

		blocks map[ir.BlockID]*ll.Block
		values map[ir.Value]value.Value
	}
)

// PrologueBlock is inserted in front of an entry block which is a branch target.
// The textual IR reader can't produce a label starting with a dot.
const PrologueBlock = ".entry"

var conds = map[ir.Cond]enum.IPred{
	ir.CondEQ: enum.IPredEQ,
	ir.CondNE: enum.IPredNE,
	ir.CondLT: enum.IPredSLT,
	ir.CondLE: enum.IPredSLE,
	ir.CondGT: enum.IPredSGT,
	ir.CondGE: enum.IPredSGE,
}

func New() *Compiler {
	return &Compiler{}
}

// CompileUnit translates every handler into an LLVM function returning i64.
// Calls to symbols not defined in the unit become external declarations.
func (c *Compiler) CompileUnit(ctx context.Context, u *ir.Unit) (_ *ll.Module, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: compile unit", "path", u.Path)
	defer tr.Finish("err", &err)

	p := &unitContext{
		Unit:   u,
		m:      ll.NewModule(),
		funcs:  map[string]*ll.Func{},
		extern: map[string]*ll.Func{},
	}

	p.m.SourceFilename = u.Path

	for _, h := range u.Funcs {
		params := make([]*ll.Param, arity(h))

		for i := range params {
			params[i] = ll.NewParam("", types.I64)
		}

		p.funcs[h.Name] = p.m.NewFunc(h.Name, types.I64, params...)
	}

	for _, h := range u.Funcs {
		err = c.compileFunc(ctx, p, h)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", h.Name)
		}
	}

	if tr.If("dump_llvm") {
		tr.Printw("llvm module", "text", p.m.String())
	}

	return p.m, nil
}

func (c *Compiler) compileFunc(ctx context.Context, p *unitContext, h *ir.Handler) (err error) {
	f := &funContext{
		Handler: h,
		f:       p.funcs[h.Name],
		blocks:  map[ir.BlockID]*ll.Block{},
		values:  map[ir.Value]value.Value{},
	}

	entry := h.EntryBlock()
	if entry == nil {
		return ir.NewInvariantError(h, h.Entry(), nil, "no entry block")
	}

	// llvm entry block can't have predecessors
	var prologue *ll.Block
	if len(h.Predecessors(entry.ID)) != 0 {
		prologue = f.f.NewBlock(PrologueBlock)
	}

	f.blocks[entry.ID] = f.f.NewBlock(entry.Name)

	for _, b := range h.Blocks() {
		if b.ID != entry.ID {
			f.blocks[b.ID] = f.f.NewBlock(b.Name)
		}
	}

	if prologue != nil {
		prologue.NewBr(f.blocks[entry.ID])
	}

	for _, b := range lowerOrder(h) {
		for _, in := range b.Code {
			err = c.compileInstr(ctx, p, f, f.blocks[b.ID], in)
			if err != nil {
				return errors.Wrap(err, "block %v: v%d (%v)", b.Name, in.ID, in.Op)
			}
		}
	}

	return nil
}

func (c *Compiler) compileInstr(ctx context.Context, p *unitContext, f *funContext, blk *ll.Block, in *ir.Instr) (err error) {
	args := make([]value.Value, 0, len(in.Args))

	for _, v := range in.Values() {
		x, ok := f.values[v]
		if !ok {
			return errors.New("value v%d used before definition", v)
		}

		args = append(args, x)
	}

	var res value.Value

	switch in.Op {
	case ir.OpConst:
		res = constant.NewInt(types.I64, in.Imm)
	case ir.OpArg:
		if in.Imm < 0 || int(in.Imm) >= len(f.f.Params) {
			return errors.New("argument %d out of range", in.Imm)
		}

		res = f.f.Params[in.Imm]
	case ir.OpAdd:
		res = blk.NewAdd(i64(blk, args[0]), i64(blk, args[1]))
	case ir.OpSub:
		res = blk.NewSub(i64(blk, args[0]), i64(blk, args[1]))
	case ir.OpMul:
		res = blk.NewMul(i64(blk, args[0]), i64(blk, args[1]))
	case ir.OpCmp:
		pred, ok := conds[in.Cond]
		if !ok {
			return errors.New("unsupported condition %q", in.Cond)
		}

		res = blk.NewICmp(pred, i64(blk, args[0]), i64(blk, args[1]))
	case ir.OpCall:
		callee, err := p.callee(in.Sym, len(args))
		if err != nil {
			return err
		}

		for i, a := range args {
			args[i] = i64(blk, a)
		}

		res = blk.NewCall(callee, args...)
	case ir.OpBr:
		blk.NewBr(f.blocks[in.Args[0].Block])
	case ir.OpBrIf:
		cond := args[0]

		if !cond.Type().Equal(types.I1) {
			cond = blk.NewICmp(enum.IPredNE, cond, constant.NewInt(types.I64, 0))
		}

		blk.NewCondBr(cond, f.blocks[in.Args[1].Block], f.blocks[in.Args[2].Block])
	case ir.OpRet:
		if len(args) == 0 {
			blk.NewRet(constant.NewInt(types.I64, 0))
		} else {
			blk.NewRet(i64(blk, args[0]))
		}
	default:
		return errors.New("unsupported operation")
	}

	if res != nil {
		f.values[in.ID] = res
	}

	return nil
}

func (p *unitContext) callee(sym string, n int) (*ll.Func, error) {
	if f, ok := p.funcs[sym]; ok {
		if len(f.Params) != n {
			return nil, errors.New("call %v: %d args, want %d", sym, n, len(f.Params))
		}

		return f, nil
	}

	if f, ok := p.extern[sym]; ok {
		if len(f.Params) != n {
			return nil, errors.New("call %v: %d args, previously called with %d", sym, n, len(f.Params))
		}

		return f, nil
	}

	params := make([]*ll.Param, n)

	for i := range params {
		params[i] = ll.NewParam("", types.I64)
	}

	f := p.m.NewFunc(sym, types.I64, params...)
	p.extern[sym] = f

	return f, nil
}

// lowerOrder is reverse postorder from the entry, so definitions in dominating
// blocks come before their uses. Unreachable blocks follow in handler order.
func lowerOrder(h *ir.Handler) []*ir.Block {
	seen := set.MakeBitmap[ir.BlockID](h.Cap())

	var post []ir.BlockID

	var visit func(id ir.BlockID)
	visit = func(id ir.BlockID) {
		if seen.TestAndSet(id) {
			return
		}

		for _, s := range h.Successors(id) {
			visit(s)
		}

		post = append(post, id)
	}

	visit(h.Entry())

	r := make([]*ir.Block, 0, h.Len())

	for i := len(post) - 1; i >= 0; i-- {
		r = append(r, h.Block(post[i]))
	}

	for _, b := range h.Blocks() {
		if !seen.IsSet(b.ID) {
			r = append(r, b)
		}
	}

	return r
}

// arity is the number of parameters the handler reads with arg.
func arity(h *ir.Handler) (n int) {
	for _, b := range h.Blocks() {
		for _, in := range b.Code {
			if in.Op == ir.OpArg && int(in.Imm) >= n {
				n = int(in.Imm) + 1
			}
		}
	}

	return n
}

func i64(blk *ll.Block, v value.Value) value.Value {
	if v.Type().Equal(types.I1) {
		return blk.NewZExt(v, types.I64)
	}

	return v
}
