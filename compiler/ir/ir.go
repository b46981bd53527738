package ir

import "fmt"

type (
	BlockID int
	Value   int

	Op          uint8
	Cond        string
	TermKind    uint8
	OperandKind uint8

	Operand struct {
		Kind  OperandKind
		Value Value
		Block BlockID
	}

	Instr struct {
		ID   Value
		Op   Op
		Args []Operand

		Imm  int64  // const value, arg index
		Sym  string // call target
		Cond Cond   // cmp predicate

		Block BlockID
	}

	Block struct {
		ID   BlockID
		Name string

		Code []*Instr

		h *Handler
	}

	// Handler is a function: an arena of basic blocks with a designated entry.
	// Removed blocks leave a nil slot, so a BlockID is never reused.
	Handler struct {
		Name string

		blocks []*Block
		order  []BlockID
		entry  BlockID

		nextValue Value
	}

	Unit struct {
		Path string

		Funcs []*Handler
	}
)

const (
	OpInvalid Op = iota
	OpConst
	OpArg
	OpAdd
	OpSub
	OpMul
	OpCmp
	OpCall
	OpBr
	OpBrIf
	OpRet
)

const (
	TermNone TermKind = iota
	TermBr
	TermBrIf
	TermRet
)

const (
	ValueOperand OperandKind = iota
	BlockOperand
)

const (
	CondEQ Cond = "eq"
	CondNE Cond = "ne"
	CondLT Cond = "lt"
	CondLE Cond = "le"
	CondGT Cond = "gt"
	CondGE Cond = "ge"
)

const Nil BlockID = -1

var opNames = [...]string{
	OpInvalid: "invalid",
	OpConst:   "const",
	OpArg:     "arg",
	OpAdd:     "add",
	OpSub:     "sub",
	OpMul:     "mul",
	OpCmp:     "cmp",
	OpCall:    "call",
	OpBr:      "br",
	OpBrIf:    "brif",
	OpRet:     "ret",
}

func ParseOp(s string) (Op, bool) {
	for op, name := range opNames {
		if op != int(OpInvalid) && name == s {
			return Op(op), true
		}
	}

	return OpInvalid, false
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}

	return fmt.Sprintf("op(%d)", int(op))
}

func (op Op) Term() TermKind {
	switch op {
	case OpBr:
		return TermBr
	case OpBrIf:
		return TermBrIf
	case OpRet:
		return TermRet
	default:
		return TermNone
	}
}

// Defines reports whether the instruction produces a value other instructions may use.
func (op Op) Defines() bool {
	switch op {
	case OpConst, OpArg, OpAdd, OpSub, OpMul, OpCmp, OpCall:
		return true
	default:
		return false
	}
}

func (c Cond) Valid() bool {
	switch c {
	case CondEQ, CondNE, CondLT, CondLE, CondGT, CondGE:
		return true
	default:
		return false
	}
}

func V(v Value) Operand   { return Operand{Kind: ValueOperand, Value: v} }
func B(id BlockID) Operand { return Operand{Kind: BlockOperand, Block: id} }

func (i *Instr) IsTerminator() bool { return i.Op.Term() != TermNone }

// Targets returns block operands in operand order.
func (i *Instr) Targets() (r []BlockID) {
	for _, a := range i.Args {
		if a.Kind == BlockOperand {
			r = append(r, a.Block)
		}
	}

	return r
}

func (i *Instr) Values() (r []Value) {
	for _, a := range i.Args {
		if a.Kind == ValueOperand {
			r = append(r, a.Value)
		}
	}

	return r
}

func (b *Block) Handler() *Handler { return b.h }

func (b *Block) Len() int { return len(b.Code) }

func (b *Block) Last() *Instr {
	if len(b.Code) == 0 {
		return nil
	}

	return b.Code[len(b.Code)-1]
}

// Terminator returns the last instruction if it is a terminator.
func (b *Block) Terminator() *Instr {
	last := b.Last()
	if last == nil || !last.IsTerminator() {
		return nil
	}

	return last
}

func (b *Block) String() string {
	if b == nil {
		return "<nil>"
	}

	return fmt.Sprintf("%s#%d", b.Name, b.ID)
}

func NewHandler(name string) *Handler {
	return &Handler{
		Name:  name,
		entry: Nil,
	}
}

// NewBlock appends an empty block. The first block becomes the entry.
func (h *Handler) NewBlock(name string) *Block {
	id := BlockID(len(h.blocks))

	if name == "" {
		name = fmt.Sprintf("b%d", id)
	}

	b := &Block{
		ID:   id,
		Name: name,
		h:    h,
	}

	h.blocks = append(h.blocks, b)
	h.order = append(h.order, id)

	if h.entry == Nil {
		h.entry = id
	}

	return b
}

func (h *Handler) Block(id BlockID) *Block {
	if id < 0 || int(id) >= len(h.blocks) {
		return nil
	}

	return h.blocks[id]
}

// Lookup finds a live block by name.
func (h *Handler) Lookup(name string) *Block {
	for _, id := range h.order {
		if b := h.blocks[id]; b.Name == name {
			return b
		}
	}

	return nil
}

func (h *Handler) Has(id BlockID) bool {
	return h.Block(id) != nil
}

// Blocks returns live blocks in handler order.
// The slice is fresh, so callers may mutate the handler while iterating it.
func (h *Handler) Blocks() []*Block {
	r := make([]*Block, len(h.order))

	for i, id := range h.order {
		r[i] = h.blocks[id]
	}

	return r
}

func (h *Handler) Order() []BlockID {
	return append([]BlockID{}, h.order...)
}

func (h *Handler) Len() int { return len(h.order) }

// Cap is the arena size: one more than the largest BlockID ever allocated.
func (h *Handler) Cap() int { return len(h.blocks) }

func (h *Handler) Entry() BlockID { return h.entry }

func (h *Handler) EntryBlock() *Block { return h.Block(h.entry) }

func (h *Handler) SetEntry(id BlockID) error {
	if !h.Has(id) {
		return newInvariantError(h, id, nil, "entry %d is not a live block", id)
	}

	h.entry = id

	return nil
}

func (h *Handler) alloc() Value {
	v := h.nextValue
	h.nextValue++

	return v
}

func (b *Block) Append(op Op, args ...Operand) *Instr {
	i := &Instr{
		ID:    b.h.alloc(),
		Op:    op,
		Args:  args,
		Block: b.ID,
	}

	b.Code = append(b.Code, i)

	return i
}

func (b *Block) Const(x int64) Value {
	i := b.Append(OpConst)
	i.Imm = x

	return i.ID
}

func (b *Block) Arg(n int64) Value {
	i := b.Append(OpArg)
	i.Imm = n

	return i.ID
}

func (b *Block) Binary(op Op, x, y Value) Value {
	return b.Append(op, V(x), V(y)).ID
}

func (b *Block) Cmp(c Cond, x, y Value) Value {
	i := b.Append(OpCmp, V(x), V(y))
	i.Cond = c

	return i.ID
}

func (b *Block) Call(sym string, args ...Value) Value {
	ops := make([]Operand, len(args))

	for j, a := range args {
		ops[j] = V(a)
	}

	i := b.Append(OpCall, ops...)
	i.Sym = sym

	return i.ID
}

func (b *Block) Br(to BlockID) *Instr {
	return b.Append(OpBr, B(to))
}

func (b *Block) BrIf(c Value, then, els BlockID) *Instr {
	return b.Append(OpBrIf, V(c), B(then), B(els))
}

func (b *Block) Ret(v ...Value) *Instr {
	ops := make([]Operand, len(v))

	for j, a := range v {
		ops[j] = V(a)
	}

	return b.Append(OpRet, ops...)
}

func (u *Unit) Func(name string) *Handler {
	for _, h := range u.Funcs {
		if h.Name == name {
			return h
		}
	}

	return nil
}
