package front

import (
	"context"
	"os"
	"strconv"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/cfgopt/compiler/ir"
)

type (
	// Parser reads the textual IR:
	//
	//	func max entry start {
	//	start:
	//		a = arg 0
	//		b = arg 1
	//		c = cmp gt a b
	//		brif c left right
	//	left:
	//		ret a
	//	right:
	//		ret b
	//	}
	Parser struct{}

	token   any
	punct   string
	ident   string
	number  int64
	comment string

	line struct {
		n    int
		toks []token
	}

	funcState struct {
		h *ir.Handler

		labels map[string]ir.BlockID
		values map[string]ir.Value
	}
)

func (p *Parser) ParseFile(ctx context.Context, name string) (*ir.Unit, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read")
	}

	return p.ParseFileData(ctx, name, data)
}

func (p *Parser) ParseFileData(ctx context.Context, path string, b []byte) (u *ir.Unit, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: parse", "path", path, "size", len(b))
	defer tr.Finish("err", &err)

	lines, err := p.lines(ctx, b)
	if err != nil {
		return nil, err
	}

	u = &ir.Unit{Path: path}

	for i := 0; i < len(lines); {
		var h *ir.Handler

		h, i, err = p.parseFunc(ctx, lines, i)
		if err != nil {
			return nil, err
		}

		if u.Func(h.Name) != nil {
			return nil, errors.New("func %v redeclared", h.Name)
		}

		tr.V("front_func").Printw("func parsed", "name", h.Name, "blocks", h.Len())

		u.Funcs = append(u.Funcs, h)
	}

	return u, nil
}

func (p *Parser) parseFunc(ctx context.Context, lines []line, st int) (h *ir.Handler, i int, err error) {
	hdr := lines[st]
	t := hdr.toks

	if len(t) < 3 || t[0] != ident("func") || t[len(t)-1] != punct("{") {
		return nil, st, hdr.errorf("func header expected")
	}

	name, ok := t[1].(ident)
	if !ok {
		return nil, st, hdr.errorf("func name expected, got %v (%[1]T)", t[1])
	}

	var entry ident

	switch len(t) {
	case 3:
	case 5:
		entry, ok = t[3].(ident)
		if t[2] != ident("entry") || !ok {
			return nil, st, hdr.errorf("entry label expected")
		}
	default:
		return nil, st, hdr.errorf("unexpected tokens in func header")
	}

	i = st + 1

	for i < len(lines) && !lines[i].is(punct("}")) {
		i++
	}

	if i == len(lines) {
		return nil, st, hdr.errorf("func %v: closing bracket expected", name)
	}

	body := lines[st+1 : i]
	i++

	s := &funcState{
		h:      ir.NewHandler(string(name)),
		labels: map[string]ir.BlockID{},
		values: map[string]ir.Value{},
	}

	for _, l := range body {
		lab, ok := l.label()
		if !ok {
			continue
		}

		if _, dup := s.labels[lab]; dup {
			return nil, st, l.errorf("label %v redeclared", lab)
		}

		s.labels[lab] = s.h.NewBlock(lab).ID
	}

	if s.h.Len() == 0 {
		return nil, st, hdr.errorf("func %v has no blocks", name)
	}

	if entry != "" {
		id, ok := s.labels[string(entry)]
		if !ok {
			return nil, st, hdr.errorf("entry label %v undefined", entry)
		}

		err = s.h.SetEntry(id)
		if err != nil {
			return nil, st, errors.Wrap(err, "set entry")
		}
	}

	var cur *ir.Block

	for _, l := range body {
		if lab, ok := l.label(); ok {
			cur = s.h.Block(s.labels[lab])
			continue
		}

		if cur == nil {
			return nil, st, l.errorf("instruction outside of block")
		}

		err = p.parseInstr(ctx, s, cur, l)
		if err != nil {
			return nil, st, errors.Wrap(err, "func %v", name)
		}
	}

	return s.h, i, nil
}

func (p *Parser) parseInstr(ctx context.Context, s *funcState, b *ir.Block, l line) (err error) {
	t := l.toks

	var def ident

	if len(t) >= 2 && t[1] == punct("=") {
		var ok bool

		def, ok = t[0].(ident)
		if !ok {
			return l.errorf("value name expected, got %v (%[1]T)", t[0])
		}

		if _, dup := s.values[string(def)]; dup {
			return l.errorf("value %v redeclared", def)
		}

		t = t[2:]
	}

	if len(t) == 0 {
		return l.errorf("operation expected")
	}

	opname, ok := t[0].(ident)
	if !ok {
		return l.errorf("operation expected, got %v (%[1]T)", t[0])
	}

	op, ok := ir.ParseOp(string(opname))
	if !ok {
		return l.errorf("unknown operation %v", opname)
	}

	if def != "" && !op.Defines() {
		return l.errorf("%v does not produce a value", op)
	}

	args := t[1:]

	arity := func(n int) error {
		if len(args) != n {
			return l.errorf("%v: %d operands expected, got %d", op, n, len(args))
		}

		return nil
	}

	var v ir.Value
	var vals []ir.Value

	switch op {
	case ir.OpConst, ir.OpArg:
		if err = arity(1); err != nil {
			return err
		}

		x, ok := args[0].(number)
		if !ok || op == ir.OpArg && x < 0 {
			return l.errorf("%v: bad immediate %v", op, args[0])
		}

		if op == ir.OpConst {
			v = b.Const(int64(x))
		} else {
			v = b.Arg(int64(x))
		}
	case ir.OpAdd, ir.OpSub, ir.OpMul:
		if err = arity(2); err != nil {
			return err
		}

		if vals, err = s.valueList(l, args); err != nil {
			return err
		}

		v = b.Binary(op, vals[0], vals[1])
	case ir.OpCmp:
		if err = arity(3); err != nil {
			return err
		}

		c, ok := args[0].(ident)
		if !ok || !ir.Cond(c).Valid() {
			return l.errorf("cmp: bad condition %v", args[0])
		}

		if vals, err = s.valueList(l, args[1:]); err != nil {
			return err
		}

		v = b.Cmp(ir.Cond(c), vals[0], vals[1])
	case ir.OpCall:
		if len(args) == 0 {
			return l.errorf("call: callee expected")
		}

		sym, ok := args[0].(ident)
		if !ok {
			return l.errorf("call: bad callee %v", args[0])
		}

		if vals, err = s.valueList(l, args[1:]); err != nil {
			return err
		}

		v = b.Call(string(sym), vals...)
	case ir.OpBr:
		if err = arity(1); err != nil {
			return err
		}

		to, err := s.label(l, args[0])
		if err != nil {
			return err
		}

		b.Br(to)
	case ir.OpBrIf:
		if err = arity(3); err != nil {
			return err
		}

		if vals, err = s.valueList(l, args[:1]); err != nil {
			return err
		}

		then, err := s.label(l, args[1])
		if err != nil {
			return err
		}

		els, err := s.label(l, args[2])
		if err != nil {
			return err
		}

		b.BrIf(vals[0], then, els)
	case ir.OpRet:
		if len(args) > 1 {
			return l.errorf("ret: at most one operand expected")
		}

		if vals, err = s.valueList(l, args); err != nil {
			return err
		}

		b.Ret(vals...)
	default:
		return l.errorf("unsupported operation %v", op)
	}

	if def != "" {
		s.values[string(def)] = v
	}

	return nil
}

func (s *funcState) valueList(l line, args []token) (r []ir.Value, err error) {
	for _, a := range args {
		name, ok := a.(ident)
		if !ok {
			return nil, l.errorf("value expected, got %v (%[1]T)", a)
		}

		v, ok := s.values[string(name)]
		if !ok {
			return nil, l.errorf("undefined value %v", name)
		}

		r = append(r, v)
	}

	return r, nil
}

func (s *funcState) label(l line, t token) (ir.BlockID, error) {
	name, ok := t.(ident)
	if !ok {
		return ir.Nil, l.errorf("label expected, got %v (%[1]T)", t)
	}

	id, ok := s.labels[string(name)]
	if !ok {
		return ir.Nil, l.errorf("undefined label %v", name)
	}

	return id, nil
}

func (p *Parser) lines(ctx context.Context, b []byte) (r []line, err error) {
	var cur line

	n := 1

	flush := func() {
		if len(cur.toks) != 0 {
			r = append(r, cur)
		}

		cur = line{n: n}
	}

	cur.n = n

	for i := 0; i < len(b); {
		i = skipSpaces(b, i)
		if i == len(b) {
			break
		}

		if b[i] == '\n' {
			n++
			i++
			flush()

			continue
		}

		var t token

		t, i, err = p.token(ctx, b, i)
		if err != nil {
			return nil, errors.Wrap(err, "line %d", n)
		}

		switch t.(type) {
		case comment:
		case punct:
			if t != punct(",") {
				cur.toks = append(cur.toks, t)
			}
		default:
			cur.toks = append(cur.toks, t)
		}
	}

	flush()

	return r, nil
}

func (p *Parser) token(ctx context.Context, b []byte, st int) (t token, i int, err error) {
	i = st

	switch c := b[i]; {
	case c == '{' || c == '}' || c == ':' || c == '=' || c == ',':
		return punct(b[i : i+1]), i + 1, nil
	case c == '/':
		if i+1 < len(b) && b[i+1] == '/' {
			i = skipLine(b, i)

			return comment(b[st:i]), i, nil
		}
	case c >= '0' && c <= '9' || c == '-' && i+1 < len(b) && b[i+1] >= '0' && b[i+1] <= '9':
		i = skipDigits(b, i+1)

		x, err := strconv.ParseInt(string(b[st:i]), 10, 64)
		if err != nil {
			return nil, st, errors.Wrap(err, "number")
		}

		return number(x), i, nil
	case c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_':
		i = skipIdent(b, i+1)

		return ident(b[st:i]), i, nil
	}

	return nil, st, errors.New("unsupported token: %q", b[i])
}

func (l line) is(t token) bool {
	return len(l.toks) == 1 && l.toks[0] == t
}

func (l line) label() (string, bool) {
	if len(l.toks) != 2 || l.toks[1] != punct(":") {
		return "", false
	}

	name, ok := l.toks[0].(ident)

	return string(name), ok
}

func (l line) errorf(format string, args ...any) error {
	return errors.Wrap(errors.New(format, args...), "line %d", l.n)
}

func skipSpaces(b []byte, i int) int {
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\r') {
		i++
	}

	return i
}

func skipIdent(b []byte, i int) int {
	for i < len(b) && (b[i] == '_' || b[i] == '.' ||
		b[i] >= 'A' && b[i] <= 'Z' ||
		b[i] >= 'a' && b[i] <= 'z' ||
		b[i] >= '0' && b[i] <= '9') {
		i++
	}

	return i
}

func skipDigits(b []byte, i int) int {
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}

	return i
}

func skipLine(b []byte, i int) int {
	for i < len(b) && b[i] != '\n' {
		i++
	}

	return i
}
