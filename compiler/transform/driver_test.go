package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"

	"github.com/slowlang/cfgopt/compiler/ir"
)

const entryChain = `
func f {
entry:
	br a
a:
	br b
b:
	c = arg 0
	brif c d e
d:
	br e
e:
	ret c
orphan:
	ret
}
`

func counting(p Pass, n *int) Pass {
	return Pass{
		Name: p.Name,
		Run: func(ctx context.Context, h *ir.Handler) (bool, error) {
			*n++
			return p.Run(ctx, h)
		},
	}
}

func TestDriverFixpoint(t *testing.T) {
	h := parse(t, entryChain)

	var empty, unreach int

	d := New(
		counting(Pass{Name: EmptyBlockEliminationName, Run: EmptyBlockElimination}, &empty),
		counting(Pass{Name: UnreachableBlockEliminationName, Run: UnreachableBlockElimination}, &unreach),
	)

	changed, err := d.Run(context.Background(), h)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, graph{
		Entry: "b",
		Blocks: []shape{
			{Name: "b", Code: []string{"arg", "brif"}, Succ: []string{"e", "e"}},
			{Name: "e", Code: []string{"ret"}},
		},
	}, snapshot(h))

	// entry, a and d go one round each, the last round changes nothing
	assert.Equal(t, 4, empty)
	assert.Equal(t, empty, unreach)

	changed, err = d.Run(context.Background(), h)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDriverNoPasses(t *testing.T) {
	h := parse(t, entryChain)

	changed, err := New().Run(context.Background(), h)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 6, h.Len())
}

func TestDriverRoundLimit(t *testing.T) {
	always := Pass{
		Name: "always",
		Run: func(ctx context.Context, h *ir.Handler) (bool, error) {
			return true, nil
		},
	}

	var n int

	d := New(counting(always, &n))
	d.MaxRounds = 5

	h := parse(t, entryChain)

	changed, err := d.Run(context.Background(), h)
	assert.True(t, errors.Is(err, ErrNoFixpoint), "err: %v", err)
	assert.Contains(t, err.Error(), "handler f")
	assert.True(t, changed)
	assert.Equal(t, 5, n)

	d.OnLimit = Emit
	n = 0

	changed, err = d.Run(context.Background(), h)
	assert.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 5, n)
}

func TestDriverVerifiesAfterEachPass(t *testing.T) {
	breaker := Pass{
		Name: "breaker",
		Run: func(ctx context.Context, h *ir.Handler) (bool, error) {
			b := h.EntryBlock()
			b.Const(1)

			return true, nil
		},
	}

	var n int

	d := New(breaker, counting(Pass{Name: EmptyBlockEliminationName, Run: EmptyBlockElimination}, &n))

	h := parse(t, entryChain)

	_, err := d.Run(context.Background(), h)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ir.ErrInvariant), "err: %v", err)
	assert.Contains(t, err.Error(), "breaker")
	assert.Equal(t, 0, n)
}

func TestDriverRejectsMalformedInput(t *testing.T) {
	h := ir.NewHandler("bad")
	h.NewBlock("a")

	var n int

	d := New(counting(Pass{Name: EmptyBlockEliminationName, Run: EmptyBlockElimination}, &n))

	_, err := d.Run(context.Background(), h)
	assert.True(t, errors.Is(err, ir.ErrInvariant), "err: %v", err)
	assert.Equal(t, 0, n)
}

func TestDriverUnit(t *testing.T) {
	f := parse(t, entryChain)
	g := ir.NewHandler("g")
	g.NewBlock("a").Ret()

	bad := ir.NewHandler("bad")
	bad.NewBlock("a")

	d := New(Pass{Name: EmptyBlockEliminationName, Run: EmptyBlockElimination})

	changed, err := d.RunUnit(context.Background(), &ir.Unit{Path: "u", Funcs: []*ir.Handler{f, g}})
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = d.RunUnit(context.Background(), &ir.Unit{Path: "u", Funcs: []*ir.Handler{g, bad}})
	assert.True(t, errors.Is(err, ir.ErrInvariant), "err: %v", err)
	assert.Contains(t, err.Error(), "func bad")
}
