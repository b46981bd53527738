package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"
)

func TestSuccessors(t *testing.T) {
	h, entry, left, right, exit := diamond(t)

	assert.Equal(t, []BlockID{left.ID, right.ID}, h.Successors(entry.ID))
	assert.Equal(t, []BlockID{exit.ID}, h.Successors(left.ID))
	assert.Empty(t, h.Successors(exit.ID))
	assert.Nil(t, h.Successors(99))
}

func TestSuccessorsKeepDuplicates(t *testing.T) {
	h := NewHandler("f")
	a := h.NewBlock("a")
	b := h.NewBlock("b")

	a.BrIf(a.Arg(0), b.ID, b.ID)
	b.Ret()

	assert.Equal(t, []BlockID{b.ID, b.ID}, h.Successors(a.ID))
	assert.Equal(t, []BlockID{a.ID}, h.Predecessors(b.ID))
}

func TestPredecessors(t *testing.T) {
	h, entry, left, right, exit := diamond(t)

	assert.Empty(t, h.Predecessors(entry.ID))
	assert.Equal(t, []BlockID{entry.ID}, h.Predecessors(left.ID))
	assert.Equal(t, []BlockID{entry.ID}, h.Predecessors(right.ID))
	assert.Equal(t, []BlockID{left.ID, right.ID}, h.Predecessors(exit.ID))
}

func TestReplaceBlockOperand(t *testing.T) {
	h, entry, left, right, exit := diamond(t)

	br := entry.Terminator()
	require.NotNil(t, br)

	n := br.ReplaceBlockOperand(left.ID, right.ID)
	assert.Equal(t, 1, n)
	assert.Len(t, br.Args, 3)
	assert.Equal(t, ValueOperand, br.Args[0].Kind)
	assert.Equal(t, []BlockID{right.ID, right.ID}, br.Targets())

	// derived relations follow the rewrite immediately
	assert.Empty(t, h.Predecessors(left.ID))
	assert.Equal(t, []BlockID{entry.ID}, h.Predecessors(right.ID))

	n = br.ReplaceBlockOperand(right.ID, exit.ID)
	assert.Equal(t, 2, n)
	assert.Equal(t, []BlockID{exit.ID, exit.ID}, br.Targets())

	n = br.ReplaceBlockOperand(left.ID, right.ID)
	assert.Equal(t, 0, n)
}

func TestReplaceBlockOperandSkipsValues(t *testing.T) {
	h := NewHandler("f")
	a := h.NewBlock("a")

	v := a.Const(0)
	in := a.Ret(v)

	// value 0 and block 0 share a number but not a kind
	assert.Equal(t, Value(a.ID), v)
	assert.Equal(t, 0, in.ReplaceBlockOperand(a.ID, 7))
	assert.Equal(t, v, in.Args[0].Value)
}

func TestRemoveBlock(t *testing.T) {
	h, entry, left, right, exit := diamond(t)

	err := h.RemoveBlock(left.ID)
	assert.True(t, errors.Is(err, ErrInvariant), "referenced block: %v", err)

	var ie *InvariantError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "diamond", ie.Handler)
	assert.Equal(t, left.ID, ie.Block)
	assert.Equal(t, "left", ie.BlockName)
	assert.Contains(t, err.Error(), "left")

	err = h.RemoveBlock(entry.ID)
	assert.True(t, errors.Is(err, ErrInvariant), "entry block: %v", err)

	err = h.RemoveBlock(1000)
	assert.True(t, errors.Is(err, ErrInvariant), "unknown block: %v", err)

	assert.Equal(t, 4, h.Len())

	entry.Terminator().ReplaceBlockOperand(left.ID, right.ID)

	require.NoError(t, h.RemoveBlock(left.ID))
	assert.Equal(t, 3, h.Len())
	assert.Nil(t, h.Block(left.ID))
	assert.Nil(t, left.Handler())
	assert.Equal(t, []BlockID{entry.ID, right.ID, exit.ID}, h.Order())
	assert.Equal(t, 4, h.Cap())
	require.NoError(t, Verify(h))

	err = h.RemoveBlock(left.ID)
	assert.True(t, errors.Is(err, ErrInvariant), "removed twice: %v", err)

	// ids are never reused
	n := h.NewBlock("")
	assert.Equal(t, BlockID(4), n.ID)
}

func TestRemoveLastBlock(t *testing.T) {
	h := NewHandler("f")
	a := h.NewBlock("a")
	a.Ret()

	err := h.RemoveBlock(a.ID)
	assert.True(t, errors.Is(err, ErrInvariant))
	assert.Equal(t, 1, h.Len())
}
