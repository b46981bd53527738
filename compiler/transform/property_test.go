package transform

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/cfgopt/compiler/ir"
)

// randomHandler builds a well-formed graph heavy on pass-through blocks,
// self loops and duplicate branch targets.
func randomHandler(rnd *rand.Rand, n int) *ir.Handler {
	h := ir.NewHandler(fmt.Sprintf("rnd%d", n))

	blocks := make([]*ir.Block, n)
	for i := range blocks {
		blocks[i] = h.NewBlock("")
	}

	pick := func() ir.BlockID {
		return blocks[rnd.Intn(n)].ID
	}

	for _, b := range blocks {
		switch rnd.Intn(6) {
		case 0, 1:
			b.Br(pick())
		case 2:
			b.Const(int64(rnd.Intn(10)))
			b.Br(pick())
		case 3, 4:
			c := b.Arg(0)
			b.BrIf(c, pick(), pick())
		default:
			b.Ret()
		}
	}

	return h
}

func TestEmptyBlockProperties(t *testing.T) {
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(1))

	for iter := 0; iter < 500; iter++ {
		h := randomHandler(rnd, 1+rnd.Intn(12))
		require.NoError(t, ir.Verify(h))

		for calls := 0; ; calls++ {
			require.Less(t, calls, 100, "no fixpoint")

			n := h.Len()

			changed, err := EmptyBlockElimination(ctx, h)
			require.NoError(t, err)

			require.NoError(t, ir.Verify(h), "iter %d call %d", iter, calls)

			if !changed {
				assert.Equal(t, n, h.Len())

				before := snapshot(h)

				changed, err = EmptyBlockElimination(ctx, h)
				require.NoError(t, err)
				assert.False(t, changed)
				assert.Equal(t, before, snapshot(h))

				break
			}

			assert.Less(t, h.Len(), n, "iter %d call %d", iter, calls)
		}

		for _, b := range h.Blocks() {
			if b.Len() != 1 || b.Code[0].Op != ir.OpBr {
				continue
			}

			// only self loops survive
			assert.Equal(t, []ir.BlockID{b.ID}, h.Successors(b.ID), "iter %d block %v", iter, b)
		}
	}
}

func TestDriverProperties(t *testing.T) {
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(2))

	d := New(
		Pass{Name: EmptyBlockEliminationName, Run: EmptyBlockElimination},
		Pass{Name: UnreachableBlockEliminationName, Run: UnreachableBlockElimination},
	)

	for iter := 0; iter < 300; iter++ {
		h := randomHandler(rnd, 1+rnd.Intn(16))
		n := h.Len()

		changed, err := d.Run(ctx, h)
		require.NoError(t, err)
		require.NoError(t, ir.Verify(h))

		assert.LessOrEqual(t, h.Len(), n)

		if h.Len() != n {
			assert.True(t, changed, "iter %d", iter)
		}

		reach := Reachable(h)
		assert.Equal(t, h.Len(), reach.Size(), "iter %d: unreachable blocks left", iter)
	}
}
