package set

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

type (
	Key interface {
		~int | ~int64
	}

	// Bitmap is a dense set of small non-negative ids.
	Bitmap[K Key] struct {
		b  []uint64
		b0 [1]uint64
	}
)

func MakeBitmap[K Key](size int) Bitmap[K] {
	s := Bitmap[K]{}
	s.b = s.b0[:]

	s.grow((size+63)/64 - 1)

	return s
}

func (s *Bitmap[K]) Set(k K) {
	i, j := s.ij(k)

	s.grow(i)

	s.b[i] |= 1 << j
}

func (s *Bitmap[K]) IsSet(k K) bool {
	if k < 0 {
		return false
	}

	i, j := s.ij(k)

	if i >= len(s.b) {
		return false
	}

	return s.b[i]&(1<<j) != 0
}

// TestAndSet sets k and reports whether it was already set.
func (s *Bitmap[K]) TestAndSet(k K) bool {
	if s.IsSet(k) {
		return true
	}

	s.Set(k)

	return false
}

func (s *Bitmap[K]) Size() (r int) {
	if s == nil {
		return 0
	}

	for _, c := range s.b {
		r += bits.OnesCount64(c)
	}

	return r
}

// Range calls f for each set key in ascending order until f returns false.
func (s *Bitmap[K]) Range(f func(k K) bool) {
	for i, x := range s.b {
		for x != 0 {
			j := bits.TrailingZeros64(x)
			x &^= 1 << j

			if !f(K(i*64 + j)) {
				return
			}
		}
	}
}

func (s *Bitmap[K]) Keys() (r []K) {
	s.Range(func(k K) bool {
		r = append(r, k)
		return true
	})

	return r
}

func (s Bitmap[K]) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	if s.b == nil {
		return e.AppendNil(b)
	}

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(k K) bool {
		b = e.AppendInt(b, int(k))

		return true
	})

	b = e.AppendBreak(b)

	return b
}

func (s *Bitmap[K]) ij(k K) (i int, j int) {
	return int(k) / 64, int(k) % 64
}

func (s *Bitmap[K]) grow(i int) {
	for i >= len(s.b) {
		s.b = append(s.b, 0)
	}
}
