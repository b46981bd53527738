package ir

import (
	"fmt"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
)

type (
	// InvariantError is an internal compiler error: the graph is malformed.
	// It points to a bug in IR construction or in a previous pass, never in user input.
	InvariantError struct {
		Handler string

		Block     BlockID
		BlockName string

		Instr Value
		Op    Op

		Reason string

		PC loc.PC // where the violation was detected
	}
)

var ErrInvariant = errors.New("ir invariant violated")

// NewInvariantError describes a violation found in h at block id and, optionally, instruction in.
func NewInvariantError(h *Handler, id BlockID, in *Instr, format string, args ...any) *InvariantError {
	return invariantError(1, h, id, in, format, args...)
}

func newInvariantError(h *Handler, id BlockID, in *Instr, format string, args ...any) *InvariantError {
	return invariantError(1, h, id, in, format, args...)
}

func invariantError(d int, h *Handler, id BlockID, in *Instr, format string, args ...any) *InvariantError {
	e := &InvariantError{
		Block:  id,
		Instr:  -1,
		Reason: fmt.Sprintf(format, args...),
		PC:     loc.Caller(d + 1),
	}

	if h != nil {
		e.Handler = h.Name

		if b := h.Block(id); b != nil {
			e.BlockName = b.Name
		}
	}

	if in != nil {
		e.Instr = in.ID
		e.Op = in.Op
	}

	return e
}

func (e *InvariantError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "internal compiler error: handler %q", e.Handler)

	if e.Block != Nil {
		if e.BlockName != "" {
			fmt.Fprintf(&b, ": block %s#%d", e.BlockName, e.Block)
		} else {
			fmt.Fprintf(&b, ": block #%d", e.Block)
		}
	}

	if e.Instr >= 0 {
		fmt.Fprintf(&b, ": instr v%d (%v)", e.Instr, e.Op)
	}

	b.WriteString(": ")
	b.WriteString(e.Reason)

	return b.String()
}

func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariant
}
