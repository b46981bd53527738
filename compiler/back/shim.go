package back

import (
	ll "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
)

const (
	ShimFunc = "__anon_expr"
	ExecFunc = "execute"
)

// Shim builds the surrogate unit for running an external program:
// ShimFunc calls the runtime hook ExecFunc(prog, args, stdin, stdout) and returns 1.
func Shim(prog, args string, stdin, stdout int) *ll.Module {
	m := ll.NewModule()

	i8ptr := types.NewPointer(types.I8)

	exec := m.NewFunc(ExecFunc, types.Void,
		ll.NewParam("prog", i8ptr),
		ll.NewParam("args", i8ptr),
		ll.NewParam("stdin", types.I64),
		ll.NewParam("stdout", types.I64),
	)

	f := m.NewFunc(ShimFunc, types.I32)
	entry := f.NewBlock("entry")

	entry.NewCall(exec,
		cstring(m, ".prog", prog),
		cstring(m, ".args", args),
		constant.NewInt(types.I64, int64(stdin)),
		constant.NewInt(types.I64, int64(stdout)),
	)

	entry.NewRet(constant.NewInt(types.I32, 1))

	return m
}

func cstring(m *ll.Module, name, s string) constant.Constant {
	data := constant.NewCharArrayFromString(s + "\x00")

	g := m.NewGlobalDef(name, data)
	g.Immutable = true

	zero := constant.NewInt(types.I64, 0)

	return constant.NewGetElementPtr(data.Typ, g, zero, zero)
}
