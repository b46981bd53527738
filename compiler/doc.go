/*

Process of optimization

IR Text ->
	front ->
Control-Flow Graph (ir) ->
	verify ->
	transform (passes to fixpoint) ->
Control-Flow Graph (ir) ->
	back ->
LLVM IR Text

Program Command ->
	back.Shim ->
Surrogate Unit ->
	run ->
Child Status

*/
package compiler
