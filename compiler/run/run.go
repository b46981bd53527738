//go:build unix

package run

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	// Status is how a child process ended.
	Status struct {
		Exited bool
		Code   int

		Signaled bool
		Signal   syscall.Signal

		Stopped    bool
		StopSignal syscall.Signal

		Raw uint32
	}
)

// SplitCommand splits "prog args..." at the first space.
// Args run to the end of the first line.
func SplitCommand(input string) (prog, args string) {
	input, _, _ = strings.Cut(input, "\n")
	prog, args, _ = strings.Cut(input, " ")

	return prog, args
}

// Run executes prog with args passed as a single argument, omitted when empty.
// Nil streams are replaced with the current process streams.
// A program which started and ended is reported by Status even if it failed,
// err is only for programs which could not be run.
func Run(ctx context.Context, prog, args string, stdin, stdout *os.File) (st Status, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "run", "prog", prog, "args", args)
	defer tr.Finish("err", &err, "status", &st)

	if prog == "" {
		return Status{}, errors.New("empty program name")
	}

	var argv []string
	if args != "" {
		argv = append(argv, args)
	}

	cmd := exec.CommandContext(ctx, prog, argv...)

	cmd.Stdin = stdin
	if stdin == nil {
		cmd.Stdin = os.Stdin
	}

	cmd.Stdout = stdout
	if stdout == nil {
		cmd.Stdout = os.Stdout
	}

	cmd.Stderr = os.Stderr

	err = cmd.Run()

	var exit *exec.ExitError

	switch {
	case err == nil:
	case errors.As(err, &exit):
		err = nil
	default:
		return Status{}, errors.Wrap(err, "run %v", prog)
	}

	ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	if !ok {
		return Status{Exited: true, Code: cmd.ProcessState.ExitCode()}, nil
	}

	return statusOf(ws), nil
}

func statusOf(ws syscall.WaitStatus) Status {
	st := Status{Raw: uint32(ws)}

	switch {
	case ws.Signaled():
		st.Signaled = true
		st.Signal = ws.Signal()
	case ws.Exited():
		st.Exited = true
		st.Code = ws.ExitStatus()
	case ws.Stopped():
		st.Stopped = true
		st.StopSignal = ws.StopSignal()
	}

	return st
}

func (s Status) Success() bool {
	return s.Exited && s.Code == 0
}

func (s Status) String() string {
	switch {
	case s.Signaled:
		return fmt.Sprintf("child process exited with signal %d", int(s.Signal))
	case s.Exited:
		return fmt.Sprintf("child process exited with code %d", s.Code)
	case s.Stopped:
		return fmt.Sprintf("child process stopped with signal %d", int(s.StopSignal))
	default:
		return fmt.Sprintf("child process exited with unknown status %d", s.Raw)
	}
}
