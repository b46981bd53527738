//go:build linux

package run

import (
	"os"

	"golang.org/x/sys/unix"
	"tlog.app/go/errors"
)

// Pipe creates a close-on-exec pipe. Files passed to Run are duplicated onto
// the child's standard streams, so the flag only hides the originals.
func Pipe() (r, w *os.File, err error) {
	var fds [2]int

	err = unix.Pipe2(fds[:], unix.O_CLOEXEC)
	if err != nil {
		return nil, nil, errors.Wrap(err, "pipe2")
	}

	r = os.NewFile(uintptr(fds[0]), "|0")
	w = os.NewFile(uintptr(fds[1]), "|1")

	return r, w, nil
}
