//go:build unix && !linux

package run

import (
	"os"

	"tlog.app/go/errors"
)

func Pipe() (r, w *os.File, err error) {
	r, w, err = os.Pipe()
	if err != nil {
		return nil, nil, errors.Wrap(err, "pipe")
	}

	return r, w, nil
}
