//go:build !windows

package proctree

import (
	"errors"

	"golang.org/x/sys/unix"
)

type unixSignaler struct{}

// SystemSignaler sends SIGTERM and SIGKILL.
func SystemSignaler() Signaler { return unixSignaler{} }

func (unixSignaler) Terminate(pid int) error { return signal(pid, unix.SIGTERM) }

func (unixSignaler) Kill(pid int) error { return signal(pid, unix.SIGKILL) }

func signal(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return ErrNoProcess
	}
	err := unix.Kill(pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return ErrNoProcess
	}
	return err
}
