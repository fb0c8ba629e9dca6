//go:build windows

package proctree

import (
	"errors"

	"golang.org/x/sys/windows"
)

type windowsSignaler struct{}

// SystemSignaler uses TerminateProcess for both requests.
func SystemSignaler() Signaler { return windowsSignaler{} }

func (windowsSignaler) Terminate(pid int) error { return terminate(pid) }

func (windowsSignaler) Kill(pid int) error { return terminate(pid) }

func terminate(pid int) error {
	if pid <= 0 {
		return ErrNoProcess
	}
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			return ErrNoProcess
		}
		return err
	}
	defer windows.CloseHandle(h)
	return windows.TerminateProcess(h, 1)
}
