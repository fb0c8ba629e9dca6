//go:build windows

package proctree

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

type toolhelpLister struct{}

// SystemLister enumerates processes with a Toolhelp32 snapshot.
func SystemLister() Lister { return toolhelpLister{} }

func (toolhelpLister) List(ctx context.Context) ([]Record, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("process snapshot: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	if err := windows.Process32First(snapshot, &entry); err != nil {
		return nil, fmt.Errorf("first process: %w", err)
	}
	var records []Record
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records = append(records, Record{
			PID:     int(entry.ProcessID),
			PPID:    int(entry.ParentProcessID),
			Command: windows.UTF16ToString(entry.ExeFile[:]),
		})
		if err := windows.Process32Next(snapshot, &entry); err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
				break
			}
			return nil, fmt.Errorf("next process: %w", err)
		}
	}
	return records, nil
}
