//go:build windows

package watch

import (
	"errors"

	"golang.org/x/sys/windows"
)

// exclusiveOpen reports whether path can be opened for read with no sharing.
// A sharing violation means another process still has it open.
func exclusiveOpen(path string) bool {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false
	}
	h, err := windows.CreateFile(p, windows.GENERIC_READ, 0, nil,
		windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return errors.Is(err, windows.ERROR_FILE_NOT_FOUND) ||
			errors.Is(err, windows.ERROR_PATH_NOT_FOUND)
	}
	_ = windows.CloseHandle(h)
	return true
}
