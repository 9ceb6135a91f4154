//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// isFatalFsnotifyError reports inotify/kqueue resource exhaustion:
//   - ENOSPC: watch limit exceeded (fs.inotify.max_user_watches)
//   - EMFILE: per-process file descriptor limit exceeded
//   - ENFILE: system-wide file descriptor limit exceeded
func isFatalFsnotifyError(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}

const watchLimitHint = "increase the limit with: sudo sysctl fs.inotify.max_user_watches=524288"
