//go:build windows

package lockfile

import "os"

// probeSignal has no POSIX null-signal equivalent on Windows; a
// successful FindProcess earlier in the call chain is the only signal
// available, so treat any resolved handle as live.
func probeSignal(proc *os.Process) bool {
	return proc != nil
}
