// Package lockfile implements the single-instance advisory lock
// described in spec §6, grounded on the stale-pid reclaim semantics of
// the original PICORadar single_instance_guard.
package lockfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// DefaultName is the well-known lock file name spec §6 requires.
const DefaultName = "picoradar.pid"

// Lock is an acquired single-instance lock. Release it with Unlock.
type Lock struct {
	path string
	fl   *flock.Flock
}

// Acquire attempts to take the exclusive lock at path (typically
// filepath.Join(os.TempDir(), DefaultName)). If the lock is held by a
// process that is no longer alive, it is considered stale and reclaimed
// automatically. If it is held by a live process, Acquire fails with a
// diagnostic naming that pid.
func Acquire(path string) (*Lock, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lockfile: %w", err)
	}
	if ok {
		if err := writePID(path); err != nil {
			_ = fl.Unlock()
			return nil, err
		}
		return &Lock{path: path, fl: fl}, nil
	}

	pid, readErr := readPID(path)
	if readErr == nil && pid > 0 && processAlive(pid) {
		return nil, fmt.Errorf("lockfile: already running (pid %d, lock %s)", pid, path)
	}

	// Stale: the recorded pid is gone. Reclaim by removing the file and
	// retrying once.
	_ = os.Remove(path)
	ok, err = fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lockfile: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("lockfile: could not acquire %s after reclaiming stale lock", path)
	}
	if err := writePID(path); err != nil {
		_ = fl.Unlock()
		return nil, err
	}
	return &Lock{path: path, fl: fl}, nil
}

// Unlock releases the lock and removes the lock file.
func (l *Lock) Unlock() error {
	defer os.Remove(l.path)
	return l.fl.Unlock()
}

func writePID(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// processAlive reports whether pid refers to a live process. On Unix,
// signal 0 probes liveness without affecting the target; FindProcess
// itself always succeeds on Unix, so the Signal call is the real check.
// On platforms where that probe is unavailable, a successful
// FindProcess is the best signal we have.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return probeSignal(proc)
}
