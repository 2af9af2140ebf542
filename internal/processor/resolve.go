package processor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"pngscrub/internal/config"
)

// DestinationName returns the output file name for the index-th input
// (1-based) under the given naming mode.
func DestinationName(srcPath string, index int, naming config.NamingMode) string {
	if naming == config.NamingSequential {
		return fmt.Sprintf("Image%d.png", index)
	}
	base := filepath.Base(srcPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".png"
}

// Resolve decides where the scrubbed copy of srcPath goes and whether it
// may be written. It creates the export directory. An existing destination
// under prevent-overwrite is a skip, not an error.
func Resolve(srcPath string, index int, policy config.Policy) (OutputDecision, error) {
	if index < 1 {
		return OutputDecision{}, fmt.Errorf("resolve %s: index %d is not 1-based", srcPath, index)
	}

	dir := policy.ExportPath
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return OutputDecision{}, &IOError{Op: "mkdir", Path: dir, Err: err}
	}

	dest := filepath.Join(dir, DestinationName(srcPath, index, policy.Naming))
	if sameFile(srcPath, dest) {
		return OutputDecision{}, fmt.Errorf("resolve %s: destination is the input file", srcPath)
	}

	if policy.Overwrite == config.OverwritePrevent {
		_, err := os.Lstat(dest)
		switch {
		case err == nil:
			return OutputDecision{Path: dest, Proceed: false, Reason: SkipExists}, nil
		case !errors.Is(err, fs.ErrNotExist):
			return OutputDecision{}, &IOError{Op: "stat", Path: dest, Err: err}
		}
	}
	return OutputDecision{Path: dest, Proceed: true}, nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	if absA == absB {
		return true
	}
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}

// destinationQueue orders inputs that map to the same destination: each
// one waits until the previous claimant of that path has finished, then
// resolves against what is actually on disk. Built once per batch in input
// order and only read afterwards.
type destinationQueue struct {
	after map[int]chan struct{}
	done  map[int]chan struct{}
}

func queueFor(paths []string, policy config.Policy) *destinationQueue {
	if policy.Workers < 2 {
		return nil
	}
	q := &destinationQueue{
		after: make(map[int]chan struct{}),
		done:  make(map[int]chan struct{}, len(paths)),
	}
	last := make(map[string]chan struct{}, len(paths))
	for i, p := range paths {
		index := i + 1
		dest := filepath.Join(policy.ExportPath, DestinationName(p, index, policy.Naming))
		if prev, ok := last[dest]; ok {
			q.after[index] = prev
		}
		ch := make(chan struct{})
		last[dest] = ch
		q.done[index] = ch
	}
	return q
}

// wait blocks until the previous claimant of index's destination is done.
// Jobs are started in input order, so that claimant is already running.
func (q *destinationQueue) wait(index int) {
	if q == nil {
		return
	}
	if prev, ok := q.after[index]; ok {
		<-prev
	}
}

func (q *destinationQueue) release(index int) {
	if q == nil {
		return
	}
	if ch, ok := q.done[index]; ok {
		close(ch)
	}
}
