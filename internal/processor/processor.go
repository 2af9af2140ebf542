package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"pngscrub/internal/config"
	"pngscrub/internal/pngcodec"
)

// Process runs the scrub pipeline for one file. index is the file's
// 1-based position in the batch. Failures are reported in Result.Err and
// never leave a partial file at the destination.
func Process(path string, index int, policy config.Policy, opts Options) Result {
	res := Result{Path: path, Index: index}
	log := opts.Logger.With().Str("path", path).Int("index", index).Logger()
	defer opts.queue.release(index)

	if policy.DisplayMetadata {
		report, err := ReadMetadata(path)
		if err != nil {
			res.MetadataErr = err
		} else {
			res.Metadata = &report
		}
	}

	if !policy.RemoveMetadata {
		res.Decision = OutputDecision{Reason: SkipDisabled}
		return res
	}

	opts.queue.wait(index)
	decision, err := Resolve(path, index, policy)
	if err != nil {
		res.Err = err
		return res
	}
	res.Decision = decision
	if !decision.Proceed {
		return res
	}

	src, err := os.ReadFile(path)
	if err != nil {
		res.Err = &IOError{Op: "read", Path: path, Err: err}
		return res
	}
	res.InputBytes = int64(len(src))

	limits := opts.Limits
	if limits == (pngcodec.Limits{}) {
		limits = pngcodec.DefaultLimits()
	}

	stream, err := pngcodec.DecodeBytes(src, limits)
	if err != nil {
		res.Err = err
		return res
	}
	res.Header = stream.Header
	log.Debug().
		Stringer("header", stream.Header).
		Int("chunks", len(stream.Chunks)).
		Int("idat", len(stream.IDAT())).
		Msg("decoded chunk stream")

	buf, err := pngcodec.Materialize(stream, limits)
	if err != nil {
		res.Err = err
		return res
	}
	res.Digest = buf.Digest()

	stripped := pngcodec.Strip(stream)
	res.Dropped = stripped.Dropped
	log.Debug().
		Int("dropped", stripped.DroppedCount()).
		Strs("types", chunkNames(stripped.Dropped)).
		Msg("stripped metadata")

	var out bytes.Buffer
	if err := policy.Encoder().Encode(&out, buf, stripped.Retained); err != nil {
		res.Err = fmt.Errorf("encode: %w", err)
		return res
	}

	if policy.VerifyOutput {
		if err := verify(out.Bytes(), res.Digest, limits); err != nil {
			res.Err = err
			return res
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		res.Err = &IOError{Op: "stat", Path: path, Err: err}
		return res
	}
	overwrite := policy.Overwrite == config.OverwriteAllow
	if err := writeOutput(decision.Path, out.Bytes(), info.Mode().Perm(), overwrite); err != nil {
		if errors.Is(err, errDestinationExists) {
			log.Debug().Str("output", decision.Path).Msg("destination appeared during scrub")
			res.Decision = OutputDecision{Path: decision.Path, Reason: SkipExists}
			res.Dropped = nil
			return res
		}
		res.Err = err
		return res
	}
	res.OutputBytes = int64(out.Len())
	log.Debug().
		Int64("in", res.InputBytes).
		Int64("out", res.OutputBytes).
		Str("digest", res.Digest.Short()).
		Msg("wrote scrubbed copy")
	return res
}

// verify decodes the encoded output again and checks that it reproduces
// the source pixels exactly.
func verify(encoded []byte, want pngcodec.Digest, limits pngcodec.Limits) error {
	stream, err := pngcodec.DecodeBytes(encoded, limits)
	if err != nil {
		return fmt.Errorf("verify output: %w", err)
	}
	buf, err := pngcodec.Materialize(stream, limits)
	if err != nil {
		return fmt.Errorf("verify output: %w", err)
	}
	if got := buf.Digest(); got != want {
		return fmt.Errorf("verify output: pixel digest %s does not match source %s", got.Short(), want.Short())
	}
	return nil
}

func writeOutput(dest string, data []byte, perm os.FileMode, overwrite bool) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, "pngscrub-*.tmp")
	if err != nil {
		return &IOError{Op: "create", Path: dir, Err: err}
	}
	defer os.Remove(tmp.Name())

	fail := func(op string, err error) error {
		_ = tmp.Close()
		return &IOError{Op: op, Path: dest, Err: err}
	}
	if perm == 0 {
		perm = 0o644
	}
	if err := tmp.Chmod(perm); err != nil {
		return fail("chmod", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		return &IOError{Op: "close", Path: dest, Err: err}
	}
	if !overwrite {
		return installNew(tmp.Name(), dest)
	}
	if err := replaceFile(tmp.Name(), dest); err != nil {
		return &IOError{Op: "rename", Path: dest, Err: err}
	}
	return nil
}

// errDestinationExists reports that a file took the destination between
// Resolve and the final install.
var errDestinationExists = errors.New("destination already exists")

// installNew links tmpPath into place, which fails instead of replacing an
// existing destPath. Filesystems without hard links fall back to rename
// after one more existence check.
func installNew(tmpPath, destPath string) error {
	err := os.Link(tmpPath, destPath)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return errDestinationExists
	}
	if _, statErr := os.Lstat(destPath); statErr == nil {
		return errDestinationExists
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return &IOError{Op: "rename", Path: destPath, Err: err}
	}
	return nil
}

// replaceFile moves tmpPath over destPath, removing the destination and
// retrying when the rename itself refuses.
func replaceFile(tmpPath, destPath string) error {
	err := os.Rename(tmpPath, destPath)
	if err == nil {
		return nil
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmpPath, destPath)
}

func chunkNames(types []pngcodec.ChunkType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}

type job struct {
	path  string
	index int
}

// Run processes paths with policy.Workers goroutines and returns one
// Result per path in input order. A failed file never stops the batch.
// When ctx is cancelled no new files are started; those left over are
// reported as failed with the context error.
func Run(ctx context.Context, paths []string, policy config.Policy, opts Options, updates chan<- ProgressUpdate) (Summary, []Result, error) {
	summary := Summary{Total: len(paths)}
	results := make([]Result, len(paths))
	if err := policy.Validate(); err != nil {
		return summary, nil, err
	}
	if updates != nil {
		updates <- ProgressUpdate{TotalDelta: len(paths)}
	}

	opts.queue = queueFor(paths, policy)

	jobs := make(chan job)
	done := make(chan Result)

	workers := policy.Workers
	if workers > len(paths) {
		workers = len(paths)
	}
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				done <- Process(j.path, j.index, policy, opts)
			}
		}()
	}

	started := make([]bool, len(paths))
	go func() {
		defer close(jobs)
		for i, p := range paths {
			select {
			case jobs <- job{path: p, index: i + 1}:
				started[i] = true
			case <-ctx.Done():
				return
			}
		}
	}()

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range done {
			results[res.Index-1] = res
			summary.add(res)
			if updates != nil {
				updates <- updateFor(res)
			}
		}
	}()

	wg.Wait()
	close(done)
	<-collectorDone

	err := ctx.Err()
	if err != nil {
		for i, ok := range started {
			if ok {
				continue
			}
			res := Result{Path: paths[i], Index: i + 1, Err: err}
			results[i] = res
			summary.add(res)
		}
	}
	return summary, results, err
}
