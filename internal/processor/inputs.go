package processor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"pngscrub/pkg/imgutil"
)

// InputWarning describes a command-line input that was left out of the batch.
type InputWarning struct {
	Path   string
	Reason string
}

func (w InputWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Path, w.Reason)
}

// CollectInputs validates command-line arguments and expands directories
// into the .png files beneath them, in lexical order. Files inside
// exportPath are never collected from a directory walk. The order of args
// is kept, which fixes the sequence numbers used for output names. An
// empty exportPath disables the exclusion.
func CollectInputs(args []string, exportPath string) ([]string, []InputWarning) {
	var (
		paths    []string
		warnings []InputWarning
	)
	var exportAbs string
	if exportPath != "" {
		exportAbs, _ = filepath.Abs(exportPath)
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			reason := "cannot be read"
			if os.IsNotExist(err) {
				reason = "does not exist"
			}
			warnings = append(warnings, InputWarning{Path: arg, Reason: reason})
			continue
		}

		if info.IsDir() {
			found, err := walkPNGs(arg, exportAbs)
			if err != nil {
				warnings = append(warnings, InputWarning{Path: arg, Reason: err.Error()})
			}
			if len(found) == 0 && err == nil {
				warnings = append(warnings, InputWarning{Path: arg, Reason: "contains no PNG files"})
			}
			paths = append(paths, found...)
			continue
		}

		if !info.Mode().IsRegular() {
			warnings = append(warnings, InputWarning{Path: arg, Reason: "is not a regular file"})
			continue
		}
		if !imgutil.HasPNGExtension(arg) {
			reason := "is not a PNG file"
			if kind, err := imgutil.SniffFile(arg); err == nil && kind != imgutil.KindUnknown {
				reason = fmt.Sprintf("is not a PNG file (%s)", kind)
			}
			warnings = append(warnings, InputWarning{Path: arg, Reason: reason})
			continue
		}
		paths = append(paths, arg)
	}
	return paths, warnings
}

func walkPNGs(root string, exportAbs string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if exportAbs != "" {
				if abs, err := filepath.Abs(path); err == nil && isWithin(abs, exportAbs) {
					return fs.SkipDir
				}
			}
			return nil
		}
		if d.Type().IsRegular() && imgutil.HasPNGExtension(path) {
			found = append(found, path)
		}
		return nil
	})
	return found, err
}

func isWithin(path string, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
