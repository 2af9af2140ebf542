package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"pngscrub/internal/pngcodec"
)

type fileConfig struct {
	ExportPath       string `toml:"export_path"`
	DisplayMetadata  bool   `toml:"display_metadata"`
	ChangeFilename   bool   `toml:"change_filename"`
	RemoveMetadata   bool   `toml:"remove_metadata"`
	PreventOverwrite bool   `toml:"prevent_overwrite"`
	Compression      string `toml:"compression"`
	Filter           string `toml:"filter"`
	VerifyOutput     bool   `toml:"verify_output"`
	Workers          int    `toml:"workers"`
}

func toFile(p Policy) fileConfig {
	return fileConfig{
		ExportPath:       p.ExportPath,
		DisplayMetadata:  p.DisplayMetadata,
		ChangeFilename:   p.Naming == NamingSequential,
		RemoveMetadata:   p.RemoveMetadata,
		PreventOverwrite: p.Overwrite == OverwritePrevent,
		Compression:      p.Compression.String(),
		Filter:           p.Filter.String(),
		VerifyOutput:     p.VerifyOutput,
		Workers:          p.Workers,
	}
}

// Load reads the policy file at path. A missing file is created with the
// defaults, which are then returned; created reports whether that happened.
func Load(path string) (p Policy, created bool, err error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		if err := WriteDefault(path); err != nil {
			return Policy{}, false, err
		}
		return Default(), true, nil
	}
	p, err = Read(path)
	return p, false, err
}

// Read parses an existing policy file. Keys absent from the file keep
// their defaults; unknown keys are an error.
func Read(path string) (Policy, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Policy{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Policy{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if meta.IsDefined("export_path") {
		cfg.ExportPath = strings.TrimSpace(raw.ExportPath)
	}
	if meta.IsDefined("display_metadata") {
		cfg.DisplayMetadata = raw.DisplayMetadata
	}
	if meta.IsDefined("change_filename") {
		cfg.Naming = NamingPreserve
		if raw.ChangeFilename {
			cfg.Naming = NamingSequential
		}
	}
	if meta.IsDefined("remove_metadata") {
		cfg.RemoveMetadata = raw.RemoveMetadata
	}
	if meta.IsDefined("prevent_overwrite") {
		cfg.Overwrite = OverwriteAllow
		if raw.PreventOverwrite {
			cfg.Overwrite = OverwritePrevent
		}
	}
	if meta.IsDefined("compression") {
		level, err := pngcodec.ParseCompressionLevel(strings.TrimSpace(raw.Compression))
		if err != nil {
			return Policy{}, fmt.Errorf("parse compression: %w", err)
		}
		cfg.Compression = level
	}
	if meta.IsDefined("filter") {
		f, err := pngcodec.ParseFilterStrategy(strings.TrimSpace(raw.Filter))
		if err != nil {
			return Policy{}, fmt.Errorf("parse filter: %w", err)
		}
		cfg.Filter = f
	}
	if meta.IsDefined("verify_output") {
		cfg.VerifyOutput = raw.VerifyOutput
	}
	if meta.IsDefined("workers") {
		cfg.Workers = raw.Workers
	}

	if err := cfg.Validate(); err != nil {
		return Policy{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// WriteDefault writes the default policy to path, creating parent
// directories as needed.
func WriteDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create config %s: %w", path, err)
	}
	if _, err := f.WriteString("# pngscrub policy. Keys missing here fall back to built-in defaults.\n\n"); err != nil {
		f.Close()
		return err
	}
	if err := toml.NewEncoder(f).Encode(toFile(Default())); err != nil {
		f.Close()
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return f.Close()
}
