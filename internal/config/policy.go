package config

import (
	"errors"
	"fmt"
	"strings"

	"pngscrub/internal/pngcodec"
)

// NamingMode decides how scrubbed copies are named.
type NamingMode int

const (
	// NamingSequential names outputs Image1.png, Image2.png, ... by input position.
	NamingSequential NamingMode = iota
	// NamingPreserve keeps the source base name with a lowercase .png extension.
	NamingPreserve
)

func (m NamingMode) String() string {
	switch m {
	case NamingSequential:
		return "sequential"
	case NamingPreserve:
		return "preserve"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// OverwriteMode decides what happens when the destination already exists.
type OverwriteMode int

const (
	OverwritePrevent OverwriteMode = iota
	OverwriteAllow
)

func (m OverwriteMode) String() string {
	switch m {
	case OverwritePrevent:
		return "prevent"
	case OverwriteAllow:
		return "allow"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// Policy is the immutable configuration shared by every file in a batch.
type Policy struct {
	ExportPath      string
	DisplayMetadata bool
	Naming          NamingMode
	RemoveMetadata  bool
	Overwrite       OverwriteMode
	Compression     pngcodec.CompressionLevel
	Filter          pngcodec.FilterStrategy
	VerifyOutput    bool
	Workers         int
}

const (
	DefaultExportPath = "scrubbed"
	DefaultFileName   = "pngscrub.toml"
)

func Default() Policy {
	return Policy{
		ExportPath:      DefaultExportPath,
		DisplayMetadata: false,
		Naming:          NamingSequential,
		RemoveMetadata:  true,
		Overwrite:       OverwritePrevent,
		Compression:     pngcodec.CompressionBest,
		Filter:          pngcodec.FilterAdaptive,
		VerifyOutput:    true,
		Workers:         1,
	}
}

func (p Policy) Validate() error {
	var errs []error
	if strings.TrimSpace(p.ExportPath) == "" {
		errs = append(errs, errors.New("export_path must not be empty"))
	}
	if p.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", p.Workers))
	}
	if p.Naming != NamingSequential && p.Naming != NamingPreserve {
		errs = append(errs, fmt.Errorf("invalid naming mode %d", int(p.Naming)))
	}
	if p.Overwrite != OverwritePrevent && p.Overwrite != OverwriteAllow {
		errs = append(errs, fmt.Errorf("invalid overwrite mode %d", int(p.Overwrite)))
	}
	return errors.Join(errs...)
}

// Encoder returns the pngcodec encoder configured by the policy.
func (p Policy) Encoder() *pngcodec.Encoder {
	return &pngcodec.Encoder{
		Level:        p.Compression,
		Filter:       p.Filter,
		MaxIDATBytes: pngcodec.DefaultMaxIDATBytes,
	}
}
