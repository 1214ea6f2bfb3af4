// file: internal/report/report.go
// version: 1.0.0
// guid: 0e6f2a4c-8b13-4d97-a5c1-3f7e9b2d6a80

// Package report renders analysis results as a terminal table, JSON or
// YAML.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jdfalk/beat-organizer/internal/analyzer"
	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/jdfalk/beat-organizer/internal/fileops"
	"gopkg.in/yaml.v3"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json, yaml or yml in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "table":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: unknown report format %q", failure.ErrInvalidConfig, s)
}

// Options controls rendering.
type Options struct {
	Format Format
	// Color enables ANSI labels in text output.
	Color bool
	// Verbose adds per-file details and singletons to text output.
	Verbose bool
}

// Comparison is the outcome of comparing two files.
type Comparison struct {
	A          string  `json:"a" yaml:"a"`
	B          string  `json:"b" yaml:"b"`
	Similarity float64 `json:"similarity" yaml:"similarity"`
	Threshold  float64 `json:"threshold" yaml:"threshold"`
	Duplicate  bool    `json:"duplicate" yaml:"duplicate"`
	// Identical is set when the raw bytes hash the same.
	Identical bool   `json:"identical" yaml:"identical"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// WriteResult renders a batch result.
func WriteResult(w io.Writer, res *analyzer.Result, opts Options) error {
	if opts.Format == FormatText || opts.Format == "" {
		return writeResultText(w, res, opts)
	}
	return encode(w, res, opts.Format)
}

// WriteRecord renders the analysis of one file.
func WriteRecord(w io.Writer, rec analyzer.FileRecord, opts Options) error {
	if opts.Format == FormatText || opts.Format == "" {
		return writeRecordText(w, rec, opts)
	}
	return encode(w, rec, opts.Format)
}

// WriteComparison renders a pairwise comparison.
func WriteComparison(w io.Writer, c Comparison, opts Options) error {
	if opts.Format == FormatText || opts.Format == "" {
		return writeComparisonText(w, c, opts)
	}
	return encode(w, c, opts.Format)
}

// WriteResultFile renders res into path, replacing it atomically.
func WriteResultFile(path string, res *analyzer.Result, opts Options) error {
	var buf bytes.Buffer
	if err := WriteResult(&buf, res, Options{Format: opts.Format, Verbose: opts.Verbose}); err != nil {
		return err
	}
	return fileops.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

func encode(w io.Writer, v any, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: unknown report format %q", failure.ErrInvalidConfig, f)
}
