// Package parser extracts property records from aircraft model description files.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/starford/raido/internal/apperr"
)

const (
	// RecordPrefix starts every property line.
	RecordPrefix = "P "
	// EndSentinel terminates the property section.
	EndSentinel = "PROPERTIES_END"

	maxLineSize = 1 << 20
)

// Result holds the output of scanning a model file.
type Result struct {
	Values    map[string]string
	LinesRead int
}

// Parse scans r line by line and captures the values of the requested fields.
// Scanning stops at EndSentinel, at end of input, or as soon as all fields
// have been found.
func Parse(r io.Reader, fields []string) (*Result, error) {
	wanted := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		wanted[f] = struct{}{}
	}

	res := &Result{Values: make(map[string]string, len(wanted))}
	if len(wanted) == 0 {
		return res, nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for len(res.Values) < len(wanted) && sc.Scan() {
		res.LinesRead++
		line := strings.TrimSpace(sc.Text())

		if line == EndSentinel {
			break
		}
		if !strings.HasPrefix(line, RecordPrefix) {
			continue
		}

		key, value := splitRecord(line[len(RecordPrefix):])
		if _, ok := wanted[key]; ok {
			res.Values[key] = value
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("parser: scan: %w", err)
	}
	return res, nil
}

// splitRecord separates the key token from the free-text value.
func splitRecord(rest string) (string, string) {
	rest = strings.TrimLeft(rest, " \t")
	i := strings.IndexAny(rest, " \t")
	if i < 0 {
		return rest, ""
	}
	return rest[:i], strings.TrimSpace(rest[i+1:])
}

// ParseFile verifies that path is a readable, non-empty regular file and
// parses it with Parse.
func ParseFile(path string, fields []string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("parser: %s: %w", path, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("parser: stat %s: %w: %v", path, apperr.ErrUnreadable, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("parser: %s is not a regular file: %w", path, apperr.ErrUnreadable)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("parser: %s: %w", path, apperr.ErrEmptyFile)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parser: open %s: %w: %v", path, apperr.ErrUnreadable, err)
	}
	defer f.Close()

	res, err := Parse(f, fields)
	if err != nil {
		return nil, fmt.Errorf("parser: %s: %w: %v", path, apperr.ErrUnreadable, err)
	}
	return res, nil
}
