// Package validate checks command line inputs before any work starts.
package validate

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Validation errors.
var (
	ErrNotExist      = errors.New("path does not exist")
	ErrNotFile       = errors.New("path is not a regular file")
	ErrExists        = errors.New("path already exists")
	ErrInvalidName   = errors.New("invalid characters in name")
	ErrInvalidExtent = errors.New("invalid extent")
)

// ExistingFile returns an error unless path is an existing regular file.
func ExistingFile(path string) error {
	st, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	if err != nil {
		return err
	}
	if !st.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotFile, path)
	}
	return nil
}

// NewDir returns an error if path already exists.
func NewDir(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Name accepts ASCII letters, digits and the characters _ \ / :. The error
// lists every offending character once, in order of appearance.
func Name(s string) error {
	var bad []string
	seen := map[rune]bool{}
	for _, r := range s {
		if allowed(r) || seen[r] {
			continue
		}
		seen[r] = true
		bad = append(bad, fmt.Sprintf("%q", r))
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w %q: %s", ErrInvalidName, s, strings.Join(bad, ", "))
	}
	if s == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	return nil
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '\\', r == '/', r == ':':
		return true
	}
	return false
}

// Extent parses "minx,miny,maxx,maxy".
func Extent(s string) ([4]float64, error) {
	var e [4]float64
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return e, fmt.Errorf("%w %q: want minx,miny,maxx,maxy", ErrInvalidExtent, s)
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return e, fmt.Errorf("%w %q: value %d: %v", ErrInvalidExtent, s, i+1, err)
		}
		e[i] = v
	}
	if !(e[0] < e[2] && e[1] < e[3]) {
		return e, fmt.Errorf("%w %q: min must be below max", ErrInvalidExtent, s)
	}
	return e, nil
}
