// Package pathspec parses remote locations of the form scheme://container[/prefix].
package pathspec

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultScheme is the object store scheme accepted by Parse.
const DefaultScheme = "s3"

const separator = "/"

// ErrInvalidPathFormat is returned for strings that are not scheme://container[/prefix].
var ErrInvalidPathFormat = errors.New("invalid path format")

// PathSpec is a parsed remote location. Prefix is empty when absent.
type PathSpec struct {
	Container string
	Prefix    string
}

// Parse splits s into container and prefix using DefaultScheme.
func Parse(s string) (PathSpec, error) {
	return ParseScheme(s, DefaultScheme)
}

// ParseScheme is Parse with an explicit scheme.
func ParseScheme(s, scheme string) (PathSpec, error) {
	head := scheme + "://"
	if !strings.HasPrefix(s, head) {
		return PathSpec{}, fmt.Errorf("%w: %q must start with %q", ErrInvalidPathFormat, s, head)
	}

	container, prefix, _ := strings.Cut(strings.TrimPrefix(s, head), separator)
	if container == "" {
		return PathSpec{}, fmt.Errorf("%w: %q has no container name", ErrInvalidPathFormat, s)
	}

	return PathSpec{Container: container, Prefix: strings.TrimLeft(prefix, separator)}, nil
}

// HasPrefix reports whether the location is scoped below the container root.
func (p PathSpec) HasPrefix() bool {
	return p.Prefix != ""
}

// ListPrefix is the prefix sent to the store. A non-empty prefix is treated as a
// directory, so "docs" lists "docs/..." and never "docs-old/...".
func (p PathSpec) ListPrefix() string {
	if p.Prefix == "" || strings.HasSuffix(p.Prefix, separator) {
		return p.Prefix
	}
	return p.Prefix + separator
}

func (p PathSpec) String() string {
	if p.Prefix == "" {
		return DefaultScheme + "://" + p.Container
	}
	return DefaultScheme + "://" + p.Container + separator + p.Prefix
}
