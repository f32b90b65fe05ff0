package cfs

import (
	"fmt"
	"regexp"
	"strings"
)

// Separator delimits path segments in object keys and metadata paths.
const Separator = "/"

// DefaultUserFolderPattern names a user's storage namespace.
const DefaultUserFolderPattern = "user-%d-files"

// MoveKind classifies a moveOrRename request.
type MoveKind int

const (
	Rename MoveKind = iota + 1
	Move
)

func (k MoveKind) String() string {
	switch k {
	case Rename:
		return "RENAME"
	case Move:
		return "MOVE"
	default:
		return "UNKNOWN"
	}
}

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_ .\-]+$`)

// Join concatenates parts with a single separator. It does not normalize
// repeated separators, so callers must not pass empty segments.
func Join(parts ...string) string {
	return strings.Join(parts, Separator)
}

// ParentOf returns p up to and including the last separator, or "" when p
// has no separator.
func ParentOf(p string) string {
	i := strings.LastIndex(p, Separator)
	if i < 0 {
		return ""
	}
	return p[:i+1]
}

// LeafOf returns the part of p after the last separator, or "" when p has
// no separator.
func LeafOf(p string) string {
	i := strings.LastIndex(p, Separator)
	if i < 0 {
		return ""
	}
	return p[i+1:]
}

// IsFile reports whether name looks like a file name (contains a dot).
// Persisted resources carry an explicit type; this heuristic only picks the
// not-found kind for paths that exist nowhere.
func IsFile(name string) bool {
	return strings.Contains(name, ".")
}

// RootFor formats the storage namespace of a user.
func RootFor(pattern string, userID int64) string {
	return fmt.Sprintf(pattern, userID)
}

// ClassifyRenameOrMove decides whether from -> to is a rename (same parent,
// new leaf) or a move (new parent, same leaf). Anything else is invalid.
func ClassifyRenameOrMove(from, to string) (MoveKind, error) {
	sameParent := ParentOf(from) == ParentOf(to)
	sameLeaf := LeafOf(from) == LeafOf(to)
	switch {
	case sameParent && !sameLeaf:
		return Rename, nil
	case !sameParent && sameLeaf:
		return Move, nil
	case sameParent && sameLeaf:
		return 0, fmt.Errorf("%w: source and destination are the same: %s", ErrInvalidOperation, from)
	default:
		return 0, fmt.Errorf("%w: cannot rename and move in one request: %s -> %s", ErrInvalidOperation, from, to)
	}
}

// CleanPath validates a user-supplied relative path and strips surrounding
// separators. The empty string denotes the user's root.
func CleanPath(raw string) (string, error) {
	p := strings.Trim(raw, Separator)
	if p == "" {
		return "", nil
	}
	for _, seg := range strings.Split(p, Separator) {
		if seg == "" {
			return "", fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, raw)
		}
		if seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: relative segment in %q", ErrInvalidPath, raw)
		}
		if !segmentPattern.MatchString(seg) {
			return "", fmt.Errorf("%w: unsupported characters in %q", ErrInvalidPath, raw)
		}
	}
	return p, nil
}
