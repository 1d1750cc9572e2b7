package database

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPath is returned for paths that do not name a collection or a
// document, e.g. "/projects/abc" passed where a collection is expected.
var ErrInvalidPath = errors.New("invalid store path")

func segments(path string) []string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil
		}
	}
	return parts
}

// CollectionPath normalises a collection path such as "/projects" into the
// form backends use ("projects"). Collection paths have an odd number of
// segments.
func CollectionPath(path string) (string, error) {
	parts := segments(path)
	if len(parts) == 0 || len(parts)%2 == 0 {
		return "", fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, path)
	}
	return strings.Join(parts, "/"), nil
}

// DocumentPath splits a document path such as "/projects/abc" into its
// collection and identifier.
func DocumentPath(path string) (collection, id string, err error) {
	parts := segments(path)
	if len(parts) == 0 || len(parts)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is not a document", ErrInvalidPath, path)
	}
	return strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1], nil
}

// Join builds a slash-rooted store path from its segments.
func Join(parts ...string) string {
	return "/" + strings.Join(parts, "/")
}
