package static

import (
	"errors"
	"path"
	"strings"
)

var errPathTraversal = errors.New("path traversal attempt detected")

// requestPath turns a URL path into a storage-relative name, refusing any
// path with a ".." element.
func requestPath(urlPath string) (string, error) {
	urlPath = strings.ReplaceAll(urlPath, "\\", "/")
	for _, elem := range strings.Split(urlPath, "/") {
		if elem == ".." {
			return "", errPathTraversal
		}
	}

	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" {
		name = "."
	}
	return name, nil
}

// isHashedAsset checks if filename contains a content hash
// (e.g. main.dart.a1b2c3d4.js).
func isHashedAsset(filename string) bool {
	parts := strings.Split(filename, ".")
	if len(parts) < 3 {
		return false
	}

	hashPart := parts[len(parts)-2]
	if len(hashPart) < 8 || len(hashPart) > 12 {
		return false
	}
	for _, c := range hashPart {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

func cacheControl(filename string, isDir bool) string {
	switch {
	case isHashedAsset(filename):
		return "public, max-age=31536000, immutable"
	case isDir || strings.HasSuffix(filename, ".html"):
		return "no-store, no-cache, must-revalidate"
	default:
		return "public, max-age=60"
	}
}
