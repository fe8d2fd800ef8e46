package util

import (
	"path/filepath"
	"strings"
)

// HasPathPrefix reports whether path lies under one of the directory
// prefixes, either at its start or below any path segment
// (lib/ matches both "lib/x.sol" and "/abs/project/lib/x.sol").
func HasPathPrefix(path string, prefixes []string) bool {
	p := strings.TrimPrefix(filepath.ToSlash(path), "./")
	for _, prefix := range prefixes {
		pre := strings.TrimPrefix(filepath.ToSlash(prefix), "./")
		if pre == "" {
			continue
		}
		if !strings.HasSuffix(pre, "/") {
			pre += "/"
		}
		if strings.HasPrefix(p, pre) || strings.Contains(p, "/"+pre) {
			return true
		}
	}
	return false
}
