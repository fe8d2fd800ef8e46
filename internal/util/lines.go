package util

import (
	"strings"
)

// LineRange returns the 1-based first and last line of the byte range
// [offset, offset+length) in content. Out-of-range input yields (1,1).
func LineRange(content string, offset, length int) (start, end int) {
	if offset < 0 || offset > len(content) {
		return 1, 1
	}
	if length < 0 {
		length = 0
	}
	stop := offset + length
	if stop > len(content) {
		stop = len(content)
	}
	start = strings.Count(content[:offset], "\n") + 1
	end = start + strings.Count(content[offset:stop], "\n")
	return
}
