package filedb

import "bytes"

// padNul right-pads b with NUL bytes up to width. b longer than width is
// returned unchanged, callers check the length first.
func padNul(b []byte, width int) []byte {
	if len(b) >= width {
		return b
	}
	out := make([]byte, width)
	copy(out, b)
	return out
}

// stripNul drops every NUL byte in b, the way header and node fields are
// sanitized on read.
func stripNul(b []byte) []byte {
	if bytes.IndexByte(b, 0) < 0 {
		return b
	}
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c != 0 {
			out = append(out, c)
		}
	}
	return out
}

func isDecimal(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// dedupOffsets keeps the first occurrence of every non-zero offset.
func dedupOffsets(links []uint64) []uint64 {
	out := links[:0]
	seen := make(map[uint64]struct{}, len(links))
	for _, l := range links {
		if l == 0 {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
