package http

import (
	"bytes"
	"errors"
	"math"
)

var (
	errInvalidNumber = errors.New("http: invalid number")

	crlf = []byte("\r\n")
)

// indexBytes returns the position of the first needle in haystack, or -1.
// An empty needle is a programming error.
func indexBytes(haystack, needle []byte) int {
	if len(needle) == 0 {
		panic("http: indexBytes called with an empty needle")
	}
	return bytes.Index(haystack, needle)
}

// splitBytesOn splits src on b at most maxSplits times. Empty segments are
// kept and consecutive delimiters are never collapsed.
func splitBytesOn(src []byte, b byte, maxSplits int) [][]byte {
	return bytes.SplitN(src, []byte{b}, maxSplits+1)
}

// splitBytesOnCRLF splits src on "\r\n". A trailing segment that is not
// terminated by "\r\n" is dropped. Only meant for header blocks.
func splitBytesOnCRLF(src []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i := 0; i+1 < len(src); i++ {
		if src[i] == '\r' && src[i+1] == '\n' {
			lines = append(lines, src[start:i])
			start = i + 2
			i++
		}
	}
	return lines
}

// percentDecode decodes %XX escapes. Invalid or truncated escapes are copied
// through untouched, '%' included.
func percentDecode(input []byte) []byte {
	out := make([]byte, 0, len(input))
	for i := 0; i < len(input); i++ {
		if input[i] == '%' && i+2 < len(input) {
			hi, lo := hexToByte(input[i+1]), hexToByte(input[i+2])
			if hi != 255 && lo != 255 {
				out = append(out, hi<<4|lo)
				i += 2
				continue
			}
		}
		out = append(out, input[i])
	}
	return out
}

func lstrip(b []byte) []byte {
	return bytes.TrimLeft(b, " ")
}

func rstrip(b []byte) []byte {
	return bytes.TrimRight(b, " ")
}

func strip(b []byte) []byte {
	return lstrip(rstrip(b))
}

// parseUint parses ASCII digits only. Signs, whitespace and empty input are
// rejected, as is anything that does not fit in a uint64.
func parseUint(b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, errInvalidNumber
	}
	var n uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, errInvalidNumber
		}
		d := uint64(c - '0')
		if n > (math.MaxUint64-d)/10 {
			return 0, errInvalidNumber
		}
		n = n*10 + d
	}
	return n, nil
}

func hexToByte(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 255 // Invalid hex
}

// toLowerASCII returns a lowercased copy of data. Non-ASCII bytes are left alone.
func toLowerASCII(data []byte) []byte {
	out := make([]byte, len(data))
	for i, c := range data {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}
