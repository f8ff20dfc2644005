package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformedRange is returned for Range headers that cannot be parsed
	ErrMalformedRange = errors.New("malformed range header")
	// ErrUnsatisfiableRange is returned when the range lies outside the file
	ErrUnsatisfiableRange = errors.New("range not satisfiable")
)

// ByteRange is an inclusive byte span
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes in the span
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the Content-Range value for a file of size total
func (r ByteRange) ContentRange(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, total)
}

// UnsatisfiedContentRange formats the Content-Range value sent with a 416
func UnsatisfiedContentRange(total int64) string {
	return fmt.Sprintf("bytes */%d", total)
}

// ParseRange resolves a Range header against a file of the given size.
// Only the first span of a multi-range header is honoured. An end past
// EOF is clamped.
func ParseRange(header string, size int64) (ByteRange, error) {
	header = strings.TrimSpace(header)
	unit, set, ok := strings.Cut(header, "=")
	if !ok || !strings.EqualFold(strings.TrimSpace(unit), "bytes") {
		return ByteRange{}, ErrMalformedRange
	}

	var span string
	for _, part := range strings.Split(set, ",") {
		if part = strings.TrimSpace(part); part != "" {
			span = part
			break
		}
	}
	if span == "" {
		return ByteRange{}, ErrMalformedRange
	}

	first, last, ok := strings.Cut(span, "-")
	if !ok {
		return ByteRange{}, ErrMalformedRange
	}
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)

	if first == "" {
		n, err := parseOffset(last)
		if err != nil {
			return ByteRange{}, err
		}
		if n == 0 || size == 0 {
			return ByteRange{}, ErrUnsatisfiableRange
		}
		if n > size {
			n = size
		}
		return ByteRange{Start: size - n, End: size - 1}, nil
	}

	start, err := parseOffset(first)
	if err != nil {
		return ByteRange{}, err
	}
	end := size - 1
	if last != "" {
		end, err = parseOffset(last)
		if err != nil {
			return ByteRange{}, err
		}
		if end < start {
			return ByteRange{}, ErrMalformedRange
		}
	}
	if start >= size {
		return ByteRange{}, ErrUnsatisfiableRange
	}
	if end >= size {
		end = size - 1
	}
	return ByteRange{Start: start, End: end}, nil
}

func parseOffset(s string) (int64, error) {
	if s == "" || strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return 0, ErrMalformedRange
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrMalformedRange
	}
	return n, nil
}
