package service

import (
	"strconv"
	"strings"
)

// ByteRange is a requested range after resolution against the object size.
// End is inclusive; Open means the client asked for everything from Start.
type ByteRange struct {
	Start int64
	End   int64
	Open  bool
}

// ParseRange reads the first range of a "bytes=" Range header. ok is false
// when the header is absent or unparsable, which callers treat as a
// request for the whole object. Suffix ranges ("bytes=-n") are resolved
// against total.
func ParseRange(header string, total int64) (r ByteRange, ok bool) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "bytes=") {
		return ByteRange{}, false
	}
	rng, _, _ := strings.Cut(header[len("bytes="):], ",")
	first, last, found := strings.Cut(strings.TrimSpace(rng), "-")
	if !found {
		return ByteRange{}, false
	}
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return ByteRange{}, false
		}
		start := total - n
		if start < 0 {
			start = 0
		}
		return ByteRange{Start: start, End: total - 1}, true
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return ByteRange{}, false
	}
	if last == "" {
		return ByteRange{Start: start, End: total - 1, Open: true}, true
	}
	end, err := strconv.ParseInt(last, 10, 64)
	if err != nil || end < start {
		return ByteRange{}, false
	}
	return ByteRange{Start: start, End: end}, true
}

// Plan is the sub-range requested from the origin.
type Plan struct {
	Start int64
	// End is the last byte expected back.
	End int64
	// Unbounded asks the origin for everything from Start.
	Unbounded bool
}

// PlanRange decides what to ask the origin for. Explicit ranges are
// clamped to the object. An open range at zero gets a fast-start slice so
// players can read the header quickly; an open range elsewhere is passed
// through unbounded. The caller has already rejected start >= total.
func PlanRange(r ByteRange, total, fastStart int64) Plan {
	switch {
	case !r.Open:
		end := r.End
		if end > total-1 {
			end = total - 1
		}
		return Plan{Start: r.Start, End: end}
	case r.Start == 0 && fastStart > 0:
		end := fastStart
		if end > total {
			end = total
		}
		return Plan{Start: 0, End: end - 1}
	default:
		return Plan{Start: r.Start, End: total - 1, Unbounded: true}
	}
}
