package migrate

import (
	"strconv"
	"strings"
)

// ParseVersion splits a dotted version such as "1.0.3" into its numeric segments.
// Every segment must be a non-empty run of ASCII digits; any number of segments is allowed.
func ParseVersion(v string) ([]uint64, error) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil, &VersionParseError{Value: v, Reason: "empty version"}
	}

	parts := strings.Split(trimmed, ".")
	out := make([]uint64, len(parts))
	for i, part := range parts {
		if part == "" {
			return nil, &VersionParseError{Value: v, Segment: i, Reason: "empty segment"}
		}
		for _, ch := range part {
			if ch < '0' || ch > '9' {
				return nil, &VersionParseError{Value: v, Segment: i, Reason: "non-numeric segment " + strconv.Quote(part)}
			}
		}
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, &VersionParseError{Value: v, Segment: i, Reason: "segment out of range"}
		}
		out[i] = n
	}
	return out, nil
}

// CompareVersions orders two dotted versions numerically, treating missing trailing
// segments as zero. It returns -1 if a < b, 0 if they are equal and 1 if a > b.
func CompareVersions(a, b string) (int, error) {
	av, err := ParseVersion(a)
	if err != nil {
		return 0, err
	}
	bv, err := ParseVersion(b)
	if err != nil {
		return 0, err
	}
	return compareSegments(av, bv), nil
}

// MustCompare is CompareVersions for versions already known to be valid, such as
// those of a validated Catalog. It panics on malformed input.
func MustCompare(a, b string) int {
	c, err := CompareVersions(a, b)
	if err != nil {
		panic(err)
	}
	return c
}

func compareSegments(a, b []uint64) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var x, y uint64
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}
