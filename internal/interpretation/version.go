package interpretation

import (
	"fmt"
	"strconv"
	"strings"
)

// CompareVersions compares two dotted numeric version strings segment by
// segment, returning -1, 0 or 1. Missing segments compare as zero, so
// "1.0" == "1.0.0". The tiering software stamps plain numeric versions
// (e.g. "1.0.14"); anything else is an error.
func CompareVersions(a, b string) (int, error) {
	as, err := parseVersion(a)
	if err != nil {
		return 0, err
	}
	bs, err := parseVersion(b)
	if err != nil {
		return 0, err
	}
	for len(as) < len(bs) {
		as = append(as, 0)
	}
	for len(bs) < len(as) {
		bs = append(bs, 0)
	}
	for i := range as {
		if as[i] < bs[i] {
			return -1, nil
		}
		if as[i] > bs[i] {
			return 1, nil
		}
	}
	return 0, nil
}

func parseVersion(v string) ([]int, error) {
	if v == "" {
		return nil, fmt.Errorf("empty version string")
	}
	parts := strings.Split(v, ".")
	segments := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("malformed version string %q", v)
		}
		segments = append(segments, n)
	}
	return segments, nil
}
