package ampache

import (
	"strconv"
	"strings"
)

const (
	// MinAPIVersion is the oldest server API this client speaks,
	// in the legacy integer scheme.
	MinAPIVersion = 400001

	// Servers reporting dotted version strings must be at least 5.0.0.
	minDottedVersion = 5_000_000
)

// ParseAPIVersion converts a server-reported API version string to its
// integer form. Legacy integer strings parse to themselves. Dotted
// major.minor.patch strings convert to major*1_000_000 + minor*1_000 + patch;
// dotted versions below 5.0.0 are rejected to 0, as is anything unparseable.
func ParseAPIVersion(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if !strings.Contains(s, ".") {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return 0
		}
		return v
	}
	major, minor, patch, ok := splitDotted(s)
	if !ok {
		return 0
	}
	v := major*1_000_000 + minor*1_000 + patch
	if v < minDottedVersion {
		return 0
	}
	return v
}

// legacyAPIVersion renders a dotted version string in the legacy integer
// scheme (major*100_000 + minor*1_000 + patch), used only for reporting
// pre-5.0.0 servers in error messages. Returns 0 if s is not dotted.
func legacyAPIVersion(s string) int {
	major, minor, patch, ok := splitDotted(strings.TrimSpace(s))
	if !ok {
		return 0
	}
	return major*100_000 + minor*1_000 + patch
}

func splitDotted(s string) (major, minor, patch int, ok bool) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, 0, 0, false
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], true
}

// versionOmitsLimit reports whether the server is one of the releases
// that errors out on any limit override in listing calls.
func versionOmitsLimit(apiVersion int) bool {
	return apiVersion == 424000 || apiVersion == 425000
}
