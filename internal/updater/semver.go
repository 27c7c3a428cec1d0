package updater

import (
	"fmt"
	"strconv"
	"strings"
)

// Semver represents a semantic version, optionally with a pre-release tag.
type Semver struct {
	Major int
	Minor int
	Patch int
	Pre   string // "rc.1" in "1.2.0-rc.1", empty for releases
}

// ParseSemver parses a version string like "1.2.3", "v1.2.3" or "1.2.3-rc.1".
func ParseSemver(s string) (Semver, error) {
	s = strings.TrimPrefix(s, "v")

	var pre string
	if i := strings.IndexByte(s, '-'); i >= 0 {
		pre = s[i+1:]
		s = s[:i]
	}

	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Semver{}, fmt.Errorf("invalid semver: %q", s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Semver{}, fmt.Errorf("invalid semver component %q in %q", p, s)
		}
		nums[i] = n
	}

	return Semver{Major: nums[0], Minor: nums[1], Patch: nums[2], Pre: pre}, nil
}

// String returns the version as "major.minor.patch" with any pre-release tag.
func (v Semver) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Pre != "" {
		s += "-" + v.Pre
	}
	return s
}

// LessThan returns true if v < other. A pre-release sorts before the release
// it precedes; two pre-releases of the same version compare lexically.
func (v Semver) LessThan(other Semver) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}
	if v.Patch != other.Patch {
		return v.Patch < other.Patch
	}
	if (v.Pre == "") != (other.Pre == "") {
		return v.Pre != ""
	}
	return v.Pre < other.Pre
}
