package backends

import (
	"fmt"
	"regexp"

	"golang.org/x/mod/semver"
)

// pep440Re captures the release and pre-release parts of versions printed by
// Python tools: "19.3b0", "22.1.0", "5.10.1", "0.4.10.dev3", "1.2rc1".
var pep440Re = regexp.MustCompile(`(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:\.?(a|b|rc|dev)\.?(\d+))?`)

// ParseVersion extracts the first version number from text and returns it in
// canonical semver form, e.g. "black, 19.3b0 (compiled: no)" -> "v19.3.0-b0".
// It returns "" when text contains no version.
func ParseVersion(text string) string {
	m := pep440Re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	v := fmt.Sprintf("v%s.%s.%s", m[1], orZero(m[2]), orZero(m[3]))
	if m[4] != "" {
		v += "-" + m[4] + orZero(m[5])
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// AtLeast reports whether version is at least minimum. Both are in the form
// returned by ParseVersion. An unknown version counts as new enough, so
// option translation targets the current release of a tool by default.
func AtLeast(version, minimum string) bool {
	if version == "" {
		return true
	}
	return semver.Compare(version, minimum) >= 0
}
