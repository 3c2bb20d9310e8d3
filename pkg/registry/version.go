package registry

import (
	"fmt"
	"strconv"
	"strings"
)

// DraftVersion is the sentinel version tag of the single mutable draft row
// per key. It never collides with published tags, which are always "v<n>".
const DraftVersion = "draft"

// Version is the ordinal of a published definition. Versions are handled as
// integers internally and formatted to "v<n>" only at the store boundary, so
// ordering never depends on string comparison.
type Version int

// ParseVersion parses a published version tag like "v3". The draft sentinel
// and anything else that is not "v" followed by a positive integer is
// rejected.
func ParseVersion(tag string) (Version, error) {
	rest, ok := strings.CutPrefix(tag, "v")
	if !ok {
		return 0, fmt.Errorf("invalid version tag %q: missing 'v' prefix", tag)
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid version tag %q: expected positive ordinal", tag)
	}
	return Version(n), nil
}

// String formats the version as its store-boundary tag.
func (v Version) String() string { return fmt.Sprintf("v%d", int(v)) }

// Next returns the version that follows this one.
func (v Version) Next() Version { return v + 1 }
