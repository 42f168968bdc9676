package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version errors.
var (
	// ErrInvalidVersion is returned when the version string format is invalid.
	ErrInvalidVersion = errors.New("invalid version format: expected MAJOR.MINOR.PATCH with optional -suffix")
	// ErrEmptyVersion is returned when the version string is empty.
	ErrEmptyVersion = errors.New("version cannot be empty")
)

// Channel represents the release channel a version publishes to.
type Channel int

const (
	// ChannelUnknown indicates an unclassified version.
	ChannelUnknown Channel = iota
	// ChannelStable indicates a stable release (no pre-release marker in the suffix).
	ChannelStable
	// ChannelPreRelease indicates a pre-release (suffix contains alpha, beta, or rc).
	ChannelPreRelease
)

// String returns the string representation of the Channel.
func (c Channel) String() string {
	switch c {
	case ChannelStable:
		return "stable"
	case ChannelPreRelease:
		return "prerelease"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so channels serialize as
// their string form in JSON output.
func (c Channel) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Channel) UnmarshalText(text []byte) error {
	switch string(text) {
	case "stable":
		*c = ChannelStable
	case "prerelease":
		*c = ChannelPreRelease
	default:
		*c = ChannelUnknown
	}
	return nil
}

// versionPattern is the accepted release version format:
// MAJOR.MINOR.PATCH optionally followed by a single -suffix group.
// Examples: "1.2.3", "2.0.0-rc1", "0.9.0-beta3".
var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(?:-([A-Za-z0-9]+))?$`)

// preReleaseMarkers are the substrings that classify a suffix as pre-release.
// Matching is case-sensitive and positional: the marker may appear anywhere
// in the suffix ("rc1", "alpha2", "prealpha" all classify as pre-release).
var preReleaseMarkers = []string{"alpha", "beta", "rc"}

// Version is an immutable value object representing a release version.
// It validates the MAJOR.MINOR.PATCH(-suffix) format and classifies the
// release channel from the suffix.
type Version struct {
	major  int
	minor  int
	patch  int
	suffix string // Empty for stable releases

	// valid distinguishes a parsed version from the zero value, so a
	// real "0.0.0" release is not mistaken for an unparsed Version.
	valid bool
}

// ParseVersion creates a Version from a bare version string (no "v" prefix).
// Returns ErrInvalidVersion if the string does not match the accepted format.
func ParseVersion(s string) (Version, error) {
	if s == "" {
		return Version{}, ErrEmptyVersion
	}

	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}

	// The pattern guarantees the numeric groups parse; Atoi can only fail
	// on overflow, which we treat as an invalid version.
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	minor, err := strconv.Atoi(m[2])
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	patch, err := strconv.Atoi(m[3])
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}

	return Version{
		major:  major,
		minor:  minor,
		patch:  patch,
		suffix: m[4],
		valid:  true,
	}, nil
}

// ParseTag creates a Version from a git tag, stripping a single leading "v"
// if present. "v1.2.3" and "1.2.3" parse to the same Version.
func ParseTag(tag string) (Version, error) {
	return ParseVersion(StripTagPrefix(tag))
}

// StripTagPrefix removes a single leading "v" from a tag string.
// It does not validate the remainder; callers pass the result to ParseVersion.
func StripTagPrefix(tag string) string {
	return strings.TrimPrefix(tag, "v")
}

// MustParseVersion creates a Version or panics if invalid.
// Use only for known-valid versions in tests or initialization.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the bare version string without a "v" prefix.
func (v Version) String() string {
	if v.suffix == "" {
		return fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
	}
	return fmt.Sprintf("%d.%d.%d-%s", v.major, v.minor, v.patch, v.suffix)
}

// Tag returns the version formatted as a git tag with a "v" prefix.
func (v Version) Tag() string {
	return "v" + v.String()
}

// Major returns the major version number.
func (v Version) Major() int { return v.major }

// Minor returns the minor version number.
func (v Version) Minor() int { return v.minor }

// Patch returns the patch version number.
func (v Version) Patch() int { return v.patch }

// Suffix returns the pre-release suffix without the leading dash.
// Empty for stable versions.
func (v Version) Suffix() string { return v.suffix }

// IsPreRelease reports whether the version suffix marks a pre-release.
// A version is pre-release iff its suffix contains "alpha", "beta", or "rc"
// as a literal, case-sensitive substring.
func (v Version) IsPreRelease() bool {
	if v.suffix == "" {
		return false
	}
	for _, marker := range preReleaseMarkers {
		if strings.Contains(v.suffix, marker) {
			return true
		}
	}
	return false
}

// Channel returns the release channel for the version.
func (v Version) Channel() Channel {
	if v.IsPreRelease() {
		return ChannelPreRelease
	}
	return ChannelStable
}

// MarshalText implements encoding.TextMarshaler so versions serialize as
// their bare string form. A zero Version serializes as the empty string
// rather than a misleading "0.0.0".
func (v Version) MarshalText() ([]byte, error) {
	if v.IsZero() {
		return nil, nil
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text restores
// the zero Version.
func (v *Version) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*v = Version{}
		return nil
	}
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// IsZero reports whether the Version is the zero value, i.e. was never
// parsed. A parsed "0.0.0" is not zero.
func (v Version) IsZero() bool {
	return !v.valid
}

// Equals returns true if two Version values are identical, suffix included.
func (v Version) Equals(other Version) bool {
	return v == other
}

// Compare orders two versions by their numeric components.
// Returns -1 if v < other, 0 if the numeric components are equal, and 1 if
// v > other. Suffixes break ties only between suffixed and unsuffixed
// versions: a pre-release sorts before the stable version with the same
// numbers ("2.0.0-rc1" < "2.0.0").
func (v Version) Compare(other Version) int {
	if c := compareInt(v.major, other.major); c != 0 {
		return c
	}
	if c := compareInt(v.minor, other.minor); c != 0 {
		return c
	}
	if c := compareInt(v.patch, other.patch); c != 0 {
		return c
	}

	// Same numbers: suffixed sorts before unsuffixed.
	switch {
	case v.suffix == other.suffix:
		return 0
	case v.suffix == "":
		return 1
	case other.suffix == "":
		return -1
	default:
		return strings.Compare(v.suffix, other.suffix)
	}
}

// compareInt returns -1, 0, or 1 for integer ordering.
func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
